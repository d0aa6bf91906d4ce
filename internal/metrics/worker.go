package metrics

import "time"

// JobCompleted records a successful generation job.
func JobCompleted(duration time.Duration) {
	JobsTotal.WithLabelValues("completed").Inc()
	JobDuration.Observe(duration.Seconds())
}

// JobFailed records a job whose transaction or generation could not complete.
func JobFailed() {
	JobsTotal.WithLabelValues("failed").Inc()
}

// JobDropped records a malformed job that was logged and discarded.
func JobDropped() {
	JobsTotal.WithLabelValues("dropped").Inc()
}

// MessageEnqueued records a chat message pushed onto the generation queue.
func MessageEnqueued() {
	MessagesEnqueued.Inc()
}

// QuotaRejected records a message turned away by the quota gate.
func QuotaRejected() {
	QuotaRejections.Inc()
}

// BillingEventReceived records one billing provider notification.
func BillingEventReceived(kind string) {
	BillingEventsTotal.WithLabelValues(kind).Inc()
}
