package reconciler

import (
	"encoding/json"

	"github.com/stripe/stripe-go/v79"
)

// EventKind is the closed set of billing notifications the reconciler acts
// on. Anything else parses to EventUnknown and is a logged no-op, so a new
// provider event type shows up as an explicit gap rather than silent string
// matching.
type EventKind int

const (
	EventUnknown EventKind = iota
	EventCheckoutCompleted
	EventSubscriptionCreated
	EventInvoicePaymentSucceeded
	EventInvoicePaymentFailed
	EventSubscriptionDeleted
)

func (k EventKind) String() string {
	switch k {
	case EventCheckoutCompleted:
		return "checkout_completed"
	case EventSubscriptionCreated:
		return "subscription_created"
	case EventInvoicePaymentSucceeded:
		return "invoice_payment_succeeded"
	case EventInvoicePaymentFailed:
		return "invoice_payment_failed"
	case EventSubscriptionDeleted:
		return "subscription_deleted"
	default:
		return "unknown"
	}
}

// Event is a verified, typed billing notification. Correlation fields may be
// empty when the provider omitted them; handlers log and skip those instead
// of failing.
type Event struct {
	Kind           EventKind
	SubscriptionID string // provider's subscription identifier, idempotency key
	UserID         string // our user ID, present on checkout/created events
	ProviderType   string // provider's original event type string, for logging
	ProviderID     string // provider's event ID, for logging
}

// ParseStripeEvent maps a signature-verified Stripe event onto the
// reconciler's typed event. Parsing never fails hard: missing or malformed
// payload fields leave the correlation fields empty for the handler to skip.
func ParseStripeEvent(event stripe.Event) Event {
	out := Event{
		ProviderType: string(event.Type),
		ProviderID:   event.ID,
	}

	switch event.Type {
	case "checkout.session.completed":
		out.Kind = EventCheckoutCompleted
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return out
		}
		if session.Subscription != nil {
			out.SubscriptionID = session.Subscription.ID
		}
		if id, ok := session.Metadata["userId"]; ok && id != "" {
			out.UserID = id
		} else {
			out.UserID = session.ClientReferenceID
		}

	case "customer.subscription.created":
		out.Kind = EventSubscriptionCreated
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return out
		}
		out.SubscriptionID = sub.ID
		out.UserID = sub.Metadata["userId"]

	case "invoice.payment_succeeded", "invoice.payment_failed":
		if event.Type == "invoice.payment_succeeded" {
			out.Kind = EventInvoicePaymentSucceeded
		} else {
			out.Kind = EventInvoicePaymentFailed
		}
		var invoice stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
			return out
		}
		if invoice.Subscription != nil {
			out.SubscriptionID = invoice.Subscription.ID
		}

	case "customer.subscription.deleted":
		out.Kind = EventSubscriptionDeleted
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return out
		}
		out.SubscriptionID = sub.ID

	default:
		out.Kind = EventUnknown
	}

	return out
}
