package notify

import (
	"context"
	"time"
)

// Template identifies the kind of notification being sent
type Template string

const (
	TemplateApplicationSubmitted Template = "application_submitted"
	TemplateApplicationWithdrawn Template = "application_withdrawn"
	TemplateRoundUpdated         Template = "round_updated"
	TemplateOfferAccepted        Template = "offer_accepted"
	TemplateOfferRejected        Template = "offer_rejected"
	TemplateAccountFrozen        Template = "account_frozen"
	TemplateAccountUnfrozen      Template = "account_unfrozen"
)

// AdminRecipient addresses every connected administrator
const AdminRecipient = "admins"

// Notification is a fire-and-forget message for a student or the admin group
type Notification struct {
	Recipient string         `json:"recipient"`
	Template  Template       `json:"template"`
	Payload   map[string]any `json:"payload,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

// Sink delivers notifications to one channel
type Sink interface {
	Name() string
	Send(ctx context.Context, n Notification) error
}
