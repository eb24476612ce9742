package dto

// BillingWebhookRequest is the payment-provider event delivered to the
// billing webhook. Only checkout.completed events carry credits.
type BillingWebhookRequest struct {
	EventID   string `json:"event_id" validate:"required"`
	EventType string `json:"event_type" validate:"required"`
	UserID    string `json:"user_id" validate:"required"`
	Credits   int64  `json:"credits"`
	Reference string `json:"reference"`
}

// BillingWebhookResponse acknowledges a webhook delivery.
type BillingWebhookResponse struct {
	EventID   string `json:"event_id"`
	Processed bool   `json:"processed"`
}

// CreditBalanceResponse reports a user's current balance.
type CreditBalanceResponse struct {
	UserID  string `json:"user_id"`
	Credits int64  `json:"credits"`
}

// GrantCreditsRequest is the admin request to add credits manually.
type GrantCreditsRequest struct {
	Credits     int64  `json:"credits" validate:"required,gt=0"`
	Description string `json:"description"`
}
