package model

import (
	"time"

	"github.com/google/uuid"
)

// Channel identifies the ingestion channel a request arrived on.
type Channel string

const (
	ChannelChat    Channel = "chat"
	ChannelEmail   Channel = "email"
	ChannelForm    Channel = "form"
	ChannelWebhook Channel = "webhook"
	ChannelSMS     Channel = "sms"
	ChannelSocial  Channel = "social"
)

// Request is the immutable input unit of a resolution run. The ingestion
// collaborator produces it already normalized; nothing in the pipeline
// mutates it after creation.
type Request struct {
	RequestID      string    `json:"request_id"`
	TenantID       string    `json:"tenant_id"`
	Channel        Channel   `json:"channel"`
	Timestamp      time.Time `json:"timestamp"`
	RawText        string    `json:"raw_text"`
	Attachments    []string  `json:"attachments,omitempty"`
	ConversationID string    `json:"conversation_id,omitempty"`
	// PreviousIntents holds resolved intent codes from earlier turns of the
	// same conversation, oldest first.
	PreviousIntents []string `json:"previous_intents,omitempty"`
	CustomerID      string   `json:"customer_id,omitempty"`
	CustomerTier    string   `json:"customer_tier,omitempty"`
	OrderIDs        []string `json:"order_ids,omitempty"`
}

// NewRequest builds a Request for a raw message, filling identifier and
// timestamp when the caller left them empty.
func NewRequest(tenantID string, channel Channel, rawText string) Request {
	return Request{
		RequestID: uuid.NewString(),
		TenantID:  tenantID,
		Channel:   channel,
		Timestamp: time.Now().UTC(),
		RawText:   rawText,
	}
}
