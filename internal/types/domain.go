package types

import "time"

// NotificationRecord is a persisted notification work item and its
// delivery lifecycle state.
type NotificationRecord struct {
	ID              int64              `json:"id"`
	SubjectEntityID string             `json:"subject_entity_id"`
	Recipient       string             `json:"recipient"`
	Phone           string             `json:"phone,omitempty"`
	Operation       string             `json:"operation,omitempty"`
	Subject         string             `json:"subject,omitempty"`
	BodyText        string             `json:"body_text,omitempty"`
	BodyTemplate    string             `json:"body_template,omitempty"`
	HeaderImageURL  string             `json:"header_image_url,omitempty"`
	Channel         ChannelType        `json:"channel_type"`
	Status          NotificationStatus `json:"status"`
	BrokerServiceID *int64             `json:"broker_service_id,omitempty"`
	Attempt         int                `json:"attempt"`
	ErrorMessage    *string            `json:"error_message,omitempty"`
	Deleted         bool               `json:"deleted"`
	CreatedAt       time.Time          `json:"created_at"`
	ClaimedAt       *time.Time         `json:"claimed_at,omitempty"`
	SentAt          *time.Time         `json:"sent_at,omitempty"`
}

// Destination returns the contact the record is delivered to: the email
// recipient for the email and default channels, the phone otherwise.
func (r *NotificationRecord) Destination() string {
	switch r.Channel {
	case ChannelSMS, ChannelWhatsApp:
		if r.Phone != "" {
			return r.Phone
		}
	}
	return r.Recipient
}

// BrokerServiceConfig is an operator-managed delivery service: which broker
// to use for a channel and the credentials, sender identity, and default
// content to use with it.
type BrokerServiceConfig struct {
	ID      int64       `json:"id"`
	Name    string      `json:"name"`
	Kind    BrokerKind  `json:"broker_kind"`
	Channel ChannelType `json:"channel_type"`
	Active  bool        `json:"is_active"`

	APIKey      SecretString `json:"api_key"`
	APISecret   SecretString `json:"api_secret"`
	APIEndpoint string       `json:"api_endpoint,omitempty"`

	RequestType    string `json:"request_type,omitempty"`
	RequestHeaders string `json:"request_headers,omitempty"`

	MinMillisecondsBetweenSends int  `json:"min_ms_between_sends"`
	IgnoreTransportSecurity     bool `json:"ignore_transport_security"`
	ShouldSignEmail             bool `json:"should_sign_email"`

	SenderName    string `json:"sender_name,omitempty"`
	SenderAddress string `json:"sender_address,omitempty"`
	ReplyTo       string `json:"reply_to,omitempty"`
	Bcc           string `json:"bcc,omitempty"`

	// Defaults copied into a record when the creator leaves them empty.
	Title        string `json:"title,omitempty"`
	Text         string `json:"text,omitempty"`
	TemplateText string `json:"template_text,omitempty"`
}

// MinInterval returns the post-send throttle as a duration.
func (c *BrokerServiceConfig) MinInterval() time.Duration {
	if c.MinMillisecondsBetweenSends <= 0 {
		return 0
	}
	return time.Duration(c.MinMillisecondsBetweenSends) * time.Millisecond
}

// NotificationStatusView is the read-only projection returned to
// collaborators that display delivery outcome.
type NotificationStatusView struct {
	ID              int64              `json:"id"`
	SubjectEntityID string             `json:"subject_entity_id"`
	Channel         ChannelType        `json:"channel_type"`
	Status          NotificationStatus `json:"status"`
	StatusName      string             `json:"status_name"`
	ErrorMessage    *string            `json:"error_message,omitempty"`
	Attempt         int                `json:"attempt"`
	CreatedAt       time.Time          `json:"created_at"`
	SentAt          *time.Time         `json:"sent_at,omitempty"`
}

// StatusViewOf projects a record into its read-only status view.
func StatusViewOf(r *NotificationRecord) NotificationStatusView {
	return NotificationStatusView{
		ID:              r.ID,
		SubjectEntityID: r.SubjectEntityID,
		Channel:         r.Channel,
		Status:          r.Status,
		StatusName:      r.Status.String(),
		ErrorMessage:    r.ErrorMessage,
		Attempt:         r.Attempt,
		CreatedAt:       r.CreatedAt,
		SentAt:          r.SentAt,
	}
}
