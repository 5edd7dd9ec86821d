package types

// SenderIdentity is the From identity of an outbound email.
type SenderIdentity struct {
	Name    string
	Address string
}

// Attachment is an in-memory file attached to an outbound email.
type Attachment struct {
	Name        string
	ContentType string
	Content     []byte
}

// SendInput is a fully resolved outbound email: sender identity from the
// broker config, content and recipients from the notification.
type SendInput struct {
	From        SenderIdentity
	ReplyTo     string
	To          []string
	Bcc         []string
	Subject     string
	BodyHTML    string
	BodyText    string
	Attachments []Attachment

	// ReferenceID correlates the provider message with the notification id.
	ReferenceID string
}
