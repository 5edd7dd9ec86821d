package external

import (
	"bytes"
	"fmt"

	"github.com/wneessen/go-mail"

	"github.com/ToFood/tofood-zip/internal/types"
)

// mailer identifies outbound messages in the X-Mailer header.
const mailer = "tofood-notifications"

// BuildMessage renders input as a MIME message. The HTML body is primary
// with the text body as alternative; a message with only one of them gets a
// single part. Reply-To falls back to the sender address.
func BuildMessage(input types.SendInput) (*mail.Msg, error) {
	if input.From.Address == "" {
		return nil, fmt.Errorf("sender address not configured")
	}

	m := mail.NewMsg()
	var err error
	if input.From.Name != "" {
		err = m.FromFormat(input.From.Name, input.From.Address)
	} else {
		err = m.From(input.From.Address)
	}
	if err != nil {
		return nil, fmt.Errorf("invalid sender address: %w", err)
	}
	if err := m.To(input.To...); err != nil {
		return nil, fmt.Errorf("invalid recipient: %w", err)
	}
	if len(input.Bcc) > 0 {
		if err := m.Bcc(input.Bcc...); err != nil {
			return nil, fmt.Errorf("invalid bcc: %w", err)
		}
	}

	replyTo := input.ReplyTo
	if replyTo == "" {
		replyTo = input.From.Address
	}
	if err := m.ReplyTo(replyTo); err != nil {
		return nil, fmt.Errorf("invalid reply-to: %w", err)
	}

	m.Subject(input.Subject)
	m.SetGenHeader(mail.HeaderXMailer, mailer)
	m.SetMessageID()
	m.SetDate()

	switch {
	case input.BodyHTML != "" && input.BodyText != "":
		m.SetBodyString(mail.TypeTextHTML, input.BodyHTML)
		m.AddAlternativeString(mail.TypeTextPlain, input.BodyText)
	case input.BodyHTML != "":
		m.SetBodyString(mail.TypeTextHTML, input.BodyHTML)
	default:
		m.SetBodyString(mail.TypeTextPlain, input.BodyText)
	}

	for _, a := range input.Attachments {
		var opts []mail.FileOption
		if a.ContentType != "" {
			opts = append(opts, mail.WithFileContentType(mail.ContentType(a.ContentType)))
		}
		if err := m.AttachReader(a.Name, bytes.NewReader(a.Content), opts...); err != nil {
			return nil, fmt.Errorf("attach %q: %w", a.Name, err)
		}
	}
	return m, nil
}

// RenderMessage returns the RFC 5322 bytes of input.
func RenderMessage(input types.SendInput) ([]byte, error) {
	m, err := BuildMessage(input)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if _, err := m.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("render message: %w", err)
	}
	return buf.Bytes(), nil
}
