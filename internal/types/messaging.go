package types

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// QueueEnvelope is the body of a delivery queue message. The field name is
// PascalCase on the wire because existing producers already publish that
// shape.
type QueueEnvelope struct {
	NotificationID int64 `json:"NotificationId"`
}

// Encode serializes the envelope for publishing.
func (e QueueEnvelope) Encode() (string, error) {
	body, err := json.Marshal(e)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// DecodeQueueEnvelope parses a queue message body. Unknown fields, trailing
// data, or a missing or non-positive id are rejected with
// ErrCodeValidationMalformedMessage.
func DecodeQueueEnvelope(body string) (QueueEnvelope, error) {
	var env QueueEnvelope

	dec := json.NewDecoder(bytes.NewReader([]byte(body)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&env); err != nil {
		return QueueEnvelope{}, NewAppError(ErrCodeValidationMalformedMessage, "queue message is not a notification envelope", err)
	}
	if dec.More() {
		return QueueEnvelope{}, NewAppError(ErrCodeValidationMalformedMessage, "queue message has trailing data", nil)
	}
	if env.NotificationID <= 0 {
		return QueueEnvelope{}, NewAppError(ErrCodeValidationMalformedMessage,
			fmt.Sprintf("queue message has invalid NotificationId %d", env.NotificationID), nil)
	}
	return env, nil
}
