package broker

import "strings"

// RedactContact masks a contact for logging. Emails keep the first
// character of the local part ("j***@gmail.com"); phone numbers keep the
// last four digits; anything else is fully masked.
func RedactContact(contact string) string {
	if contact == "" {
		return ""
	}

	if local, domain, ok := strings.Cut(contact, "@"); ok {
		if local == "" {
			return "***@" + domain
		}
		return string(local[0]) + "***@" + domain
	}

	digits := 0
	for _, r := range contact {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	if digits >= 8 && len(contact) > 4 {
		return "***" + contact[len(contact)-4:]
	}
	return "***"
}
