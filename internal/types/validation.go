package types

import (
	"net/mail"
	"regexp"
	"strings"
)

// emailPattern is the syntactic gate applied before the RFC 5322 parse.
var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// phonePattern accepts E.164-style numbers with optional separators.
var phonePattern = regexp.MustCompile(`^\+?[0-9][0-9 ()-]{6,18}[0-9]$`)

// IsValidEmail reports whether addr is a bare, well-formed email address.
// The address must match emailPattern and survive a net/mail parse without
// being rewritten, so display-name forms like "A <a@b.co>" are rejected.
func IsValidEmail(addr string) bool {
	addr = strings.TrimSpace(addr)
	if addr == "" || !emailPattern.MatchString(addr) {
		return false
	}
	parsed, err := mail.ParseAddress(addr)
	if err != nil {
		return false
	}
	return strings.EqualFold(parsed.Address, addr)
}

// IsValidPhone reports whether number looks like a dialable phone number.
func IsValidPhone(number string) bool {
	return phonePattern.MatchString(strings.TrimSpace(number))
}

// IsValidContact validates dest according to the channel it will be sent on.
func IsValidContact(channel ChannelType, dest string) bool {
	switch channel {
	case ChannelSMS, ChannelWhatsApp:
		return IsValidPhone(dest)
	default:
		return IsValidEmail(dest)
	}
}

// SplitAddressList splits a comma or semicolon separated address list,
// dropping blanks.
func SplitAddressList(list string) []string {
	fields := strings.FieldsFunc(list, func(r rune) bool {
		return r == ',' || r == ';'
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}
