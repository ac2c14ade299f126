package messaging

import (
	"regexp"
	"strings"
)

var phoneDigitsRe = regexp.MustCompile(`\d+`)

// NormalizeE164 strips a channel prefix such as "whatsapp:" and returns
// +<digits>, or "" when no digits remain.
func NormalizeE164(value string) string {
	value = strings.TrimSpace(value)
	if i := strings.Index(value, ":"); i >= 0 {
		value = value[i+1:]
	}
	digits := sanitizePhone(value)
	if digits == "" {
		return ""
	}
	return "+" + digits
}

func sanitizePhone(value string) string {
	return strings.Join(phoneDigitsRe.FindAllString(value, -1), "")
}
