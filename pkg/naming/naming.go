package naming

import (
	"regexp"
	"strings"

	"k8s.io/apimachinery/pkg/util/validation"
)

var (
	invalidChars = regexp.MustCompile(`[^a-z0-9\-.]`)
	multiDash    = regexp.MustCompile(`-+`)
	multiDot     = regexp.MustCompile(`\.+`)
)

// ToRFC1123Subdomain converts a string to a valid DNS1123 subdomain:
// lowercase alphanumerics, '-' and '.', alphanumeric at both ends, at most
// 253 characters. Inputs that cannot produce a valid name yield "x".
func ToRFC1123Subdomain(s string) string {
	return sanitize(s, validation.DNS1123SubdomainMaxLength)
}

// ToRFC1123Label converts a string to a valid DNS1123 label value, at most 63
// characters. Inputs that cannot produce a valid value yield "x".
func ToRFC1123Label(s string) string {
	return strings.ReplaceAll(sanitize(s, validation.DNS1123LabelMaxLength), ".", "-")
}

func sanitize(s string, maxLen int) string {
	s = strings.ToLower(s)
	s = invalidChars.ReplaceAllString(s, "-")
	s = multiDash.ReplaceAllString(s, "-")
	s = multiDot.ReplaceAllString(s, ".")
	s = trimNonAlnum(s)
	if s == "" {
		return "x"
	}
	if len(s) > maxLen {
		s = trimNonAlnum(s[:maxLen])
		if s == "" {
			return "x"
		}
	}
	return s
}

func isAlnum(r byte) bool {
	return (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
}

func trimNonAlnum(s string) string {
	for len(s) > 0 && !isAlnum(s[0]) {
		s = s[1:]
	}
	for len(s) > 0 && !isAlnum(s[len(s)-1]) {
		s = s[:len(s)-1]
	}
	return s
}
