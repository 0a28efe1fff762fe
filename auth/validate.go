package auth

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// emailPart excludes @ and every character JavaScript treats as whitespace,
// which is wider than RE2's \s.
const emailPart = `[^\s\v\p{Z}\x{FEFF}@]+`

var (
	emailRegexp    = regexp.MustCompile(`^` + emailPart + `@` + emailPart + `\.` + emailPart + `$`)
	usernameRegexp = regexp.MustCompile(`^[a-z0-9_.]{2,}$`)
)

const (
	minPasswordLength = 8
	passwordSpecials  = "!@#$%^&*"
	lineTerminators   = "\n\r\u2028\u2029"
)

// IdentifierKind is the result of classifying a combined email-or-username field.
type IdentifierKind int

const (
	IdentifierInvalid IdentifierKind = iota
	IdentifierEmail
	IdentifierUsername
)

func (k IdentifierKind) String() string {
	switch k {
	case IdentifierEmail:
		return "email"
	case IdentifierUsername:
		return "username"
	default:
		return "invalid"
	}
}

// IsValidEmail accepts the loose local@domain.tld shape, not full RFC 5322.
func IsValidEmail(s string) bool {
	return emailRegexp.MatchString(s)
}

// IsValidPassword requires at least eight characters on a single line with a
// digit, one of !@#$%^&*, a lowercase and an uppercase letter.
func IsValidPassword(s string) bool {
	if utf8.RuneCountInString(s) < minPasswordLength || strings.ContainsAny(s, lineTerminators) {
		return false
	}

	var digit, special, lower, upper bool
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digit = true
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case strings.ContainsRune(passwordSpecials, r):
			special = true
		}
	}
	return digit && special && lower && upper
}

func IsValidUsername(s string) bool {
	return usernameRegexp.MatchString(s)
}

// ClassifyIdentifier checks email shape first, so a string valid as both is an email.
func ClassifyIdentifier(s string) IdentifierKind {
	if IsValidEmail(s) {
		return IdentifierEmail
	}
	if IsValidUsername(s) {
		return IdentifierUsername
	}
	return IdentifierInvalid
}
