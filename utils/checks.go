package utils

import (
	"net/mail"
	"regexp"
	"strings"
)

var (
	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_]{3,20}$`)
	phoneRegex    = regexp.MustCompile(`^\+?[1-9]\d{0,15}$`)
)

const MinPasswordLength = 6

// ValidUsername: 3-20 letters, digits or underscores
func ValidUsername(username string) bool {
	return usernameRegex.MatchString(username)
}

// NormalizePhone strips whitespace. The result is only meaningful if
// ValidPhone accepts it.
func NormalizePhone(phone string) string {
	return strings.Join(strings.Fields(phone), "")
}

func ValidPhone(phone string) bool {
	return phoneRegex.MatchString(NormalizePhone(phone))
}

func ValidEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}
