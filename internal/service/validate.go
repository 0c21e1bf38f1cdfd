package service

import (
	"strings"

	"github.com/google/uuid"
)

// isValidEmail does a basic structural check.
func isValidEmail(email string) bool {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return false
	}
	return len(parts[0]) > 0 && strings.Contains(parts[1], ".") &&
		!strings.HasPrefix(parts[1], ".") && !strings.HasSuffix(parts[1], ".") &&
		!strings.ContainsAny(email, " \t\r\n")
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// newInvitationCode returns "INV-" followed by 12 upper-case hex digits.
func newInvitationCode() string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "INV-" + strings.ToUpper(hex[:12])
}
