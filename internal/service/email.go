package service

import (
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/sakif/menu-subscriptions/internal/apperror"
)

// MaxEmailLength is the RFC 5321 limit on a forward path.
const MaxEmailLength = 254

// The validator caches struct metadata and is safe for concurrent use.
var validate = validator.New(validator.WithRequiredStructEnabled())

type emailInput struct {
	Email string `validate:"required,max=254,email"`
}

// NormalizeEmail trims surrounding whitespace and lower-cases the address.
func NormalizeEmail(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// validateEmail checks an already normalized address. It must contain an "@",
// the part after the last "@" must contain a ".", and the whole address must
// pass the validator's email grammar.
func validateEmail(email string) error {
	if email == "" {
		return apperror.InvalidEmail("email address is required")
	}

	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return apperror.InvalidEmail("email address must contain a local part and a domain")
	}
	domain := email[at+1:]
	if !strings.Contains(domain, ".") || strings.HasPrefix(domain, ".") || strings.HasSuffix(domain, ".") {
		return apperror.InvalidEmail("email domain must contain a dot-separated name")
	}

	if err := validate.Struct(emailInput{Email: email}); err != nil {
		return apperror.InvalidEmail("email address is not valid")
	}
	return nil
}
