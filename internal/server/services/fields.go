package services

import (
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/mediakeeper/internal/server/auth"
)

// ErrInvalidInput wraps every *FieldError returned by the service.
var ErrInvalidInput = errors.New("invalid input")

// FieldError names the account field that failed validation.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, msg string) error {
	return fmt.Errorf("%w: %w", ErrInvalidInput, &FieldError{Field: field, Message: msg})
}

var usernamePattern = regexp.MustCompile(`^[a-z0-9_.]{3,30}$`)

func validateID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return invalid("id", "Invalid user id")
	}
	return nil
}

// validateUsername expects an already normalized username.
func validateUsername(username string) error {
	if !usernamePattern.MatchString(username) {
		return invalid("username", "Username must be 3-30 characters of lowercase letters, digits, '_' or '.'")
	}
	return nil
}

func validateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email, ".") {
		return invalid("email", "Please provide a valid email")
	}
	return nil
}

func validateFullName(name string) error {
	n := utf8.RuneCountInString(name)
	if n < 2 || n > 50 {
		return invalid("fullName", "Full name must be 2-50 characters")
	}
	for _, r := range name {
		if !unicode.IsLetter(r) && r != ' ' {
			return invalid("fullName", "Full name may contain only letters and spaces")
		}
	}
	return nil
}

func validateBio(bio string) error {
	if utf8.RuneCountInString(bio) > 200 {
		return invalid("bio", "Bio cannot exceed 200 characters")
	}
	return nil
}

func validatePassword(password string) error {
	if utf8.RuneCountInString(password) < 6 {
		return invalid("password", "Password must be at least 6 characters")
	}
	if len(password) > auth.MaxPasswordBytes {
		return invalid("password", "Password cannot exceed 72 bytes")
	}
	return nil
}
