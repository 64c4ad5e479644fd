package auth

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"chatsync/domain"
	"chatsync/errors"
)

var validate = validator.New()

// ValidateLogin checks the credential shape before any network call is made.
// Username is ignored for login.
func ValidateLogin(creds domain.Credentials) error {
	probe := domain.Credentials{Email: creds.Email, Password: creds.Password}
	if err := validate.Struct(probe); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrInvalidCredentials, err)
	}
	return nil
}

// ValidateRegister additionally requires a username.
func ValidateRegister(creds domain.Credentials) error {
	if creds.Username == "" {
		return fmt.Errorf("%w: username is required", errors.ErrInvalidCredentials)
	}
	if err := validate.Struct(creds); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrInvalidCredentials, err)
	}
	return nil
}
