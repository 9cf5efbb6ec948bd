package auth

import (
	"chat-presence/errors"
	"fmt"
	"unicode"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type SignupRequest struct {
	FullName string `json:"fullName" validate:"required,min=2,max=64"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func ValidateSignup(req SignupRequest) error {
	if err := validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrInvalidRequest, err)
	}

	if !isPasswordComplex(req.Password) {
		return errors.ErrInvalidPassword
	}
	return nil
}

func ValidateLogin(req LoginRequest) error {
	if err := validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrInvalidRequest, err)
	}
	return nil
}

func isPasswordComplex(s string) bool {
	var (
		hasUpper  = false
		hasLower  = false
		hasNumber = false
	)
	for _, char := range s {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsNumber(char):
			hasNumber = true
		}
	}
	return hasUpper && hasLower && hasNumber
}
