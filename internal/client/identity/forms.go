package identity

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// SignupForm is the input of SubmitSignup.
type SignupForm struct {
	Username string
	Email    string
	Password string
}

func (f SignupForm) normalize() SignupForm {
	f.Username = strings.TrimSpace(f.Username)
	f.Email = strings.TrimSpace(f.Email)
	return f
}

func (f SignupForm) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.Username, validation.Required, validation.Length(1, 100)),
		validation.Field(&f.Email, validation.Required, is.Email),
		validation.Field(&f.Password, validation.Required),
	)
}

type loginForm struct {
	Username string
	Password string
}

func (f loginForm) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.Username, validation.Required),
		validation.Field(&f.Password, validation.Required),
	)
}

type emailForm struct {
	Email string
}

func (f emailForm) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.Email, validation.Required, is.Email),
	)
}

type otpForm struct {
	Code string
}

func (f otpForm) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.Code, validation.Required, is.Digit),
	)
}

type newPasswordForm struct {
	NewPassword string
}

func (f newPasswordForm) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.NewPassword, validation.Required),
	)
}

// ProfileUpdate is the input of UpdateProfile. An empty field means "leave
// as is"; a given email must be a valid address.
type ProfileUpdate struct {
	Username string
	Email    string
}

func (f ProfileUpdate) normalize() ProfileUpdate {
	f.Username = strings.TrimSpace(f.Username)
	f.Email = strings.TrimSpace(f.Email)
	return f
}

func (f ProfileUpdate) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.Username, validation.Length(1, 100)),
		validation.Field(&f.Email, is.Email),
	)
}

// OTPOption configures SubmitOTP.
type OTPOption func(*otpOptions)

type otpOptions struct {
	newPassword string
}

// WithNewPassword supplies the password to set when answering a
// password-reset challenge. Other challenges ignore it.
func WithNewPassword(pw string) OTPOption {
	return func(o *otpOptions) { o.newPassword = pw }
}
