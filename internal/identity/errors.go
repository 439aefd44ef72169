package identity

import "errors"

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrWrongPassword      = errors.New("wrong password")
	ErrEmailInUse         = errors.New("email already in use")
	ErrWeakPassword       = errors.New("weak password")
	ErrInvalidEmail       = errors.New("invalid email")
	ErrTooManyRequests    = errors.New("too many requests")
	ErrInvalidPhoneNumber = errors.New("invalid phone number")
	ErrMissingPhoneNumber = errors.New("missing phone number")
	ErrMissingCode        = errors.New("missing verification code")
	ErrInvalidCode        = errors.New("invalid verification code")
	ErrRecaptchaFailed    = errors.New("recaptcha verification failed")
	ErrGoogleRejected     = errors.New("google sign-in rejected")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

var messages = []struct {
	err error
	msg string
}{
	{ErrUserNotFound, "No account found with this email address."},
	{ErrWrongPassword, "Incorrect password."},
	{ErrEmailInUse, "An account with this email already exists."},
	{ErrWeakPassword, "Password should be at least 6 characters."},
	{ErrInvalidEmail, "Please enter a valid email address."},
	{ErrTooManyRequests, "Too many failed attempts. Please try again later."},
	{ErrGoogleRejected, "Sign-in popup was closed before completion."},
	{ErrInvalidPhoneNumber, "Please enter a valid phone number."},
	{ErrMissingPhoneNumber, "Please enter a phone number"},
	{ErrMissingCode, "Please enter the verification code"},
	{ErrInvalidCode, "Invalid verification code"},
	{ErrRecaptchaFailed, "reCAPTCHA verification failed. Please try again."},
	{ErrInvalidToken, "Your session has expired. Please sign in again."},
}

// Message returns the text shown to the user for err.
func Message(err error) string {
	for _, m := range messages {
		if errors.Is(err, m.err) {
			return m.msg
		}
	}
	return "An error occurred. Please try again."
}

// IsUserError reports whether err was caused by the request rather than by the service.
func IsUserError(err error) bool {
	for _, m := range messages {
		if errors.Is(err, m.err) {
			return true
		}
	}
	return false
}
