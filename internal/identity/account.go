// Package identity is the dashboard's identity provider: email/password, Google and phone sign-in,
// session tokens, and a stream of sign-in/sign-out events.
package identity

import "time"

// Sign-in providers recorded on a principal.
const (
	ProviderPassword = "password"
	ProviderGoogle   = "google.com"
	ProviderPhone    = "phone"
)

// Account is a registered principal. Each sign-in method fills its own identifier column.
type Account struct {
	ID            string `gorm:"primaryKey;size:26"`
	Email         string `gorm:"index;size:320"`
	PhoneNumber   string `gorm:"index;size:20"`
	GoogleSubject string `gorm:"index;size:255"`
	PasswordHash  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// TableName specifies the table name for the Account model.
func (Account) TableName() string {
	return "accounts"
}

// Principal is the authenticated user as seen by the rest of the service.
type Principal struct {
	UID         string `json:"uid"`
	Email       string `json:"email,omitempty"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
	Provider    string `json:"provider"`
}

func (a Account) principal(provider string) Principal {
	return Principal{
		UID:         a.ID,
		Email:       a.Email,
		PhoneNumber: a.PhoneNumber,
		Provider:    provider,
	}
}

// Session is the result of a successful sign-in.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	Principal Principal `json:"user"`
}

// Event reports a sign-in or sign-out of a principal.
type Event struct {
	Principal Principal
	SignedIn  bool
}
