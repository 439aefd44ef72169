package models

import "time"

// UserProfile is the users/{uid} document holding profile data and exchange API credentials.
type UserProfile struct {
	UID           string
	Email         string
	PhoneNumber   string
	CreatedAt     time.Time
	WeexAPIKey    string
	WeexSecretKey string
}

// Profile document field names.
const (
	FieldEmail         = "email"
	FieldPhoneNumber   = "phoneNumber"
	FieldCreatedAt     = "createdAt"
	FieldUpdatedAt     = "updatedAt"
	FieldWeexAPIKey    = "weexApiKey"
	FieldWeexSecretKey = "weexSecretKey"
)

// HasAPICredentials reports whether both exchange keys are configured.
func (p UserProfile) HasAPICredentials() bool {
	return p.WeexAPIKey != "" && p.WeexSecretKey != ""
}

// UserProfileFromDocument decodes a profile, falling back to the row timestamp for createdAt.
func UserProfileFromDocument(doc Document) UserProfile {
	f := doc.Fields()
	created := Timestamp(f[FieldCreatedAt])
	if created.IsZero() {
		created = doc.CreatedAt
	}
	uid := Text(f[FieldOwner])
	if uid == "" {
		uid = doc.ID
	}
	return UserProfile{
		UID:           uid,
		Email:         Text(f[FieldEmail]),
		PhoneNumber:   Text(f[FieldPhoneNumber]),
		CreatedAt:     created,
		WeexAPIKey:    Text(f[FieldWeexAPIKey]),
		WeexSecretKey: Text(f[FieldWeexSecretKey]),
	}
}

// NewUserProfileFields is the body written on a principal's first sign-in.
func NewUserProfileFields(uid, email, phone string, now time.Time) map[string]interface{} {
	return map[string]interface{}{
		FieldOwner:         uid,
		FieldEmail:         email,
		FieldPhoneNumber:   phone,
		FieldCreatedAt:     now.UTC().Format(time.RFC3339),
		FieldWeexAPIKey:    "",
		FieldWeexSecretKey: "",
	}
}
