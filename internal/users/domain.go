package users

import "time"

// User is the identity record owned by the Store. Other components
// receive copies and mutate only through Store operations.
type User struct {
	ID            int64      `json:"userId"`
	FirstName     string     `json:"firstName"`
	LastName      string     `json:"lastName"`
	Email         string     `json:"email"`
	EmailVerified bool       `json:"emailVerified"`
	PasswordHash  *string    `json:"passwordHash,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
	LastLoginAt   *time.Time `json:"lastLoginAt,omitempty"`
}

// FederatedIdentity links a User to an external identity provider
// account. The pair (Provider, ProviderID) is unique.
type FederatedIdentity struct {
	ID           int64
	UserID       int64
	Provider     string
	ProviderID   string
	AccessToken  string
	RefreshToken string
}
