package gatekeeper

import "context"

// UserRepository is the external user store. Implementations return
// ErrUserNotFound for absent records and may wrap infrastructure failures
// however they like; the service passes those through.
type UserRepository interface {
	FindByID(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)

	// Save upserts the user and returns the stored record (with ID set
	// on first insert).
	Save(ctx context.Context, user *User) (*User, error)
}

// PasswordHasher is a one-way password verifier. The algorithm is a
// pluggable choice; Argon2Hasher is the shipped default.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Matches(plain, hash string) (bool, error)
}

// MailSender delivers notification mail. Calls are fire-and-forget from the
// core's perspective: a delivery failure never rolls back token issuance.
type MailSender interface {
	Send(to, subject, body string) error
}

// QRRenderer turns provisioning data into an image for authenticator
// enrollment.
type QRRenderer interface {
	Render(data ProvisioningData) (image []byte, mimeType string, err error)
}
