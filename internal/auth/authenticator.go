// Package auth issues and checks the optional user credentials: bcrypt
// password accounts and HS256 session tokens.
package auth

import (
	"context"

	"github.com/mmynk/splitledger/internal/models"
)

// Authenticator verifies user credentials.
// Implementations decide what a credential is (password, OAuth token, ...).
type Authenticator interface {
	// Register creates a new user account and returns it.
	Register(ctx context.Context, email, displayName, credential string) (*models.User, error)

	// Authenticate verifies the credential and returns the matching user.
	Authenticate(ctx context.Context, email, credential string) (*models.User, error)

	// ValidateCredential checks whether a credential is acceptable for registration.
	ValidateCredential(credential string) error
}
