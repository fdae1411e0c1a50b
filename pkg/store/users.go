package store

import (
	"context"

	"github.com/mavrin/vpncore/pkg/model"
)

// UsersStore abstracts user registration. Users are created on first
// interaction and only ever deactivated, never deleted.
type UsersStore interface {
	// Ensure creates the user if missing and refreshes the username.
	Ensure(ctx context.Context, userID, username string) error

	// ByID fetches a user.
	ByID(ctx context.Context, userID string) (*model.User, error)

	// Deactivate flags a user as deactivated.
	Deactivate(ctx context.Context, userID string) error
}
