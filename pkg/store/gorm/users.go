package gorm

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mavrin/vpncore/pkg/model"
	"github.com/mavrin/vpncore/pkg/store"
)

// Ensure UsersStore implements store.UsersStore
var _ store.UsersStore = (*UsersStore)(nil)

// UsersStore implements store.UsersStore using GORM
type UsersStore struct {
	db *gorm.DB
}

// NewUsersStore creates a new UsersStore
func NewUsersStore(db *gorm.DB) *UsersStore {
	return &UsersStore{db: db}
}

// Ensure creates the user if missing and refreshes the username.
func (s *UsersStore) Ensure(ctx context.Context, userID, username string) error {
	u := model.User{UserID: userID, Username: username}
	tx := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"username"}),
	}).Create(&u)
	return translate(tx.Error)
}

// ByID fetches a user.
func (s *UsersStore) ByID(ctx context.Context, userID string) (*model.User, error) {
	var u model.User
	tx := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&u)
	if tx.Error != nil {
		return nil, translate(tx.Error)
	}
	return &u, nil
}

// Deactivate flags a user as deactivated.
func (s *UsersStore) Deactivate(ctx context.Context, userID string) error {
	tx := s.db.WithContext(ctx).
		Model(&model.User{}).
		Where("user_id = ? AND deactivated = false", userID).
		Update("deactivated", true)
	return casResult(tx)
}
