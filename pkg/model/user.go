package model

import "time"

// User represents a bot user. Users are created on first interaction and
// are never deleted, only deactivated.
type User struct {
	UserID      string    `gorm:"column:user_id;primaryKey"`
	Username    string    `gorm:"column:username"`
	Deactivated bool      `gorm:"column:deactivated"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (User) TableName() string {
	return "users"
}
