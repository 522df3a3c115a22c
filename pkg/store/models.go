package store

import "time"

// GORM models used for persistence. The unique indexes on email,
// username, and token value are the storage-layer safety net behind the
// application's check-then-act pre-checks.
type UserModel struct {
	ID           uint      `gorm:"primaryKey"`
	Name         string    `gorm:"not null"`
	Username     string    `gorm:"uniqueIndex;not null"`
	Email        string    `gorm:"uniqueIndex;not null"`
	PasswordHash string    `gorm:"not null"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}

func (UserModel) TableName() string { return "users" }

type TokenModel struct {
	ID        uint      `gorm:"primaryKey"`
	UserID    uint      `gorm:"not null;index"`
	Value     string    `gorm:"uniqueIndex;not null"`
	CreatedAt time.Time `gorm:"not null"`
}

func (TokenModel) TableName() string { return "tokens" }

type PostModel struct {
	ID        uint   `gorm:"primaryKey"`
	UserID    uint   `gorm:"not null;index"`
	Caption   string `gorm:"type:text;not null"`
	ImageKey  string
	CreatedAt time.Time `gorm:"not null;index"`
}

func (PostModel) TableName() string { return "posts" }

type FriendshipModel struct {
	UserID    uint      `gorm:"primaryKey;autoIncrement:false"`
	FriendID  uint      `gorm:"primaryKey;autoIncrement:false"`
	CreatedAt time.Time `gorm:"not null"`
}

func (FriendshipModel) TableName() string { return "friendships" }
