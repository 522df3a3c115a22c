package domain

import "time"

// User is a registered account. The password hash never leaves the service.
type User struct {
	ID           uint      `json:"id"`
	Name         string    `json:"name"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// UserSummary is the public view of a user returned by the API.
type UserSummary struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// Summary returns the public view of the user.
func (u User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Username: u.Username, Email: u.Email}
}

// Token is an opaque bearer credential. A user holds at most one live
// token; issuing a new one removes any prior rows for that user.
type Token struct {
	ID        uint      `json:"id"`
	UserID    uint      `json:"userId"`
	Value     string    `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
}

// Post is a short caption owned by a user, immutable after creation.
// ImageURL is computed at read time from ImageKey and never persisted.
type Post struct {
	ID        uint      `json:"id"`
	UserID    uint      `json:"userId"`
	Caption   string    `json:"caption"`
	ImageKey  string    `json:"-"`
	ImageURL  string    `json:"imageUrl,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// PostWithAuthor pairs a post with its owner's public summary.
type PostWithAuthor struct {
	Post Post        `json:"post"`
	User UserSummary `json:"user"`
}
