package store

import "postline/pkg/domain"

// Store defines persistence operations for users, tokens, posts, and friendships.
type Store interface {
	// users
	CreateUser(u *domain.User) error
	GetUserByID(id uint) (domain.User, bool, error)
	// GetUserByIdentifier matches the identifier against email (lowercased)
	// or username and returns the first match.
	GetUserByIdentifier(identifier string) (domain.User, bool, error)
	// UsersByEmailOrUsername returns every user whose email or username
	// equals the given values. Callers derive which field collided.
	UsersByEmailOrUsername(email, username string) ([]domain.User, error)
	UpdateUser(u domain.User) error
	// DeleteUserCascade removes the user's tokens, posts, and friendship
	// rows along with the user itself.
	DeleteUserCascade(id uint) error
	ListUsers() ([]domain.User, error)

	// tokens
	// RotateToken deletes any live tokens for the user and persists the
	// new value as the single active credential.
	RotateToken(userID uint, value string) error
	GetUserByToken(value string) (domain.User, bool, error)
	DeleteUserTokens(userID uint) error

	// posts
	CreatePost(p *domain.Post) error
	ListPostsByUser(userID uint) ([]domain.Post, error)

	// friendships
	AddFriend(userID, friendID uint) error
	ListFriends(userID uint) ([]domain.User, error)
}
