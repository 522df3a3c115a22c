package store

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"postline/pkg/domain"
)

// GormStore implements Store on top of GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens a Postgres connection and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	return NewGormStoreWithDialector(postgres.Open(dsn))
}

// NewGormStoreWithDialector opens the store over any GORM dialector.
// Tests use this with the in-memory sqlite driver.
func NewGormStoreWithDialector(dialector gorm.Dialector) (*GormStore, error) {
	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.AutoMigrate(&UserModel{}, &TokenModel{}, &PostModel{}, &FriendshipModel{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &GormStore{db: db}, nil
}

// CreateUser inserts a user row and fills in the generated id.
func (s *GormStore) CreateUser(u *domain.User) error {
	now := time.Now().UTC()
	model := userToModel(*u)
	model.CreatedAt = now
	model.UpdatedAt = now
	if err := s.db.Create(&model).Error; err != nil {
		return err
	}
	*u = userFromModel(model)
	return nil
}

// GetUserByID returns a user by primary key.
func (s *GormStore) GetUserByID(id uint) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserByIdentifier matches the identifier against email or username.
func (s *GormStore) GetUserByIdentifier(identifier string) (domain.User, bool, error) {
	var model UserModel
	err := s.db.
		Where("email = ? OR username = ?", strings.ToLower(identifier), identifier).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// UsersByEmailOrUsername returns all users colliding on either field.
func (s *GormStore) UsersByEmailOrUsername(email, username string) ([]domain.User, error) {
	var models []UserModel
	if err := s.db.Where("email = ? OR username = ?", email, username).Find(&models).Error; err != nil {
		return nil, err
	}
	return usersFromModels(models), nil
}

// UpdateUser persists changed user fields.
func (s *GormStore) UpdateUser(u domain.User) error {
	return s.db.Model(&UserModel{}).Where("id = ?", u.ID).Updates(map[string]any{
		"name":       u.Name,
		"username":   u.Username,
		"email":      u.Email,
		"updated_at": u.UpdatedAt,
	}).Error
}

// DeleteUserCascade removes the user and everything owned by it in one transaction.
func (s *GormStore) DeleteUserCascade(id uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&TokenModel{}, "user_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Delete(&PostModel{}, "user_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Delete(&FriendshipModel{}, "user_id = ? OR friend_id = ?", id, id).Error; err != nil {
			return err
		}
		return tx.Delete(&UserModel{}, "id = ?", id).Error
	})
}

// ListUsers returns all users ordered by id.
func (s *GormStore) ListUsers() ([]domain.User, error) {
	var models []UserModel
	if err := s.db.Order("id ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	return usersFromModels(models), nil
}

// RotateToken enforces the single-active-session invariant: delete and
// insert run in one transaction so no moment leaves two live tokens.
func (s *GormStore) RotateToken(userID uint, value string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&TokenModel{}, "user_id = ?", userID).Error; err != nil {
			return err
		}
		return tx.Create(&TokenModel{
			UserID:    userID,
			Value:     value,
			CreatedAt: time.Now().UTC(),
		}).Error
	})
}

// GetUserByToken resolves a bearer token to its owning user.
func (s *GormStore) GetUserByToken(value string) (domain.User, bool, error) {
	var token TokenModel
	if err := s.db.First(&token, "value = ?", value).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return s.GetUserByID(token.UserID)
}

// DeleteUserTokens removes all tokens for the user. Deleting zero rows is not an error.
func (s *GormStore) DeleteUserTokens(userID uint) error {
	return s.db.Delete(&TokenModel{}, "user_id = ?", userID).Error
}

// CreatePost inserts a post with a server-assigned creation timestamp.
func (s *GormStore) CreatePost(p *domain.Post) error {
	model := PostModel{
		UserID:    p.UserID,
		Caption:   p.Caption,
		ImageKey:  p.ImageKey,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.db.Create(&model).Error; err != nil {
		return err
	}
	*p = postFromModel(model)
	return nil
}

// ListPostsByUser returns the user's posts, oldest first.
func (s *GormStore) ListPostsByUser(userID uint) ([]domain.Post, error) {
	var models []PostModel
	if err := s.db.Where("user_id = ?", userID).Order("created_at ASC, id ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Post, 0, len(models))
	for _, m := range models {
		res = append(res, postFromModel(m))
	}
	return res, nil
}

// AddFriend records a friendship pair. Duplicate pairs are ignored.
func (s *GormStore) AddFriend(userID, friendID uint) error {
	return s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&FriendshipModel{
		UserID:    userID,
		FriendID:  friendID,
		CreatedAt: time.Now().UTC(),
	}).Error
}

// ListFriends returns the users the given user has added as friends.
func (s *GormStore) ListFriends(userID uint) ([]domain.User, error) {
	var models []UserModel
	err := s.db.
		Joins("JOIN friendships ON friendships.friend_id = users.id").
		Where("friendships.user_id = ?", userID).
		Order("users.id ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return usersFromModels(models), nil
}

func userToModel(u domain.User) UserModel {
	return UserModel{
		ID:           u.ID,
		Name:         u.Name,
		Username:     u.Username,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func userFromModel(m UserModel) domain.User {
	return domain.User{
		ID:           m.ID,
		Name:         m.Name,
		Username:     m.Username,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func usersFromModels(models []UserModel) []domain.User {
	res := make([]domain.User, 0, len(models))
	for _, m := range models {
		res = append(res, userFromModel(m))
	}
	return res
}

func postFromModel(m PostModel) domain.Post {
	return domain.Post{
		ID:        m.ID,
		UserID:    m.UserID,
		Caption:   m.Caption,
		ImageKey:  m.ImageKey,
		CreatedAt: m.CreatedAt,
	}
}
