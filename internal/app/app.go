package app

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"postline/pkg/auth"
	"postline/pkg/domain"
	"postline/pkg/storage"
	"postline/pkg/store"
)

// Config holds runtime configuration for the core application.
type Config struct {
	DatabaseURL string
	BcryptCost  int
	MediaURLTTL time.Duration

	// Optional pre-built dependencies. Tests inject these; production
	// wiring leaves them nil and lets New build the defaults.
	Store  store.Store
	Hasher auth.Hasher
	Media  storage.ObjectStore
}

// App is the core application service wiring storage, hashing, and media together.
type App struct {
	store  store.Store
	hasher auth.Hasher
	media  storage.ObjectStore
	urlTTL time.Duration
}

// New constructs the application with database storage and a bcrypt hasher.
func New(cfg Config) (*App, error) {
	dataStore := cfg.Store
	if dataStore == nil {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("database URL required")
		}
		var err error
		dataStore, err = store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
	}
	hasher := cfg.Hasher
	if hasher == nil {
		hasher = auth.NewBcryptHasher(cfg.BcryptCost)
	}
	urlTTL := cfg.MediaURLTTL
	if urlTTL == 0 {
		urlTTL = time.Hour
	}
	return &App{
		store:  dataStore,
		hasher: hasher,
		media:  cfg.Media,
		urlTTL: urlTTL,
	}, nil
}

// Register creates a new account. The conflict pre-check runs before the
// password confirmation so the caller learns about a taken email or
// username first; the storage layer's unique indexes remain the safety
// net against concurrent registrations.
func (a *App) Register(name, username, email, password, verifyPassword string) (domain.UserSummary, error) {
	name = strings.TrimSpace(name)
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(strings.ToLower(email))
	if name == "" || username == "" || email == "" || password == "" {
		return domain.UserSummary{}, ErrFieldsRequired
	}
	existing, err := a.store.UsersByEmailOrUsername(email, username)
	if err != nil {
		return domain.UserSummary{}, fmt.Errorf("check conflicts: %w", err)
	}
	var emailTaken, usernameTaken bool
	for _, u := range existing {
		if u.Email == email {
			emailTaken = true
		}
		if u.Username == username {
			usernameTaken = true
		}
	}
	switch {
	case emailTaken && usernameTaken:
		return domain.UserSummary{}, ErrEmailAndUsernameTaken
	case emailTaken:
		return domain.UserSummary{}, ErrEmailTaken
	case usernameTaken:
		return domain.UserSummary{}, ErrUsernameTaken
	}
	if password != verifyPassword {
		return domain.UserSummary{}, ErrPasswordMismatch
	}
	passwordHash, err := a.hasher.Hash(password)
	if err != nil {
		return domain.UserSummary{}, err
	}
	user := domain.User{
		Name:         name,
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
	}
	if err := a.store.CreateUser(&user); err != nil {
		return domain.UserSummary{}, fmt.Errorf("save user: %w", err)
	}
	return user.Summary(), nil
}

// Login verifies credentials and issues a fresh bearer token. The
// identifier is matched against email or username. Any previous token
// for the user stops authenticating once the new one is issued.
func (a *App) Login(identifier, password string) (string, domain.UserSummary, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return "", domain.UserSummary{}, ErrInvalidCredentials
	}
	user, ok, err := a.store.GetUserByIdentifier(identifier)
	if err != nil {
		return "", domain.UserSummary{}, fmt.Errorf("fetch user: %w", err)
	}
	if !ok {
		return "", domain.UserSummary{}, ErrInvalidCredentials
	}
	if !a.hasher.Check(password, user.PasswordHash) {
		return "", domain.UserSummary{}, ErrWrongPassword
	}
	token := uuid.NewString()
	if err := a.store.RotateToken(user.ID, token); err != nil {
		return "", domain.UserSummary{}, fmt.Errorf("rotate token: %w", err)
	}
	return token, user.Summary(), nil
}

// Logout deletes all tokens belonging to the user. Idempotent.
func (a *App) Logout(user domain.User) error {
	if err := a.store.DeleteUserTokens(user.ID); err != nil {
		return fmt.Errorf("delete tokens: %w", err)
	}
	return nil
}

// UserFromToken resolves a bearer token to its owning user.
func (a *App) UserFromToken(token string) (domain.User, bool) {
	user, ok, err := a.store.GetUserByToken(token)
	if err != nil {
		slog.Error("resolve token", "err", err)
		return domain.User{}, false
	}
	return user, ok
}

// UserUpdate carries the optional fields of a partial user update.
type UserUpdate struct {
	Name     *string
	Username *string
	Email    *string
}

// UpdateUser applies a partial update to the caller's own account.
// Changed email or username values are re-checked for uniqueness.
func (a *App) UpdateUser(caller domain.User, targetID uint, upd UserUpdate) (domain.UserSummary, error) {
	if caller.ID != targetID {
		return domain.UserSummary{}, ErrForbidden
	}
	target, ok, err := a.store.GetUserByID(targetID)
	if err != nil {
		return domain.UserSummary{}, fmt.Errorf("fetch user: %w", err)
	}
	if !ok {
		return domain.UserSummary{}, ErrUserNotFound
	}

	email := target.Email
	if upd.Email != nil {
		email = strings.TrimSpace(strings.ToLower(*upd.Email))
		if email == "" {
			return domain.UserSummary{}, ErrFieldsRequired
		}
	}
	username := target.Username
	if upd.Username != nil {
		username = strings.TrimSpace(*upd.Username)
		if username == "" {
			return domain.UserSummary{}, ErrFieldsRequired
		}
	}

	if email != target.Email || username != target.Username {
		existing, err := a.store.UsersByEmailOrUsername(email, username)
		if err != nil {
			return domain.UserSummary{}, fmt.Errorf("check conflicts: %w", err)
		}
		var emailTaken, usernameTaken bool
		for _, u := range existing {
			if u.ID == target.ID {
				continue
			}
			if u.Email == email && email != target.Email {
				emailTaken = true
			}
			if u.Username == username && username != target.Username {
				usernameTaken = true
			}
		}
		switch {
		case emailTaken && usernameTaken:
			return domain.UserSummary{}, ErrEmailAndUsernameTaken
		case emailTaken:
			return domain.UserSummary{}, ErrEmailTaken
		case usernameTaken:
			return domain.UserSummary{}, ErrUsernameTaken
		}
	}

	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return domain.UserSummary{}, ErrFieldsRequired
		}
		target.Name = name
	}
	target.Email = email
	target.Username = username
	target.UpdatedAt = time.Now().UTC()
	if err := a.store.UpdateUser(target); err != nil {
		return domain.UserSummary{}, fmt.Errorf("update user: %w", err)
	}
	return target.Summary(), nil
}

// DeleteUser removes the caller's own account along with its tokens,
// posts, and friendship rows.
func (a *App) DeleteUser(caller domain.User, targetID uint) error {
	if caller.ID != targetID {
		return ErrForbidden
	}
	_, ok, err := a.store.GetUserByID(targetID)
	if err != nil {
		return fmt.Errorf("fetch user: %w", err)
	}
	if !ok {
		return ErrUserNotFound
	}
	if err := a.store.DeleteUserCascade(targetID); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

// ListUsers returns all users' public summaries.
func (a *App) ListUsers() ([]domain.UserSummary, error) {
	users, err := a.store.ListUsers()
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return summaries(users), nil
}

// CreatePost persists a caption owned by the user. Optional base64
// image data is written to the object store first; the post row only
// keeps the storage key.
func (a *App) CreatePost(ctx context.Context, user domain.User, caption, imageData string) (domain.Post, error) {
	caption = strings.TrimSpace(caption)
	if caption == "" {
		return domain.Post{}, ErrCaptionRequired
	}
	post := domain.Post{UserID: user.ID, Caption: caption}
	if imageData != "" {
		if a.media == nil {
			return domain.Post{}, ErrImageUnsupported
		}
		raw, err := base64.StdEncoding.DecodeString(imageData)
		if err != nil {
			return domain.Post{}, ErrInvalidImage
		}
		key := fmt.Sprintf("posts/%d/%s", user.ID, uuid.NewString())
		contentType := http.DetectContentType(raw)
		if err := a.media.Put(ctx, key, bytes.NewReader(raw), int64(len(raw)), contentType); err != nil {
			return domain.Post{}, fmt.Errorf("store image: %w", err)
		}
		post.ImageKey = key
	}
	if err := a.store.CreatePost(&post); err != nil {
		return domain.Post{}, fmt.Errorf("save post: %w", err)
	}
	return a.withImageURL(ctx, post), nil
}

// ListPosts returns the user's own posts paired with the author summary.
func (a *App) ListPosts(ctx context.Context, user domain.User) ([]domain.PostWithAuthor, error) {
	posts, err := a.store.ListPostsByUser(user.ID)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	author := user.Summary()
	res := make([]domain.PostWithAuthor, 0, len(posts))
	for _, p := range posts {
		res = append(res, domain.PostWithAuthor{Post: a.withImageURL(ctx, p), User: author})
	}
	return res, nil
}

// AddFriend records a friendship from the user to an existing account.
func (a *App) AddFriend(user domain.User, friendID uint) error {
	if friendID == user.ID {
		return ErrSelfFriend
	}
	_, ok, err := a.store.GetUserByID(friendID)
	if err != nil {
		return fmt.Errorf("fetch user: %w", err)
	}
	if !ok {
		return ErrUserNotFound
	}
	if err := a.store.AddFriend(user.ID, friendID); err != nil {
		return fmt.Errorf("add friend: %w", err)
	}
	return nil
}

// ListFriends returns public summaries of the user's friends.
func (a *App) ListFriends(user domain.User) ([]domain.UserSummary, error) {
	friends, err := a.store.ListFriends(user.ID)
	if err != nil {
		return nil, fmt.Errorf("list friends: %w", err)
	}
	return summaries(friends), nil
}

func (a *App) withImageURL(ctx context.Context, post domain.Post) domain.Post {
	if post.ImageKey == "" || a.media == nil {
		return post
	}
	url, err := a.media.PresignGet(ctx, post.ImageKey, a.urlTTL)
	if err != nil {
		slog.Warn("presign image url", "postId", post.ID, "err", err)
		return post
	}
	post.ImageURL = url
	return post
}

func summaries(users []domain.User) []domain.UserSummary {
	res := make([]domain.UserSummary, 0, len(users))
	for _, u := range users {
		res = append(res, u.Summary())
	}
	return res
}
