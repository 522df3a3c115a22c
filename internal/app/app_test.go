package app

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
	"postline/pkg/auth"
	"postline/pkg/domain"
	"postline/pkg/store"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	a, err := New(Config{
		Store:  store.NewMemoryStore(),
		Hasher: auth.NewBcryptHasher(bcrypt.MinCost),
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	return a
}

func mustRegister(t *testing.T, a *App, name, username, email, password string) domain.UserSummary {
	t.Helper()
	summary, err := a.Register(name, username, email, password, password)
	if err != nil {
		t.Fatalf("register %s: %v", username, err)
	}
	return summary
}

func mustLogin(t *testing.T, a *App, identifier, password string) (string, domain.User) {
	t.Helper()
	token, _, err := a.Login(identifier, password)
	if err != nil {
		t.Fatalf("login %s: %v", identifier, err)
	}
	user, ok := a.UserFromToken(token)
	if !ok {
		t.Fatalf("token should resolve after login")
	}
	return token, user
}

func TestRegisterReturnsSummaryWithGeneratedID(t *testing.T) {
	a := newTestApp(t)
	summary := mustRegister(t, a, "Alice", "alice1", "a@x.com", "pw")
	if summary.ID == 0 {
		t.Fatalf("expected generated id")
	}
	if summary.Username != "alice1" || summary.Email != "a@x.com" {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestRegisterNormalizesEmailCase(t *testing.T) {
	a := newTestApp(t)
	summary := mustRegister(t, a, "Alice", "alice1", "Alice@X.Com", "pw")
	if summary.Email != "alice@x.com" {
		t.Fatalf("email not lowercased: %q", summary.Email)
	}
}

func TestRegisterConflicts(t *testing.T) {
	tests := []struct {
		name     string
		username string
		email    string
		wantErr  error
	}{
		{"both fields collide", "alice1", "a@x.com", ErrEmailAndUsernameTaken},
		{"only email collides", "other", "a@x.com", ErrEmailTaken},
		{"only username collides", "alice1", "other@x.com", ErrUsernameTaken},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			a := newTestApp(t)
			mustRegister(t, a, "Alice", "alice1", "a@x.com", "pw")
			_, err := a.Register("Bob", tc.username, tc.email, "pw", "pw")
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("register error = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestRegisterPasswordConfirmationMismatch(t *testing.T) {
	a := newTestApp(t)
	_, err := a.Register("Alice", "alice1", "a@x.com", "pw", "other")
	if !errors.Is(err, ErrPasswordMismatch) {
		t.Fatalf("register error = %v, want %v", err, ErrPasswordMismatch)
	}
}

func TestRegisterRequiresAllFields(t *testing.T) {
	a := newTestApp(t)
	if _, err := a.Register("", "alice1", "a@x.com", "pw", "pw"); !errors.Is(err, ErrFieldsRequired) {
		t.Fatalf("missing name: got %v", err)
	}
	if _, err := a.Register("Alice", "alice1", "a@x.com", "", ""); !errors.Is(err, ErrFieldsRequired) {
		t.Fatalf("missing password: got %v", err)
	}
}

func TestLoginRotatesToken(t *testing.T) {
	a := newTestApp(t)
	mustRegister(t, a, "Alice", "alice1", "a@x.com", "pw")

	first, _ := mustLogin(t, a, "a@x.com", "pw")
	second, _ := mustLogin(t, a, "a@x.com", "pw")
	if first == second {
		t.Fatalf("expected a fresh token on re-login")
	}
	if _, ok := a.UserFromToken(first); ok {
		t.Fatalf("old token should stop authenticating after re-login")
	}
	if _, ok := a.UserFromToken(second); !ok {
		t.Fatalf("new token should authenticate")
	}
}

func TestLoginMatchesUsernameToo(t *testing.T) {
	a := newTestApp(t)
	mustRegister(t, a, "Alice", "alice1", "a@x.com", "pw")
	if _, _, err := a.Login("alice1", "pw"); err != nil {
		t.Fatalf("login by username: %v", err)
	}
}

func TestLoginUnknownIdentifierIsGeneric(t *testing.T) {
	a := newTestApp(t)
	mustRegister(t, a, "Alice", "alice1", "a@x.com", "pw")
	_, _, err := a.Login("nobody@x.com", "pw")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("login error = %v, want %v", err, ErrInvalidCredentials)
	}
	// The message must not reveal which field was unmatched.
	if msg := err.Error(); msg != ErrInvalidCredentials.Error() {
		t.Fatalf("unexpected error message %q", msg)
	}
}

func TestLoginWrongPasswordIsUnauthorizedNotNotFound(t *testing.T) {
	a := newTestApp(t)
	mustRegister(t, a, "Alice", "alice1", "a@x.com", "pw")
	_, _, err := a.Login("a@x.com", "wrong")
	if !errors.Is(err, ErrWrongPassword) {
		t.Fatalf("login error = %v, want %v", err, ErrWrongPassword)
	}
}

func TestLogoutInvalidatesTokenAndIsIdempotent(t *testing.T) {
	a := newTestApp(t)
	mustRegister(t, a, "Alice", "alice1", "a@x.com", "pw")
	token, user := mustLogin(t, a, "a@x.com", "pw")

	if err := a.Logout(user); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, ok := a.UserFromToken(token); ok {
		t.Fatalf("token should stop authenticating after logout")
	}
	if err := a.Logout(user); err != nil {
		t.Fatalf("second logout should be a no-op, got %v", err)
	}
}

func TestUpdateUserAppliesPartialFields(t *testing.T) {
	a := newTestApp(t)
	mustRegister(t, a, "Alice", "alice1", "a@x.com", "pw")
	_, user := mustLogin(t, a, "a@x.com", "pw")

	newEmail := "alice@new.com"
	summary, err := a.UpdateUser(user, user.ID, UserUpdate{Email: &newEmail})
	if err != nil {
		t.Fatalf("update user: %v", err)
	}
	if summary.Email != "alice@new.com" {
		t.Fatalf("email not updated: %q", summary.Email)
	}
	if summary.Username != "alice1" {
		t.Fatalf("username should be unchanged, got %q", summary.Username)
	}
}

func TestUpdateUserRejectsOtherCallers(t *testing.T) {
	a := newTestApp(t)
	mustRegister(t, a, "Alice", "alice1", "a@x.com", "pw")
	bob := mustRegister(t, a, "Bob", "bob1", "b@x.com", "pw")
	_, alice := mustLogin(t, a, "a@x.com", "pw")

	name := "Mallory"
	if _, err := a.UpdateUser(alice, bob.ID, UserUpdate{Name: &name}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("update error = %v, want %v", err, ErrForbidden)
	}
	if err := a.DeleteUser(alice, bob.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("delete error = %v, want %v", err, ErrForbidden)
	}
}

func TestUpdateUserRechecksUniqueness(t *testing.T) {
	a := newTestApp(t)
	mustRegister(t, a, "Alice", "alice1", "a@x.com", "pw")
	mustRegister(t, a, "Bob", "bob1", "b@x.com", "pw")
	_, alice := mustLogin(t, a, "a@x.com", "pw")

	taken := "b@x.com"
	if _, err := a.UpdateUser(alice, alice.ID, UserUpdate{Email: &taken}); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("update error = %v, want %v", err, ErrEmailTaken)
	}

	// Re-submitting the current values must not conflict with yourself.
	same := "a@x.com"
	if _, err := a.UpdateUser(alice, alice.ID, UserUpdate{Email: &same}); err != nil {
		t.Fatalf("update with own email: %v", err)
	}
}

func TestDeleteUserCascades(t *testing.T) {
	a := newTestApp(t)
	mustRegister(t, a, "Alice", "alice1", "a@x.com", "pw")
	token, alice := mustLogin(t, a, "a@x.com", "pw")
	if _, err := a.CreatePost(context.Background(), alice, "hello", ""); err != nil {
		t.Fatalf("create post: %v", err)
	}

	if err := a.DeleteUser(alice, alice.ID); err != nil {
		t.Fatalf("delete user: %v", err)
	}
	if _, ok := a.UserFromToken(token); ok {
		t.Fatalf("token should die with the account")
	}
	if _, _, err := a.Login("a@x.com", "pw"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("deleted account should not log in, got %v", err)
	}
}

func TestListUsersReturnsPublicSummaries(t *testing.T) {
	a := newTestApp(t)
	mustRegister(t, a, "Alice", "alice1", "a@x.com", "pw")
	mustRegister(t, a, "Bob", "bob1", "b@x.com", "pw")

	users, err := a.ListUsers()
	if err != nil {
		t.Fatalf("list users: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("expected 2 users, got %d", len(users))
	}
	if users[0].Username != "alice1" || users[1].Username != "bob1" {
		t.Fatalf("unexpected order: %+v", users)
	}
}

func TestCreatePostRequiresCaption(t *testing.T) {
	a := newTestApp(t)
	mustRegister(t, a, "Alice", "alice1", "a@x.com", "pw")
	_, alice := mustLogin(t, a, "a@x.com", "pw")
	if _, err := a.CreatePost(context.Background(), alice, "   ", ""); !errors.Is(err, ErrCaptionRequired) {
		t.Fatalf("create post error = %v, want %v", err, ErrCaptionRequired)
	}
}

func TestListPostsScopedToOwner(t *testing.T) {
	a := newTestApp(t)
	mustRegister(t, a, "Alice", "alice1", "a@x.com", "pw")
	mustRegister(t, a, "Bob", "bob1", "b@x.com", "pw")
	_, alice := mustLogin(t, a, "a@x.com", "pw")
	_, bob := mustLogin(t, a, "b@x.com", "pw")

	if _, err := a.CreatePost(context.Background(), alice, "hello", ""); err != nil {
		t.Fatalf("create post: %v", err)
	}

	alicePosts, err := a.ListPosts(context.Background(), alice)
	if err != nil {
		t.Fatalf("list posts: %v", err)
	}
	if len(alicePosts) != 1 {
		t.Fatalf("expected 1 post for alice, got %d", len(alicePosts))
	}
	if alicePosts[0].Post.Caption != "hello" || alicePosts[0].User.Username != "alice1" {
		t.Fatalf("unexpected post pairing: %+v", alicePosts[0])
	}
	if alicePosts[0].Post.CreatedAt.IsZero() {
		t.Fatalf("expected server-assigned creation timestamp")
	}

	bobPosts, err := a.ListPosts(context.Background(), bob)
	if err != nil {
		t.Fatalf("list posts: %v", err)
	}
	if len(bobPosts) != 0 {
		t.Fatalf("bob should not see alice's posts, got %d", len(bobPosts))
	}
}

// fakeMedia records uploads and presigns deterministic URLs.
type fakeMedia struct {
	objects map[string][]byte
}

func (f *fakeMedia) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if f.objects == nil {
		f.objects = make(map[string][]byte)
	}
	f.objects[key] = data
	return nil
}

func (f *fakeMedia) PresignGet(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://media.test/" + key, nil
}

func (f *fakeMedia) Delete(_ context.Context, key string) error {
	delete(f.objects, key)
	return nil
}

func TestCreatePostStoresImage(t *testing.T) {
	media := &fakeMedia{}
	a, err := New(Config{
		Store:  store.NewMemoryStore(),
		Hasher: auth.NewBcryptHasher(bcrypt.MinCost),
		Media:  media,
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	mustRegister(t, a, "Alice", "alice1", "a@x.com", "pw")
	_, alice := mustLogin(t, a, "a@x.com", "pw")

	imageData := base64.StdEncoding.EncodeToString([]byte("fake-image-bytes"))
	post, err := a.CreatePost(context.Background(), alice, "look", imageData)
	if err != nil {
		t.Fatalf("create post with image: %v", err)
	}
	if len(media.objects) != 1 {
		t.Fatalf("expected 1 stored object, got %d", len(media.objects))
	}
	if post.ImageURL == "" {
		t.Fatalf("expected presigned image URL on response")
	}

	posts, err := a.ListPosts(context.Background(), alice)
	if err != nil {
		t.Fatalf("list posts: %v", err)
	}
	if posts[0].Post.ImageURL == "" {
		t.Fatalf("expected image URL on listed post")
	}
}

func TestCreatePostImageErrors(t *testing.T) {
	a := newTestApp(t)
	mustRegister(t, a, "Alice", "alice1", "a@x.com", "pw")
	_, alice := mustLogin(t, a, "a@x.com", "pw")

	if _, err := a.CreatePost(context.Background(), alice, "look", "zzz"); !errors.Is(err, ErrImageUnsupported) {
		t.Fatalf("expected %v without media store, got %v", ErrImageUnsupported, err)
	}

	withMedia, err := New(Config{
		Store:  store.NewMemoryStore(),
		Hasher: auth.NewBcryptHasher(bcrypt.MinCost),
		Media:  &fakeMedia{},
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	mustRegister(t, withMedia, "Alice", "alice1", "a@x.com", "pw")
	_, alice = mustLogin(t, withMedia, "a@x.com", "pw")
	if _, err := withMedia.CreatePost(context.Background(), alice, "look", "not base64 !!!"); !errors.Is(err, ErrInvalidImage) {
		t.Fatalf("expected %v for bad encoding, got %v", ErrInvalidImage, err)
	}
}

func TestAddAndListFriends(t *testing.T) {
	a := newTestApp(t)
	mustRegister(t, a, "Alice", "alice1", "a@x.com", "pw")
	bob := mustRegister(t, a, "Bob", "bob1", "b@x.com", "pw")
	_, alice := mustLogin(t, a, "a@x.com", "pw")

	if err := a.AddFriend(alice, alice.ID); !errors.Is(err, ErrSelfFriend) {
		t.Fatalf("self friend error = %v, want %v", err, ErrSelfFriend)
	}
	if err := a.AddFriend(alice, 9999); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("unknown friend error = %v, want %v", err, ErrUserNotFound)
	}
	if err := a.AddFriend(alice, bob.ID); err != nil {
		t.Fatalf("add friend: %v", err)
	}
	// Duplicate pairs are ignored.
	if err := a.AddFriend(alice, bob.ID); err != nil {
		t.Fatalf("duplicate add friend: %v", err)
	}

	friends, err := a.ListFriends(alice)
	if err != nil {
		t.Fatalf("list friends: %v", err)
	}
	if len(friends) != 1 || friends[0].Username != "bob1" {
		t.Fatalf("unexpected friends: %+v", friends)
	}
}
