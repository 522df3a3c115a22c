package store

import (
	"sort"
	"strings"
	"sync"
	"time"

	"postline/pkg/domain"
)

// MemoryStore keeps all rows in-process. Tests use it in place of Postgres.
type MemoryStore struct {
	mu      sync.RWMutex
	nextID  uint
	users   map[uint]domain.User
	tokens  map[string]uint   // token value -> user ID
	posts   map[uint][]domain.Post
	friends map[uint][]uint
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextID:  1,
		users:   make(map[uint]domain.User),
		tokens:  make(map[string]uint),
		posts:   make(map[uint][]domain.Post),
		friends: make(map[uint][]uint),
	}
}

// CreateUser assigns the next id and stores the user.
func (m *MemoryStore) CreateUser(u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	u.ID = m.nextID
	m.nextID++
	u.CreatedAt = now
	u.UpdatedAt = now
	m.users[u.ID] = *u
	return nil
}

// GetUserByID returns a user by id.
func (m *MemoryStore) GetUserByID(id uint) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	return u, ok, nil
}

// GetUserByIdentifier matches email (lowercased) or username.
func (m *MemoryStore) GetUserByIdentifier(identifier string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	email := strings.ToLower(identifier)
	for _, id := range m.sortedUserIDs() {
		u := m.users[id]
		if u.Email == email || u.Username == identifier {
			return u, true, nil
		}
	}
	return domain.User{}, false, nil
}

// UsersByEmailOrUsername returns users colliding on either field.
func (m *MemoryStore) UsersByEmailOrUsername(email, username string) ([]domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var res []domain.User
	for _, id := range m.sortedUserIDs() {
		u := m.users[id]
		if u.Email == email || u.Username == username {
			res = append(res, u)
		}
	}
	return res, nil
}

// UpdateUser replaces a stored user row.
func (m *MemoryStore) UpdateUser(u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.ID]; ok {
		m.users[u.ID] = u
	}
	return nil
}

// DeleteUserCascade removes the user plus its tokens, posts, and friendships.
func (m *MemoryStore) DeleteUserCascade(id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users, id)
	delete(m.posts, id)
	delete(m.friends, id)
	for value, userID := range m.tokens {
		if userID == id {
			delete(m.tokens, value)
		}
	}
	for userID, list := range m.friends {
		filtered := list[:0]
		for _, friendID := range list {
			if friendID != id {
				filtered = append(filtered, friendID)
			}
		}
		m.friends[userID] = filtered
	}
	return nil
}

// ListUsers returns all users ordered by id.
func (m *MemoryStore) ListUsers() ([]domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := m.sortedUserIDs()
	res := make([]domain.User, 0, len(ids))
	for _, id := range ids {
		res = append(res, m.users[id])
	}
	return res, nil
}

// RotateToken drops the user's live tokens and records the new one.
func (m *MemoryStore) RotateToken(userID uint, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for v, id := range m.tokens {
		if id == userID {
			delete(m.tokens, v)
		}
	}
	m.tokens[value] = userID
	return nil
}

// GetUserByToken resolves a bearer token to its owning user.
func (m *MemoryStore) GetUserByToken(value string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	userID, ok := m.tokens[value]
	if !ok {
		return domain.User{}, false, nil
	}
	u, ok := m.users[userID]
	return u, ok, nil
}

// DeleteUserTokens removes every token held by the user.
func (m *MemoryStore) DeleteUserTokens(userID uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for v, id := range m.tokens {
		if id == userID {
			delete(m.tokens, v)
		}
	}
	return nil
}

// CreatePost stores a post with a server-assigned id and timestamp.
func (m *MemoryStore) CreatePost(p *domain.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = m.nextID
	m.nextID++
	p.CreatedAt = time.Now().UTC()
	m.posts[p.UserID] = append(m.posts[p.UserID], *p)
	return nil
}

// ListPostsByUser returns the user's posts in insertion order.
func (m *MemoryStore) ListPostsByUser(userID uint) ([]domain.Post, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Post, len(m.posts[userID]))
	copy(res, m.posts[userID])
	return res, nil
}

// AddFriend records a friendship pair, ignoring duplicates.
func (m *MemoryStore) AddFriend(userID, friendID uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.friends[userID] {
		if id == friendID {
			return nil
		}
	}
	m.friends[userID] = append(m.friends[userID], friendID)
	return nil
}

// ListFriends returns users the given user has added as friends.
func (m *MemoryStore) ListFriends(userID uint) ([]domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := append([]uint(nil), m.friends[userID]...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	res := make([]domain.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			res = append(res, u)
		}
	}
	return res, nil
}

func (m *MemoryStore) sortedUserIDs() []uint {
	ids := make([]uint, 0, len(m.users))
	for id := range m.users {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
