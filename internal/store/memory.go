package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/edusphere/apiserver/types"
	"github.com/google/uuid"
)

// Memory is an in-process credential store. Email and tag name uniqueness
// are enforced under the same lock as the write, so concurrent creates for
// one email yield exactly one winner.
type Memory struct {
	mu       sync.RWMutex
	users    map[string]types.User
	emails   map[string]string
	profiles map[string]types.Profile
	tags     map[string]types.Tag
	files    []types.File
}

func NewMemory() *Memory {
	return &Memory{
		users:    make(map[string]types.User),
		emails:   make(map[string]string),
		profiles: make(map[string]types.Profile),
		tags:     make(map[string]types.Tag),
	}
}

func (m *Memory) Users() *MemoryUserRepository       { return &MemoryUserRepository{m: m} }
func (m *Memory) Profiles() *MemoryProfileRepository { return &MemoryProfileRepository{m: m} }
func (m *Memory) Tags() *MemoryTagRepository         { return &MemoryTagRepository{m: m} }
func (m *Memory) Files() *MemoryFileRepository       { return &MemoryFileRepository{m: m} }

// FileRecords returns a copy of the recorded uploads.
func (m *Memory) FileRecords() []types.File {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]types.File(nil), m.files...)
}

func (m *Memory) withProfile(user types.User) types.User {
	if profile, ok := m.profiles[user.ProfileID]; ok {
		p := profile
		user.Profile = &p
	}
	return user
}

// MemoryUserRepository is the user view of a Memory store.
type MemoryUserRepository struct {
	m *Memory
}

func (r *MemoryUserRepository) GetByID(_ context.Context, id string) (types.User, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	user, ok := r.m.users[id]
	if !ok {
		return types.User{}, ErrNotFound
	}
	return r.m.withProfile(user), nil
}

func (r *MemoryUserRepository) GetByEmail(_ context.Context, email string) (types.User, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	id, ok := r.m.emails[email]
	if !ok {
		return types.User{}, ErrNotFound
	}
	return r.m.withProfile(r.m.users[id]), nil
}

func (r *MemoryUserRepository) GetByResetToken(_ context.Context, token string, now time.Time) (types.User, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	for _, user := range r.m.users {
		if user.ResetToken == token && user.HasPendingReset(now) {
			return r.m.withProfile(user), nil
		}
	}
	return types.User{}, ErrNotFound
}

func (r *MemoryUserRepository) Create(_ context.Context, user types.User) (types.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, exists := r.m.emails[user.Email]; exists {
		return types.User{}, ErrAlreadyExists
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.CreatedAt = time.Now().UTC()
	user.Profile = nil
	r.m.users[user.ID] = user
	r.m.emails[user.Email] = user.ID
	return user, nil
}

func (r *MemoryUserRepository) SetReset(_ context.Context, id, token string, expiry time.Time) error {
	return r.mutate(id, func(user *types.User) bool {
		user.SetReset(token, expiry)
		return true
	})
}

func (r *MemoryUserRepository) ClearReset(_ context.Context, id, token string) error {
	return r.mutate(id, func(user *types.User) bool {
		if user.ResetToken != token {
			return false
		}
		user.ClearReset()
		return true
	})
}

func (r *MemoryUserRepository) UpdatePassword(_ context.Context, id, passwordHash string) error {
	return r.mutate(id, func(user *types.User) bool {
		user.PasswordHash = passwordHash
		return true
	})
}

// mutate applies fn to the stored user under the write lock. fn reports
// whether the row matched.
func (r *MemoryUserRepository) mutate(id string, fn func(*types.User) bool) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	user, ok := r.m.users[id]
	if !ok || !fn(&user) {
		return ErrNotFound
	}
	r.m.users[id] = user
	return nil
}

func (r *MemoryUserRepository) CompleteReset(_ context.Context, id, token, passwordHash string, now time.Time) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	user, ok := r.m.users[id]
	if !ok || user.ResetToken != token || !user.HasPendingReset(now) {
		return ErrNotFound
	}
	user.PasswordHash = passwordHash
	user.ClearReset()
	r.m.users[id] = user
	return nil
}

func (r *MemoryUserRepository) Delete(_ context.Context, id string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	user, ok := r.m.users[id]
	if !ok {
		return ErrNotFound
	}
	delete(r.m.users, id)
	delete(r.m.emails, user.Email)
	return nil
}

// MemoryProfileRepository is the profile view of a Memory store.
type MemoryProfileRepository struct {
	m *Memory
}

func (r *MemoryProfileRepository) Create(_ context.Context, profile types.Profile) (types.Profile, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if profile.ID == "" {
		profile.ID = uuid.NewString()
	}
	r.m.profiles[profile.ID] = profile
	return profile, nil
}

func (r *MemoryProfileRepository) Delete(_ context.Context, id string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.profiles[id]; !ok {
		return ErrNotFound
	}
	delete(r.m.profiles, id)
	return nil
}

// Count returns the number of stored profiles.
func (r *MemoryProfileRepository) Count() int {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	return len(r.m.profiles)
}

// MemoryTagRepository is the tag view of a Memory store.
type MemoryTagRepository struct {
	m *Memory
}

func (r *MemoryTagRepository) Create(_ context.Context, tag types.Tag) (types.Tag, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, exists := r.m.tags[tag.Name]; exists {
		return types.Tag{}, ErrAlreadyExists
	}
	if tag.ID == "" {
		tag.ID = uuid.NewString()
	}
	r.m.tags[tag.Name] = tag
	return tag, nil
}

func (r *MemoryTagRepository) GetByName(_ context.Context, name string) (types.Tag, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	tag, ok := r.m.tags[name]
	if !ok {
		return types.Tag{}, ErrNotFound
	}
	return tag, nil
}

func (r *MemoryTagRepository) List(_ context.Context) ([]types.Tag, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	tags := make([]types.Tag, 0, len(r.m.tags))
	for _, tag := range r.m.tags {
		tags = append(tags, tag)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i].Name < tags[j].Name })
	return tags, nil
}

// MemoryFileRepository is the file view of a Memory store.
type MemoryFileRepository struct {
	m *Memory
}

func (r *MemoryFileRepository) Create(_ context.Context, file types.File) (types.File, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if file.ID == "" {
		file.ID = uuid.NewString()
	}
	file.CreatedAt = time.Now().UTC()
	r.m.files = append(r.m.files, file)
	return file, nil
}
