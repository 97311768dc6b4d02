// Package memory holds process-local repositories used when no database is
// configured. They enforce the same uniqueness rules as the SQL schema.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spec-kit/facezhuk/internal/domain"
	"github.com/spec-kit/facezhuk/internal/repository"
)

// Users is an in-memory repository.UserRepository.
type Users struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]domain.User
}

var _ repository.UserRepository = (*Users)(nil)

// NewUsers returns an empty store.
func NewUsers() *Users {
	return &Users{byID: make(map[int64]domain.User)}
}

func (s *Users) conflict(u *domain.User) error {
	for id, existing := range s.byID {
		if id == u.ID {
			continue
		}
		if existing.Username == u.Username {
			return &domain.ConflictError{Field: "username"}
		}
		if existing.Email == u.Email {
			return &domain.ConflictError{Field: "email"}
		}
	}
	return nil
}

func (s *Users) Create(_ context.Context, u *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u.ID = 0
	if err := s.conflict(u); err != nil {
		return err
	}
	s.nextID++
	u.ID = s.nextID
	u.RegisteredAt = time.Now().UTC()
	s.byID[u.ID] = *u
	return nil
}

func (s *Users) Update(_ context.Context, u *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[u.ID]; !ok {
		return domain.ErrUserNotFound
	}
	if err := s.conflict(u); err != nil {
		return err
	}
	s.byID[u.ID] = *u
	return nil
}

func (s *Users) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return s.find(func(u domain.User) bool { return u.Email == email })
}

func (s *Users) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	return s.find(func(u domain.User) bool { return u.Username == username })
}

// Len returns the number of stored accounts.
func (s *Users) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}

func (s *Users) find(match func(domain.User) bool) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.byID {
		if match(u) {
			found := u
			return &found, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

// Notifications is an in-memory repository.NotificationRepository.
type Notifications struct {
	mu     sync.Mutex
	nextID int64
	items  []domain.Notification
}

var _ repository.NotificationRepository = (*Notifications)(nil)

// NewNotifications returns an empty store.
func NewNotifications() *Notifications {
	return &Notifications{}
}

func (s *Notifications) Create(_ context.Context, n *domain.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	n.ID = s.nextID
	n.CreatedAt = time.Now().UTC()
	s.items = append(s.items, *n)
	return nil
}

func (s *Notifications) ListByUser(_ context.Context, username string, filter repository.NotificationFilter) ([]domain.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Notification
	for _, n := range s.items {
		if n.Username != username {
			continue
		}
		if filter.Read != nil && n.Read != *filter.Read {
			continue
		}
		out = append(out, n)
	}
	// Newest first; ids grow with time.
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *Notifications) MarkRead(_ context.Context, username string, ids []int64, read bool) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wanted := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}
	var n int64
	for i := range s.items {
		if _, ok := wanted[s.items[i].ID]; ok && s.items[i].Username == username {
			s.items[i].Read = read
			n++
		}
	}
	return n, nil
}
