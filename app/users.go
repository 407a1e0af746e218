package app

import (
	"context"
	"database/sql"
	"errors"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/km-arc/go-modular/framework/logging"
)

// Entity statuses.
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
	StatusDeleted  = "deleted"
)

// User is the users table entity.
type User struct {
	ID        string `db:"id"         json:"id"`
	Email     string `db:"email"      json:"email"`
	FirstName string `db:"first_name" json:"firstName"`
	LastName  string `db:"last_name"  json:"lastName"`
	Role      string `db:"role"       json:"role"`
	Status    string `db:"status"     json:"status"`
}

// FullName is "First Last".
func (u User) FullName() string { return u.FirstName + " " + u.LastName }

// CreateUserInput is the request body of POST /users.
type CreateUserInput struct {
	Email     string `json:"email"     validate:"required,email"`
	FirstName string `json:"firstName" validate:"required,min=2,max=100"`
	LastName  string `json:"lastName"  validate:"required,min=2,max=100"`
	Role      string `json:"role"      validate:"omitempty,oneof=admin member"`
}

// UserStore is the persistence UserService needs.
// *database.Repository[User] implements it.
type UserStore interface {
	All(ctx context.Context) ([]User, error)
	Get(ctx context.Context, id any) (User, error)
	Insert(ctx context.Context, u User) error
}

// ── UserService ──────────────────────────────────────────────────────────────

// UserService is registered under IUserService.
type UserService struct {
	store UserStore
	log   *logging.Logger
}

func NewUserService(store UserStore, log *logging.Logger) *UserService {
	if log == nil {
		log = logging.NewDefault("UserService")
	}
	return &UserService{store: store, log: log}
}

// GetUsers returns the active users.
func (s *UserService) GetUsers(ctx context.Context) ([]User, error) {
	s.log.Debug("get users")
	all, err := s.store.All(ctx)
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(all, func(u User) bool { return u.Status != StatusActive }), nil
}

// AllUsers returns every user regardless of status.
func (s *UserService) AllUsers(ctx context.Context) ([]User, error) {
	return s.store.All(ctx)
}

// GetUser returns the user with id; found is false when there is none.
func (s *UserService) GetUser(ctx context.Context, id string) (u User, found bool, err error) {
	u, err = s.store.Get(ctx, id)
	switch {
	case err == nil:
		return u, true, nil
	case errors.Is(err, sql.ErrNoRows):
		return User{}, false, nil
	default:
		return User{}, false, err
	}
}

// CreateUser stores a new active user with a fresh id.
func (s *UserService) CreateUser(ctx context.Context, in CreateUserInput) (User, error) {
	role := in.Role
	if role == "" {
		role = "member"
	}
	u := User{
		ID:        uuid.NewString(),
		Email:     in.Email,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Role:      role,
		Status:    StatusActive,
	}
	if err := s.store.Insert(ctx, u); err != nil {
		return User{}, err
	}
	s.log.WithField("id", u.ID).Info("user created")
	return u, nil
}

// ── memoryStore ──────────────────────────────────────────────────────────────

// memoryStore backs UserService when no database module is registered.
type memoryStore struct {
	mu    sync.RWMutex
	users []User
}

func newMemoryStore(seed ...User) *memoryStore {
	return &memoryStore{users: slices.Clone(seed)}
}

func (m *memoryStore) All(context.Context) ([]User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.users), nil
}

func (m *memoryStore) Get(_ context.Context, id any) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return User{}, sql.ErrNoRows
}

func (m *memoryStore) Insert(_ context.Context, u User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users = append(m.users, u)
	return nil
}

func seedUsers() []User {
	return []User{
		{ID: "1", Email: "john@example.com", FirstName: "John", LastName: "Doe", Role: "admin", Status: StatusActive},
		{ID: "2", Email: "alice@example.com", FirstName: "Alice", LastName: "Quinn", Role: "member", Status: StatusActive},
		{ID: "3", Email: "old@example.com", FirstName: "Old", LastName: "Account", Role: "member", Status: StatusInactive},
	}
}
