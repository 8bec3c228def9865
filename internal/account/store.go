package account

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/eleven-am/voice-relay/internal/shared"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type Store struct {
	db   *gorm.DB
	cost int
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db, cost: bcrypt.DefaultCost}
}

func (s *Store) Migrate() error {
	return s.db.AutoMigrate(&User{})
}

// EnsureAdmin creates an approved admin account unless one with that name exists.
func (s *Store) EnsureAdmin(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		return nil
	}
	if _, err := s.Get(ctx, username); err == nil {
		return nil
	} else if !errors.Is(err, shared.ErrNotFound) {
		return err
	}
	_, err := s.create(ctx, username, password, RoleAdmin, true)
	return err
}

// Register adds an unapproved employee.
func (s *Store) Register(ctx context.Context, creds Credentials) (*User, error) {
	if err := validate(creds); err != nil {
		return nil, err
	}
	if _, err := s.Get(ctx, creds.Username); err == nil {
		return nil, fmt.Errorf("user %q: %w", creds.Username, shared.ErrConflict)
	} else if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}
	return s.create(ctx, creds.Username, creds.Password, RoleEmployee, false)
}

func (s *Store) create(ctx context.Context, username, password string, role Role, approved bool) (*User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := &User{
		Username:     username,
		PasswordHash: string(hash),
		Role:         role,
		Approved:     approved,
	}
	if err := s.db.WithContext(ctx).Create(u).Error; err != nil {
		return nil, err
	}
	return u, nil
}

// Login checks the password and requires approval. Bad credentials map to
// ErrUnauthorized, a pending account to ErrForbidden.
func (s *Store) Login(ctx context.Context, creds Credentials) (*Session, error) {
	u, err := s.Get(ctx, creds.Username)
	if errors.Is(err, shared.ErrNotFound) {
		return nil, shared.ErrUnauthorized
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(creds.Password)) != nil {
		return nil, shared.ErrUnauthorized
	}
	if !u.Approved {
		return nil, shared.ErrForbidden
	}
	return &Session{Username: u.Username, Role: u.Role, Token: shared.NewToken()}, nil
}

func (s *Store) Get(ctx context.Context, username string) (*User, error) {
	var u User
	err := s.db.WithContext(ctx).Where("username = ?", username).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// List returns every non-admin account ordered by username.
func (s *Store) List(ctx context.Context) ([]User, error) {
	var users []User
	err := s.db.WithContext(ctx).
		Where("role <> ?", RoleAdmin).
		Order("username ASC").
		Find(&users).Error
	return users, err
}

func (s *Store) Approve(ctx context.Context, username string) error {
	return s.setApproved(ctx, username, true)
}

func (s *Store) Block(ctx context.Context, username string) error {
	return s.setApproved(ctx, username, false)
}

func (s *Store) setApproved(ctx context.Context, username string, approved bool) error {
	result := s.db.WithContext(ctx).Model(&User{}).
		Where("username = ?", username).
		Update("approved", approved)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func validate(creds Credentials) error {
	if strings.TrimSpace(creds.Username) == "" || creds.Password == "" {
		return fmt.Errorf("username and password are required: %w", shared.ErrInvalidInput)
	}
	if creds.Username != strings.TrimSpace(creds.Username) || strings.ContainsAny(creds.Username, "/?#") {
		return fmt.Errorf("username %q: %w", creds.Username, shared.ErrInvalidInput)
	}
	return nil
}
