// This file, `store.go`, is the persistence layer for users. The service only sees the
// Store interface; GormStore is the production implementation.
package users

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when no user matches the lookup.
	ErrNotFound = errors.New("user not found")
	// ErrDuplicateUsername is returned when the username's unique constraint is violated.
	ErrDuplicateUsername = errors.New("username already exists")
)

// ProfileUpdate is the full set of columns a profile update writes. Nil pointers are
// stored as NULL.
type ProfileUpdate struct {
	Name   *string
	Email  *string
	Phone  *string
	Alamat *string
	Image  string
	URL    *string
	Role   string
}

// Store is the user persistence contract.
type Store interface {
	List(ctx context.Context) ([]User, error)
	Create(ctx context.Context, u *User) error
	FindByID(ctx context.Context, id uint) (*User, error)
	FindByUsername(ctx context.Context, username string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindBySessionToken(ctx context.Context, token string) (*User, error)
	SetSessionToken(ctx context.Context, id uint, token string) error
	// ClearSessionToken clears the stored session only if it still equals token, and
	// reports whether it did.
	ClearSessionToken(ctx context.Context, id uint, token string) (bool, error)
	UpdateProfile(ctx context.Context, id uint, p ProfileUpdate) error
	UpdatePassword(ctx context.Context, id uint, hash string) error
	// Delete removes the user only while token is still its stored session.
	Delete(ctx context.Context, id uint, token string) error
}

// GormStore implements Store on GORM.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a GormStore.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) List(ctx context.Context) ([]User, error) {
	var users []User
	if err := s.db.WithContext(ctx).Order("id").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (s *GormStore) Create(ctx context.Context, u *User) error {
	err := s.db.WithContext(ctx).Create(u).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateUsername
	}
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *GormStore) FindByID(ctx context.Context, id uint) (*User, error) {
	return s.first(ctx, "id = ?", id)
}

func (s *GormStore) FindByUsername(ctx context.Context, username string) (*User, error) {
	return s.first(ctx, "username = ?", username)
}

func (s *GormStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	return s.first(ctx, "email = ?", email)
}

func (s *GormStore) FindBySessionToken(ctx context.Context, token string) (*User, error) {
	if token == "" {
		return nil, ErrNotFound
	}
	return s.first(ctx, "refresh_token = ?", token)
}

func (s *GormStore) first(ctx context.Context, query string, arg interface{}) (*User, error) {
	var u User
	err := s.db.WithContext(ctx).Where(query, arg).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user where %s: %w", query, err)
	}
	return &u, nil
}

func (s *GormStore) SetSessionToken(ctx context.Context, id uint, token string) error {
	res := s.db.WithContext(ctx).Model(&User{}).Where("id = ?", id).Update("refresh_token", token)
	if res.Error != nil {
		return fmt.Errorf("set session token: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) ClearSessionToken(ctx context.Context, id uint, token string) (bool, error) {
	res := s.db.WithContext(ctx).Model(&User{}).
		Where("id = ? AND refresh_token = ?", id, token).
		Update("refresh_token", nil)
	if res.Error != nil {
		return false, fmt.Errorf("clear session token: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (s *GormStore) UpdateProfile(ctx context.Context, id uint, p ProfileUpdate) error {
	res := s.db.WithContext(ctx).Model(&User{}).Where("id = ?", id).Updates(map[string]interface{}{
		"name":   p.Name,
		"email":  p.Email,
		"phone":  p.Phone,
		"alamat": p.Alamat,
		"image":  p.Image,
		"url":    p.URL,
		"role":   p.Role,
	})
	if res.Error != nil {
		return fmt.Errorf("update profile: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) UpdatePassword(ctx context.Context, id uint, hash string) error {
	res := s.db.WithContext(ctx).Model(&User{}).Where("id = ?", id).Update("password", hash)
	if res.Error != nil {
		return fmt.Errorf("update password: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) Delete(ctx context.Context, id uint, token string) error {
	res := s.db.WithContext(ctx).Where("id = ? AND refresh_token = ?", id, token).Delete(&User{})
	if res.Error != nil {
		return fmt.Errorf("delete user: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
