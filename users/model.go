// Package users encapsulates account management: the User model, its GORM-backed store,
// the account service (register, login, session checks, profile, password, deletion) and
// the HTTP handlers in front of it.
// This file, `model.go`, defines the User entity as it is stored in the `users` table.
package users

import "time"

// Default values for new accounts.
const (
	DefaultRole = "user"
)

// User represents an account. The password hash and the current session token are never
// serialized. Nullable profile columns are pointers so that "cleared" reads back as null.
type User struct {
	ID       uint    `gorm:"primaryKey" json:"id"`
	Name     *string `gorm:"size:255" json:"name"`
	Username string  `gorm:"size:255;uniqueIndex:users_username_key;not null" json:"username"`
	Email    *string `gorm:"size:255;index:users_email_idx" json:"email"`
	Password string  `gorm:"size:255;not null" json:"-"`
	Phone    *string `gorm:"size:50" json:"phone"`
	// Alamat is the postal address; the column and JSON key keep their original name.
	Alamat *string `gorm:"column:alamat" json:"alamat"`
	Image  string  `gorm:"size:255;not null;default:default.png" json:"image"`
	URL    *string `gorm:"column:url" json:"url"`
	Role   string  `gorm:"size:50;not null;default:user" json:"role"`
	// RefreshToken holds the one session token currently accepted for this user.
	RefreshToken *string   `gorm:"column:refresh_token;index:users_refresh_token_idx" json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// TableName pins the table name used by the migrations.
func (User) TableName() string {
	return "users"
}

// HasSession reports whether token is exactly the session stored for u.
func (u *User) HasSession(token string) bool {
	return token != "" && u.RefreshToken != nil && *u.RefreshToken == token
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// nullable maps "" to nil so empty form fields are stored as NULL.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
