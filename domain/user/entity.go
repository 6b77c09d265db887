package user

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// User represents a registered account.
type User struct {
	ID           string `gorm:"primaryKey;type:text"`
	Email        string `gorm:"uniqueIndex;not null;type:text"`
	PasswordHash string `gorm:"not null;type:text"`
	Name         string `gorm:"type:text"`
	CreatedAt    time.Time
}

// TableName returns the table name for the User entity.
func (User) TableName() string {
	return "users"
}

// DisplayName returns the name shown in page headers: the stored name, the
// local part of the email, or "User".
func (u *User) DisplayName() string {
	if name := strings.TrimSpace(u.Name); name != "" {
		return name
	}
	if local, _, ok := strings.Cut(u.Email, "@"); ok && local != "" {
		return local
	}
	return "User"
}

// Initials returns up to two uppercase initials of the display name.
func (u *User) Initials() string {
	words := strings.Fields(u.DisplayName())
	if len(words) > 2 {
		words = words[:2]
	}
	var b strings.Builder
	for _, word := range words {
		r, _ := utf8.DecodeRuneInString(word)
		b.WriteRune(unicode.ToUpper(r))
	}
	if b.Len() == 0 {
		return "U"
	}
	return b.String()
}

// NormalizeEmail trims and lowercases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Claims is the identity carried by a session token.
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}
