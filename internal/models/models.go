package models

import "time"

type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RoleTeacher Role = "TEACHER"
	RoleStudent Role = "STUDENT"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleTeacher, RoleStudent:
		return true
	}
	return false
}

type User struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Email        string    `gorm:"uniqueIndex;not null"     json:"email"`
	PasswordHash string    `gorm:"not null"                 json:"-"`
	Role         Role      `gorm:"not null"                 json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// PublicUser is the projection returned to clients. The password hash
// never leaves the persistence layer.
type PublicUser struct {
	ID    uint   `json:"id"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

func (u *User) Public() PublicUser {
	return PublicUser{ID: u.ID, Email: u.Email, Role: u.Role}
}

// RefreshToken is one link in a rotation chain. Rows are never deleted,
// they stay behind as an audit trail.
type RefreshToken struct {
	ID        uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	JTI       string     `gorm:"uniqueIndex;not null"     json:"jti"`
	UserID    uint       `gorm:"index;not null"           json:"user_id"`
	Revoked   bool       `gorm:"not null;default:false"   json:"revoked"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
	ExpiresAt time.Time  `gorm:"not null"                 json:"expires_at"`
	UserAgent string     `json:"user_agent,omitempty"`
	IP        string     `json:"ip,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Consumable reports whether the record may still be exchanged for a new
// token pair: never revoked, never used, not yet expired.
func (t *RefreshToken) Consumable(now time.Time) bool {
	return !t.Revoked && t.UsedAt == nil && now.Before(t.ExpiresAt)
}

type Lesson struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Title     string    `gorm:"not null"                 json:"title"`
	TeacherID uint      `gorm:"index;not null"           json:"teacher_id"`
	Room      string    `gorm:"index;not null"           json:"room"`
	StartsAt  time.Time `gorm:"not null"                 json:"starts_at"`
	EndsAt    time.Time `gorm:"not null"                 json:"ends_at"`
	CreatedAt time.Time `json:"created_at"`
}
