package transport

import (
	"time"

	"schoolapi/internal/models"
)

type RegisterRequest struct {
	Email    string      `json:"email"`
	Password string      `json:"password"`
	Role     models.Role `json:"role,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type LogoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type TokenPairResponse struct {
	AccessToken  string            `json:"accessToken"`
	RefreshToken string            `json:"refreshToken"`
	AccessExp    time.Time         `json:"accessExp"`
	RefreshExp   time.Time         `json:"refreshExp"`
	User         models.PublicUser `json:"user"`
}

type CreateLessonRequest struct {
	Title     string    `json:"title"`
	TeacherID uint      `json:"teacher_id,omitempty"`
	Room      string    `json:"room"`
	StartsAt  time.Time `json:"starts_at"`
	EndsAt    time.Time `json:"ends_at"`
}

type LessonListResponse struct {
	Total   int64           `json:"total"`
	Lessons []models.Lesson `json:"lessons"`
}
