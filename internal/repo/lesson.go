package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"schoolapi/internal/models"
)

var ErrLessonConflict = errors.New("lesson conflicts with an existing one")

// CreateLesson inserts a lesson unless it overlaps an existing lesson for
// the same teacher or the same room. The overlap check and the insert are
// one guarded statement, so two concurrent creates for the same slot
// cannot both land; the loser sees zero rows affected.
func (r *GormRepo) CreateLesson(ctx context.Context, lesson *models.Lesson) error {
	if lesson.CreatedAt.IsZero() {
		lesson.CreatedAt = time.Now().UTC()
	}

	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Exec(`
			INSERT INTO lessons (title, teacher_id, room, starts_at, ends_at, created_at)
			SELECT ?, ?, ?, ?, ?, ?
			WHERE NOT EXISTS (
				SELECT 1 FROM lessons
				WHERE (teacher_id = ? OR room = ?) AND starts_at < ? AND ends_at > ?
			)`,
			lesson.Title, lesson.TeacherID, lesson.Room, lesson.StartsAt, lesson.EndsAt, lesson.CreatedAt,
			lesson.TeacherID, lesson.Room, lesson.EndsAt, lesson.StartsAt)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrLessonConflict
		}
		// A winning insert is unique per teacher, room and start, so this
		// reload resolves the generated id.
		return tx.Where("teacher_id = ? AND room = ? AND starts_at = ?",
			lesson.TeacherID, lesson.Room, lesson.StartsAt).
			Last(lesson).Error
	})
}

func (r *GormRepo) ListLessons(ctx context.Context, from, to time.Time) ([]models.Lesson, error) {
	var lessons []models.Lesson
	q := r.DB.WithContext(ctx).Order("starts_at")
	if !from.IsZero() {
		q = q.Where("starts_at >= ?", from)
	}
	if !to.IsZero() {
		q = q.Where("starts_at < ?", to)
	}
	if err := q.Find(&lessons).Error; err != nil {
		return nil, err
	}
	return lessons, nil
}
