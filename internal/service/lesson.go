package service

import (
	"context"
	"fmt"
	"time"

	"schoolapi/internal/logging"
	"schoolapi/internal/models"
	"schoolapi/internal/repo"
	"schoolapi/internal/search"
)

// LessonService owns lesson scheduling. Conflict checking lives in the
// repository; search indexing is best-effort.
type LessonService struct {
	Repo   *repo.GormRepo
	Search *search.Client
}

func (s *LessonService) Create(ctx context.Context, lesson *models.Lesson) error {
	l := logging.FromContext(ctx).With("svc", "lesson.create")

	if lesson.Title == "" || lesson.Room == "" {
		return fmt.Errorf("%w: title and room are required", ErrValidation)
	}
	if lesson.TeacherID == 0 {
		return fmt.Errorf("%w: teacher is required", ErrValidation)
	}
	if !lesson.EndsAt.After(lesson.StartsAt) {
		return fmt.Errorf("%w: lesson must end after it starts", ErrValidation)
	}

	if err := s.Repo.CreateLesson(ctx, lesson); err != nil {
		return err
	}

	if err := s.Search.IndexLesson(ctx, lesson); err != nil {
		l.Warn("lesson_index_failed", "lesson_id", lesson.ID, "error", err)
	}
	l.Info("lesson_created", "lesson_id", lesson.ID, "teacher_id", lesson.TeacherID)
	return nil
}

func (s *LessonService) List(ctx context.Context, from, to time.Time) ([]models.Lesson, error) {
	return s.Repo.ListLessons(ctx, from, to)
}

func (s *LessonService) SearchLessons(ctx context.Context, query string, from, size int) (int64, []models.Lesson, error) {
	if size <= 0 || size > 100 {
		size = 20
	}
	if from < 0 {
		from = 0
	}
	return s.Search.SearchLessons(ctx, query, from, size)
}
