package repo

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schoolapi/internal/models"
)

func lessonAt(teacherID uint, room string, start time.Time, d time.Duration) *models.Lesson {
	return &models.Lesson{
		Title:     "Algebra",
		TeacherID: teacherID,
		Room:      room,
		StartsAt:  start,
		EndsAt:    start.Add(d),
	}
}

func TestGormRepo_CreateLesson_ConflictRules(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	base := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)

	first := lessonAt(1, "101", base, time.Hour)
	require.NoError(t, r.CreateLesson(ctx, first))
	assert.NotZero(t, first.ID, "winning insert resolves its id")

	// Same teacher, overlapping window, different room.
	err := r.CreateLesson(ctx, lessonAt(1, "202", base.Add(30*time.Minute), time.Hour))
	assert.ErrorIs(t, err, ErrLessonConflict)

	// Same room, overlapping window, different teacher.
	err = r.CreateLesson(ctx, lessonAt(2, "101", base.Add(30*time.Minute), time.Hour))
	assert.ErrorIs(t, err, ErrLessonConflict)

	// Back to back is fine.
	require.NoError(t, r.CreateLesson(ctx, lessonAt(1, "101", base.Add(time.Hour), time.Hour)))

	// Disjoint teacher and room.
	require.NoError(t, r.CreateLesson(ctx, lessonAt(2, "202", base, time.Hour)))
}

func TestGormRepo_CreateLesson_ConcurrentSameSlot(t *testing.T) {
	r := newTestRepo(t)
	base := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)

	const n = 8
	var wg sync.WaitGroup
	wg.Add(n)

	results := make(chan error, n)
	for i := 0; i < n; i++ {
		i := i
		go func() {
			defer wg.Done()
			// Different teachers fighting over the same room and slot.
			results <- r.CreateLesson(context.Background(), lessonAt(uint(10+i), "301", base, time.Hour))
		}()
	}
	wg.Wait()
	close(results)

	created, conflicts := 0, 0
	for err := range results {
		switch {
		case err == nil:
			created++
		case errors.Is(err, ErrLessonConflict):
			conflicts++
		default:
			t.Fatalf("unexpected create error: %v", err)
		}
	}

	assert.Equal(t, 1, created, "exactly one create may win the slot")
	assert.Equal(t, n-1, conflicts)
}

func TestGormRepo_ListLessons_Window(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	base := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, r.CreateLesson(ctx, lessonAt(1, "101", base, time.Hour)))
	require.NoError(t, r.CreateLesson(ctx, lessonAt(1, "101", base.Add(24*time.Hour), time.Hour)))

	all, err := r.ListLessons(ctx, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	day1, err := r.ListLessons(ctx, base, base.Add(12*time.Hour))
	require.NoError(t, err)
	require.Len(t, day1, 1)
	assert.True(t, day1[0].StartsAt.Equal(base))
}
