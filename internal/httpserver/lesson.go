package httpserver

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"schoolapi/internal/logging"
	"schoolapi/internal/middleware"
	"schoolapi/internal/models"
	"schoolapi/internal/repo"
	"schoolapi/internal/service"
	"schoolapi/internal/transport"
)

type LessonHTTP struct {
	Svc *service.LessonService
}

func (h *LessonHTTP) Create(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "lesson_create")

	var req transport.CreateLessonRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("lesson_create_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}

	teacherID := req.TeacherID
	// Teachers schedule for themselves; only admins may schedule for others.
	if claims.Role == models.RoleTeacher || teacherID == 0 {
		teacherID = claims.UserID
	}

	lesson := models.Lesson{
		Title:     req.Title,
		TeacherID: teacherID,
		Room:      req.Room,
		StartsAt:  req.StartsAt,
		EndsAt:    req.EndsAt,
	}
	if err := h.Svc.Create(ctx, &lesson); err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		case errors.Is(err, repo.ErrLessonConflict):
			return echo.NewHTTPError(http.StatusConflict, "lesson conflicts with an existing one")
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, "cannot create lesson")
		}
	}

	return c.JSON(http.StatusCreated, lesson)
}

func (h *LessonHTTP) List(c echo.Context) error {
	ctx := c.Request().Context()

	var from, to time.Time
	if v := c.QueryParam("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid from")
		}
		from = t
	}
	if v := c.QueryParam("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid to")
		}
		to = t
	}

	lessons, err := h.Svc.List(ctx, from, to)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot list lessons")
	}
	return c.JSON(http.StatusOK, transport.LessonListResponse{
		Total:   int64(len(lessons)),
		Lessons: lessons,
	})
}

func (h *LessonHTTP) Search(c echo.Context) error {
	ctx := c.Request().Context()

	query := c.QueryParam("q")
	if query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "q is required")
	}
	from, _ := strconv.Atoi(c.QueryParam("from"))
	size, _ := strconv.Atoi(c.QueryParam("size"))

	total, lessons, err := h.Svc.SearchLessons(ctx, query, from, size)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, "search unavailable")
	}
	return c.JSON(http.StatusOK, transport.LessonListResponse{
		Total:   total,
		Lessons: lessons,
	})
}
