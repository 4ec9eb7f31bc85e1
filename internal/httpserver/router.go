package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"schoolapi/internal/middleware"
	"schoolapi/internal/models"
)

type Deps struct {
	AuthHandler   *AuthHTTP
	LessonHandler *LessonHTTP
	Auth          *middleware.Auth
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	v1 := e.Group("/api/v1")

	v1.POST("/register", d.AuthHandler.Register)
	v1.POST("/login", d.AuthHandler.Login)
	v1.POST("/refresh", d.AuthHandler.Refresh)
	v1.POST("/logout", d.AuthHandler.Logout)

	private := v1.Group("", d.Auth.RequireAuth)
	private.POST("/logout-all", d.AuthHandler.LogoutAll)
	private.GET("/me", d.AuthHandler.Me)

	private.GET("/lessons", d.LessonHandler.List)
	private.GET("/lessons/search", d.LessonHandler.Search)

	scheduling := private.Group("", middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher))
	scheduling.POST("/lessons", d.LessonHandler.Create)

	admin := private.Group("", middleware.RequireRoles(models.RoleAdmin))
	admin.POST("/users", d.AuthHandler.CreateUser)
}
