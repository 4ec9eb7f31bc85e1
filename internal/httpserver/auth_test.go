package httpserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"schoolapi/internal/hash"
	"schoolapi/internal/middleware"
	"schoolapi/internal/models"
	"schoolapi/internal/repo"
	"schoolapi/internal/service"
	"schoolapi/internal/tokens"
	"schoolapi/internal/transport"
)

type serverEnv struct {
	e      *echo.Echo
	db     *gorm.DB
	hasher *hash.Hasher
}

func newServerEnv(t *testing.T) *serverEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&models.User{}, &models.RefreshToken{}, &models.Lesson{}))

	codec, err := tokens.NewCodec(tokens.CodecConfig{
		AccessSecret:  []byte("test-jwt-secret"),
		RefreshSecret: []byte("test-refresh-secret"),
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    24 * time.Hour,
	})
	require.NoError(t, err)

	hasher, err := hash.NewHasher(bcrypt.MinCost)
	require.NoError(t, err)

	rp := repo.New(db)
	authSvc := &service.AuthService{Repo: rp, Codec: codec, Hasher: hasher}
	lessonSvc := &service.LessonService{Repo: rp}

	e := echo.New()
	Register(e, &Deps{
		AuthHandler:   &AuthHTTP{Svc: authSvc},
		LessonHandler: &LessonHTTP{Svc: lessonSvc},
		Auth:          middleware.NewAuth(codec),
	})

	return &serverEnv{e: e, db: db, hasher: hasher}
}

func (env *serverEnv) do(t *testing.T, method, path string, body any, bearer string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if bearer != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

// register signs up through the public endpoint, which only ever yields
// student accounts.
func (env *serverEnv) register(t *testing.T, email string) {
	t.Helper()

	rec := env.do(t, http.MethodPost, "/api/v1/register", transport.RegisterRequest{
		Email:    email,
		Password: "correctpw",
	}, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

// seedUser plants an account with an arbitrary role straight into storage,
// the way an admin-provisioned account would exist.
func (env *serverEnv) seedUser(t *testing.T, email string, role models.Role) {
	t.Helper()

	pwHash, err := env.hasher.Hash("correctpw")
	require.NoError(t, err)
	require.NoError(t, env.db.Create(&models.User{
		Email:        email,
		PasswordHash: pwHash,
		Role:         role,
	}).Error)
}

func (env *serverEnv) login(t *testing.T, email string) transport.TokenPairResponse {
	t.Helper()

	rec := env.do(t, http.MethodPost, "/api/v1/login", transport.LoginRequest{
		Email:    email,
		Password: "correctpw",
	}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var pair transport.TokenPairResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pair))
	return pair
}

func TestHTTP_RegisterAndConflict(t *testing.T) {
	env := newServerEnv(t)

	env.register(t, "s@school.com")

	rec := env.do(t, http.MethodPost, "/api/v1/register", transport.RegisterRequest{
		Email:    "s@school.com",
		Password: "correctpw",
	}, "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHTTP_RegisterIgnoresRequestedRole(t *testing.T) {
	env := newServerEnv(t)

	// An anonymous caller asking for ADMIN still gets a student account.
	rec := env.do(t, http.MethodPost, "/api/v1/register", transport.RegisterRequest{
		Email:    "sneaky@school.com",
		Password: "correctpw",
		Role:     models.RoleAdmin,
	}, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created models.PublicUser
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, models.RoleStudent, created.Role)

	pair := env.login(t, "sneaky@school.com")
	assert.Equal(t, models.RoleStudent, pair.User.Role)

	// And the token it yields does not pass the scheduling gate.
	rec = env.do(t, http.MethodPost, "/api/v1/lessons", transport.CreateLessonRequest{
		Title:    "Algebra",
		Room:     "101",
		StartsAt: time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC),
		EndsAt:   time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC),
	}, pair.AccessToken)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHTTP_AdminCreatesPrivilegedAccounts(t *testing.T) {
	env := newServerEnv(t)
	env.seedUser(t, "admin@school.com", models.RoleAdmin)
	env.register(t, "student@school.com")
	admin := env.login(t, "admin@school.com")
	student := env.login(t, "student@school.com")

	newTeacher := transport.RegisterRequest{
		Email:    "teacher@school.com",
		Password: "correctpw",
		Role:     models.RoleTeacher,
	}

	rec := env.do(t, http.MethodPost, "/api/v1/users", newTeacher, student.AccessToken)
	assert.Equal(t, http.StatusForbidden, rec.Code, "only admins may create accounts")

	rec = env.do(t, http.MethodPost, "/api/v1/users", newTeacher, admin.AccessToken)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created models.PublicUser
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, models.RoleTeacher, created.Role)

	pair := env.login(t, "teacher@school.com")
	assert.Equal(t, models.RoleTeacher, pair.User.Role)
}

func TestHTTP_LoginReturnsPairAndProfile(t *testing.T) {
	env := newServerEnv(t)
	env.seedUser(t, "t@school.com", models.RoleTeacher)

	pair := env.login(t, "t@school.com")
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.Equal(t, "t@school.com", pair.User.Email)
	assert.Equal(t, models.RoleTeacher, pair.User.Role)
	assert.NotZero(t, pair.User.ID)
}

func TestHTTP_LoginWrongPasswordIsUnauthorized(t *testing.T) {
	env := newServerEnv(t)
	env.register(t, "s@school.com")

	rec := env.do(t, http.MethodPost, "/api/v1/login", transport.LoginRequest{
		Email:    "s@school.com",
		Password: "wrongpw",
	}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHTTP_RefreshStatusMapping(t *testing.T) {
	env := newServerEnv(t)
	env.register(t, "s@school.com")
	pair := env.login(t, "s@school.com")

	// Garbage token: presented but rejected, 403 not 401.
	rec := env.do(t, http.MethodPost, "/api/v1/refresh", transport.RefreshRequest{RefreshToken: "garbage"}, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Valid rotation.
	rec = env.do(t, http.MethodPost, "/api/v1/refresh", transport.RefreshRequest{RefreshToken: pair.RefreshToken}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var rotated transport.TokenPairResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rotated))
	assert.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)

	// Replay of the consumed token: reuse, still a plain 403 outside.
	rec = env.do(t, http.MethodPost, "/api/v1/refresh", transport.RefreshRequest{RefreshToken: pair.RefreshToken}, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// The lineage died with it.
	rec = env.do(t, http.MethodPost, "/api/v1/refresh", transport.RefreshRequest{RefreshToken: rotated.RefreshToken}, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHTTP_LogoutAlwaysSucceeds(t *testing.T) {
	env := newServerEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/logout", transport.LogoutRequest{RefreshToken: "garbage"}, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHTTP_MeRequiresAccessToken(t *testing.T) {
	env := newServerEnv(t)
	env.seedUser(t, "t@school.com", models.RoleTeacher)
	pair := env.login(t, "t@school.com")

	rec := env.do(t, http.MethodGet, "/api/v1/me", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "no credential presented")

	rec = env.do(t, http.MethodGet, "/api/v1/me", nil, "garbage")
	assert.Equal(t, http.StatusForbidden, rec.Code, "credential presented and rejected")

	rec = env.do(t, http.MethodGet, "/api/v1/me", nil, pair.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code)

	var me map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	assert.Equal(t, "t@school.com", me["email"])
	assert.Equal(t, string(models.RoleTeacher), me["role"])
}

func TestHTTP_LogoutAllKillsRefresh(t *testing.T) {
	env := newServerEnv(t)
	env.register(t, "s@school.com")
	pair := env.login(t, "s@school.com")

	rec := env.do(t, http.MethodPost, "/api/v1/logout-all", nil, pair.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/refresh", transport.RefreshRequest{RefreshToken: pair.RefreshToken}, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHTTP_LessonRoleGate(t *testing.T) {
	env := newServerEnv(t)
	env.seedUser(t, "teacher@school.com", models.RoleTeacher)
	env.register(t, "student@school.com")
	teacher := env.login(t, "teacher@school.com")
	student := env.login(t, "student@school.com")

	lesson := transport.CreateLessonRequest{
		Title:    "Algebra",
		Room:     "101",
		StartsAt: time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC),
		EndsAt:   time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC),
	}

	rec := env.do(t, http.MethodPost, "/api/v1/lessons", lesson, student.AccessToken)
	assert.Equal(t, http.StatusForbidden, rec.Code, "students cannot schedule lessons")

	rec = env.do(t, http.MethodPost, "/api/v1/lessons", lesson, teacher.AccessToken)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// Same slot again: scheduling conflict.
	rec = env.do(t, http.MethodPost, "/api/v1/lessons", lesson, teacher.AccessToken)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Students may read the schedule.
	rec = env.do(t, http.MethodGet, "/api/v1/lessons", nil, student.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code)
	var list transport.LessonListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.EqualValues(t, 1, list.Total)
}
