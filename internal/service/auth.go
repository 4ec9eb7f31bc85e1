package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"schoolapi/internal/events"
	"schoolapi/internal/hash"
	"schoolapi/internal/logging"
	"schoolapi/internal/models"
	"schoolapi/internal/repo"
	"schoolapi/internal/tokens"
)

var (
	ErrValidation = errors.New("validation failed")
	ErrConflict   = errors.New("user already exists")

	// ErrInvalidCredentials is returned by Login only.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrForbidden covers every rejected token: malformed, expired,
	// wrong profile, unknown record.
	ErrForbidden = errors.New("forbidden")

	// ErrReuseDetected marks an already-consumed or revoked refresh token
	// being presented again. It is a specialization of ErrForbidden and is
	// only ever returned after the whole lineage has been revoked.
	ErrReuseDetected = fmt.Errorf("%w: refresh token reuse detected", ErrForbidden)
)

// LoginResult is the externally visible artifact of token issuance.
type LoginResult struct {
	AccessToken  string
	RefreshToken string
	AccessExp    time.Time
	RefreshExp   time.Time
	User         models.PublicUser
}

// AuthService orchestrates login, refresh rotation and logout over the
// refresh-token ledger.
type AuthService struct {
	Repo     *repo.GormRepo
	Codec    *tokens.Codec
	Hasher   *hash.Hasher
	Producer *events.Producer
}

// DeviceInfo is optional request metadata stored with each refresh record.
type DeviceInfo struct {
	UserAgent string
	IP        string
}

func (s *AuthService) Register(ctx context.Context, email, password string, role models.Role) (*models.PublicUser, error) {
	l := logging.FromContext(ctx).With("svc", "auth.register")

	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", ErrValidation)
	}
	if role == "" {
		role = models.RoleStudent
	}
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrValidation, role)
	}

	pwHash, err := s.Hasher.Hash(password)
	if err != nil {
		l.Error("register_failed", "reason", "cannot hash password", "error", err)
		return nil, err
	}

	user := models.User{
		Email:        email,
		PasswordHash: pwHash,
		Role:         role,
	}
	if err := s.Repo.CreateUserIfNotExists(ctx, &user); err != nil {
		if errors.Is(err, repo.ErrUserAlreadyExist) {
			l.Warn("register_conflict", "email", email)
			return nil, ErrConflict
		}
		l.Error("register_failed", "error", err)
		return nil, err
	}

	s.publish(ctx, events.Event{Type: events.TypeUserRegistered, UserID: user.ID})

	pub := user.Public()
	return &pub, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string, dev DeviceInfo) (*LoginResult, error) {
	l := logging.FromContext(ctx).With("svc", "auth.login", "email", email)

	user, err := s.Repo.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repo.ErrUserNotFound) {
			l.Warn("login_failed", "reason", "unknown email")
			return nil, ErrInvalidCredentials
		}
		l.Error("login_failed", "error", err)
		return nil, err
	}
	if !s.Hasher.Check(user.PasswordHash, password) {
		l.Warn("login_failed", "reason", "password mismatch")
		return nil, ErrInvalidCredentials
	}

	res, err := s.issuePair(ctx, user, dev, time.Now().UTC())
	if err != nil {
		l.Error("login_failed", "error", err)
		return nil, err
	}

	s.publish(ctx, events.Event{Type: events.TypeUserLogin, UserID: user.ID, IP: dev.IP})
	l.Info("login_successful", "user_id", user.ID)
	return res, nil
}

// Refresh redeems a refresh token for a fresh pair, consuming the old
// record. An unknown, revoked or already-used record is treated as reuse:
// the whole lineage is revoked before the error comes back. A record that
// is merely expired but was never consumed is plain forbidden and does
// not trigger bulk revocation.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string, dev DeviceInfo) (*LoginResult, error) {
	l := logging.FromContext(ctx).With("svc", "auth.refresh")
	now := time.Now().UTC()

	claims, err := s.Codec.Parse(refreshToken, tokens.ProfileRefresh)
	if err != nil {
		l.Warn("refresh_rejected", "reason", "decode failed", "error", err)
		return nil, ErrForbidden
	}
	if claims.ID == "" {
		l.Warn("refresh_rejected", "reason", "missing jti")
		return nil, ErrForbidden
	}

	rec, err := s.Repo.FindRefreshByJTI(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, repo.ErrRefreshNotFound) {
			return nil, s.flagReuse(ctx, claims.UserID, claims.ID, "record not found")
		}
		return nil, err
	}
	if rec.UserID != claims.UserID {
		l.Warn("refresh_rejected", "reason", "user mismatch", "jti", claims.ID)
		return nil, ErrForbidden
	}
	if rec.Revoked || rec.UsedAt != nil {
		return nil, s.flagReuse(ctx, claims.UserID, claims.ID, "record consumed or revoked")
	}
	if !now.Before(rec.ExpiresAt) {
		l.Warn("refresh_rejected", "reason", "record expired", "jti", claims.ID)
		return nil, ErrForbidden
	}

	ok, err := s.Repo.MarkRefreshUsed(ctx, claims.ID, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Lost the race against a concurrent redemption of the same jti.
		return nil, s.flagReuse(ctx, claims.UserID, claims.ID, "lost consumption race")
	}

	user, err := s.Repo.FindUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repo.ErrUserNotFound) {
			return nil, ErrForbidden
		}
		return nil, err
	}

	res, err := s.issuePair(ctx, user, dev, now)
	if err != nil {
		l.Error("refresh_failed", "error", err)
		return nil, err
	}
	l.Info("refresh_successful", "user_id", user.ID)
	return res, nil
}

// Logout revokes the record behind the presented refresh token. It is
// housekeeping, not a security control: a token that does not decode is
// ignored and the caller always sees success.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	l := logging.FromContext(ctx).With("svc", "auth.logout")

	claims, err := s.Codec.Parse(refreshToken, tokens.ProfileRefresh)
	if err != nil {
		l.Debug("logout_skipped", "reason", "token did not decode")
		return nil
	}
	if claims.ID == "" {
		l.Debug("logout_skipped", "reason", "token carries no jti")
		return nil
	}
	if err := s.Repo.RevokeRefresh(ctx, claims.ID); err != nil {
		l.Error("logout_failed", "jti", claims.ID, "error", err)
		return err
	}
	l.Info("logout_successful", "user_id", claims.UserID)
	return nil
}

// LogoutAll revokes every live refresh record of a user.
func (s *AuthService) LogoutAll(ctx context.Context, userID uint) error {
	l := logging.FromContext(ctx).With("svc", "auth.logout_all", "user_id", userID)

	if err := s.Repo.RevokeAllRefreshForUser(ctx, userID); err != nil {
		l.Error("logout_all_failed", "error", err)
		return err
	}
	s.publish(ctx, events.Event{Type: events.TypeLogoutAll, UserID: userID})
	l.Info("logout_all_successful")
	return nil
}

// flagReuse is the mandatory response to suspected refresh-token reuse:
// revoke the user's entire lineage, then report. The revocation must
// land before the error is returned.
func (s *AuthService) flagReuse(ctx context.Context, userID uint, jti, reason string) error {
	l := logging.FromContext(ctx).With("svc", "auth.refresh")
	l.Error("refresh_reuse_detected", "user_id", userID, "jti", jti, "reason", reason)

	if err := s.Repo.RevokeAllRefreshForUser(ctx, userID); err != nil {
		l.Error("bulk_revoke_failed", "user_id", userID, "error", err)
		return err
	}
	s.publish(ctx, events.Event{Type: events.TypeRefreshReuse, UserID: userID})
	return ErrReuseDetected
}

func (s *AuthService) issuePair(ctx context.Context, user *models.User, dev DeviceInfo, now time.Time) (*LoginResult, error) {
	id := tokens.Identity{UserID: user.ID, Email: user.Email, Role: user.Role}

	jti := tokens.NewJTI()
	refreshToken, refreshExp, err := s.Codec.Issue(id, tokens.ProfileRefresh, jti, now)
	if err != nil {
		return nil, err
	}

	rec := models.RefreshToken{
		JTI:       jti,
		UserID:    user.ID,
		ExpiresAt: refreshExp,
		UserAgent: dev.UserAgent,
		IP:        dev.IP,
	}
	if err := s.Repo.CreateRefresh(ctx, &rec); err != nil {
		return nil, err
	}

	accessToken, accessExp, err := s.Codec.Issue(id, tokens.ProfileAccess, "", now)
	if err != nil {
		return nil, err
	}

	return &LoginResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		AccessExp:    accessExp,
		RefreshExp:   refreshExp,
		User:         user.Public(),
	}, nil
}

func (s *AuthService) publish(ctx context.Context, ev events.Event) {
	if err := s.Producer.Publish(ctx, ev); err != nil {
		logging.FromContext(ctx).Warn("event_publish_failed", "type", ev.Type, "error", err)
	}
}
