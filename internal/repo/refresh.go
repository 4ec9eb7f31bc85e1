package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"schoolapi/internal/models"
)

var ErrRefreshNotFound = errors.New("refresh token not found")

func (r *GormRepo) CreateRefresh(ctx context.Context, rec *models.RefreshToken) error {
	return r.DB.WithContext(ctx).Create(rec).Error
}

func (r *GormRepo) FindRefreshByJTI(ctx context.Context, jti string) (*models.RefreshToken, error) {
	var rec models.RefreshToken
	if err := r.DB.WithContext(ctx).Where("jti = ?", jti).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRefreshNotFound
		}
		return nil, err
	}
	return &rec, nil
}

// MarkRefreshUsed consumes a refresh record: a single conditional UPDATE
// that transitions used_at from NULL exactly once. Under concurrent
// redemption of the same jti the database lets exactly one caller through;
// everyone else sees false. The rotation protocol's reuse detection rests
// on this, so it must stay one guarded statement, never a read followed
// by a write.
func (r *GormRepo) MarkRefreshUsed(ctx context.Context, jti string, now time.Time) (bool, error) {
	tx := r.DB.WithContext(ctx).
		Model(&models.RefreshToken{}).
		Where("jti = ? AND used_at IS NULL AND revoked = ?", jti, false).
		Update("used_at", now)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected == 1, nil
}

// RevokeRefresh revokes a single record. Idempotent.
func (r *GormRepo) RevokeRefresh(ctx context.Context, jti string) error {
	return r.DB.WithContext(ctx).
		Model(&models.RefreshToken{}).
		Where("jti = ?", jti).
		Update("revoked", true).Error
}

// RevokeAllRefreshForUser revokes every live record of a user. Used for
// logout-everywhere and as the mandatory response to detected reuse.
// Idempotent.
func (r *GormRepo) RevokeAllRefreshForUser(ctx context.Context, userID uint) error {
	return r.DB.WithContext(ctx).
		Model(&models.RefreshToken{}).
		Where("user_id = ? AND revoked = ?", userID, false).
		Update("revoked", true).Error
}
