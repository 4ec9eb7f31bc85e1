package repo

import "gorm.io/gorm"

// GormRepo bundles all persistence operations behind one gorm handle.
type GormRepo struct {
	DB *gorm.DB
}

func New(db *gorm.DB) *GormRepo {
	return &GormRepo{DB: db}
}
