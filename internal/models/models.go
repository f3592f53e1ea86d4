package models

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Session is a persisted browser session. Data is the scs-encoded payload.
type Session struct {
	Token     string    `gorm:"primaryKey;type:varchar(64)"`
	Data      []byte    `gorm:"type:blob;not null"`
	Expiry    time.Time `gorm:"not null;index"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// TableName keeps the table name stable regardless of naming strategy
func (Session) TableName() string {
	return "sessions"
}

// AutoMigrate runs database migrations for all models
func AutoMigrate(db *gorm.DB) error {
	models := []interface{}{
		&Session{},
	}

	return db.AutoMigrate(models...)
}

// FindSession returns the live session for token. Expired rows are treated as
// missing.
func FindSession(db *gorm.DB, token string, now time.Time) (*Session, error) {
	var s Session
	err := db.Where("token = ? AND expiry > ?", token, now.UTC()).First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// UpsertSession inserts or replaces the session row for token
func UpsertSession(db *gorm.DB, token string, data []byte, expiry time.Time) error {
	s := Session{Token: token, Data: data, Expiry: expiry.UTC()}
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "token"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "expiry", "updated_at"}),
	}).Create(&s).Error
}

// DeleteSession removes the session row for token, if any
func DeleteSession(db *gorm.DB, token string) error {
	return db.Where("token = ?", token).Delete(&Session{}).Error
}

// DeleteExpiredSessions removes every session that expired before now and
// returns how many rows were removed
func DeleteExpiredSessions(db *gorm.DB, now time.Time) (int64, error) {
	res := db.Where("expiry <= ?", now.UTC()).Delete(&Session{})
	return res.RowsAffected, res.Error
}
