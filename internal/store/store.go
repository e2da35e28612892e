package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/gluk-w/clawlink/internal/config"
)

var DB *gorm.DB

func Init() error {
	dbPath := config.Cfg.DatabasePath
	dbDir := filepath.Dir(dbPath)
	if dbDir != "" {
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			return fmt.Errorf("create db directory: %w", err)
		}
	}

	var err error
	DB, err = gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return fmt.Errorf("get sql.DB: %w", err)
	}
	if _, err := sqlDB.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return fmt.Errorf("set WAL mode: %w", err)
	}

	if err := DB.AutoMigrate(&Profile{}, &Setting{}, &ConnectionLog{}); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}

	return nil
}

func Close() error {
	if DB != nil {
		sqlDB, err := DB.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}
	return nil
}

// Settings helpers

func GetSetting(key string) (string, error) {
	var s Setting
	if err := DB.Where("key = ?", key).First(&s).Error; err != nil {
		return "", err
	}
	return s.Value, nil
}

func SetSetting(key, value string) error {
	return DB.Where("key = ?", key).Assign(Setting{Value: value}).FirstOrCreate(&Setting{Key: key}).Error
}

func DeleteSetting(key string) error {
	return DB.Where("key = ?", key).Delete(&Setting{}).Error
}

// Profile helpers

// SaveProfile creates or updates a profile by name.
func SaveProfile(p *Profile) error {
	return DB.Where("name = ?", p.Name).
		Assign(map[string]interface{}{
			"chat_url":      p.ChatURL,
			"shell_url":     p.ShellURL,
			"auth_token":    p.AuthToken,
			"auth_in_frame": p.AuthInFrame,
		}).
		FirstOrCreate(p).Error
}

func GetProfile(name string) (*Profile, error) {
	var p Profile
	if err := DB.Where("name = ?", name).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func ListProfiles() ([]Profile, error) {
	var profiles []Profile
	if err := DB.Order("name").Find(&profiles).Error; err != nil {
		return nil, err
	}
	return profiles, nil
}

func DeleteProfile(name string) error {
	return DB.Where("name = ?", name).Delete(&Profile{}).Error
}

// Connection log helpers

func AppendConnectionLog(channel, event, details string) error {
	return DB.Create(&ConnectionLog{Channel: channel, Event: event, Details: details}).Error
}

// ListConnectionLogs returns the newest rows first, optionally filtered
// by channel. A non-positive limit defaults to 100.
func ListConnectionLogs(channel string, limit int) ([]ConnectionLog, error) {
	if limit <= 0 {
		limit = 100
	}
	q := DB.Order("id DESC").Limit(limit)
	if channel != "" {
		q = q.Where("channel = ?", channel)
	}
	var logs []ConnectionLog
	if err := q.Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}

// PruneConnectionLogs deletes rows older than the cutoff and reports
// how many went.
func PruneConnectionLogs(olderThan time.Time) (int64, error) {
	res := DB.Where("created_at < ?", olderThan).Delete(&ConnectionLog{})
	return res.RowsAffected, res.Error
}
