package store

import "time"

// Profile is a named gateway endpoint with its credentials. AuthToken
// is fernet-encrypted at rest and never serialized.
type Profile struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string    `gorm:"uniqueIndex;not null;size:64" json:"name"`
	ChatURL     string    `gorm:"not null" json:"chat_url"`
	ShellURL    string    `gorm:"not null" json:"shell_url"`
	AuthToken   string    `json:"-"`
	AuthInFrame bool      `gorm:"not null;default:false" json:"auth_in_frame"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type Setting struct {
	Key       string    `gorm:"primaryKey" json:"key"`
	Value     string    `gorm:"not null" json:"value"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// ConnectionLog is one connection event kept for diagnostics. Rows age
// out via the nightly prune job.
type ConnectionLog struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Channel   string    `gorm:"not null;index" json:"channel"` // "chat" or "shell"
	Event     string    `gorm:"not null" json:"event"`
	Details   string    `json:"details"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}
