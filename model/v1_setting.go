package model

import "time"

// Setting is a generic key-value store for JSON configuration blobs.
type Setting struct {
	Key       string    `xorm:"pk" json:"key"`
	Value     string    `xorm:"text" json:"value"`
	UpdatedAt time.Time `xorm:"updated" json:"updatedAt"`
}

const (
	SETTING_NOTIFICATIONS = "notifications"

	// Per-project overrides live under "notifications/project/<id>".
	SETTING_NOTIFICATIONS_PROJECT_PREFIX = "notifications/project/"
)
