package model

import (
	"encoding/json"
	"time"
)

type NotificationEvent string

const (
	EVENT_BUILD_STARTED    NotificationEvent = "BuildStarted"
	EVENT_BUILD_COMPLETED  NotificationEvent = "BuildCompleted"
	EVENT_BUILD_FAILED     NotificationEvent = "BuildFailed"
	EVENT_BUILD_CANCELLED  NotificationEvent = "BuildCancelled"
	EVENT_UPLOAD_COMPLETED NotificationEvent = "UploadCompleted"
	EVENT_UPLOAD_FAILED    NotificationEvent = "UploadFailed"
)

// ChannelConfig configures one outbound alert integration. Secret is only
// honored by the webhook channel, where it keys the payload signature.
type ChannelConfig struct {
	Enabled    bool                `json:"enabled"`
	WebhookURL string              `json:"webhookUrl"`
	Secret     string              `json:"secret,omitempty"`
	Events     []NotificationEvent `json:"events"`
}

func (c *ChannelConfig) Subscribed(event NotificationEvent) bool {
	for _, e := range c.Events {
		if e == event {
			return true
		}
	}
	return false
}

type EmailConfig struct {
	Enabled    bool                `json:"enabled"`
	Host       string              `json:"host"`
	Port       int                 `json:"port"`
	Username   string              `json:"username,omitempty"`
	Password   string              `json:"password,omitempty"`
	From       string              `json:"from"`
	Recipients []string            `json:"recipients"`
	Events     []NotificationEvent `json:"events"`
}

func (c *EmailConfig) Subscribed(event NotificationEvent) bool {
	for _, e := range c.Events {
		if e == event {
			return true
		}
	}
	return false
}

// NotificationConfig is the global per-channel configuration, stored as one
// JSON blob in the settings table.
type NotificationConfig struct {
	Discord *ChannelConfig `json:"discord,omitempty"`
	Slack   *ChannelConfig `json:"slack,omitempty"`
	Webhook *ChannelConfig `json:"webhook,omitempty"`
	Email   *EmailConfig   `json:"email,omitempty"`
}

// ProjectNotificationConfig overrides the global config for one project.
// With UseGlobalSettings true the override is ignored entirely.
type ProjectNotificationConfig struct {
	UseGlobalSettings bool           `json:"useGlobalSettings"`
	Discord           *ChannelConfig `json:"discord,omitempty"`
	Slack             *ChannelConfig `json:"slack,omitempty"`
	Webhook           *ChannelConfig `json:"webhook,omitempty"`
	Email             *EmailConfig   `json:"email,omitempty"`
}

// BuildNotification is the ephemeral event handed to the dispatcher. It is
// fully denormalized so senders never touch the database, and carries the
// raw project override blob to resolve against at the point of use.
type BuildNotification struct {
	Event           NotificationEvent `json:"event"`
	BuildId         string            `json:"buildId"`
	BuildNumber     int64             `json:"buildNumber"`
	ProjectName     string            `json:"projectName"`
	Branch          string            `json:"branch"`
	Status          BuildStatus       `json:"status"`
	ErrorMessage    string            `json:"errorMessage,omitempty"`
	DurationSeconds int64             `json:"durationSeconds,omitempty"`
	SizeBytes       int64             `json:"sizeBytes,omitempty"`
	TriggeredBy     string            `json:"triggeredBy,omitempty"`
	Timestamp       time.Time         `json:"timestamp"`
	ProjectOverride json.RawMessage   `json:"-"`
}
