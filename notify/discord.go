package notify

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/unibuild/controller/model"
)

const (
	colorGreen  = 0x2ECC71
	colorRed    = 0xE74C3C
	colorBlue   = 0x3498DB
	colorGrey   = 0x95A5A6
	colorOrange = 0xE67E22
)

type discordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type discordEmbed struct {
	Title     string         `json:"title"`
	Color     int            `json:"color"`
	Fields    []discordField `json:"fields,omitempty"`
	Timestamp string         `json:"timestamp"`
}

func discordColor(event model.NotificationEvent) int {
	switch event {
	case model.EVENT_BUILD_COMPLETED, model.EVENT_UPLOAD_COMPLETED:
		return colorGreen
	case model.EVENT_BUILD_FAILED:
		return colorRed
	case model.EVENT_BUILD_CANCELLED:
		return colorGrey
	case model.EVENT_UPLOAD_FAILED:
		return colorOrange
	}
	return colorBlue
}

func (d *Dispatcher) sendDiscord(cfg *model.ChannelConfig, n model.BuildNotification) error {
	fields := []discordField{
		{Name: "Project", Value: n.ProjectName, Inline: true},
		{Name: "Branch", Value: n.Branch, Inline: true},
		{Name: "Status", Value: string(n.Status), Inline: true},
	}
	if n.TriggeredBy != "" {
		fields = append(fields, discordField{Name: "Triggered by", Value: n.TriggeredBy, Inline: true})
	}
	if n.DurationSeconds > 0 {
		fields = append(fields, discordField{Name: "Duration", Value: fmt.Sprintf("%ds", n.DurationSeconds), Inline: true})
	}
	if n.SizeBytes > 0 {
		fields = append(fields, discordField{Name: "Size", Value: fmt.Sprintf("%d bytes", n.SizeBytes), Inline: true})
	}
	if n.ErrorMessage != "" {
		fields = append(fields, discordField{Name: "Error", Value: n.ErrorMessage, Inline: false})
	}

	body, err := json.Marshal(map[string]interface{}{
		"embeds": []discordEmbed{{
			Title:     eventTitle(n),
			Color:     discordColor(n.Event),
			Fields:    fields,
			Timestamp: n.Timestamp.UTC().Format(time.RFC3339),
		}},
	})
	if err != nil {
		return err
	}
	return d.postJSON(cfg.WebhookURL, body, nil)
}
