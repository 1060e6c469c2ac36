package notify

import (
	"encoding/json"
	"fmt"

	"github.com/unibuild/controller/model"
)

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type slackBlock struct {
	Type   string      `json:"type"`
	Text   *slackText  `json:"text,omitempty"`
	Fields []slackText `json:"fields,omitempty"`
}

func (d *Dispatcher) sendSlack(cfg *model.ChannelConfig, n model.BuildNotification) error {
	fields := []slackText{
		{Type: "mrkdwn", Text: fmt.Sprintf("*Project:*\n%s", n.ProjectName)},
		{Type: "mrkdwn", Text: fmt.Sprintf("*Branch:*\n%s", n.Branch)},
		{Type: "mrkdwn", Text: fmt.Sprintf("*Status:*\n%s", n.Status)},
	}
	if n.TriggeredBy != "" {
		fields = append(fields, slackText{Type: "mrkdwn", Text: fmt.Sprintf("*Triggered by:*\n%s", n.TriggeredBy)})
	}
	if n.DurationSeconds > 0 {
		fields = append(fields, slackText{Type: "mrkdwn", Text: fmt.Sprintf("*Duration:*\n%ds", n.DurationSeconds)})
	}

	blocks := []slackBlock{
		{Type: "header", Text: &slackText{Type: "plain_text", Text: eventTitle(n)}},
		{Type: "section", Fields: fields},
	}
	if n.ErrorMessage != "" {
		blocks = append(blocks, slackBlock{
			Type: "section",
			Text: &slackText{Type: "mrkdwn", Text: fmt.Sprintf("*Error:*\n```%s```", n.ErrorMessage)},
		})
	}

	body, err := json.Marshal(map[string]interface{}{"blocks": blocks})
	if err != nil {
		return err
	}
	return d.postJSON(cfg.WebhookURL, body, nil)
}
