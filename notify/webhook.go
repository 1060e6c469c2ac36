package notify

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/unibuild/controller/model"
)

type webhookBuild struct {
	Id              string `json:"id"`
	Number          int64  `json:"number"`
	Project         string `json:"project"`
	Branch          string `json:"branch"`
	Status          string `json:"status"`
	ErrorMessage    string `json:"errorMessage,omitempty"`
	DurationSeconds int64  `json:"durationSeconds,omitempty"`
	SizeBytes       int64  `json:"sizeBytes,omitempty"`
	TriggeredBy     string `json:"triggeredBy,omitempty"`
}

type webhookEnvelope struct {
	Event     string       `json:"event"`
	Timestamp time.Time    `json:"timestamp"`
	Build     webhookBuild `json:"build"`
}

// Sign computes the signature header value for a payload: hex HMAC-SHA256
// over the exact body bytes. Verification is the receiving endpoint's
// responsibility.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func (d *Dispatcher) sendWebhook(cfg *model.ChannelConfig, n model.BuildNotification) error {
	body, err := json.Marshal(webhookEnvelope{
		Event:     string(n.Event),
		Timestamp: n.Timestamp,
		Build: webhookBuild{
			Id:              n.BuildId,
			Number:          n.BuildNumber,
			Project:         n.ProjectName,
			Branch:          n.Branch,
			Status:          string(n.Status),
			ErrorMessage:    n.ErrorMessage,
			DurationSeconds: n.DurationSeconds,
			SizeBytes:       n.SizeBytes,
			TriggeredBy:     n.TriggeredBy,
		},
	})
	if err != nil {
		return err
	}

	headers := map[string]string{"X-Webhook-Event": string(n.Event)}
	if cfg.Secret != "" {
		headers["X-Webhook-Signature"] = Sign(cfg.Secret, body)
	}
	return d.postJSON(cfg.WebhookURL, body, headers)
}
