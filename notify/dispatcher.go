// Package notify turns build lifecycle events into outbound alerts on the
// configured channels. Delivery is best effort: failures are logged per
// channel and never surface to the state machine.
package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"xorm.io/xorm"

	"github.com/unibuild/controller/model"
)

type Dispatcher struct {
	DB     *xorm.Engine
	Client *http.Client
}

func NewDispatcher(db *xorm.Engine) *Dispatcher {
	return &Dispatcher{
		DB:     db,
		Client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Dispatch delivers the notification detached from the caller. The
// lifecycle state machine is never blocked or faulted by delivery.
func (d *Dispatcher) Dispatch(n model.BuildNotification) {
	go d.Deliver(n)
}

// Deliver resolves the channel configuration, sends on every channel that
// is enabled and subscribed to the event, and waits for all sends. Each
// failure is logged independently, never aggregated into an error.
func (d *Dispatcher) Deliver(n model.BuildNotification) {
	cfg := d.resolve(n)

	type delivery struct {
		channel string
		send    func() error
	}
	var deliveries []delivery

	if ch := cfg.Discord; ch != nil && ch.Enabled && ch.Subscribed(n.Event) {
		deliveries = append(deliveries, delivery{"discord", func() error { return d.sendDiscord(ch, n) }})
	}
	if ch := cfg.Slack; ch != nil && ch.Enabled && ch.Subscribed(n.Event) {
		deliveries = append(deliveries, delivery{"slack", func() error { return d.sendSlack(ch, n) }})
	}
	if ch := cfg.Webhook; ch != nil && ch.Enabled && ch.Subscribed(n.Event) {
		deliveries = append(deliveries, delivery{"webhook", func() error { return d.sendWebhook(ch, n) }})
	}
	if ch := cfg.Email; ch != nil && ch.Enabled && ch.Subscribed(n.Event) {
		deliveries = append(deliveries, delivery{"email", func() error { return d.sendEmail(ch, n) }})
	}

	var wg sync.WaitGroup
	for _, del := range deliveries {
		wg.Add(1)
		go func(del delivery) {
			defer wg.Done()
			if err := del.send(); err != nil {
				log.Printf("Error: %s notification for build %s failed: %s", del.channel, n.BuildId, err)
			}
		}(del)
	}
	wg.Wait()
}

// resolve picks the effective per-channel configuration. A project override
// with UseGlobalSettings false wins channel by channel; everything else,
// including an unparseable override blob, falls back to the global config.
func (d *Dispatcher) resolve(n model.BuildNotification) model.NotificationConfig {
	global := d.globalConfig()
	if len(n.ProjectOverride) == 0 {
		return global
	}

	var override model.ProjectNotificationConfig
	if err := json.Unmarshal(n.ProjectOverride, &override); err != nil {
		log.Printf("Warning: Invalid notification override for build %s, using global settings: %s", n.BuildId, err)
		return global
	}
	if override.UseGlobalSettings {
		return global
	}

	resolved := global
	if override.Discord != nil {
		resolved.Discord = override.Discord
	}
	if override.Slack != nil {
		resolved.Slack = override.Slack
	}
	if override.Webhook != nil {
		resolved.Webhook = override.Webhook
	}
	if override.Email != nil {
		resolved.Email = override.Email
	}
	return resolved
}

func (d *Dispatcher) globalConfig() model.NotificationConfig {
	var cfg model.NotificationConfig

	setting := model.Setting{Key: model.SETTING_NOTIFICATIONS}
	has, err := d.DB.Get(&setting)
	if err != nil {
		log.Println("Error: Failed to load notification settings:", err)
		return cfg
	}
	if !has {
		return cfg
	}
	if err := json.Unmarshal([]byte(setting.Value), &cfg); err != nil {
		log.Println("Warning: Invalid notification settings, notifications disabled:", err)
		return model.NotificationConfig{}
	}
	return cfg
}

func (d *Dispatcher) postJSON(url string, body []byte, headers map[string]string) error {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := d.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	return nil
}

func eventTitle(n model.BuildNotification) string {
	switch n.Event {
	case model.EVENT_BUILD_STARTED:
		return fmt.Sprintf("Build #%d started", n.BuildNumber)
	case model.EVENT_BUILD_COMPLETED:
		return fmt.Sprintf("Build #%d succeeded", n.BuildNumber)
	case model.EVENT_BUILD_FAILED:
		return fmt.Sprintf("Build #%d failed", n.BuildNumber)
	case model.EVENT_BUILD_CANCELLED:
		return fmt.Sprintf("Build #%d cancelled", n.BuildNumber)
	case model.EVENT_UPLOAD_COMPLETED:
		return fmt.Sprintf("Upload of build #%d completed", n.BuildNumber)
	case model.EVENT_UPLOAD_FAILED:
		return fmt.Sprintf("Upload of build #%d failed", n.BuildNumber)
	}
	return string(n.Event)
}
