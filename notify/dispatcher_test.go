package notify

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"xorm.io/xorm"

	"github.com/unibuild/controller/model"
)

var testDBCounter int64

func newTestDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	dsn := fmt.Sprintf("file:notify_test_%d?mode=memory&cache=shared", atomic.AddInt64(&testDBCounter, 1))
	engine, err := xorm.NewEngine("sqlite3", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { engine.Close() })
	require.NoError(t, engine.Sync2(new(model.Setting)))
	return NewDispatcher(engine)
}

func storeGlobalConfig(t *testing.T, d *Dispatcher, cfg model.NotificationConfig) {
	t.Helper()
	value, err := json.Marshal(cfg)
	require.NoError(t, err)
	_, err = d.DB.Insert(&model.Setting{Key: model.SETTING_NOTIFICATIONS, Value: string(value)})
	require.NoError(t, err)
}

// capture is a webhook endpoint that records every request it receives.
type capture struct {
	mu       sync.Mutex
	bodies   [][]byte
	headers  []http.Header
	respond  int
	server   *httptest.Server
}

func newCapture(t *testing.T) *capture {
	t.Helper()
	c := &capture{respond: http.StatusNoContent}
	c.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		c.mu.Lock()
		c.bodies = append(c.bodies, body)
		c.headers = append(c.headers, r.Header.Clone())
		status := c.respond
		c.mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(c.server.Close)
	return c
}

func (c *capture) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.bodies)
}

func buildNotification(event model.NotificationEvent) model.BuildNotification {
	return model.BuildNotification{
		Event:           event,
		BuildId:         "b-1",
		BuildNumber:     7,
		ProjectName:     "demo",
		Branch:          "main",
		Status:          model.STATUS_SUCCESS,
		DurationSeconds: 125,
		SizeBytes:       2048,
		TriggeredBy:     "alice",
		Timestamp:       time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestDeliverSendsSubscribedChannel(t *testing.T) {
	d := newTestDispatcher(t)
	endpoint := newCapture(t)
	storeGlobalConfig(t, d, model.NotificationConfig{
		Discord: &model.ChannelConfig{
			Enabled:    true,
			WebhookURL: endpoint.server.URL,
			Events:     []model.NotificationEvent{model.EVENT_BUILD_COMPLETED},
		},
	})

	d.Deliver(buildNotification(model.EVENT_BUILD_COMPLETED))

	require.Equal(t, 1, endpoint.count())
	assert.Contains(t, string(endpoint.bodies[0]), "embeds")
	assert.Contains(t, string(endpoint.bodies[0]), "Build #7 succeeded")
}

func TestDeliverSkipsUnsubscribedEvent(t *testing.T) {
	d := newTestDispatcher(t)
	endpoint := newCapture(t)
	storeGlobalConfig(t, d, model.NotificationConfig{
		Discord: &model.ChannelConfig{
			Enabled:    true,
			WebhookURL: endpoint.server.URL,
			Events:     []model.NotificationEvent{model.EVENT_BUILD_FAILED},
		},
	})

	d.Deliver(buildNotification(model.EVENT_BUILD_COMPLETED))

	assert.Zero(t, endpoint.count())
}

func TestProjectOverrideDisablesChannel(t *testing.T) {
	d := newTestDispatcher(t)
	endpoint := newCapture(t)
	storeGlobalConfig(t, d, model.NotificationConfig{
		Discord: &model.ChannelConfig{
			Enabled:    true,
			WebhookURL: endpoint.server.URL,
			Events:     []model.NotificationEvent{model.EVENT_BUILD_COMPLETED},
		},
	})

	override, err := json.Marshal(model.ProjectNotificationConfig{
		UseGlobalSettings: false,
		Discord:           &model.ChannelConfig{Enabled: false},
	})
	require.NoError(t, err)

	n := buildNotification(model.EVENT_BUILD_COMPLETED)
	n.ProjectOverride = override
	d.Deliver(n)

	assert.Zero(t, endpoint.count())
}

func TestUseGlobalSettingsIgnoresOverride(t *testing.T) {
	d := newTestDispatcher(t)
	endpoint := newCapture(t)
	storeGlobalConfig(t, d, model.NotificationConfig{
		Discord: &model.ChannelConfig{
			Enabled:    true,
			WebhookURL: endpoint.server.URL,
			Events:     []model.NotificationEvent{model.EVENT_BUILD_COMPLETED},
		},
	})

	override, err := json.Marshal(model.ProjectNotificationConfig{
		UseGlobalSettings: true,
		Discord:           &model.ChannelConfig{Enabled: false},
	})
	require.NoError(t, err)

	n := buildNotification(model.EVENT_BUILD_COMPLETED)
	n.ProjectOverride = override
	d.Deliver(n)

	assert.Equal(t, 1, endpoint.count())
}

func TestMalformedOverrideFallsBackToGlobal(t *testing.T) {
	d := newTestDispatcher(t)
	endpoint := newCapture(t)
	storeGlobalConfig(t, d, model.NotificationConfig{
		Discord: &model.ChannelConfig{
			Enabled:    true,
			WebhookURL: endpoint.server.URL,
			Events:     []model.NotificationEvent{model.EVENT_BUILD_COMPLETED},
		},
	})

	n := buildNotification(model.EVENT_BUILD_COMPLETED)
	n.ProjectOverride = []byte("{not valid json")
	d.Deliver(n)

	assert.Equal(t, 1, endpoint.count())
}

func TestMalformedGlobalConfigFallsBack(t *testing.T) {
	d := newTestDispatcher(t)
	_, err := d.DB.Insert(&model.Setting{Key: model.SETTING_NOTIFICATIONS, Value: "{definitely not json"})
	require.NoError(t, err)

	// Unparseable settings resolve to the zero config: every channel off.
	assert.Equal(t, model.NotificationConfig{}, d.globalConfig())

	d.Deliver(buildNotification(model.EVENT_BUILD_COMPLETED))
}

func TestWebhookEnvelopeAndSignature(t *testing.T) {
	d := newTestDispatcher(t)
	endpoint := newCapture(t)
	storeGlobalConfig(t, d, model.NotificationConfig{
		Webhook: &model.ChannelConfig{
			Enabled:    true,
			WebhookURL: endpoint.server.URL,
			Secret:     "hunter2",
			Events:     []model.NotificationEvent{model.EVENT_BUILD_FAILED},
		},
	})

	n := buildNotification(model.EVENT_BUILD_FAILED)
	n.Status = model.STATUS_FAILED
	n.ErrorMessage = "compile error"
	d.Deliver(n)

	require.Equal(t, 1, endpoint.count())
	body := endpoint.bodies[0]
	headers := endpoint.headers[0]

	assert.Equal(t, "BuildFailed", headers.Get("X-Webhook-Event"))
	// Signature covers the exact bytes sent.
	assert.Equal(t, Sign("hunter2", body), headers.Get("X-Webhook-Signature"))

	var envelope webhookEnvelope
	require.NoError(t, json.Unmarshal(body, &envelope))
	assert.Equal(t, "BuildFailed", envelope.Event)
	assert.Equal(t, "b-1", envelope.Build.Id)
	assert.Equal(t, int64(7), envelope.Build.Number)
	assert.Equal(t, "demo", envelope.Build.Project)
	assert.Equal(t, "compile error", envelope.Build.ErrorMessage)
	assert.Equal(t, int64(125), envelope.Build.DurationSeconds)
	assert.Equal(t, int64(2048), envelope.Build.SizeBytes)
	assert.Equal(t, "alice", envelope.Build.TriggeredBy)
}

func TestWebhookWithoutSecretOmitsSignature(t *testing.T) {
	d := newTestDispatcher(t)
	endpoint := newCapture(t)
	storeGlobalConfig(t, d, model.NotificationConfig{
		Webhook: &model.ChannelConfig{
			Enabled:    true,
			WebhookURL: endpoint.server.URL,
			Events:     []model.NotificationEvent{model.EVENT_BUILD_COMPLETED},
		},
	})

	d.Deliver(buildNotification(model.EVENT_BUILD_COMPLETED))

	require.Equal(t, 1, endpoint.count())
	assert.Empty(t, endpoint.headers[0].Get("X-Webhook-Signature"))
}

func TestChannelFailureDoesNotStopOthers(t *testing.T) {
	d := newTestDispatcher(t)
	failing := newCapture(t)
	failing.respond = http.StatusInternalServerError
	healthy := newCapture(t)

	storeGlobalConfig(t, d, model.NotificationConfig{
		Discord: &model.ChannelConfig{
			Enabled:    true,
			WebhookURL: failing.server.URL,
			Events:     []model.NotificationEvent{model.EVENT_BUILD_COMPLETED},
		},
		Slack: &model.ChannelConfig{
			Enabled:    true,
			WebhookURL: healthy.server.URL,
			Events:     []model.NotificationEvent{model.EVENT_BUILD_COMPLETED},
		},
	})

	// Deliver logs the discord failure and still reaches slack.
	d.Deliver(buildNotification(model.EVENT_BUILD_COMPLETED))

	assert.Equal(t, 1, failing.count())
	assert.Equal(t, 1, healthy.count())
}

func TestNoConfigDeliversNothing(t *testing.T) {
	d := newTestDispatcher(t)
	d.Deliver(buildNotification(model.EVENT_BUILD_COMPLETED))
	// Nothing configured, nothing to assert beyond not panicking.
}
