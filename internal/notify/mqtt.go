// Package notify publishes run completion events over MQTT.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/microgrid-sizing/backend/internal/config"
	"github.com/microgrid-sizing/backend/internal/logger"
	"github.com/microgrid-sizing/backend/internal/models"
)

// Client is the subset of the paho client the notifier uses.
type Client interface {
	IsConnected() bool
	Disconnect(uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Event is the payload published when a run finishes.
type Event struct {
	RunID      string               `json:"run_id"`
	Mode       models.Mode          `json:"mode"`
	Status     models.RunStatus     `json:"status"`
	StartedAt  time.Time            `json:"started_at"`
	DurationMs int64                `json:"duration_ms"`
	Summary    models.ReportSummary `json:"summary"`
	Reports    []string             `json:"reports"`
	Error      string               `json:"error,omitempty"`
}

// Notifier publishes run events to a topic. The topic gets the run mode
// appended, e.g. microgrid/runs/completed/deterministic.
type Notifier struct {
	client  Client
	topic   string
	qos     byte
	timeout time.Duration
	log     logger.Logger
}

// Connect dials the broker described by cfg.
func Connect(cfg config.MQTTConfig, log logger.Logger) (*Notifier, error) {
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = fmt.Sprintf("microgrid-%d", time.Now().UnixNano())
	}
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(clientID).
		SetConnectTimeout(5 * time.Second).
		SetAutoReconnect(true)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username).SetPassword(cfg.Password)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connecting to %s: %w", cfg.Broker, token.Error())
	}
	return New(client, cfg.Topic, byte(cfg.QoS), log), nil
}

// New wraps an existing client.
func New(client Client, topic string, qos byte, log logger.Logger) *Notifier {
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Notifier{client: client, topic: topic, qos: qos, timeout: 5 * time.Second, log: log}
}

// Topic returns the topic a run of the given mode is published on.
func (n *Notifier) Topic(mode models.Mode) string {
	return n.topic + "/" + string(mode)
}

// Observe publishes a finished run.
func (n *Notifier) Observe(ctx context.Context, rec *models.RunRecord) error {
	payload, err := json.Marshal(Event{
		RunID:      rec.ID,
		Mode:       rec.Mode,
		Status:     rec.Status,
		StartedAt:  rec.StartedAt,
		DurationMs: rec.DurationMs,
		Summary:    rec.Summary,
		Reports:    rec.Reports,
		Error:      rec.Error,
	})
	if err != nil {
		return err
	}

	token := n.client.Publish(n.Topic(rec.Mode), n.qos, false, payload)
	timeout := n.timeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("publishing run %s: timed out", rec.ID)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publishing run %s: %w", rec.ID, err)
	}
	n.log.Debugf("published run %s to %s", rec.ID, n.Topic(rec.Mode))
	return nil
}

// Close disconnects from the broker.
func (n *Notifier) Close() {
	if n.client.IsConnected() {
		n.client.Disconnect(250)
	}
}
