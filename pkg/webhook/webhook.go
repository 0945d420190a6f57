// Package webhook sends HTTP notifications for rewrite and rollback outcomes.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/safeedit/safeedit/pkg/config"
	"github.com/safeedit/safeedit/pkg/logging"
)

// EventType names an outcome a hook can subscribe to.
type EventType string

const (
	EventRewriteSucceeded EventType = "rewrite.succeeded"
	EventRewriteUnchanged EventType = "rewrite.unchanged"
	EventRewriteFailed    EventType = "rewrite.failed"
	EventRollbackDone     EventType = "rollback.completed"
	EventRollbackFailed   EventType = "rollback.failed"
)

// Event is the JSON payload posted to hooks.
type Event struct {
	Event       EventType      `json:"event"`
	Timestamp   string         `json:"timestamp"`
	Workspace   string         `json:"workspace,omitempty"`
	FilePath    string         `json:"filepath"`
	OperationID string         `json:"operation_id,omitempty"`
	Stage       string         `json:"stage,omitempty"`
	Code        string         `json:"code,omitempty"`
	Message     string         `json:"message,omitempty"`
	BackupPath  string         `json:"backup_path,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// HookConfig is a single endpoint.
type HookConfig struct {
	URL     string
	Secret  string
	Events  []EventType
	Timeout time.Duration
	Enabled bool
}

// Config is the client configuration.
type Config struct {
	Hooks          []HookConfig
	Enabled        bool
	MaxRetries     int
	RetryDelay     time.Duration
	AsyncQueueSize int
}

// DefaultConfig returns the default webhook configuration.
func DefaultConfig() *Config {
	return &Config{
		Enabled:        true,
		MaxRetries:     3,
		RetryDelay:     5 * time.Second,
		AsyncQueueSize: 100,
	}
}

// FromConfig converts the workspace webhook section.
func FromConfig(wc config.WebhooksConfig) *Config {
	cfg := DefaultConfig()
	cfg.Enabled = wc.Enabled
	cfg.MaxRetries = wc.MaxRetries
	cfg.RetryDelay = wc.RetryDelay.Std()
	for _, h := range wc.Hooks {
		hc := HookConfig{
			URL:     h.URL,
			Secret:  h.Secret,
			Timeout: h.Timeout.Std(),
			Enabled: h.Enabled,
		}
		for _, e := range h.Events {
			hc.Events = append(hc.Events, EventType(e))
		}
		cfg.Hooks = append(cfg.Hooks, hc)
	}
	return cfg
}

// Client delivers events, synchronously or through a background queue.
type Client struct {
	config *Config
	http   *http.Client
	queue  chan *job
	wg     sync.WaitGroup
	once   sync.Once
	mu     sync.RWMutex
	closed bool
	log    *logging.Logger
}

type job struct {
	event Event
	hook  HookConfig
}

// NewClient creates a webhook client and starts its worker when enabled.
func NewClient(cfg *Config) *Client {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.AsyncQueueSize <= 0 {
		cfg.AsyncQueueSize = 100
	}

	c := &Client{
		config: cfg,
		http:   &http.Client{Timeout: 30 * time.Second},
		queue:  make(chan *job, cfg.AsyncQueueSize),
		log:    logging.Global().WithFields(map[string]any{"component": "webhook"}),
	}
	if cfg.Enabled {
		c.once.Do(func() {
			c.wg.Add(1)
			go c.worker()
		})
	}
	return c
}

func (c *Client) worker() {
	defer c.wg.Done()
	for j := range c.queue {
		c.send(j)
	}
}

// Send delivers event to every enabled hook subscribed to it. With async the
// event is queued and Send never blocks; a full queue drops the event.
func (c *Client) Send(event Event, async bool) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.config.Enabled || c.closed {
		return nil
	}

	var hooks []HookConfig
	for _, hook := range c.config.Hooks {
		if hook.Enabled && matchesEvent(hook, event.Event) {
			hooks = append(hooks, hook)
		}
	}
	if len(hooks) == 0 {
		return nil
	}

	if event.Timestamp == "" {
		event.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}

	if async {
		for _, hook := range hooks {
			select {
			case c.queue <- &job{event: event, hook: hook}:
			default:
				c.log.Warn("webhook queue full, dropping event", map[string]any{"event": string(event.Event)})
			}
		}
		return nil
	}

	var lastErr error
	for _, hook := range hooks {
		if err := c.sendSync(&job{event: event, hook: hook}); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

func (c *Client) send(j *job) {
	if err := c.sendSync(j); err != nil {
		c.log.ErrorErr("webhook delivery failed", err, map[string]any{"url": j.hook.URL, "event": string(j.event.Event)})
	}
}

func (c *Client) sendSync(j *job) error {
	payload, err := json.Marshal(j.event)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(c.config.RetryDelay)
		}

		if lastErr = c.post(j.hook, j.event.Event, payload); lastErr == nil {
			return nil
		}
	}
	return lastErr
}

func (c *Client) post(hook HookConfig, event EventType, payload []byte) error {
	ctx := context.Background()
	if hook.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, hook.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "safeedit-webhook/1.0")
	req.Header.Set("X-Safeedit-Event", string(event))
	if hook.Secret != "" {
		req.Header.Set("X-Safeedit-Signature", Sign(payload, hook.Secret))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return fmt.Errorf("http %d: %s", resp.StatusCode, string(body))
}

// Sign returns the HMAC-SHA256 signature header value for payload.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func matchesEvent(hook HookConfig, event EventType) bool {
	return slices.Contains(hook.Events, event) || slices.Contains(hook.Events, "*")
}

// Close delivers every queued event, retries included, then stops the worker.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.config.Enabled || c.closed {
		return nil
	}
	c.closed = true
	close(c.queue)
	c.wg.Wait()
	return nil
}
