package alerts

import (
	"sync"
	"time"
)

type Level string

const (
	LevelError Level = "error"
	LevelInfo  Level = "info"
)

type Alert struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Level     Level     `json:"level"`
	CreatedAt time.Time `json:"createdAt"`
}

// Channel collects alerts raised by asynchronous work so the browser can pick
// them up on its next poll. Safe for concurrent use.
type Channel struct {
	mu     sync.Mutex
	alerts []Alert
	limit  int
}

func NewChannel(limit int) *Channel {
	if limit <= 0 {
		limit = 20
	}
	return &Channel{limit: limit}
}

// ShowCustomErrors queues one error alert per message.
func (c *Channel) ShowCustomErrors(messages ...Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	for _, m := range messages {
		c.alerts = append(c.alerts, Alert{Code: m.Code, Message: m.Text, Level: LevelError, CreatedAt: now})
	}
	if over := len(c.alerts) - c.limit; over > 0 {
		c.alerts = c.alerts[over:]
	}
}

// Peek returns queued alerts without removing them.
func (c *Channel) Peek() []Alert {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Alert, len(c.alerts))
	copy(out, c.alerts)
	return out
}

// Drain returns and clears queued alerts.
func (c *Channel) Drain() []Alert {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.alerts
	c.alerts = nil
	if out == nil {
		out = []Alert{}
	}
	return out
}
