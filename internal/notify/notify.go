// Package notify fans user-visible notifications out to the UI and the log.
//
// Every asynchronous failure in dbstudio degrades to a notification here;
// nothing is fatal to the process.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/fyrsmithlabs/dbstudio/internal/logging"
	"go.uber.org/zap"
)

// Level classifies a notification.
type Level int

const (
	Info Level = iota
	Success
	Error
)

// String implements fmt.Stringer.
func (l Level) String() string {
	switch l {
	case Success:
		return "success"
	case Error:
		return "error"
	default:
		return "info"
	}
}

// Notification is one user-visible message.
type Notification struct {
	Level Level     `json:"level"`
	Text  string    `json:"text"`
	At    time.Time `json:"at"`
}

const (
	channelBuffer = 16
	historySize   = 50
)

// Center publishes notifications to subscribers and keeps a short history
// for the diagnostics endpoint.
type Center struct {
	mu      sync.Mutex
	history []Notification
	ch      chan Notification
	log     *logging.Logger
}

// NewCenter creates a notification center. logger may be nil.
func NewCenter(logger *logging.Logger) *Center {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Center{
		ch:  make(chan Notification, channelBuffer),
		log: logger.Named("notify"),
	}
}

// Publish records a notification, logs it, and delivers it to the
// subscriber channel. Delivery never blocks: if the subscriber is not
// draining, the oldest pending notification is dropped.
func (c *Center) Publish(level Level, text string) {
	n := Notification{Level: level, Text: text, At: time.Now()}

	ctx := context.Background()
	switch level {
	case Error:
		c.log.Warn(ctx, "notification", zap.String("level", level.String()), zap.String("text", text))
	default:
		c.log.Info(ctx, "notification", zap.String("level", level.String()), zap.String("text", text))
	}

	c.mu.Lock()
	c.history = append(c.history, n)
	if len(c.history) > historySize {
		c.history = c.history[len(c.history)-historySize:]
	}
	c.mu.Unlock()

	for {
		select {
		case c.ch <- n:
			return
		default:
			select {
			case <-c.ch:
			default:
			}
		}
	}
}

// Errorf publishes an error notification.
func (c *Center) Errorf(text string) { c.Publish(Error, text) }

// Successf publishes a success notification.
func (c *Center) Successf(text string) { c.Publish(Success, text) }

// C returns the subscriber channel. One consumer (the TUI) drains it.
func (c *Center) C() <-chan Notification {
	return c.ch
}

// History returns the most recent notifications, newest last.
func (c *Center) History() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Notification(nil), c.history...)
}
