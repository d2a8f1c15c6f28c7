package canonical

import (
	"fmt"
	"sync"
)

type captureLogger struct {
	mu    sync.Mutex
	calls []string
}

func (c *captureLogger) record(level, msg string, args []any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, fmt.Sprintf("%s:%s %v", level, msg, args))
}

func (c *captureLogger) Debug(msg string, args ...any) { c.record("d", msg, args) }
func (c *captureLogger) Info(msg string, args ...any)  { c.record("i", msg, args) }
func (c *captureLogger) Warn(msg string, args ...any)  { c.record("w", msg, args) }
func (c *captureLogger) Error(msg string, args ...any) { c.record("e", msg, args) }

func (c *captureLogger) lines() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.calls))
	copy(out, c.calls)
	return out
}
