package stream

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/riyagpt0251/SatTrackAI/internal/metrics"
)

// writeTimeout bounds each individual SSE write.
const writeTimeout = 30 * time.Second

// client manages one SSE connection's writes.
type client struct {
	w       http.ResponseWriter
	flusher http.Flusher
	rc      *http.ResponseController
	ip      string
	logger  *slog.Logger
	started time.Time

	onClose   func()
	closeOnce sync.Once

	messagesSent int64
	bytesSent    int64
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		if c.onClose != nil {
			c.onClose()
		}
	})
}

func (c *client) extendDeadline() {
	if err := c.rc.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		c.logger.Debug("could not set write deadline", "error", err)
	}
}

func (c *client) write(s string) (int, error) {
	c.extendDeadline()
	n, err := fmt.Fprint(c.w, s)
	if err != nil {
		return n, err
	}
	c.flusher.Flush()
	c.bytesSent += int64(n)
	metrics.AddStreamBytes(int64(n))
	return n, nil
}

// sendJSON writes v as one "data:" event.
func (c *client) sendJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		metrics.IncStreamErrors("marshal_error")
		return fmt.Errorf("json marshal: %w", err)
	}
	if _, err := c.write("data: " + string(data) + "\n\n"); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	c.messagesSent++
	metrics.IncStreamMessages()
	return nil
}

// sendRetry sets the client's reconnect delay.
func (c *client) sendRetry(ms int) error {
	if _, err := c.write(fmt.Sprintf("retry: %d\n\n", ms)); err != nil {
		return fmt.Errorf("retry write: %w", err)
	}
	return nil
}

// sendKeepalive writes an SSE comment.
func (c *client) sendKeepalive() error {
	if _, err := c.write(":\n\n"); err != nil {
		return fmt.Errorf("keepalive write: %w", err)
	}
	return nil
}
