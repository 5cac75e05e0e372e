// Package auditstream mirrors audit entries onto a Redis stream so a
// separate consumer can retain them beyond the service's log output.
package auditstream

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/clinicdesk/frontdesk/internal/platform/middleware"
)

// maxStreamLen bounds the stream; XADD trims approximately past it.
const maxStreamLen = 100000

type Recorder struct {
	client redis.Cmdable
	stream string
}

// Connect parses a redis:// URL and pings the server.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return rdb, nil
}

func NewRecorder(client redis.Cmdable, stream string) *Recorder {
	return &Recorder{client: client, stream: stream}
}

// RecordAccess implements middleware.AuditRecorder.
func (r *Recorder) RecordAccess(ctx context.Context, e middleware.AuditEntry) error {
	args := &redis.XAddArgs{
		Stream: r.stream,
		MaxLen: maxStreamLen,
		Approx: true,
		Values: Values(e),
	}
	if err := r.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("failed to XADD to stream %s: %w", r.stream, err)
	}
	return nil
}

// Values flattens an entry into stream fields.
func Values(e middleware.AuditEntry) map[string]interface{} {
	return map[string]interface{}{
		"timestamp":     e.Timestamp.Format(time.RFC3339Nano),
		"request_id":    e.RequestID,
		"user_id":       e.UserID,
		"role":          e.Role,
		"action":        e.Action,
		"resource_type": e.ResourceType,
		"resource_id":   e.ResourceID,
		"method":        e.Method,
		"path":          e.Path,
		"route":         e.Route,
		"remote_ip":     e.IPAddress,
		"user_agent":    e.UserAgent,
		"status":        strconv.Itoa(e.StatusCode),
	}
}
