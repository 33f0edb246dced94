package security

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// Security event types
type EventType string

const (
	EventJailbreakAttempt  EventType = "jailbreak_attempt"
	EventSuspiciousPattern EventType = "suspicious_pattern"
	EventRateLimitExceeded EventType = "rate_limit_exceeded"
)

// Event is one security log entry. The prompt is clipped to 200 characters
// before it leaves the process.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	UserID    string    `json:"userId"`
	EventType EventType `json:"eventType"`
	Severity  Severity  `json:"severity"`
	Details   string    `json:"details"`
	Prompt    string    `json:"prompt"`
}

// Recorder delivers security events to a monitoring sink. Implementations
// must not block request handling on sink failures.
type Recorder interface {
	Record(ctx context.Context, e Event)
}

const promptClip = 200

func prepare(e Event) Event {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	e.Prompt = truncate(e.Prompt, promptClip)
	return e
}

// LogRecorder writes events to the process log.
type LogRecorder struct{}

func (LogRecorder) Record(_ context.Context, e Event) {
	e = prepare(e)
	log.Printf("security event: type=%s severity=%s user=%s details=%q prompt=%q",
		e.EventType, e.Severity, e.UserID, e.Details, e.Prompt)
}

// RedisRecorder appends events to a redis stream for the monitoring
// pipeline. Failures are logged and dropped.
type RedisRecorder struct {
	client *redis.Client
	stream string
}

func NewRedisRecorder(client *redis.Client, stream string) *RedisRecorder {
	if stream == "" {
		stream = "security:events"
	}
	return &RedisRecorder{client: client, stream: stream}
}

func (r *RedisRecorder) Record(ctx context.Context, e Event) {
	e = prepare(e)
	err := r.client.XAdd(ctx, &redis.XAddArgs{
		Stream: r.stream,
		MaxLen: 10000,
		Approx: true,
		Values: map[string]interface{}{
			"timestamp": e.Timestamp.UnixMilli(),
			"userId":    e.UserID,
			"eventType": string(e.EventType),
			"severity":  string(e.Severity),
			"details":   e.Details,
			"prompt":    e.Prompt,
		},
	}).Err()
	if err != nil {
		log.Printf("failed to record security event: %v", err)
	}
}
