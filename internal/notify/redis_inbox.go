package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/estate-ops/internal/domain"
)

// defaultInboxLength bounds each recipient's inbox list.
const defaultInboxLength = 200

// redisInboxWriter keeps each recipient's unread notifications in a capped
// redis list, newest first.
type redisInboxWriter struct {
	client *redis.Client
	maxLen int64
}

// NewRedisInboxWriter builds the inbox writer. maxLen <= 0 selects the
// default cap.
func NewRedisInboxWriter(client *redis.Client, maxLen int) InboxWriter {
	if maxLen <= 0 {
		maxLen = defaultInboxLength
	}
	return &redisInboxWriter{client: client, maxLen: int64(maxLen)}
}

func (w *redisInboxWriter) WriteInbox(ctx context.Context, recipientType domain.SubjectType, recipientID string, task domain.NotificationTask) error {
	entry, err := json.Marshal(map[string]any{
		"task_id":    task.ID,
		"template":   task.TemplateKey,
		"title":      task.Title,
		"message":    task.Message,
		"payload":    task.Payload,
		"created_at": time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	key := inboxKey(recipientType, recipientID)
	pipe := w.client.TxPipeline()
	pipe.LPush(ctx, key, entry)
	pipe.LTrim(ctx, key, 0, w.maxLen-1)
	_, err = pipe.Exec(ctx)
	return err
}

func inboxKey(recipientType domain.SubjectType, recipientID string) string {
	return fmt.Sprintf("inbox:%s:%s", recipientType, recipientID)
}
