package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	nats "github.com/nats-io/nats.go"
)

// JobClient enqueues background jobs. Fire-and-forget: delivery and
// ordering guarantees belong to the bus, not the caller.
type JobClient interface {
	Enqueue(ctx context.Context, job string, args map[string]interface{}) error
}

// NotificationClient delivers an in-app notification to one user via
// the notification service and waits for its ack.
type NotificationClient interface {
	SendToUser(ctx context.Context, userID, notificationType string, payload map[string]interface{}) error
}

type jobClient struct {
	conn *nats.Conn
}

type notificationClient struct {
	conn    *nats.Conn
	subject string
}

func NewJobClient(conn *nats.Conn) JobClient { return &jobClient{conn: conn} }

func NewNotificationClient(conn *nats.Conn, subject string) NotificationClient {
	return &notificationClient{conn: conn, subject: subject}
}

func (c *jobClient) Enqueue(_ context.Context, job string, args map[string]interface{}) error {
	if args == nil {
		args = map[string]interface{}{}
	}
	args["job_id"] = uuid.NewString()
	data, err := json.Marshal(args)
	if err != nil {
		return err
	}
	return c.conn.Publish(job, data)
}

func (c *notificationClient) SendToUser(ctx context.Context, userID, notificationType string, payload map[string]interface{}) error {
	body := map[string]interface{}{
		"user_id": userID,
		"type":    notificationType,
		"payload": payload,
	}
	return requestAck(ctx, c.conn, c.subject, body)
}

func requestAck(ctx context.Context, conn *nats.Conn, subject string, payload interface{}) error {
	data, _ := json.Marshal(payload)
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	msg, err := conn.RequestWithContext(ctx, subject, data)
	if err != nil {
		return err
	}
	if msg == nil {
		return fmt.Errorf("empty response from %s", subject)
	}
	var resp struct {
		OK    bool   `json:"ok"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(msg.Data, &resp); err != nil {
		return err
	}
	if !resp.OK {
		if resp.Error != "" {
			return fmt.Errorf("%s", resp.Error)
		}
		return fmt.Errorf("request to %s failed", subject)
	}
	return nil
}
