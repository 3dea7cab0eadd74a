package messaging

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/stan.go"
)

// Subjects
const (
	SubjectZoneUpdate   = "zone.update"
	SubjectAdminUpdate  = "admin.update"
	SubjectTicketClosed = "ticket.closed"
)

// Publisher is what services need to announce domain events
type Publisher interface {
	Publish(subject string, data any) error
}

// Handler processes one raw message. A non-nil error leaves the message
// unacknowledged on durable subscriptions so it is redelivered.
type Handler func(data []byte) error

// Bus is a publisher that can also fan messages out to local handlers
type Bus interface {
	Publisher
	Subscribe(subject string, handler Handler) (func(), error)
	Close() error
}

type Config struct {
	Enabled   bool
	URL       string
	ClusterID string
	ClientID  string
}

type NATSClient struct {
	conn stan.Conn
}

// NewNATSClient connects to NATS Streaming. The client id gets a random suffix
// so several API replicas can share one configuration.
func NewNATSClient(cfg Config) (*NATSClient, error) {
	clientID := fmt.Sprintf("%s-%s", cfg.ClientID, uuid.New().String()[:8])

	conn, err := stan.Connect(cfg.ClusterID, clientID, stan.NatsURL(cfg.URL),
		stan.SetConnectionLostHandler(func(_ stan.Conn, reason error) {
			slog.Error("NATS Streaming connection lost", "error", reason)
		}))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS Streaming: %w", err)
	}

	slog.Info("Connected to NATS Streaming", "url", cfg.URL, "cluster", cfg.ClusterID, "client", clientID)
	return &NATSClient{conn: conn}, nil
}

func (nc *NATSClient) Publish(subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	if err := nc.conn.Publish(subject, payload); err != nil {
		return fmt.Errorf("failed to publish to subject %s: %w", subject, err)
	}

	slog.Debug("Published message", "subject", subject)
	return nil
}

// Subscribe starts a non-durable subscription from new messages only. Every
// API replica uses one to relay updates to its own WebSocket clients.
func (nc *NATSClient) Subscribe(subject string, handler Handler) (func(), error) {
	sub, err := nc.conn.Subscribe(subject, func(msg *stan.Msg) {
		if err := handler(msg.Data); err != nil {
			slog.Warn("Message handler failed", "subject", subject, "error", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to subject %s: %w", subject, err)
	}

	slog.Info("Subscribed to subject", "subject", subject)
	return func() { _ = sub.Unsubscribe() }, nil
}

// SubscribeQueue starts a durable queue subscription with manual acks
func (nc *NATSClient) SubscribeQueue(subject, queue string, handler Handler) (stan.Subscription, error) {
	sub, err := nc.conn.QueueSubscribe(subject, queue, func(msg *stan.Msg) {
		if err := handler(msg.Data); err != nil {
			slog.Error("Message handler failed, leaving for redelivery",
				"subject", subject, "sequence", msg.Sequence, "error", err)
			return
		}
		if err := msg.Ack(); err != nil {
			slog.Warn("Failed to ack message", "subject", subject, "error", err)
		}
	},
		stan.DurableName(subject+"-"+queue+"-durable"),
		stan.SetManualAckMode(),
		stan.AckWait(30*time.Second),
		stan.MaxInflight(1))
	if err != nil {
		return nil, fmt.Errorf("failed to queue subscribe to subject %s: %w", subject, err)
	}

	slog.Info("Subscribed to subject", "subject", subject, "queue", queue)
	return sub, nil
}

func (nc *NATSClient) Close() error {
	if nc.conn != nil {
		return nc.conn.Close()
	}
	return nil
}
