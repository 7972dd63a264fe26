// Package nats publishes access events to a NATS subject. Every subscriber
// of a plain subject receives each message, which gives the same broadcast
// behaviour as a fanout exchange.
package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/tendant/video-streaming/pkg/videostream"
)

// DefaultSubject receives access events
const DefaultSubject = "viewed"

// Config for the NATS connection
type Config struct {
	URL     string
	Subject string
	Name    string
}

// Notifier implements videostream.Notifier over a NATS connection
type Notifier struct {
	conn    *nats.Conn
	subject string
	publish func(*nats.Msg) error
}

// Connect dials the server. The client reconnects on its own for the life of
// the process.
func Connect(config Config) (*Notifier, error) {
	if config.URL == "" {
		return nil, errors.New("nats url is required")
	}
	if config.Subject == "" {
		config.Subject = DefaultSubject
	}
	if config.Name == "" {
		config.Name = "video-streaming"
	}

	conn, err := nats.Connect(config.URL,
		nats.Name(config.Name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &Notifier{
		conn:    conn,
		subject: config.Subject,
		publish: conn.PublishMsg,
	}, nil
}

// Notify publishes event as JSON on the configured subject
func (n *Notifier) Notify(ctx context.Context, event videostream.AccessEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode access event: %w", err)
	}

	msg := nats.NewMsg(n.subject)
	msg.Header.Set(nats.MsgIdHdr, uuid.NewString())
	msg.Header.Set("Content-Type", "application/json")
	msg.Data = body

	if err := n.publish(msg); err != nil {
		if errors.Is(err, nats.ErrConnectionClosed) {
			return videostream.ErrNotifierClosed
		}
		return fmt.Errorf("failed to publish to subject %s: %w", n.subject, err)
	}
	return nil
}

// Ping reports whether the client is currently connected
func (n *Notifier) Ping(ctx context.Context) error {
	if n.conn == nil || !n.conn.IsConnected() {
		return errors.New("nats is not connected")
	}
	return nil
}

// Close drains pending messages and closes the connection
func (n *Notifier) Close() error {
	if n.conn == nil {
		return nil
	}
	return n.conn.Drain()
}
