package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/skycms/skycms/internal/config"
	"github.com/skycms/skycms/internal/foundation/errors"
	"github.com/skycms/skycms/internal/logfields"
)

const defaultSubjectPrefix = "skycms"

// Bridge forwards bus events to NATS JetStream subjects so external
// consumers (cache warmers, search indexers, audit trails) can react to
// publish activity.
type Bridge struct {
	conn    *nats.Conn
	publish func(ctx context.Context, subject string, data []byte) error
	prefix  string
	logger  *slog.Logger
}

// NewBridge connects to NATS and prepares the JetStream publisher.
func NewBridge(cfg config.EventsConfig, logger *slog.Logger) (*Bridge, error) {
	if cfg.NATSURL == "" {
		return nil, errors.ConfigError("events bridge requires nats_url").Build()
	}
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := nats.Connect(cfg.NATSURL)
	if err != nil {
		return nil, errors.NetworkError("failed to connect to NATS").
			WithCause(err).
			WithContext("url", cfg.NATSURL).
			Build()
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, errors.NetworkError("failed to create JetStream context").WithCause(err).Build()
	}

	prefix := cfg.SubjectPrefix
	if prefix == "" {
		prefix = defaultSubjectPrefix
	}

	logger.Info("event bridge connected", slog.String("url", cfg.NATSURL), slog.String("prefix", prefix))

	return &Bridge{
		conn: conn,
		publish: func(ctx context.Context, subject string, data []byte) error {
			_, err := js.Publish(ctx, subject, data)
			return err
		},
		prefix: prefix,
		logger: logger,
	}, nil
}

// newBridgeWithPublisher is the test seam: a bridge without a real
// connection.
func newBridgeWithPublisher(prefix string, logger *slog.Logger, publish func(ctx context.Context, subject string, data []byte) error) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	if prefix == "" {
		prefix = defaultSubjectPrefix
	}
	return &Bridge{publish: publish, prefix: prefix, logger: logger}
}

// Run subscribes to the lifecycle events and forwards them until ctx is
// canceled. Forwarding failures are logged and dropped; event delivery
// never blocks publishing.
func (b *Bridge) Run(ctx context.Context, bus *Bus) {
	published, unsubPublished := Subscribe[ArticlePublished](bus, 16)
	unpublished, unsubUnpublished := Subscribe[ArticleUnpublished](bus, 16)
	rebuilt, unsubRebuilt := Subscribe[SiteRebuilt](bus, 16)
	contact, unsubContact := Subscribe[ContactReceived](bus, 16)
	defer unsubPublished()
	defer unsubUnpublished()
	defer unsubRebuilt()
	defer unsubContact()

	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-published:
			if !ok {
				return
			}
			b.forward(ctx, "article.published", evt)
		case evt, ok := <-unpublished:
			if !ok {
				return
			}
			b.forward(ctx, "article.unpublished", evt)
		case evt, ok := <-rebuilt:
			if !ok {
				return
			}
			b.forward(ctx, "site.rebuilt", evt)
		case evt, ok := <-contact:
			if !ok {
				return
			}
			b.forward(ctx, "contact.received", evt)
		}
	}
}

func (b *Bridge) forward(ctx context.Context, suffix string, evt any) {
	subject := b.prefix + "." + suffix

	data, err := json.Marshal(evt)
	if err != nil {
		b.logger.Warn("failed to encode event", slog.String("subject", subject), logfields.Error(err))
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := b.publish(sendCtx, subject, data); err != nil {
		b.logger.Warn("failed to forward event", slog.String("subject", subject), logfields.Error(err))
	}
}

// Close closes the NATS connection.
func (b *Bridge) Close() {
	if b.conn != nil {
		b.conn.Close()
	}
}
