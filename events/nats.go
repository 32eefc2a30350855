// ABOUTME: NATS publisher for lifecycle events
// ABOUTME: Publishes each event as JSON on <prefix>.<kind> without waiting for consumers
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// DefaultSubjectPrefix is used when no prefix is configured.
const DefaultSubjectPrefix = "cistore.objects"

// NATSPublisher emits events to a NATS server.
type NATSPublisher struct {
	nc     *nats.Conn
	prefix string
	log    *zap.Logger
}

// NewNATSPublisher connects to url. Reconnects are retried forever in the
// background once the first connection succeeds.
func NewNATSPublisher(url, prefix string, log *zap.Logger) (*NATSPublisher, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	opts := []nats.Option{
		nats.Name("cistore"),
		nats.Timeout(2 * time.Second),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Warn("nats disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	}
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, err
	}
	return &NATSPublisher{nc: nc, prefix: prefix, log: log}, nil
}

// Subject returns the subject an event of kind k is published on.
func Subject(prefix string, k Kind) string {
	return prefix + "." + string(k)
}

func (p *NATSPublisher) Emit(_ context.Context, e Event) {
	if p.nc == nil || p.nc.IsClosed() {
		p.log.Warn("nats not connected, dropping event", zap.String("kind", string(e.Kind)))
		return
	}
	payload, err := json.Marshal(e)
	if err != nil {
		p.log.Error("encode event", zap.Error(err))
		return
	}
	if err := p.nc.Publish(Subject(p.prefix, e.Kind), payload); err != nil {
		p.log.Error("publish event",
			zap.String("kind", string(e.Kind)),
			zap.Int64("object_id", e.ObjectID),
			zap.Error(err),
		)
	}
}

// Close flushes pending messages and closes the connection.
func (p *NATSPublisher) Close() {
	if p.nc != nil {
		_ = p.nc.Drain()
		p.nc.Close()
	}
}
