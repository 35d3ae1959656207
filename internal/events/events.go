// Package events publishes accepted reports to a message bus.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/and161185/fleet-status/model"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const DefaultSubject = "fleetstatus.reports"

var ErrNotConnected = errors.New("nats not connected")

// Report is the payload published for every accepted report.
type Report struct {
	MachineID  string         `json:"machine_id"`
	ReceivedAt time.Time      `json:"received_at"`
	Samples    []model.Sample `json:"samples"`
}

type Publisher interface {
	Publish(ctx context.Context, r Report) error
	Close()
}

// Nop drops every report.
type Nop struct{}

func (Nop) Publish(context.Context, Report) error { return nil }
func (Nop) Close()                                {}

// conn is the subset of *nats.Conn the publisher needs.
type conn interface {
	Publish(subject string, data []byte) error
	IsClosed() bool
	Drain() error
	Close()
}

type NATSPublisher struct {
	nc      conn
	subject string
}

// NewNATSPublisher connects to url and keeps reconnecting forever.
func NewNATSPublisher(url, subject string, logger *zap.SugaredLogger) (*NATSPublisher, error) {
	if subject == "" {
		subject = DefaultSubject
	}
	opts := []nats.Option{
		nats.Name("fleet-status"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Warnw("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Infow("nats reconnected", "url", nc.ConnectedUrl())
		}),
	}
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", url, err)
	}
	return &NATSPublisher{nc: nc, subject: subject}, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, r Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.nc == nil || p.nc.IsClosed() {
		return ErrNotConnected
	}
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal report event: %w", err)
	}
	return p.nc.Publish(p.subject, data)
}

func (p *NATSPublisher) Close() {
	if p.nc != nil {
		_ = p.nc.Drain()
		p.nc.Close()
	}
}
