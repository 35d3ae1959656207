package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/and161185/fleet-status/internal/crypto"
	"github.com/and161185/fleet-status/internal/errs"
	"github.com/and161185/fleet-status/internal/events"
	"github.com/and161185/fleet-status/internal/telemetry"
	"github.com/and161185/fleet-status/internal/validator"
	"github.com/and161185/fleet-status/model"
	"github.com/and161185/fleet-status/storage"
	"go.uber.org/zap"
)

// Service runs one ingestion attempt per report: lookup, verify, validate, append.
type Service struct {
	store     storage.Store
	registry  *validator.Registry
	publisher events.Publisher
	metrics   *telemetry.Metrics
	logger    *zap.SugaredLogger
	timeout   time.Duration
	now       func() time.Time
}

type Option func(*Service)

func WithPublisher(p events.Publisher) Option { return func(s *Service) { s.publisher = p } }
func WithMetrics(m *telemetry.Metrics) Option { return func(s *Service) { s.metrics = m } }
func WithLogger(l *zap.SugaredLogger) Option  { return func(s *Service) { s.logger = l } }

// WithStoreTimeout bounds every store call. Zero means no bound.
func WithStoreTimeout(d time.Duration) Option { return func(s *Service) { s.timeout = d } }

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func NewService(store storage.Store, registry *validator.Registry, opts ...Option) *Service {
	s := &Service{
		store:     store,
		registry:  registry,
		publisher: events.Nop{},
		logger:    zap.NewNop().Sugar(),
		now:       time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// Ingest returns nil on success or an error matching one of errs.ErrBadRequest,
// errs.ErrMachineNotFound, errs.ErrUnauthorized. Anything else is internal.
func (s *Service) Ingest(ctx context.Context, r Report) (err error) {
	var persisted []string
	defer func() {
		s.metrics.ObserveIngest(Outcome(err), persisted)
	}()

	id := r.Machine()
	if id == "" || r.SignatureB64() == "" {
		return fmt.Errorf("%w: missing id or signature", errs.ErrBadRequest)
	}

	machine, err := s.getMachine(ctx, id)
	if err != nil {
		return err
	}

	ok, err := crypto.Verify(machine.PublicKey, r.Message(), r.SignatureB64())
	if err != nil {
		s.logger.Warnw("public key rejected", "machine", id, "error", err)
		return fmt.Errorf("%w: %w", errs.ErrUnauthorized, err)
	}
	if !ok {
		s.logger.Warnw("signature mismatch", "machine", id)
		return fmt.Errorf("%w: signature mismatch for %s", errs.ErrUnauthorized, id)
	}

	samples, err := r.Samples()
	if err != nil {
		return err
	}
	for _, smp := range samples {
		if err := s.registry.Accept(smp.Name, smp.Value); err != nil {
			return err
		}
	}

	appendCtx, cancel := s.storeCtx(ctx)
	defer cancel()
	if err := s.store.Append(appendCtx, id, samples); err != nil {
		if errors.Is(err, errs.ErrMachineNotFound) {
			return fmt.Errorf("%w: %s", errs.ErrMachineNotFound, id)
		}
		s.logger.Errorw("failed to append samples", "machine", id, "error", err)
		return fmt.Errorf("append samples for %s: %w", id, err)
	}

	persisted = make([]string, len(samples))
	for i, smp := range samples {
		persisted[i] = smp.Name
	}

	event := events.Report{MachineID: id, ReceivedAt: s.now().UTC(), Samples: samples}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warnw("failed to publish report event", "machine", id, "error", err)
	}
	return nil
}

func (s *Service) getMachine(ctx context.Context, id string) (model.Machine, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	m, err := s.store.GetMachine(ctx, id)
	if err != nil {
		if errors.Is(err, errs.ErrMachineNotFound) {
			return model.Machine{}, fmt.Errorf("%w: %s", errs.ErrMachineNotFound, id)
		}
		s.logger.Errorw("failed to load machine", "machine", id, "error", err)
		return model.Machine{}, fmt.Errorf("load machine %s: %w", id, err)
	}
	return m, nil
}

// Outcome maps an Ingest result to its telemetry label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return telemetry.OutcomeOK
	case errors.Is(err, errs.ErrBadRequest):
		return telemetry.OutcomeBadRequest
	case errors.Is(err, errs.ErrMachineNotFound):
		return telemetry.OutcomeNotFound
	case errors.Is(err, errs.ErrUnauthorized):
		return telemetry.OutcomeUnauthorized
	default:
		return telemetry.OutcomeError
	}
}
