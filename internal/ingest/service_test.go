package ingest

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"testing"
	"time"

	"github.com/and161185/fleet-status/internal/crypto"
	"github.com/and161185/fleet-status/internal/errs"
	"github.com/and161185/fleet-status/internal/events"
	"github.com/and161185/fleet-status/internal/telemetry"
	"github.com/and161185/fleet-status/internal/validator"
	"github.com/and161185/fleet-status/model"
	"github.com/and161185/fleet-status/storage/inmemory"
	"github.com/and161185/fleet-status/storage/mocks"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fixture struct {
	store *inmemory.MemStorage
	priv  ed25519.PrivateKey
	svc   *Service
	pub   *recordingPublisher
	logs  *observer.ObservedLogs
}

type recordingPublisher struct {
	reports []events.Report
	err     error
}

func (p *recordingPublisher) Publish(_ context.Context, r events.Report) error {
	p.reports = append(p.reports, r)
	return p.err
}
func (p *recordingPublisher) Close() {}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	pubKey, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	pemKey, err := crypto.EncodePublicKey(pubKey)
	require.NoError(t, err)

	store := inmemory.NewMemStorage()
	require.NoError(t, store.PutMachine(context.Background(), model.Machine{ID: "b-01", PublicKey: pemKey}))

	core, logs := observer.New(zapcore.DebugLevel)
	rp := &recordingPublisher{}
	svc := NewService(store, validator.NewRegistry(validator.Structured()),
		WithLogger(zap.New(core).Sugar()),
		WithPublisher(rp),
		WithMetrics(telemetry.New()),
		WithStoreTimeout(time.Second),
	)
	return &fixture{store: store, priv: priv, svc: svc, pub: rp, logs: logs}
}

func (f *fixture) batch(id, logs string) *BatchReport {
	return &BatchReport{ID: id, Logs: logs, Signature: crypto.Sign(f.priv, crypto.CanonicalMessage(id, logs))}
}

func TestIngest_OK(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.svc.Ingest(ctx, f.batch("b-01", `[["service","active"],["cpu_percent",[12.5,40]]]`))
	require.NoError(t, err)

	names, err := f.store.ListSeries(ctx, "b-01")
	require.NoError(t, err)
	require.Equal(t, []string{"cpu_percent", "service"}, names)

	require.Len(t, f.pub.reports, 1)
	require.Equal(t, "b-01", f.pub.reports[0].MachineID)
	require.Len(t, f.pub.reports[0].Samples, 2)
}

func TestIngest_Legacy(t *testing.T) {
	f := newFixture(t)
	r := &LegacyReport{ID: "b-01", Key: "service", Value: "active"}
	r.Signature = crypto.Sign(f.priv, r.Message())

	require.NoError(t, f.svc.Ingest(context.Background(), r))
	e, err := f.store.Latest(context.Background(), model.SeriesKey{MachineID: "b-01", Name: "service"})
	require.NoError(t, err)
	require.True(t, e.Value.Equal(model.String("active")))
}

func TestIngest_InvalidPairPersistsNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	logs := `[["service","active"],["cpu_percent",[1,2]],["memory","lots"],["disk",{"total":1,"used":0,"free":1}]]`
	err := f.svc.Ingest(ctx, f.batch("b-01", logs))
	require.ErrorIs(t, err, errs.ErrBadRequest)

	names, err := f.store.ListSeries(ctx, "b-01")
	require.NoError(t, err)
	require.Empty(t, names)
	require.Empty(t, f.pub.reports)
}

func TestIngest_UnknownMetricAnyShape(t *testing.T) {
	f := newFixture(t)
	for _, logs := range []string{
		`[["load_avg","active"]]`,
		`[["load_avg",1]]`,
		`[["load_avg",true]]`,
		`[["load_avg",[1,2]]]`,
		`[["load_avg",{"total":1}]]`,
	} {
		err := f.svc.Ingest(context.Background(), f.batch("b-01", logs))
		require.ErrorIs(t, err, errs.ErrBadRequest, logs)
		require.ErrorIs(t, err, errs.ErrUnknownMetric, logs)
	}
}

func TestIngest_MachineNotFound(t *testing.T) {
	f := newFixture(t)
	err := f.svc.Ingest(context.Background(), f.batch("ghost", `[["service","active"]]`))
	require.ErrorIs(t, err, errs.ErrMachineNotFound)
}

func TestIngest_Unauthorized(t *testing.T) {
	f := newFixture(t)
	r := f.batch("b-01", `[["service","active"]]`)
	r.Logs = `[["service","failed"]]`

	err := f.svc.Ingest(context.Background(), r)
	require.ErrorIs(t, err, errs.ErrUnauthorized)
	require.Equal(t, 1, f.logs.FilterMessage("signature mismatch").Len())
}

func TestIngest_WrongKeyTypeIsUnauthorized(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.PutMachine(context.Background(), model.Machine{ID: "b-02", PublicKey: "not a pem"}))

	err := f.svc.Ingest(context.Background(), f.batch("b-02", `[["service","active"]]`))
	require.ErrorIs(t, err, errs.ErrUnauthorized)
	require.Equal(t, 1, f.logs.FilterMessage("public key rejected").Len())
}

func TestIngest_SignatureCheckedBeforePayload(t *testing.T) {
	f := newFixture(t)
	r := &BatchReport{ID: "b-01", Logs: `not json`, Signature: crypto.Sign(f.priv, []byte("other"))}
	require.ErrorIs(t, f.svc.Ingest(context.Background(), r), errs.ErrUnauthorized)
}

func TestIngest_PublishFailureIsIgnored(t *testing.T) {
	f := newFixture(t)
	f.pub.err = errors.New("bus down")
	require.NoError(t, f.svc.Ingest(context.Background(), f.batch("b-01", `[["service","active"]]`)))
	require.Equal(t, 1, f.logs.FilterMessage("failed to publish report event").Len())
}

func TestIngest_StoreFailureIsInternal(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStore(ctrl)

	pubKey, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	pemKey, err := crypto.EncodePublicKey(pubKey)
	require.NoError(t, err)

	store.EXPECT().GetMachine(gomock.Any(), "b-01").Return(model.Machine{ID: "b-01", PublicKey: pemKey}, nil)
	store.EXPECT().Append(gomock.Any(), "b-01", gomock.Len(1)).Return(errors.New("connection reset"))

	svc := NewService(store, validator.NewRegistry(validator.Structured()))
	logs := `[["service","active"]]`
	err = svc.Ingest(context.Background(), &BatchReport{ID: "b-01", Logs: logs, Signature: crypto.Sign(priv, crypto.CanonicalMessage("b-01", logs))})
	require.Error(t, err)
	require.Equal(t, telemetry.OutcomeError, Outcome(err))
}

func TestIngest_StoreTimeout(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStore(ctrl)
	store.EXPECT().GetMachine(gomock.Any(), "b-01").DoAndReturn(func(ctx context.Context, _ string) (model.Machine, error) {
		<-ctx.Done()
		return model.Machine{}, ctx.Err()
	})

	svc := NewService(store, validator.NewRegistry(validator.Structured()), WithStoreTimeout(10*time.Millisecond))
	err := svc.Ingest(context.Background(), &BatchReport{ID: "b-01", Logs: "[]", Signature: "c2ln"})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, telemetry.OutcomeError, Outcome(err))
}

func TestOutcome(t *testing.T) {
	require.Equal(t, telemetry.OutcomeOK, Outcome(nil))
	require.Equal(t, telemetry.OutcomeBadRequest, Outcome(errs.ErrBadRequest))
	require.Equal(t, telemetry.OutcomeNotFound, Outcome(errs.ErrMachineNotFound))
	require.Equal(t, telemetry.OutcomeUnauthorized, Outcome(errs.ErrUnauthorized))
}
