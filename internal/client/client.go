// Package client implements the reporting agent: it collects samples, signs
// them with the machine key and posts them to the collector.
package client

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/and161185/fleet-status/internal/config"
	"github.com/and161185/fleet-status/internal/crypto"
	"github.com/and161185/fleet-status/internal/ingest"
	"github.com/and161185/fleet-status/internal/utils"
	"github.com/and161185/fleet-status/model"
	"go.uber.org/zap"
)

// ErrRejected is returned when the collector answers with a non-200 status
// that is not worth retrying.
var ErrRejected = errors.New("report rejected")

// Collector produces the samples of one report.
type Collector interface {
	Collect(ctx context.Context) ([]model.Sample, error)
}

// Client is the agent.
type Client struct {
	collector  Collector
	config     *config.ClientConfig
	httpClient *http.Client
	priv       ed25519.PrivateKey
	logger     *zap.SugaredLogger
}

// NewClient loads the private key and builds the HTTP client from cfg.
func NewClient(c Collector, cfg *config.ClientConfig) (*Client, error) {
	if cfg.MachineID == "" {
		return nil, errors.New("machine id is required")
	}
	priv, err := crypto.LoadPrivateKey(cfg.PrivateKeyPath)
	if err != nil {
		return nil, err
	}
	return NewClientWithHTTP(c, cfg, priv, NewHTTPClient(cfg)), nil
}

// NewClientWithHTTP builds a client around a ready http.Client.
func NewClientWithHTTP(c Collector, cfg *config.ClientConfig, priv ed25519.PrivateKey, hc *http.Client) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Client{collector: c, config: cfg, httpClient: hc, priv: priv, logger: logger}
}

// NewHTTPClient returns a client with the configured per-attempt timeout.
func NewHTTPClient(cfg *config.ClientConfig) *http.Client {
	return &http.Client{Timeout: time.Duration(cfg.ClientTimeout) * time.Second}
}

// Run reports once immediately and then every ReportInterval seconds until
// ctx is done.
func (clnt *Client) Run(ctx context.Context) error {
	interval := time.Duration(clnt.config.ReportInterval) * time.Second
	if interval <= 0 {
		return fmt.Errorf("invalid report interval %d", clnt.config.ReportInterval)
	}

	clnt.reportAndLog(ctx)

	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			clnt.reportAndLog(ctx)
		}
	}
}

func (clnt *Client) reportAndLog(ctx context.Context) {
	if err := clnt.Report(ctx); err != nil {
		clnt.logger.Errorw("report failed", "machine", clnt.config.MachineID, "error", err)
		return
	}
	clnt.logger.Debugw("report sent", "machine", clnt.config.MachineID)
}

// Report collects and sends one report. Collection errors for single
// metrics are logged; whatever was collected is still sent.
func (clnt *Client) Report(ctx context.Context) error {
	samples, err := clnt.collector.Collect(ctx)
	if err != nil {
		clnt.logger.Warnw("partial collection", "error", err)
	}
	if len(samples) == 0 {
		return errors.New("nothing collected")
	}

	if clnt.config.Legacy {
		return clnt.sendLegacy(ctx, samples)
	}
	return clnt.sendBatch(ctx, samples)
}

type batchRequest struct {
	ID        string `json:"id"`
	Signature string `json:"signature"`
	Logs      string `json:"logs"`
}

type legacyRequest struct {
	ID        string `json:"id"`
	Signature string `json:"signature"`
	Key       string `json:"key"`
	Value     string `json:"value"`
}

func (clnt *Client) sendBatch(ctx context.Context, samples []model.Sample) error {
	logs, err := ingest.EncodeLogs(samples)
	if err != nil {
		return fmt.Errorf("encode logs: %w", err)
	}

	id := clnt.config.MachineID
	return clnt.send(ctx, batchRequest{
		ID:        id,
		Signature: crypto.Sign(clnt.priv, crypto.CanonicalMessage(id, logs)),
		Logs:      logs,
	})
}

// sendLegacy posts one request per string sample; other samples have no
// legacy encoding and are skipped.
func (clnt *Client) sendLegacy(ctx context.Context, samples []model.Sample) error {
	var sent int
	for _, smp := range samples {
		value, ok := smp.Value.AsString()
		if !ok {
			clnt.logger.Debugw("skipping non-string sample in legacy mode", "metric", smp.Name)
			continue
		}
		err := clnt.send(ctx, legacyRequest{
			ID:        clnt.config.MachineID,
			Signature: crypto.Sign(clnt.priv, crypto.LegacyMessage(smp.Name, value)),
			Key:       smp.Name,
			Value:     value,
		})
		if err != nil {
			return fmt.Errorf("send %s: %w", smp.Name, err)
		}
		sent++
	}
	if sent == 0 {
		return errors.New("no string samples to send in legacy mode")
	}
	return nil
}

func (clnt *Client) send(ctx context.Context, payload any) error {
	reqCtx, cancel := context.WithTimeout(ctx, clnt.sendBudget())
	defer cancel()

	code, text, err := clnt.postGzipJSON(reqCtx, "/log", payload)
	if err != nil {
		return err
	}
	if code != http.StatusOK {
		return fmt.Errorf("%w: %d %s", ErrRejected, code, text)
	}
	return nil
}

// sendBudget covers every retry attempt of one request.
func (clnt *Client) sendBudget() time.Duration {
	per := time.Duration(clnt.config.ClientTimeout) * time.Second
	if per <= 0 {
		per = 10 * time.Second
	}
	return 4*per + 9*time.Second
}

func (clnt *Client) postGzipJSON(ctx context.Context, path string, payload any) (int, string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return 0, "", fmt.Errorf("marshal: %w", err)
	}

	var body bytes.Buffer
	zw := gzip.NewWriter(&body)
	if _, err = zw.Write(raw); err != nil {
		return 0, "", fmt.Errorf("gzip write: %w", err)
	}
	if err = zw.Close(); err != nil {
		return 0, "", fmt.Errorf("gzip close: %w", err)
	}

	url := strings.TrimRight(clnt.config.ServerAddr, "/") + path
	var (
		code int
		text string
	)
	err = utils.WithRetry(ctx, func() error {
		req, e := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body.Bytes()))
		if e != nil {
			return fmt.Errorf("new request: %w", e)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Content-Encoding", "gzip")

		resp, e := clnt.httpClient.Do(req)
		if e != nil {
			return e
		}
		defer resp.Body.Close()
		reply, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		code, text = resp.StatusCode, strings.TrimSpace(string(reply))
		if code >= http.StatusInternalServerError {
			return fmt.Errorf("%w: status %d", utils.ErrRetryable, code)
		}
		return nil
	})
	if err != nil {
		return code, text, fmt.Errorf("send request: %w", err)
	}
	return code, text, nil
}
