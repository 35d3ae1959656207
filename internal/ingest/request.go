// Package ingest verifies signed metric reports and appends them to the store.
package ingest

import (
	"encoding/json"
	"fmt"

	"github.com/and161185/fleet-status/internal/crypto"
	"github.com/and161185/fleet-status/internal/errs"
	"github.com/and161185/fleet-status/model"
)

// Report is one decoded ingestion request.
type Report interface {
	Machine() string
	SignatureB64() string
	// Message returns the exact bytes the signature covers.
	Message() []byte
	// Samples parses the report payload. Errors wrap errs.ErrBadRequest.
	Samples() ([]model.Sample, error)
}

// BatchReport carries a JSON array of [name, value] pairs as a string.
type BatchReport struct {
	ID        string
	Signature string
	Logs      string
}

func (r *BatchReport) Machine() string      { return r.ID }
func (r *BatchReport) SignatureB64() string { return r.Signature }

func (r *BatchReport) Message() []byte {
	return crypto.CanonicalMessage(r.ID, r.Logs)
}

func (r *BatchReport) Samples() ([]model.Sample, error) {
	return ParseLogs(r.Logs)
}

// LegacyReport is the single-metric form sent by older agents. Its value is
// always stored as a string.
type LegacyReport struct {
	ID        string
	Signature string
	Key       string
	Value     string
}

func (r *LegacyReport) Machine() string      { return r.ID }
func (r *LegacyReport) SignatureB64() string { return r.Signature }

func (r *LegacyReport) Message() []byte {
	return crypto.LegacyMessage(r.Key, r.Value)
}

func (r *LegacyReport) Samples() ([]model.Sample, error) {
	return []model.Sample{{Name: r.Key, Value: model.String(r.Value)}}, nil
}

// DecodeRequest decodes a request body into a batch or legacy report.
// When both logs and key are present the batch form wins.
func DecodeRequest(body []byte) (Report, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON: %w", errs.ErrBadRequest, err)
	}

	id, err := stringField(raw, "id")
	if err != nil {
		return nil, err
	}
	sig, err := stringField(raw, "signature")
	if err != nil {
		return nil, err
	}

	if _, ok := raw["logs"]; ok {
		logs, err := stringField(raw, "logs")
		if err != nil {
			return nil, err
		}
		return &BatchReport{ID: id, Signature: sig, Logs: logs}, nil
	}

	if _, ok := raw["key"]; ok {
		key, err := stringField(raw, "key")
		if err != nil {
			return nil, err
		}
		value, err := stringField(raw, "value")
		if err != nil {
			return nil, err
		}
		return &LegacyReport{ID: id, Signature: sig, Key: key, Value: value}, nil
	}

	return nil, fmt.Errorf("%w: missing logs", errs.ErrBadRequest)
}

func stringField(raw map[string]json.RawMessage, name string) (string, error) {
	data, ok := raw[name]
	if !ok {
		return "", fmt.Errorf("%w: missing %s", errs.ErrBadRequest, name)
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return "", fmt.Errorf("%w: %s must be a string", errs.ErrBadRequest, name)
	}
	if s == "" {
		return "", fmt.Errorf("%w: empty %s", errs.ErrBadRequest, name)
	}
	return s, nil
}

// ParseLogs decodes a logs string like [["service","active"],["cpu_percent",[3,4]]].
func ParseLogs(logs string) ([]model.Sample, error) {
	var pairs []json.RawMessage
	if err := json.Unmarshal([]byte(logs), &pairs); err != nil {
		return nil, fmt.Errorf("%w: logs must be a JSON array: %w", errs.ErrBadRequest, err)
	}
	if len(pairs) == 0 {
		return nil, fmt.Errorf("%w: empty logs", errs.ErrBadRequest)
	}

	samples := make([]model.Sample, 0, len(pairs))
	for i, p := range pairs {
		var pair []json.RawMessage
		if err := json.Unmarshal(p, &pair); err != nil || len(pair) != 2 {
			return nil, fmt.Errorf("%w: logs[%d] is not a [name, value] pair", errs.ErrBadRequest, i)
		}
		var name string
		if err := json.Unmarshal(pair[0], &name); err != nil || name == "" {
			return nil, fmt.Errorf("%w: logs[%d] has no metric name", errs.ErrBadRequest, i)
		}
		var v model.Value
		if err := json.Unmarshal(pair[1], &v); err != nil {
			return nil, fmt.Errorf("%w: logs[%d] %q: %w", errs.ErrBadRequest, i, name, err)
		}
		samples = append(samples, model.Sample{Name: name, Value: v})
	}
	return samples, nil
}

// EncodeLogs renders samples in the wire form accepted by ParseLogs.
func EncodeLogs(samples []model.Sample) (string, error) {
	pairs := make([][2]any, len(samples))
	for i, s := range samples {
		pairs[i] = [2]any{s.Name, s.Value}
	}
	data, err := json.Marshal(pairs)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
