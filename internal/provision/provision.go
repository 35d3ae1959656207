// Package provision loads the machine seed file and registers machines in a store.
package provision

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/and161185/fleet-status/internal/crypto"
	"github.com/and161185/fleet-status/model"
	"gopkg.in/yaml.v3"
)

var ErrEmptyID = errors.New("machine id is empty")

// Seed is the on-disk format of the machines file.
//
//	machines:
//	  - id: b-01
//	    public_key: |
//	      -----BEGIN PUBLIC KEY-----
//	      ...
type Seed struct {
	Machines []model.Machine `yaml:"machines"`
}

// Registrar is the part of the store provisioning writes to.
type Registrar interface {
	PutMachine(ctx context.Context, m model.Machine) error
}

// LoadFile reads and validates a seed file.
func LoadFile(path string) ([]model.Machine, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read machines file: %w", err)
	}
	return Parse(data)
}

// Parse decodes seed YAML. Unknown fields are rejected, duplicate ids too.
func Parse(data []byte) ([]model.Machine, error) {
	var seed Seed
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&seed); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse machines file: %w", err)
	}

	seen := make(map[string]struct{}, len(seed.Machines))
	for i := range seed.Machines {
		m := &seed.Machines[i]
		m.ID = strings.TrimSpace(m.ID)
		if err := Validate(*m); err != nil {
			return nil, fmt.Errorf("machine #%d: %w", i+1, err)
		}
		if _, dup := seen[m.ID]; dup {
			return nil, fmt.Errorf("machine %q listed twice", m.ID)
		}
		seen[m.ID] = struct{}{}
	}
	return seed.Machines, nil
}

// Validate checks the id and that the public key is an Ed25519 PEM key.
func Validate(m model.Machine) error {
	if m.ID == "" {
		return ErrEmptyID
	}
	if _, err := crypto.ParsePublicKey([]byte(m.PublicKey)); err != nil {
		return fmt.Errorf("machine %q: %w", m.ID, err)
	}
	return nil
}

// Register writes machines to the store, replacing existing keys.
func Register(ctx context.Context, store Registrar, machines []model.Machine) error {
	for _, m := range machines {
		if err := Validate(m); err != nil {
			return err
		}
		if err := store.PutMachine(ctx, m); err != nil {
			return fmt.Errorf("register machine %q: %w", m.ID, err)
		}
	}
	return nil
}

// Marshal renders machines in the seed format.
func Marshal(machines []model.Machine) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(Seed{Machines: machines}); err != nil {
		return nil, fmt.Errorf("encode machines: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode machines: %w", err)
	}
	return buf.Bytes(), nil
}
