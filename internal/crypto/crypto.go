// Package crypto loads machine keys and signs/verifies ingestion reports.
package crypto

import (
	"crypto/ed25519"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
)

var (
	ErrNoPEMBlocks       = errors.New("no PEM blocks found")
	ErrNotEd25519Public  = errors.New("PEM is not an Ed25519 public key")
	ErrNotEd25519Private = errors.New("key is not an Ed25519 private key")
	ErrUnsupportedPEM    = errors.New("unsupported PEM block type")
)

// LoadPrivateKey reads an Ed25519 private key from a PEM or raw DER (PKCS#8) file.
func LoadPrivateKey(path string) (ed25519.PrivateKey, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}
	return ParsePrivateKey(b)
}

// ParsePublicKey parses an Ed25519 public key from PEM bytes ("PUBLIC KEY", PKIX).
func ParsePublicKey(pemBytes []byte) (ed25519.PublicKey, error) {
	var found bool
	for {
		var block *pem.Block
		block, pemBytes = pem.Decode(pemBytes)
		if block == nil {
			break
		}
		found = true

		if block.Type != "PUBLIC KEY" {
			continue
		}
		pub, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parse PKIX public key: %w", err)
		}
		edPub, ok := pub.(ed25519.PublicKey)
		if !ok {
			return nil, ErrNotEd25519Public
		}
		return edPub, nil
	}
	if !found {
		return nil, ErrNoPEMBlocks
	}
	return nil, ErrUnsupportedPEM
}

// ParsePrivateKey parses an Ed25519 private key. Accepts a "PRIVATE KEY" PEM block
// or raw PKCS#8 DER as written by the Python agents.
func ParsePrivateKey(b []byte) (ed25519.PrivateKey, error) {
	der := b
	if block, _ := pem.Decode(b); block != nil {
		if block.Type != "PRIVATE KEY" {
			return nil, ErrUnsupportedPEM
		}
		der = block.Bytes
	}

	key, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("parse PKCS8 private key: %w", err)
	}
	edPriv, ok := key.(ed25519.PrivateKey)
	if !ok {
		return nil, ErrNotEd25519Private
	}
	return edPriv, nil
}

// EncodePublicKey renders pub as a "PUBLIC KEY" PEM block.
func EncodePublicKey(pub ed25519.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", fmt.Errorf("marshal public key: %w", err)
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})), nil
}

// EncodePrivateKey renders priv as a "PRIVATE KEY" PEM block.
func EncodePrivateKey(priv ed25519.PrivateKey) ([]byte, error) {
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, fmt.Errorf("marshal private key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), nil
}
