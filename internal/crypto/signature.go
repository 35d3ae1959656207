package crypto

import (
	"crypto/ed25519"
	"encoding/base64"
)

// CanonicalMessage returns the bytes a batch report is signed over: the machine id
// followed by the logs string exactly as transmitted.
func CanonicalMessage(machineID, logs string) []byte {
	msg := make([]byte, 0, len(machineID)+len(logs))
	msg = append(msg, machineID...)
	return append(msg, logs...)
}

// LegacyMessage returns the bytes a single-metric legacy report is signed over.
func LegacyMessage(key, value string) []byte {
	msg := make([]byte, 0, len(key)+len(value))
	msg = append(msg, key...)
	return append(msg, value...)
}

// Verify checks signatureB64 over message with the PEM encoded Ed25519 key.
// A malformed key or a key of another type is an error; a bad signature is false.
func Verify(publicKeyPEM string, message []byte, signatureB64 string) (bool, error) {
	pub, err := ParsePublicKey([]byte(publicKeyPEM))
	if err != nil {
		return false, err
	}

	sig, err := base64.StdEncoding.DecodeString(signatureB64)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return false, nil
	}
	return ed25519.Verify(pub, message, sig), nil
}

// Sign signs message and returns the base64 signature.
func Sign(priv ed25519.PrivateKey, message []byte) string {
	return base64.StdEncoding.EncodeToString(ed25519.Sign(priv, message))
}
