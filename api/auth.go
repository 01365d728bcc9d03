package api

import (
	"bytes"
	"crypto/ecdsa"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/pluggable-systems/plugin-registry-backend/interfaces"
)

// SignatureHeader carries the hex-encoded 65-byte secp256k1 signature over
// the canonical request digest.
const SignatureHeader = "X-Registry-Signature"

// maxBodySize is the maximum allowed request body size (1MB).
const maxBodySize = 1024 * 1024

// ErrMissingSignature is returned when a write request carries no signature
// header.
var ErrMissingSignature = errors.New("missing request signature")

// RequestDigest computes the canonical digest a client signs: the Keccak-256
// hash of "METHOD\nPATH\n" followed by the raw body bytes.
func RequestDigest(method, path string, body []byte) []byte {
	return crypto.Keccak256([]byte(method), []byte("\n"), []byte(path), []byte("\n"), body)
}

// SignRequest signs the request with the given key and sets the signature
// header. The request body, if any, is consumed and restored.
func SignRequest(key *ecdsa.PrivateKey, req *http.Request) error {
	var body []byte
	if req.Body != nil {
		var err error
		body, err = io.ReadAll(req.Body)
		if err != nil {
			return fmt.Errorf("failed to read request body: %w", err)
		}
		req.Body = io.NopCloser(bytes.NewReader(body))
	}

	sig, err := crypto.Sign(RequestDigest(req.Method, req.URL.Path, body), key)
	if err != nil {
		return fmt.Errorf("failed to sign request: %w", err)
	}

	req.Header.Set(SignatureHeader, hex.EncodeToString(sig))
	return nil
}

// RecoverIdentity verifies the request signature and returns the caller
// identity it recovers to. The request body is consumed and restored so later
// handlers can read it.
func RecoverIdentity(r *http.Request) (interfaces.Identity, error) {
	sigHex := r.Header.Get(SignatureHeader)
	if sigHex == "" {
		return interfaces.Identity{}, ErrMissingSignature
	}

	sig, err := hex.DecodeString(sigHex)
	if err != nil {
		return interfaces.Identity{}, fmt.Errorf("invalid signature encoding: %w", err)
	}
	if len(sig) != crypto.SignatureLength {
		return interfaces.Identity{}, fmt.Errorf("invalid signature length: %d", len(sig))
	}

	var body []byte
	if r.Body != nil {
		body, err = io.ReadAll(io.LimitReader(r.Body, maxBodySize))
		if err != nil {
			return interfaces.Identity{}, fmt.Errorf("failed to read request body: %w", err)
		}
		r.Body = io.NopCloser(bytes.NewReader(body))
	}

	pubkey, err := crypto.SigToPub(RequestDigest(r.Method, r.URL.Path, body), sig)
	if err != nil {
		return interfaces.Identity{}, fmt.Errorf("failed to recover signer: %w", err)
	}

	addr := crypto.PubkeyToAddress(*pubkey)
	return interfaces.NewAddressFromBytes(addr.Bytes())
}

// IdentityForKey returns the caller identity a key's signatures recover to.
func IdentityForKey(key *ecdsa.PrivateKey) interfaces.Identity {
	addr := crypto.PubkeyToAddress(key.PublicKey)
	identity, _ := interfaces.NewAddressFromBytes(addr.Bytes())
	return identity
}
