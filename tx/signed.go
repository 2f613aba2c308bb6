package tx

import (
	"crypto/ed25519"
	"encoding/json"
	"fmt"

	"github.com/xraph/certledger"
	"github.com/xraph/certledger/types"
)

// Signed is an envelope together with the ed25519 signature over its exact
// encoded bytes. The signer's address must match the envelope's From.
type Signed struct {
	Envelope  []byte            `json:"envelope"`
	PublicKey ed25519.PublicKey `json:"public_key"`
	Signature []byte            `json:"signature"`
}

// Sign encodes env and signs the encoding with priv.
func Sign(env *Envelope, priv ed25519.PrivateKey) (*Signed, error) {
	raw, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("tx: encode envelope: %w", err)
	}
	return &Signed{
		Envelope:  raw,
		PublicKey: priv.Public().(ed25519.PublicKey),
		Signature: ed25519.Sign(priv, raw),
	}, nil
}

// Open verifies the signature and returns the decoded envelope. Envelopes
// without a nonce are rejected.
func (s *Signed) Open() (*Envelope, error) {
	if len(s.PublicKey) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: public key is %d bytes", certledger.ErrInvalidSignature, len(s.PublicKey))
	}
	if len(s.Signature) != ed25519.SignatureSize {
		return nil, fmt.Errorf("%w: signature is %d bytes", certledger.ErrInvalidSignature, len(s.Signature))
	}
	if !ed25519.Verify(s.PublicKey, s.Envelope, s.Signature) {
		return nil, certledger.ErrInvalidSignature
	}

	var env Envelope
	if err := json.Unmarshal(s.Envelope, &env); err != nil {
		return nil, certledger.ValidationError{Field: "envelope", Message: err.Error()}
	}

	if env.Nonce == "" {
		return nil, certledger.ValidationError{Field: "nonce", Message: "signed envelopes require a nonce"}
	}

	signer := types.AddressFromPublicKey(s.PublicKey)
	if env.From != signer {
		return nil, fmt.Errorf("%w: from %s, signed by %s", certledger.ErrInvalidSignature, env.From, signer)
	}
	return &env, nil
}
