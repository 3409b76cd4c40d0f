package app

import (
	"fmt"
	"os"

	"github.com/sundog-labs/authgate/pkg/cryptox"
	"github.com/sundog-labs/authgate/pkg/jwtx"
)

// Key derivation labels. Each concern gets an independent subkey off the one
// master secret so compromising one never exposes the other.
const (
	labelTokenSigning  = "token-signing"
	labelHandshakeSeal = "handshake-seal"
)

// initCodec builds the signing codec for the configured algorithm.
func initCodec(cfg Config) (jwtx.Codec, error) {
	switch cfg.Algorithm {
	case "HS256":
		key, err := cryptox.DeriveKey([]byte(cfg.MasterSecret), labelTokenSigning, 32)
		if err != nil {
			return nil, fmt.Errorf("derive signing key: %w", err)
		}
		return jwtx.NewHS256(cfg.Issuer, key)

	case "EdDSA":
		pem, err := os.ReadFile(cfg.SigningKeyFile)
		if err != nil {
			return nil, fmt.Errorf("read signing key file: %w", err)
		}
		return jwtx.NewEdDSA(cfg.Issuer, pem)

	default:
		return nil, fmt.Errorf("unsupported signing algorithm %q", cfg.Algorithm)
	}
}

// sealKey derives the HMAC key for the sealed handshake guard.
func sealKey(cfg Config) ([]byte, error) {
	key, err := cryptox.DeriveKey([]byte(cfg.MasterSecret), labelHandshakeSeal, 32)
	if err != nil {
		return nil, fmt.Errorf("derive handshake seal key: %w", err)
	}
	return key, nil
}
