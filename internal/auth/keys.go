// Package auth implements the credential subsystem: RSA key handling,
// issuance and validation of the signed access and renewal tokens, and the
// group-based role checks.
package auth

import (
	"crypto/rsa"
	"fmt"
	"os"

	"github.com/golang-jwt/jwt/v5"
)

// KeyPair holds the RSA key material for token signing and verification.
// Either side may be nil when the corresponding PEM file is not
// configured; issuance and validation then fail with a descriptive error
// instead of the process refusing to start.
type KeyPair struct {
	Private *rsa.PrivateKey
	Public  *rsa.PublicKey
}

// LoadKeys reads the PEM-encoded RSA private and public keys from the
// given paths.
func LoadKeys(privatePath, publicPath string) (*KeyPair, error) {
	privatePEM, err := os.ReadFile(privatePath)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}
	private, err := jwt.ParseRSAPrivateKeyFromPEM(privatePEM)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	publicPEM, err := os.ReadFile(publicPath)
	if err != nil {
		return nil, fmt.Errorf("read public key: %w", err)
	}
	public, err := jwt.ParseRSAPublicKeyFromPEM(publicPEM)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}

	return &KeyPair{Private: private, Public: public}, nil
}
