package security

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrKeyNotFound indicates no verification key is registered for a kid.
	ErrKeyNotFound = errors.New("key not found")
	// ErrSigningUnavailable indicates the provider cannot produce a signing key.
	ErrSigningUnavailable = errors.New("signing key unavailable")
)

// KeyProvider supplies the verification keys used to validate access tokens.
// Tokens are issued by the upstream identity service; this service only ever
// verifies, but the dev provider also exposes a signing key so tests and
// local tooling can mint tokens.
type KeyProvider interface {
	GetVerificationKey(kid string) (*rsa.PublicKey, error)
	GetSigningKey() (*rsa.PrivateKey, error)
}

// DirKeyProvider reads PEM-encoded RSA keys from a directory. The file name
// without extension becomes the kid.
type DirKeyProvider struct {
	keys       map[string]*rsa.PublicKey
	signingKey *rsa.PrivateKey
}

// NewDirKeyProvider loads every parseable key file in keyDir.
func NewDirKeyProvider(keyDir string) (*DirKeyProvider, error) {
	files, err := os.ReadDir(keyDir)
	if err != nil {
		return nil, fmt.Errorf("read key directory: %w", err)
	}

	provider := &DirKeyProvider{keys: make(map[string]*rsa.PublicKey)}

	for _, file := range files {
		if file.IsDir() {
			continue
		}

		path := filepath.Join(keyDir, file.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read key file %s: %w", path, err)
		}

		block, _ := pem.Decode(data)
		if block == nil {
			return nil, fmt.Errorf("decode PEM block from %s", path)
		}

		kid := strings.TrimSuffix(file.Name(), filepath.Ext(file.Name()))

		if key, err := parsePrivateKey(block.Bytes); err == nil {
			if provider.signingKey == nil {
				provider.signingKey = key
			}
			provider.keys[kid] = &key.PublicKey
			continue
		}

		if key, err := parsePublicKey(block.Bytes); err == nil {
			provider.keys[kid] = key
			continue
		}

		return nil, fmt.Errorf("parse key from file %s", path)
	}

	if len(provider.keys) == 0 {
		return nil, errors.New("no verification keys found")
	}

	return provider, nil
}

func parsePrivateKey(der []byte) (*rsa.PrivateKey, error) {
	if key, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return key, nil
	}
	key, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, err
	}
	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("not an RSA private key")
	}
	return rsaKey, nil
}

func parsePublicKey(der []byte) (*rsa.PublicKey, error) {
	if key, err := x509.ParsePKCS1PublicKey(der); err == nil {
		return key, nil
	}
	key, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, err
	}
	rsaKey, ok := key.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("not an RSA public key")
	}
	return rsaKey, nil
}

// GetVerificationKey returns the public key registered for kid.
func (p *DirKeyProvider) GetVerificationKey(kid string) (*rsa.PublicKey, error) {
	key, ok := p.keys[kid]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, kid)
	}
	return key, nil
}

// GetSigningKey returns the first private key found in the directory.
func (p *DirKeyProvider) GetSigningKey() (*rsa.PrivateKey, error) {
	if p.signingKey == nil {
		return nil, ErrSigningUnavailable
	}
	return p.signingKey, nil
}

// StaticKeyProvider serves a fixed key map, used when keys are supplied by
// configuration or by tests.
type StaticKeyProvider struct {
	keys       map[string]*rsa.PublicKey
	signingKey *rsa.PrivateKey
	signingKID string
}

// NewStaticKeyProvider builds a provider around a pre-parsed key set.
func NewStaticKeyProvider(keys map[string]*rsa.PublicKey) *StaticKeyProvider {
	copied := make(map[string]*rsa.PublicKey, len(keys))
	for kid, key := range keys {
		copied[kid] = key
	}
	return &StaticKeyProvider{keys: copied}
}

// WithSigningKey registers a signing key and its kid, also exposing the
// public half for verification.
func (p *StaticKeyProvider) WithSigningKey(kid string, key *rsa.PrivateKey) *StaticKeyProvider {
	p.signingKey = key
	p.signingKID = kid
	if key != nil {
		p.keys[kid] = &key.PublicKey
	}
	return p
}

// SigningKID returns the kid associated with the signing key.
func (p *StaticKeyProvider) SigningKID() string {
	return p.signingKID
}

// GetVerificationKey returns the public key registered for kid.
func (p *StaticKeyProvider) GetVerificationKey(kid string) (*rsa.PublicKey, error) {
	key, ok := p.keys[kid]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, kid)
	}
	return key, nil
}

// GetSigningKey returns the registered signing key when present.
func (p *StaticKeyProvider) GetSigningKey() (*rsa.PrivateKey, error) {
	if p.signingKey == nil {
		return nil, ErrSigningUnavailable
	}
	return p.signingKey, nil
}
