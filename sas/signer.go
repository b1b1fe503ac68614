package sas

import (
	"fmt"
	"time"

	"github.com/arloliu/busbench/types"
)

// Signer signs tokens with a fixed shared access rule.
//
// Signer is immutable after construction and safe for concurrent use.
type Signer struct {
	keyName  string
	key      []byte
	validity time.Duration
	now      func() time.Time
}

// SignerOption configures a Signer.
type SignerOption func(*Signer)

// WithValidity sets the token lifetime (default DefaultValidity).
func WithValidity(validity time.Duration) SignerOption {
	return func(s *Signer) {
		s.validity = validity
	}
}

// WithClock sets the time source used as the signing instant.
func WithClock(now func() time.Time) SignerOption {
	return func(s *Signer) {
		s.now = now
	}
}

// NewSigner creates a Signer for the given shared access rule.
//
// Parameters:
//   - keyName: Name of the shared access rule
//   - key: Shared access key, used as raw bytes
//   - opts: Optional validity and clock
//
// Returns:
//   - *Signer: Configured signer
//   - error: ErrInvalidKey for an empty key or key name, ErrInvalidValidity for a non-positive validity
func NewSigner(keyName string, key []byte, opts ...SignerOption) (*Signer, error) {
	s := &Signer{
		keyName:  keyName,
		key:      append([]byte(nil), key...),
		validity: DefaultValidity,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if len(s.key) == 0 || s.keyName == "" {
		return nil, types.ErrInvalidKey
	}
	if s.validity <= 0 {
		return nil, fmt.Errorf("%w: got %v", types.ErrInvalidValidity, s.validity)
	}

	return s, nil
}

// KeyName returns the shared access rule name.
func (s *Signer) KeyName() string {
	return s.keyName
}

// Token signs a token for an absolute resource URI at the current instant.
func (s *Signer) Token(resourceURI string) (SignedToken, error) {
	return Sign(SigningRequest{
		ResourceURI: resourceURI,
		KeyName:     s.keyName,
		Key:         s.key,
		Validity:    s.validity,
	}, s.now())
}

// EntityToken signs a token for an entity inside a namespace.
//
// Parameters:
//   - namespace: Namespace host or URL, see BuildAudience
//   - entityPath: Entity path (empty signs for the whole namespace)
//
// Returns:
//   - SignedToken: Signed token
//   - error: Audience or signing failure
func (s *Signer) EntityToken(namespace, entityPath string) (SignedToken, error) {
	audience, err := BuildAudience(namespace, entityPath)
	if err != nil {
		return SignedToken{}, err
	}

	return s.Token(audience)
}
