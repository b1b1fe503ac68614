// Package sas signs shared access signature tokens for bus resources.
//
// A token authorizes access to one resource URI until an expiry instant. It is
// an HMAC-SHA256 over the percent-encoded resource URI and the expiry, keyed
// with the shared access key:
//
//	SharedAccessSignature sr=<enc(uri)>&sig=<enc(base64(hmac))>&se=<expiry>&skn=<enc(keyName)>
package sas

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/arloliu/busbench/types"
)

// tokenPrefix starts every signed token.
const tokenPrefix = "SharedAccessSignature "

// DefaultValidity is the token lifetime used by Signer when none is configured.
const DefaultValidity = 30 * time.Minute

// SigningRequest describes the token to sign.
type SigningRequest struct {
	// ResourceURI is the absolute URI of the resource the token grants access to.
	ResourceURI string
	// KeyName is the name of the shared access rule.
	KeyName string
	// Key is the shared access key. Its bytes are used as the HMAC key as-is.
	Key []byte
	// Validity is how long the token stays valid from the signing instant.
	Validity time.Duration
}

// SignedToken is a signed shared access signature.
type SignedToken struct {
	// Value is the complete "SharedAccessSignature ..." token.
	Value string
	// Audience is the resource URI the token was signed for, not encoded.
	Audience string
	// ExpiresAt is the expiry instant in Unix seconds.
	ExpiresAt int64
}

// Expiry returns ExpiresAt as a time.Time.
func (t SignedToken) Expiry() time.Time {
	return time.Unix(t.ExpiresAt, 0)
}

// String returns the token value.
func (t SignedToken) String() string {
	return t.Value
}

// Sign computes a shared access signature token.
//
// Sign is a pure function of its inputs: the same request and instant always
// produce the same token.
//
// Parameters:
//   - req: Resource, key name, key and validity
//   - now: Signing instant; expiry is floor(now + validity) in Unix seconds
//
// Returns:
//   - SignedToken: Token value, audience and expiry
//   - error: ErrInvalidKey, ErrInvalidResource or ErrInvalidValidity
//
// Example:
//
//	tok, err := sas.Sign(sas.SigningRequest{
//	    ResourceURI: "https://ns.example.net/orders",
//	    KeyName:     "RootManageSharedAccessKey",
//	    Key:         []byte(key),
//	    Validity:    30 * time.Minute,
//	}, time.Now())
func Sign(req SigningRequest, now time.Time) (SignedToken, error) {
	if len(req.Key) == 0 {
		return SignedToken{}, fmt.Errorf("%w: key is empty", types.ErrInvalidKey)
	}
	if req.KeyName == "" {
		return SignedToken{}, fmt.Errorf("%w: key name is empty", types.ErrInvalidKey)
	}
	if req.Validity <= 0 {
		return SignedToken{}, fmt.Errorf("%w: got %v", types.ErrInvalidValidity, req.Validity)
	}
	if err := validateResource(req.ResourceURI); err != nil {
		return SignedToken{}, err
	}

	expiry := now.Add(req.Validity).Unix()
	encodedResource := percentEncode(req.ResourceURI)
	signature := computeSignature(req.Key, encodedResource+"\n"+strconv.FormatInt(expiry, 10))

	var b strings.Builder
	b.Grow(len(tokenPrefix) + len(encodedResource) + len(signature)*2 + len(req.KeyName) + 32)
	b.WriteString(tokenPrefix)
	b.WriteString("sr=")
	b.WriteString(encodedResource)
	b.WriteString("&sig=")
	b.WriteString(percentEncode(signature))
	b.WriteString("&se=")
	b.WriteString(strconv.FormatInt(expiry, 10))
	b.WriteString("&skn=")
	b.WriteString(percentEncode(req.KeyName))

	return SignedToken{
		Value:     b.String(),
		Audience:  req.ResourceURI,
		ExpiresAt: expiry,
	}, nil
}

func validateResource(resourceURI string) error {
	if resourceURI == "" {
		return fmt.Errorf("%w: resource URI is empty", types.ErrInvalidResource)
	}
	u, err := url.Parse(resourceURI)
	if err != nil {
		return fmt.Errorf("%w: %w", types.ErrInvalidResource, err)
	}
	if !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("%w: %q is not an absolute URI with a host", types.ErrInvalidResource, resourceURI)
	}

	return nil
}

// computeSignature returns base64(HMAC-SHA256(key, stringToSign)).
func computeSignature(key []byte, stringToSign string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(stringToSign))

	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// percentEncode escapes every byte outside the unreserved set [A-Za-z0-9-_.~]
// as uppercase %XX, including space as %20.
func percentEncode(s string) string {
	// QueryEscape encodes a literal '+' as %2B, so the only '+' left is a space.
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
