package sas

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/arloliu/busbench/types"
	"github.com/stretchr/testify/require"
)

func TestSign_ReferenceVectors(t *testing.T) {
	tests := []struct {
		name string
		req  SigningRequest
		now  time.Time
		want string
	}{
		{
			name: "plain resource",
			req: SigningRequest{
				ResourceURI: "https://ns.example.net/topic",
				KeyName:     "manageKey",
				Key:         []byte("dGVzdGtleQ=="),
				Validity:    1800 * time.Second,
			},
			now:  time.Unix(1700000000, 0),
			want: "SharedAccessSignature sr=https%3A%2F%2Fns.example.net%2Ftopic&sig=QaHh%2FabUqWiH8oiU0YEfO%2BLllsHZwkMaN1AQsfH9Cbw%3D&se=1700001800&skn=manageKey",
		},
		{
			name: "spaces encode as %20",
			req: SigningRequest{
				ResourceURI: "https://ns.example.net/my topic",
				KeyName:     "send key",
				Key:         []byte("secret"),
				Validity:    time.Hour,
			},
			now:  time.Unix(1700000000, 0),
			want: "SharedAccessSignature sr=https%3A%2F%2Fns.example.net%2Fmy%20topic&sig=sb%2B7qSUKoRvarjAJtL8aAh8dCsV%2FuN2MNoppjpdgSgo%3D&se=1700003600&skn=send%20key",
		},
		{
			name: "subscription entity",
			req: SigningRequest{
				ResourceURI: "https://ns.example.net/orders/subscriptions/audit",
				KeyName:     "listen",
				Key:         []byte("secret"),
				Validity:    time.Minute,
			},
			now:  time.Unix(1700000000, 0),
			want: "SharedAccessSignature sr=https%3A%2F%2Fns.example.net%2Forders%2Fsubscriptions%2Faudit&sig=UPJLo9cLaqQAL7Wni3LTTHlNnkVuoGd15UB3FrLCeNM%3D&se=1700000060&skn=listen",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tok, err := Sign(tt.req, tt.now)
			require.NoError(t, err)
			require.Equal(t, tt.want, tok.Value)
			require.Equal(t, tt.want, tok.String())
			require.Equal(t, tt.req.ResourceURI, tok.Audience)
		})
	}
}

func TestSign_ExpiryIsFloored(t *testing.T) {
	req := SigningRequest{
		ResourceURI: "https://ns.example.net/topic",
		KeyName:     "manageKey",
		Key:         []byte("dGVzdGtleQ=="),
		Validity:    1800 * time.Second,
	}

	tok, err := Sign(req, time.Unix(1700000000, 999_999_999))
	require.NoError(t, err)
	require.Equal(t, int64(1700001800), tok.ExpiresAt)
	require.Equal(t, time.Unix(1700001800, 0), tok.Expiry())
	require.True(t, strings.HasSuffix(tok.Value, "&se=1700001800&skn=manageKey"))
}

func TestSign_Deterministic(t *testing.T) {
	req := SigningRequest{
		ResourceURI: "https://ns.example.net/orders",
		KeyName:     "rule",
		Key:         []byte("k"),
		Validity:    5 * time.Minute,
	}
	now := time.Unix(1710000000, 0)

	a, err := Sign(req, now)
	require.NoError(t, err)
	b, err := Sign(req, now)
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestSign_SignatureVerifies(t *testing.T) {
	req := SigningRequest{
		ResourceURI: "sb://ns.example.net/orders",
		KeyName:     "rule",
		Key:         []byte("another-key"),
		Validity:    10 * time.Minute,
	}
	tok, err := Sign(req, time.Unix(1720000000, 0))
	require.NoError(t, err)

	query, err := url.ParseQuery(strings.TrimPrefix(tok.Value, tokenPrefix))
	require.NoError(t, err)
	require.Equal(t, req.ResourceURI, query.Get("sr"))
	require.Equal(t, "1720000600", query.Get("se"))
	require.Equal(t, "rule", query.Get("skn"))

	mac := hmac.New(sha256.New, req.Key)
	mac.Write([]byte(url.QueryEscape(req.ResourceURI) + "\n1720000600"))
	require.Equal(t, base64.StdEncoding.EncodeToString(mac.Sum(nil)), query.Get("sig"))
}

func TestSign_Validation(t *testing.T) {
	valid := SigningRequest{
		ResourceURI: "https://ns.example.net/topic",
		KeyName:     "rule",
		Key:         []byte("k"),
		Validity:    time.Minute,
	}
	now := time.Unix(1700000000, 0)

	tests := []struct {
		name   string
		mutate func(r *SigningRequest)
		want   error
	}{
		{"empty key", func(r *SigningRequest) { r.Key = nil }, types.ErrInvalidKey},
		{"empty key name", func(r *SigningRequest) { r.KeyName = "" }, types.ErrInvalidKey},
		{"empty resource", func(r *SigningRequest) { r.ResourceURI = "" }, types.ErrInvalidResource},
		{"relative resource", func(r *SigningRequest) { r.ResourceURI = "ns.example.net/topic" }, types.ErrInvalidResource},
		{"resource without host", func(r *SigningRequest) { r.ResourceURI = "https:///topic" }, types.ErrInvalidResource},
		{"unparseable resource", func(r *SigningRequest) { r.ResourceURI = "https://ns example.net/%zz" }, types.ErrInvalidResource},
		{"zero validity", func(r *SigningRequest) { r.Validity = 0 }, types.ErrInvalidValidity},
		{"negative validity", func(r *SigningRequest) { r.Validity = -time.Second }, types.ErrInvalidValidity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.mutate(&req)
			_, err := Sign(req, now)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestPercentEncode(t *testing.T) {
	require.Equal(t, "a-b_c.d~e", percentEncode("a-b_c.d~e"))
	require.Equal(t, "a%20b%2Bc%2Fd%3D", percentEncode("a b+c/d="))
	require.Equal(t, "%C3%A9", percentEncode("é"))
}
