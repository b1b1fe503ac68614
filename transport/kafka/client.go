package kafka

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/sasl"
	"github.com/twmb/franz-go/pkg/sasl/plain"

	"github.com/arloliu/busbench/sas"
)

// ConnectionStringUser is the SASL/PLAIN user name that tells the endpoint
// the password is a connection string.
const ConnectionStringUser = "$ConnectionString"

// ConnectionString returns a connection string authenticating with token
// against the namespace host.
//
// Parameters:
//   - namespace: Namespace host or URL
//   - token: Signed SAS token value
//
// Returns:
//   - string: "Endpoint=sb://<host>/;SharedAccessSignature=<token>"
//   - error: Namespace without a host
func ConnectionString(namespace, token string) (string, error) {
	audience, err := sas.BuildAudience(namespace, "")
	if err != nil {
		return "", err
	}
	u, err := url.Parse(audience)
	if err != nil {
		return "", fmt.Errorf("invalid namespace %q: %w", namespace, err)
	}

	return "Endpoint=sb://" + u.Hostname() + "/;SharedAccessSignature=" + token, nil
}

// SASLMechanism returns a SASL/PLAIN mechanism that signs a namespace token
// on every authentication.
func SASLMechanism(signer *sas.Signer, namespace string) (sasl.Mechanism, error) {
	if signer == nil {
		return nil, errors.New("sas signer is required")
	}
	audience, err := sas.BuildAudience(namespace, "")
	if err != nil {
		return nil, err
	}

	return plain.Plain(func(context.Context) (plain.Auth, error) {
		tok, err := signer.Token(audience)
		if err != nil {
			return plain.Auth{}, fmt.Errorf("failed to sign SASL token: %w", err)
		}
		pass, err := ConnectionString(namespace, tok.Value)
		if err != nil {
			return plain.Auth{}, err
		}

		return plain.Auth{User: ConnectionStringUser, Pass: pass}, nil
	}), nil
}

// clientOpts builds the franz-go options shared by producer, consumer and admin clients.
func clientOpts(o options) ([]kgo.Opt, error) {
	if len(o.brokers) == 0 {
		return nil, errors.New("at least one kafka broker is required")
	}

	opts := []kgo.Opt{
		kgo.SeedBrokers(o.brokers...),
		kgo.ClientID(o.clientID),
		kgo.FetchMaxWait(o.fetchMaxWait),
	}
	if o.tlsConfig != nil {
		opts = append(opts, kgo.DialTLSConfig(o.tlsConfig.Clone()))
	}
	if o.signer != nil {
		mech, err := SASLMechanism(o.signer, o.namespace)
		if err != nil {
			return nil, err
		}
		opts = append(opts, kgo.SASL(mech))
	}
	if o.logger != nil {
		opts = append(opts, kgo.WithLogger(kgoLogger{logger: o.logger}))
	}
	opts = append(opts, o.extra...)

	return opts, nil
}
