package natsjs

import (
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/arloliu/busbench/internal/logging"
	"github.com/arloliu/busbench/sas"
	"github.com/arloliu/busbench/types"
)

// TokenHandler returns a connect option that presents a freshly signed SAS
// token for audience on every (re)connect.
//
// Signing failures are logged and an empty token is presented, which the
// server rejects.
func TokenHandler(signer *sas.Signer, audience string, logger types.Logger) nats.Option {
	if logger == nil {
		logger = logging.NewNop()
	}

	return nats.TokenHandler(func() string {
		tok, err := signer.Token(audience)
		if err != nil {
			logger.Error("failed to sign connection token", "audience", audience, "error", err)
			return ""
		}

		return tok.Value
	})
}

// Connect dials the NATS server at url.
//
// When signer is non-nil the connection authenticates with SAS tokens for
// audience; extra options are applied after the token handler.
//
// Parameters:
//   - url: NATS server URL(s), comma separated
//   - signer: Optional SAS signer
//   - audience: Token audience, see sas.BuildAudience
//   - logger: Optional logger for connection events
//   - opts: Additional nats options
//
// Returns:
//   - *nats.Conn: Established connection, owned by the caller
//   - error: Dial or authentication failure
//
// Example:
//
//	signer, _ := sas.NewSigner("manageKey", key)
//	audience, _ := sas.BuildAudience("ns.example.net", "orders")
//	nc, err := natsjs.Connect(nats.DefaultURL, signer, audience, logger)
func Connect(url string, signer *sas.Signer, audience string, logger types.Logger, opts ...nats.Option) (*nats.Conn, error) {
	if logger == nil {
		logger = logging.NewNop()
	}

	all := []nats.Option{
		nats.Name("busbench"),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	}
	if signer != nil {
		all = append(all, TokenHandler(signer, audience, logger))
	}
	all = append(all, opts...)

	nc, err := nats.Connect(url, all...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", url, err)
	}

	return nc, nil
}
