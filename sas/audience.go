package sas

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/arloliu/busbench/types"
)

// BuildAudience builds the resource URI a token for an entity is signed for.
//
// The namespace may be a bare host ("ns.example.net") or a URL
// ("sb://NS.example.net:5671/"). The result:
//   - uses the namespace scheme, or "https" when it has none
//   - has a lower-case scheme and host
//   - has no port, userinfo, query or fragment
//   - takes its path from entityPath only; any namespace path is dropped
//   - never ends with "/"
//
// Parameters:
//   - namespace: Fully qualified namespace host or URL
//   - entityPath: Entity path such as "orders" or "orders/subscriptions/audit" (may be empty)
//
// Returns:
//   - string: Audience URI
//   - error: ErrInvalidResource if the namespace has no host
//
// Example:
//
//	aud, _ := sas.BuildAudience("NS.example.net", "/orders/")
//	// aud == "https://ns.example.net/orders"
func BuildAudience(namespace, entityPath string) (string, error) {
	namespace = strings.TrimSpace(namespace)
	if namespace == "" {
		return "", fmt.Errorf("%w: namespace is empty", types.ErrInvalidResource)
	}
	if !strings.Contains(namespace, "://") {
		namespace = "https://" + namespace
	}

	u, err := url.Parse(namespace)
	if err != nil {
		return "", fmt.Errorf("%w: %w", types.ErrInvalidResource, err)
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", fmt.Errorf("%w: namespace %q has no host", types.ErrInvalidResource, namespace)
	}

	audience := strings.ToLower(u.Scheme) + "://" + host
	if path := strings.Trim(entityPath, "/"); path != "" {
		audience += "/" + path
	}

	return audience, nil
}
