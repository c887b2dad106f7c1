package paramstore

import (
	"context"
	"fmt"
	"strings"
)

// TokenGetter is satisfied by *Client.
type TokenGetter interface {
	Token(ctx context.Context, name string) (string, error)
}

// Secret is a credential that may be supplied directly or stored in SSM.
type Secret struct {
	Name  string // parameter name under the prefix, e.g. "gemini-token"
	Value string // value from the environment; wins when non-empty
}

// Resolve returns s.Value when set, otherwise the token stored under s.Name.
// A nil getter with an empty value is an error.
func Resolve(ctx context.Context, g TokenGetter, s Secret) (string, error) {
	if v := strings.TrimSpace(s.Value); v != "" {
		return v, nil
	}
	if g == nil {
		return "", fmt.Errorf("paramstore: secret %q is not set and no parameter store is configured", s.Name)
	}
	return g.Token(ctx, s.Name)
}
