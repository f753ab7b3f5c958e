package secrets

import (
	"context"
	"os"

	"github.com/flowplane/flowplane/pkg/apierr"
)

// EnvBackend resolves a path as an environment variable name. It exists
// mainly for local development and tests; it is never the right choice
// for a production secret a proxy's TLS material depends on.
type EnvBackend struct{}

func (EnvBackend) Name() string { return "env" }

func (EnvBackend) Fetch(_ context.Context, path string) ([]byte, error) {
	v, ok := os.LookupEnv(path)
	if !ok {
		return nil, apierr.NotFoundf("env_secret", path)
	}
	return []byte(v), nil
}
