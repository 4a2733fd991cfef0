package config

import "context"

// SecretProvider resolves secret references to their plaintext values. The
// loader uses it for *_FILE pointer variables so that credentials can be
// mounted as files (Docker/Kubernetes secrets) instead of plain env vars.
type SecretProvider interface {
	// ResolveBatch returns a map of ref -> plaintext value for every ref that
	// could be resolved. Refs that do not exist are omitted; any other failure
	// is returned as an error.
	ResolveBatch(ctx context.Context, refs []string) (map[string]string, error)
}
