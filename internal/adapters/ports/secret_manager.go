package ports

import (
	"context"
)

// Secret is a value read from a secret store
type Secret struct {
	Value   string
	Version string
}

// SecretManagerAdapter reads secrets by path.
// Path format depends on the backend:
//   - AWS: "tsys-connector/processors/{id}/merchant-key" or a full ARN
//   - Vault: "tsys-connector/processors/{id}" under the configured KV mount
//   - Local: a file path relative to the base directory
//
// Implementations must not cache: merchant keys are resolved per payment attempt.
type SecretManagerAdapter interface {
	GetSecret(ctx context.Context, path string) (*Secret, error)
}
