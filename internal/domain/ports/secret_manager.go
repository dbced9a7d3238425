package ports

import "context"

// Secret is a resolved secret value
type Secret struct {
	Metadata map[string]string
	Value    string
	Version  string
}

// SecretManager resolves secrets such as the processor client secret
type SecretManager interface {
	GetSecret(ctx context.Context, path string) (*Secret, error)
}
