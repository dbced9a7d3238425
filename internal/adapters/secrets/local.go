package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/kevin07696/paypal-billing/internal/domain/ports"
	"go.uber.org/zap"
)

// LocalSecretManager reads secrets from files below basePath.
// Development only: use AWS Secrets Manager or Vault in production.
type LocalSecretManager struct {
	basePath string
	logger   *zap.Logger
}

func NewLocalSecretManager(basePath string, logger *zap.Logger) *LocalSecretManager {
	return &LocalSecretManager{basePath: basePath, logger: logger}
}

// GetSecret accepts plain text files or JSON {"value": ..., "tags": {...}}
func (m *LocalSecretManager) GetSecret(_ context.Context, secretPath string) (*ports.Secret, error) {
	filePath := filepath.Join(m.basePath, secretPath)
	m.logger.Debug("Reading secret from filesystem", zap.String("path", secretPath))

	data, err := os.ReadFile(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("secret not found: %s", secretPath)
		}
		return nil, fmt.Errorf("failed to read secret: %w", err)
	}

	var secretData struct {
		Value string            `json:"value"`
		Tags  map[string]string `json:"tags"`
	}
	if err := json.Unmarshal(data, &secretData); err == nil && secretData.Value != "" {
		return &ports.Secret{Value: secretData.Value, Version: "v1", Metadata: secretData.Tags}, nil
	}

	return &ports.Secret{Value: strings.TrimSpace(string(data)), Version: "v1"}, nil
}
