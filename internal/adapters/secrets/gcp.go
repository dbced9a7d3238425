package secrets

import (
	"context"
	"fmt"
	"strings"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"github.com/kevin07696/paypal-billing/internal/domain/ports"
	"go.uber.org/zap"
)

// GCPSecretsAPI is the subset of the Secret Manager client used here
type GCPSecretsAPI interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
}

// GCPSecretManager resolves secrets from Google Cloud Secret Manager.
// Paths are secret ids; the latest version is always read.
type GCPSecretManager struct {
	client    GCPSecretsAPI
	projectID string
	logger    *zap.Logger
	cache     *secretCache
}

// NewGCPSecretsClient uses application default credentials
func NewGCPSecretsClient(ctx context.Context) (*secretmanager.Client, error) {
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCP Secret Manager client: %w", err)
	}
	return client, nil
}

func NewGCPSecretManager(client GCPSecretsAPI, projectID string, cacheTTL time.Duration, logger *zap.Logger) *GCPSecretManager {
	return &GCPSecretManager{client: client, projectID: projectID, logger: logger, cache: newSecretCache(cacheTTL)}
}

func (g *GCPSecretManager) GetSecret(ctx context.Context, path string) (*ports.Secret, error) {
	if cached := g.cache.get(path); cached != nil {
		return cached, nil
	}

	name := fmt.Sprintf("projects/%s/secrets/%s/versions/latest", g.projectID, path)
	result, err := g.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: name})
	if err != nil {
		g.logger.Error("Failed to access GCP secret", zap.String("path", path), zap.Error(err))
		return nil, fmt.Errorf("failed to access GCP secret %s: %w", path, err)
	}

	secret := &ports.Secret{
		Value:   string(result.GetPayload().GetData()),
		Version: versionFromName(result.GetName()),
		Metadata: map[string]string{
			"gcp_project_id": g.projectID,
			"gcp_secret":     path,
		},
	}
	g.cache.set(path, secret)
	return secret, nil
}

// versionFromName takes the last segment of projects/p/secrets/s/versions/N
func versionFromName(name string) string {
	if i := strings.LastIndex(name, "/"); i >= 0 {
		return name[i+1:]
	}
	return "latest"
}
