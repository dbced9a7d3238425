package main

import (
	"context"
	"fmt"

	"github.com/kevin07696/paypal-billing/internal/adapters/secrets"
	"github.com/kevin07696/paypal-billing/internal/config"
	"github.com/kevin07696/paypal-billing/internal/domain/ports"
	"go.uber.org/zap"
)

// resolveClientSecret returns PAYPAL_CLIENT_SECRET when set, otherwise reads
// PAYPAL_CLIENT_SECRET_NAME from the configured secret manager.
func resolveClientSecret(ctx context.Context, cfg *config.Config, logger *zap.Logger) (string, error) {
	if cfg.PayPal.ClientSecret != "" {
		return cfg.PayPal.ClientSecret, nil
	}

	sm, err := initSecretManager(ctx, cfg.Secrets, logger)
	if err != nil {
		return "", err
	}

	secret, err := sm.GetSecret(ctx, cfg.PayPal.ClientSecretName)
	if err != nil {
		return "", fmt.Errorf("resolve PayPal client secret: %w", err)
	}
	return secret.Value, nil
}

// initSecretManager builds the backend named by SECRETS_BACKEND
func initSecretManager(ctx context.Context, cfg config.SecretsConfig, logger *zap.Logger) (ports.SecretManager, error) {
	switch cfg.Backend {
	case "aws":
		client, err := secrets.NewAWSSecretsManagerClient(ctx, secrets.AWSConfig{
			Region:   cfg.AWSRegion,
			Profile:  cfg.AWSProfile,
			Endpoint: cfg.AWSEndpoint,
		})
		if err != nil {
			return nil, err
		}
		logger.Info("AWS Secrets Manager initialized", zap.String("region", cfg.AWSRegion))
		return secrets.NewAWSSecretManager(client, cfg.CacheTTL, logger), nil

	case "gcp":
		client, err := secrets.NewGCPSecretsClient(ctx)
		if err != nil {
			return nil, err
		}
		logger.Info("GCP Secret Manager initialized", zap.String("project_id", cfg.GCPProjectID))
		return secrets.NewGCPSecretManager(client, cfg.GCPProjectID, cfg.CacheTTL, logger), nil

	case "vault":
		sm, err := secrets.NewVaultSecretManager(ctx, secrets.VaultConfig{
			Address:    cfg.VaultAddress,
			AuthMethod: cfg.VaultAuthMethod,
			Token:      cfg.VaultToken,
			RoleID:     cfg.VaultRoleID,
			SecretID:   cfg.VaultSecretID,
			Namespace:  cfg.VaultNamespace,
			MountPath:  cfg.VaultMountPath,
			KVVersion:  cfg.VaultKVVersion,
			CacheTTL:   cfg.CacheTTL,
		}, logger)
		if err != nil {
			return nil, err
		}
		return sm, nil

	case "local":
		logger.Warn("Using local file secret manager - NOT for production use!",
			zap.String("path", cfg.LocalPath),
		)
		return secrets.NewLocalSecretManager(cfg.LocalPath, logger), nil

	default:
		return nil, fmt.Errorf("secrets backend %q cannot resolve named secrets", cfg.Backend)
	}
}
