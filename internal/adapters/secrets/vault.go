package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	vault "github.com/hashicorp/vault/api"
	"github.com/kevin07696/paypal-billing/internal/domain/ports"
	"go.uber.org/zap"
)

// VaultConfig configures the HashiCorp Vault KV backend
type VaultConfig struct {
	Address string

	// Authentication method: "token" or "approle"
	AuthMethod string
	Token      string
	RoleID     string
	SecretID   string

	Namespace string

	// KV secrets engine mount path (default: "secret")
	MountPath string

	// KV version: "v1" or "v2" (default: "v2")
	KVVersion string

	CacheTTL time.Duration
}

// VaultSecretManager reads secrets from a Vault KV engine. The secret value
// is the "value" key, or the first string key when "value" is absent.
type VaultSecretManager struct {
	client *vault.Client
	cfg    VaultConfig
	logger *zap.Logger
	cache  *secretCache
}

func NewVaultSecretManager(ctx context.Context, cfg VaultConfig, logger *zap.Logger) (*VaultSecretManager, error) {
	if cfg.MountPath == "" {
		cfg.MountPath = "secret"
	}
	if cfg.KVVersion == "" {
		cfg.KVVersion = "v2"
	}

	vaultConfig := vault.DefaultConfig()
	vaultConfig.Address = cfg.Address

	client, err := vault.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}
	if cfg.Namespace != "" {
		client.SetNamespace(cfg.Namespace)
	}
	if err := authenticateVault(ctx, client, cfg); err != nil {
		return nil, fmt.Errorf("failed to authenticate with Vault: %w", err)
	}

	logger.Info("Vault secret manager initialized",
		zap.String("address", cfg.Address),
		zap.String("auth_method", cfg.AuthMethod),
		zap.String("mount_path", cfg.MountPath),
	)

	return &VaultSecretManager{client: client, cfg: cfg, logger: logger, cache: newSecretCache(cfg.CacheTTL)}, nil
}

func authenticateVault(ctx context.Context, client *vault.Client, cfg VaultConfig) error {
	switch cfg.AuthMethod {
	case "", "token":
		if cfg.Token == "" {
			return fmt.Errorf("token is required for token auth")
		}
		client.SetToken(cfg.Token)
		return nil

	case "approle":
		if cfg.RoleID == "" || cfg.SecretID == "" {
			return fmt.Errorf("role_id and secret_id are required for AppRole auth")
		}
		resp, err := client.Logical().WriteWithContext(ctx, "auth/approle/login", map[string]interface{}{
			"role_id":   cfg.RoleID,
			"secret_id": cfg.SecretID,
		})
		if err != nil {
			return fmt.Errorf("AppRole login failed: %w", err)
		}
		if resp == nil || resp.Auth == nil {
			return fmt.Errorf("AppRole login returned no auth info")
		}
		client.SetToken(resp.Auth.ClientToken)
		return nil

	default:
		return fmt.Errorf("unsupported auth method: %s", cfg.AuthMethod)
	}
}

func (v *VaultSecretManager) GetSecret(ctx context.Context, path string) (*ports.Secret, error) {
	if cached := v.cache.get(path); cached != nil {
		return cached, nil
	}

	fullPath := fmt.Sprintf("%s/%s", v.cfg.MountPath, path)
	if v.cfg.KVVersion == "v2" {
		fullPath = fmt.Sprintf("%s/data/%s", v.cfg.MountPath, path)
	}

	secret, err := v.client.Logical().ReadWithContext(ctx, fullPath)
	if err != nil {
		v.logger.Error("Failed to read secret from Vault", zap.String("path", path), zap.Error(err))
		return nil, fmt.Errorf("failed to read secret from Vault: %w", err)
	}
	if secret == nil {
		return nil, fmt.Errorf("secret not found: %s", path)
	}

	data := secret.Data
	version := "1"
	if v.cfg.KVVersion == "v2" {
		inner, ok := secret.Data["data"].(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("invalid secret format from Vault")
		}
		data = inner
		if metadata, ok := secret.Data["metadata"].(map[string]interface{}); ok {
			if n, ok := metadata["version"].(json.Number); ok {
				version = n.String()
			}
		}
	}

	value, _ := data["value"].(string)
	if value == "" {
		for _, raw := range data {
			if s, ok := raw.(string); ok {
				value = s
				break
			}
		}
	}
	if value == "" {
		return nil, fmt.Errorf("secret value is empty or not found: %s", path)
	}

	result := &ports.Secret{Value: value, Version: version, Metadata: make(map[string]string)}
	for k, raw := range data {
		if s, ok := raw.(string); ok && k != "value" {
			result.Metadata[k] = s
		}
	}

	v.cache.set(path, result)
	return result, nil
}
