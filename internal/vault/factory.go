package vault

import (
	"context"
	"fmt"

	"sereno-go/internal/config"
	"sereno-go/internal/field"
)

// NewVaultFromConfig creates an EvidenceVault implementation based on the
// vault config type. Type "none" returns nil, which disables archiving.
func NewVaultFromConfig(ctx context.Context, cfg config.VaultConfig) (field.EvidenceVault, error) {
	switch cfg.Type {
	case "none", "":
		return nil, nil
	case "memory":
		return NewMemoryVault(), nil
	case "s3":
		v, err := NewS3Vault(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return v, nil
	case "filesystem":
		if cfg.FSVaultRoot == "" {
			return nil, fmt.Errorf("filesystem vault requires fs_vault_root to be set")
		}
		return NewFileSystemVault(cfg.FSVaultRoot)
	default:
		return nil, fmt.Errorf("unknown vault type: %s", cfg.Type)
	}
}
