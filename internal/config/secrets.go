// internal/config/secrets.go
//
// Vault-backed secret resolution.
//
// Context
// -------
// Operators may store any sensitive config value as `vault:<path>#<key>`
// instead of the literal string — typically the database DSN password
// segment and the Notion client secret.  After Load(), main calls
// ResolveSecrets once; it walks the known secret-bearing fields,
// replaces each `vault:` reference with the value fetched from KV-v2,
// and re-caches the config.  Values without the prefix pass through
// untouched, so development setups need no Vault at all.
package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gridfolio/gridfolio/internal/vault"
)

const vaultPrefix = "vault:"

// secretTTL caches resolved values inside the Vault client so a config
// reload does not re-hit Vault within the window.
const secretTTL = 5 * time.Minute

// ResolveSecrets replaces every `vault:`-prefixed value in cfg in place.
// A nil client with vault references present is a hard error — booting
// with an unresolved secret is worse than not booting.
func ResolveSecrets(ctx context.Context, cfg *Config, cli *vault.Client) error {
	fields := []*string{
		&cfg.Database.DSN,
		&cfg.Notion.ClientSecret,
	}

	for _, f := range fields {
		if !strings.HasPrefix(*f, vaultPrefix) {
			continue
		}
		if cli == nil {
			return fmt.Errorf("config: %q requires Vault but no client is configured", *f)
		}
		val, err := resolveRef(ctx, cli, *f)
		if err != nil {
			return err
		}
		*f = val
	}

	current.Store(cfg)
	return nil
}

// resolveRef parses `vault:<path>#<key>` and fetches the value.
func resolveRef(ctx context.Context, cli *vault.Client, ref string) (string, error) {
	body := strings.TrimPrefix(ref, vaultPrefix)
	path, key, ok := strings.Cut(body, "#")
	if !ok || path == "" || key == "" {
		return "", fmt.Errorf("config: malformed vault reference %q (want vault:path#key)", ref)
	}
	val, err := cli.GetKV(ctx, path, key, secretTTL)
	if err != nil {
		return "", fmt.Errorf("config: resolve %q: %w", ref, err)
	}
	return val, nil
}
