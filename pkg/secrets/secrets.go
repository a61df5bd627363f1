// Package secrets resolves credentials from HashiCorp Vault, AWS Secrets
// Manager, Google Secret Manager or mounted secret files.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/richxcame/threatwatch/pkg/config"
	"github.com/richxcame/threatwatch/pkg/logger"
	"go.uber.org/zap"
)

// ProviderType enumerates supported secret backends.
type ProviderType string

const (
	ProviderNone  ProviderType = ""
	ProviderVault ProviderType = "vault"
	ProviderAWS   ProviderType = "aws"
	ProviderGCP   ProviderType = "gcp"
	ProviderFiles ProviderType = "files"
)

var (
	// ErrProviderNotConfigured is returned when no provider is configured.
	ErrProviderNotConfigured = errors.New("secrets: provider not configured")
	// ErrInvalidReference indicates an invalid or empty reference string.
	ErrInvalidReference = errors.New("secrets: invalid reference")
	// ErrKeyNotFound is returned when the selected entry is missing or empty.
	ErrKeyNotFound = errors.New("secrets: key not found")
)

// defaultKey holds single-value secrets
const defaultKey = "value"

// Reference locates a secret: [provider://][mount::]path[@version][#key]
type Reference struct {
	Provider ProviderType
	Mount    string
	Path     string
	Version  string
	Key      string
}

// ParseReference parses a raw reference string
func ParseReference(raw string) (Reference, error) {
	var ref Reference

	clean := strings.TrimSpace(raw)
	if p, rest, ok := strings.Cut(clean, "://"); ok && p != "" {
		ref.Provider = ProviderType(p)
		clean = rest
	}
	if rest, key, ok := strings.Cut(clean, "#"); ok {
		clean, ref.Key = rest, strings.TrimSpace(key)
	}
	if rest, version, ok := strings.Cut(clean, "@"); ok {
		clean, ref.Version = rest, strings.TrimSpace(version)
	}
	if mount, path, ok := strings.Cut(clean, "::"); ok {
		ref.Mount = strings.Trim(strings.TrimSpace(mount), "/")
		clean = path
	}

	ref.Path = strings.Trim(strings.TrimSpace(clean), "/")
	if ref.Path == "" {
		return Reference{}, fmt.Errorf("%w: %q", ErrInvalidReference, raw)
	}
	return ref, nil
}

// secretID identifies the whole secret regardless of the selected key
func (r Reference) secretID() string {
	id := r.Path
	if r.Mount != "" {
		id = r.Mount + "::" + id
	}
	if r.Version != "" {
		id += "@" + r.Version
	}
	return id
}

// Secret is a resolved secret payload
type Secret struct {
	Data    map[string]string
	Version string
}

// Value selects one entry. Without a key a single-value secret is returned.
func (s Secret) Value(key string) (string, error) {
	if key == "" {
		if v := s.Data[defaultKey]; v != "" {
			return v, nil
		}
		if len(s.Data) == 1 {
			for _, v := range s.Data {
				if v != "" {
					return v, nil
				}
			}
		}
		return "", fmt.Errorf("%w: secret has %d entries, select one with #key", ErrKeyNotFound, len(s.Data))
	}

	if v := s.Data[key]; v != "" {
		return v, nil
	}
	return "", fmt.Errorf("%w: %s", ErrKeyNotFound, key)
}

type provider interface {
	Name() ProviderType
	Fetch(ctx context.Context, ref Reference) (Secret, error)
	Close() error
}

type cachedSecret struct {
	secret    Secret
	expiresAt time.Time
}

// Resolver fetches secrets from one backend and caches whole secrets so that
// several keys of the same secret cost one round trip
type Resolver struct {
	provider provider
	ttl      time.Duration
	now      func() time.Time

	mu    sync.Mutex
	cache map[string]cachedSecret
}

// NewResolver creates a resolver for the configured backend
func NewResolver(ctx context.Context, cfg config.SecretsConfig) (*Resolver, error) {
	var (
		prov provider
		err  error
	)

	switch ProviderType(cfg.Provider) {
	case ProviderNone:
		return nil, ErrProviderNotConfigured
	case ProviderVault:
		prov, err = newVaultProvider(VaultConfig{
			Address:   cfg.VaultAddress,
			Token:     cfg.VaultToken,
			Namespace: cfg.VaultNamespace,
			MountPath: cfg.VaultMount,
		})
	case ProviderAWS:
		prov, err = newAWSProvider(ctx, AWSConfig{Region: cfg.AWSRegion, Endpoint: cfg.AWSEndpoint})
	case ProviderGCP:
		prov, err = newGCPProvider(ctx, GCPConfig{ProjectID: cfg.GCPProjectID, CredentialsFile: cfg.GCPCredentialsFile})
	case ProviderFiles:
		prov, err = newFilesProvider(cfg.FilesPath)
	default:
		err = fmt.Errorf("secrets: unsupported provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	return newResolver(prov, cfg.CacheTTL), nil
}

func newResolver(p provider, ttl time.Duration) *Resolver {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Resolver{
		provider: p,
		ttl:      ttl,
		now:      time.Now,
		cache:    make(map[string]cachedSecret),
	}
}

// Resolve returns the single value named by raw
func (r *Resolver) Resolve(ctx context.Context, raw string) (string, error) {
	ref, err := ParseReference(raw)
	if err != nil {
		return "", err
	}
	if ref.Provider != ProviderNone && ref.Provider != r.provider.Name() {
		return "", fmt.Errorf("secrets: reference provider %q does not match configured provider %q", ref.Provider, r.provider.Name())
	}

	secret, err := r.fetch(ctx, ref)
	if err != nil {
		return "", err
	}
	return secret.Value(ref.Key)
}

func (r *Resolver) fetch(ctx context.Context, ref Reference) (Secret, error) {
	id := ref.secretID()

	r.mu.Lock()
	defer r.mu.Unlock()

	if entry, ok := r.cache[id]; ok && r.now().Before(entry.expiresAt) {
		return entry.secret, nil
	}

	secret, err := r.provider.Fetch(ctx, ref)
	if err != nil {
		logger.Warn("Secret fetch failed",
			zap.String("provider", string(r.provider.Name())),
			zap.String("secret", id),
			zap.Error(err),
		)
		return Secret{}, err
	}

	r.cache[id] = cachedSecret{secret: secret, expiresAt: r.now().Add(r.ttl)}
	return secret, nil
}

// Close releases the backend client
func (r *Resolver) Close() error {
	return r.provider.Close()
}

// Apply resolves every reference set in cfg.Secrets.Refs and writes the value
// into the setting it replaces
func Apply(ctx context.Context, r *Resolver, cfg *config.Config) error {
	refs := cfg.Secrets.Refs
	targets := []struct {
		setting string
		ref     string
		dst     *string
	}{
		{"database_password", refs.DatabasePassword, &cfg.Database.Password},
		{"redis_password", refs.RedisPassword, &cfg.Redis.Password},
		{"fingerprint_salt", refs.FingerprintSalt, &cfg.Alerts.FingerprintSalt},
		{"sentry_dsn", refs.SentryDSN, &cfg.Sentry.DSN},
		{"model_storage_secret_key", refs.ModelStorageSecretKey, &cfg.Models.Storage.SecretKey},
	}

	var resolved []string
	for _, t := range targets {
		if strings.TrimSpace(t.ref) == "" {
			continue
		}
		value, err := r.Resolve(ctx, t.ref)
		if err != nil {
			return fmt.Errorf("failed to resolve %s: %w", t.setting, err)
		}
		*t.dst = value
		resolved = append(resolved, t.setting)
	}

	sort.Strings(resolved)
	logger.Info("Resolved secrets",
		zap.String("provider", string(r.provider.Name())),
		zap.Strings("settings", resolved),
	)
	return nil
}
