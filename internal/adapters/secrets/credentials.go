package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kevin07696/payment-router/internal/connector"
	"github.com/kevin07696/payment-router/internal/domain"
	"github.com/kevin07696/payment-router/internal/domain/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	credentialCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "router_credential_cache_hits_total",
		Help: "Total number of credential cache hits",
	})

	credentialCacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "router_credential_cache_misses_total",
		Help: "Total number of credential cache misses",
	}, []string{"reason"})

	credentialCacheSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "router_credential_cache_size",
		Help: "Current number of cached credential entries",
	})

	credentialCacheEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "router_credential_cache_evictions_total",
		Help: "Total number of credential cache evictions",
	})
)

// CacheConfig bounds the credential cache
type CacheConfig struct {
	// Prefix is prepended to every secret path, e.g. "payment-router"
	Prefix  string
	TTL     time.Duration
	MaxSize int
}

// DefaultCacheConfig caches up to 1000 entries for five minutes
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{TTL: 5 * time.Minute, MaxSize: 1000}
}

// CredentialStore resolves connector credentials and webhook secrets from a
// Manager, caching the raw secret values for TTL.
//
// Eviction is approximate LRU over a sync.Map: the least recently read
// entries go first, plus a tenth of MaxSize to reduce churn.
type CredentialStore struct {
	manager Manager
	cfg     CacheConfig
	logger  ports.Logger

	cache       sync.Map // path -> *cachedSecret
	accessTimes sync.Map // path -> time.Time
	mu          sync.Mutex
	now         func() time.Time
}

type cachedSecret struct {
	value     string
	expiresAt time.Time
}

var (
	_ connector.CredentialStore = (*CredentialStore)(nil)
)

// NewCredentialStore wraps manager with a TTL cache
func NewCredentialStore(manager Manager, cfg CacheConfig, logger ports.Logger) *CredentialStore {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultCacheConfig().TTL
	}
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultCacheConfig().MaxSize
	}
	return &CredentialStore{manager: manager, cfg: cfg, logger: logger, now: time.Now}
}

// AuthPath is where a merchant's credentials for a connector live
func (s *CredentialStore) AuthPath(merchantID, connectorName string) string {
	return s.path(merchantID, connectorName, "auth")
}

// WebhookPath is where a merchant's webhook secret for a connector lives
func (s *CredentialStore) WebhookPath(merchantID, connectorName string) string {
	return s.path(merchantID, connectorName, "webhook")
}

func (s *CredentialStore) path(merchantID, connectorName, leaf string) string {
	p := fmt.Sprintf("merchants/%s/connectors/%s/%s", merchantID, connectorName, leaf)
	if s.cfg.Prefix == "" {
		return p
	}
	return strings.TrimSuffix(s.cfg.Prefix, "/") + "/" + p
}

// AuthType returns the merchant's credentials for connectorName
func (s *CredentialStore) AuthType(ctx context.Context, merchantID, connectorName string) (connector.AuthType, error) {
	path := s.AuthPath(merchantID, connectorName)
	raw, err := s.get(ctx, path)
	if err != nil {
		if errors.Is(err, ErrSecretNotFound) {
			return connector.AuthType{}, domain.WrapError(domain.ErrorCodeFailedToObtainAuthType,
				"connector credentials not configured", err).
				WithDetail("merchant_id", merchantID).
				WithDetail("connector", connectorName)
		}
		return connector.AuthType{}, domain.WrapError(domain.ErrorCodeFailedToObtainAuthType,
			"failed to read connector credentials", err)
	}
	return connector.ParseAuthType([]byte(raw))
}

// WebhookSecret returns the merchant's verification material for
// connectorName. The stored value is either the bare secret or a JSON
// document {"secret": ..., "additional_secret": ...}.
func (s *CredentialStore) WebhookSecret(ctx context.Context, merchantID, connectorName string) (connector.WebhookSecret, error) {
	path := s.WebhookPath(merchantID, connectorName)
	raw, err := s.get(ctx, path)
	if err != nil {
		if errors.Is(err, ErrSecretNotFound) {
			return connector.WebhookSecret{}, domain.WrapError(domain.ErrorCodeWebhookVerificationSecret,
				"webhook secret not configured", err).
				WithDetail("merchant_id", merchantID).
				WithDetail("connector", connectorName)
		}
		return connector.WebhookSecret{}, domain.WrapError(domain.ErrorCodeWebhookVerificationSecret,
			"failed to read webhook secret", err)
	}
	return parseWebhookSecret(raw), nil
}

func parseWebhookSecret(raw string) connector.WebhookSecret {
	var doc struct {
		Secret           *string `json:"secret"`
		AdditionalSecret string  `json:"additional_secret"`
	}
	if err := json.Unmarshal([]byte(raw), &doc); err == nil && doc.Secret != nil {
		ws := connector.WebhookSecret{Secret: []byte(*doc.Secret)}
		if doc.AdditionalSecret != "" {
			ws.AdditionalSecret = []byte(doc.AdditionalSecret)
		}
		return ws
	}
	return connector.WebhookSecret{Secret: []byte(raw)}
}

// Invalidate drops both cached entries for a merchant's connector
func (s *CredentialStore) Invalidate(merchantID, connectorName string) {
	for _, p := range []string{s.AuthPath(merchantID, connectorName), s.WebhookPath(merchantID, connectorName)} {
		s.cache.Delete(p)
		s.accessTimes.Delete(p)
	}
	s.updateCacheSize()
}

// Len reports the number of cached entries
func (s *CredentialStore) Len() int {
	n := 0
	s.cache.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

func (s *CredentialStore) get(ctx context.Context, path string) (string, error) {
	now := s.now()
	if val, ok := s.cache.Load(path); ok {
		cached := val.(*cachedSecret)
		if now.Before(cached.expiresAt) {
			s.accessTimes.Store(path, now)
			credentialCacheHits.Inc()
			return cached.value, nil
		}
		credentialCacheMisses.WithLabelValues("expired").Inc()
	} else {
		credentialCacheMisses.WithLabelValues("not_found").Inc()
	}

	secret, err := s.manager.GetSecret(ctx, path)
	if err != nil {
		credentialCacheMisses.WithLabelValues("error").Inc()
		return "", err
	}

	s.cache.Store(path, &cachedSecret{value: secret.Value, expiresAt: now.Add(s.cfg.TTL)})
	s.accessTimes.Store(path, now)
	s.evictIfNeeded()

	s.logger.Debug("Cached secret",
		ports.String("path", path),
		ports.Duration("ttl", s.cfg.TTL))

	return secret.Value, nil
}

func (s *CredentialStore) evictIfNeeded() {
	s.mu.Lock()
	defer s.mu.Unlock()

	size := s.Len()
	if size <= s.cfg.MaxSize {
		s.updateCacheSize()
		return
	}

	type entry struct {
		path       string
		accessTime time.Time
	}
	var entries []entry
	s.accessTimes.Range(func(key, value any) bool {
		entries = append(entries, entry{path: key.(string), accessTime: value.(time.Time)})
		return true
	})
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].accessTime.Before(entries[j].accessTime)
	})

	evictCount := (size - s.cfg.MaxSize) + (s.cfg.MaxSize / 10)
	for i := 0; i < evictCount && i < len(entries); i++ {
		s.cache.Delete(entries[i].path)
		s.accessTimes.Delete(entries[i].path)
		credentialCacheEvictions.Inc()
	}

	s.updateCacheSize()
}

func (s *CredentialStore) updateCacheSize() {
	credentialCacheSize.Set(float64(s.Len()))
}
