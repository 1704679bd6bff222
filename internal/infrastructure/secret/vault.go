// Package secret keeps the CRM endpoint URL sealed at rest.
package secret

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"stockbridge/internal/core/apperror"
	"stockbridge/pkg/logger"
)

const (
	keySize = 32
	ivSize  = 12
)

// ErrNotFound is returned by a Store that holds no sealed value.
var ErrNotFound = errors.New("sealed endpoint not found")

// Sealed is an encrypted endpoint with the material needed to open it.
type Sealed struct {
	Key        []byte
	IV         []byte
	Ciphertext []byte
}

// Store persists the sealed endpoint.
type Store interface {
	Save(ctx context.Context, s Sealed) error
	Load(ctx context.Context) (Sealed, error)
}

// Vault seals the endpoint on Initialize and opens it on BaseURL.
// Without WithCacheTTL every BaseURL reads the store, so a value sealed by
// another process sharing the store is picked up on the next call.
type Vault struct {
	store Store
	ttl   time.Duration
	now   func() time.Time

	mu      sync.RWMutex
	cached  string
	expires time.Time
}

// VaultOption configures a Vault.
type VaultOption func(*Vault)

// WithCacheTTL keeps the opened endpoint in memory for ttl.
func WithCacheTTL(ttl time.Duration) VaultOption {
	return func(v *Vault) { v.ttl = ttl }
}

// NewVault creates a vault over store.
func NewVault(store Store, opts ...VaultOption) *Vault {
	v := &Vault{store: store, now: time.Now}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Initialize validates link, seals it with a fresh key and IV and stores it.
func (v *Vault) Initialize(ctx context.Context, link string) error {
	link = strings.TrimSpace(link)
	if link == "" {
		return apperror.NewValidation("link is required")
	}
	if err := validateLink(link); err != nil {
		return err
	}

	sealed, err := seal([]byte(link))
	if err != nil {
		return apperror.NewInternal(err)
	}
	if err := v.store.Save(ctx, sealed); err != nil {
		return apperror.NewInternal(fmt.Errorf("save sealed endpoint: %w", err))
	}

	v.remember(link)

	logger.Info(ctx, "crm endpoint initialized", "host", hostOf(link))
	return nil
}

// BaseURL returns the opened endpoint. It fails with a configuration error
// until Initialize has succeeded.
func (v *Vault) BaseURL(ctx context.Context) (string, error) {
	if cached, ok := v.fromCache(); ok {
		return cached, nil
	}

	sealed, err := v.store.Load(ctx)
	if errors.Is(err, ErrNotFound) {
		return "", apperror.NewConfiguration("crm endpoint is not initialized")
	}
	if err != nil {
		return "", apperror.NewInternal(fmt.Errorf("load sealed endpoint: %w", err))
	}

	plain, err := open(sealed)
	if err != nil {
		return "", apperror.NewConfiguration("stored crm endpoint cannot be decrypted").WithCause(err)
	}

	link := string(plain)
	v.remember(link)
	return link, nil
}

func (v *Vault) fromCache() (string, bool) {
	if v.ttl <= 0 {
		return "", false
	}
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.cached == "" || !v.now().Before(v.expires) {
		return "", false
	}
	return v.cached, true
}

func (v *Vault) remember(link string) {
	if v.ttl <= 0 {
		return
	}
	v.mu.Lock()
	v.cached = link
	v.expires = v.now().Add(v.ttl)
	v.mu.Unlock()
}

// Initialized reports whether a usable endpoint is available.
func (v *Vault) Initialized(ctx context.Context) bool {
	_, err := v.BaseURL(ctx)
	return err == nil
}

func validateLink(link string) error {
	u, err := url.Parse(link)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return apperror.NewValidation("link must be an absolute URL").WithDetail("link", link)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return apperror.NewValidationf("unsupported link scheme %q", u.Scheme)
	}
	return nil
}

func hostOf(link string) string {
	if u, err := url.Parse(link); err == nil {
		return u.Host
	}
	return ""
}

func seal(plain []byte) (Sealed, error) {
	key := make([]byte, keySize)
	iv := make([]byte, ivSize)
	if _, err := rand.Read(key); err != nil {
		return Sealed{}, fmt.Errorf("generate key: %w", err)
	}
	if _, err := rand.Read(iv); err != nil {
		return Sealed{}, fmt.Errorf("generate iv: %w", err)
	}

	gcm, err := newGCM(key)
	if err != nil {
		return Sealed{}, err
	}
	return Sealed{Key: key, IV: iv, Ciphertext: gcm.Seal(nil, iv, plain, nil)}, nil
}

func open(s Sealed) ([]byte, error) {
	if len(s.IV) != ivSize {
		return nil, fmt.Errorf("iv must be %d bytes, got %d", ivSize, len(s.IV))
	}
	gcm, err := newGCM(s.Key)
	if err != nil {
		return nil, err
	}
	return gcm.Open(nil, s.IV, s.Ciphertext, nil)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != keySize {
		return nil, fmt.Errorf("key must be %d bytes, got %d", keySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// MemoryStore keeps the sealed endpoint in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	sealed *Sealed
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Save replaces the stored value.
func (m *MemoryStore) Save(_ context.Context, s Sealed) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sealed = &s
	return nil
}

// Load returns the stored value or ErrNotFound.
func (m *MemoryStore) Load(context.Context) (Sealed, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.sealed == nil {
		return Sealed{}, ErrNotFound
	}
	return *m.sealed, nil
}
