package secret

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockbridge/internal/core/apperror"
)

const link = "https://example.bitrix24.ru/rest/1/abcdef/"

func TestVault_NotInitialized(t *testing.T) {
	v := NewVault(NewMemoryStore())

	_, err := v.BaseURL(context.Background())
	assert.True(t, apperror.IsConfiguration(err))
	assert.False(t, v.Initialized(context.Background()))
}

func TestVault_InitializeAndOpen(t *testing.T) {
	store := NewMemoryStore()
	v := NewVault(store)

	require.NoError(t, v.Initialize(context.Background(), "  "+link+" "))
	got, err := v.BaseURL(context.Background())
	require.NoError(t, err)
	assert.Equal(t, link, got)

	sealed, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, sealed.Key, keySize)
	assert.Len(t, sealed.IV, ivSize)
	assert.False(t, bytes.Contains(sealed.Ciphertext, []byte("bitrix24")))

	// A fresh vault over the same store opens the sealed value.
	got, err = NewVault(store).BaseURL(context.Background())
	require.NoError(t, err)
	assert.Equal(t, link, got)
}

func TestVault_ReinitializeUsesFreshKey(t *testing.T) {
	store := NewMemoryStore()
	v := NewVault(store)

	require.NoError(t, v.Initialize(context.Background(), link))
	first, _ := store.Load(context.Background())
	require.NoError(t, v.Initialize(context.Background(), "https://other.example.com/rest/"))
	second, _ := store.Load(context.Background())

	assert.NotEqual(t, first.Key, second.Key)
	got, err := v.BaseURL(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://other.example.com/rest/", got)
}

func TestVault_RejectsBadLinks(t *testing.T) {
	v := NewVault(NewMemoryStore())

	for _, bad := range []string{"", "   ", "not a url", "/rest/1/x", "ftp://example.com/x", "https://"} {
		err := v.Initialize(context.Background(), bad)
		assert.True(t, apperror.IsValidation(err), "link %q", bad)
	}
	assert.False(t, v.Initialized(context.Background()))
}

func TestVault_CorruptedValue(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, NewVault(store).Initialize(context.Background(), link))

	sealed, _ := store.Load(context.Background())
	sealed.Ciphertext[0] ^= 0xff
	require.NoError(t, store.Save(context.Background(), sealed))

	_, err := NewVault(store).BaseURL(context.Background())
	assert.True(t, apperror.IsConfiguration(err))
}

type failingStore struct{ err error }

func (f failingStore) Save(context.Context, Sealed) error   { return f.err }
func (f failingStore) Load(context.Context) (Sealed, error) { return Sealed{}, f.err }

func TestVault_StoreFailures(t *testing.T) {
	v := NewVault(failingStore{err: errors.New("connection refused")})

	err := v.Initialize(context.Background(), link)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeInternal, appErr.Code)

	_, err = v.BaseURL(context.Background())
	appErr, ok = apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeInternal, appErr.Code)
}

func TestVault_SharedStoreSeesReinitialize(t *testing.T) {
	store := NewMemoryStore()
	a, b := NewVault(store), NewVault(store)

	require.NoError(t, a.Initialize(context.Background(), "https://old.example/rest/1/x"))
	got, err := b.BaseURL(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://old.example/rest/1/x", got)

	require.NoError(t, a.Initialize(context.Background(), "https://new.example/rest/1/y"))
	got, err = b.BaseURL(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://new.example/rest/1/y", got)
}

func TestVault_CacheTTL(t *testing.T) {
	store := NewMemoryStore()
	now := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
	a := NewVault(store)
	b := NewVault(store, WithCacheTTL(5*time.Second))
	b.now = func() time.Time { return now }

	require.NoError(t, a.Initialize(context.Background(), "https://old.example/rest/1/x"))
	_, err := b.BaseURL(context.Background())
	require.NoError(t, err)
	require.NoError(t, a.Initialize(context.Background(), "https://new.example/rest/1/y"))

	now = now.Add(4 * time.Second)
	got, err := b.BaseURL(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://old.example/rest/1/x", got)

	now = now.Add(time.Second)
	got, err = b.BaseURL(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://new.example/rest/1/y", got)
}
