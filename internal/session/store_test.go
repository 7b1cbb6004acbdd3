package session

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlopezr/crosslist/internal/browser"
)

func testKey(t *testing.T) []byte {
	t.Helper()
	key, err := DeriveKey("test-passphrase")
	require.NoError(t, err)
	return key
}

func newTestStore(t *testing.T) (*SQLiteStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sessions.db")
	store, err := NewSQLiteStore(path, testKey(t))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store, path
}

func testCookies() []browser.Cookie {
	return []browser.Cookie{
		{
			Name:     "access_token",
			Value:    "secret-token-value",
			Domain:   ".wallapop.com",
			Path:     "/",
			Expires:  time.Now().Add(24 * time.Hour).Truncate(time.Second),
			Secure:   true,
			HTTPOnly: true,
		},
		{Name: "device_id", Value: "abc", Domain: ".wallapop.com", Path: "/"},
	}
}

func TestStoreSaveAndGet(t *testing.T) {
	store, _ := newTestStore(t)

	require.NoError(t, store.Save("wallapop", testCookies()))

	got, err := store.Get("wallapop")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "access_token", got[0].Name)
	assert.Equal(t, "secret-token-value", got[0].Value)
	assert.True(t, got[0].HTTPOnly)
}

func TestStoreGetMissingReturnsNil(t *testing.T) {
	store, _ := newTestStore(t)

	got, err := store.Get("vinted")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStoreSaveOverwrites(t *testing.T) {
	store, _ := newTestStore(t)

	require.NoError(t, store.Save("vinted", testCookies()))
	require.NoError(t, store.Save("vinted", []browser.Cookie{{Name: "only", Value: "one"}}))

	got, err := store.Get("vinted")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "only", got[0].Name)
}

func TestStoreDelete(t *testing.T) {
	store, _ := newTestStore(t)

	require.NoError(t, store.Save("milanuncios", testCookies()))
	require.NoError(t, store.Delete("milanuncios"))

	got, err := store.Get("milanuncios")
	require.NoError(t, err)
	assert.Nil(t, got)

	// Deleting a missing row is not an error.
	assert.NoError(t, store.Delete("milanuncios"))
}

func TestStorePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.db")
	key := testKey(t)

	store, err := NewSQLiteStore(path, key)
	require.NoError(t, err)
	require.NoError(t, store.Save("wallapop", testCookies()))
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteStore(path, key)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get("wallapop")
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestStoreCookiesEncryptedAtRest(t *testing.T) {
	store, path := newTestStore(t)
	require.NoError(t, store.Save("wallapop", testCookies()))

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	var raw string
	require.NoError(t, db.QueryRow("SELECT encrypted_cookies FROM sessions WHERE marketplace = 'wallapop'").Scan(&raw))
	assert.NotContains(t, raw, "secret-token-value")
}

func TestStoreWrongKeyFailsToRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.db")

	store, err := NewSQLiteStore(path, testKey(t))
	require.NoError(t, err)
	require.NoError(t, store.Save("vinted", testCookies()))
	require.NoError(t, store.Close())

	wrongKey, err := DeriveKey("other-passphrase")
	require.NoError(t, err)
	reopened, err := NewSQLiteStore(path, wrongKey)
	require.NoError(t, err)
	defer reopened.Close()

	_, err = reopened.Get("vinted")
	assert.Error(t, err)
}
