package auth

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fileStore(t *testing.T) *Store {
	t.Helper()
	return &Store{useKeyring: false, fallbackDir: t.TempDir()}
}

func TestNewStoreHonorsNoKeyring(t *testing.T) {
	t.Setenv("POSTBROWSER_NO_KEYRING", "1")
	store := NewStore(t.TempDir(), nil)
	require.NotNil(t, store)
	assert.False(t, store.UsingKeyring())
}

func TestStoreFileBackend(t *testing.T) {
	store := fileStore(t)
	origin := "https://posts.example.com"
	creds := &Credentials{AccessToken: "secret", CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}

	require.NoError(t, store.Save(origin, creds))

	info, err := os.Stat(filepath.Join(store.fallbackDir, "credentials.json"))
	require.NoError(t, err, "credentials file not created")
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := store.Load(origin)
	require.NoError(t, err)
	assert.Equal(t, creds.AccessToken, loaded.AccessToken)
	assert.True(t, creds.CreatedAt.Equal(loaded.CreatedAt))
}

func TestStoreMultipleOrigins(t *testing.T) {
	store := fileStore(t)
	require.NoError(t, store.Save("https://a.example.com", &Credentials{AccessToken: "a"}))
	require.NoError(t, store.Save("https://b.example.com", &Credentials{AccessToken: "b"}))

	a, err := store.Load("https://a.example.com")
	require.NoError(t, err)
	b, err := store.Load("https://b.example.com")
	require.NoError(t, err)
	assert.Equal(t, "a", a.AccessToken)
	assert.Equal(t, "b", b.AccessToken)
}

func TestStoreDelete(t *testing.T) {
	store := fileStore(t)
	origin := "https://a.example.com"
	require.NoError(t, store.Save(origin, &Credentials{AccessToken: "a"}))
	require.NoError(t, store.Delete(origin))

	_, err := store.Load(origin)
	assert.Error(t, err)
	assert.NoError(t, store.Delete(origin), "deleting twice is fine")
}

func TestStoreLoadCorruptFile(t *testing.T) {
	store := fileStore(t)
	require.NoError(t, os.WriteFile(filepath.Join(store.fallbackDir, "credentials.json"), []byte("{"), 0o600))
	_, err := store.Load("https://a.example.com")
	assert.ErrorContains(t, err, "invalid credentials file")
}

func TestKey(t *testing.T) {
	assert.Equal(t, "postbrowser::https://jsonplaceholder.typicode.com", key("https://jsonplaceholder.typicode.com"))
}

func TestManagerAnonymousByDefault(t *testing.T) {
	t.Setenv(TokenEnv, "")
	m := NewManager("https://posts.example.com/", fileStore(t))

	token, err := m.Token(context.Background())
	require.NoError(t, err)
	assert.Empty(t, token)

	st := m.Status()
	assert.False(t, st.Authenticated)
	assert.Equal(t, SourceNone, st.Source)
	assert.Equal(t, "https://posts.example.com", st.Origin)
}

func TestManagerLoginLogout(t *testing.T) {
	t.Setenv(TokenEnv, "")
	m := NewManager("https://posts.example.com", fileStore(t))
	fixed := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return fixed }

	require.NoError(t, m.Login("  tok-123 \n"))
	token, err := m.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-123", token)

	st := m.Status()
	assert.True(t, st.Authenticated)
	assert.Equal(t, SourceFile, st.Source)
	assert.True(t, st.Since.Equal(fixed))

	require.NoError(t, m.Logout())
	token, err = m.Token(context.Background())
	require.NoError(t, err)
	assert.Empty(t, token)
	assert.False(t, m.Status().Authenticated)
}

func TestManagerLoginRejectsEmpty(t *testing.T) {
	m := NewManager("https://posts.example.com", fileStore(t))
	assert.Error(t, m.Login("   "))
}

func TestManagerEnvTokenWins(t *testing.T) {
	m := NewManager("https://posts.example.com", fileStore(t))
	require.NoError(t, m.Login("stored"))

	t.Setenv(TokenEnv, "from-env")
	token, err := m.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "from-env", token)
	assert.Equal(t, SourceEnv, m.Status().Source)
}
