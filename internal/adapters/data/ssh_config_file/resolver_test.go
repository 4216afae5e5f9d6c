package ssh_config_file

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Adembc/lazyscp/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const sampleConfig = `Host web
    HostName web.example.com
    User deploy
    Port 2222
    IdentityFile ~/.ssh/web_ed25519

Host bastion
    HostName 10.0.0.1

Host *
    User fallback
`

func newTestResolver(t *testing.T, content string) *Resolver {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config")
	if content != "" {
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	}
	r := NewResolver(zaptest.NewLogger(t).Sugar(), path)
	r.currentUser = func() string { return "localuser" }
	return r
}

func TestResolveFullEntry(t *testing.T) {
	cred, err := newTestResolver(t, sampleConfig).Resolve("web")
	require.NoError(t, err)
	assert.Equal(t, domain.ServerCredential{
		Name:     "web",
		Host:     "web.example.com",
		Port:     2222,
		User:     "deploy",
		AuthKind: domain.AuthKindKey,
		KeyPath:  "~/.ssh/web_ed25519",
	}, cred)
}

func TestResolveWildcardUser(t *testing.T) {
	cred, err := newTestResolver(t, sampleConfig).Resolve("bastion")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1", cred.Host)
	assert.Equal(t, "fallback", cred.User)
	assert.Equal(t, 22, cred.EffectivePort())
}

func TestResolveUnknownAliasWithoutConfig(t *testing.T) {
	cred, err := newTestResolver(t, "").Resolve("db.internal")
	require.NoError(t, err)
	assert.Equal(t, "db.internal", cred.Host)
	assert.Equal(t, "localuser", cred.User)
	assert.Empty(t, cred.KeyPath)
}

func TestResolveInvalidPort(t *testing.T) {
	_, err := newTestResolver(t, "Host bad\n    Port ssh\n").Resolve("bad")
	assert.Error(t, err)
}
