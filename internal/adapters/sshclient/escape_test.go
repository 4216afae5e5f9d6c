package sshclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEscape(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"it's", `'it'\''s'`},
		{"/tmp; rm -rf /", "'/tmp; rm -rf /'"},
		{"", "''"},
		{"/srv/my files/$HOME", "'/srv/my files/$HOME'"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Escape(tt.in))
		})
	}
}

func TestRemotePathHelpers(t *testing.T) {
	assert.Equal(t, "/srv/data/a.txt", RemotePath(`\srv\data\a.txt`))
	assert.Equal(t, "/srv/data/a.txt", RemoteJoin("/srv", `data\a.txt`))
}

func TestRemoteTarget(t *testing.T) {
	assert.Equal(t, `deploy@files.example.com:'/srv/it'\''s'`, remoteTarget(testCred, "/srv/it's"))
}
