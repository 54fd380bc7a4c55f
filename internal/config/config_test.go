package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stagehop.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
key_path: /home/deploy/.ssh/id_ed25519
remote_user: ubuntu
remote_host: 198.51.100.1
remote_dir: /srv/app
service_name: myapi
ssh_timeout: 15s
status_lines: 5
`)

	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "ubuntu", c.RemoteUser)
	assert.Equal(t, "198.51.100.1", c.RemoteHost)
	assert.Equal(t, "/srv/app", c.RemoteDir)
	assert.Equal(t, "myapi", c.ServiceName)
	assert.Equal(t, 15*time.Second, c.SSHTimeout)
	assert.Equal(t, 5, c.StatusLines)

	// defaults fill the rest
	assert.Equal(t, "main", c.RemoteBranch)
	assert.Equal(t, 22, c.SSHPort)
	assert.Equal(t, ":8008", c.ListenAddr)
	assert.Equal(t, "sqlite", c.DBDriver)
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeConfig(t, `
remote_host: 198.51.100.1
`)
	t.Setenv("STAGEHOP_REMOTE_HOST", "203.0.113.9")
	t.Setenv("STAGEHOP_REMOTE_USER", "deploy")

	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "203.0.113.9", c.RemoteHost)
	assert.Equal(t, "deploy", c.RemoteUser)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidateMissingKeys(t *testing.T) {
	c := Config{RemoteHost: "198.51.100.1"}
	err := c.Validate()
	require.Error(t, err)

	assert.Contains(t, err.Error(), "key_path")
	assert.Contains(t, err.Error(), "remote_user")
	assert.Contains(t, err.Error(), "remote_dir")
	assert.Contains(t, err.Error(), "service_name")
	assert.NotContains(t, err.Error(), "remote_host")
}

func TestValidateKeyReadable(t *testing.T) {
	keyPath := filepath.Join(t.TempDir(), "id_ed25519")
	require.NoError(t, os.WriteFile(keyPath, []byte("not really a key"), 0o600))

	c := Config{
		KeyPath:     keyPath,
		RemoteUser:  "ubuntu",
		RemoteHost:  "198.51.100.1",
		RemoteDir:   "/srv/app",
		ServiceName: "myapi",
	}
	assert.NoError(t, c.Validate())

	c.KeyPath = filepath.Join(t.TempDir(), "missing")
	assert.Error(t, c.Validate())
}

func TestValidateS3KeySkipsPathCheck(t *testing.T) {
	c := Config{
		RemoteUser:  "ubuntu",
		RemoteHost:  "198.51.100.1",
		RemoteDir:   "/srv/app",
		ServiceName: "myapi",
		KeyS3Bucket: "stagehop-deploy",
		KeyS3Object: "id_ed25519",
		KeyS3Region: "eu-central-1",
	}
	assert.NoError(t, c.Validate())
}

func TestTarget(t *testing.T) {
	c := Config{
		RemoteUser:   "ubuntu",
		RemoteHost:   "198.51.100.1",
		RemoteDir:    "/srv/app",
		RemoteBranch: "main",
		ServiceName:  "myapi",
		SSHPort:      2222,
	}

	target := c.Target()
	assert.Equal(t, "198.51.100.1", target.Host)
	assert.Equal(t, 2222, target.Port)
	assert.Equal(t, "myapi", target.Service)
	assert.NoError(t, target.Validate())
}
