package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseArgs(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want options
	}{
		{
			name: "default command",
			args: []string{"--mount", "/mnt/b"},
			want: options{command: "mount", mountPoint: "/mnt/b"},
		},
		{
			name: "positional mount point",
			args: []string{"mount", "-c", "cfg.yaml", "/mnt/b"},
			want: options{command: "mount", configPath: "cfg.yaml", mountPoint: "/mnt/b"},
		},
		{
			name: "init with force",
			args: []string{"init", "--force", "--config", "/tmp/c.yaml"},
			want: options{command: "init", configPath: "/tmp/c.yaml", force: true},
		},
		{
			name: "bare mount point",
			args: []string{"/mnt/b"},
			want: options{command: "mount", mountPoint: "/mnt/b"},
		},
		{
			name: "overrides",
			args: []string{"--log-level", "debug", "--env-file", "creds.env", "-m", "/mnt/b"},
			want: options{command: "mount", logLevel: "debug", envFile: "creds.env", mountPoint: "/mnt/b"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseArgs(tt.args)
			require.NoError(t, err)
			assert.Equal(t, tt.want, *got)
		})
	}
}

func TestParseArgsErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"command and stray argument", []string{"serve", "/mnt/b"}},
		{"unknown flag", []string{"--bogus"}},
		{"two mount points", []string{"/a", "/b"}},
		{"positional and flag", []string{"--mount", "/a", "/b"}},
		{"positional with init", []string{"init", "/a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseArgs(tt.args)
			assert.Error(t, err)
		})
	}
}

func TestParseArgsHelp(t *testing.T) {
	_, err := parseArgs([]string{"--help"})
	assert.ErrorIs(t, err, errHelp)
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(path, []byte("BUCKETFS_TEST_LOADENV=from-file\nBUCKETFS_TEST_PRESET=from-file\n"), 0o600))

	t.Setenv("BUCKETFS_TEST_PRESET", "preset")
	t.Cleanup(func() { _ = os.Unsetenv("BUCKETFS_TEST_LOADENV") })

	require.NoError(t, loadEnv(path))
	assert.Equal(t, "from-file", os.Getenv("BUCKETFS_TEST_LOADENV"))
	assert.Equal(t, "preset", os.Getenv("BUCKETFS_TEST_PRESET"))

	assert.Error(t, loadEnv(filepath.Join(dir, "missing.env")))
}

func TestLoadEnvDefaultMissing(t *testing.T) {
	t.Chdir(t.TempDir())
	assert.NoError(t, loadEnv(""))
}
