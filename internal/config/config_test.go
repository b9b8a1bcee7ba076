package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	c, err := Load(New(), "", t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, ".scopetree.db", c.DB)
	assert.True(t, c.Parallel)
	assert.Equal(t, 16, c.MaxDepth)
	assert.Equal(t, "json", c.Format)
	assert.Equal(t, 200*time.Millisecond, c.WatchDebounce)
	assert.Empty(t, c.Languages)
	assert.Empty(t, c.File)
}

func TestLoad_SearchedFile(t *testing.T) {
	dir := t.TempDir()
	yaml := "db: idx.db\nlanguages: [go, python]\nexclude: [\"vendor/**\"]\nworkers: 3\nwatch_debounce: 1s\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".scopetree.yaml"), []byte(yaml), 0o644))

	c, err := Load(New(), "", dir)
	require.NoError(t, err)
	assert.Equal(t, "idx.db", c.DB)
	assert.Equal(t, []string{"go", "python"}, c.Languages)
	assert.Equal(t, []string{"vendor/**"}, c.Exclude)
	assert.Equal(t, 3, c.Workers)
	assert.Equal(t, time.Second, c.WatchDebounce)
	assert.Equal(t, filepath.Join(dir, ".scopetree.yaml"), c.File)
}

func TestLoad_ExplicitFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.toml")
	require.NoError(t, os.WriteFile(path, []byte("format = \"text\"\nmax_depth = 4\n"), 0o644))

	c, err := Load(New(), path)
	require.NoError(t, err)
	assert.Equal(t, "text", c.Format)
	assert.Equal(t, 4, c.MaxDepth)

	_, err = Load(New(), filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read")
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".scopetree.yaml"), []byte("db: file.db\n"), 0o644))
	t.Setenv("SCOPETREE_DB", "env.db")

	c, err := Load(New(), "", dir)
	require.NoError(t, err)
	assert.Equal(t, "env.db", c.DB)
}

func TestBindFlags_OverrideEnv(t *testing.T) {
	t.Setenv("SCOPETREE_DB", "env.db")
	v := New()

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("db", "", "")
	fs.String("log-level", "info", "")
	fs.Bool("unrelated", false, "")
	require.NoError(t, BindFlags(v, fs))

	c, err := Load(v, "", t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "env.db", c.DB, "unset flag does not override env")

	require.NoError(t, fs.Parse([]string{"--db", "flag.db", "--log-level", "debug"}))
	c, err = Load(v, "", t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "flag.db", c.DB)
	assert.Equal(t, "debug", c.LogLevel)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{DB: "x.db", Format: "json", LogLevel: "info"}
	}
	tests := []struct {
		name   string
		mutate func(*Config)
		errSub string
	}{
		{"valid", func(*Config) {}, ""},
		{"empty db", func(c *Config) { c.DB = "" }, "db must not be empty"},
		{"unknown language", func(c *Config) { c.Languages = []string{"cobol"} }, `unsupported language "cobol"`},
		{"negative workers", func(c *Config) { c.Workers = -1 }, "workers"},
		{"negative depth", func(c *Config) { c.MaxDepth = -2 }, "max_depth"},
		{"bad format", func(c *Config) { c.Format = "xml" }, "format"},
		{"negative debounce", func(c *Config) { c.WatchDebounce = -time.Second }, "watch_debounce"},
		{"bad level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			err := c.Validate()
			if tt.errSub == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errSub)
		})
	}
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	c := &Config{LogLevel: "warn"}
	l := c.Logger(&buf)
	assert.Equal(t, logrus.WarnLevel, l.GetLevel())

	l.Info("hidden")
	l.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}
