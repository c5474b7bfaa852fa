package platform

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpospelov/chewy/pkg/adapters/fs"
	"github.com/mpospelov/chewy/pkg/adapters/memory"
	"github.com/mpospelov/chewy/pkg/adapters/postgres"
	"github.com/mpospelov/chewy/pkg/config"
	"github.com/mpospelov/chewy/pkg/core"
	"github.com/mpospelov/chewy/pkg/index"
)

func TestOpenStore(t *testing.T) {
	t.Run("Memory", func(t *testing.T) {
		s, err := OpenStore("memory://")
		require.NoError(t, err)
		assert.IsType(t, &memory.Store{}, s)
	})

	t.Run("File URI", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "data")
		s, err := OpenStore("file://" + dir)
		require.NoError(t, err)
		require.IsType(t, &fs.Store{}, s)
		assert.Equal(t, dir, s.(*fs.Store).Path)
		assert.DirExists(t, dir)
	})

	t.Run("Bare Path", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "bare")
		s, err := OpenStore(dir)
		require.NoError(t, err)
		assert.Equal(t, dir, s.(*fs.Store).Path)
	})

	t.Run("Must Exist", func(t *testing.T) {
		_, err := OpenStore(filepath.Join(t.TempDir(), "missing"), WithMustExist(true))
		assert.Error(t, err)
	})

	t.Run("Postgres", func(t *testing.T) {
		s, err := OpenStore("postgres://chewy@localhost/chewy?sslmode=disable")
		require.NoError(t, err)
		assert.IsType(t, &postgres.Store{}, s)
		require.NoError(t, s.(core.Closer).Close())
	})

	t.Run("Unknown Scheme", func(t *testing.T) {
		_, err := OpenStore("s3://bucket")
		assert.ErrorIs(t, err, core.ErrInvalidInput)
	})
}

func TestAssemble(t *testing.T) {
	t.Run("Injected Store And Config", func(t *testing.T) {
		store := memory.NewStore()
		cfg := config.Default()
		cfg.Prefix = "app"
		registry := index.NewRegistry(index.New("places", nil))

		c, err := Assemble("ignored://", WithStore(store), WithConfig(cfg), WithRegistry(registry))
		require.NoError(t, err)
		assert.Same(t, store, c.Store)
		assert.Equal(t, "app", c.Config.Prefix)
		assert.Same(t, registry, c.Registry)
	})

	t.Run("Config File", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "chewy.yml")
		require.NoError(t, os.WriteFile(path, []byte("prefix: staging\njournal:\n  enabled: true\n"), 0644))

		c, err := Assemble("memory://", WithConfigFile(path))
		require.NoError(t, err)
		assert.Equal(t, "staging", c.Config.Prefix)
		assert.True(t, c.Config.Journal.Enabled)
		assert.NotNil(t, c.Registry)
	})
}
