package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpospelov/chewy/pkg/config"
)

func TestIndexNames(t *testing.T) {
	t.Run("Defaults Without Prefix", func(t *testing.T) {
		cfg := config.Default()
		assert.Equal(t, "chewy_journal", cfg.JournalIndex())
		assert.Equal(t, "chewy_specifications", cfg.SpecificationIndex())
		assert.Equal(t, "places", cfg.IndexName("places"))
	})

	t.Run("Prefix And Overrides", func(t *testing.T) {
		cfg := config.Default()
		cfg.Prefix = "test"
		cfg.JournalName = "changes"
		assert.Equal(t, "test_changes", cfg.JournalIndex())
		assert.Equal(t, "test_chewy_specifications", cfg.SpecificationIndex())
		assert.Equal(t, "test_places", cfg.IndexName("places"))
	})

	t.Run("Blank Parts Are Dropped", func(t *testing.T) {
		cfg := config.Config{Prefix: "  ", JournalName: " "}
		assert.Equal(t, "chewy_journal", cfg.JournalIndex())
	})
}

func TestParse(t *testing.T) {
	cfg, err := config.Parse(strings.NewReader(`
prefix: staging
index:
  number_of_shards: 3
journal:
  enabled: true
  batch_size: 50
`))
	require.NoError(t, err)
	assert.Equal(t, "staging", cfg.Prefix)
	assert.Equal(t, 3, cfg.IndexSettings["number_of_shards"])
	assert.True(t, cfg.Journal.Enabled)
	assert.Equal(t, 50, cfg.BatchSize())

	_, err = config.Parse(strings.NewReader("unknown_key: 1\n"))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chewy.yml")
	require.NoError(t, os.WriteFile(path, []byte("prefix: from_file\n"), 0644))

	t.Setenv("CHEWY_PREFIX", "from_env")
	t.Setenv("CHEWY_JOURNAL_BATCH_SIZE", "25")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from_env", cfg.Prefix)
	assert.Equal(t, 25, cfg.Journal.BatchSize)

	t.Setenv("CHEWY_JOURNAL_BATCH_SIZE", "0")
	_, err = config.Load(path)
	assert.Error(t, err)
}
