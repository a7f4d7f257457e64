package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/statuscast/pkg/config"
)

type serverConfig struct {
	Addr    string `env:"CFG_TEST_ADDR" envDefault:":8080"`
	Workers int    `env:"CFG_TEST_WORKERS" envDefault:"5"`
}

type requiredConfig struct {
	Secret string `env:"CFG_TEST_SECRET,required"`
}

type fileConfig struct {
	Value string   `env:"CFG_TEST_FILE_VALUE"`
	List  []string `env:"CFG_TEST_FILE_LIST" envSeparator:","`
}

func TestLoad(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		config.ResetCache()
		var cfg serverConfig
		require.NoError(t, config.Load(&cfg))
		assert.Equal(t, ":8080", cfg.Addr)
		assert.Equal(t, 5, cfg.Workers)
	})

	t.Run("env overrides and caching", func(t *testing.T) {
		config.ResetCache()
		t.Setenv("CFG_TEST_WORKERS", "9")

		var first serverConfig
		require.NoError(t, config.Load(&first))
		assert.Equal(t, 9, first.Workers)

		t.Setenv("CFG_TEST_WORKERS", "11")
		var second serverConfig
		require.NoError(t, config.Load(&second))
		assert.Equal(t, 9, second.Workers, "cached value is returned")

		require.NoError(t, config.Reload(&second))
		assert.Equal(t, 11, second.Workers)
	})

	t.Run("missing required", func(t *testing.T) {
		config.ResetCache()
		var cfg requiredConfig
		err := config.Load(&cfg)
		require.Error(t, err)
		assert.ErrorIs(t, err, config.ErrParsingConfig)
	})

	t.Run("nil pointer", func(t *testing.T) {
		var cfg *serverConfig
		assert.ErrorIs(t, config.Load(cfg), config.ErrNilPointer)
	})

	t.Run("must load panics", func(t *testing.T) {
		config.ResetCache()
		var cfg requiredConfig
		assert.Panics(t, func() { config.MustLoad(&cfg) })
	})
}

func TestLoadEnv(t *testing.T) {
	t.Run("reads file", func(t *testing.T) {
		config.ResetCache()
		t.Setenv("CFG_TEST_FILE_VALUE", "")
		t.Setenv("CFG_TEST_FILE_LIST", "")
		// t.Setenv registers restore; clear so godotenv can set them
		require.NoError(t, unsetAll("CFG_TEST_FILE_VALUE", "CFG_TEST_FILE_LIST"))

		require.NoError(t, config.LoadEnv("testdata/.env.test"))

		var cfg fileConfig
		require.NoError(t, config.Load(&cfg))
		assert.Equal(t, "from_file", cfg.Value)
		assert.Equal(t, []string{"a", "b", "c"}, cfg.List)
	})

	t.Run("missing file", func(t *testing.T) {
		err := config.LoadEnv("testdata/does-not-exist.env")
		assert.ErrorIs(t, err, config.ErrLoadingEnvFile)
		assert.Panics(t, func() { config.MustLoadEnv("testdata/does-not-exist.env") })
	})
}
