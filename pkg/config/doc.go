// Package config loads typed configuration structs from the process
// environment using caarlos0/env tags, with optional .env files read through
// godotenv.
//
// Each struct type is parsed once and cached; later calls return the cached
// copy. Use ResetCache or Reload in tests after changing the environment.
//
//	type Config struct {
//	    Addr string `env:"HTTP_ADDR" envDefault:":8080"`
//	}
//
//	var cfg Config
//	config.MustLoad(&cfg)
package config
