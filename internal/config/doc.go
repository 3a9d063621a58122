// Package config provides 12-factor configuration for sandkasse runtimes.
//
// Values are layered: built-in defaults, then an optional YAML or TOML file,
// then environment variables.
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	fmt.Printf("eval timeout %s\n", cfg.Sandbox.Timeout.Std())
//
// Example file (sandkasse.yaml):
//
//	sandbox:
//	  timeout: 2s
//	  max_host_calls: 1000
//	logging:
//	  level: debug
//
// Environment Variables:
//   - SANDKASSE_TIMEOUT, SANDKASSE_MAX_CALL_STACK, SANDKASSE_MAX_HOST_CALLS
//   - SANDKASSE_CODEC (msgpack or json)
//   - LOG_LEVEL, LOG_DEV
//   - SANDKASSE_CONFIG (path of the config file)
package config
