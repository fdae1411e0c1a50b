// Package config provides configuration management for vpncore.
//
// Configuration is loaded from an optional YAML file and overridden by
// environment variables. Every attribute tracks where its value came
// from (default, file, or environment) so `vpnctl config show` can
// explain the effective configuration.
//
// # Key Configuration Options
//
//   - DATABASE_URL: Database connection
//   - VPNCORE_PORT: API listen port
//   - VPNCORE_NODE_INVENTORY: Node inventory file
//   - VPNCORE_TOKEN_SIGNING_KEY: HMAC key for API tokens
//   - VPNCORE_LOG_LEVEL: Logging verbosity
package config
