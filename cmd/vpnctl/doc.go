// vpnctl is the CLI for the vpncore credential lifecycle service.
//
// vpncore issues, renews, and revokes per-user VPN credentials across a
// fleet of nodes, keyed off a subscription ledger fed by payment
// webhooks.
//
// The service is organized into several packages:
//
//   - pkg/server: HTTP server and routing
//   - pkg/server/endpoints: REST API endpoint handlers
//   - pkg/lifecycle: credential orchestration and reconciliation
//   - pkg/ledger: subscription periods and payment dedup
//   - pkg/sweeper: expiry enforcement and warnings
//   - pkg/node: node adapter interface; pkg/node/xui: 3x-ui panel adapter
//   - pkg/inventory: node inventory file sync and watch
//   - pkg/model: database models
//   - pkg/store: persistence interfaces; pkg/store/gorm: implementation
//   - pkg/audit: audit logging
//   - pkg/config: configuration management
//
// # Quick Start
//
//	# Run database migrations
//	vpnctl db migrate
//
//	# Load the node inventory
//	vpnctl node sync /etc/vpncore/nodes.yml
//
//	# Start the server
//	vpnctl server
//
//	# Issue a service token for an API caller
//	vpnctl token billing-webhook
//
// # Environment Variables
//
//   - DATABASE_URL: PostgreSQL connection string
//   - VPNCORE_TOKEN_SIGNING_KEY: key for service token signing
//   - VPNCORE_CONFIG_PATH: configuration directory (default /etc/vpncore)
//   - VPNCORE_LOG_LEVEL: log level (debug, info, warn, error)
//   - AUDIT_DATABASE_URL: optional separate audit event database
package main
