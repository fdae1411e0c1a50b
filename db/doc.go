// Package db holds the SQL migrations. Production builds embed them
// with the embed_migrations build tag; development builds read them
// from db/migrations on disk.
package db
