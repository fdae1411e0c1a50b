// Package inventory loads the node fleet from a YAML file and keeps
// the node store and adapter registry in sync with it. Panel
// credentials stay in the file; the database only holds what the API
// may expose.
package inventory
