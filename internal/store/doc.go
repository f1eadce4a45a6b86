// Package store persists the bot catalog, access-request ledger rows, users,
// gate channels and settings in SQLite.
//
// The Store manages the database connection, schema initialization, busy
// retries and the named record types each table maps to. Catalog writes are
// upserts: a duplicate title code or (title, episode) pair replaces the prior
// values instead of failing, and an episode re-upsert keeps its view counter.
// Deleting a title removes its episodes in the same transaction.
//
// Schema changes bump the version in schema.go; operators export the catalog
// with `doramabot catalog export` and recreate the database to adopt a new
// schema.
package store
