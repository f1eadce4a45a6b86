// Package main hosts the doramabot CLI entrypoint and command graph.
//
// "serve" runs the bot. The remaining commands operate on the SQLite
// database directly so operators can curate the catalog, gate channels and
// access requests without going through Telegram.
package main
