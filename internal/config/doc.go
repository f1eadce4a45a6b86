// Package config loads, normalizes, and validates doramabot configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, loads an optional .env file that sits next to
// the config file, and overlays secrets from the environment such as
// DORAMABOT_BOT_TOKEN and DORAMABOT_ADMIN_IDS. The Config type centralizes every
// knob the bot runtime and the admin CLI need.
//
// A Config is built once at startup and treated as read-only afterwards; code
// that needs to change bot texts at runtime goes through the settings table in
// the store instead.
package config
