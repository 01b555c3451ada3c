// Package config loads, normalizes, and validates shotdeck configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, loads optional .env files, and honours
// environment fallbacks such as FAL_KEY, OPENAI_API_KEY and DATABASE_URL. The
// Config type centralizes every knob the server, worker and CLI need.
//
// Always obtain settings through this package so downstream code receives
// expanded paths, canonical driver names, and clear validation errors.
package config
