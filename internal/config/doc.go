// Package config loads the todopad configuration file.
//
// # Configuration Discovery
//
// The Load function follows this resolution order:
//
//  1. If a path is explicitly provided, use it
//  2. Otherwise, use ~/.config/todopad/config.toml (default)
//  3. If the config file doesn't exist, fall back to hardcoded defaults
//  4. If the file exists but fields are missing/empty, use defaults
//
// # Default Values
//
//   - API base URL: http://localhost:5000
//   - Idle timeout: 15m
//   - Request timeout: 10s
//   - Background refresh: 30s
//   - Expired-session status: 400
//   - Download directory: ~/Downloads
//   - Log file: ~/.local/state/todopad/todopad.log
//   - Credentials: ~/.config/todopad/credentials.toml
//
// # TOML Format
//
//	api_url = "http://localhost:5000"
//	idle_timeout = "15m"
//	request_timeout = "10s"
//	refresh_interval = "30s"
//	expired_status = 400
//	download_dir = "~/Downloads"
//	log_file = "~/.local/state/todopad/todopad.log"
//	credentials_file = "~/.config/todopad/credentials.toml"
//
// Durations use Go's time.ParseDuration syntax and must be positive.
// expired_status must be a 4xx or 5xx code; the backend signals an expired
// session with it, and the client treats any response carrying it as a
// forced logout.
//
// # Path Expansion
//
// Paths starting with ~ are expanded to the user's home directory and made
// absolute. Expansion failures fall back to the raw value.
//
// # Error Handling
//
// A missing file is not an error. Unreadable files, invalid TOML and invalid
// values return errors wrapped with "open config", "read config" or
// "parse config".
package config
