// Package config loads runtime configuration for the SpendSmart CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected via -c or -config.
//  3. SPENDSMART_* environment variables; a .env file in the working
//     directory is loaded first and never overrides the real environment.
//  4. Command-line flags, which override everything else.
//
// Supported flags
//
//	-a string     base URL of the backend REST API
//	-d string     path of the local session database
//	-t duration   session time-to-live
//	-l string     log level
//
// # JSON schema
//
//	{
//	  "server_url": "https://api.example.com",
//	  "db_path": "spendsmart.db",
//	  "session_ttl": "1h",
//	  "request_timeout": "15s",
//	  "session_secret": "change-me",
//	  "log_level": "info",
//	  "log_format": "text"
//	}
//
// The session secret is deliberately not exposed as a flag.
package config
