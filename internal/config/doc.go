// Package config handles configuration loading for agent-studio.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package provides validation and sensible defaults.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	upstream:
//	  api_key: "${STUDIO_API_KEY}"
//
// Syntax: ${VAR_NAME}
//
// # Configuration Sections
//
// Server settings:
//
//	server:
//	  http_addr: "0.0.0.0:8000"   # API, web UI and client websockets
//
// Upstream agent platform (both fields required):
//
//	upstream:
//	  base_url: "https://agents.example.com/v1"
//	  api_key: "${STUDIO_API_KEY}"
//
// Database:
//
//	database:
//	  path: "/var/lib/agent-studio/chat.db"
//
// Chat behavior:
//
//	chat:
//	  max_message_length: 4000
//	  session_retention: "720h"   # delete idle sessions after 30 days
//
// Authentication (optional; endpoints are open when unset):
//
//	auth:
//	  jwt_secret: "${STUDIO_JWT_SECRET}"
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
package config
