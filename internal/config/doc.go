// Package config handles configuration loading for merti-gateway.
//
// # Overview
//
// Configuration is loaded from a YAML or TOML file with environment variable
// expansion. Empty fields receive defaults and the result is validated.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from MERTI_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/merti/gateway.yaml
//  3. ~/.config/merti/gateway.yaml
//
// A path ending in .toml is decoded as TOML; anything else as YAML.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	admin:
//	  jwt_secret: "${MERTI_JWT_SECRET}"
//
// Syntax: ${VAR_NAME}. Unset variables expand to the empty string.
//
// # Configuration Sections
//
//	server:
//	  http_addr: "0.0.0.0:8080"
//	  shutdown_timeout: "10s"
//
//	database:
//	  path: "/var/lib/merti/gateway.db"
//
//	webhook:
//	  chat_url: "https://n8n.example.org/webhook/chat"
//	  scrape_url: "https://n8n.example.org/webhook/scrape"
//	  timeout: "60s"
//	  init_timeout: "15s"
//
//	scraper:
//	  attempt_timeout: "10s"
//	  max_content: 2000
//	  proxies:
//	    - url: "https://api.allorigins.win/get?url={url}"
//	      kind: json
//
//	storage:
//	  endpoint: "https://xyz.supabase.co/storage/v1/s3"
//	  bucket: "test_images"
//	  access_key: "${S3_ACCESS_KEY}"
//	  secret_key: "${S3_SECRET_KEY}"
//	  public_url: "https://xyz.supabase.co/storage/v1/object/public"
//
//	history:
//	  redis_url: "redis://localhost:6379/0"
//	  ttl: "24h"
//	  max_messages: 200
//
//	admin:
//	  email: "admin@example.org"
//	  password_hash: "$2a$10$..."
//	  jwt_secret: "${MERTI_JWT_SECRET}"
//	  session_ttl: "12h"
//
//	chat:
//	  idle_timeout: "30m"
//	  allowed_origins: ["https://council.example.org"]
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
package config
