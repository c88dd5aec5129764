// Package config defines configuration structures for the album CLI and
// server.
//
// Configuration can be provided via:
//   - YAML configuration file (--config)
//   - Environment variables (ALBUM_ prefix)
//   - Command-line flags
//
// Later sources override earlier ones.
//
// # Example
//
//	storage:
//	  backend: gcs
//	  bucket: album-photos
//	export:
//	  archive_threshold: 10
//	  pacing_delay: 300ms
//	  url_ttl: 60s
//	  compression: store
//	  max_fetch_size: 64MiB
//	server:
//	  port: 8080
//	  workers: 4
//	log:
//	  level: info
//	  dir: /var/log/album
package config
