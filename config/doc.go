// Package config loads the host configuration from YAML or JSON.
//
// Example:
//
//	log_level: info
//	runtime:
//	  memory_limit_pages: 4096
//	heap:
//	  initial_pages: 16
//	  grow_pages: 16
//	  sanitize: true
//	metrics:
//	  addr: 127.0.0.1:9464
package config
