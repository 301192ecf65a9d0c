// Package config builds the server's immutable runtime configuration.
//
// Values are layered in this order, later layers winning:
//
//  1. Default(): port 8082, root dir ".", default file "hello-world.html",
//     4 workers.
//  2. An optional YAML or JSON file named by HTTPD_CONFIG.
//  3. Environment variables (HTTPD_PORT, HTTPD_ROOT_DIR, HTTPD_DEFAULT_FILE,
//     HTTPD_NOT_FOUND_FILE, HTTPD_WORKERS, HTTPD_LOG_LEVEL, HTTPD_ADMIN_ADDR,
//     HTTPD_S3_ACCESS_KEY, HTTPD_S3_SECRET_KEY).
//
// # File Format
//
//	server:
//	  port: "8082"
//	  root_dir: ./www
//	  default_file: index.html
//	  not_found_file: 404.html
//	  workers: 8
//	  read_timeout: 5s
//	admin:
//	  enabled: true
//	  addr: 127.0.0.1:9090
//	storage:
//	  backend: fs
//
// The resulting Config is validated once and then shared read-only.
package config
