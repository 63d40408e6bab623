// Package config loads and validates the roastlink daemon configuration.
//
// Configuration is a single YAML file layered over built-in defaults;
// running with no file at all is fully supported (artisan output on port
// 8765, Celsius, one-second polling). Command-line flags may further
// override individual fields after loading.
//
// Example file:
//
//	version: 1
//	output: artisan
//	unit: F
//	read_interval_seconds: 1.0
//	max_errors: 10
//	error_pattern_threshold: 3
//	network_check_interval_seconds: 30
//	server:
//	  host: ""
//	  port: 8765
//	discovery:
//	  enabled: true
//	  instance_name: roastlink
package config
