// Package config handles loading and validating SchoolHub Core configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with SCHOOLHUB_* environment variables
//   - Validation of required fields
//
// Sensitive values (JWT secrets, SMTP and Redis passwords) should be set via
// environment variables and the config file kept at 0600.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Site.Hostname)
package config
