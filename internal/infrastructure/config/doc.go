// Package config handles loading and validating bleflow configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Loading an optional .env file
//   - Overriding with BLEFLOW_* environment variables
//   - Validation of required fields
//
// Security Considerations:
//   - Sensitive values (passwords, tokens) should be set via environment variables
//   - The config file should have restricted permissions (0600)
//   - Use Masked before printing a loaded configuration
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Site.Name)
package config
