// Package config handles loading and validating Gray Logic Playout configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling, including per-device-kind defaults
//
// Security Considerations:
//   - Device credentials (Singular.Live access tokens) should be supplied via
//     GRAYLOGIC_DEVICE_<ID>_ACCESS_TOKEN rather than the config file
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, d := range cfg.Playout.Devices {
//	    fmt.Println(d.ID, d.Kind)
//	}
package config
