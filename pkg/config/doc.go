// Package config loads e6dl settings from defaults, a YAML file, .env files,
// E6DL_* environment variables and command line flags, in increasing order
// of precedence.
//
// Example:
//
//	cfg, err := config.Load("", map[string]interface{}{
//	    "download-dir": "./pools",
//	    "log-level":    "debug",
//	})
//	if err != nil {
//	    return err
//	}
//
// Default file locations follow the XDG base directory specification:
// the config file lives at $XDG_CONFIG_HOME/e6dl/config.yaml and the pool
// database at $XDG_DATA_HOME/e6dl/pools.json.
package config
