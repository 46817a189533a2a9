// Package config loads the tracker service configuration.
//
// Values come from built-in defaults, then configs/config.yaml (or the file
// named by GRAYTRACK_CONFIG), then GRAYTRACK_* environment variables.
// Validation collects every problem before failing so an operator can fix
// the file in one pass.
//
// Portal and broker credentials belong in the environment. Keep the file
// itself at mode 0600 if it holds any.
//
//	cfg, err := config.Load(config.Path())
//	if err != nil {
//	    return err
//	}
//	url := cfg.One2Track.DevicesURL()
package config
