// Package config loads imgprep configuration.
//
// LoadConfig reads a YAML file with Viper, then overlays a .env file and
// IMGPREP_-prefixed environment variables:
//
//	var cfg prep.Config
//	err := config.LoadConfig("imgprep", &cfg, config.WithConfigFile("prep.yml"))
//
// IMGPREP_SPLIT_PERCENTAGES=0.8,0.2 sets split.percentages; nested keys are
// matched by trying every underscore as a possible level separator.
package config
