package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	configFileName = "gridmap"
	configFileType = "yaml"
	envPrefix      = "GRIDMAP"

	cfgKeyBook        = "book"
	cfgKeySchema      = "schema"
	cfgKeyMaxElements = "max_elements"
	cfgKeyRetries     = "retries"
	cfgKeyQueue       = "queue"
	cfgKeyPretty      = "pretty"
	cfgKeyVerbose     = "verbose"

	defaultBook   = "book.xlsx"
	defaultSchema = "schema.yaml"
)

// flagKeys maps persistent flags to the config keys they override.
var flagKeys = map[string]string{
	"book":         cfgKeyBook,
	"schema":       cfgKeySchema,
	"max-elements": cfgKeyMaxElements,
	"retries":      cfgKeyRetries,
	"queue":        cfgKeyQueue,
	"pretty":       cfgKeyPretty,
	"verbose":      cfgKeyVerbose,
}

// loadConfig reads the config file, GRIDMAP_* environment variables and the
// given flags, in increasing precedence. Without an explicit path a missing
// gridmap.yaml in the working directory is not an error.
func loadConfig(path string, flags *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetDefault(cfgKeyBook, defaultBook)
	v.SetDefault(cfgKeySchema, defaultSchema)
	v.SetDefault(cfgKeyMaxElements, 0)
	v.SetDefault(cfgKeyRetries, -1)
	v.SetDefault(cfgKeyQueue, false)
	v.SetDefault(cfgKeyPretty, false)
	v.SetDefault(cfgKeyVerbose, false)

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	for name, key := range flagKeys {
		if f := flags.Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file: %w", err)
		}
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configFileName)
		v.SetConfigType(configFileType)
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return v, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	return v, nil
}
