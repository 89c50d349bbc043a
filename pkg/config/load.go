package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"
	"gopkg.in/yaml.v3"
)

type ConfigPath struct {
	ConfigPath string `long:"config" description:"yaml config file path"`
}

type Validator interface {
	Validate() error
}

func LoadAndValidateConfig(v Validator) error {
	err := Load(v)
	if err != nil {
		return err
	}
	return v.Validate()
}

// Load loads config from the file given by the --config argument.
func Load(config interface{}) error {
	var c ConfigPath
	_, err := flags.NewParser(&c, flags.Default|flags.IgnoreUnknown).Parse()
	if err != nil {
		return err
	}
	if c.ConfigPath == "" {
		return fmt.Errorf("missing --config argument")
	}
	return Read(c.ConfigPath, config)
}

// Read reads config from file.
func Read(filename string, config interface{}) error {
	cfg, err := os.ReadFile(filename)
	if err != nil {
		return err
	}
	return Parse(cfg, config)
}

// Parse decodes yaml document to config.
func Parse(data []byte, config interface{}) error {
	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("cannot parse config: %w", err)
	}
	return nil
}

// ToString returns json representation of config for logging.
func ToString(v interface{}) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("config: %+v", v)
	}
	return fmt.Sprintf("config:\n%v\n", string(b))
}
