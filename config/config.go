// Copyright 2015 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package config holds process-wide settings.  Settings are read from
// a YAML file into a generic map and then decoded, so misspelled keys
// are reported instead of silently ignored.
package config

import (
	"io/ioutil"

	"github.com/diffeo/go-modelrest/auth"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v2"
)

// Settings are the tunables shared by the resource site, the
// resources, and the schema generator.
type Settings struct {
	// MaxObjectsPerRequest caps the number of objects a list
	// request returns.
	MaxObjectsPerRequest int `mapstructure:"max_objects_per_request" yaml:"max_objects_per_request"`

	// MaxOrderings caps the number of ordering clauses in a list
	// request.
	MaxOrderings int `mapstructure:"max_orderings" yaml:"max_orderings"`

	// Debug makes responses plain text and relaxes the AJAX check.
	Debug bool `mapstructure:"debug" yaml:"debug"`

	// OutputRoot is where the schema generator writes.
	OutputRoot string `mapstructure:"output_root" yaml:"output_root"`

	// ProjectName names the generated frameworks directory.
	ProjectName string `mapstructure:"project_name" yaml:"project_name"`

	// APIPrefix is the URL path all resources are served under.
	APIPrefix string `mapstructure:"api_prefix" yaml:"api_prefix"`

	// Users are the accounts the daemon's token and session
	// gateways know about.
	Users []*auth.SimpleUser `mapstructure:"users" yaml:"users"`

	// Auth holds authentication checks per model, keyed by
	// "app.Model" labels.  The key "*" applies to every resource
	// without its own entry.
	Auth map[string]auth.Config `mapstructure:"auth" yaml:"auth"`
}

// Defaults returns the settings used when nothing is configured.
func Defaults() Settings {
	return Settings{
		MaxObjectsPerRequest: 100,
		MaxOrderings:         1,
		OutputRoot:           "sproutcore/",
		ProjectName:          "djangocore",
		APIPrefix:            "/api/",
	}
}

// AuthFor returns the configured checks for a model label.
func (s Settings) AuthFor(label string) auth.Config {
	if cfg, ok := s.Auth[label]; ok {
		return cfg
	}
	return s.Auth["*"]
}

// Decode applies a generic configuration map on top of the defaults.
func Decode(input map[string]interface{}) (Settings, error) {
	settings := Defaults()
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		Result:           &settings,
	})
	if err == nil {
		err = decoder.Decode(input)
	}
	return settings, err
}

// Parse decodes YAML text into settings.
func Parse(text []byte) (Settings, error) {
	var input map[string]interface{}
	if err := yaml.Unmarshal(text, &input); err != nil {
		return Settings{}, err
	}
	return Decode(input)
}

// Load reads a YAML settings file.  An empty filename returns the
// defaults.
func Load(filename string) (Settings, error) {
	if filename == "" {
		return Defaults(), nil
	}
	text, err := ioutil.ReadFile(filename)
	if err != nil {
		return Settings{}, err
	}
	return Parse(text)
}
