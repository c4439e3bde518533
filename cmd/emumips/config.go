package main

import (
	"bytes"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"emumips/sim"
)

// loadConfig starts from the defaults, applies the YAML file if one was
// given and then any limits set on the command line.
func loadConfig(fsys afero.Fs, opts options) (sim.Config, error) {
	cfg := sim.DefaultConfig()
	if opts.configFile != "" {
		data, err := afero.ReadFile(fsys, opts.configFile)
		if err != nil {
			return cfg, errors.Wrap(err, "read config file")
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil {
			return cfg, errors.Wrapf(err, "parse config file %s", opts.configFile)
		}
	}
	if opts.maxSegment != "" {
		if err := cfg.MaxSegmentSize.Set(opts.maxSegment); err != nil {
			return cfg, errors.Wrap(err, "--max-segment-size")
		}
	}
	if opts.maxImage != "" {
		if err := cfg.MaxImageSize.Set(opts.maxImage); err != nil {
			return cfg, errors.Wrap(err, "--max-image-size")
		}
	}
	if opts.overlap != "" {
		cfg.Overlap = sim.OverlapPolicy(opts.overlap)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, errors.Wrap(err, "invalid config")
	}
	return cfg, nil
}
