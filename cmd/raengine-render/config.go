package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// renderConfig is the YAML-driven engine configuration. CLI flags layer a single
// source and a shoebox room on top of whatever this file describes.
type renderConfig struct {
	SampleRate       float64   `yaml:"sample_rate"`
	BlockSize        int       `yaml:"block_size"`
	NumReverbSources int       `yaml:"num_reverb_sources"`
	BandCenters      []float64 `yaml:"band_centers"`
	DiffractionModel string    `yaml:"diffraction_model"`
	ReverbMatrix     string    `yaml:"reverb_matrix"`
	ReverbFormula    string    `yaml:"reverb_formula"`
	T60              []float64 `yaml:"t60"`
}

func defaultRenderConfig() renderConfig {
	return renderConfig{
		SampleRate:       48000,
		BlockSize:        256,
		NumReverbSources: 8,
		BandCenters:      []float64{250, 1000, 4000},
		DiffractionModel: "udfa",
		ReverbMatrix:     "householder",
		ReverbFormula:    "sabine",
	}
}

func loadRenderConfig(path string) (renderConfig, error) {
	cfg := defaultRenderConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %q: %w", path, err)
	}
	return cfg, nil
}
