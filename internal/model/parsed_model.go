package model

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"
)

// DefaultTimeoutSeconds bounds how long a single model statement may run.
const DefaultTimeoutSeconds = 3600

// Config is the model-level configuration block relevant to Python
// submission.
type Config struct {
	Packages []string `mapstructure:"packages"`
	// Timeout is the statement timeout in seconds.
	Timeout int `mapstructure:"timeout"`
}

// ParsedModel is the descriptor the host tool hands the adapter for one
// compiled Python model.
type ParsedModel struct {
	Alias  string `mapstructure:"alias"`
	Schema string `mapstructure:"schema"`
	Config Config `mapstructure:"config"`
}

// FromMap decodes the map-shaped model descriptor produced by the host tool
// and applies defaults.
func FromMap(raw map[string]any) (*ParsedModel, error) {
	var m ParsedModel
	if err := mapstructure.Decode(raw, &m); err != nil {
		return nil, fmt.Errorf("invalid parsed model: %w", err)
	}
	if m.Alias == "" {
		return nil, fmt.Errorf("parsed model has no alias")
	}
	m.ApplyDefaults()
	return &m, nil
}

// ApplyDefaults fills in configuration values the descriptor left unset.
func (m *ParsedModel) ApplyDefaults() {
	if m.Config.Timeout <= 0 {
		m.Config.Timeout = DefaultTimeoutSeconds
	}
}
