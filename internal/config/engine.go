package config

import (
	"omegagen/internal/engine"
)

// EngineConfig configures the calculator subprocess.
type EngineConfig struct {
	Binary         string   `yaml:"binary"`
	Args           []string `yaml:"args,omitempty"`
	WorkDir        string   `yaml:"work_dir"`
	Timeout        string   `yaml:"timeout"`
	PromptMarker   string   `yaml:"prompt_marker"`
	MaxOutputBytes int64    `yaml:"max_output_bytes"`
	KeepScripts    bool     `yaml:"keep_scripts"`
}

// ExecConfig converts the engine section into an engine.ExecConfig.
func (c *Config) ExecConfig() engine.ExecConfig {
	return engine.ExecConfig{
		Binary:         c.Engine.Binary,
		Args:           append([]string(nil), c.Engine.Args...),
		WorkDir:        c.Engine.WorkDir,
		Timeout:        c.GetEngineTimeout(),
		MaxOutputBytes: c.Engine.MaxOutputBytes,
		KeepScript:     c.Engine.KeepScripts,
	}
}

// GetPromptMarker returns the prompt marker, falling back to engine.PromptMarker.
func (c *Config) GetPromptMarker() string {
	if c.Engine.PromptMarker == "" {
		return engine.PromptMarker
	}
	return c.Engine.PromptMarker
}
