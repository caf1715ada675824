package config

import "time"

// Biplane holds the procedure registry and WASM runtime settings.
type Biplane struct {
	ProcedureDir string        `json:"procedure_dir" mapstructure:"procedure_dir" ini:"procedure_dir" yaml:"procedure_dir"`
	Budget       time.Duration `json:"budget" mapstructure:"budget" ini:"budget" yaml:"budget" default:"5s"`
}

func (*Biplane) setDefault() {
	cv.SetDefault("biplane.procedure_dir", "procedures")
	cv.SetDefault("biplane.budget", 5*time.Second)
}
