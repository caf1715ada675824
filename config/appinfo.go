package config

// Mode selects the runtime's operating posture; it only affects defaults
// (log verbosity, engine choice) and is never branched on inside request
// handling paths.
type Mode string

const (
	ModeDev  Mode = "dev"
	ModeProd Mode = "prod"
)

type AppInfo struct {
	Name string `json:"name" mapstructure:"name" ini:"name" yaml:"name"`
	Mode Mode   `json:"mode" mapstructure:"mode" ini:"mode" yaml:"mode"`
	// Dir is the base directory for the engine data dir, the procedure
	// directory, and log files when they're given as relative paths.
	Dir string `json:"dir" mapstructure:"dir" ini:"dir" yaml:"dir"`
}

func (*AppInfo) setDefault() {
	cv.SetDefault("app.name", "bicycledbd")
	cv.SetDefault("app.mode", ModeProd)
	cv.SetDefault("app.dir", ".")
}
