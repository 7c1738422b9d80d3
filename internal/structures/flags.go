package structures

type CliFlags struct {
	ConfigPath string `short:"c" long:"config" description:"Path to YAML config file" default:"config.yaml"`
	DebugMode  bool   `short:"d" long:"debug" description:"Enable debug logging to console"`
}
