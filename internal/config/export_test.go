package config

// Re-export unexported identifiers for the external test package.

var DefaultPath = defaultPath

// ApplyEnv runs environment overrides with an injectable lookup.
func ApplyEnv(c *Config, getenv func(key string) string) {
	c.applyEnv(getenv)
}
