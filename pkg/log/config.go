package log

import "github.com/rs/zerolog"

// Config controls logger formatting and level.
// Fields are populated from the environment (see struct tags) and then used
// to construct a zerolog-based logger with the desired output format.
type Config struct {
	HumanFriendly   bool   `envconfig:"optional"` // when true, use a more readable (non-JSON) format
	NoColoredOutput bool   `envconfig:"optional"` // disable ANSI colors in human-friendly output
	Level           string `envconfig:"optional"` // log level name, e.g. "debug", "info", "warn", "error"
	Service         string `envconfig:"optional"` // value of the "service" field on every entry
}

// SetDefault fills in empty fields.
// Level defaults to zerolog.InfoLevel and Service to "digest".
func (c *Config) SetDefault() {
	if c.Level == "" {
		c.Level = zerolog.InfoLevel.String()
	}
	if c.Service == "" {
		c.Service = "digest"
	}
}
