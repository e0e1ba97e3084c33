package persistassignments

import "time"

type Config struct {
	QueryTimeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		QueryTimeout: 15 * time.Second,
	}
}
