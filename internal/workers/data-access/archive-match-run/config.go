package archivematchrun

import "time"

type Config struct {
	IndexName string
	Timeout   time.Duration
}

func LoadConfig() *Config {
	return &Config{
		IndexName: "match-runs",
		Timeout:   10 * time.Second,
	}
}
