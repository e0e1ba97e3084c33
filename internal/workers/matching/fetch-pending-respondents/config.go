package fetchpendingrespondents

import "time"

type Config struct {
	CacheTTL       time.Duration
	QueryTimeout   time.Duration
	MaxRespondents int
}

func LoadConfig() *Config {
	return &Config{
		CacheTTL:       5 * time.Minute,
		QueryTimeout:   10 * time.Second,
		MaxRespondents: 10000,
	}
}
