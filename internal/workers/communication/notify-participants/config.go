package notifyparticipants

import "time"

type Config struct {
	EmailEnabled bool
	SMSEnabled   bool
	FromEmail    string
	AWSRegion    string
	Timeout      time.Duration
}

func LoadConfig() *Config {
	return &Config{
		EmailEnabled: true,
		SMSEnabled:   false,
		FromEmail:    "no-reply@opposite-match.io",
		AWSRegion:    "us-east-1",
		Timeout:      15 * time.Second,
	}
}
