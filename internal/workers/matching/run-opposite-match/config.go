package runoppositematch

import "time"

type Config struct {
	Strategy        string
	ScaleMin        int
	ScaleMax        int
	ScoringWorkers  int
	QuestionWeights []float64
	ExtremeWeight   float64
	LeanWeight      float64
	ModerateWeight  float64
	Timeout         time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Strategy:       "absolute-difference",
		ScaleMin:       1,
		ScaleMax:       7,
		ExtremeWeight:  1.5,
		LeanWeight:     1.2,
		ModerateWeight: 1.0,
		Timeout:        30 * time.Second,
	}
}
