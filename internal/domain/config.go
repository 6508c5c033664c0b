package domain

import "time"

// Config carries the reputation policy shared by the usecases.
type Config struct {
	VotingPowerThreshold float64       `yaml:"votingPowerThreshold"`
	WeightSaturation     float64       `yaml:"weightSaturation"`
	LazyRecalculate      bool          `yaml:"lazyRecalculate"`
	MaxRetries           uint64        `yaml:"maxRetries"`
	RetryInitialInterval time.Duration `yaml:"retryInitialInterval"`
	RetryMaxInterval     time.Duration `yaml:"retryMaxInterval"`
	ListPageSize         int           `yaml:"listPageSize"`
	TagCacheTTL          time.Duration `yaml:"tagCacheTTL"`
	SnapshotTTL          time.Duration `yaml:"snapshotTTL"`
	ClockSkew            time.Duration `yaml:"clockSkew"`
}

func DefaultConfig() Config {
	return Config{
		VotingPowerThreshold: 0.1,
		WeightSaturation:     10,
		LazyRecalculate:      true,
		MaxRetries:           5,
		RetryInitialInterval: 50 * time.Millisecond,
		RetryMaxInterval:     time.Second,
		ListPageSize:         100,
		TagCacheTTL:          time.Minute,
		SnapshotTTL:          10 * time.Minute,
		ClockSkew:            5 * time.Minute,
	}
}

func (c Config) Policy() VotingPolicy {
	return VotingPolicy{
		Curve:     LinearCurve{Saturation: c.WeightSaturation},
		Threshold: c.VotingPowerThreshold,
	}
}
