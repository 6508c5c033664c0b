package config

import (
	"os"

	"github.com/go-yaml/yaml"
	"github.com/pkg/errors"

	"github.com/totegamma/reputation-engine/internal/domain"
)

type Config struct {
	Server     Server        `yaml:"server"`
	Reputation domain.Config `yaml:"reputation"`
}

type Server struct {
	Listen        string `yaml:"listen"`
	PostgresDsn   string `yaml:"postgresDsn"`
	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`
	RedisDB       int    `yaml:"redisDB"`
	MemcachedAddr string `yaml:"memcachedAddr"`
	EnableTrace   bool   `yaml:"enableTrace"`
	TraceEndpoint string `yaml:"traceEndpoint"`
	LogMode       string `yaml:"logMode"` // production, development
	LogLevel      string `yaml:"logLevel"`
}

func Default() Config {
	return Config{
		Server: Server{
			Listen:   ":8000",
			LogMode:  "production",
			LogLevel: "info",
		},
		Reputation: domain.DefaultConfig(),
	}
}

// Load reads a yaml file over the defaults.
func Load(path string) (Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "open config")
	}
	defer file.Close()

	config := Default()
	err = yaml.NewDecoder(file).Decode(&config)
	if err != nil {
		return Config{}, errors.Wrapf(err, "decode config %s", path)
	}

	if err := config.Validate(); err != nil {
		return Config{}, err
	}

	return config, nil
}

func (c Config) Validate() error {
	if c.Server.PostgresDsn == "" {
		return errors.New("server.postgresDsn is required")
	}
	if c.Server.EnableTrace && c.Server.TraceEndpoint == "" {
		return errors.New("server.traceEndpoint is required when tracing is enabled")
	}
	r := c.Reputation
	if r.VotingPowerThreshold <= 0 || r.VotingPowerThreshold > 1 {
		return errors.Errorf("reputation.votingPowerThreshold must be in (0, 1], got %v", r.VotingPowerThreshold)
	}
	if r.WeightSaturation <= 0 {
		return errors.Errorf("reputation.weightSaturation must be positive, got %v", r.WeightSaturation)
	}
	if r.ListPageSize <= 0 {
		return errors.Errorf("reputation.listPageSize must be positive, got %d", r.ListPageSize)
	}
	return nil
}
