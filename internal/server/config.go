package server

import (
	"errors"
	"os"

	"gopkg.in/yaml.v2"
)

type Route struct {
	Path    string            `yaml:"path"`
	Status  int               `yaml:"status"`
	Body    string            `yaml:"body"`
	Headers map[string]string `yaml:"headers"`
}

type ServerConfig struct {
	Port   int     `yaml:"port"`
	Routes []Route `yaml:"routes"`
}

type EncoderConfig struct {
	HeaderTableSize  uint32   `yaml:"header_table_size"`
	SensitiveHeaders []string `yaml:"sensitive_headers"`
}

type LoggerConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Encoder EncoderConfig `yaml:"encoder"`
	Logger  LoggerConfig  `yaml:"logger"`
}

func (c *Config) Validate() error {
	if c.Server.Port == 0 {
		return errors.New("server port is not set")
	}
	if len(c.Server.Routes) == 0 {
		return errors.New("no server routes are defined")
	}
	for _, route := range c.Server.Routes {
		if route.Path == "" {
			return errors.New("route path is not set")
		}
		if route.Status < 100 || route.Status >= 600 {
			return errors.New("route status is not a valid status code")
		}
	}
	if c.Logger.Level == "" {
		return errors.New("logger level is not set")
	}
	return nil
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config Config
	if err = yaml.Unmarshal(data, &config); err != nil {
		return nil, err
	}

	return &config, nil
}
