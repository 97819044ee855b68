package main

import (
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Port             int    `yaml:"port"`
	Origin           string `yaml:"origin"`
	Host             string `yaml:"host"`
	Provider         string `yaml:"provider"`
	DB               string `yaml:"db"`
	RedisAddr        string `yaml:"redisAddr"`
	DisableInjection bool   `yaml:"disableInjection"`
}

func getConfig(filename string) (Config, error) {
	var config Config
	configBytes, err := os.ReadFile(filename)
	if err != nil {
		return config, err
	}
	err = yaml.Unmarshal(configBytes, &config)
	return config, err
}
