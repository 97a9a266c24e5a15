package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config собирается один раз в main и передаётся явно —
// никакого глобального состояния с ленивой инициализацией
type Config struct {
	// Addr адрес HTTP-сервера
	Addr string `yaml:"addr"`
	// MySQLDSN непустой DSN включает SQL-бэкенд вместо in-memory
	MySQLDSN string `yaml:"mysql_dsn"`
	// RedisAddr непустой адрес включает хранение сессий в Redis
	RedisAddr string `yaml:"redis_addr"`
	// Dev переключает zap в development-режим
	Dev bool `yaml:"dev"`
}

func Default() Config {
	return Config{Addr: ":9091"}
}

// Load читает YAML-файл (если путь непустой) и применяет env-переопределения.
// Переменные окружения сильнее файла.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}
	applyEnv(&cfg)
	if cfg.Addr == "" {
		cfg.Addr = Default().Addr
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("STOLIK_ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := os.Getenv("STOLIK_MYSQL_DSN"); v != "" {
		cfg.MySQLDSN = v
	}
	if v := os.Getenv("STOLIK_REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("STOLIK_DEV"); v == "1" || v == "true" {
		cfg.Dev = true
	}
}
