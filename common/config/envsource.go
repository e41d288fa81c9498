package config

import (
	"os"
	"strings"
)

type EnvSource struct{}

func (e *EnvSource) GetValue(key string) interface{} {
	v := os.Getenv(envKey(key))
	if v == "" {
		return nil
	}
	return v
}

func (e *EnvSource) Name() string {
	return "env"
}

func envKey(key string) string {
	properKey := strings.ToUpper(key)
	return strings.Replace(properKey, ".", "_", -1)
}

// MapSource serves values from a fixed map, keys are the full option names
type MapSource map[string]string

func (m MapSource) GetValue(key string) interface{} {
	v, ok := m[key]
	if !ok || v == "" {
		return nil
	}
	return v
}

func (m MapSource) Name() string {
	return "map"
}
