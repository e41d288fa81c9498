package config

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

type ConfigSource interface {
	GetValue(key string) interface{}
	Name() string
}

type ConfigOption struct {
	Name         string
	Description  string
	DefaultValue interface{}
	LoadedValue  interface{}
	Manager      *ConfigManager

	ConfigSource ConfigSource
}

// LoadValue walks the sources from the last added to the first, the first one that has a value wins
func (opt *ConfigOption) LoadValue() {
	newVal := opt.DefaultValue
	opt.ConfigSource = nil

	for i := len(opt.Manager.sources) - 1; i >= 0; i-- {
		source := opt.Manager.sources[i]

		v := source.GetValue(opt.Name)
		if v != nil {
			newVal = v
			opt.ConfigSource = source
			break
		}
	}

	// parse ahead of time
	if opt.DefaultValue != nil {
		switch opt.DefaultValue.(type) {
		case int:
			newVal = interface{}(intVal(newVal))
		case bool:
			newVal = interface{}(boolVal(newVal))
		case time.Duration:
			newVal = interface{}(durationVal(newVal))
		}
	}

	opt.LoadedValue = newVal
}

func (opt *ConfigOption) GetString() string {
	return strVal(opt.LoadedValue)
}

func (opt *ConfigOption) GetInt() int {
	return intVal(opt.LoadedValue)
}

func (opt *ConfigOption) GetBool() bool {
	return boolVal(opt.LoadedValue)
}

func (opt *ConfigOption) GetDuration() time.Duration {
	return durationVal(opt.LoadedValue)
}

// EnvName returns the environment variable the option is read from
func (opt *ConfigOption) EnvName() string {
	return envKey(opt.Name)
}

type ConfigManager struct {
	sources []ConfigSource
	Options map[string]*ConfigOption
}

func NewConfigManager() *ConfigManager {
	return &ConfigManager{
		Options: make(map[string]*ConfigOption),
	}
}

func (c *ConfigManager) AddSource(source ConfigSource) {
	c.sources = append(c.sources, source)
}

func (c *ConfigManager) RegisterOption(name, desc string, defaultValue interface{}) *ConfigOption {
	opt := &ConfigOption{
		Name:         name,
		Description:  desc,
		DefaultValue: defaultValue,
		Manager:      c,
	}

	c.Options[name] = opt
	return opt
}

func (c *ConfigManager) Load() {
	for _, v := range c.Options {
		v.LoadValue()
	}
}

// Sorted returns the registered options ordered by name
func (c *ConfigManager) Sorted() []*ConfigOption {
	result := make([]*ConfigOption, 0, len(c.Options))
	for _, v := range c.Options {
		result = append(result, v)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})

	return result
}

func strVal(i interface{}) string {
	switch t := i.(type) {
	case string:
		return t
	case int:
		return strconv.FormatInt(int64(t), 10)
	case Stringer:
		return t.String()
	}

	return ""
}

type Stringer interface {
	String() string
}

func intVal(i interface{}) int {
	switch t := i.(type) {
	case string:
		n, _ := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		return int(n)
	case int:
		return t
	}

	return 0
}

func boolVal(i interface{}) bool {
	switch t := i.(type) {
	case string:
		lower := strings.ToLower(strings.TrimSpace(t))
		if lower == "true" || lower == "yes" || lower == "on" || lower == "enabled" || lower == "1" {
			return true
		}

		return false
	case int:
		return t > 0
	case bool:
		return t
	}

	return false
}

// durationVal accepts go durations ("90s", "5m") and plain integers which are treated as seconds
func durationVal(i interface{}) time.Duration {
	switch t := i.(type) {
	case string:
		trimmed := strings.TrimSpace(t)
		if d, err := time.ParseDuration(trimmed); err == nil {
			return d
		}

		n, _ := strconv.ParseInt(trimmed, 10, 64)
		return time.Duration(n) * time.Second
	case int:
		return time.Duration(t) * time.Second
	case time.Duration:
		return t
	}

	return 0
}
