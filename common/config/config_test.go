package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	m := NewConfigManager()
	str := m.RegisterOption("clanbot.test_str", "", "hello")
	num := m.RegisterOption("clanbot.test_num", "", 5)
	flag := m.RegisterOption("clanbot.test_flag", "", true)
	dur := m.RegisterOption("clanbot.test_dur", "", time.Minute)
	m.Load()

	assert.Equal(t, "hello", str.GetString())
	assert.Equal(t, 5, num.GetInt())
	assert.True(t, flag.GetBool())
	assert.Equal(t, time.Minute, dur.GetDuration())
	assert.Nil(t, str.ConfigSource)
}

func TestLaterSourcesWin(t *testing.T) {
	m := NewConfigManager()
	m.AddSource(MapSource{"clanbot.test_num": "1"})
	m.AddSource(MapSource{"clanbot.test_num": "2"})
	num := m.RegisterOption("clanbot.test_num", "", 0)
	m.Load()

	if num.GetInt() != 2 {
		t.Errorf("expected 2 got %d", num.GetInt())
	}
}

func TestEnvSource(t *testing.T) {
	os.Setenv("CLANBOT_TEST_ENV_OPT", "30s")
	defer os.Unsetenv("CLANBOT_TEST_ENV_OPT")

	m := NewConfigManager()
	m.AddSource(&EnvSource{})
	opt := m.RegisterOption("clanbot.test_env_opt", "", time.Hour)
	m.Load()

	assert.Equal(t, 30*time.Second, opt.GetDuration())
	assert.Equal(t, "CLANBOT_TEST_ENV_OPT", opt.EnvName())
	if assert.NotNil(t, opt.ConfigSource) {
		assert.Equal(t, "env", opt.ConfigSource.Name())
	}
}

func TestValueParsing(t *testing.T) {
	cases := []struct {
		in   interface{}
		want bool
	}{
		{"yes", true},
		{" On ", true},
		{"1", true},
		{"nope", false},
		{0, false},
		{3, true},
	}

	for _, c := range cases {
		if got := boolVal(c.in); got != c.want {
			t.Errorf("boolVal(%v) = %v, want %v", c.in, got, c.want)
		}
	}

	assert.Equal(t, 90*time.Second, durationVal("90"))
	assert.Equal(t, 2*time.Hour, durationVal("2h"))
	assert.Equal(t, 12, intVal(" 12 "))
}

func TestSorted(t *testing.T) {
	m := NewConfigManager()
	m.RegisterOption("b", "", "")
	m.RegisterOption("a", "", "")
	m.RegisterOption("c", "", "")

	sorted := m.Sorted()
	names := []string{sorted[0].Name, sorted[1].Name, sorted[2].Name}
	assert.Equal(t, []string{"a", "b", "c"}, names)
}
