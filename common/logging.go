package common

import (
	"io"
	"log"
	"os"
	"sort"
	"strings"

	"github.com/clanbot/clanbot/common/sentryhook"
	"github.com/getsentry/sentry-go"
	"github.com/natefinch/lumberjack"
	"github.com/sirupsen/logrus"
)

var logger = GetFixedPrefixLogger("common")

// GetPluginLogger returns a logger tagged with the plugin's sysname
func GetPluginLogger(plugin Plugin) *logrus.Entry {
	return logrus.WithField("p", plugin.PluginInfo().SysName)
}

func GetFixedPrefixLogger(prefix string) *logrus.Entry {
	return logrus.WithField("p", prefix)
}

type LogOptions struct {
	// LogFile, if set, receives a copy of the output and is rotated by size
	LogFile   string
	SentryDSN string
	Debug     bool
	Version   string
}

// SetupLogging configures the global logrus logger, returns a function that flushes pending sentry events
func SetupLogging(opts LogOptions) func() {
	logrus.AddHook(ContextHook{})
	logrus.SetFormatter(&logrus.TextFormatter{
		SortingFunc: logrusSortingFunc,
	})

	if opts.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}

	if opts.LogFile != "" {
		logrus.SetOutput(io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   opts.LogFile,
			MaxSize:    100,
			MaxBackups: 5,
			MaxAge:     28,
		}))
	}

	log.SetOutput(&STDLogProxy{})
	log.SetFlags(0)

	if opts.SentryDSN == "" {
		return func() {}
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:     opts.SentryDSN,
		Release: opts.Version,
	})
	if err != nil {
		logrus.WithError(err).Error("Failed adding sentry hook")
		return func() {}
	}

	logrus.AddHook(&sentryhook.Hook{})
	logrus.Info("Added Sentry Hook")

	return func() {
		sentry.Flush(sentryFlushTimeout)
	}
}

var logSortPriority = []string{
	"time",
	"level",
	"p",
	"msg",
	"stck",
}

func logrusSortingFunc(fields []string) {
	sort.Slice(fields, func(i, j int) bool {

		iPriority := findStringIndex(logSortPriority, fields[i])
		jPriority := findStringIndex(logSortPriority, fields[j])

		if iPriority != -1 && jPriority == -1 {
			return true
		} else if jPriority != -1 && iPriority == -1 {
			return false
		} else if iPriority == -1 && jPriority == -1 {
			return strings.Compare(fields[i], fields[j]) < 0
		}

		// both has priority
		return iPriority < jPriority
	})
}

func findStringIndex(slice []string, s string) int {
	for i, v := range slice {
		if v == s {
			return i
		}
	}

	return -1
}
