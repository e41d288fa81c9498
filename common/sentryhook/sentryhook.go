package sentryhook

import (
	"fmt"

	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"
)

// tagFields maps log fields to the sentry tags they're indexed under, other fields become extras
var tagFields = map[string]string{
	"p":         "plugin",
	"guild":     "guild_id",
	"cmd":       "command",
	"event":     "event_id",
	"vote":      "vote_id",
	"roster":    "roster_id",
	"custom_id": "component",
}

// Hook forwards error level log entries to sentry, tagged with the plugin, guild and clan object they concern
type Hook struct{}

var _ logrus.Hook = Hook{}

func (Hook) Levels() []logrus.Level {
	return []logrus.Level{
		logrus.ErrorLevel,
		logrus.FatalLevel,
		logrus.PanicLevel,
	}
}

func (Hook) Fire(entry *logrus.Entry) error {
	hub := sentry.CurrentHub().Clone()
	if hub == nil || hub.Client() == nil {
		return nil
	}

	tags, extras := splitFields(entry.Data)
	hub.WithScope(func(s *sentry.Scope) {
		s.SetTags(tags)
		for k, v := range extras {
			s.SetExtra(k, v)
		}

		if err, ok := entry.Data[logrus.ErrorKey].(error); ok {
			s.SetExtra("message", entry.Message)
			hub.CaptureException(err)
		} else {
			hub.CaptureMessage(entry.Message)
		}
	})

	return nil
}

// splitFields sorts the entry fields into tags and extras, the stack and error are reported by sentry itself
func splitFields(data logrus.Fields) (tags, extras map[string]string) {
	tags = make(map[string]string)
	extras = make(map[string]string)
	for k, v := range data {
		switch k {
		case "stck", logrus.ErrorKey:
			continue
		}

		if tag, ok := tagFields[k]; ok {
			tags[tag] = fmt.Sprint(v)
		} else {
			extras[k] = fmt.Sprint(v)
		}
	}
	return tags, extras
}
