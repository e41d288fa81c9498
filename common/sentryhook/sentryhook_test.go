package sentryhook

import (
	"testing"

	"emperror.dev/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestSplitFields(t *testing.T) {
	tags, extras := splitFields(logrus.Fields{
		"p":         "attendance",
		"guild":     int64(10),
		"event":     int64(42),
		"custom_id": "att_ok:abc",
		"user":      int64(7),
		"stck":      "goroutine 1",
		"error":     errors.New("boom"),
	})

	assert.Equal(t, map[string]string{
		"plugin":    "attendance",
		"guild_id":  "10",
		"event_id":  "42",
		"component": "att_ok:abc",
	}, tags)
	assert.Equal(t, map[string]string{"user": "7"}, extras)
}

func TestFireWithoutClient(t *testing.T) {
	entry := logrus.WithField("event", 1)
	entry.Message = "failed"
	assert.NoError(t, Hook{}.Fire(entry))
}
