package logging

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, logrus.ErrorLevel, ParseLevel("error"))
	assert.Equal(t, logrus.WarnLevel, ParseLevel("warn"))
	assert.Equal(t, logrus.DebugLevel, ParseLevel("debug"))
	assert.Equal(t, logrus.InfoLevel, ParseLevel("info"))
	assert.Equal(t, logrus.InfoLevel, ParseLevel("verbose"))
}

func TestInitTagsModule(t *testing.T) {
	Init("consumer", "debug")
	t.Cleanup(func() { logrus.SetLevel(logrus.InfoLevel) })

	entry := WithFields(Fields{"event": "test"})
	assert.Equal(t, "consumer", entry.Data["module"])
	assert.Equal(t, "test", entry.Data["event"])
	assert.Equal(t, logrus.DebugLevel, logrus.GetLevel())
}
