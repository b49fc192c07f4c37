package log

import (
	"strings"

	E "github.com/sagernet/sing-relay/common/exceptions"

	"github.com/sirupsen/logrus"
)

func init() {
	logrus.StandardLogger().Formatter.(*logrus.TextFormatter).FullTimestamp = true
	logrus.AddHook(new(TaggedHook))
}

func NewLogger(tag string) *logrus.Entry {
	return logrus.NewEntry(logrus.StandardLogger()).WithField("tag", tag)
}

// SetLevel accepts the level names used in configuration files.
func SetLevel(level string) error {
	if level == "" {
		return nil
	}
	if level == "warning" {
		level = "warn"
	}
	parsed, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		return E.Cause(err, "parse log level")
	}
	logrus.SetLevel(parsed)
	return nil
}

type TaggedHook struct{}

func (h *TaggedHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *TaggedHook) Fire(entry *logrus.Entry) error {
	if tagObj, loaded := entry.Data["tag"]; loaded {
		tag := tagObj.(string)
		delete(entry.Data, "tag")
		entry.Message = strings.ReplaceAll(entry.Message, tag+": ", "")
		entry.Message = "[" + tag + "]: " + entry.Message
	}
	return nil
}
