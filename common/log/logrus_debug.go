//go:build debug

package log

import (
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

func init() {
	logrus.SetLevel(logrus.DebugLevel)
	logrus.StandardLogger().SetReportCaller(true)
	workDir, _ := os.Getwd()
	logrus.StandardLogger().Formatter.(*logrus.TextFormatter).CallerPrettyfier = func(frame *runtime.Frame) (string, string) {
		return "", " " + shortCaller(workDir, frame.File, frame.Line)
	}
}

// shortCaller renders file:line relative to dir when possible.
func shortCaller(dir string, file string, line int) string {
	if dir != "" {
		file = strings.TrimPrefix(file, dir+"/")
	}
	return file + ":" + strconv.Itoa(line)
}
