// Package xlog provides the structured-logging convention shared by every
// CORE component: one *logrus.Entry per component instance, pre-populated
// with "component" and "repo" fields, generalizing the teacher's
// fmt.Errorf("wongdb: ...")-style string-prefix convention into structured
// fields a log pipeline can filter on.
package xlog

import (
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	baseOnce sync.Once
	base     *logrus.Logger
)

// Base returns the process-wide logrus logger, configured once on first use.
func Base() *logrus.Logger {
	baseOnce.Do(func() {
		base = logrus.New()
		base.SetOutput(os.Stderr)
		base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		base.SetLevel(logrus.InfoLevel)
	})
	return base
}

// SetLevel adjusts the base logger's level, e.g. from a CLI --verbose flag.
func SetLevel(level logrus.Level) {
	Base().SetLevel(level)
}

// For returns a logger scoped to a single CORE component, e.g.
// xlog.For("tailer", "large_repo") for a forward-sync tailer instance.
func For(component string, repo string) *logrus.Entry {
	return Base().WithFields(logrus.Fields{
		"component": component,
		"repo":      repo,
	})
}

// ForVersion narrows a component logger to a specific mapping version.
func ForVersion(entry *logrus.Entry, version string) *logrus.Entry {
	return entry.WithField("version", version)
}
