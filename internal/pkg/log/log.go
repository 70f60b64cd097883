/*
 * Copyright 2018 The Sugarkube Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package log

import (
	"io"
	"os"

	"github.com/onrik/logrus/filename"
	"github.com/sirupsen/logrus"
)

var Logger *logrus.Logger

// How the logger should be set up
type Options struct {
	Level    string
	JsonLogs bool
	// nil discards all output
	Out io.Writer
}

func init() {
	// make sure packages can log before the CLI has parsed its flags
	Logger = newLogger(Options{Level: "info", Out: os.Stderr})
}

// Logs to stderr
func ConfigureLogger(logLevel string, jsonLogs bool) {
	Configure(Options{Level: logLevel, JsonLogs: jsonLogs, Out: os.Stderr})
}

func Configure(opts Options) {
	Logger.Debugf("Reconfiguring logger to log level '%s' and "+
		"setting json logs=%#v", opts.Level, opts.JsonLogs)

	Logger = newLogger(opts)

	Logger.Debugf("Initialised logger at log level '%s' and "+
		"json logs=%#v", opts.Level, opts.JsonLogs)
}

func newLogger(opts Options) *logrus.Logger {
	l := logrus.New()
	l.AddHook(filename.NewHook())

	if opts.JsonLogs {
		l.Formatter = &logrus.JSONFormatter{}
	} else {
		l.Formatter = &logrus.TextFormatter{
			FullTimestamp: true,
		}
	}

	l.Out = opts.Out
	if l.Out == nil {
		l.Out = io.Discard
	}

	SetLevel(l, opts.Level)

	return l
}

// Set the log level. 'none' discards all output.
func SetLevel(l *logrus.Logger, level string) {
	switch level {
	case "none":
		l.Out = io.Discard
	case "trace":
		l.Level = logrus.TraceLevel
	case "debug":
		l.Level = logrus.DebugLevel
	case "info":
		l.Level = logrus.InfoLevel
	case "warn", "warning":
		l.Level = logrus.WarnLevel
	case "error":
		l.Level = logrus.ErrorLevel
	case "fatal":
		l.Level = logrus.FatalLevel
	default:
		l.Level = logrus.InfoLevel
	}
}

// Returns true if stack traces should be shown to the user
func IsVerbose() bool {
	return Logger.IsLevelEnabled(logrus.DebugLevel)
}

// Returns a logger for messages about one application
func ForApp(app string) *logrus.Entry {
	return Logger.WithField("app", app)
}
