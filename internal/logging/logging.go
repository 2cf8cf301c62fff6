// Package logging configures the process-wide logrus logger and the Sentry
// client, and offers the two helpers handlers use to record failures and
// notable events.
package logging

import (
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"
)

// Setup configures logrus for the given environment and level and, when a
// DSN is provided, initializes Sentry. The returned function flushes pending
// Sentry events and should be deferred by main.
func Setup(environment, level, sentryDSN string) (func(), error) {
	if environment == "production" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logrus.SetLevel(lvl)

	if sentryDSN == "" {
		return func() {}, nil
	}

	err = sentry.Init(sentry.ClientOptions{
		Dsn:         sentryDSN,
		Environment: environment,
	})
	if err != nil {
		return func() {}, err
	}
	return func() { sentry.Flush(2 * time.Second) }, nil
}

// Error logs err with structured context and reports it to Sentry.
// Sentry calls are no-ops when Setup was not given a DSN.
func Error(errorType string, err error, fields logrus.Fields) {
	entry := logrus.WithFields(logrus.Fields{
		"error_type": errorType,
		"error":      err.Error(),
	}).WithFields(fields)
	entry.Error("error occurred")

	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("error_type", errorType)
		for k, v := range fields {
			scope.SetExtra(k, v)
		}
		sentry.CaptureException(err)
	})
}

// Event logs an informational event and records it as a Sentry breadcrumb.
func Event(eventType string, data map[string]interface{}) {
	logrus.WithField("event_type", eventType).WithFields(data).Info("event occurred")

	sentry.AddBreadcrumb(&sentry.Breadcrumb{
		Type:      "info",
		Category:  eventType,
		Data:      data,
		Timestamp: time.Now(),
	})
}
