// Copyright © 2025 jackelyj <dreamerlyj@gmail.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.
//

package monitoring

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"
)

// SentryConfig holds Sentry configuration options
type SentryConfig struct {
	Enabled          bool              `yaml:"enabled" json:"enabled"`
	DSN              string            `yaml:"dsn" json:"dsn"`
	Environment      string            `yaml:"environment" json:"environment"`
	Release          string            `yaml:"release" json:"release"`
	SampleRate       float64           `yaml:"sample_rate" json:"sample_rate"`
	Debug            bool              `yaml:"debug" json:"debug"`
	AttachStacktrace bool              `yaml:"attach_stacktrace" json:"attach_stacktrace"`
	Tags             map[string]string `yaml:"tags" json:"tags"`
}

// SentryManager reports errors that need a human to Sentry.
type SentryManager struct {
	config SentryConfig
	logger *zap.Logger

	mu          sync.RWMutex
	hub         *sentry.Hub
	initialized bool

	// beforeSend observes events before they leave the process; nil drops the event.
	beforeSend func(*sentry.Event) *sentry.Event
}

// NewSentryManager creates a new Sentry manager
func NewSentryManager(config SentryConfig, logger *zap.Logger) *SentryManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.SampleRate == 0 {
		config.SampleRate = 1.0
	}

	return &SentryManager{
		config: config,
		logger: logger,
	}
}

// Initialize creates the Sentry client. It is a no-op when Sentry is disabled.
func (sm *SentryManager) Initialize() error {
	if !sm.config.Enabled {
		sm.logger.Info("Sentry monitoring is disabled")
		return nil
	}

	if sm.config.DSN == "" {
		return fmt.Errorf("sentry DSN is required when enabled")
	}

	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:              sm.config.DSN,
		Environment:      sm.config.Environment,
		Release:          sm.config.Release,
		SampleRate:       sm.config.SampleRate,
		Debug:            sm.config.Debug,
		AttachStacktrace: sm.config.AttachStacktrace,
		BeforeSend: func(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
			sm.logger.Debug("Sending error to Sentry",
				zap.String("event_id", string(event.EventID)),
				zap.String("level", string(event.Level)),
				zap.String("message", event.Message))
			if sm.beforeSend != nil {
				return sm.beforeSend(event)
			}
			return event
		},
	})
	if err != nil {
		return fmt.Errorf("failed to initialize Sentry: %w", err)
	}

	scope := sentry.NewScope()
	for key, value := range sm.config.Tags {
		scope.SetTag(key, value)
	}

	sm.mu.Lock()
	sm.hub = sentry.NewHub(client, scope)
	sm.initialized = true
	sm.mu.Unlock()

	sm.logger.Info("Sentry monitoring initialized successfully",
		zap.String("environment", sm.config.Environment),
		zap.String("release", sm.config.Release))
	return nil
}

// Shutdown flushes buffered events.
func (sm *SentryManager) Shutdown(timeout time.Duration) {
	hub := sm.currentHub()
	if hub == nil {
		return
	}

	sm.logger.Info("Shutting down Sentry monitoring")
	hub.Flush(timeout)
}

// CaptureError captures an error and sends it to Sentry
func (sm *SentryManager) CaptureError(err error, tags map[string]string, extra map[string]interface{}) {
	hub := sm.currentHub()
	if hub == nil || err == nil {
		return
	}

	hub.WithScope(func(scope *sentry.Scope) {
		for key, value := range tags {
			scope.SetTag(key, value)
		}
		for key, value := range extra {
			scope.SetExtra(key, value)
		}
		hub.CaptureException(err)
	})
}

// CaptureMessage captures a message and sends it to Sentry
func (sm *SentryManager) CaptureMessage(message string, level sentry.Level, tags map[string]string, extra map[string]interface{}) {
	hub := sm.currentHub()
	if hub == nil {
		return
	}

	hub.WithScope(func(scope *sentry.Scope) {
		for key, value := range tags {
			scope.SetTag(key, value)
		}
		for key, value := range extra {
			scope.SetExtra(key, value)
		}
		scope.SetLevel(level)
		hub.CaptureMessage(message)
	})
}

// IsEnabled returns whether Sentry monitoring is enabled
func (sm *SentryManager) IsEnabled() bool {
	return sm.config.Enabled && sm.currentHub() != nil
}

func (sm *SentryManager) currentHub() *sentry.Hub {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	if !sm.initialized {
		return nil
	}
	return sm.hub
}

// SentryAlerter forwards failed saga compensations to Sentry. Each one leaves
// external state that someone has to reconcile by hand.
type SentryAlerter struct {
	manager *SentryManager
}

// NewSentryAlerter creates an alerter reporting through manager.
func NewSentryAlerter(manager *SentryManager) *SentryAlerter {
	return &SentryAlerter{manager: manager}
}

// AlertCompensationFailure reports a compensation that returned an error.
func (a *SentryAlerter) AlertCompensationFailure(ctx context.Context, sagaID, stepName string, err error) {
	if a == nil || a.manager == nil {
		return
	}
	if err == nil {
		err = errors.New("compensation failed")
	}
	a.manager.CaptureError(err,
		map[string]string{
			"saga.id":    sagaID,
			"saga.step":  stepName,
			"error.type": "compensation_failure",
		},
		map[string]interface{}{
			"reconciliation": "manual",
		})
}
