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
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"
)

// HealthStatus represents the health status of a component.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// DefaultCheckTimeout bounds each health check.
const DefaultCheckTimeout = 2 * time.Second

// ErrDegraded marks a check error as degraded rather than unhealthy.
var ErrDegraded = errors.New("degraded")

// ComponentHealth represents the health of a single component.
type ComponentHealth struct {
	Name          string        `json:"name"`
	Status        HealthStatus  `json:"status"`
	Error         string        `json:"error,omitempty"`
	CheckDuration time.Duration `json:"check_duration"`
	Timestamp     time.Time     `json:"timestamp"`
}

// HealthReport contains the overall health status of the engine.
type HealthReport struct {
	Status     HealthStatus                `json:"status"`
	Components map[string]*ComponentHealth `json:"components"`
	Timestamp  time.Time                   `json:"timestamp"`
}

// HealthChecker checks one component.
type HealthChecker interface {
	Check(ctx context.Context) *ComponentHealth
	GetName() string
}

type funcChecker struct {
	name  string
	check func(ctx context.Context) error
}

// CheckFunc adapts fn into a HealthChecker. A nil error is healthy, an error
// wrapping ErrDegraded is degraded, and any other error is unhealthy.
func CheckFunc(name string, fn func(ctx context.Context) error) HealthChecker {
	return &funcChecker{name: name, check: fn}
}

func (c *funcChecker) GetName() string { return c.name }

func (c *funcChecker) Check(ctx context.Context) *ComponentHealth {
	start := time.Now()
	result := &ComponentHealth{Name: c.name, Status: HealthStatusHealthy, Timestamp: start}
	if err := c.check(ctx); err != nil {
		result.Status = HealthStatusUnhealthy
		if errors.Is(err, ErrDegraded) {
			result.Status = HealthStatusDegraded
		}
		result.Error = err.Error()
	}
	result.CheckDuration = time.Since(start)
	return result
}

// HealthManager runs the registered checkers concurrently.
type HealthManager struct {
	mu           sync.RWMutex
	checkers     map[string]HealthChecker
	checkTimeout time.Duration
}

// NewHealthManager creates a manager. A non-positive timeout uses DefaultCheckTimeout.
func NewHealthManager(checkTimeout time.Duration) *HealthManager {
	if checkTimeout <= 0 {
		checkTimeout = DefaultCheckTimeout
	}
	return &HealthManager{checkers: make(map[string]HealthChecker), checkTimeout: checkTimeout}
}

// RegisterChecker adds checker. Names must be unique.
func (h *HealthManager) RegisterChecker(checker HealthChecker) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	name := checker.GetName()
	if _, exists := h.checkers[name]; exists {
		return fmt.Errorf("health checker %s already registered", name)
	}
	h.checkers[name] = checker
	return nil
}

// Names lists the registered checkers.
func (h *HealthManager) Names() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	names := make([]string, 0, len(h.checkers))
	for name := range h.checkers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CheckHealth runs every checker and aggregates the worst status.
func (h *HealthManager) CheckHealth(ctx context.Context) *HealthReport {
	h.mu.RLock()
	checkers := make([]HealthChecker, 0, len(h.checkers))
	for _, c := range h.checkers {
		checkers = append(checkers, c)
	}
	h.mu.RUnlock()

	results := make(chan *ComponentHealth, len(checkers))
	var wg sync.WaitGroup
	for _, c := range checkers {
		wg.Add(1)
		go func(c HealthChecker) {
			defer wg.Done()
			checkCtx, cancel := context.WithTimeout(ctx, h.checkTimeout)
			defer cancel()
			results <- c.Check(checkCtx)
		}(c)
	}
	wg.Wait()
	close(results)

	report := &HealthReport{
		Status:     HealthStatusHealthy,
		Components: make(map[string]*ComponentHealth, len(checkers)),
		Timestamp:  time.Now(),
	}
	for r := range results {
		report.Components[r.Name] = r
		switch {
		case r.Status == HealthStatusUnhealthy:
			report.Status = HealthStatusUnhealthy
		case r.Status == HealthStatusDegraded && report.Status == HealthStatusHealthy:
			report.Status = HealthStatusDegraded
		}
	}
	return report
}

// Handler serves the health report as JSON: 200 unless unhealthy, then 503.
func (h *HealthManager) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		report := h.CheckHealth(r.Context())
		code := http.StatusOK
		if report.Status == HealthStatusUnhealthy {
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(report)
	})
}
