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

package saga

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SagaContext carries the input parameters and derived identifiers of one saga
// execution together with its status. Values keep their insertion order.
// It is safe for concurrent readers; writers are the orchestrator and its steps.
type SagaContext struct {
	mu sync.RWMutex

	id        string
	sagaType  string
	startTime time.Time

	keys   []string
	values map[string]interface{}

	status         Status
	completedSteps []string
	errorMessage   string
}

// NewSagaContext creates a context with a freshly generated saga id.
func NewSagaContext(sagaType string) *SagaContext {
	return NewSagaContextWithID(uuid.NewString(), sagaType, time.Now().UTC())
}

// NewSagaContextWithID creates a context for a known saga id.
func NewSagaContextWithID(id, sagaType string, startTime time.Time) *SagaContext {
	return &SagaContext{
		id:        id,
		sagaType:  sagaType,
		startTime: startTime,
		values:    make(map[string]interface{}),
		status:    StatusStarted,
	}
}

func (c *SagaContext) ID() string {
	return c.id
}

func (c *SagaContext) SagaType() string {
	return c.sagaType
}

func (c *SagaContext) StartTime() time.Time {
	return c.startTime
}

// Set stores value under key. Overwriting keeps the key's original position.
func (c *SagaContext) Set(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.values[key]; !ok {
		c.keys = append(c.keys, key)
	}
	c.values[key] = value
}

// Get returns the raw value stored under key.
func (c *SagaContext) Get(key string) (interface{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.values[key]
	return v, ok
}

// Has reports whether key is present.
func (c *SagaContext) Has(key string) bool {
	_, ok := c.Get(key)
	return ok
}

// Keys returns the keys in insertion order.
func (c *SagaContext) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.keys))
	copy(out, c.keys)
	return out
}

// GetString returns the string stored under key. Empty strings count as missing.
func (c *SagaContext) GetString(key string) (string, error) {
	v, ok := c.Get(key)
	if !ok {
		return "", missingKey(key)
	}
	s, ok := v.(string)
	if !ok {
		return "", wrongType(key, "string", v)
	}
	if s == "" {
		return "", missingKey(key)
	}
	return s, nil
}

// GetInt returns the integer stored under key.
func (c *SagaContext) GetInt(key string) (int, error) {
	v, ok := c.Get(key)
	if !ok {
		return 0, missingKey(key)
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	default:
		return 0, wrongType(key, "int", v)
	}
}

// GetInt64 returns the 64-bit integer stored under key.
func (c *SagaContext) GetInt64(key string) (int64, error) {
	v, ok := c.Get(key)
	if !ok {
		return 0, missingKey(key)
	}
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	default:
		return 0, wrongType(key, "int64", v)
	}
}

// GetBool returns the boolean stored under key, false when absent.
func (c *SagaContext) GetBool(key string) bool {
	v, ok := c.Get(key)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// Status returns the current status.
func (c *SagaContext) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// SetStatus sets the current status.
func (c *SagaContext) SetStatus(status Status) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = status
}

// CompletedSteps returns the completed step names in completion order.
func (c *SagaContext) CompletedSteps() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.completedSteps))
	copy(out, c.completedSteps)
	return out
}

// MarkStepCompleted appends name to the completed steps.
func (c *SagaContext) MarkStepCompleted(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.completedSteps = append(c.completedSteps, name)
}

// ErrorMessage returns the failure message, if any.
func (c *SagaContext) ErrorMessage() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.errorMessage
}

// SetErrorMessage records the failure message.
func (c *SagaContext) SetErrorMessage(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errorMessage = msg
}

func missingKey(key string) *SagaError {
	return NewValidationError(fmt.Sprintf("missing required parameter %q", key)).WithDetail("key", key)
}

func wrongType(key, want string, got interface{}) *SagaError {
	return NewValidationError(fmt.Sprintf("parameter %q must be %s, got %T", key, want, got)).WithDetail("key", key)
}
