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

package tracing

import (
	"fmt"
	"strings"
	"time"
)

// Exporter types.
const (
	ExporterConsole = "console"
	ExporterOTLP    = "otlp"
)

// TracingConfig configures the tracer used around saga execution.
type TracingConfig struct {
	Enabled     bool
	ServiceName string

	// Exporter is one of "console" or "otlp".
	Exporter string
	// Endpoint is the OTLP collector endpoint. Endpoints ending in /v1/traces use HTTP, others gRPC.
	Endpoint string
	Insecure bool
	Timeout  time.Duration

	// SamplingRate is the trace id ratio, 1.0 samples everything.
	SamplingRate float64
}

// DefaultTracingConfig returns a disabled console configuration.
func DefaultTracingConfig() *TracingConfig {
	return &TracingConfig{
		Enabled:      false,
		ServiceName:  "ticketing",
		Exporter:     ExporterConsole,
		Timeout:      10 * time.Second,
		SamplingRate: 1.0,
	}
}

// Validate validates the tracing configuration
func (c *TracingConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.ServiceName == "" {
		return fmt.Errorf("service_name is required when tracing is enabled")
	}
	if c.SamplingRate < 0 || c.SamplingRate > 1 {
		return fmt.Errorf("sampling rate must be between 0 and 1, got %v", c.SamplingRate)
	}
	switch c.Exporter {
	case ExporterConsole:
	case ExporterOTLP:
		if c.Endpoint == "" {
			return fmt.Errorf("otlp exporter requires endpoint")
		}
	default:
		return fmt.Errorf("unsupported exporter type: %s", c.Exporter)
	}
	return nil
}

func (c *TracingConfig) usesHTTP() bool {
	return strings.HasSuffix(c.Endpoint, "/v1/traces")
}
