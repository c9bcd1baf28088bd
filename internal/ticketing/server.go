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

package ticketing

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/innovationmech/ticketing/internal/ticketing/deps"
	"github.com/innovationmech/ticketing/pkg/logger"
)

// Server runs the background parts of the engine: the reservation reclaimer
// and, when enabled, the Prometheus endpoint.
type Server struct {
	deps *deps.Dependencies

	mu         sync.Mutex
	httpServer *http.Server
	listener   net.Listener
	serveErr   chan error
	started    bool
}

// NewServer creates a server over d.
func NewServer(d *deps.Dependencies) *Server {
	return &Server{deps: d}
}

// Start launches the reclaimer and the metrics endpoint.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return errors.New("server already started")
	}

	if err := s.deps.Reclaimer.Start(ctx); err != nil {
		return fmt.Errorf("start reclaimer: %w", err)
	}

	metrics := s.deps.Config.Metrics
	if metrics.Enabled {
		listener, err := net.Listen("tcp", metrics.Addr)
		if err != nil {
			s.deps.Reclaimer.Stop()
			return fmt.Errorf("listen on %s: %w", metrics.Addr, err)
		}
		mux := http.NewServeMux()
		mux.Handle("/metrics", s.deps.MetricsHandler())
		mux.Handle("/healthz", s.deps.Health.Handler())
		s.listener = listener
		s.httpServer = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		s.serveErr = make(chan error, 1)

		go func() {
			if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.serveErr <- err
			}
			close(s.serveErr)
		}()
		logger.GetLogger().Info("metrics endpoint listening", zap.String("address", listener.Addr().String()))
	}

	s.started = true
	return nil
}

// MetricsAddr returns the bound address of the metrics endpoint, or "".
func (s *Server) MetricsAddr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the metrics endpoint down and stops the reclaimer.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil
	}
	s.started = false

	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
		if serveErr, ok := <-s.serveErr; ok && serveErr != nil && err == nil {
			err = serveErr
		}
		s.httpServer, s.listener = nil, nil
	}
	s.deps.Reclaimer.Stop()
	logger.GetLogger().Info("server stopped")
	return err
}
