package server

import (
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
)

// FaultSink receives failures that escaped every other handler. Reporting
// never stops the process.
type FaultSink interface {
	Report(err error)
}

// FuncSink adapts a function into a FaultSink.
type FuncSink func(err error)

func (f FuncSink) Report(err error) { f(err) }

// LogSink writes each fault as "Error: <message>".
type LogSink struct {
	Logger *slog.Logger
}

// Report implements FaultSink.
func (s LogSink) Report(err error) {
	if err == nil {
		return
	}
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Error(fmt.Sprintf("Error: %s", err.Error()))
}

// Supervisor runs background work and routes its failures, returned errors
// and panics alike, to a fault sink.
type Supervisor struct {
	sink FaultSink
	wg   sync.WaitGroup
}

// NewSupervisor creates a supervisor reporting to sink.
func NewSupervisor(sink FaultSink) *Supervisor {
	if sink == nil {
		sink = LogSink{}
	}
	return &Supervisor{sink: sink}
}

// Go runs fn in its own goroutine.
func (s *Supervisor) Go(name string, fn func() error) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				s.sink.Report(fmt.Errorf("%s panicked: %v\n%s", name, rec, debug.Stack()))
			}
		}()
		if err := fn(); err != nil {
			s.sink.Report(fmt.Errorf("%s: %w", name, err))
		}
	}()
}

// Wait blocks until every goroutine started with Go has returned.
func (s *Supervisor) Wait() {
	s.wg.Wait()
}
