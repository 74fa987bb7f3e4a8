// Package audit logs one structured line per completed request: request
// ID, tier, strategy, endpoint, status, and duration. Trimmed from the
// teacher's security audit logger; no user-identity or auth fields since
// per-user authentication is out of scope for this gateway.
package audit

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tributary-ai/octoroute/internal/catalog"
	"github.com/tributary-ai/octoroute/internal/routing"
)

// Entry is one completed request's audit record.
type Entry struct {
	RequestID string
	Tier      catalog.Tier
	Strategy  routing.Strategy
	Endpoint  string
	Status    int
	Duration  time.Duration
	Warnings  []string
}

// Logger buffers entries and flushes them to structured logs on its own
// schedule, matching the teacher's buffered-async AuditLogger shape.
type Logger struct {
	log    *logrus.Logger
	buffer chan Entry
	stop   chan struct{}
	wg     sync.WaitGroup
}

// New builds a Logger and starts its background flush loop.
func New(log *logrus.Logger, bufferSize int) *Logger {
	if bufferSize <= 0 {
		bufferSize = 1000
	}
	l := &Logger{log: log, buffer: make(chan Entry, bufferSize), stop: make(chan struct{})}
	l.wg.Add(1)
	go l.run()
	return l
}

func (l *Logger) run() {
	defer l.wg.Done()
	for {
		select {
		case e := <-l.buffer:
			l.write(e)
		case <-l.stop:
			for {
				select {
				case e := <-l.buffer:
					l.write(e)
				default:
					return
				}
			}
		}
	}
}

func (l *Logger) write(e Entry) {
	l.log.WithFields(logrus.Fields{
		"request_id": e.RequestID,
		"tier":       e.Tier.String(),
		"strategy":   e.Strategy.String(),
		"endpoint":   e.Endpoint,
		"status":     e.Status,
		"duration_ms": e.Duration.Milliseconds(),
		"warnings":   e.Warnings,
	}).Info("audit: request completed")
}

// Record enqueues an entry; if the buffer is full the entry is dropped
// and logged at Warn so audit pressure never blocks a request.
func (l *Logger) Record(e Entry) {
	select {
	case l.buffer <- e:
	default:
		l.log.WithField("request_id", e.RequestID).Warn("audit: buffer full, dropping entry")
	}
}

// Stop drains the buffer and terminates the flush loop.
func (l *Logger) Stop() {
	close(l.stop)
	l.wg.Wait()
}
