package dispatch

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/cwbudde/clinventory/internal/metrics"
)

type releaseEntry struct {
	resource string
	release  func() error
}

// releaseStack holds the owned resources of one pass. Each acquisition
// pushes its release; unwind pops them in reverse order exactly once.
type releaseStack struct {
	logger  zerolog.Logger
	entries []releaseEntry
}

func (s *releaseStack) push(resource string, release func() error) {
	s.entries = append(s.entries, releaseEntry{resource: resource, release: release})
}

// unwind releases everything, continuing past failures, and returns them
// joined.
func (s *releaseStack) unwind() error {
	var errs []error
	for i := len(s.entries) - 1; i >= 0; i-- {
		e := s.entries[i]
		if err := e.release(); err != nil {
			metrics.ReleaseFailures.WithLabelValues(e.resource).Inc()
			s.logger.Warn().Err(err).Str("resource", e.resource).Msg("Release failed")
			errs = append(errs, fmt.Errorf("release %s: %w", e.resource, err))
			continue
		}
		s.logger.Debug().Str("resource", e.resource).Msg("Released")
	}
	s.entries = nil
	return errors.Join(errs...)
}
