package vectora

import "context"

// Close shuts the service down: active training jobs are canceled and
// awaited, the query worker pool is drained, and every subsequent operation
// fails with ErrClosed. Close is idempotent.
func (s *Service) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true

	names := make([]string, 0, len(s.datasets))
	for name := range s.datasets {
		names = append(names, name)
	}
	s.mu.Unlock()

	for _, name := range names {
		s.tracker.Cancel(name)
	}
	for _, name := range names {
		if j, ok := s.tracker.Get(name); ok {
			_, _ = j.Wait(context.Background())
		}
	}

	s.pool.Close()
	return nil
}
