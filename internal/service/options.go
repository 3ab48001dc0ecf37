package service

import (
	"time"

	"github.com/ev1stensberg/walkoff/internal/trigger"
)

// Option configures the service.
type Option func(*Service)

// WithSyncInterval sets how often the registry is reconciled against the store.
// Defaults to 10 seconds; zero or negative values keep the default.
func WithSyncInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.syncInterval = d
		}
	}
}

// WithTriggerBuilder replaces the default trigger builder.
func WithTriggerBuilder(b *trigger.Builder) Option {
	return func(s *Service) {
		if b != nil {
			s.triggers = b
		}
	}
}
