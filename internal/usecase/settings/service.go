// Package settings holds the runtime-tunable ranking configuration in memory.
package settings

import (
	"sync"

	"github.com/kailas-cloud/shopsight/internal/domain"
	domset "github.com/kailas-cloud/shopsight/internal/domain/settings"
)

// Service is a volatile configuration provider. Reads return copies; updates validate the merged
// result and replace it as a whole or not at all.
type Service struct {
	mu      sync.RWMutex
	current domset.AdminConfig
	boot    domset.AdminConfig
}

// New creates a provider starting from boot, the shipped defaults with boot-time overrides
// applied. Reset returns to boot.
func New(boot domset.AdminConfig) (*Service, error) {
	if err := boot.Validate(); err != nil {
		return nil, err
	}
	return &Service{current: boot, boot: boot}, nil
}

// Get returns a copy of the active configuration.
func (s *Service) Get() domset.AdminConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Update merges p onto the active configuration. An invalid result is rejected with
// domain.ErrValidation and nothing changes.
func (s *Service) Update(p domset.Patch) (domset.AdminConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	merged := s.current.Apply(p)
	if err := merged.Validate(); err != nil {
		return s.current, domain.NewError(domain.ErrValidation, err.Error(), err)
	}
	s.current = merged
	return merged, nil
}

// Reset restores the boot configuration.
func (s *Service) Reset() domset.AdminConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = s.boot
	return s.current
}
