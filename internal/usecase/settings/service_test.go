package settings

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kailas-cloud/shopsight/internal/domain"
	domset "github.com/kailas-cloud/shopsight/internal/domain/settings"
)

func ptr[T any](v T) *T { return &v }

func newService(t *testing.T) *Service {
	t.Helper()
	boot := domset.Defaults()
	boot.TimeoutsMs.Stage1 = 20000
	s, err := New(boot)
	require.NoError(t, err)
	return s
}

func TestNew_RejectsInvalidBoot(t *testing.T) {
	boot := domset.Defaults()
	boot.CandidateTopN = 0
	_, err := New(boot)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestGet_ReturnsCopy(t *testing.T) {
	s := newService(t)

	cfg := s.Get()
	cfg.Weights.Text = 0.99
	assert.Equal(t, 0.35, s.Get().Weights.Text)
}

func TestUpdate_Merges(t *testing.T) {
	s := newService(t)

	got, err := s.Update(domset.Patch{
		Weights:       &domset.WeightsPatch{Category: ptr(0.3)},
		CandidateTopN: ptr(80),
	})
	require.NoError(t, err)
	assert.Equal(t, 0.3, got.Weights.Category)
	assert.Equal(t, 0.35, got.Weights.Text)
	assert.Equal(t, 80, got.CandidateTopN)
	assert.Equal(t, got, s.Get())
}

func TestUpdate_RejectsWithoutPartialApplication(t *testing.T) {
	s := newService(t)
	before := s.Get()

	_, err := s.Update(domset.Patch{
		Weights:    &domset.WeightsPatch{Text: ptr(0.5)},
		MatchBands: &domset.MatchBandsPatch{Medium: ptr(0.95)},
	})
	require.Error(t, err)
	assert.Equal(t, domain.CodeValidation, domain.CodeOf(err))
	assert.Equal(t, before, s.Get())
}

func TestReset_RestoresBootValues(t *testing.T) {
	s := newService(t)
	_, err := s.Update(domset.Patch{EnableLLMRerank: ptr(false)})
	require.NoError(t, err)

	cfg := s.Reset()
	assert.True(t, cfg.EnableLLMRerank)
	assert.Equal(t, 20000, cfg.TimeoutsMs.Stage1, "boot overrides survive a reset")
}

func TestConcurrentAccess(t *testing.T) {
	s := newService(t)

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = s.Update(domset.Patch{CandidateTopN: ptr(20 + i)})
		}()
		go func() {
			defer wg.Done()
			cfg := s.Get()
			assert.NoError(t, cfg.Validate())
		}()
	}
	wg.Wait()
}
