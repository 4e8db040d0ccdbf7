package config

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/MrWong99/callscribe/internal/observe"
	"github.com/MrWong99/callscribe/internal/resilience"
	"github.com/MrWong99/callscribe/pkg/provider/stt"
)

// ErrProviderNotRegistered is returned by [Registry.CreateRecognizer] when no
// factory has been registered under the requested name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// RecognizerFactory constructs a recognizer from its config entry.
type RecognizerFactory func(ProviderEntry) (stt.Recognizer, error)

// Registry maps recognizer names to their constructors. It is safe for
// concurrent use.
type Registry struct {
	mu          sync.RWMutex
	recognizers map[string]RecognizerFactory
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{recognizers: make(map[string]RecognizerFactory)}
}

// RegisterRecognizer registers factory under name. Subsequent calls with the
// same name overwrite the previous registration.
func (r *Registry) RegisterRecognizer(name string, factory RecognizerFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recognizers[name] = factory
}

// Names returns the registered recognizer names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.recognizers))
	for n := range r.recognizers {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// CreateRecognizer instantiates the recognizer registered under entry.Name.
// Returns [ErrProviderNotRegistered] if no factory has been registered for
// that name.
func (r *Registry) CreateRecognizer(entry ProviderEntry) (stt.Recognizer, error) {
	r.mu.RLock()
	factory, ok := r.recognizers[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: recognizer/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// BuildRecognizer creates the primary recognizer and every fallback in cfg
// and puts each behind its own circuit breaker.
func (r *Registry) BuildRecognizer(cfg *Config, m *observe.Metrics) (*resilience.RecognizerFallback, error) {
	primary, err := r.CreateRecognizer(cfg.Providers.Recognizer)
	if err != nil {
		return nil, fmt.Errorf("config: create recognizer %q: %w", cfg.Providers.Recognizer.Label(), err)
	}

	var opts []resilience.RecognizerFallbackOption
	if m != nil {
		opts = append(opts, resilience.WithFallbackMetrics(m))
	}
	fb := resilience.NewRecognizerFallback(primary, cfg.Providers.Recognizer.Label(), cfg.CircuitBreaker.FallbackConfig(), opts...)

	for i, entry := range cfg.Providers.Fallbacks {
		rec, err := r.CreateRecognizer(entry)
		if err != nil {
			return nil, fmt.Errorf("config: create fallback %d %q: %w", i, entry.Label(), err)
		}
		fb.AddFallback(entry.Label(), rec)
	}
	return fb, nil
}
