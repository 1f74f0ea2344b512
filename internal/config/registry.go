package config

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/elaichix/NubaGuard-AI/internal/sensor"
	"github.com/elaichix/NubaGuard-AI/pkg/provider/llm"
	"github.com/elaichix/NubaGuard-AI/pkg/provider/stt"
	"github.com/elaichix/NubaGuard-AI/pkg/provider/tts"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps provider names to their constructor functions for each
// provider kind. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	llm     map[string]func(ProviderEntry) (llm.Provider, error)
	stt     map[string]func(ProviderEntry) (stt.Provider, error)
	tts     map[string]func(ProviderEntry) (tts.Provider, error)
	faces   map[string]func(ProviderEntry) (sensor.FaceRecognizer, error)
	objects map[string]func(ProviderEntry) (sensor.ObjectDetector, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		llm:     make(map[string]func(ProviderEntry) (llm.Provider, error)),
		stt:     make(map[string]func(ProviderEntry) (stt.Provider, error)),
		tts:     make(map[string]func(ProviderEntry) (tts.Provider, error)),
		faces:   make(map[string]func(ProviderEntry) (sensor.FaceRecognizer, error)),
		objects: make(map[string]func(ProviderEntry) (sensor.ObjectDetector, error)),
	}
}

// RegisterLLM registers an LLM provider factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterLLM(name string, factory func(ProviderEntry) (llm.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.llm[name] = factory
}

// RegisterSTT registers an STT provider factory under name.
func (r *Registry) RegisterSTT(name string, factory func(ProviderEntry) (stt.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stt[name] = factory
}

// RegisterTTS registers a TTS provider factory under name.
func (r *Registry) RegisterTTS(name string, factory func(ProviderEntry) (tts.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tts[name] = factory
}

// RegisterFaces registers a face recognizer factory under name.
func (r *Registry) RegisterFaces(name string, factory func(ProviderEntry) (sensor.FaceRecognizer, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.faces[name] = factory
}

// RegisterObjects registers an object detector factory under name.
func (r *Registry) RegisterObjects(name string, factory func(ProviderEntry) (sensor.ObjectDetector, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.objects[name] = factory
}

// CreateLLM instantiates an LLM provider using the factory registered under entry.Name.
// Returns [ErrProviderNotRegistered] if no factory has been registered for that name.
func (r *Registry) CreateLLM(entry ProviderEntry) (llm.Provider, error) {
	r.mu.RLock()
	factory, ok := r.llm[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: llm/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateSTT instantiates an STT provider using the factory registered under entry.Name.
func (r *Registry) CreateSTT(entry ProviderEntry) (stt.Provider, error) {
	r.mu.RLock()
	factory, ok := r.stt[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: stt/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateTTS instantiates a TTS provider using the factory registered under entry.Name.
func (r *Registry) CreateTTS(entry ProviderEntry) (tts.Provider, error) {
	r.mu.RLock()
	factory, ok := r.tts[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: tts/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateFaces instantiates a face recognizer using the factory registered under entry.Name.
func (r *Registry) CreateFaces(entry ProviderEntry) (sensor.FaceRecognizer, error) {
	r.mu.RLock()
	factory, ok := r.faces[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: faces/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateObjects instantiates an object detector using the factory registered under entry.Name.
func (r *Registry) CreateObjects(entry ProviderEntry) (sensor.ObjectDetector, error) {
	r.mu.RLock()
	factory, ok := r.objects[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: objects/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// Names returns the registered provider names per kind, sorted. Used for
// the startup summary.
func (r *Registry) Names() map[string][]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := map[string][]string{
		"llm":     keys(r.llm),
		"stt":     keys(r.stt),
		"tts":     keys(r.tts),
		"faces":   keys(r.faces),
		"objects": keys(r.objects),
	}
	return out
}

func keys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
