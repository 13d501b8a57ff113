package ocr

import (
	"sync"

	tl "github.com/tuumbleweed/tintlog/logger"
	"github.com/tuumbleweed/tintlog/palette"
	"github.com/tuumbleweed/xerr"
)

// Factory constructs one engine instance for a (backend, language) pair.
type Factory func(name EngineName, language string) (Engine, *xerr.Error)

/*
Registry lazily constructs and caches engine instances per (backend,
language) pair. It owns the only shared mutable state in the subsystem.

Construction is expensive (the polygon backend loads models), so the cache
guarantees at most one concurrent construction per pair: the entry map is
guarded by a mutex, and the construction itself runs under the entry's
sync.Once, so concurrent first-use requests block on a single
initialization instead of racing to build duplicates. Instances live for
the process lifetime; Close exists for orderly shutdown only.
*/
type Registry struct {
	factory Factory

	mu      sync.Mutex
	entries map[string]*registryEntry
}

type registryEntry struct {
	once   sync.Once
	engine Engine
	e      *xerr.Error
}

func NewRegistry(factory Factory) *Registry {
	return &Registry{
		factory: factory,
		entries: make(map[string]*registryEntry),
	}
}

// Engine returns the cached instance for the pair, constructing it on first
// use. A failed construction is cached too: a backend that could not
// initialize for a language will not be re-probed on every request.
func (r *Registry) Engine(name EngineName, language string) (Engine, *xerr.Error) {
	key := string(name) + "/" + language

	r.mu.Lock()
	entry, exists := r.entries[key]
	if !exists {
		entry = &registryEntry{}
		r.entries[key] = entry
	}
	r.mu.Unlock()

	entry.once.Do(func() {
		tl.Log(tl.Info1, palette.Cyan, "Constructing OCR engine '%s' for language '%s'", string(name), language)
		entry.engine, entry.e = r.factory(name, language)
	})

	return entry.engine, entry.e
}

// Close releases every engine constructed so far.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key, entry := range r.entries {
		if entry.engine == nil {
			continue
		}
		if err := entry.engine.Close(); err != nil {
			tl.Log(tl.Warning, palette.Yellow, "Error closing OCR engine '%s': '%s'", key, err)
		}
	}
	r.entries = make(map[string]*registryEntry)
}

// DefaultFactory wires the two real backends.
func DefaultFactory(paddleConfig PaddleConfig) Factory {
	return func(name EngineName, language string) (Engine, *xerr.Error) {
		if name == EnginePaddle {
			return NewPaddleEngine(language, paddleConfig)
		}
		return NewTesseractEngine(language)
	}
}
