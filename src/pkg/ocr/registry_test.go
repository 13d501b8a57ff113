package ocr

import (
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/tuumbleweed/xerr"
)

// fakeEngine is a scriptable Engine for registry and service tests.
type fakeEngine struct {
	name    EngineName
	regions []TextRegion
	total   int
	fail    bool
	closed  atomic.Bool
}

func (f *fakeEngine) Name() EngineName {
	return f.name
}

func (f *fakeEngine) Extract(_ image.Image, _ LayoutMode) ([]TextRegion, int, *xerr.Error) {
	if f.fail {
		return nil, 0, xerr.NewError(fmt.Errorf("backend exploded"), "run fake engine", string(f.name))
	}
	return f.regions, f.total, nil
}

func (f *fakeEngine) Close() error {
	f.closed.Store(true)
	return nil
}

func countingFactory(constructions *atomic.Int64) Factory {
	return func(name EngineName, language string) (Engine, *xerr.Error) {
		constructions.Add(1)
		return &fakeEngine{name: name}, nil
	}
}

func TestRegistryConstructsOncePerPair(t *testing.T) {
	var constructions atomic.Int64
	registry := NewRegistry(countingFactory(&constructions))

	first, e := registry.Engine(EngineTesseract, "eng")
	if e != nil {
		t.Fatalf("first construction failed: %v", e)
	}
	second, e := registry.Engine(EngineTesseract, "eng")
	if e != nil {
		t.Fatalf("second lookup failed: %v", e)
	}

	if first != second {
		t.Error("same pair returned different instances")
	}
	if constructions.Load() != 1 {
		t.Errorf("constructions = %d, want 1", constructions.Load())
	}

	// A different language is a different pair.
	if _, e := registry.Engine(EngineTesseract, "jpn"); e != nil {
		t.Fatalf("jpn construction failed: %v", e)
	}
	if constructions.Load() != 2 {
		t.Errorf("constructions = %d, want 2", constructions.Load())
	}
}

// Concurrent first-use requests for the same pair must collapse into one
// construction.
func TestRegistryConcurrentFirstUse(t *testing.T) {
	var constructions atomic.Int64
	registry := NewRegistry(countingFactory(&constructions))

	const callers = 32
	engines := make([]Engine, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			engine, e := registry.Engine(EnginePaddle, "eng")
			if e != nil {
				t.Errorf("caller %d: %v", i, e)
				return
			}
			engines[i] = engine
		}(i)
	}
	wg.Wait()

	if constructions.Load() != 1 {
		t.Errorf("constructions = %d, want 1", constructions.Load())
	}
	for i := 1; i < callers; i++ {
		if engines[i] != engines[0] {
			t.Fatalf("caller %d got a different instance", i)
		}
	}
}

func TestRegistryCachesFailure(t *testing.T) {
	var attempts atomic.Int64
	registry := NewRegistry(func(name EngineName, language string) (Engine, *xerr.Error) {
		attempts.Add(1)
		return nil, xerr.NewError(fmt.Errorf("model files missing"), "construct fake engine", language)
	})

	if _, e := registry.Engine(EnginePaddle, "eng"); e == nil {
		t.Fatal("expected construction error")
	}
	if _, e := registry.Engine(EnginePaddle, "eng"); e == nil {
		t.Fatal("expected cached construction error")
	}

	if attempts.Load() != 1 {
		t.Errorf("attempts = %d, want 1 (failures are cached, not re-probed)", attempts.Load())
	}
}

func TestRegistryClose(t *testing.T) {
	engine := &fakeEngine{name: EngineTesseract}
	registry := NewRegistry(func(EngineName, string) (Engine, *xerr.Error) {
		return engine, nil
	})

	if _, e := registry.Engine(EngineTesseract, "eng"); e != nil {
		t.Fatalf("construction failed: %v", e)
	}

	registry.Close()
	if !engine.closed.Load() {
		t.Error("Close did not close the constructed engine")
	}

	// The cache is empty afterwards; the next lookup constructs anew.
	var rebuilt atomic.Int64
	registry = NewRegistry(countingFactory(&rebuilt))
	_, _ = registry.Engine(EngineTesseract, "eng")
	registry.Close()
	_, _ = registry.Engine(EngineTesseract, "eng")
	if rebuilt.Load() != 2 {
		t.Errorf("constructions after Close = %d, want 2", rebuilt.Load())
	}
}
