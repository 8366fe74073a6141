package voiceprint

import (
	"sync"

	"github.com/haivivi/speakerid/pkg/audio/mfcc"
	"github.com/haivivi/speakerid/pkg/gmm"
)

// extractorCache holds one Extractor per feature config.
type extractorCache struct {
	mu sync.Mutex
	m  map[mfcc.Config]*mfcc.Extractor
}

func newExtractorCache() *extractorCache {
	return &extractorCache{m: make(map[mfcc.Config]*mfcc.Extractor)}
}

func (c *extractorCache) get(cfg mfcc.Config) (*mfcc.Extractor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ext, ok := c.m[cfg]; ok {
		return ext, nil
	}
	ext, err := mfcc.New(cfg)
	if err != nil {
		return nil, err
	}
	c.m[cfg] = ext
	return ext, nil
}

// modelCache holds decoded models keyed by speaker id. An entry is only
// served for the version it was loaded from.
type modelCache struct {
	mu sync.RWMutex
	m  map[string]cachedModel
}

type cachedModel struct {
	version string
	model   *gmm.Model
}

func newModelCache() *modelCache {
	return &modelCache{m: make(map[string]cachedModel)}
}

func (c *modelCache) get(id, version string) (*gmm.Model, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.m[id]
	if !ok || e.version != version {
		return nil, false
	}
	return e.model, true
}

func (c *modelCache) put(id, version string, m *gmm.Model) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[id] = cachedModel{version: version, model: m}
}

func (c *modelCache) invalidate(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.m, id)
}

func (c *modelCache) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}

// keyedMutex serializes writers per speaker id. Entries are reference
// counted and removed once unused.
type keyedMutex struct {
	mu sync.Mutex
	m  map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{m: make(map[string]*refMutex)}
}

// lock acquires the mutex for id and returns its unlock function.
func (k *keyedMutex) lock(id string) (unlock func()) {
	k.mu.Lock()
	rm, ok := k.m[id]
	if !ok {
		rm = &refMutex{}
		k.m[id] = rm
	}
	rm.refs++
	k.mu.Unlock()

	rm.Lock()
	return func() {
		rm.Unlock()
		k.mu.Lock()
		rm.refs--
		if rm.refs == 0 {
			delete(k.m, id)
		}
		k.mu.Unlock()
	}
}
