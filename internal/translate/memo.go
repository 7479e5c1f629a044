package translate

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
	"k8s.io/klog/v2"

	"github.com/i474232898/farm-dashboard/internal/metrics"
)

const (
	// batchConcurrency bounds in-flight service calls per TranslateAll.
	batchConcurrency = 4
	// DefaultCallTimeout bounds one shared service call.
	DefaultCallTimeout = 15 * time.Second
)

// Memo memoizes translations per language, keyed by the original string.
// Each language has its own cache, so switching languages never serves text
// cached for another one. Failed translations fall back to the original
// text and are not cached.
type Memo struct {
	service     Service
	base        string
	callTimeout time.Duration

	mu     sync.RWMutex
	caches map[string]map[string]string

	group singleflight.Group
}

func NewMemo(service Service, base string) *Memo {
	if base == "" {
		base = BaseLanguage
	}
	return &Memo{
		service:     service,
		base:        base,
		callTimeout: DefaultCallTimeout,
		caches:      make(map[string]map[string]string),
	}
}

// Base returns the language that is never translated.
func (m *Memo) Base() string {
	return m.base
}

// Translate returns text in lang. Base-language and empty input come back
// unchanged without a service call.
func (m *Memo) Translate(ctx context.Context, lang, text string) string {
	out, _ := m.translate(ctx, lang, text)
	return out
}

// translate is Translate that also reports whether text was translated
// rather than falling back to the original.
func (m *Memo) translate(ctx context.Context, lang, text string) (string, bool) {
	if text == "" || lang == "" || lang == m.base {
		return text, true
	}
	if v, ok := m.Cached(lang, text); ok {
		metrics.RecordTranslation(lang, "hit")
		return v, true
	}

	// The shared call outlives any single caller giving up.
	v, err, _ := m.group.Do(lang+"\x00"+text, func() (any, error) {
		if v, ok := m.Cached(lang, text); ok {
			return v, nil
		}
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.callTimeout)
		defer cancel()
		out, err := m.service.Translate(callCtx, text, lang)
		if err != nil {
			return nil, err
		}
		m.mu.Lock()
		cache, ok := m.caches[lang]
		if !ok {
			cache = make(map[string]string)
			m.caches[lang] = cache
		}
		cache[text] = out
		m.mu.Unlock()
		return out, nil
	})
	if err != nil {
		metrics.RecordTranslation(lang, "error")
		klog.FromContext(ctx).V(1).Info("translation failed, using original", "lang", lang, "error", err.Error())
		return text, false
	}
	metrics.RecordTranslation(lang, "miss")
	return v.(string), true
}

// TranslateAll translates every distinct string in texts and returns a
// source-to-translation map. complete is false when any entry fell back to
// its original text.
func (m *Memo) TranslateAll(ctx context.Context, lang string, texts []string) (out map[string]string, complete bool) {
	out = make(map[string]string, len(texts))
	var pending []string
	for _, t := range texts {
		if _, seen := out[t]; seen {
			continue
		}
		out[t] = t
		pending = append(pending, t)
	}
	if lang == "" || lang == m.base {
		return out, true
	}

	var mu sync.Mutex
	complete = true
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batchConcurrency)
	for _, t := range pending {
		t := t
		g.Go(func() error {
			v, ok := m.translate(gctx, lang, t)
			mu.Lock()
			out[t] = v
			complete = complete && ok
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out, complete
}

// Cached reports the memoized translation of text in lang, if any.
func (m *Memo) Cached(lang, text string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.caches[lang][text]
	return v, ok
}

// Len returns the number of strings memoized for lang.
func (m *Memo) Len(lang string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.caches[lang])
}
