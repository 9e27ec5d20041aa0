package locale

import (
	"sync"

	"content-service/internal/models"
)

// Resolver resolves LocalizedText values against the active language,
// falling back to the default language and then to the empty string.
// A localization miss is never an error.
type Resolver struct {
	mu          sync.RWMutex
	active      string
	fallback    string
	subscribers []func(string)
}

// NewResolver creates a resolver with the given active and fallback
// language codes (e.g. "en", "fr").
func NewResolver(active, fallback string) *Resolver {
	if active == "" {
		active = fallback
	}
	return &Resolver{active: active, fallback: fallback}
}

// Current returns the active language code.
func (r *Resolver) Current() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active
}

// SetLanguage switches the active language and notifies subscribers.
// Setting the same language again is a no-op.
func (r *Resolver) SetLanguage(lang string) {
	r.mu.Lock()
	if lang == "" || lang == r.active {
		r.mu.Unlock()
		return
	}
	r.active = lang
	subs := make([]func(string), len(r.subscribers))
	copy(subs, r.subscribers)
	r.mu.Unlock()

	for _, fn := range subs {
		fn(lang)
	}
}

// Subscribe registers a language-change callback and returns an
// unsubscribe function.
func (r *Resolver) Subscribe(fn func(lang string)) func() {
	r.mu.Lock()
	r.subscribers = append(r.subscribers, fn)
	idx := len(r.subscribers) - 1
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if idx < len(r.subscribers) {
			r.subscribers[idx] = func(string) {}
		}
	}
}

// Resolve returns the text for the active language.
func (r *Resolver) Resolve(t models.LocalizedText) string {
	return r.ResolveIn(t, r.Current())
}

// ResolveIn returns the text for the given language, falling back to the
// default language and then to empty.
func (r *Resolver) ResolveIn(t models.LocalizedText, lang string) string {
	if len(t.ByLang) == 0 {
		return t.Plain
	}
	if s, ok := t.ByLang[lang]; ok && s != "" {
		return s
	}
	r.mu.RLock()
	fb := r.fallback
	r.mu.RUnlock()
	if s, ok := t.ByLang[fb]; ok && s != "" {
		return s
	}
	if t.Plain != "" {
		return t.Plain
	}
	return ""
}
