package scene

import "sync"

// HighlightStyle describes one highlight effect application.
type HighlightStyle struct {
	Color     string
	Intensity float64
	Pulsing   bool
}

// Highlighter applies and removes highlight effects on scene objects.
// Both operations are idempotent: re-applying replaces the style, and
// removing an object that is not highlighted is a no-op.
type Highlighter interface {
	Apply(obj *Object, style HighlightStyle)
	Remove(obj *Object)
}

// EffectCall is one logged Apply or Remove invocation.
type EffectCall struct {
	Op     string // "apply" or "remove"
	Object string
	Style  HighlightStyle
}

// EffectLog is a Highlighter that tracks active effects and keeps a call
// log, so cleanup invariants can be checked after a flow closes.
type EffectLog struct {
	mu     sync.Mutex
	active map[*Object]HighlightStyle
	calls  []EffectCall
}

// NewEffectLog creates an empty effect log.
func NewEffectLog() *EffectLog {
	return &EffectLog{active: make(map[*Object]HighlightStyle)}
}

// Apply implements Highlighter.
func (l *EffectLog) Apply(obj *Object, style HighlightStyle) {
	if obj == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.active[obj] = style
	l.calls = append(l.calls, EffectCall{Op: "apply", Object: obj.Name, Style: style})
}

// Remove implements Highlighter.
func (l *EffectLog) Remove(obj *Object) {
	if obj == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.active[obj]; !ok {
		return
	}
	delete(l.active, obj)
	l.calls = append(l.calls, EffectCall{Op: "remove", Object: obj.Name})
}

// ActiveCount returns how many objects are currently highlighted.
func (l *EffectLog) ActiveCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.active)
}

// Calls returns a copy of the call log.
func (l *EffectLog) Calls() []EffectCall {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]EffectCall, len(l.calls))
	copy(out, l.calls)
	return out
}
