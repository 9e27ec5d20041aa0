package engine

import (
	"sync"

	"go.uber.org/zap"

	"content-service/internal/models"
)

// TextView is the rendered rich-text payload. Formatting is the
// renderer's business; this engine only carries the resolved strings.
type TextView struct {
	ObjectID  string `json:"object_id"`
	Title     string `json:"title,omitempty"`
	Body      string `json:"body"`
	Completed bool   `json:"completed"`
}

// TextEngine presents a plain rich-text payload. It has no decision
// logic: the flow completes when the reader acknowledges it.
type TextEngine struct {
	env   Env
	hooks Hooks

	mu        sync.Mutex
	active    bool
	objectID  string
	spec      models.TextSpec
	completed bool
	record    *models.InteractionRecord
}

// NewTextEngine creates a text engine bound to the dispatcher hooks.
func NewTextEngine(env Env, hooks Hooks) *TextEngine {
	return &TextEngine{env: env, hooks: hooks}
}

// Type implements Engine.
func (e *TextEngine) Type() models.ContentType { return models.ContentTypeText }

// Display implements Engine.
func (e *TextEngine) Display(objectID string, payload models.ContentPayload) error {
	spec, err := ParseText(payload)
	if err != nil {
		e.env.Log.Error("text payload rejected",
			zap.String("object_id", objectID), zap.Error(err))
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.active = true
	e.objectID = objectID
	e.spec = spec
	e.completed = false
	e.record = e.env.Analytics.StartInteraction(objectID, "content", string(models.ContentTypeText))
	return nil
}

// Acknowledge marks the text as read and completes the flow.
func (e *TextEngine) Acknowledge() {
	var emits []func()
	e.mu.Lock()
	if !e.active || e.completed {
		e.mu.Unlock()
		return
	}
	e.completed = true
	e.env.Analytics.EndInteraction(e.record, true)
	objectID := e.objectID
	if e.hooks.Completed != nil {
		emits = append(emits, func() { e.hooks.Completed(objectID, true) })
	}
	e.mu.Unlock()
	runEmits(emits)
}

// View renders the text for the active language.
func (e *TextEngine) View() (TextView, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.active {
		return TextView{}, false
	}
	return TextView{
		ObjectID:  e.objectID,
		Title:     e.env.Locale.Resolve(e.spec.Title),
		Body:      e.env.Locale.Resolve(e.spec.Body),
		Completed: e.completed,
	}, true
}

// Close implements Engine.
func (e *TextEngine) Close() {
	var emits []func()
	e.mu.Lock()
	if !e.active {
		e.mu.Unlock()
		return
	}
	e.active = false
	if e.record != nil {
		e.env.Analytics.EndInteraction(e.record, e.completed)
		e.record = nil
	}
	objectID := e.objectID
	if e.hooks.Closed != nil {
		emits = append(emits, func() { e.hooks.Closed(models.ContentTypeText, objectID) })
	}
	e.mu.Unlock()
	runEmits(emits)
}
