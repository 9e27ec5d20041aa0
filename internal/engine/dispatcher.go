package engine

import (
	"sync"

	"go.uber.org/zap"

	"content-service/internal/models"
)

// Events are the dispatcher's outward notifications. All callbacks are
// optional.
type Events struct {
	Displayed func(contentType models.ContentType, objectID string)
	Closed    func(contentType models.ContentType, objectID string)
	Completed func(objectID string, success bool)
	// Fallback fires when no engine is registered for a declared type;
	// the surrounding application shows a placeholder presentation.
	Fallback func(objectID string, contentType models.ContentType, payload models.ContentPayload)
}

// Dispatcher owns the content engines and enforces that at most one flow
// is active at a time. Displaying new content force-closes whatever was
// active, so the previous flow's Closed always lands before the next
// Displayed.
type Dispatcher struct {
	env    Env
	events Events
	log    *zap.Logger

	quiz      *QuizEngine
	dialogue  *DialogueEngine
	procedure *ProcedureEngine
	text      *TextEngine
	engines   map[models.ContentType]Engine

	// serial orders Display/CloseCurrentContent calls; state guards the
	// active-flow bookkeeping and is never held while calling into an
	// engine.
	serial sync.Mutex
	state  sync.Mutex

	active       Engine
	activeType   models.ContentType
	activeObject string
}

// NewDispatcher constructs the dispatcher and its engines.
func NewDispatcher(env Env, quizCfg QuizConfig, events Events) *Dispatcher {
	d := &Dispatcher{env: env, events: events, log: env.Log}
	hooks := Hooks{Closed: d.onEngineClosed, Completed: d.onEngineCompleted}
	d.quiz = NewQuizEngine(env, quizCfg, hooks)
	d.dialogue = NewDialogueEngine(env, hooks)
	d.procedure = NewProcedureEngine(env, hooks)
	d.text = NewTextEngine(env, hooks)
	d.engines = map[models.ContentType]Engine{
		models.ContentTypeQuestion:  d.quiz,
		models.ContentTypeDialogue:  d.dialogue,
		models.ContentTypeProcedure: d.procedure,
		models.ContentTypeText:      d.text,
	}
	return d
}

// Quiz returns the quiz engine for interaction calls.
func (d *Dispatcher) Quiz() *QuizEngine { return d.quiz }

// Dialogue returns the dialogue engine for interaction calls.
func (d *Dispatcher) Dialogue() *DialogueEngine { return d.dialogue }

// Procedure returns the procedure engine for interaction calls.
func (d *Dispatcher) Procedure() *ProcedureEngine { return d.procedure }

// Text returns the text engine for interaction calls.
func (d *Dispatcher) Text() *TextEngine { return d.text }

// Active reports the currently displayed flow, if any.
func (d *Dispatcher) Active() (models.ContentType, string, bool) {
	d.state.Lock()
	defer d.state.Unlock()
	return d.activeType, d.activeObject, d.active != nil
}

// Display routes a payload to the engine registered for its declared
// type. A previously active flow is force-closed first. Content errors
// abort the flow gracefully: the error is returned, a Closed event is
// emitted, and no Completed ever fires.
func (d *Dispatcher) Display(objectID string, contentType models.ContentType, payload models.ContentPayload) error {
	d.serial.Lock()
	defer d.serial.Unlock()

	d.closeActive()

	eng, ok := d.engines[contentType]
	if !ok {
		d.log.Warn("no engine for content type, delegating to fallback",
			zap.String("object_id", objectID),
			zap.String("content_type", string(contentType)))
		if d.events.Fallback != nil {
			d.events.Fallback(objectID, contentType, payload)
		}
		return nil
	}

	d.state.Lock()
	d.active = eng
	d.activeType = contentType
	d.activeObject = objectID
	d.state.Unlock()

	if err := eng.Display(objectID, payload); err != nil {
		d.state.Lock()
		d.active = nil
		d.state.Unlock()
		if d.events.Closed != nil {
			d.events.Closed(contentType, objectID)
		}
		return err
	}

	if d.events.Displayed != nil {
		d.events.Displayed(contentType, objectID)
	}
	return nil
}

// CloseCurrentContent closes the active flow. Safe to call when nothing
// is active.
func (d *Dispatcher) CloseCurrentContent() {
	d.serial.Lock()
	defer d.serial.Unlock()
	d.closeActive()
}

func (d *Dispatcher) closeActive() {
	d.state.Lock()
	eng := d.active
	d.state.Unlock()
	if eng != nil {
		eng.Close()
	}
}

// onEngineClosed clears the active flow and relays the event outward.
// Engines call it exactly once per flow, from Close or self-close.
func (d *Dispatcher) onEngineClosed(contentType models.ContentType, objectID string) {
	d.state.Lock()
	if d.active != nil && d.activeType == contentType && d.activeObject == objectID {
		d.active = nil
	}
	d.state.Unlock()
	if d.events.Closed != nil {
		d.events.Closed(contentType, objectID)
	}
}

// onEngineCompleted relays completion before the engine is torn down.
func (d *Dispatcher) onEngineCompleted(objectID string, success bool) {
	if d.events.Completed != nil {
		d.events.Completed(objectID, success)
	}
}
