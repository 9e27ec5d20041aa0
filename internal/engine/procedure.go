package engine

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"content-service/internal/models"
	"content-service/internal/scene"
	"content-service/internal/schedule"
)

// Highlight styles for armed interaction targets. Decoys get the exact
// same style as the real target so they stay indistinguishable.
var (
	targetHighlight = scene.HighlightStyle{Color: "#ffd54a", Intensity: 1.0, Pulsing: true}
	zoneHighlight   = scene.HighlightStyle{Color: "#4ac1ff", Intensity: 0.6, Pulsing: false}
)

// defaultWrongClickMessage is shown when neither the decoy nor the
// payload declares an error message.
const defaultWrongClickMessage = "That is not the right object for this step."

// ProcedureView is a render snapshot of the active step.
type ProcedureView struct {
	ObjectID        string                `json:"object_id"`
	StepIndex       int                   `json:"step_index"`
	StepCount       int                   `json:"step_count"`
	Title           string                `json:"title"`
	Instruction     string                `json:"instruction"`
	Hint            string                `json:"hint,omitempty"`
	Image           string                `json:"image,omitempty"`
	Validation      models.ValidationType `json:"validation"`
	WrongClicksStep int                   `json:"wrong_clicks_step"`
	WrongClicksAll  int                   `json:"wrong_clicks_total"`
	Error           string                `json:"error,omitempty"`
	Completed       bool                  `json:"completed"`
	Perfect         bool                  `json:"perfect"`
}

// ProcedureEngine drives an ordered list of steps, each validated by
// exactly one of three strategies: click the right target among decoys,
// enter a spatial zone, or confirm manually. Whatever it arms it also
// releases, unconditionally, on every exit path.
type ProcedureEngine struct {
	env   Env
	hooks Hooks

	mu       sync.Mutex
	session  int
	active   bool
	objectID string

	spec       models.ProcedureSpec
	idx        int
	stepDone   []bool
	wrongStep  int
	wrongTotal int
	resets     int

	armed      map[string]*scene.Object
	highlights []*scene.Object
	target     *scene.Object
	zone       *scene.Object

	advancing bool
	errMsg    string
	completed bool

	record     *models.InteractionRecord
	stepStart  time.Time
	errToken   schedule.Token
	settleTok  schedule.Token
}

// NewProcedureEngine creates a procedure engine bound to the dispatcher
// hooks.
func NewProcedureEngine(env Env, hooks Hooks) *ProcedureEngine {
	return &ProcedureEngine{env: env, hooks: hooks}
}

// Type implements Engine.
func (e *ProcedureEngine) Type() models.ContentType { return models.ContentTypeProcedure }

// Display implements Engine.
func (e *ProcedureEngine) Display(objectID string, payload models.ContentPayload) error {
	spec, err := ParseProcedure(payload)
	if err != nil {
		e.env.Log.Error("procedure payload rejected",
			zap.String("object_id", objectID), zap.Error(err))
		return err
	}

	var emits []func()
	e.mu.Lock()
	e.session++
	e.active = true
	e.objectID = objectID
	e.spec = spec
	e.idx = 0
	e.stepDone = make([]bool, len(spec.Steps))
	e.wrongStep = 0
	e.wrongTotal = 0
	e.resets = 0
	e.armed = make(map[string]*scene.Object)
	e.advancing = false
	e.errMsg = ""
	e.completed = false
	e.record = e.env.Analytics.StartInteraction(objectID, "content", string(models.ContentTypeProcedure))
	e.env.Analytics.AddData(e.record, "step_count", len(spec.Steps))
	e.env.Analytics.AddData(e.record, "keep_progress", spec.KeepProgressOnOtherClick)
	e.enterStepLocked(&emits)
	e.mu.Unlock()
	runEmits(emits)
	return nil
}

// enterStepLocked releases whatever the previous step armed, then arms
// the current one according to its validation strategy. Safe to call
// when nothing is attached.
func (e *ProcedureEngine) enterStepLocked(emits *[]func()) {
	e.releaseStepLocked()
	if e.idx >= len(e.spec.Steps) {
		e.finishLocked(emits)
		return
	}

	step := e.spec.Steps[e.idx]
	e.stepStart = time.Now()
	e.wrongStep = 0

	switch step.Validation {
	case models.ValidationClick:
		e.target = e.env.Scene.FindByName(step.TargetObjectName)
		if e.target == nil {
			// Without its correct target the step can never complete;
			// that is a content-authoring bug, not something to recover.
			e.env.Log.Warn("click target not found in scene",
				zap.String("object_id", e.objectID),
				zap.Int("step", e.idx),
				zap.String("target", step.TargetObjectName))
		} else {
			e.armLocked(e.target, targetHighlight)
		}
		for _, decoy := range step.Decoys {
			obj := e.env.Scene.FindByName(decoy.ObjectName)
			if obj == nil {
				e.env.Log.Warn("decoy not found in scene",
					zap.String("object_id", e.objectID),
					zap.Int("step", e.idx),
					zap.String("decoy", decoy.ObjectName))
				continue
			}
			e.armLocked(obj, targetHighlight)
		}
	case models.ValidationZone:
		e.zone = e.env.Scene.FindByName(step.ZoneObjectName)
		if e.zone == nil {
			e.env.Log.Warn("zone not found in scene",
				zap.String("object_id", e.objectID),
				zap.Int("step", e.idx),
				zap.String("zone", step.ZoneObjectName))
		}
		// Optional decorative highlight on a companion object; it is not
		// armed and never affects validation.
		if step.TargetObjectName != "" {
			if obj := e.env.Scene.FindByName(step.TargetObjectName); obj != nil {
				e.env.Highlight.Apply(obj, zoneHighlight)
				e.highlights = append(e.highlights, obj)
			}
		}
	case models.ValidationManual:
		// Nothing armed; an explicit validate affordance completes the
		// step.
	}
}

func (e *ProcedureEngine) armLocked(obj *scene.Object, style scene.HighlightStyle) {
	e.armed[obj.Name] = obj
	e.env.Highlight.Apply(obj, style)
	e.highlights = append(e.highlights, obj)
}

// releaseStepLocked removes every interaction handle and highlight the
// current step attached. Idempotent.
func (e *ProcedureEngine) releaseStepLocked() {
	for _, obj := range e.highlights {
		e.env.Highlight.Remove(obj)
	}
	e.highlights = nil
	e.armed = make(map[string]*scene.Object)
	e.target = nil
	e.zone = nil
	e.errMsg = ""
	if e.errToken != nil {
		e.errToken.Cancel()
		e.errToken = nil
	}
	if e.settleTok != nil {
		e.settleTok.Cancel()
		e.settleTok = nil
	}
	e.advancing = false
}

// HandleClick reports a click on a named scene object. Armed decoys show
// their own error message and never advance the step; clicks outside the
// armed set follow the configured reset policy.
func (e *ProcedureEngine) HandleClick(objectName string) {
	var emits []func()
	e.mu.Lock()
	if !e.active || e.completed || e.advancing || e.idx >= len(e.spec.Steps) {
		e.mu.Unlock()
		return
	}
	step := e.spec.Steps[e.idx]

	if e.target != nil && objectName == e.target.Name {
		e.completeStepLocked()
		e.mu.Unlock()
		runEmits(emits)
		return
	}

	if _, ok := e.armed[objectName]; ok {
		// A decoy: per-step feedback, never a full reset.
		e.wrongStep++
		e.wrongTotal++
		e.showErrorLocked(e.decoyMessageLocked(step, objectName))
		e.mu.Unlock()
		return
	}

	// Outside the armed set.
	e.wrongTotal++
	if e.spec.KeepProgressOnOtherClick {
		e.wrongStep++
		e.showErrorLocked(e.genericMessageLocked())
		e.mu.Unlock()
		return
	}

	// Hard reset: restart the whole procedure at step 0.
	e.env.Log.Info("procedure reset by off-target click",
		zap.String("object_id", e.objectID),
		zap.Int("step", e.idx),
		zap.String("clicked", objectName))
	e.resets++
	e.env.Analytics.AddData(e.record, "resets", e.resets)
	for i := range e.stepDone {
		e.stepDone[i] = false
	}
	e.idx = 0
	e.enterStepLocked(&emits)
	e.mu.Unlock()
	runEmits(emits)
}

func (e *ProcedureEngine) decoyMessageLocked(step models.ProcedureStep, objectName string) string {
	for _, decoy := range step.Decoys {
		if decoy.ObjectName == objectName {
			if msg := e.env.Locale.Resolve(decoy.ErrorMessage); msg != "" {
				return msg
			}
			break
		}
	}
	return e.genericMessageLocked()
}

func (e *ProcedureEngine) genericMessageLocked() string {
	if msg := e.env.Locale.Resolve(e.spec.GenericError); msg != "" {
		return msg
	}
	return defaultWrongClickMessage
}

// showErrorLocked displays a transient error that auto-hides after a
// fixed duration. A newer error replaces the pending hide timer.
func (e *ProcedureEngine) showErrorLocked(msg string) {
	e.errMsg = msg
	if e.errToken != nil {
		e.errToken.Cancel()
	}
	session := e.session
	e.errToken = e.env.Scheduler.After(errorAutoHideDelay, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if !e.active || e.session != session {
			return
		}
		e.errMsg = ""
		e.errToken = nil
	})
}

// EnterZone reports that the user entered a named trigger zone. It
// completes the current step only under zone validation, with zero
// wrong-click count attributable to this mechanism.
func (e *ProcedureEngine) EnterZone(zoneName string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.active || e.completed || e.advancing || e.idx >= len(e.spec.Steps) {
		return
	}
	if e.spec.Steps[e.idx].Validation != models.ValidationZone {
		return
	}
	if e.zone == nil || e.zone.Name != zoneName {
		return
	}
	e.completeStepLocked()
}

// ValidateStep completes the current step when it uses manual
// validation; ignored for the other strategies.
func (e *ProcedureEngine) ValidateStep() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.active || e.completed || e.advancing || e.idx >= len(e.spec.Steps) {
		return
	}
	if e.spec.Steps[e.idx].Validation != models.ValidationManual {
		return
	}
	e.completeStepLocked()
}

// completeStepLocked marks the step completed (a false→true transition
// that happens exactly once), records its analytics, and schedules the
// advance after a short settle delay.
func (e *ProcedureEngine) completeStepLocked() {
	if e.stepDone[e.idx] {
		return
	}
	e.stepDone[e.idx] = true
	e.errMsg = ""
	e.env.Analytics.AddData(e.record, stepKey(e.idx), map[string]any{
		"duration_seconds": time.Since(e.stepStart).Seconds(),
		"wrong_clicks":     e.wrongStep,
	})

	e.advancing = true
	session := e.session
	e.settleTok = e.env.Scheduler.After(stepSettleDelay, func() {
		e.advanceStep(session)
	})
}

func stepKey(idx int) string {
	return fmt.Sprintf("step_%d", idx)
}

func (e *ProcedureEngine) advanceStep(session int) {
	var emits []func()
	e.mu.Lock()
	if !e.active || e.session != session {
		e.mu.Unlock()
		return
	}
	e.advancing = false
	e.idx++
	e.enterStepLocked(&emits)
	e.mu.Unlock()
	runEmits(emits)
}

// finishLocked runs once the index passes the last step: everything is
// released, the accumulated totals are reported, and the flow closes
// itself.
func (e *ProcedureEngine) finishLocked(emits *[]func()) {
	if e.completed {
		return
	}
	e.completed = true
	e.releaseStepLocked()
	perfect := e.wrongTotal == 0
	e.env.Analytics.AddData(e.record, "total_wrong_clicks", e.wrongTotal)
	e.env.Analytics.AddData(e.record, "perfect", perfect)
	e.env.Analytics.EndInteraction(e.record, true)
	e.record = nil

	objectID := e.objectID
	if e.hooks.Completed != nil {
		*emits = append(*emits, func() { e.hooks.Completed(objectID, true) })
	}
	// Completion closes the flow; Close() stays safe to call again.
	e.session++
	e.active = false
	if e.hooks.Closed != nil {
		*emits = append(*emits, func() { e.hooks.Closed(models.ContentTypeProcedure, objectID) })
	}
}

// View renders the active step.
func (e *ProcedureEngine) View() (ProcedureView, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.active && !e.completed {
		return ProcedureView{}, false
	}
	view := ProcedureView{
		ObjectID:       e.objectID,
		StepIndex:      e.idx,
		StepCount:      len(e.spec.Steps),
		WrongClicksAll: e.wrongTotal,
		Completed:      e.completed,
		Perfect:        e.completed && e.wrongTotal == 0,
	}
	if e.completed || e.idx >= len(e.spec.Steps) {
		return view, true
	}
	step := e.spec.Steps[e.idx]
	view.Title = e.env.Locale.Resolve(step.Title)
	view.Instruction = e.env.Locale.Resolve(step.Instruction)
	view.Hint = e.env.Locale.Resolve(step.Hint)
	view.Image = step.ImageName
	view.Validation = step.Validation
	view.WrongClicksStep = e.wrongStep
	view.Error = e.errMsg
	return view, true
}

// Close implements Engine. Idempotent, safe mid-step; removes every
// interaction handle and highlight the engine ever attached.
func (e *ProcedureEngine) Close() {
	var emits []func()
	e.mu.Lock()
	if !e.active {
		e.mu.Unlock()
		return
	}
	e.session++
	e.active = false
	e.releaseStepLocked()
	if e.record != nil {
		e.env.Analytics.AddData(e.record, "total_wrong_clicks", e.wrongTotal)
		e.env.Analytics.EndInteraction(e.record, false)
		e.record = nil
	}
	objectID := e.objectID
	if e.hooks.Closed != nil {
		emits = append(emits, func() { e.hooks.Closed(models.ContentTypeProcedure, objectID) })
	}
	e.mu.Unlock()
	runEmits(emits)
}
