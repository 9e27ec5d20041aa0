package engine

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"content-service/internal/models"
	"content-service/internal/schedule"
)

// DialogueChoiceView is one rendered choice affordance.
type DialogueChoiceView struct {
	ID   string `json:"id"`
	Text string `json:"text"`
	// Feedback is set while the post-selection settle delay runs:
	// "correct"/"incorrect" on evaluated nodes, "selected" on neutral
	// ones, empty otherwise.
	Feedback string `json:"feedback,omitempty"`
}

// DialogueView is a render snapshot of the current node. Text is
// resolved against the active language at call time, so a mid-session
// language change re-renders the current node in place.
type DialogueView struct {
	ObjectID       string               `json:"object_id"`
	Kind           string               `json:"kind"` // "line", "choice" or "end"
	Speaker        string               `json:"speaker,omitempty"`
	Text           string               `json:"text,omitempty"`
	ContextSpeaker string               `json:"context_speaker,omitempty"`
	ContextText    string               `json:"context_text,omitempty"`
	Prompt         string               `json:"prompt,omitempty"`
	Choices        []DialogueChoiceView `json:"choices,omitempty"`
	Completed      bool                 `json:"completed"`
	Success        bool                 `json:"success"`
	Score          float64              `json:"score"`
}

// DialogueEngine traverses a directed graph of dialogue/choice/end
// nodes, carrying the last shown line as context above choice lists.
type DialogueEngine struct {
	env   Env
	hooks Hooks

	mu       sync.Mutex
	session  int
	active   bool
	objectID string

	nodes        map[string]*models.DialogueNode
	current      *models.DialogueNode
	lastDialogue *models.DialogueNode
	isProcessing bool
	chosenID     string

	evaluatedSeen    int
	evaluatedCorrect int
	completed        bool
	success          bool

	record      *models.InteractionRecord
	nodeEntered time.Time
	pending     schedule.Token
}

// NewDialogueEngine creates a dialogue engine bound to the dispatcher
// hooks.
func NewDialogueEngine(env Env, hooks Hooks) *DialogueEngine {
	return &DialogueEngine{env: env, hooks: hooks}
}

// Type implements Engine.
func (e *DialogueEngine) Type() models.ContentType { return models.ContentTypeDialogue }

// Display implements Engine. The graph is validated up front: a missing
// start node or a dangling nextNodeId is a content error.
func (e *DialogueEngine) Display(objectID string, payload models.ContentPayload) error {
	nodes, startID, err := ParseDialogue(payload)
	if err != nil {
		e.env.Log.Error("dialogue payload rejected",
			zap.String("object_id", objectID), zap.Error(err))
		return err
	}

	var emits []func()
	e.mu.Lock()
	e.session++
	e.active = true
	e.objectID = objectID
	e.nodes = nodes
	e.current = nil
	e.lastDialogue = nil
	e.isProcessing = false
	e.chosenID = ""
	e.evaluatedSeen = 0
	e.evaluatedCorrect = 0
	e.completed = false
	e.success = false
	e.record = e.env.Analytics.StartInteraction(objectID, "content", string(models.ContentTypeDialogue))
	e.enterLocked(startID, &emits)
	e.mu.Unlock()
	runEmits(emits)
	return nil
}

// enterLocked moves to the node with the given id. An empty id or an end
// node finalizes the session. Start nodes redirect immediately and have
// no visible state.
func (e *DialogueEngine) enterLocked(id string, emits *[]func()) {
	for {
		if id == "" {
			e.finalizeLocked(emits)
			return
		}
		node := e.nodes[id]
		if node == nil {
			// Parse validation makes this unreachable for authored
			// content; treat it as an endpoint rather than getting stuck.
			e.env.Log.Warn("dialogue transition to unknown node",
				zap.String("object_id", e.objectID), zap.String("node_id", id))
			e.finalizeLocked(emits)
			return
		}
		e.current = node
		e.nodeEntered = time.Now()
		switch node.Type {
		case models.DialogueNodeStart:
			id = node.NextNodeID
			continue
		case models.DialogueNodeDialogue:
			e.lastDialogue = node
			return
		case models.DialogueNodeChoice:
			return
		case models.DialogueNodeEnd:
			e.finalizeLocked(emits)
			return
		}
	}
}

func (e *DialogueEngine) finalizeLocked(emits *[]func()) {
	if e.completed {
		return
	}
	e.completed = true
	e.success = e.evaluatedCorrect == e.evaluatedSeen
	score := e.scoreLocked()
	e.env.Analytics.AddData(e.record, "evaluated_choices", e.evaluatedSeen)
	e.env.Analytics.AddData(e.record, "correct_choices", e.evaluatedCorrect)
	e.env.Analytics.AddData(e.record, "score", score)
	e.env.Analytics.EndInteraction(e.record, e.success)

	objectID, success := e.objectID, e.success
	if e.hooks.Completed != nil {
		*emits = append(*emits, func() { e.hooks.Completed(objectID, success) })
	}
}

func (e *DialogueEngine) scoreLocked() float64 {
	if e.evaluatedSeen == 0 {
		return 100
	}
	return 100 * float64(e.evaluatedCorrect) / float64(e.evaluatedSeen)
}

// Continue advances past the current dialogue line. Ignored while a
// transition is pending or on non-dialogue nodes.
func (e *DialogueEngine) Continue() {
	var emits []func()
	e.mu.Lock()
	if !e.active || e.completed || e.isProcessing ||
		e.current == nil || e.current.Type != models.DialogueNodeDialogue {
		e.mu.Unlock()
		return
	}
	e.enterLocked(e.current.NextNodeID, &emits)
	e.mu.Unlock()
	runEmits(emits)
}

// Choose selects a choice on the current choice node. While the settle
// delay of a previous selection is pending, further selections are
// ignored. Evaluated nodes show correct/incorrect feedback for 800ms;
// neutral nodes get a 300ms highlight and transition regardless.
func (e *DialogueEngine) Choose(choiceID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.active || e.completed || e.isProcessing ||
		e.current == nil || e.current.Type != models.DialogueNodeChoice {
		return
	}
	var choice *models.DialogueChoice
	for i := range e.current.Choices {
		if e.current.Choices[i].ID == choiceID {
			choice = &e.current.Choices[i]
			break
		}
	}
	if choice == nil {
		e.env.Log.Warn("unknown dialogue choice",
			zap.String("object_id", e.objectID), zap.String("choice_id", choiceID))
		return
	}

	evaluated := e.current.Evaluated()
	elapsed := time.Since(e.nodeEntered).Seconds()
	e.env.Analytics.AddData(e.record, "choice_"+e.current.ID, map[string]any{
		"choice_id":       choice.ID,
		"is_correct":      choice.IsCorrect,
		"evaluated":       evaluated,
		"elapsed_seconds": elapsed,
	})
	if evaluated {
		e.evaluatedSeen++
		if choice.IsCorrect {
			e.evaluatedCorrect++
		}
	}

	e.isProcessing = true
	e.chosenID = choice.ID
	delay := neutralChoiceDelay
	if evaluated {
		delay = evaluatedChoiceDelay
	}
	session := e.session
	next := choice.NextNodeID
	e.pending = e.env.Scheduler.After(delay, func() {
		e.settleChoice(session, next)
	})
}

func (e *DialogueEngine) settleChoice(session int, next string) {
	var emits []func()
	e.mu.Lock()
	if !e.active || e.session != session {
		e.mu.Unlock()
		return
	}
	e.isProcessing = false
	e.chosenID = ""
	e.enterLocked(next, &emits)
	e.mu.Unlock()
	runEmits(emits)
}

// View renders the current node.
func (e *DialogueEngine) View() (DialogueView, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.active {
		return DialogueView{}, false
	}
	view := DialogueView{
		ObjectID:  e.objectID,
		Completed: e.completed,
		Success:   e.success,
		Score:     e.scoreLocked(),
	}
	if e.completed || e.current == nil {
		view.Kind = "end"
		return view, true
	}
	switch e.current.Type {
	case models.DialogueNodeDialogue:
		view.Kind = "line"
		view.Speaker = e.env.Locale.Resolve(e.current.Speaker)
		view.Text = e.env.Locale.Resolve(e.current.Text)
	case models.DialogueNodeChoice:
		view.Kind = "choice"
		view.Prompt = e.env.Locale.Resolve(e.current.ChoiceText)
		if e.lastDialogue != nil {
			view.ContextSpeaker = e.env.Locale.Resolve(e.lastDialogue.Speaker)
			view.ContextText = e.env.Locale.Resolve(e.lastDialogue.Text)
		}
		evaluated := e.current.Evaluated()
		for _, c := range e.current.Choices {
			cv := DialogueChoiceView{ID: c.ID, Text: e.env.Locale.Resolve(c.Text)}
			if e.isProcessing && c.ID == e.chosenID {
				switch {
				case !evaluated:
					cv.Feedback = "selected"
				case c.IsCorrect:
					cv.Feedback = "correct"
				default:
					cv.Feedback = "incorrect"
				}
			}
			view.Choices = append(view.Choices, cv)
		}
	default:
		view.Kind = "end"
	}
	return view, true
}

// Close implements Engine. Idempotent; a pending transition delay is
// cancelled and its callback invalidated via the session token.
func (e *DialogueEngine) Close() {
	var emits []func()
	e.mu.Lock()
	if !e.active {
		e.mu.Unlock()
		return
	}
	e.session++
	e.active = false
	e.isProcessing = false
	if e.pending != nil {
		e.pending.Cancel()
		e.pending = nil
	}
	if e.record != nil {
		e.env.Analytics.EndInteraction(e.record, e.completed && e.success)
		e.record = nil
	}
	objectID := e.objectID
	if e.hooks.Closed != nil {
		emits = append(emits, func() { e.hooks.Closed(models.ContentTypeDialogue, objectID) })
	}
	e.mu.Unlock()
	runEmits(emits)
}
