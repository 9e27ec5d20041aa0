package engine

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"content-service/internal/models"
	"content-service/internal/schedule"
)

// AdvanceMode selects the quiz retry-gating policy. This is a product
// knob, not a payload field.
type AdvanceMode string

const (
	// AdvanceOnCorrect blocks advancement after a wrong answer; the
	// question unlocks for another try after a cooldown.
	AdvanceOnCorrect AdvanceMode = "retry"
	// AdvanceAlways moves to the next question on any validated answer.
	AdvanceAlways AdvanceMode = "always"
)

// QuizConfig tunes the quiz engine.
type QuizConfig struct {
	Mode          AdvanceMode
	RetryCooldown time.Duration
}

// DefaultQuizConfig returns the retry-gated policy with a 2s cooldown.
func DefaultQuizConfig() QuizConfig {
	return QuizConfig{Mode: AdvanceOnCorrect, RetryCooldown: 2 * time.Second}
}

// OptionState classifies an option for rendering once a question has
// been answered.
type OptionState string

const (
	OptionNeutral   OptionState = "neutral"
	OptionCorrect   OptionState = "correct"
	OptionWrongPick OptionState = "wrong_pick"
)

// OptionView is one rendered answer option.
type OptionView struct {
	Index    int         `json:"index"`
	Text     string      `json:"text"`
	Selected bool        `json:"selected"`
	State    OptionState `json:"state"`
}

// QuizView is a render snapshot of the active question.
type QuizView struct {
	ObjectID         string       `json:"object_id"`
	Index            int          `json:"index"`
	Total            int          `json:"total"`
	QuestionText     string       `json:"question_text"`
	IsMultipleChoice bool         `json:"is_multiple_choice"`
	Options          []OptionView `json:"options"`
	Answered         bool         `json:"answered"`
	CanValidate      bool         `json:"can_validate"`
	Feedback         string       `json:"feedback,omitempty"`
	Completed        bool         `json:"completed"`
	Score            float64      `json:"score"`
}

// QuizEngine validates single/multi-select answers against the declared
// answer set, advances through the question sequence and computes
// per-question and attempt-level scoring.
type QuizEngine struct {
	env   Env
	cfg   QuizConfig
	hooks Hooks

	mu       sync.Mutex
	session  int
	active   bool
	objectID string

	questions []models.QuestionSpec
	idx       int
	selected  map[int]bool
	answered  bool
	lastWrong bool
	attempted []bool
	firstTry  []bool
	completed bool
	success   bool

	record  *models.InteractionRecord
	started time.Time
	pending schedule.Token
}

// NewQuizEngine creates a quiz engine bound to the dispatcher hooks.
func NewQuizEngine(env Env, cfg QuizConfig, hooks Hooks) *QuizEngine {
	if cfg.Mode == "" {
		cfg = DefaultQuizConfig()
	}
	if cfg.RetryCooldown <= 0 {
		cfg.RetryCooldown = DefaultQuizConfig().RetryCooldown
	}
	return &QuizEngine{env: env, cfg: cfg, hooks: hooks}
}

// Type implements Engine.
func (e *QuizEngine) Type() models.ContentType { return models.ContentTypeQuestion }

// Display implements Engine. A malformed payload is a content error: the
// engine stays inactive and the caller aborts the flow.
func (e *QuizEngine) Display(objectID string, payload models.ContentPayload) error {
	questions, err := ParseQuestions(payload)
	if err != nil {
		e.env.Log.Error("quiz payload rejected",
			zap.String("object_id", objectID), zap.Error(err))
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.session++
	e.active = true
	e.objectID = objectID
	e.questions = questions
	e.idx = 0
	e.selected = make(map[int]bool)
	e.answered = false
	e.lastWrong = false
	e.attempted = make([]bool, len(questions))
	e.firstTry = make([]bool, len(questions))
	e.completed = false
	e.success = false
	e.started = time.Now()
	e.record = e.env.Analytics.StartInteraction(objectID, "content", string(models.ContentTypeQuestion))
	e.env.Analytics.AddData(e.record, "question_count", len(questions))
	return nil
}

// SelectOption toggles or replaces the selection. A no-op once the
// current question is answered.
func (e *QuizEngine) SelectOption(i int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.active || e.completed || e.answered {
		return
	}
	q := e.questions[e.idx]
	if i < 0 || i >= len(q.Options) {
		e.env.Log.Warn("option index out of range",
			zap.String("object_id", e.objectID), zap.Int("index", i))
		return
	}
	if q.IsMultipleChoice {
		if e.selected[i] {
			delete(e.selected, i)
		} else {
			e.selected[i] = true
		}
		return
	}
	e.selected = map[int]bool{i: true}
}

// Validate checks the selection against the declared answer set. No-op
// when nothing is selected or the question is already answered. The
// first call per question fixes firstAttemptCorrect and with it the
// question's 0/100 final score; later corrections never raise it.
func (e *QuizEngine) Validate() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.active || e.completed || e.answered || len(e.selected) == 0 {
		return
	}

	q := e.questions[e.idx]
	correct := e.matches(q)
	if !e.attempted[e.idx] {
		e.attempted[e.idx] = true
		e.firstTry[e.idx] = correct
		e.env.Analytics.AddData(e.record,
			fmt.Sprintf("question_%d_first_attempt_correct", e.idx), correct)
	}
	e.answered = true
	e.lastWrong = !correct

	session := e.session
	switch {
	case e.cfg.Mode == AdvanceAlways, correct:
		e.pending = e.env.Scheduler.After(quizSettleDelay, func() {
			e.advanceIfSession(session)
		})
	default:
		// Wrong answer under retry gating: hold input for the cooldown,
		// then clear the attempt so the user can try again.
		e.pending = e.env.Scheduler.After(e.cfg.RetryCooldown, func() {
			e.unlockIfSession(session)
		})
	}
}

func (e *QuizEngine) matches(q models.QuestionSpec) bool {
	if !q.IsMultipleChoice {
		return len(e.selected) == 1 && e.selected[q.CorrectAnswers[0]]
	}
	if len(e.selected) != len(q.CorrectAnswers) {
		return false
	}
	for _, idx := range q.CorrectAnswers {
		if !e.selected[idx] {
			return false
		}
	}
	return true
}

func (e *QuizEngine) advanceIfSession(session int) {
	var emits []func()
	e.mu.Lock()
	if !e.active || e.session != session {
		e.mu.Unlock()
		return
	}
	if e.idx+1 >= len(e.questions) {
		// The final question's outcome stays in place so the completed
		// view keeps its feedback and wrong-pick classification.
		e.completed = true
		e.success = true
		score := e.scoreLocked()
		e.env.Analytics.AddData(e.record, "score", score)
		e.env.Analytics.EndInteraction(e.record, true)
		objectID := e.objectID
		if e.hooks.Completed != nil {
			emits = append(emits, func() { e.hooks.Completed(objectID, true) })
		}
	} else {
		e.idx++
		e.answered = false
		e.lastWrong = false
		e.selected = make(map[int]bool)
	}
	e.mu.Unlock()
	runEmits(emits)
}

func (e *QuizEngine) unlockIfSession(session int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.active || e.session != session {
		return
	}
	e.answered = false
	e.lastWrong = false
	e.selected = make(map[int]bool)
}

// scoreLocked is the attempt-level score: the share of questions whose
// first attempt was correct, scaled to 100.
func (e *QuizEngine) scoreLocked() float64 {
	if len(e.questions) == 0 {
		return 0
	}
	right := 0
	for _, ok := range e.firstTry {
		if ok {
			right++
		}
	}
	return 100 * float64(right) / float64(len(e.questions))
}

// View renders the current question with option feedback classification.
func (e *QuizEngine) View() (QuizView, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.active {
		return QuizView{}, false
	}
	q := e.questions[e.idx]
	view := QuizView{
		ObjectID:         e.objectID,
		Index:            e.idx,
		Total:            len(e.questions),
		QuestionText:     e.env.Locale.Resolve(q.QuestionText),
		IsMultipleChoice: q.IsMultipleChoice,
		Answered:         e.answered,
		CanValidate:      !e.answered && !e.completed && len(e.selected) > 0,
		Completed:        e.completed,
		Score:            e.scoreLocked(),
	}

	correctSet := make(map[int]bool, len(q.CorrectAnswers))
	for _, idx := range q.CorrectAnswers {
		correctSet[idx] = true
	}
	for i, opt := range q.Options {
		ov := OptionView{
			Index:    i,
			Text:     e.env.Locale.Resolve(opt),
			Selected: e.selected[i],
			State:    OptionNeutral,
		}
		if e.answered || e.completed {
			switch {
			case correctSet[i]:
				ov.State = OptionCorrect
			case e.selected[i]:
				ov.State = OptionWrongPick
			}
		}
		view.Options = append(view.Options, ov)
	}

	if e.answered || e.completed {
		if e.lastWrong {
			view.Feedback = e.env.Locale.Resolve(q.IncorrectFeedback)
		} else {
			view.Feedback = e.env.Locale.Resolve(q.Feedback)
		}
	}
	return view, true
}

// Close implements Engine. Idempotent; cancels any pending settle or
// cooldown timer so it cannot act on torn-down state.
func (e *QuizEngine) Close() {
	var emits []func()
	e.mu.Lock()
	if !e.active {
		e.mu.Unlock()
		return
	}
	e.session++
	e.active = false
	if e.pending != nil {
		e.pending.Cancel()
		e.pending = nil
	}
	if e.record != nil {
		e.env.Analytics.AddData(e.record, "score", e.scoreLocked())
		e.env.Analytics.EndInteraction(e.record, e.completed && e.success)
		e.record = nil
	}
	objectID := e.objectID
	if e.hooks.Closed != nil {
		emits = append(emits, func() { e.hooks.Closed(models.ContentTypeQuestion, objectID) })
	}
	e.mu.Unlock()
	runEmits(emits)
}
