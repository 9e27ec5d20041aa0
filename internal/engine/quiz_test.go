package engine

import (
	"testing"

	"content-service/internal/models"
)

func newQuizUnderTest(f *testFixture, log *eventLog, cfg QuizConfig) *QuizEngine {
	return NewQuizEngine(f.env, cfg, log.hooks())
}

func TestSingleSelectCorrectness(t *testing.T) {
	testCases := []struct {
		name        string
		selections  []int
		wantCorrect bool
	}{
		{"right option", []int{1}, true},
		{"wrong option", []int{0}, false},
		{"replaced selection keeps last", []int{0, 1}, true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			log := &eventLog{}
			e := newQuizUnderTest(f, log, DefaultQuizConfig())
			if err := e.Display("obj-1", singleQuestionPayload()); err != nil {
				t.Fatalf("display failed: %v", err)
			}
			for _, i := range tc.selections {
				e.SelectOption(i)
			}
			e.Validate()
			view, ok := e.View()
			if !ok {
				t.Fatal("expected an active view")
			}
			if !view.Answered {
				t.Fatal("expected question answered")
			}
			gotCorrect := view.Feedback == "Correct, 3 meters."
			if gotCorrect != tc.wantCorrect {
				t.Errorf("expected correct=%v, feedback %q", tc.wantCorrect, view.Feedback)
			}
		})
	}
}

func TestMultiSelectExactSetComparison(t *testing.T) {
	testCases := []struct {
		name        string
		selections  []int
		wantCorrect bool
	}{
		{"exact set different order", []int{2, 0}, true},
		{"subset gets no credit", []int{0}, false},
		{"superset gets no credit", []int{0, 1, 2}, false},
		{"toggle off then validate", []int{0, 2, 2}, false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			log := &eventLog{}
			e := newQuizUnderTest(f, log, DefaultQuizConfig())
			if err := e.Display("obj-1", multiQuestionPayload()); err != nil {
				t.Fatalf("display failed: %v", err)
			}
			for _, i := range tc.selections {
				e.SelectOption(i)
			}
			e.Validate()
			f.scheduler.FireAll()
			completed := log.count("completed:") == 1
			if completed != tc.wantCorrect {
				t.Errorf("expected completion=%v, events %v", tc.wantCorrect, log.entries)
			}
		})
	}
}

func TestSelectionLockedOnceAnswered(t *testing.T) {
	f := newFixture()
	log := &eventLog{}
	e := newQuizUnderTest(f, log, DefaultQuizConfig())
	if err := e.Display("obj-1", singleQuestionPayload()); err != nil {
		t.Fatalf("display failed: %v", err)
	}
	e.SelectOption(0)
	e.Validate()
	e.SelectOption(1) // must be ignored
	view, _ := e.View()
	if !view.Options[0].Selected || view.Options[1].Selected {
		t.Error("selection changed after validation")
	}
	// Repeated validation is a silent no-op.
	e.Validate()
	if log.count("completed:") != 0 {
		t.Errorf("wrong answer must not complete, events %v", log.entries)
	}
}

func TestValidateWithEmptySelectionIsNoop(t *testing.T) {
	f := newFixture()
	log := &eventLog{}
	e := newQuizUnderTest(f, log, DefaultQuizConfig())
	if err := e.Display("obj-1", singleQuestionPayload()); err != nil {
		t.Fatalf("display failed: %v", err)
	}
	e.Validate()
	view, _ := e.View()
	if view.Answered {
		t.Error("validate with no selection must not answer")
	}
}

func TestScoringMonotonicity(t *testing.T) {
	f := newFixture()
	log := &eventLog{}
	e := newQuizUnderTest(f, log, QuizConfig{Mode: AdvanceOnCorrect, RetryCooldown: 1})
	if err := e.Display("obj-1", singleQuestionPayload()); err != nil {
		t.Fatalf("display failed: %v", err)
	}

	// Wrong first attempt fixes the score at 0.
	e.SelectOption(0)
	e.Validate()
	f.scheduler.FireAll() // cooldown elapses, input unlocks

	// A later correct answer still yields 0.
	e.SelectOption(1)
	e.Validate()
	f.scheduler.FireAll() // settle, advances past the last question

	if log.count("completed:obj-1:success") != 1 {
		t.Fatalf("expected completion after eventual correct answer, events %v", log.entries)
	}
	view, _ := e.View()
	if view.Score != 0 {
		t.Errorf("expected score 0 after wrong first attempt, got %.1f", view.Score)
	}

	sealed := f.sink.Sealed()
	if len(sealed) != 1 {
		t.Fatalf("expected one sealed record, got %d", len(sealed))
	}
	if got := sealed[0].Data["score"]; got != float64(0) {
		t.Errorf("expected recorded score 0, got %v", got)
	}
}

func TestFirstAttemptCorrectScoresFull(t *testing.T) {
	f := newFixture()
	log := &eventLog{}
	e := newQuizUnderTest(f, log, DefaultQuizConfig())
	if err := e.Display("obj-1", singleQuestionPayload()); err != nil {
		t.Fatalf("display failed: %v", err)
	}
	e.SelectOption(1)
	e.Validate()
	f.scheduler.FireAll()
	view, _ := e.View()
	if !view.Completed || view.Score != 100 {
		t.Errorf("expected completed with score 100, got completed=%v score=%.1f", view.Completed, view.Score)
	}
}

func TestAlwaysAdvanceMode(t *testing.T) {
	f := newFixture()
	log := &eventLog{}
	e := newQuizUnderTest(f, log, QuizConfig{Mode: AdvanceAlways, RetryCooldown: 1})
	payload := models.ContentPayload{
		"questions": []any{
			map[string]any(singleQuestionPayload()),
			map[string]any(singleQuestionPayload()),
		},
	}
	if err := e.Display("obj-1", payload); err != nil {
		t.Fatalf("display failed: %v", err)
	}

	// Wrong answers still advance, and the flow reports success.
	e.SelectOption(0)
	e.Validate()
	f.scheduler.FireAll()
	e.SelectOption(0)
	e.Validate()
	f.scheduler.FireAll()

	if log.count("completed:obj-1:success") != 1 {
		t.Fatalf("expected success completion in always-advance mode, events %v", log.entries)
	}
	view, _ := e.View()
	if view.Score != 0 {
		t.Errorf("score still reflects first attempts, got %.1f", view.Score)
	}
}

func TestCompletedViewKeepsFinalQuestionOutcome(t *testing.T) {
	f := newFixture()
	log := &eventLog{}
	e := newQuizUnderTest(f, log, QuizConfig{Mode: AdvanceAlways, RetryCooldown: 1})
	if err := e.Display("obj-1", singleQuestionPayload()); err != nil {
		t.Fatalf("display failed: %v", err)
	}

	// Wrong answer on the last question still completes the flow, but
	// the final view must keep rendering that answer's outcome.
	e.SelectOption(0)
	e.Validate()
	f.scheduler.FireAll()

	view, _ := e.View()
	if !view.Completed {
		t.Fatal("expected completed flow")
	}
	if view.Feedback != "Not quite." {
		t.Errorf("completed view lost the incorrect feedback, got %q", view.Feedback)
	}
	if view.Options[0].State != OptionWrongPick {
		t.Errorf("completed view lost the wrong-pick classification, got %s", view.Options[0].State)
	}
	if view.Options[1].State != OptionCorrect {
		t.Errorf("correct option not shown on completion, got %s", view.Options[1].State)
	}
}

func TestOptionFeedbackClassification(t *testing.T) {
	f := newFixture()
	log := &eventLog{}
	e := newQuizUnderTest(f, log, DefaultQuizConfig())
	if err := e.Display("obj-1", singleQuestionPayload()); err != nil {
		t.Fatalf("display failed: %v", err)
	}
	e.SelectOption(0)
	e.Validate()
	view, _ := e.View()
	if view.Options[1].State != OptionCorrect {
		t.Errorf("correct option must always be shown once answered, got %s", view.Options[1].State)
	}
	if view.Options[0].State != OptionWrongPick {
		t.Errorf("user's wrong pick not classified, got %s", view.Options[0].State)
	}
	if view.Options[2].State != OptionNeutral {
		t.Errorf("unselected wrong option must stay neutral, got %s", view.Options[2].State)
	}
}

func TestQuizCloseIsIdempotent(t *testing.T) {
	f := newFixture()
	log := &eventLog{}
	e := newQuizUnderTest(f, log, DefaultQuizConfig())
	if err := e.Display("obj-1", singleQuestionPayload()); err != nil {
		t.Fatalf("display failed: %v", err)
	}
	e.SelectOption(1)
	e.Validate()
	e.Close()
	e.Close()
	if n := log.count("closed:"); n != 1 {
		t.Fatalf("expected exactly one Closed event, got %d (%v)", n, log.entries)
	}
	// The pending settle timer must not act on torn-down state.
	f.scheduler.FireAll()
	if log.count("completed:") != 0 {
		t.Errorf("timer fired after close, events %v", log.entries)
	}
	if f.sink.OpenCount() != 0 {
		t.Error("interaction record left open after close")
	}
}

func TestQuizRejectsEmptyOptions(t *testing.T) {
	f := newFixture()
	log := &eventLog{}
	e := newQuizUnderTest(f, log, DefaultQuizConfig())
	payload := models.ContentPayload{"questionText": "q", "options": []any{}, "correctAnswers": "0"}
	if err := e.Display("obj-1", payload); err == nil {
		t.Fatal("expected content error for empty options")
	}
	if _, ok := e.View(); ok {
		t.Error("engine must stay inactive after a rejected payload")
	}
}
