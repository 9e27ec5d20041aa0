package engine

import (
	"testing"

	"content-service/internal/models"
)

// dispatcherLog records Events in emission order.
type dispatcherLog struct {
	entries   []string
	fallbacks []string
}

func (l *dispatcherLog) events() Events {
	return Events{
		Displayed: func(t models.ContentType, objectID string) {
			l.entries = append(l.entries, "displayed:"+string(t)+":"+objectID)
		},
		Closed: func(t models.ContentType, objectID string) {
			l.entries = append(l.entries, "closed:"+string(t)+":"+objectID)
		},
		Completed: func(objectID string, success bool) {
			entry := "completed:" + objectID + ":failure"
			if success {
				entry = "completed:" + objectID + ":success"
			}
			l.entries = append(l.entries, entry)
		},
		Fallback: func(objectID string, t models.ContentType, _ models.ContentPayload) {
			l.fallbacks = append(l.fallbacks, string(t)+":"+objectID)
		},
	}
}

func (l *dispatcherLog) count(prefix string) int {
	n := 0
	for _, e := range l.entries {
		if len(e) >= len(prefix) && e[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

func newDispatcherFixture() (*testFixture, *dispatcherLog, *Dispatcher) {
	f := newFixture()
	log := &dispatcherLog{}
	d := NewDispatcher(f.env, DefaultQuizConfig(), log.events())
	return f, log, d
}

func textPayload(body string) models.ContentPayload {
	return models.ContentPayload{"text": body}
}

func TestDispatcherRoutesByContentType(t *testing.T) {
	_, log, d := newDispatcherFixture()

	if err := d.Display("sign-1", models.ContentTypeText, textPayload("Hard hats beyond this point.")); err != nil {
		t.Fatalf("display failed: %v", err)
	}
	typ, obj, ok := d.Active()
	if !ok || typ != models.ContentTypeText || obj != "sign-1" {
		t.Fatalf("unexpected active flow: %v %v %v", typ, obj, ok)
	}
	view, ok := d.Text().View()
	if !ok || view.Body != "Hard hats beyond this point." {
		t.Errorf("text engine did not receive the payload, view %+v", view)
	}
	if log.count("displayed:text:sign-1") != 1 {
		t.Errorf("expected one Displayed, events %v", log.entries)
	}
}

func TestDispatcherForceClosesPreviousFlow(t *testing.T) {
	_, log, d := newDispatcherFixture()

	if err := d.Display("quiz-1", models.ContentTypeQuestion, singleQuestionPayload()); err != nil {
		t.Fatalf("display quiz: %v", err)
	}
	if err := d.Display("npc-1", models.ContentTypeDialogue, dialoguePayload()); err != nil {
		t.Fatalf("display dialogue: %v", err)
	}

	want := []string{
		"displayed:question:quiz-1",
		"closed:question:quiz-1",
		"displayed:dialogue:npc-1",
	}
	if len(log.entries) != len(want) {
		t.Fatalf("expected %v, got %v", want, log.entries)
	}
	for i := range want {
		if log.entries[i] != want[i] {
			t.Fatalf("event %d: expected %q, got %v", i, want[i], log.entries)
		}
	}
	if _, ok := d.Quiz().View(); ok {
		t.Error("previous quiz still renders after being force-closed")
	}
	typ, obj, ok := d.Active()
	if !ok || typ != models.ContentTypeDialogue || obj != "npc-1" {
		t.Errorf("unexpected active flow: %v %v %v", typ, obj, ok)
	}
}

func TestDispatcherFallbackForUnknownType(t *testing.T) {
	_, log, d := newDispatcherFixture()

	if err := d.Display("vid-1", models.ContentType("video"), models.ContentPayload{"url": "intro.mp4"}); err != nil {
		t.Fatalf("unknown types are not an error: %v", err)
	}
	if len(log.fallbacks) != 1 || log.fallbacks[0] != "video:vid-1" {
		t.Fatalf("expected one fallback, got %v", log.fallbacks)
	}
	if _, _, ok := d.Active(); ok {
		t.Error("fallback content must not become the active flow")
	}
	if log.count("displayed:") != 0 {
		t.Errorf("fallback must not emit Displayed, events %v", log.entries)
	}
}

func TestDispatcherContentErrorAbortsGracefully(t *testing.T) {
	_, log, d := newDispatcherFixture()

	err := d.Display("quiz-1", models.ContentTypeQuestion, models.ContentPayload{"questionText": "?", "options": []any{}})
	if err == nil {
		t.Fatal("expected a content error")
	}
	if log.count("closed:question:quiz-1") != 1 {
		t.Errorf("a rejected payload still emits Closed, events %v", log.entries)
	}
	if log.count("displayed:") != 0 || log.count("completed:") != 0 {
		t.Errorf("no Displayed or Completed may fire on error, events %v", log.entries)
	}
	if _, _, ok := d.Active(); ok {
		t.Error("no flow may stay active after a rejected payload")
	}

	// The dispatcher recovers: the next display works normally.
	if err := d.Display("quiz-2", models.ContentTypeQuestion, singleQuestionPayload()); err != nil {
		t.Fatalf("display after error: %v", err)
	}
	if log.count("displayed:question:quiz-2") != 1 {
		t.Errorf("expected recovery display, events %v", log.entries)
	}
}

func TestDispatcherCloseCurrentContent(t *testing.T) {
	_, log, d := newDispatcherFixture()

	d.CloseCurrentContent() // nothing active, must be a no-op
	if len(log.entries) != 0 {
		t.Fatalf("idle close emitted events: %v", log.entries)
	}

	if err := d.Display("sign-1", models.ContentTypeText, textPayload("Mind the gap.")); err != nil {
		t.Fatalf("display: %v", err)
	}
	d.CloseCurrentContent()
	if log.count("closed:text:sign-1") != 1 {
		t.Errorf("expected one Closed, events %v", log.entries)
	}
	if _, _, ok := d.Active(); ok {
		t.Error("flow still active after close")
	}
	d.CloseCurrentContent() // second close is a no-op
	if log.count("closed:") != 1 {
		t.Errorf("repeated close re-emitted, events %v", log.entries)
	}
}

func TestDispatcherProcedureSelfCloseClearsActive(t *testing.T) {
	f, log, d := newDispatcherFixture()
	f.registry.Add("valve-a")
	f.registry.Add("valve-b")
	f.registry.Add("control-zone")

	if err := d.Display("proc-1", models.ContentTypeProcedure, procedurePayload(true)); err != nil {
		t.Fatalf("display: %v", err)
	}
	p := d.Procedure()
	p.HandleClick("valve-a")
	f.scheduler.FireAll()
	p.EnterZone("control-zone")
	f.scheduler.FireAll()
	p.ValidateStep()
	f.scheduler.FireAll()

	if log.count("completed:proc-1:success") != 1 || log.count("closed:procedure:proc-1") != 1 {
		t.Fatalf("expected completion then self-close, events %v", log.entries)
	}
	if _, _, ok := d.Active(); ok {
		t.Error("self-closed flow still marked active")
	}
	// A later explicit close finds nothing to do.
	d.CloseCurrentContent()
	if log.count("closed:") != 1 {
		t.Errorf("extra Closed after self-close, events %v", log.entries)
	}
}

func TestDispatcherTextAcknowledgeCompletesThenWaitsForClose(t *testing.T) {
	_, log, d := newDispatcherFixture()

	if err := d.Display("sign-1", models.ContentTypeText, textPayload("Done reading?")); err != nil {
		t.Fatalf("display: %v", err)
	}
	d.Text().Acknowledge()
	if log.count("completed:sign-1:success") != 1 {
		t.Fatalf("expected completion on acknowledge, events %v", log.entries)
	}
	if log.count("closed:") != 0 {
		t.Fatalf("text must wait for an explicit close, events %v", log.entries)
	}
	d.CloseCurrentContent()
	if log.count("closed:text:sign-1") != 1 {
		t.Errorf("expected Closed after explicit close, events %v", log.entries)
	}
}
