package engine

import (
	"go.uber.org/zap"

	"content-service/internal/analytics"
	"content-service/internal/locale"
	"content-service/internal/models"
	"content-service/internal/scene"
	"content-service/internal/schedule"
)

// testFixture bundles the fake collaborators the engine tests drive.
type testFixture struct {
	env       Env
	scheduler *schedule.ManualScheduler
	registry  *scene.Registry
	effects   *scene.EffectLog
	sink      *analytics.Recorder
	locale    *locale.Resolver
}

func newFixture() *testFixture {
	f := &testFixture{
		scheduler: schedule.NewManualScheduler(),
		registry:  scene.NewRegistry(),
		effects:   scene.NewEffectLog(),
		sink:      analytics.NewRecorder(),
		locale:    locale.NewResolver("en", "en"),
	}
	f.env = Env{
		Scene:     f.registry,
		Highlight: f.effects,
		Locale:    f.locale,
		Scheduler: f.scheduler,
		Analytics: f.sink,
		Log:       zap.NewNop(),
	}
	return f
}

// eventLog records dispatcher/engine notifications in order.
type eventLog struct {
	entries []string
}

func (l *eventLog) hooks() Hooks {
	return Hooks{
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
	}
}

func (l *eventLog) count(prefix string) int {
	n := 0
	for _, e := range l.entries {
		if len(e) >= len(prefix) && e[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

func singleQuestionPayload() models.ContentPayload {
	return models.ContentPayload{
		"questionText":      "What is the safe distance?",
		"options":           []any{"1 meter", "3 meters", "5 meters"},
		"isMultipleChoice":  false,
		"correctAnswers":    []any{float64(1)},
		"feedback":          "Correct, 3 meters.",
		"incorrectFeedback": "Not quite.",
	}
}

func multiQuestionPayload() models.ContentPayload {
	return models.ContentPayload{
		"questionText":     "Pick every required protection.",
		"options":          []any{"Helmet", "Sandals", "Gloves"},
		"isMultipleChoice": true,
		"correctAnswers":   []any{float64(0), float64(2)},
	}
}

func dialoguePayload() models.ContentPayload {
	return models.ContentPayload{
		"nodes": []any{
			map[string]any{"id": "start", "type": "start", "nextNodeId": "intro"},
			map[string]any{
				"id": "intro", "type": "dialogue",
				"speaker_en": "Foreman", "speaker_fr": "Chef",
				"text_en": "Welcome on site.", "text_fr": "Bienvenue sur le chantier.",
				"nextNodeId": "ask",
			},
			map[string]any{
				"id": "ask", "type": "choice",
				"choiceText_en": "What do you do first?",
				"choices": []any{
					map[string]any{"id": "c1", "text_en": "Put on the helmet", "isCorrect": true, "nextNodeId": "good"},
					map[string]any{"id": "c2", "text_en": "Start the machine", "isCorrect": false, "nextNodeId": "bad"},
				},
			},
			map[string]any{"id": "good", "type": "dialogue", "speaker_en": "Foreman", "text_en": "Exactly.", "nextNodeId": "fin"},
			map[string]any{"id": "bad", "type": "dialogue", "speaker_en": "Foreman", "text_en": "Dangerous.", "nextNodeId": "fin"},
			map[string]any{"id": "fin", "type": "end"},
		},
	}
}

func procedurePayload(keepProgress bool) models.ContentPayload {
	return models.ContentPayload{
		"keepProgressOnOtherClick": keepProgress,
		"errorMessage":             "Wrong object.",
		"steps": []any{
			map[string]any{
				"targetObjectName": "valve-a",
				"validationType":   "click",
				"instruction":      "Close the main valve.",
				"fakeObjects": []any{
					map[string]any{"objectName": "valve-b", "errorMessage": "That valve feeds the backup line."},
				},
			},
			map[string]any{
				"zoneObjectName": "control-zone",
				"validationType": "zone",
				"instruction":    "Walk to the control panel.",
			},
			map[string]any{
				"validationType": "manual",
				"instruction":    "Confirm the gauge reads zero.",
			},
		},
	}
}
