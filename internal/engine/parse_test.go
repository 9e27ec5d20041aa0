package engine

import (
	"reflect"
	"testing"

	"content-service/internal/models"
)

func TestExtractAnswersShapes(t *testing.T) {
	testCases := []struct {
		name     string
		input    any
		expected []int
		wantErr  bool
	}{
		{"comma string", "0,2", []int{0, 2}, false},
		{"semicolon string", "1;3", []int{1, 3}, false},
		{"spaced string", "2 0", []int{2, 0}, false},
		{"json array string", "[0, 2]", []int{0, 2}, false},
		{"float array", []any{float64(0), float64(2)}, []int{0, 2}, false},
		{"string array", []any{"1", "2"}, []int{1, 2}, false},
		{"single number", float64(3), []int{3}, false},
		{"duplicates collapse", "0,0,2", []int{0, 2}, false},
		{"nil", nil, nil, false},
		{"garbage string", "a,b", nil, true},
		{"unsupported shape", map[string]any{"x": 1}, nil, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ExtractAnswers(tc.input)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tc.expected) {
				t.Errorf("expected %v, got %v", tc.expected, got)
			}
		})
	}
}

func TestParseQuestionsRejectsBadContent(t *testing.T) {
	testCases := []struct {
		name    string
		payload models.ContentPayload
	}{
		{"no options", models.ContentPayload{"questionText": "q", "correctAnswers": "0"}},
		{"empty options", models.ContentPayload{"questionText": "q", "options": []any{}, "correctAnswers": "0"}},
		{"no answers", models.ContentPayload{"questionText": "q", "options": []any{"a", "b"}}},
		{"answer out of range", models.ContentPayload{"questionText": "q", "options": []any{"a", "b"}, "correctAnswers": "5"}},
		{"bad sequence entry", models.ContentPayload{"questions": []any{"not an object"}}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseQuestions(tc.payload); err == nil {
				t.Fatal("expected content error")
			}
		})
	}
}

func TestParseQuestionsSingleSelectUsesFirstIndex(t *testing.T) {
	payload := models.ContentPayload{
		"questionText":   "q",
		"options":        []any{"a", "b", "c"},
		"correctAnswers": "2,0",
	}
	specs, err := ParseQuestions(payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(specs) != 1 {
		t.Fatalf("expected one question, got %d", len(specs))
	}
	if !reflect.DeepEqual(specs[0].CorrectAnswers, []int{2}) {
		t.Errorf("expected single-select to keep first index only, got %v", specs[0].CorrectAnswers)
	}
}

func TestParseQuestionsSequence(t *testing.T) {
	payload := models.ContentPayload{
		"questions": []any{
			map[string]any(singleQuestionPayload()),
			map[string]any(multiQuestionPayload()),
		},
	}
	specs, err := ParseQuestions(payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(specs) != 2 {
		t.Fatalf("expected two questions, got %d", len(specs))
	}
	if specs[0].IsMultipleChoice || !specs[1].IsMultipleChoice {
		t.Error("multiple-choice flags not preserved")
	}
	if !reflect.DeepEqual(specs[1].CorrectAnswers, []int{0, 2}) {
		t.Errorf("expected multi answers [0 2], got %v", specs[1].CorrectAnswers)
	}
}

func TestParseDialogueValidation(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(models.ContentPayload)
		wantErr bool
	}{
		{"valid graph", func(models.ContentPayload) {}, false},
		{"dangling nextNodeId", func(p models.ContentPayload) {
			nodes := p["nodes"].([]any)
			nodes[1].(map[string]any)["nextNodeId"] = "ghost"
		}, true},
		{"dangling choice target", func(p models.ContentPayload) {
			nodes := p["nodes"].([]any)
			choices := nodes[2].(map[string]any)["choices"].([]any)
			choices[0].(map[string]any)["nextNodeId"] = "ghost"
		}, true},
		{"choice node without choices", func(p models.ContentPayload) {
			nodes := p["nodes"].([]any)
			delete(nodes[2].(map[string]any), "choices")
		}, true},
		{"unknown node type", func(p models.ContentPayload) {
			nodes := p["nodes"].([]any)
			nodes[1].(map[string]any)["type"] = "monologue"
		}, true},
		{"start node pointing at itself", func(p models.ContentPayload) {
			nodes := p["nodes"].([]any)
			nodes[0].(map[string]any)["nextNodeId"] = "start"
		}, true},
		{"cycle of start nodes", func(p models.ContentPayload) {
			nodes := p["nodes"].([]any)
			nodes[0].(map[string]any)["nextNodeId"] = "start2"
			p["nodes"] = append(nodes, map[string]any{"id": "start2", "type": "start", "nextNodeId": "start"})
		}, true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			payload := dialoguePayload()
			tc.mutate(payload)
			_, _, err := ParseDialogue(payload)
			if tc.wantErr && err == nil {
				t.Fatal("expected content error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestParseDialogueSuffixedLocalization(t *testing.T) {
	nodes, startID, err := ParseDialogue(dialoguePayload())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if startID != "start" {
		t.Fatalf("expected start node, got %q", startID)
	}
	intro := nodes["intro"]
	if intro.Speaker.ByLang["fr"] != "Chef" {
		t.Errorf("expected suffixed speaker_fr collected, got %v", intro.Speaker.ByLang)
	}
	if intro.Text.ByLang["en"] != "Welcome on site." {
		t.Errorf("expected suffixed text_en collected, got %v", intro.Text.ByLang)
	}
}

func TestParseProcedure(t *testing.T) {
	spec, err := ParseProcedure(procedurePayload(true))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !spec.KeepProgressOnOtherClick {
		t.Error("keepProgressOnOtherClick flag lost")
	}
	if len(spec.Steps) != 3 {
		t.Fatalf("expected 3 steps, got %d", len(spec.Steps))
	}
	if spec.Steps[0].Validation != models.ValidationClick ||
		spec.Steps[1].Validation != models.ValidationZone ||
		spec.Steps[2].Validation != models.ValidationManual {
		t.Error("validation types not preserved")
	}
	if len(spec.Steps[0].Decoys) != 1 || spec.Steps[0].Decoys[0].ObjectName != "valve-b" {
		t.Errorf("decoys not parsed: %+v", spec.Steps[0].Decoys)
	}
}

func TestParseProcedureRejectsBadSteps(t *testing.T) {
	testCases := []struct {
		name    string
		payload models.ContentPayload
	}{
		{"no steps", models.ContentPayload{}},
		{"click without target", models.ContentPayload{"steps": []any{map[string]any{"validationType": "click"}}}},
		{"zone without zone", models.ContentPayload{"steps": []any{map[string]any{"validationType": "zone"}}}},
		{"unknown validation", models.ContentPayload{"steps": []any{map[string]any{"validationType": "telepathy"}}}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseProcedure(tc.payload); err == nil {
				t.Fatal("expected content error")
			}
		})
	}
}
