package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"content-service/internal/models"
)

// Payload normalization happens once, at the Display boundary. The raw
// payloads are authored JSON and may arrive either decoded from HTTP
// bodies or out of Mongo, so scalar shapes vary (float64 vs int32,
// delimited strings vs arrays). Everything past this file works on the
// typed structures in internal/models.

// contentError marks payload shape problems: malformed content aborts
// the flow instead of crashing it.
type contentError struct {
	reason string
}

func (e *contentError) Error() string { return "content error: " + e.reason }

func contentErrorf(format string, args ...any) error {
	return &contentError{reason: fmt.Sprintf(format, args...)}
}

// IsContentError reports whether err came from payload validation.
func IsContentError(err error) bool {
	var ce *contentError
	return errors.As(err, &ce)
}

// ParseQuestions normalizes a question payload. The payload carries
// either a single question at the top level or an ordered "questions"
// sequence.
func ParseQuestions(payload models.ContentPayload) ([]models.QuestionSpec, error) {
	var raws []map[string]any
	if seq, ok := payload["questions"].([]any); ok {
		for i, item := range seq {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, contentErrorf("questions[%d] is not an object", i)
			}
			raws = append(raws, m)
		}
	} else {
		raws = append(raws, payload)
	}
	if len(raws) == 0 {
		return nil, contentErrorf("question payload has no questions")
	}

	specs := make([]models.QuestionSpec, 0, len(raws))
	for i, raw := range raws {
		spec, err := parseQuestion(raw)
		if err != nil {
			return nil, contentErrorf("question %d: %v", i, err)
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func parseQuestion(raw map[string]any) (models.QuestionSpec, error) {
	spec := models.QuestionSpec{
		QuestionText:      parseLocalized(raw, "questionText"),
		IsMultipleChoice:  asBool(raw["isMultipleChoice"]),
		Feedback:          parseLocalized(raw, "feedback"),
		IncorrectFeedback: parseLocalized(raw, "incorrectFeedback"),
	}

	opts, ok := raw["options"].([]any)
	if !ok || len(opts) == 0 {
		return spec, fmt.Errorf("empty options")
	}
	for _, o := range opts {
		spec.Options = append(spec.Options, localizedValue(o))
	}

	answers, err := ExtractAnswers(raw["correctAnswers"])
	if err != nil {
		return spec, err
	}
	if len(answers) == 0 {
		return spec, fmt.Errorf("no correct answers declared")
	}
	for _, idx := range answers {
		if idx < 0 || idx >= len(spec.Options) {
			return spec, fmt.Errorf("correct answer index %d out of range (%d options)", idx, len(spec.Options))
		}
	}
	if !spec.IsMultipleChoice {
		// Single-select uses exactly the first declared index.
		answers = answers[:1]
	}
	spec.CorrectAnswers = answers
	return spec, nil
}

// ExtractAnswers tolerates correct-answer data arriving as a delimited
// string ("0,2"), a homogeneous array, a JSON-array-like structure, or a
// single number, and normalizes it to a de-duplicated index list.
func ExtractAnswers(v any) ([]int, error) {
	var out []int
	seen := make(map[int]bool)
	add := func(idx int) {
		if !seen[idx] {
			seen[idx] = true
			out = append(out, idx)
		}
	}

	switch t := v.(type) {
	case nil:
		return nil, nil
	case string:
		s := strings.TrimSpace(t)
		if strings.HasPrefix(s, "[") {
			var arr []any
			if err := json.Unmarshal([]byte(s), &arr); err != nil {
				return nil, fmt.Errorf("correct answers %q: %w", t, err)
			}
			return ExtractAnswers(arr)
		}
		for _, part := range strings.FieldsFunc(s, func(r rune) bool {
			return r == ',' || r == ';' || r == ' '
		}) {
			idx, err := strconv.Atoi(part)
			if err != nil {
				return nil, fmt.Errorf("correct answers %q: bad index %q", t, part)
			}
			add(idx)
		}
		return out, nil
	case []any:
		for _, item := range t {
			idx, ok := asInt(item)
			if !ok {
				s, isStr := item.(string)
				if !isStr {
					return nil, fmt.Errorf("correct answer %v is not an index", item)
				}
				parsed, err := strconv.Atoi(strings.TrimSpace(s))
				if err != nil {
					return nil, fmt.Errorf("correct answer %q is not an index", s)
				}
				idx = parsed
			}
			add(idx)
		}
		return out, nil
	default:
		if idx, ok := asInt(v); ok {
			return []int{idx}, nil
		}
		return nil, fmt.Errorf("unsupported correct answers shape %T", v)
	}
}

// ParseDialogue normalizes a dialogue payload: a "nodes" sequence plus an
// optional "startNodeId". Every nextNodeId must resolve or be empty.
func ParseDialogue(payload models.ContentPayload) (map[string]*models.DialogueNode, string, error) {
	rawNodes, ok := payload["nodes"].([]any)
	if !ok || len(rawNodes) == 0 {
		return nil, "", contentErrorf("dialogue payload has no nodes")
	}

	nodes := make(map[string]*models.DialogueNode, len(rawNodes))
	order := make([]string, 0, len(rawNodes))
	for i, item := range rawNodes {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, "", contentErrorf("nodes[%d] is not an object", i)
		}
		node, err := parseDialogueNode(m, i)
		if err != nil {
			return nil, "", err
		}
		if _, dup := nodes[node.ID]; dup {
			return nil, "", contentErrorf("duplicate node id %q", node.ID)
		}
		nodes[node.ID] = node
		order = append(order, node.ID)
	}

	startID := asString(payload["startNodeId"])
	if startID == "" {
		for _, id := range order {
			if nodes[id].Type == models.DialogueNodeStart {
				startID = id
				break
			}
		}
	}
	if startID == "" {
		startID = order[0]
	}
	if _, ok := nodes[startID]; !ok {
		return nil, "", contentErrorf("start node %q does not exist", startID)
	}

	// Every referenced node must exist; an empty reference means session
	// end and is fine. The graph need not be acyclic.
	for _, node := range nodes {
		if node.NextNodeID != "" {
			if _, ok := nodes[node.NextNodeID]; !ok {
				return nil, "", contentErrorf("node %q points at missing node %q", node.ID, node.NextNodeID)
			}
		}
		for _, c := range node.Choices {
			if c.NextNodeID != "" {
				if _, ok := nodes[c.NextNodeID]; !ok {
					return nil, "", contentErrorf("choice %q of node %q points at missing node %q", c.ID, node.ID, c.NextNodeID)
				}
			}
		}
		if node.Type == models.DialogueNodeChoice && len(node.Choices) == 0 {
			return nil, "", contentErrorf("choice node %q has no choices", node.ID)
		}
	}

	// Start nodes redirect without rendering, so a redirect chain made
	// only of start nodes must terminate or traversal never surfaces a
	// visible state.
	for _, node := range nodes {
		if node.Type != models.DialogueNodeStart {
			continue
		}
		seen := map[string]bool{node.ID: true}
		next := nodes[node.NextNodeID]
		for next != nil && next.Type == models.DialogueNodeStart {
			if seen[next.ID] {
				return nil, "", contentErrorf("start node %q redirects in a cycle", node.ID)
			}
			seen[next.ID] = true
			next = nodes[next.NextNodeID]
		}
	}

	return nodes, startID, nil
}

func parseDialogueNode(m map[string]any, idx int) (*models.DialogueNode, error) {
	node := &models.DialogueNode{
		ID:         asString(m["id"]),
		Type:       models.DialogueNodeType(asString(m["type"])),
		Speaker:    parseLocalized(m, "speaker"),
		Text:       parseLocalized(m, "text"),
		ChoiceText: parseLocalized(m, "choiceText"),
		NextNodeID: asString(m["nextNodeId"]),
	}
	if node.ID == "" {
		return nil, contentErrorf("nodes[%d] has no id", idx)
	}
	switch node.Type {
	case models.DialogueNodeStart, models.DialogueNodeDialogue, models.DialogueNodeChoice, models.DialogueNodeEnd:
	default:
		return nil, contentErrorf("node %q has unknown type %q", node.ID, asString(m["type"]))
	}

	if rawChoices, ok := m["choices"].([]any); ok {
		for i, item := range rawChoices {
			cm, ok := item.(map[string]any)
			if !ok {
				return nil, contentErrorf("node %q choices[%d] is not an object", node.ID, i)
			}
			choice := models.DialogueChoice{
				ID:         asString(cm["id"]),
				Text:       parseLocalized(cm, "text"),
				IsCorrect:  asBool(cm["isCorrect"]),
				NextNodeID: asString(cm["nextNodeId"]),
			}
			if choice.ID == "" {
				choice.ID = fmt.Sprintf("%s-%d", node.ID, i)
			}
			node.Choices = append(node.Choices, choice)
		}
	}
	return node, nil
}

// ParseProcedure normalizes a procedure payload: an ordered "steps"
// sequence, the progress-reset flag and the generic error message.
func ParseProcedure(payload models.ContentPayload) (models.ProcedureSpec, error) {
	var spec models.ProcedureSpec
	rawSteps, ok := payload["steps"].([]any)
	if !ok || len(rawSteps) == 0 {
		return spec, contentErrorf("procedure payload has no steps")
	}

	for i, item := range rawSteps {
		m, ok := item.(map[string]any)
		if !ok {
			return spec, contentErrorf("steps[%d] is not an object", i)
		}
		step := models.ProcedureStep{
			TargetObjectName: asString(m["targetObjectName"]),
			ZoneObjectName:   asString(m["zoneObjectName"]),
			Title:            parseLocalized(m, "title"),
			Instruction:      parseLocalized(m, "instruction"),
			Hint:             parseLocalized(m, "hint"),
			ImageName:        asString(m["image"]),
		}
		switch vt := models.ValidationType(asString(m["validationType"])); vt {
		case models.ValidationClick, models.ValidationZone, models.ValidationManual:
			step.Validation = vt
		case "":
			step.Validation = models.ValidationClick
		default:
			return spec, contentErrorf("steps[%d] has unknown validationType %q", i, asString(m["validationType"]))
		}
		if step.Validation == models.ValidationClick && step.TargetObjectName == "" {
			return spec, contentErrorf("steps[%d] is a click step without targetObjectName", i)
		}
		if step.Validation == models.ValidationZone && step.ZoneObjectName == "" {
			return spec, contentErrorf("steps[%d] is a zone step without zoneObjectName", i)
		}

		if fakes, ok := m["fakeObjects"].([]any); ok {
			for j, f := range fakes {
				fm, ok := f.(map[string]any)
				if !ok {
					return spec, contentErrorf("steps[%d].fakeObjects[%d] is not an object", i, j)
				}
				name := asString(fm["objectName"])
				if name == "" {
					return spec, contentErrorf("steps[%d].fakeObjects[%d] has no objectName", i, j)
				}
				step.Decoys = append(step.Decoys, models.DecoyRef{
					ObjectName:   name,
					ErrorMessage: parseLocalized(fm, "errorMessage"),
				})
			}
		}
		spec.Steps = append(spec.Steps, step)
	}

	spec.KeepProgressOnOtherClick = asBool(payload["keepProgressOnOtherClick"])
	spec.GenericError = parseLocalized(payload, "errorMessage")
	return spec, nil
}

// ParseText normalizes a plain rich-text payload.
func ParseText(payload models.ContentPayload) (models.TextSpec, error) {
	spec := models.TextSpec{
		Title: parseLocalized(payload, "title"),
		Body:  parseLocalized(payload, "text"),
	}
	if spec.Body.IsZero() {
		spec.Body = parseLocalized(payload, "body")
	}
	if spec.Body.IsZero() {
		return spec, contentErrorf("text payload has no body")
	}
	return spec, nil
}

// parseLocalized collects a field that is either a plain string, a
// language map, or spread over suffixed keys (text_en, text_fr, ...).
func parseLocalized(m map[string]any, key string) models.LocalizedText {
	if v, ok := m[key]; ok {
		if t := localizedValue(v); !t.IsZero() {
			return t
		}
	}
	byLang := make(map[string]string)
	prefix := key + "_"
	for k, v := range m {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		lang := k[len(prefix):]
		if s := asString(v); lang != "" && s != "" {
			byLang[lang] = s
		}
	}
	if len(byLang) == 0 {
		return models.LocalizedText{}
	}
	return models.LocalizedText{ByLang: byLang}
}

func localizedValue(v any) models.LocalizedText {
	switch t := v.(type) {
	case string:
		return models.LocalizedText{Plain: t}
	case map[string]any:
		byLang := make(map[string]string, len(t))
		for lang, raw := range t {
			if s := asString(raw); s != "" {
				byLang[lang] = s
			}
		}
		if len(byLang) == 0 {
			return models.LocalizedText{}
		}
		return models.LocalizedText{ByLang: byLang}
	case map[string]string:
		byLang := make(map[string]string, len(t))
		for lang, s := range t {
			if s != "" {
				byLang[lang] = s
			}
		}
		return models.LocalizedText{ByLang: byLang}
	default:
		return models.LocalizedText{}
	}
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t == "true" || t == "1"
	default:
		return false
	}
}

func asInt(v any) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case int32:
		return int(t), true
	case int64:
		return int(t), true
	case float64:
		return int(t), true
	case json.Number:
		n, err := t.Int64()
		if err != nil {
			return 0, false
		}
		return int(n), true
	default:
		return 0, false
	}
}
