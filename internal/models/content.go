package models

// ContentType identifies which engine a payload is routed to.
type ContentType string

const (
	ContentTypeQuestion  ContentType = "question"
	ContentTypeDialogue  ContentType = "dialogue"
	ContentTypeProcedure ContentType = "procedure"
	ContentTypeText      ContentType = "text"
)

// ContentPayload is the raw, untyped payload attached to a scene object.
// Engines never read it directly; it is normalized into the typed
// structures below once per Display call.
type ContentPayload map[string]any

// LocalizedText is either a plain string or a per-language mapping.
// It is resolved lazily against the active language and never mutated
// after parse.
type LocalizedText struct {
	Plain  string            `bson:"plain,omitempty" json:"plain,omitempty"`
	ByLang map[string]string `bson:"by_lang,omitempty" json:"by_lang,omitempty"`
}

// IsZero reports whether no text was provided in any language.
func (t LocalizedText) IsZero() bool {
	return t.Plain == "" && len(t.ByLang) == 0
}

// QuestionSpec is one normalized quiz question.
type QuestionSpec struct {
	QuestionText      LocalizedText
	Options           []LocalizedText
	IsMultipleChoice  bool
	CorrectAnswers    []int
	Feedback          LocalizedText
	IncorrectFeedback LocalizedText
}

// DialogueNodeType categorizes nodes of a dialogue tree.
type DialogueNodeType string

const (
	DialogueNodeStart    DialogueNodeType = "start"
	DialogueNodeDialogue DialogueNodeType = "dialogue"
	DialogueNodeChoice   DialogueNodeType = "choice"
	DialogueNodeEnd      DialogueNodeType = "end"
)

// DialogueChoice is one selectable branch of a choice node.
type DialogueChoice struct {
	ID         string
	Text       LocalizedText
	IsCorrect  bool
	NextNodeID string
}

// DialogueNode is one node of a dialogue tree. A choice node is
// "evaluated" when at least one of its choices is flagged correct;
// otherwise it is neutral and only branches.
type DialogueNode struct {
	ID         string
	Type       DialogueNodeType
	Speaker    LocalizedText
	Text       LocalizedText
	ChoiceText LocalizedText
	NextNodeID string
	Choices    []DialogueChoice
}

// Evaluated reports whether the node carries a notion of correctness.
func (n *DialogueNode) Evaluated() bool {
	for _, c := range n.Choices {
		if c.IsCorrect {
			return true
		}
	}
	return false
}

// ValidationType selects the strategy that completes a procedure step.
type ValidationType string

const (
	ValidationClick  ValidationType = "click"
	ValidationZone   ValidationType = "zone"
	ValidationManual ValidationType = "manual"
)

// DecoyRef is a wrong-but-clickable target with its own error message.
type DecoyRef struct {
	ObjectName   string
	ErrorMessage LocalizedText
}

// ProcedureStep is one normalized step of a guided procedure.
type ProcedureStep struct {
	TargetObjectName string
	ZoneObjectName   string
	Title            LocalizedText
	Instruction      LocalizedText
	Hint             LocalizedText
	Validation       ValidationType
	Decoys           []DecoyRef
	ImageName        string
}

// ProcedureSpec is the normalized procedure payload.
type ProcedureSpec struct {
	Steps []ProcedureStep
	// KeepProgressOnOtherClick selects the soft reset policy: clicks
	// outside the armed set only count as errors instead of restarting
	// the procedure at step 0.
	KeepProgressOnOtherClick bool
	// GenericError is shown for wrong clicks that have no decoy-specific
	// message.
	GenericError LocalizedText
}

// TextSpec is the payload of the plain rich-text reader.
type TextSpec struct {
	Title LocalizedText
	Body  LocalizedText
}

// Content is a stored library entry binding a payload to a scene object.
type Content struct {
	ID          string         `bson:"_id,omitempty" json:"id"`
	ObjectID    string         `bson:"object_id" json:"object_id"`
	ContentType ContentType    `bson:"content_type" json:"content_type"`
	Payload     ContentPayload `bson:"payload" json:"payload"`
}
