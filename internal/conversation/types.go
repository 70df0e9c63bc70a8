// Package conversation tracks per-conversation schema state and decides,
// before any generation call, whether a message may create, modify, or
// convert the conversation's design artifact.
package conversation

// Intent is the coarse classification of a user message.
type Intent string

// Intent values.
const (
	IntentSchema       Intent = "schema"
	IntentSideQuestion Intent = "side-question"
)

// SchemaIntent distinguishes creating a new artifact from modifying the
// existing one. Empty means the message carries no schema intent.
type SchemaIntent string

// SchemaIntent values.
const (
	SchemaIntentNone   SchemaIntent = ""
	SchemaIntentCreate SchemaIntent = "create"
	SchemaIntentModify SchemaIntent = "modify"
)

// DiagramType identifies which structured representation is targeted or
// currently held: conceptual (ERD) or physical (database schema with DDL).
type DiagramType string

// DiagramType values. These match the strings stored on models.Conversation.
const (
	DiagramNone     DiagramType = "none"
	DiagramERD      DiagramType = "erd"
	DiagramPhysical DiagramType = "physical_db"
)

// ClassifiedIntent is the event produced by the external intent classifier
// for one user message.
type ClassifiedIntent struct {
	Intent           Intent       `json:"intent"`
	SchemaIntent     SchemaIntent `json:"schemaIntent"`
	DiagramType      DiagramType  `json:"diagramType"`
	Domain           string       `json:"domain"`
	DomainConfidence float64      `json:"domainConfidence"`
	Confidence       float64      `json:"confidence"`
}

// State is the schema-relevant view of a conversation.
type State struct {
	DiagramType DiagramType
	HasErd      bool
	HasPhysical bool
}

// Outcome is the tracker's decision for one event.
type Outcome int

// Outcome values.
const (
	// OutcomeAnswer: side question, read-only, no state transition.
	OutcomeAnswer Outcome = iota
	// OutcomeReject: a transition rule was violated; respond with a
	// deterministic refusal and change nothing but the message log.
	OutcomeReject
	// OutcomeConvert: promote the existing ERD to a physical schema via
	// the conversion collaborator.
	OutcomeConvert
	// OutcomeGenerate: delegate to the generation collaborator.
	OutcomeGenerate
)

// String returns the outcome name for logs and tests.
func (o Outcome) String() string {
	switch o {
	case OutcomeAnswer:
		return "answer"
	case OutcomeReject:
		return "reject"
	case OutcomeConvert:
		return "convert"
	case OutcomeGenerate:
		return "generate"
	}
	return "unknown"
}

// Decision is the result of evaluating the transition table. Target is the
// diagram type a Generate/Convert outcome should produce.
type Decision struct {
	Outcome       Outcome
	Target        DiagramType
	RejectMessage string
}
