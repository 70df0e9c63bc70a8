package conversation

// Refusal messages for the rejection rules. The wording is stable: clients
// and tests match on it.
const (
	msgPhysicalBlocksErd = "a physical schema already exists; ERD cannot be regenerated in this conversation"
	msgAlreadyExists     = "a schema of this type already exists; start a new conversation or modify the existing one"
	msgNothingToModify   = "no schema exists yet to modify"
)

// Evaluate runs the transition table for one classified event against the
// current state. Rules are checked top-down and the first match wins, so
// every input yields exactly one outcome. Evaluate is pure: persistence and
// collaborator calls happen in Service only after a non-reject decision.
func Evaluate(st State, ev ClassifiedIntent) Decision {
	// Rule 1: side questions never touch schema state.
	if ev.Intent == IntentSideQuestion {
		return Decision{Outcome: OutcomeAnswer}
	}

	hasAny := st.HasErd || st.HasPhysical

	// Rule 2: once a physical schema exists the ERD is frozen.
	if st.HasPhysical && ev.DiagramType == DiagramERD && ev.SchemaIntent == SchemaIntentCreate {
		return Decision{Outcome: OutcomeReject, RejectMessage: msgPhysicalBlocksErd}
	}

	// Rule 3: re-creating the artifact type the conversation already holds.
	if hasAny && ev.SchemaIntent == SchemaIntentCreate && ev.DiagramType == st.DiagramType {
		return Decision{Outcome: OutcomeReject, RejectMessage: msgAlreadyExists}
	}

	// Rule 4: nothing to modify yet.
	if !hasAny && ev.SchemaIntent == SchemaIntentModify {
		return Decision{Outcome: OutcomeReject, RejectMessage: msgNothingToModify}
	}

	// Rule 5: ERD → physical promotion goes through conversion, not a
	// fresh generation.
	if st.HasErd && !st.HasPhysical && ev.DiagramType == DiagramPhysical && ev.SchemaIntent == SchemaIntentCreate {
		return Decision{Outcome: OutcomeConvert, Target: DiagramPhysical}
	}

	// Rule 6: everything else is an allowed generation.
	return Decision{Outcome: OutcomeGenerate, Target: resolveTarget(st, ev)}
}

// resolveTarget picks the diagram type a generation should produce when the
// classifier left it unspecified: modifications target the current artifact,
// and a brand-new conversation starts with an ERD.
func resolveTarget(st State, ev ClassifiedIntent) DiagramType {
	if ev.DiagramType == DiagramERD || ev.DiagramType == DiagramPhysical {
		return ev.DiagramType
	}
	if ev.SchemaIntent == SchemaIntentModify && st.DiagramType != DiagramNone {
		return st.DiagramType
	}
	return DiagramERD
}
