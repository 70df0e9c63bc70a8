package conversation

import "testing"

func TestEvaluate_SideQuestionIsReadOnly(t *testing.T) {
	states := []State{
		{DiagramType: DiagramNone},
		{DiagramType: DiagramERD, HasErd: true},
		{DiagramType: DiagramPhysical, HasErd: true, HasPhysical: true},
	}
	for _, st := range states {
		dec := Evaluate(st, ClassifiedIntent{Intent: IntentSideQuestion, SchemaIntent: SchemaIntentCreate, DiagramType: DiagramERD})
		if dec.Outcome != OutcomeAnswer {
			t.Errorf("state %+v: outcome = %s, want answer", st, dec.Outcome)
		}
	}
}

func TestEvaluate_PhysicalBlocksErdRecreation(t *testing.T) {
	st := State{DiagramType: DiagramPhysical, HasErd: true, HasPhysical: true}
	dec := Evaluate(st, ClassifiedIntent{Intent: IntentSchema, SchemaIntent: SchemaIntentCreate, DiagramType: DiagramERD})
	if dec.Outcome != OutcomeReject {
		t.Fatalf("outcome = %s, want reject", dec.Outcome)
	}
	if dec.RejectMessage != msgPhysicalBlocksErd {
		t.Errorf("message = %q, want %q", dec.RejectMessage, msgPhysicalBlocksErd)
	}
}

func TestEvaluate_RecreateSameTypeRejected(t *testing.T) {
	cases := []struct {
		name string
		st   State
		ev   ClassifiedIntent
	}{
		{
			name: "erd over erd",
			st:   State{DiagramType: DiagramERD, HasErd: true},
			ev:   ClassifiedIntent{Intent: IntentSchema, SchemaIntent: SchemaIntentCreate, DiagramType: DiagramERD},
		},
		{
			name: "physical over physical",
			st:   State{DiagramType: DiagramPhysical, HasErd: true, HasPhysical: true},
			ev:   ClassifiedIntent{Intent: IntentSchema, SchemaIntent: SchemaIntentCreate, DiagramType: DiagramPhysical},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dec := Evaluate(tc.st, tc.ev)
			if dec.Outcome != OutcomeReject {
				t.Fatalf("outcome = %s, want reject", dec.Outcome)
			}
			if dec.RejectMessage != msgAlreadyExists {
				t.Errorf("message = %q, want %q", dec.RejectMessage, msgAlreadyExists)
			}
		})
	}
}

func TestEvaluate_ModifyWithoutSchemaRejected(t *testing.T) {
	dec := Evaluate(State{DiagramType: DiagramNone}, ClassifiedIntent{
		Intent: IntentSchema, SchemaIntent: SchemaIntentModify, DiagramType: DiagramERD,
	})
	if dec.Outcome != OutcomeReject {
		t.Fatalf("outcome = %s, want reject", dec.Outcome)
	}
	if dec.RejectMessage != msgNothingToModify {
		t.Errorf("message = %q, want %q", dec.RejectMessage, msgNothingToModify)
	}
}

func TestEvaluate_ErdToPhysicalConverts(t *testing.T) {
	st := State{DiagramType: DiagramERD, HasErd: true}
	dec := Evaluate(st, ClassifiedIntent{Intent: IntentSchema, SchemaIntent: SchemaIntentCreate, DiagramType: DiagramPhysical})
	if dec.Outcome != OutcomeConvert {
		t.Fatalf("outcome = %s, want convert", dec.Outcome)
	}
	if dec.Target != DiagramPhysical {
		t.Errorf("target = %s, want physical", dec.Target)
	}
}

func TestEvaluate_FreshCreateGenerates(t *testing.T) {
	dec := Evaluate(State{DiagramType: DiagramNone}, ClassifiedIntent{
		Intent: IntentSchema, SchemaIntent: SchemaIntentCreate, DiagramType: DiagramERD,
	})
	if dec.Outcome != OutcomeGenerate {
		t.Fatalf("outcome = %s, want generate", dec.Outcome)
	}
	if dec.Target != DiagramERD {
		t.Errorf("target = %s, want erd", dec.Target)
	}
}

func TestEvaluate_ModifyTargetsCurrentDiagram(t *testing.T) {
	st := State{DiagramType: DiagramPhysical, HasErd: true, HasPhysical: true}
	dec := Evaluate(st, ClassifiedIntent{Intent: IntentSchema, SchemaIntent: SchemaIntentModify})
	if dec.Outcome != OutcomeGenerate {
		t.Fatalf("outcome = %s, want generate", dec.Outcome)
	}
	if dec.Target != DiagramPhysical {
		t.Errorf("target = %s, want physical", dec.Target)
	}
}

func TestEvaluate_UnspecifiedTargetDefaultsToErd(t *testing.T) {
	dec := Evaluate(State{DiagramType: DiagramNone}, ClassifiedIntent{
		Intent: IntentSchema, SchemaIntent: SchemaIntentCreate,
	})
	if dec.Outcome != OutcomeGenerate || dec.Target != DiagramERD {
		t.Errorf("got (%s, %s), want (generate, erd)", dec.Outcome, dec.Target)
	}
}

// Every combination of state and event must yield exactly one outcome, and
// evaluating twice must agree — the table is deterministic.
func TestEvaluate_Deterministic(t *testing.T) {
	states := []State{
		{DiagramType: DiagramNone},
		{DiagramType: DiagramERD, HasErd: true},
		{DiagramType: DiagramPhysical, HasPhysical: true},
		{DiagramType: DiagramPhysical, HasErd: true, HasPhysical: true},
	}
	intents := []Intent{IntentSchema, IntentSideQuestion}
	schemaIntents := []SchemaIntent{SchemaIntentNone, SchemaIntentCreate, SchemaIntentModify}
	diagrams := []DiagramType{"", DiagramERD, DiagramPhysical}

	for _, st := range states {
		for _, in := range intents {
			for _, si := range schemaIntents {
				for _, dt := range diagrams {
					ev := ClassifiedIntent{Intent: in, SchemaIntent: si, DiagramType: dt}
					first := Evaluate(st, ev)
					second := Evaluate(st, ev)
					if first != second {
						t.Errorf("state %+v event %+v: %+v != %+v", st, ev, first, second)
					}
					if first.Outcome == OutcomeReject && first.RejectMessage == "" {
						t.Errorf("state %+v event %+v: reject without message", st, ev)
					}
				}
			}
		}
	}
}
