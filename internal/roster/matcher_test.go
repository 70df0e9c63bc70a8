package roster

import (
	"errors"
	"testing"

	"github.com/vantor/schemacraft/internal/models"
)

func TestParse_WellFormed(t *testing.T) {
	m := NewMatcher(nil)

	p, err := m.Parse("CS101-ST007-er-diagram.png", "CS101")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if p.StudentCode != "ST007" {
		t.Errorf("StudentCode = %q, want %q", p.StudentCode, "ST007")
	}
	if p.Description != "er-diagram" {
		t.Errorf("Description = %q, want %q", p.Description, "er-diagram")
	}
}

func TestParse_Errors(t *testing.T) {
	m := NewMatcher(nil)

	cases := []struct {
		name     string
		filename string
		class    string
		reason   string
	}{
		{"bad extension", "CS101-ST007-diagram.exe", "CS101", "unsupported extension"},
		{"too few segments", "CS101-ST007.png", "CS101", "does not match required format"},
		{"class mismatch", "CS999-ST007-x.png", "CS101", "class code mismatch"},
		{"class case sensitive", "cs101-ST007-x.png", "CS101", "class code mismatch"},
		{"empty student code", "CS101--diagram.png", "CS101", "student code is empty"},
		{"empty description", "CS101-ST007-.png", "CS101", "description is empty"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := m.Parse(tc.filename, tc.class)
			if err == nil {
				t.Fatal("expected error")
			}
			var perr *ParseError
			if !errors.As(err, &perr) {
				t.Fatalf("error type = %T, want *ParseError", err)
			}
			if perr.Reason != tc.reason {
				t.Errorf("reason = %q, want %q", perr.Reason, tc.reason)
			}
		})
	}
}

func TestParse_ExtensionCaseInsensitive(t *testing.T) {
	m := NewMatcher(nil)
	if _, err := m.Parse("CS101-ST007-diagram.PNG", "CS101"); err != nil {
		t.Errorf("uppercase extension rejected: %v", err)
	}
}

func TestParse_CustomExtensions(t *testing.T) {
	m := NewMatcher([]string{"svg"})
	if _, err := m.Parse("CS101-ST007-diagram.svg", "CS101"); err != nil {
		t.Errorf("custom extension rejected: %v", err)
	}
	if _, err := m.Parse("CS101-ST007-diagram.png", "CS101"); err == nil {
		t.Error("default extension should not be allowed with custom list")
	}
}

func testRoster() []models.RosterEntry {
	return []models.RosterEntry{
		{ClassCode: "CS101", StudentCode: "ST001", Active: true},
		{ClassCode: "CS101", StudentCode: "ST002", Active: true},
		{ClassCode: "CS101", StudentCode: "ST003", Active: false},
		{ClassCode: "CS202", StudentCode: "ST009", Active: true},
	}
}

func TestValidateBatch_AllValid(t *testing.T) {
	m := NewMatcher(nil)
	v := m.ValidateBatch([]string{
		"CS101-ST001-er-diagram.png",
		"CS101-ST002-schema.pdf",
	}, "CS101", testRoster())

	if !v.OK() {
		t.Fatalf("invalid = %+v, want none", v.Invalid)
	}
	want := []string{"ST001", "ST002"}
	for i, code := range want {
		if v.StudentCodes[i] != code {
			t.Errorf("StudentCodes[%d] = %q, want %q", i, v.StudentCodes[i], code)
		}
	}
}

func TestValidateBatch_UnknownAndInactive(t *testing.T) {
	m := NewMatcher(nil)
	v := m.ValidateBatch([]string{
		"CS101-ST001-ok.png",
		"CS101-ST404-unknown.png",
		"CS101-ST003-inactive.png",
	}, "CS101", testRoster())

	if len(v.Invalid) != 2 {
		t.Fatalf("len(Invalid) = %d, want 2: %+v", len(v.Invalid), v.Invalid)
	}
	if v.Invalid[0].Filename != "CS101-ST404-unknown.png" {
		t.Errorf("Invalid[0] = %+v", v.Invalid[0])
	}
	if v.Invalid[1].Reason != "student is not active in this class" {
		t.Errorf("Invalid[1].Reason = %q", v.Invalid[1].Reason)
	}
}

func TestValidateBatch_OtherClassRosterIgnored(t *testing.T) {
	m := NewMatcher(nil)
	// ST009 is enrolled in CS202, not CS101.
	v := m.ValidateBatch([]string{"CS101-ST009-x.png"}, "CS101", testRoster())
	if v.OK() {
		t.Fatal("expected roster mismatch")
	}
	if v.Invalid[0].Reason != "student code not in class roster" {
		t.Errorf("reason = %q", v.Invalid[0].Reason)
	}
}

func TestValidateBatch_ParseFailureReported(t *testing.T) {
	m := NewMatcher(nil)
	v := m.ValidateBatch([]string{"CS101-ST001.png"}, "CS101", testRoster())
	if v.OK() {
		t.Fatal("expected parse failure")
	}
	if v.Invalid[0].Reason != "does not match required format" {
		t.Errorf("reason = %q", v.Invalid[0].Reason)
	}
}
