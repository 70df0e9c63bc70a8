// Package roster parses uploaded artifact filenames into class/student
// identity and validates them against the class roster.
package roster

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/vantor/schemacraft/internal/models"
)

// DefaultExtensions is the allow-list of artifact extensions, matched
// case-insensitively.
var DefaultExtensions = []string{".png", ".jpg", ".jpeg", ".pdf", ".vuerd", ".erd", ".json"}

// ParseError reports why a filename failed to parse or match the roster.
type ParseError struct {
	Filename string
	Reason   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("roster: %s: %s", e.Filename, e.Reason)
}

// Parsed is the identity extracted from a well-formed filename.
type Parsed struct {
	StudentCode string
	Description string
}

// Matcher parses filenames of the form
// <classCode>-<studentCode>-<description>.<ext>.
type Matcher struct {
	allowed map[string]bool
}

// NewMatcher returns a Matcher accepting the given extensions, or
// DefaultExtensions when exts is empty.
func NewMatcher(exts []string) *Matcher {
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	allowed := make(map[string]bool, len(exts))
	for _, e := range exts {
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		allowed[strings.ToLower(e)] = true
	}
	return &Matcher{allowed: allowed}
}

// Parse applies the filename rules in order and returns the extracted
// identity or a ParseError naming the first rule that failed. The class
// code comparison is case-sensitive.
func (m *Matcher) Parse(filename, classCode string) (*Parsed, error) {
	ext := filepath.Ext(filename)
	if !m.allowed[strings.ToLower(ext)] {
		return nil, &ParseError{Filename: filename, Reason: "unsupported extension"}
	}

	name := strings.TrimSuffix(filename, ext)
	parts := strings.Split(name, "-")
	if len(parts) < 3 {
		return nil, &ParseError{Filename: filename, Reason: "does not match required format"}
	}
	if parts[0] != classCode {
		return nil, &ParseError{Filename: filename, Reason: "class code mismatch"}
	}
	if parts[1] == "" {
		return nil, &ParseError{Filename: filename, Reason: "student code is empty"}
	}
	description := strings.Join(parts[2:], "-")
	if description == "" {
		return nil, &ParseError{Filename: filename, Reason: "description is empty"}
	}

	return &Parsed{StudentCode: parts[1], Description: description}, nil
}

// InvalidFile pairs a rejected filename with its reason.
type InvalidFile struct {
	Filename string `json:"filename"`
	Reason   string `json:"reason"`
}

// Validation is the outcome of checking a whole batch of filenames. The
// batch is acceptable only when Invalid is empty; StudentCodes then holds
// one code per filename, in input order.
type Validation struct {
	StudentCodes []string
	Invalid      []InvalidFile
}

// OK reports whether every filename parsed and matched the roster.
func (v Validation) OK() bool { return len(v.Invalid) == 0 }

// ValidateBatch parses every filename and cross-checks each student code
// against the active roster entries. Codes absent from the roster, or
// present but inactive, are invalid.
func (m *Matcher) ValidateBatch(filenames []string, classCode string, entries []models.RosterEntry) Validation {
	active := make(map[string]bool, len(entries))
	for _, e := range entries {
		if e.ClassCode == classCode {
			active[e.StudentCode] = e.Active
		}
	}

	var v Validation
	for _, fn := range filenames {
		parsed, err := m.Parse(fn, classCode)
		if err != nil {
			var perr *ParseError
			if errors.As(err, &perr) {
				v.Invalid = append(v.Invalid, InvalidFile{Filename: fn, Reason: perr.Reason})
			} else {
				v.Invalid = append(v.Invalid, InvalidFile{Filename: fn, Reason: err.Error()})
			}
			v.StudentCodes = append(v.StudentCodes, "")
			continue
		}

		isActive, known := active[parsed.StudentCode]
		switch {
		case !known:
			v.Invalid = append(v.Invalid, InvalidFile{Filename: fn, Reason: "student code not in class roster"})
		case !isActive:
			v.Invalid = append(v.Invalid, InvalidFile{Filename: fn, Reason: "student is not active in this class"})
		}
		v.StudentCodes = append(v.StudentCodes, parsed.StudentCode)
	}
	return v
}
