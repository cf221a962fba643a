// Package diag defines the non-fatal problems an analysis run reports next to
// the graph it produces.
package diag

import (
	"fmt"
	"sort"
)

// Severity of a warning
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Kind classifies the cause of a warning
type Kind string

const (
	// MalformedArtifact: a byte stream is not a valid class file; it was skipped
	MalformedArtifact Kind = "MalformedArtifact"
	// UnresolvedReference: a demand-side marker had no matching supply side
	UnresolvedReference Kind = "UnresolvedReference"
	// DuplicateIdentity: distinct classes collapsed onto one node with different roles
	DuplicateIdentity Kind = "DuplicateIdentity"
	// ConfigurationError: an invalid option; fatal before scanning, never collected
	ConfigurationError Kind = "ConfigurationError"
)

// Warning is one recorded problem
type Warning struct {
	Severity Severity `json:"severity"`
	Kind     Kind     `json:"kind"`
	Subject  string   `json:"subject"` // artifact, class or node identity the warning is about
	Message  string   `json:"message"`
}

func (w Warning) String() string {
	return fmt.Sprintf("[%s] %s %s: %s", w.Severity, w.Kind, w.Subject, w.Message)
}

// Malformed builds a MalformedArtifact warning
func Malformed(artifact string, err error) Warning {
	return Warning{
		Severity: SeverityError,
		Kind:     MalformedArtifact,
		Subject:  artifact,
		Message:  err.Error(),
	}
}

// Unresolved builds an UnresolvedReference warning
func Unresolved(subject, format string, args ...any) Warning {
	return Warning{
		Severity: SeverityInfo,
		Kind:     UnresolvedReference,
		Subject:  subject,
		Message:  fmt.Sprintf(format, args...),
	}
}

// Duplicate builds a DuplicateIdentity warning
func Duplicate(identity, format string, args ...any) Warning {
	return Warning{
		Severity: SeverityWarning,
		Kind:     DuplicateIdentity,
		Subject:  identity,
		Message:  fmt.Sprintf(format, args...),
	}
}

// Warnings is an ordered warning list
type Warnings []Warning

// Count returns how many warnings are of the given kind
func (ws Warnings) Count(kind Kind) int {
	n := 0
	for _, w := range ws {
		if w.Kind == kind {
			n++
		}
	}
	return n
}

// OfKind returns the warnings of the given kind
func (ws Warnings) OfKind(kind Kind) Warnings {
	var out Warnings
	for _, w := range ws {
		if w.Kind == kind {
			out = append(out, w)
		}
	}
	return out
}

// Sort orders warnings by kind, subject and message
func (ws Warnings) Sort() {
	sort.SliceStable(ws, func(i, j int) bool {
		a, b := ws[i], ws[j]
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		if a.Subject != b.Subject {
			return a.Subject < b.Subject
		}
		return a.Message < b.Message
	})
}
