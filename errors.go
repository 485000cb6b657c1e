// Package domharness is a headless HTML + JavaScript test harness: it
// loads an HTML document into an in-process DOM, executes the document's
// scripts with its own interpreter, drives user interactions against CSS
// selectors, and asserts on the resulting tree. The façade mirrors the
// Engine/Worker split of the project this package's architecture follows:
// a root-level entry type over internal/<subsystem> packages.
package domharness

import (
	"errors"
	"fmt"

	"github.com/cryguy/domharness/internal/evaluator"
	"github.com/cryguy/domharness/internal/jsparser"
	"github.com/cryguy/domharness/internal/jsvalue"
)

// ScriptParseError reports a script syntax failure (error kind ScriptParse).
type ScriptParseError struct {
	Message string
}

func (e *ScriptParseError) Error() string { return "script parse error: " + e.Message }

// ScriptRuntimeError reports a runtime type/shape error, unknown variable,
// bad arity, or scheduler overflow (error kind ScriptRuntime).
type ScriptRuntimeError struct {
	Message string
}

func (e *ScriptRuntimeError) Error() string { return "script runtime error: " + e.Message }

// ScriptThrownError carries a user `throw` that escaped every try block
// (error kind ScriptThrown).
type ScriptThrownError struct {
	Value jsvalue.Value
}

func (e *ScriptThrownError) Error() string {
	return "uncaught script exception: " + jsvalue.AsString(e.Value)
}

// SelectorNotFoundError reports a select_one miss (error kind
// SelectorNotFound).
type SelectorNotFoundError struct {
	Selector string
}

func (e *SelectorNotFoundError) Error() string {
	return fmt.Sprintf("no element matches selector %q", e.Selector)
}

// TypeMismatchError reports an action against the wrong element kind.
type TypeMismatchError struct {
	Selector string
	Expected string
	Actual   string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("selector %q: expected %s, got %s", e.Selector, e.Expected, e.Actual)
}

// AssertionFailedError reports an assertion miss with a truncated DOM
// snippet for diagnosis (spec: snippet capped at 200 chars).
type AssertionFailedError struct {
	Selector   string
	Expected   string
	Actual     string
	DOMSnippet string
}

const domSnippetLimit = 200

func (e *AssertionFailedError) Error() string {
	return fmt.Sprintf("assertion failed for %q: expected %q, got %q (near %s)",
		e.Selector, e.Expected, e.Actual, e.DOMSnippet)
}

func truncateSnippet(s string) string {
	if len(s) > domSnippetLimit {
		return s[:domSnippetLimit]
	}
	return s
}

// wrapScriptErr maps internal evaluator/parser errors onto the public
// error kinds.
func wrapScriptErr(err error) error {
	if err == nil {
		return nil
	}
	var pe *jsparser.ParseError
	if errors.As(err, &pe) {
		return &ScriptParseError{Message: pe.Message}
	}
	var re *evaluator.RuntimeError
	if errors.As(err, &re) {
		return &ScriptRuntimeError{Message: re.Msg}
	}
	var te *evaluator.ThrownError
	if errors.As(err, &te) {
		return &ScriptThrownError{Value: te.Value}
	}
	return &ScriptRuntimeError{Message: err.Error()}
}
