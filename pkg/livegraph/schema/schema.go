// Package schema validates node configuration maps against CUE schemas.
//
// A schema is a CUE struct describing the accepted top-level keys:
//
//	s, err := schema.Compile(`{
//	    model:        string
//	    temperature?: number & >=0 & <=2
//	}`)
//
// Validate reports every problem as a structured Issue. Keys that the
// schema does not declare are reported together as a single
// IssueUnrecognizedKeys issue at the top level, which is what the
// reconciler's config retry looks for. Keys rejected by a closed nested
// struct are reported with the path of that struct and are never
// stripped.
package schema

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

// IssueCode classifies a validation issue.
type IssueCode string

const (
	// IssueUnrecognizedKeys lists keys the schema does not declare.
	IssueUnrecognizedKeys IssueCode = "unrecognized_keys"
	// IssueInvalid is any other constraint violation.
	IssueInvalid IssueCode = "invalid"
)

// Issue is one validation problem.
type Issue struct {
	Code IssueCode `json:"code"`
	// Path locates the problem; empty means the top level.
	Path []string `json:"path,omitempty"`
	// Keys is set for IssueUnrecognizedKeys.
	Keys    []string `json:"keys,omitempty"`
	Message string   `json:"message"`
}

// ValidationError carries every issue found in one validation pass.
type ValidationError struct {
	Issues []Issue
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Issues))
	for _, is := range e.Issues {
		if len(is.Path) > 0 {
			parts = append(parts, strings.Join(is.Path, ".")+": "+is.Message)
			continue
		}
		parts = append(parts, is.Message)
	}
	return "config validation failed: " + strings.Join(parts, "; ")
}

// UnrecognizedTopLevelKeys returns the union of unrecognized keys when every
// issue is a top-level IssueUnrecognizedKeys. ok is false when any other
// issue is present.
func (e *ValidationError) UnrecognizedTopLevelKeys() (keys []string, ok bool) {
	if len(e.Issues) == 0 {
		return nil, false
	}
	for _, is := range e.Issues {
		if is.Code != IssueUnrecognizedKeys || len(is.Path) > 0 {
			return nil, false
		}
		keys = append(keys, is.Keys...)
	}
	return keys, len(keys) > 0
}

// UnrecognizedKeys builds a ValidationError listing keys at the top level.
// Node implementations that validate by hand use it to opt into the
// reconciler's key-stripping retry.
func UnrecognizedKeys(keys ...string) *ValidationError {
	return &ValidationError{Issues: []Issue{{
		Code:    IssueUnrecognizedKeys,
		Keys:    keys,
		Message: fmt.Sprintf("unrecognized key(s): %s", strings.Join(keys, ", ")),
	}}}
}

// Schema is a compiled CUE schema. It is safe for concurrent use.
type Schema struct {
	mu     sync.Mutex
	ctx    *cue.Context
	value  cue.Value
	source string
	fields []string
}

// Compile parses src as a CUE struct.
func Compile(src string) (*Schema, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(src)
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	if v.IncompleteKind() != cue.StructKind {
		return nil, fmt.Errorf("compile schema: expected a struct, got %s", v.IncompleteKind())
	}

	iter, err := v.Fields(cue.Optional(true))
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	var fields []string
	for iter.Next() {
		sel := iter.Selector()
		if sel.LabelType() != cue.StringLabel {
			continue
		}
		fields = append(fields, sel.Unquoted())
	}
	slices.Sort(fields)

	return &Schema{ctx: ctx, value: v, source: src, fields: fields}, nil
}

// MustCompile is like Compile but panics on error. Intended for package
// level template declarations.
func MustCompile(src string) *Schema {
	s, err := Compile(src)
	if err != nil {
		panic(err)
	}
	return s
}

// Fields returns the declared top-level keys in sorted order.
func (s *Schema) Fields() []string {
	return slices.Clone(s.fields)
}

// Source returns the CUE source the schema was compiled from.
func (s *Schema) Source() string {
	return s.source
}

// Validate checks cfg against the schema. It returns nil or a
// *ValidationError.
func (s *Schema) Validate(cfg map[string]any) error {
	var issues []Issue

	known := make(map[string]any, len(cfg))
	var unknown []string
	for k, v := range cfg {
		if _, found := slices.BinarySearch(s.fields, k); found {
			known[k] = v
			continue
		}
		unknown = append(unknown, k)
	}
	if len(unknown) > 0 {
		slices.Sort(unknown)
		issues = append(issues, UnrecognizedKeys(unknown...).Issues...)
	}

	issues = append(issues, s.check(known)...)
	if len(issues) == 0 {
		return nil
	}
	return &ValidationError{Issues: issues}
}

func (s *Schema) check(cfg map[string]any) []Issue {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.ctx.Encode(cfg)
	if err := v.Err(); err != nil {
		return []Issue{{Code: IssueInvalid, Message: fmt.Sprintf("config is not encodable: %v", err)}}
	}

	issues := closedIssues(s.value, nil, cfg)
	// CUE may report the same closedness violations, at the field or at
	// the enclosing struct.
	reported := make(map[string]bool)
	closed := make(map[string]bool)
	for _, is := range issues {
		closed[strings.Join(is.Path, ".")] = true
		for _, k := range is.Keys {
			reported[strings.Join(append(slices.Clone(is.Path), k), ".")] = true
		}
	}

	err := s.value.Unify(v).Validate(cue.Concrete(true), cue.Final())
	if err == nil {
		return issues
	}
	for _, e := range cueerrors.Errors(err) {
		format, args := e.Msg()
		path := strings.Join(e.Path(), ".")
		if reported[path] || (closed[path] && strings.Contains(format, "not allowed")) {
			continue
		}
		issues = append(issues, Issue{
			Code:    IssueInvalid,
			Path:    e.Path(),
			Message: fmt.Sprintf(format, args...),
		})
	}
	return issues
}

// closedIssues walks nested maps in cfg and reports keys that a closed
// struct in the schema does not allow. Top-level keys are checked by
// Validate.
func closedIssues(schemaVal cue.Value, path []string, cfg map[string]any) []Issue {
	var issues []Issue
	for _, k := range slices.Sorted(maps.Keys(cfg)) {
		nested, ok := cfg[k].(map[string]any)
		if !ok {
			continue
		}
		field := lookupField(schemaVal, k)
		if !field.Exists() || field.IncompleteKind() != cue.StructKind {
			continue
		}
		at := append(slices.Clone(path), k)

		var unknown []string
		for _, nk := range slices.Sorted(maps.Keys(nested)) {
			if !field.Allows(cue.Str(nk)) {
				unknown = append(unknown, nk)
			}
		}
		if len(unknown) > 0 {
			issues = append(issues, Issue{
				Code:    IssueUnrecognizedKeys,
				Path:    at,
				Keys:    unknown,
				Message: fmt.Sprintf("unrecognized key(s): %s", strings.Join(unknown, ", ")),
			})
		}
		issues = append(issues, closedIssues(field, at, nested)...)
	}
	return issues
}

func lookupField(v cue.Value, name string) cue.Value {
	if f := v.LookupPath(cue.MakePath(cue.Str(name))); f.Exists() {
		return f
	}
	return v.LookupPath(cue.MakePath(cue.Str(name).Optional()))
}
