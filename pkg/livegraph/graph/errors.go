package graph

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Code is a machine-readable error code surfaced to callers.
type Code string

// Reconciler and port resolution codes.
const (
	CodeUnknownTemplate   Code = "UNKNOWN_TEMPLATE"
	CodeDuplicateNodeID   Code = "DUPLICATE_NODE_ID"
	CodeMissingNode       Code = "MISSING_NODE"
	CodeUnresolvedHandle  Code = "UNRESOLVED_HANDLE"
	CodeAmbiguousCallable Code = "AMBIGUOUS_CALLABLE"
	CodeMissingCallable   Code = "MISSING_CALLABLE"
	CodeInvocation        Code = "INVOCATION_ERROR"
	CodeUnreadyDependency Code = "UNREADY_DEPENDENCY"
	CodeMissingConfigure  Code = "MISSING_CONFIGURE"
	CodeConfigApply       Code = "CONFIG_APPLY_FAILED"
)

// Store codes.
const (
	CodeVersionConflict  Code = "VERSION_CONFLICT"
	CodeLockTimeout      Code = "LOCK_TIMEOUT"
	CodeCommitFailed     Code = "COMMIT_FAILED"
	CodeValidationFailed Code = "VALIDATION_FAILED"
)

// Sentinels for errors.Is. Matching is by code only.
var (
	ErrUnknownTemplate   = &Error{Code: CodeUnknownTemplate}
	ErrDuplicateNodeID   = &Error{Code: CodeDuplicateNodeID}
	ErrMissingNode       = &Error{Code: CodeMissingNode}
	ErrUnresolvedHandle  = &Error{Code: CodeUnresolvedHandle}
	ErrAmbiguousCallable = &Error{Code: CodeAmbiguousCallable}
	ErrMissingCallable   = &Error{Code: CodeMissingCallable}
	ErrInvocation        = &Error{Code: CodeInvocation}
	ErrUnreadyDependency = &Error{Code: CodeUnreadyDependency}
	ErrMissingConfigure  = &Error{Code: CodeMissingConfigure}
	ErrConfigApply       = &Error{Code: CodeConfigApply}

	ErrVersionConflict  = &Error{Code: CodeVersionConflict}
	ErrLockTimeout      = &Error{Code: CodeLockTimeout}
	ErrCommitFailed     = &Error{Code: CodeCommitFailed}
	ErrValidationFailed = &Error{Code: CodeValidationFailed}
)

// Error is the typed error shared by the reconciler and the store.
// Fields that do not apply to a code are left zero; EdgeIndex is -1 when
// no edge is involved.
type Error struct {
	Code Code
	// Message is a human-readable summary.
	Message string
	// NodeID is the node involved, if any.
	NodeID string
	// EdgeIndex is the position of the edge in the submitted definition.
	EdgeIndex int
	// Template is the template involved, if any.
	Template string
	// Method is the capability or port method involved, if any.
	Method string
	// Name is the graph name for store errors.
	Name string
	// Current is the stored document at the time of a version conflict.
	Current *Document
	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	var ctx []string
	if e.Name != "" {
		ctx = append(ctx, "graph="+e.Name)
	}
	if e.NodeID != "" {
		ctx = append(ctx, "node="+e.NodeID)
	}
	if e.EdgeIndex >= 0 && isEdgeCode(e.Code) {
		ctx = append(ctx, fmt.Sprintf("edge=%d", e.EdgeIndex))
	}
	if e.Template != "" {
		ctx = append(ctx, "template="+e.Template)
	}
	if e.Method != "" {
		ctx = append(ctx, "method="+e.Method)
	}
	if len(ctx) > 0 {
		b.WriteString(" (")
		b.WriteString(strings.Join(ctx, ", "))
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

func isEdgeCode(c Code) bool {
	switch c {
	case CodeMissingNode, CodeUnresolvedHandle, CodeAmbiguousCallable,
		CodeMissingCallable, CodeInvocation, CodeUnreadyDependency:
		return true
	}
	return false
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) Code {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Code
	}
	return ""
}

// UnknownTemplate reports a node whose template is not registered.
func UnknownTemplate(nodeID, template string) *Error {
	return &Error{
		Code:      CodeUnknownTemplate,
		Message:   "template is not registered",
		NodeID:    nodeID,
		EdgeIndex: -1,
		Template:  template,
	}
}

// DuplicateNodeID reports a node id used more than once in one definition.
func DuplicateNodeID(nodeID string) *Error {
	return &Error{
		Code:      CodeDuplicateNodeID,
		Message:   "node id is used more than once",
		NodeID:    nodeID,
		EdgeIndex: -1,
	}
}

// MissingNode reports an edge endpoint that has no live node.
func MissingNode(nodeID string, edgeIndex int) *Error {
	return &Error{
		Code:      CodeMissingNode,
		Message:   "edge references a node that does not exist",
		NodeID:    nodeID,
		EdgeIndex: edgeIndex,
	}
}

// UnknownNode reports a node id that has no live node, outside of edge wiring.
func UnknownNode(nodeID string) *Error {
	return &Error{
		Code:      CodeMissingNode,
		Message:   "node does not exist",
		NodeID:    nodeID,
		EdgeIndex: -1,
	}
}

// UnresolvedHandle reports an edge whose handles match no declared port.
func UnresolvedHandle(edgeIndex int, edge EdgeDef) *Error {
	return &Error{
		Code:      CodeUnresolvedHandle,
		Message:   fmt.Sprintf("no port matches %s", edge.Key()),
		EdgeIndex: edgeIndex,
	}
}

// AmbiguousCallable reports an edge whose both ends are method ports.
func AmbiguousCallable(edgeIndex int, edge EdgeDef) *Error {
	return &Error{
		Code:      CodeAmbiguousCallable,
		Message:   fmt.Sprintf("both ends of %s are callable", edge.Key()),
		EdgeIndex: edgeIndex,
	}
}

// MissingCallable reports an edge with no method port on either end.
func MissingCallable(edgeIndex int, edge EdgeDef) *Error {
	return &Error{
		Code:      CodeMissingCallable,
		Message:   fmt.Sprintf("neither end of %s is callable", edge.Key()),
		EdgeIndex: edgeIndex,
	}
}

// Invocation reports a failed port method call.
func Invocation(nodeID string, edgeIndex int, method string, err error) *Error {
	return &Error{
		Code:      CodeInvocation,
		Message:   "port method failed",
		NodeID:    nodeID,
		EdgeIndex: edgeIndex,
		Method:    method,
		Err:       err,
	}
}

// UnreadyDependency reports an edge argument whose node has no instance.
func UnreadyDependency(nodeID string, edgeIndex int) *Error {
	return &Error{
		Code:      CodeUnreadyDependency,
		Message:   "argument node has no live instance",
		NodeID:    nodeID,
		EdgeIndex: edgeIndex,
	}
}

// MissingConfigure reports a config change on a node that cannot accept it.
func MissingConfigure(nodeID, method string) *Error {
	return &Error{
		Code:      CodeMissingConfigure,
		Message:   "node does not accept configuration",
		NodeID:    nodeID,
		EdgeIndex: -1,
		Method:    method,
	}
}

// ConfigApply reports a configuration that could not be applied.
func ConfigApply(nodeID, method string, err error) *Error {
	return &Error{
		Code:      CodeConfigApply,
		Message:   "config could not be applied",
		NodeID:    nodeID,
		EdgeIndex: -1,
		Method:    method,
		Err:       err,
	}
}

// VersionConflict reports a stale expected version. current is the
// document as stored, so the caller can merge and retry.
func VersionConflict(name string, expected int, current *Document) *Error {
	actual := 0
	if current != nil {
		actual = current.Version
	}
	return &Error{
		Code:      CodeVersionConflict,
		Message:   fmt.Sprintf("expected version %d, current is %d", expected, actual),
		EdgeIndex: -1,
		Name:      name,
		Current:   current,
	}
}

// LockTimeout reports a lock that could not be acquired in time.
func LockTimeout(name string, timeout time.Duration, err error) *Error {
	return &Error{
		Code:      CodeLockTimeout,
		Message:   fmt.Sprintf("lock not acquired within %s", timeout),
		EdgeIndex: -1,
		Name:      name,
		Err:       err,
	}
}

// CommitFailed reports a failed commit. The working tree has already been
// restored when this is returned.
func CommitFailed(name string, err error) *Error {
	return &Error{
		Code:      CodeCommitFailed,
		Message:   "commit failed",
		EdgeIndex: -1,
		Name:      name,
		Err:       err,
	}
}

// ValidationFailed reports a request rejected before any write.
func ValidationFailed(name, message string, err error) *Error {
	return &Error{
		Code:      CodeValidationFailed,
		Message:   message,
		EdgeIndex: -1,
		Name:      name,
		Err:       err,
	}
}
