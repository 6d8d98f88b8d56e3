package proxy

import "errors"

// Revert reasons raised by the proxy and the runtime.
const (
	// ReasonAuth is raised when the caller is not the current owner
	ReasonAuth = "Auth"
	// ReasonUnresolved is raised when a selector has no route
	ReasonUnresolved = "Revert(0)"
	// ReasonContractNotFound is raised when a call targets an address with no contract
	ReasonContractNotFound = "ContractNotFound"
	// ReasonInvalidArgs is raised when call arguments cannot be decoded
	ReasonInvalidArgs = "InvalidArgs"
)

// RevertKind classifies a revert by where it was raised.
type RevertKind int

const (
	// RevertImplementation is a revert raised by an implementation contract
	RevertImplementation RevertKind = iota

	// RevertAuthorization is raised by the ownership check
	RevertAuthorization

	// RevertUnresolvedSelector is raised by dispatch when no route exists
	RevertUnresolvedSelector
)

func (k RevertKind) String() string {
	switch k {
	case RevertImplementation:
		return "implementation"
	case RevertAuthorization:
		return "authorization"
	case RevertUnresolvedSelector:
		return "unresolved_selector"
	default:
		return "unknown"
	}
}

// ParseRevertKind is the inverse of RevertKind.String. Unknown names map to
// RevertImplementation.
func ParseRevertKind(s string) RevertKind {
	switch s {
	case "authorization":
		return RevertAuthorization
	case "unresolved_selector":
		return RevertUnresolvedSelector
	default:
		return RevertImplementation
	}
}

// Revert is a transaction revert with a stable, machine-checkable reason.
type Revert struct {
	Kind   RevertKind
	Reason string
}

var (
	// ErrAuth is returned when an administrative call is not made by the owner
	ErrAuth = &Revert{Kind: RevertAuthorization, Reason: ReasonAuth}
	// ErrUnresolvedSelector is returned when dispatch finds no route
	ErrUnresolvedSelector = &Revert{Kind: RevertUnresolvedSelector, Reason: ReasonUnresolved}
)

// NewRevert returns an implementation revert with the given reason.
func NewRevert(reason string) *Revert {
	return &Revert{Kind: RevertImplementation, Reason: reason}
}

func (r *Revert) Error() string {
	return "revert: " + r.Reason
}

// Is reports whether target is a *Revert with the same kind and reason.
func (r *Revert) Is(target error) bool {
	t, ok := target.(*Revert)
	if !ok {
		return false
	}
	return t.Kind == r.Kind && t.Reason == r.Reason
}

// ReasonOf returns the revert reason carried by err, if any.
func ReasonOf(err error) (string, bool) {
	var r *Revert
	if errors.As(err, &r) {
		return r.Reason, true
	}
	return "", false
}

// AsRevert returns the *Revert carried by err, if any.
func AsRevert(err error) (*Revert, bool) {
	var r *Revert
	if errors.As(err, &r) {
		return r, true
	}
	return nil, false
}
