package types

import (
	"fmt"
	"strings"
)

// Certainty of a response. Overflow is a positive result meaning "undetermined due to
// resource limits" and is distinct from both proof and disproof.
type Certainty uint8

const (
	Proven Certainty = iota
	Ambiguous
	Overflow
)

func (c Certainty) String() string {
	switch c {
	case Proven:
		return "proven"
	case Ambiguous:
		return "ambiguous"
	case Overflow:
		return "overflow"
	}
	return fmt.Sprintf("certainty(%d)", uint8(c))
}

// And combines the certainties of two goals that must both hold.
func (c Certainty) And(o Certainty) Certainty {
	switch {
	case c == Proven:
		return o
	case o == Proven:
		return c
	case c == Overflow && o == Overflow:
		return Overflow
	}
	return Ambiguous
}

// Response is the canonical, variable-closed result of evaluating a goal. VarValues holds
// one entry per canonical variable of the goal; Bound(i) at index i means the variable is
// unconstrained, Bound(j) with j past the end refers to a new existential variable.
type Response struct {
	Certainty Certainty
	VarValues []*Type
}

// IdentityResponse is a response with no residual constraints.
func IdentityResponse(c Certainty, vars int) Response {
	vals := make([]*Type, vars)
	for i := range vals {
		vals[i] = BoundVar(i)
	}
	return Response{Certainty: c, VarValues: vals}
}

// HasConstraints reports whether any canonical variable is constrained.
func (r Response) HasConstraints() bool {
	for i, v := range r.VarValues {
		if v.Kind != KindBound || v.Var != i {
			return true
		}
	}
	return false
}

// Equal reports structural identity of two responses.
func (r Response) Equal(o Response) bool {
	if r.Certainty != o.Certainty || len(r.VarValues) != len(o.VarValues) {
		return false
	}
	for i := range r.VarValues {
		if !r.VarValues[i].Equal(o.VarValues[i]) {
			return false
		}
	}
	return true
}

func (r Response) String() string {
	if !r.HasConstraints() {
		return r.Certainty.String()
	}
	parts := make([]string, 0, len(r.VarValues))
	for i, v := range r.VarValues {
		if v.Kind == KindBound && v.Var == i {
			continue
		}
		parts = append(parts, fmt.Sprintf("^%d := %s", i, v))
	}
	return r.Certainty.String() + " {" + strings.Join(parts, ", ") + "}"
}

// OriginKind tags where a candidate came from.
type OriginKind uint8

const (
	OriginImpl OriginKind = iota
	OriginBuiltin
	OriginEnv
	OriginAliasBound
)

// Origin identifies the source of a candidate proof.
type Origin struct {
	Kind  OriginKind
	Impl  string // OriginImpl
	Index int    // OriginEnv, OriginAliasBound
}

func ImplOrigin(id string) Origin   { return Origin{Kind: OriginImpl, Impl: id} }
func BuiltinOrigin() Origin         { return Origin{Kind: OriginBuiltin} }
func EnvOrigin(i int) Origin        { return Origin{Kind: OriginEnv, Index: i} }
func AliasBoundOrigin(i int) Origin { return Origin{Kind: OriginAliasBound, Index: i} }

func (o Origin) String() string {
	switch o.Kind {
	case OriginImpl:
		return "impl(" + o.Impl + ")"
	case OriginBuiltin:
		return "builtin"
	case OriginEnv:
		return fmt.Sprintf("env(%d)", o.Index)
	case OriginAliasBound:
		return fmt.Sprintf("alias-bound(%d)", o.Index)
	}
	return "?"
}

// Candidate is one proposed proof of a goal.
type Candidate struct {
	Origin   Origin
	Response Response
}

func (c Candidate) String() string {
	return c.Origin.String() + " => " + c.Response.String()
}
