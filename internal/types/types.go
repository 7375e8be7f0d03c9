// Package types provides the value model shared by the solver, the inference context and the
// world loader: type expressions, capability declarations, goals, responses and candidates.
// Types in this package are plain data with no solver behavior attached.
package types

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// =============================================================================
// TYPE EXPRESSIONS
// =============================================================================

// Kind selects the shape of a Type. The set is closed: every switch over Kind in the solver
// is exhaustive.
type Kind uint8

const (
	KindBool Kind = iota
	KindChar
	KindInt
	KindUint
	KindFloat
	KindStr
	KindNever
	KindAdt
	KindForeign
	KindArray
	KindSlice
	KindRawPtr
	KindRef
	KindFnDef
	KindFnPtr
	KindClosure
	KindGenerator
	KindGeneratorWitness
	KindTuple
	KindDynamic
	KindAlias
	KindParam
	KindPlaceholder
	KindInfer
	KindIntVar
	KindFloatVar
	KindError

	// Internal-only forms. They must never reach structural dispatch.
	KindBound
	KindFresh
)

var kindNames = [...]string{
	KindBool:             "bool",
	KindChar:             "char",
	KindInt:              "int",
	KindUint:             "uint",
	KindFloat:            "float",
	KindStr:              "str",
	KindNever:            "never",
	KindAdt:              "adt",
	KindForeign:          "foreign",
	KindArray:            "array",
	KindSlice:            "slice",
	KindRawPtr:           "ptr",
	KindRef:              "ref",
	KindFnDef:            "fndef",
	KindFnPtr:            "fnptr",
	KindClosure:          "closure",
	KindGenerator:        "generator",
	KindGeneratorWitness: "witness",
	KindTuple:            "tuple",
	KindDynamic:          "dyn",
	KindAlias:            "alias",
	KindParam:            "param",
	KindPlaceholder:      "placeholder",
	KindInfer:            "infer",
	KindIntVar:           "intvar",
	KindFloatVar:         "floatvar",
	KindError:            "error",
	KindBound:            "bound",
	KindFresh:            "fresh",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// IsPrimitive reports whether k is a scalar leaf with no constituents.
func (k Kind) IsPrimitive() bool {
	switch k {
	case KindBool, KindChar, KindInt, KindUint, KindFloat, KindStr, KindNever:
		return true
	}
	return false
}

// AliasKind distinguishes associated-item projections from opaque types.
type AliasKind uint8

const (
	AliasProjection AliasKind = iota
	AliasOpaque
)

// ClosureKind is the strongest callable capability a closure supports.
// Fn extends FnMut which extends FnOnce.
type ClosureKind uint8

const (
	ClosureUnknown ClosureKind = iota
	ClosureFn
	ClosureFnMut
	ClosureFnOnce
)

// Extends reports whether a closure of kind k can be used where kind other is required.
func (k ClosureKind) Extends(other ClosureKind) bool {
	if k == ClosureUnknown || other == ClosureUnknown {
		return false
	}
	return k <= other
}

func (k ClosureKind) String() string {
	switch k {
	case ClosureFn:
		return "Fn"
	case ClosureFnMut:
		return "FnMut"
	case ClosureFnOnce:
		return "FnOnce"
	}
	return "?"
}

// FnSig is the signature of a callable type.
type FnSig struct {
	Inputs []*Type
	Output *Type
}

// AliasTy is an associated-item projection (`<Args[0] as Cap<Args[1:]>>::Item`) or an opaque
// type (`Name<Args>`).
type AliasTy struct {
	Kind AliasKind
	Cap  string // projection only
	Item string // projection item name, or opaque type name
	Args []*Type
}

// SelfTy returns the self type of a projection, or nil for opaque types.
func (a *AliasTy) SelfTy() *Type {
	if a.Kind != AliasProjection || len(a.Args) == 0 {
		return nil
	}
	return a.Args[0]
}

// GenSig describes a generator's resume/yield/return types.
type GenSig struct {
	Async  bool
	Resume *Type
	Yield  *Type
	Return *Type
}

// Existential is one bound of a dynamic type with the self type erased.
type Existential struct {
	Cap  string
	Args []*Type
	Auto bool
}

// Type is a type expression. Fields are meaningful only for the kinds noted beside them;
// values are treated as immutable once built.
type Type struct {
	Kind Kind

	Name  string  // primitive width, ADT/foreign/fndef/closure/generator id, param/placeholder name
	Args  []*Type // ADT and fndef generic args, tuple elements, witness types
	Elem  *Type   // array, slice, raw pointer, reference
	Len   int     // array length
	Mut   bool    // raw pointer, reference
	Sig   *FnSig  // fndef, fnptr, closure
	Upvar *Type   // closure and generator captured-state tuple
	Wit   *Type   // generator witness
	Gen   *GenSig // generator
	Clo   ClosureKind
	Alias *AliasTy // alias
	Preds []Existential
	Var   int // infer, intvar, floatvar, bound, fresh
}

// =============================================================================
// CONSTRUCTORS
// =============================================================================

func Bool() *Type          { return &Type{Kind: KindBool} }
func Char() *Type          { return &Type{Kind: KindChar} }
func Str() *Type           { return &Type{Kind: KindStr} }
func Never() *Type         { return &Type{Kind: KindNever} }
func Int(w string) *Type   { return &Type{Kind: KindInt, Name: w} }
func Uint(w string) *Type  { return &Type{Kind: KindUint, Name: w} }
func Float(w string) *Type { return &Type{Kind: KindFloat, Name: w} }
func ErrorTy() *Type       { return &Type{Kind: KindError} }

// Unit is the empty tuple.
func Unit() *Type { return &Type{Kind: KindTuple} }

func Adt(name string, args ...*Type) *Type {
	return &Type{Kind: KindAdt, Name: name, Args: args}
}

func Foreign(name string) *Type { return &Type{Kind: KindForeign, Name: name} }

func Array(elem *Type, n int) *Type { return &Type{Kind: KindArray, Elem: elem, Len: n} }
func Slice(elem *Type) *Type        { return &Type{Kind: KindSlice, Elem: elem} }

func RawPtr(elem *Type, mut bool) *Type { return &Type{Kind: KindRawPtr, Elem: elem, Mut: mut} }
func Ref(elem *Type, mut bool) *Type    { return &Type{Kind: KindRef, Elem: elem, Mut: mut} }

func Tuple(elems ...*Type) *Type { return &Type{Kind: KindTuple, Args: elems} }

func FnPtr(inputs []*Type, output *Type) *Type {
	return &Type{Kind: KindFnPtr, Sig: &FnSig{Inputs: inputs, Output: output}}
}

func FnDef(name string, inputs []*Type, output *Type, args ...*Type) *Type {
	return &Type{Kind: KindFnDef, Name: name, Args: args, Sig: &FnSig{Inputs: inputs, Output: output}}
}

// Closure builds a closure type. A nil upvars means no captured state.
func Closure(name string, kind ClosureKind, inputs []*Type, output *Type, upvars *Type) *Type {
	if upvars == nil {
		upvars = Unit()
	}
	return &Type{Kind: KindClosure, Name: name, Clo: kind, Sig: &FnSig{Inputs: inputs, Output: output}, Upvar: upvars}
}

func Generator(name string, sig GenSig, upvars, witness *Type) *Type {
	if upvars == nil {
		upvars = Unit()
	}
	if witness == nil {
		witness = &Type{Kind: KindGeneratorWitness}
	}
	s := sig
	if s.Resume == nil {
		s.Resume = Unit()
	}
	if s.Yield == nil {
		s.Yield = Unit()
	}
	if s.Return == nil {
		s.Return = Unit()
	}
	return &Type{Kind: KindGenerator, Name: name, Gen: &s, Upvar: upvars, Wit: witness}
}

func Witness(tys ...*Type) *Type { return &Type{Kind: KindGeneratorWitness, Args: tys} }

// Dynamic builds an object type from its existential bounds.
// Dynamic builds a dyn type in normal form: non-auto bounds first in the order given, then
// auto bounds sorted by name with duplicates dropped.
func Dynamic(preds ...Existential) *Type {
	out := make([]Existential, 0, len(preds))
	var autos []Existential
	for _, p := range preds {
		if p.Auto {
			autos = append(autos, p)
		} else {
			out = append(out, p)
		}
	}
	sort.SliceStable(autos, func(i, j int) bool { return autos[i].Cap < autos[j].Cap })
	for i, p := range autos {
		if i > 0 && autos[i-1].Cap == p.Cap {
			continue
		}
		out = append(out, p)
	}
	return &Type{Kind: KindDynamic, Preds: out}
}

func Projection(self *Type, cap, item string, args ...*Type) *Type {
	all := append([]*Type{self}, args...)
	return &Type{Kind: KindAlias, Alias: &AliasTy{Kind: AliasProjection, Cap: cap, Item: item, Args: all}}
}

func Opaque(name string, args ...*Type) *Type {
	return &Type{Kind: KindAlias, Alias: &AliasTy{Kind: AliasOpaque, Item: name, Args: args}}
}

func Param(name string) *Type       { return &Type{Kind: KindParam, Name: name} }
func Placeholder(name string) *Type { return &Type{Kind: KindPlaceholder, Name: name} }
func Infer(id int) *Type            { return &Type{Kind: KindInfer, Var: id} }
func IntVar(id int) *Type           { return &Type{Kind: KindIntVar, Var: id} }
func FloatVar(id int) *Type         { return &Type{Kind: KindFloatVar, Var: id} }
func BoundVar(idx int) *Type        { return &Type{Kind: KindBound, Var: idx} }
func FreshVar(id int) *Type         { return &Type{Kind: KindFresh, Var: id} }

// =============================================================================
// QUERIES
// =============================================================================

// IsTyVar reports whether t is an unresolved general inference variable.
func (t *Type) IsTyVar() bool { return t != nil && t.Kind == KindInfer }

// IsVar reports whether t is any kind of inference variable.
func (t *Type) IsVar() bool {
	return t != nil && (t.Kind == KindInfer || t.Kind == KindIntVar || t.Kind == KindFloatVar)
}

// IsProjection reports whether t is a projection-shaped alias.
func (t *Type) IsProjection() bool {
	return t != nil && t.Kind == KindAlias && t.Alias.Kind == AliasProjection
}

// Principal returns the first non-auto bound of a dynamic type.
func (t *Type) Principal() (Existential, bool) {
	for _, p := range t.Preds {
		if !p.Auto {
			return p, true
		}
	}
	return Existential{}, false
}

// AutoCaps returns the auto capability names of a dynamic type.
func (t *Type) AutoCaps() []string {
	var out []string
	for _, p := range t.Preds {
		if p.Auto {
			out = append(out, p.Cap)
		}
	}
	return out
}

// Children returns every directly nested type in a fixed order.
func (t *Type) Children() []*Type {
	var out []*Type
	out = append(out, t.Args...)
	if t.Elem != nil {
		out = append(out, t.Elem)
	}
	if t.Sig != nil {
		out = append(out, t.Sig.Inputs...)
		out = append(out, t.Sig.Output)
	}
	if t.Gen != nil {
		out = append(out, t.Gen.Resume, t.Gen.Yield, t.Gen.Return)
	}
	if t.Upvar != nil {
		out = append(out, t.Upvar)
	}
	if t.Wit != nil {
		out = append(out, t.Wit)
	}
	if t.Alias != nil {
		out = append(out, t.Alias.Args...)
	}
	for _, p := range t.Preds {
		out = append(out, p.Args...)
	}
	return out
}

// Walk calls fn on t and every nested type, pre-order. Returning false skips the subtree.
func (t *Type) Walk(fn func(*Type) bool) {
	if t == nil || !fn(t) {
		return
	}
	for _, c := range t.Children() {
		c.Walk(fn)
	}
}

// HasVars reports whether t mentions any inference, bound or fresh variable.
func (t *Type) HasVars() bool {
	found := false
	t.Walk(func(n *Type) bool {
		switch n.Kind {
		case KindInfer, KindIntVar, KindFloatVar, KindBound, KindFresh:
			found = true
		}
		return !found
	})
	return found
}

// Map rebuilds t bottom-up, replacing each node with fn's result. fn receives the node with
// already-mapped children and may return it unchanged.
func (t *Type) Map(fn func(*Type) *Type) *Type {
	if t == nil {
		return nil
	}
	c := *t
	c.Args = mapAll(t.Args, fn)
	c.Elem = t.Elem.Map(fn)
	if t.Sig != nil {
		c.Sig = &FnSig{Inputs: mapAll(t.Sig.Inputs, fn), Output: t.Sig.Output.Map(fn)}
	}
	if t.Gen != nil {
		c.Gen = &GenSig{Async: t.Gen.Async, Resume: t.Gen.Resume.Map(fn), Yield: t.Gen.Yield.Map(fn), Return: t.Gen.Return.Map(fn)}
	}
	c.Upvar = t.Upvar.Map(fn)
	c.Wit = t.Wit.Map(fn)
	if t.Alias != nil {
		a := *t.Alias
		a.Args = mapAll(t.Alias.Args, fn)
		c.Alias = &a
	}
	if t.Preds != nil {
		c.Preds = make([]Existential, len(t.Preds))
		for i, p := range t.Preds {
			c.Preds[i] = Existential{Cap: p.Cap, Args: mapAll(p.Args, fn), Auto: p.Auto}
		}
	}
	return fn(&c)
}

func mapAll(ts []*Type, fn func(*Type) *Type) []*Type {
	if ts == nil {
		return nil
	}
	out := make([]*Type, len(ts))
	for i, t := range ts {
		out[i] = t.Map(fn)
	}
	return out
}

// Subst replaces generic parameters by name.
func (t *Type) Subst(params map[string]*Type) *Type {
	if len(params) == 0 {
		return t
	}
	return t.Map(func(n *Type) *Type {
		if n.Kind == KindParam {
			if r, ok := params[n.Name]; ok {
				return r
			}
		}
		return n
	})
}

// SubstAll applies Subst to every element.
func SubstAll(ts []*Type, params map[string]*Type) []*Type {
	if ts == nil {
		return nil
	}
	out := make([]*Type, len(ts))
	for i, t := range ts {
		out[i] = t.Subst(params)
	}
	return out
}

// Equal reports structural equality.
func (t *Type) Equal(o *Type) bool {
	if t == nil || o == nil {
		return t == o
	}
	return t.Key() == o.Key()
}

// =============================================================================
// RENDERING
// =============================================================================

// Key returns the canonical form of t. Two types are equal iff their keys are equal. Unlike
// String, names are tagged with their kind so an ADT and a parameter of the same name differ.
func (t *Type) Key() string {
	var b strings.Builder
	t.write(&b, true)
	return b.String()
}

func (t *Type) String() string {
	var b strings.Builder
	t.write(&b, false)
	return b.String()
}

func (t *Type) write(b *strings.Builder, keyed bool) {
	if t == nil {
		b.WriteString("<nil>")
		return
	}
	switch t.Kind {
	case KindBool, KindChar, KindStr:
		b.WriteString(t.Kind.String())
	case KindNever:
		b.WriteString("!")
	case KindInt, KindUint, KindFloat:
		b.WriteString(t.Name)
	case KindAdt:
		if keyed {
			b.WriteString("adt:")
		}
		b.WriteString(t.Name)
		writeArgs(b, t.Args, keyed)
	case KindForeign:
		b.WriteString("extern ")
		b.WriteString(t.Name)
	case KindArray:
		b.WriteByte('[')
		t.Elem.write(b, keyed)
		b.WriteString("; ")
		b.WriteString(strconv.Itoa(t.Len))
		b.WriteByte(']')
	case KindSlice:
		b.WriteByte('[')
		t.Elem.write(b, keyed)
		b.WriteByte(']')
	case KindRawPtr:
		if t.Mut {
			b.WriteString("*mut ")
		} else {
			b.WriteString("*const ")
		}
		t.Elem.write(b, keyed)
	case KindRef:
		b.WriteByte('&')
		if t.Mut {
			b.WriteString("mut ")
		}
		t.Elem.write(b, keyed)
	case KindFnDef:
		b.WriteString("fn#")
		b.WriteString(t.Name)
		writeArgs(b, t.Args, keyed)
		writeSig(b, t.Sig, keyed)
	case KindFnPtr:
		b.WriteString("fn")
		writeSig(b, t.Sig, keyed)
	case KindClosure:
		fmt.Fprintf(b, "closure#%s[%s]", t.Name, t.Clo)
		writeSig(b, t.Sig, keyed)
		b.WriteByte('{')
		t.Upvar.write(b, keyed)
		b.WriteByte('}')
	case KindGenerator:
		if t.Gen.Async {
			b.WriteString("async ")
		}
		b.WriteString("gen#")
		b.WriteString(t.Name)
		b.WriteByte('(')
		t.Gen.Resume.write(b, keyed)
		b.WriteString(" -> yield ")
		t.Gen.Yield.write(b, keyed)
		b.WriteString(", return ")
		t.Gen.Return.write(b, keyed)
		b.WriteString("){")
		t.Upvar.write(b, keyed)
		b.WriteString("; ")
		t.Wit.write(b, keyed)
		b.WriteByte('}')
	case KindGeneratorWitness:
		b.WriteString("witness")
		writeArgs(b, t.Args, keyed)
	case KindTuple:
		b.WriteByte('(')
		for i, e := range t.Args {
			if i > 0 {
				b.WriteString(", ")
			}
			e.write(b, keyed)
		}
		if len(t.Args) == 1 {
			b.WriteByte(',')
		}
		b.WriteByte(')')
	case KindDynamic:
		b.WriteString("dyn ")
		for i, p := range t.Preds {
			if i > 0 {
				b.WriteString(" + ")
			}
			if keyed && p.Auto {
				b.WriteString("auto:")
			}
			b.WriteString(p.Cap)
			writeArgs(b, p.Args, keyed)
		}
	case KindAlias:
		a := t.Alias
		if a.Kind == AliasProjection {
			b.WriteByte('<')
			a.Args[0].write(b, keyed)
			b.WriteString(" as ")
			b.WriteString(a.Cap)
			writeArgs(b, a.Args[1:], keyed)
			b.WriteString(">::")
			b.WriteString(a.Item)
		} else {
			b.WriteString("impl#")
			b.WriteString(a.Item)
			writeArgs(b, a.Args, keyed)
		}
	case KindParam:
		if keyed {
			b.WriteString("param:")
		}
		b.WriteString(t.Name)
	case KindPlaceholder:
		if keyed {
			b.WriteString("placeholder:")
		} else {
			b.WriteString("!")
		}
		b.WriteString(t.Name)
	case KindInfer:
		b.WriteString("?")
		b.WriteString(strconv.Itoa(t.Var))
	case KindIntVar:
		b.WriteString("?int")
		b.WriteString(strconv.Itoa(t.Var))
	case KindFloatVar:
		b.WriteString("?float")
		b.WriteString(strconv.Itoa(t.Var))
	case KindError:
		b.WriteString("{error}")
	case KindBound:
		b.WriteString("^")
		b.WriteString(t.Name)
		b.WriteString(strconv.Itoa(t.Var))
	case KindFresh:
		b.WriteString("fresh")
		b.WriteString(strconv.Itoa(t.Var))
	default:
		fmt.Fprintf(b, "<%s>", t.Kind)
	}
}

func writeArgs(b *strings.Builder, args []*Type, keyed bool) {
	if len(args) == 0 {
		return
	}
	b.WriteByte('<')
	for i, a := range args {
		if i > 0 {
			b.WriteString(", ")
		}
		a.write(b, keyed)
	}
	b.WriteByte('>')
}

func writeSig(b *strings.Builder, sig *FnSig, keyed bool) {
	b.WriteByte('(')
	for i, in := range sig.Inputs {
		if i > 0 {
			b.WriteString(", ")
		}
		in.write(b, keyed)
	}
	b.WriteString(") -> ")
	sig.Output.write(b, keyed)
}
