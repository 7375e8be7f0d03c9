package world

import (
	"fmt"
	"strings"

	"capsolve/internal/types"
)

// =============================================================================
// YAML NODES
// =============================================================================

// TypeNode is the YAML form of a type expression. Exactly one selector field is set.
//
//	prim: i32                  bool, char, str, never, error, unit, i*/u*/f* widths
//	adt: Vec, args: [...]
//	param: T / placeholder: T / foreign: Handle
//	ref: {...}, mut: true      also ptr, slice, array (+ len)
//	tuple: [...]
//	fn_ptr: {inputs, output}
//	fn_def: name, inputs, output, args
//	closure: name, kind, inputs, output, upvars
//	generator: name, async, resume, yield, return, upvars, witness
//	dyn: [{cap, args, auto}]
//	projection: {self, cap, item, args}
//	opaque: name, args
//	var: 0                     goal-local inference variable; also int_var, float_var
type TypeNode struct {
	Prim        string      `yaml:"prim,omitempty"`
	Adt         string      `yaml:"adt,omitempty"`
	Foreign     string      `yaml:"foreign,omitempty"`
	Param       string      `yaml:"param,omitempty"`
	Placeholder string      `yaml:"placeholder,omitempty"`
	Opaque      string      `yaml:"opaque,omitempty"`
	FnDef       string      `yaml:"fn_def,omitempty"`
	Closure     string      `yaml:"closure,omitempty"`
	Generator   string      `yaml:"generator,omitempty"`
	Args        []*TypeNode `yaml:"args,omitempty"`

	Ref   *TypeNode `yaml:"ref,omitempty"`
	Ptr   *TypeNode `yaml:"ptr,omitempty"`
	Slice *TypeNode `yaml:"slice,omitempty"`
	Array *TypeNode `yaml:"array,omitempty"`
	Len   int       `yaml:"len,omitempty"`
	Mut   bool      `yaml:"mut,omitempty"`

	Tuple   []*TypeNode `yaml:"tuple,omitempty"`
	FnPtr   *SigNode    `yaml:"fn_ptr,omitempty"`
	Inputs  []*TypeNode `yaml:"inputs,omitempty"`
	Output  *TypeNode   `yaml:"output,omitempty"`
	Kind    string      `yaml:"kind,omitempty"`
	Upvars  *TypeNode   `yaml:"upvars,omitempty"`
	Async   bool        `yaml:"async,omitempty"`
	Resume  *TypeNode   `yaml:"resume,omitempty"`
	Yield   *TypeNode   `yaml:"yield,omitempty"`
	Return  *TypeNode   `yaml:"return,omitempty"`
	Witness []*TypeNode `yaml:"witness,omitempty"`

	Dyn        []ExistentialNode `yaml:"dyn,omitempty"`
	Projection *ProjectionNode   `yaml:"projection,omitempty"`

	Var      *int `yaml:"var,omitempty"`
	IntVar   *int `yaml:"int_var,omitempty"`
	FloatVar *int `yaml:"float_var,omitempty"`
}

// SigNode is a callable signature.
type SigNode struct {
	Inputs []*TypeNode `yaml:"inputs"`
	Output *TypeNode   `yaml:"output"`
}

// ExistentialNode is one bound of a dyn type.
type ExistentialNode struct {
	Cap  string      `yaml:"cap"`
	Args []*TypeNode `yaml:"args,omitempty"`
	Auto bool        `yaml:"auto,omitempty"`
}

// ProjectionNode is `<Self as Cap<Args>>::Item`.
type ProjectionNode struct {
	Self *TypeNode   `yaml:"self"`
	Cap  string      `yaml:"cap"`
	Item string      `yaml:"item"`
	Args []*TypeNode `yaml:"args,omitempty"`
}

// TraitNode is a capability predicate. Self defaults to the `Self` parameter.
type TraitNode struct {
	Cap  string      `yaml:"cap"`
	Self *TypeNode   `yaml:"self,omitempty"`
	Args []*TypeNode `yaml:"args,omitempty"`
}

// NormalizesNode is a projection predicate.
type NormalizesNode struct {
	Projection ProjectionNode `yaml:",inline"`
	Term       *TypeNode      `yaml:"term"`
}

// PredicateNode holds exactly one of Trait or Normalizes.
type PredicateNode struct {
	Trait      *TraitNode      `yaml:"trait,omitempty"`
	Normalizes *NormalizesNode `yaml:"normalizes,omitempty"`
}

// ClauseNode is an environment assumption.
type ClauseNode struct {
	PredicateNode `yaml:",inline"`
	Requires      []PredicateNode `yaml:"requires,omitempty"`
}

// =============================================================================
// CONVERSION
// =============================================================================

// varScope maps goal-local variable numbers to inference variables. A scope without fresh
// rejects variables; declarations never contain them. When capKinds is set, dyn bounds must
// name a declared capability and their auto flag follows its kind.
type varScope struct {
	fresh    func(kind types.Kind) *types.Type
	vars     map[string]*types.Type
	capKinds map[string]types.CapKind
}

func (s *varScope) lookup(kind types.Kind, n int) (*types.Type, error) {
	if s == nil || s.fresh == nil {
		return nil, fmt.Errorf("inference variable %d outside a goal", n)
	}
	key := fmt.Sprintf("%s/%d", kind, n)
	if v, ok := s.vars[key]; ok {
		return v, nil
	}
	v := s.fresh(kind)
	s.vars[key] = v
	return v, nil
}

func primType(name string) (*types.Type, bool) {
	switch name {
	case "bool":
		return types.Bool(), true
	case "char":
		return types.Char(), true
	case "str":
		return types.Str(), true
	case "never", "!":
		return types.Never(), true
	case "error":
		return types.ErrorTy(), true
	case "unit", "()":
		return types.Unit(), true
	case "i8", "i16", "i32", "i64", "i128", "isize":
		return types.Int(name), true
	case "u8", "u16", "u32", "u64", "u128", "usize":
		return types.Uint(name), true
	case "f32", "f64":
		return types.Float(name), true
	}
	return nil, false
}

func parseClosureKind(s string) (types.ClosureKind, error) {
	switch strings.ToLower(s) {
	case "fn":
		return types.ClosureFn, nil
	case "fn_mut", "fnmut":
		return types.ClosureFnMut, nil
	case "fn_once", "fnonce":
		return types.ClosureFnOnce, nil
	case "", "unknown":
		return types.ClosureUnknown, nil
	}
	return types.ClosureUnknown, fmt.Errorf("unknown closure kind %q", s)
}

func (s *varScope) typeList(nodes []*TypeNode) ([]*types.Type, error) {
	out := make([]*types.Type, 0, len(nodes))
	for i, n := range nodes {
		t, err := s.typ(n)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *varScope) optional(n *TypeNode) (*types.Type, error) {
	if n == nil {
		return nil, nil
	}
	return s.typ(n)
}

func (s *varScope) sig(inputs []*TypeNode, output *TypeNode) ([]*types.Type, *types.Type, error) {
	in, err := s.typeList(inputs)
	if err != nil {
		return nil, nil, fmt.Errorf("inputs%w", err)
	}
	out := types.Unit()
	if output != nil {
		if out, err = s.typ(output); err != nil {
			return nil, nil, fmt.Errorf("output: %w", err)
		}
	}
	return in, out, nil
}

func (s *varScope) typ(n *TypeNode) (*types.Type, error) {
	if n == nil {
		return nil, fmt.Errorf("missing type")
	}
	switch {
	case n.Prim != "":
		t, ok := primType(n.Prim)
		if !ok {
			return nil, fmt.Errorf("unknown primitive %q", n.Prim)
		}
		return t, nil
	case n.Adt != "":
		args, err := s.typeList(n.Args)
		if err != nil {
			return nil, fmt.Errorf("adt %s args%w", n.Adt, err)
		}
		return types.Adt(n.Adt, args...), nil
	case n.Foreign != "":
		return types.Foreign(n.Foreign), nil
	case n.Param != "":
		return types.Param(n.Param), nil
	case n.Placeholder != "":
		return types.Placeholder(n.Placeholder), nil
	case n.Ref != nil, n.Ptr != nil, n.Slice != nil, n.Array != nil:
		return s.indirect(n)
	case n.Tuple != nil:
		elems, err := s.typeList(n.Tuple)
		if err != nil {
			return nil, fmt.Errorf("tuple%w", err)
		}
		return types.Tuple(elems...), nil
	case n.FnPtr != nil:
		in, out, err := s.sig(n.FnPtr.Inputs, n.FnPtr.Output)
		if err != nil {
			return nil, fmt.Errorf("fn_ptr %w", err)
		}
		return types.FnPtr(in, out), nil
	case n.FnDef != "":
		in, out, err := s.sig(n.Inputs, n.Output)
		if err != nil {
			return nil, fmt.Errorf("fn_def %s %w", n.FnDef, err)
		}
		args, err := s.typeList(n.Args)
		if err != nil {
			return nil, fmt.Errorf("fn_def %s args%w", n.FnDef, err)
		}
		return types.FnDef(n.FnDef, in, out, args...), nil
	case n.Closure != "":
		return s.closure(n)
	case n.Generator != "":
		return s.generator(n)
	case n.Dyn != nil:
		preds := make([]types.Existential, len(n.Dyn))
		for i, e := range n.Dyn {
			if e.Cap == "" {
				return nil, fmt.Errorf("dyn bound %d: missing cap", i)
			}
			args, err := s.typeList(e.Args)
			if err != nil {
				return nil, fmt.Errorf("dyn bound %s args%w", e.Cap, err)
			}
			auto, err := s.autoBound(e)
			if err != nil {
				return nil, err
			}
			preds[i] = types.Existential{Cap: e.Cap, Args: args, Auto: auto}
		}
		return types.Dynamic(preds...), nil
	case n.Projection != nil:
		return s.projection(n.Projection)
	case n.Opaque != "":
		args, err := s.typeList(n.Args)
		if err != nil {
			return nil, fmt.Errorf("opaque %s args%w", n.Opaque, err)
		}
		return types.Opaque(n.Opaque, args...), nil
	case n.Var != nil:
		return s.lookup(types.KindInfer, *n.Var)
	case n.IntVar != nil:
		return s.lookup(types.KindIntVar, *n.IntVar)
	case n.FloatVar != nil:
		return s.lookup(types.KindFloatVar, *n.FloatVar)
	}
	return nil, fmt.Errorf("empty type node")
}

func (s *varScope) autoBound(e ExistentialNode) (bool, error) {
	if s == nil || s.capKinds == nil {
		return e.Auto, nil
	}
	kind, ok := s.capKinds[e.Cap]
	if !ok {
		return false, fmt.Errorf("dyn bound: unknown capability %q", e.Cap)
	}
	if e.Auto && kind != types.CapAuto {
		return false, fmt.Errorf("dyn bound: %q is not an auto capability", e.Cap)
	}
	return kind == types.CapAuto, nil
}

func (s *varScope) indirect(n *TypeNode) (*types.Type, error) {
	switch {
	case n.Ref != nil:
		elem, err := s.typ(n.Ref)
		if err != nil {
			return nil, fmt.Errorf("ref: %w", err)
		}
		return types.Ref(elem, n.Mut), nil
	case n.Ptr != nil:
		elem, err := s.typ(n.Ptr)
		if err != nil {
			return nil, fmt.Errorf("ptr: %w", err)
		}
		return types.RawPtr(elem, n.Mut), nil
	case n.Slice != nil:
		elem, err := s.typ(n.Slice)
		if err != nil {
			return nil, fmt.Errorf("slice: %w", err)
		}
		return types.Slice(elem), nil
	default:
		elem, err := s.typ(n.Array)
		if err != nil {
			return nil, fmt.Errorf("array: %w", err)
		}
		if n.Len < 0 {
			return nil, fmt.Errorf("array: negative length %d", n.Len)
		}
		return types.Array(elem, n.Len), nil
	}
}

func (s *varScope) closure(n *TypeNode) (*types.Type, error) {
	kind, err := parseClosureKind(n.Kind)
	if err != nil {
		return nil, fmt.Errorf("closure %s: %w", n.Closure, err)
	}
	in, out, err := s.sig(n.Inputs, n.Output)
	if err != nil {
		return nil, fmt.Errorf("closure %s %w", n.Closure, err)
	}
	upvars, err := s.optional(n.Upvars)
	if err != nil {
		return nil, fmt.Errorf("closure %s upvars: %w", n.Closure, err)
	}
	return types.Closure(n.Closure, kind, in, out, upvars), nil
}

func (s *varScope) generator(n *TypeNode) (*types.Type, error) {
	var sig types.GenSig
	sig.Async = n.Async
	var err error
	for _, part := range []struct {
		name string
		node *TypeNode
		dst  **types.Type
	}{
		{"resume", n.Resume, &sig.Resume},
		{"yield", n.Yield, &sig.Yield},
		{"return", n.Return, &sig.Return},
	} {
		if *part.dst, err = s.optional(part.node); err != nil {
			return nil, fmt.Errorf("generator %s %s: %w", n.Generator, part.name, err)
		}
	}
	upvars, err := s.optional(n.Upvars)
	if err != nil {
		return nil, fmt.Errorf("generator %s upvars: %w", n.Generator, err)
	}
	var witness *types.Type
	if n.Witness != nil {
		tys, err := s.typeList(n.Witness)
		if err != nil {
			return nil, fmt.Errorf("generator %s witness%w", n.Generator, err)
		}
		witness = types.Witness(tys...)
	}
	return types.Generator(n.Generator, sig, upvars, witness), nil
}

func (s *varScope) projection(p *ProjectionNode) (*types.Type, error) {
	if p.Cap == "" || p.Item == "" {
		return nil, fmt.Errorf("projection needs cap and item")
	}
	self, err := s.typ(p.Self)
	if err != nil {
		return nil, fmt.Errorf("projection self: %w", err)
	}
	args, err := s.typeList(p.Args)
	if err != nil {
		return nil, fmt.Errorf("projection args%w", err)
	}
	return types.Projection(self, p.Cap, p.Item, args...), nil
}

func (s *varScope) traitRef(n *TraitNode) (types.TraitRef, error) {
	if n.Cap == "" {
		return types.TraitRef{}, fmt.Errorf("trait predicate needs cap")
	}
	self := types.Param("Self")
	if n.Self != nil {
		var err error
		if self, err = s.typ(n.Self); err != nil {
			return types.TraitRef{}, fmt.Errorf("%s self: %w", n.Cap, err)
		}
	}
	args, err := s.typeList(n.Args)
	if err != nil {
		return types.TraitRef{}, fmt.Errorf("%s args%w", n.Cap, err)
	}
	return types.TraitRef{Cap: n.Cap, Self: self, Args: args}, nil
}

func (s *varScope) predicate(n PredicateNode) (types.Predicate, error) {
	switch {
	case n.Trait != nil && n.Normalizes != nil:
		return types.Predicate{}, fmt.Errorf("predicate sets both trait and normalizes")
	case n.Trait != nil:
		r, err := s.traitRef(n.Trait)
		if err != nil {
			return types.Predicate{}, err
		}
		return types.TraitPred(r), nil
	case n.Normalizes != nil:
		alias, err := s.projection(&n.Normalizes.Projection)
		if err != nil {
			return types.Predicate{}, err
		}
		term, err := s.typ(n.Normalizes.Term)
		if err != nil {
			return types.Predicate{}, fmt.Errorf("normalizes term: %w", err)
		}
		return types.NormalizesTo(alias, term), nil
	}
	return types.Predicate{}, fmt.Errorf("empty predicate")
}

func (s *varScope) predicates(nodes []PredicateNode) ([]types.Predicate, error) {
	out := make([]types.Predicate, 0, len(nodes))
	for i, n := range nodes {
		p, err := s.predicate(n)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *varScope) env(nodes []ClauseNode) (types.Env, error) {
	var env types.Env
	for i, n := range nodes {
		p, err := s.predicate(n.PredicateNode)
		if err != nil {
			return types.Env{}, fmt.Errorf("env[%d]: %w", i, err)
		}
		reqs, err := s.predicates(n.Requires)
		if err != nil {
			return types.Env{}, fmt.Errorf("env[%d] requires%w", i, err)
		}
		env.Clauses = append(env.Clauses, types.Clause{Pred: p, Requires: reqs})
	}
	return env, nil
}

func (s *varScope) bounds(nodes []TraitNode) ([]types.BoundRef, error) {
	out := make([]types.BoundRef, 0, len(nodes))
	for i, n := range nodes {
		if n.Cap == "" {
			return nil, fmt.Errorf("bound %d: missing cap", i)
		}
		args, err := s.typeList(n.Args)
		if err != nil {
			return nil, fmt.Errorf("bound %s args%w", n.Cap, err)
		}
		out = append(out, types.BoundRef{Cap: n.Cap, Args: args})
	}
	return out, nil
}
