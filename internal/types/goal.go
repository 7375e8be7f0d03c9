package types

import (
	"strconv"
	"strings"
)

// TraitRef is a capability predicate `Self: Cap<Args>`.
type TraitRef struct {
	Cap  string
	Self *Type
	Args []*Type
}

// WithSelf returns a copy of r with the self type replaced.
func (r TraitRef) WithSelf(self *Type) TraitRef {
	return TraitRef{Cap: r.Cap, Self: self, Args: r.Args}
}

// Subst applies a parameter substitution to self and args.
func (r TraitRef) Subst(params map[string]*Type) TraitRef {
	return TraitRef{Cap: r.Cap, Self: r.Self.Subst(params), Args: SubstAll(r.Args, params)}
}

// Map applies fn to every type in r.
func (r TraitRef) Map(fn func(*Type) *Type) TraitRef {
	return TraitRef{Cap: r.Cap, Self: r.Self.Map(fn), Args: mapAll(r.Args, fn)}
}

func (r TraitRef) String() string {
	var b strings.Builder
	r.write(&b, false)
	return b.String()
}

// Key is the canonical form of r; see Type.Key.
func (r TraitRef) Key() string {
	var b strings.Builder
	r.write(&b, true)
	return b.String()
}

func (r TraitRef) write(b *strings.Builder, keyed bool) {
	r.Self.write(b, keyed)
	b.WriteString(": ")
	b.WriteString(r.Cap)
	writeArgs(b, r.Args, keyed)
}

// ProjectionPred states that an alias normalizes to Term.
type ProjectionPred struct {
	Alias *Type // KindAlias with AliasProjection
	Term  *Type
}

func (p ProjectionPred) Map(fn func(*Type) *Type) ProjectionPred {
	return ProjectionPred{Alias: p.Alias.Map(fn), Term: p.Term.Map(fn)}
}

func (p ProjectionPred) String() string {
	var b strings.Builder
	p.write(&b, false)
	return b.String()
}

func (p ProjectionPred) write(b *strings.Builder, keyed bool) {
	p.Alias.write(b, keyed)
	b.WriteString(" == ")
	p.Term.write(b, keyed)
}

// Predicate is either a capability predicate or a projection predicate; exactly one is set.
type Predicate struct {
	Trait      *TraitRef
	Projection *ProjectionPred
}

// TraitPred wraps a TraitRef.
func TraitPred(r TraitRef) Predicate { return Predicate{Trait: &r} }

// NormalizesTo wraps a projection predicate.
func NormalizesTo(alias, term *Type) Predicate {
	return Predicate{Projection: &ProjectionPred{Alias: alias, Term: term}}
}

func (p Predicate) Map(fn func(*Type) *Type) Predicate {
	if p.Trait != nil {
		r := p.Trait.Map(fn)
		return Predicate{Trait: &r}
	}
	if p.Projection != nil {
		pp := p.Projection.Map(fn)
		return Predicate{Projection: &pp}
	}
	return p
}

func (p Predicate) Subst(params map[string]*Type) Predicate {
	if len(params) == 0 {
		return p
	}
	return p.Map(func(n *Type) *Type {
		if n.Kind == KindParam {
			if r, ok := params[n.Name]; ok {
				return r
			}
		}
		return n
	})
}

func (p Predicate) String() string {
	var b strings.Builder
	p.write(&b, false)
	return b.String()
}

func (p Predicate) write(b *strings.Builder, keyed bool) {
	switch {
	case p.Trait != nil:
		p.Trait.write(b, keyed)
	case p.Projection != nil:
		p.Projection.write(b, keyed)
	default:
		b.WriteString("<empty>")
	}
}

// Clause is an assumption in the environment: a predicate that holds provided its extra
// requirements hold.
type Clause struct {
	Pred     Predicate
	Requires []Predicate
}

func (c Clause) Map(fn func(*Type) *Type) Clause {
	out := Clause{Pred: c.Pred.Map(fn)}
	for _, r := range c.Requires {
		out.Requires = append(out.Requires, r.Map(fn))
	}
	return out
}

func (c Clause) String() string {
	var b strings.Builder
	c.write(&b, false)
	return b.String()
}

func (c Clause) write(b *strings.Builder, keyed bool) {
	c.Pred.write(b, keyed)
	for i, r := range c.Requires {
		if i == 0 {
			b.WriteString(" if ")
		} else {
			b.WriteString(", ")
		}
		r.write(b, keyed)
	}
}

// Env is the ordered assumption set visible to a goal.
type Env struct {
	Clauses []Clause
}

func (e Env) Len() int        { return len(e.Clauses) }
func (e Env) At(i int) Clause { return e.Clauses[i] }

func (e Env) Map(fn func(*Type) *Type) Env {
	if len(e.Clauses) == 0 {
		return e
	}
	out := Env{Clauses: make([]Clause, len(e.Clauses))}
	for i, c := range e.Clauses {
		out.Clauses[i] = c.Map(fn)
	}
	return out
}

// Goal is a query: does Pred hold under Env?
type Goal struct {
	Pred Predicate
	Env  Env
}

// NewGoal builds a capability goal.
func NewGoal(self *Type, cap string, args []*Type, env Env) Goal {
	return Goal{Pred: TraitPred(TraitRef{Cap: cap, Self: self, Args: args}), Env: env}
}

// SelfTy returns the self type of a capability goal or the alias of a projection goal.
func (g Goal) SelfTy() *Type {
	if g.Pred.Trait != nil {
		return g.Pred.Trait.Self
	}
	if g.Pred.Projection != nil {
		return g.Pred.Projection.Alias.Alias.SelfTy()
	}
	return nil
}

// WithSelf returns the same goal on a different self type. For a projection goal the self
// type is the first argument of the projected alias.
func (g Goal) WithSelf(self *Type) Goal {
	if pp := g.Pred.Projection; pp != nil {
		a := *pp.Alias.Alias
		a.Args = append([]*Type{self}, a.Args[1:]...)
		return g.With(NormalizesTo(&Type{Kind: KindAlias, Alias: &a}, pp.Term))
	}
	r := g.Pred.Trait.WithSelf(self)
	return Goal{Pred: Predicate{Trait: &r}, Env: g.Env}
}

// Cap returns the capability a goal is about: the predicate's capability, or the capability
// owning the projected item.
func (g Goal) Cap() string {
	if g.Pred.Trait != nil {
		return g.Pred.Trait.Cap
	}
	if g.Pred.Projection != nil {
		return g.Pred.Projection.Alias.Alias.Cap
	}
	return ""
}

// CapArgs returns the capability parameters of a goal, excluding the self type.
func (g Goal) CapArgs() []*Type {
	if g.Pred.Trait != nil {
		return g.Pred.Trait.Args
	}
	if g.Pred.Projection != nil {
		return g.Pred.Projection.Alias.Alias.Args[1:]
	}
	return nil
}

// With returns a goal for another predicate under the same environment.
func (g Goal) With(p Predicate) Goal { return Goal{Pred: p, Env: g.Env} }

func (g Goal) Map(fn func(*Type) *Type) Goal {
	return Goal{Pred: g.Pred.Map(fn), Env: g.Env.Map(fn)}
}

// Key is the canonical form used for recursion checks, caching and comparison.
func (g Goal) Key() string {
	var b strings.Builder
	g.Pred.write(&b, true)
	if len(g.Env.Clauses) > 0 {
		b.WriteString(" | ")
		for i, c := range g.Env.Clauses {
			if i > 0 {
				b.WriteString("; ")
			}
			b.WriteString(strconv.Itoa(i))
			b.WriteByte('=')
			c.write(&b, true)
		}
	}
	return b.String()
}

func (g Goal) String() string { return g.Pred.String() }
