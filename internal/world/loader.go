package world

import (
	"bytes"
	"fmt"
	"os"

	"capsolve/internal/infer"
	"capsolve/internal/types"

	"gopkg.in/yaml.v3"
)

// File is the on-disk form of a world: declarations plus the goals to run against them.
type File struct {
	Capabilities []CapabilityNode `yaml:"capabilities"`
	Impls        []ImplNode       `yaml:"impls"`
	Adts         []AdtNode        `yaml:"adts"`
	Opaques      []OpaqueNode     `yaml:"opaques"`
	Goals        []GoalSpec       `yaml:"goals"`
}

// CapabilityNode declares a capability.
type CapabilityNode struct {
	Name    string          `yaml:"name"`
	Params  []string        `yaml:"params,omitempty"`
	Kind    string          `yaml:"kind,omitempty"` // ordinary, auto, alias
	Role    string          `yaml:"role,omitempty"`
	Supers  []TraitNode     `yaml:"supers,omitempty"`
	Clauses []PredicateNode `yaml:"clauses,omitempty"`
	Items   []ItemNode      `yaml:"items,omitempty"`
}

// ItemNode declares an associated type and its bounds.
type ItemNode struct {
	Name   string      `yaml:"name"`
	Bounds []TraitNode `yaml:"bounds,omitempty"`
}

// ImplNode declares an implementation.
type ImplNode struct {
	ID       string               `yaml:"id"`
	Generics []string             `yaml:"generics,omitempty"`
	Cap      string               `yaml:"cap"`
	Self     *TypeNode            `yaml:"self"`
	Args     []*TypeNode          `yaml:"args,omitempty"`
	Where    []PredicateNode      `yaml:"where,omitempty"`
	Assoc    map[string]*TypeNode `yaml:"assoc,omitempty"`
	Polarity string               `yaml:"polarity,omitempty"`
}

// AdtNode declares the structure of an algebraic type.
type AdtNode struct {
	Name         string      `yaml:"name"`
	Generics     []string    `yaml:"generics,omitempty"`
	Fields       []*TypeNode `yaml:"fields,omitempty"`
	Enum         bool        `yaml:"enum,omitempty"`
	Discriminant *TypeNode   `yaml:"discriminant,omitempty"`
	PointerSized bool        `yaml:"pointer_sized,omitempty"`
}

// OpaqueNode declares an opaque type.
type OpaqueNode struct {
	Name     string      `yaml:"name"`
	Generics []string    `yaml:"generics,omitempty"`
	Bounds   []TraitNode `yaml:"bounds,omitempty"`
	Hidden   *TypeNode   `yaml:"hidden,omitempty"`
}

// GoalSpec is a named goal with its environment and optional expected outcome: one of
// proven, ambiguous, overflow or no_solution.
type GoalSpec struct {
	Name   string        `yaml:"name"`
	Goal   PredicateNode `yaml:"goal"`
	Env    []ClauseNode  `yaml:"env,omitempty"`
	Expect string        `yaml:"expect,omitempty"`

	// Set by File.Decls so Build checks dyn bounds against the world.
	capKinds map[string]types.CapKind
}

// Decls are the validated declarations of a world.
type Decls struct {
	Capabilities []*types.Capability
	Impls        []*types.ImplDecl
	Adts         []*types.AdtDecl
	Opaques      []*types.OpaqueDecl
}

// ReadFile parses a world file.
func ReadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read world file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a world document. Unknown fields are rejected.
func Parse(data []byte) (*File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to parse world file: %w", err)
	}
	return &f, nil
}

var capKinds = map[string]types.CapKind{
	"":         types.CapOrdinary,
	"ordinary": types.CapOrdinary,
	"auto":     types.CapAuto,
	"alias":    types.CapAlias,
}

var polarities = map[string]types.Polarity{
	"":            types.PolarityPositive,
	"positive":    types.PolarityPositive,
	"negative":    types.PolarityNegative,
	"reservation": types.PolarityReservation,
}

// Decls converts and validates the declarations of f, and checks the dyn bounds of its goals.
func (f *File) Decls() (*Decls, error) {
	kinds := make(map[string]types.CapKind, len(f.Capabilities))
	for _, n := range f.Capabilities {
		if k, ok := capKinds[n.Kind]; ok {
			kinds[n.Name] = k
		}
	}
	s := &varScope{capKinds: kinds}
	d := &Decls{}
	caps := make(map[string]bool)

	for _, n := range f.Capabilities {
		c, err := n.build(s)
		if err != nil {
			return nil, fmt.Errorf("capability %q: %w", n.Name, err)
		}
		if caps[c.Name] {
			return nil, fmt.Errorf("capability %q declared twice", c.Name)
		}
		caps[c.Name] = true
		d.Capabilities = append(d.Capabilities, c)
	}
	for _, c := range d.Capabilities {
		for _, super := range c.Supers {
			if !caps[super.Cap] {
				return nil, fmt.Errorf("capability %q: unknown super-capability %q", c.Name, super.Cap)
			}
		}
	}

	ids := make(map[string]bool)
	for _, n := range f.Impls {
		impl, err := n.build(s)
		if err != nil {
			return nil, fmt.Errorf("impl %q: %w", n.ID, err)
		}
		if ids[impl.ID] {
			return nil, fmt.Errorf("impl %q declared twice", impl.ID)
		}
		if !caps[impl.Cap] {
			return nil, fmt.Errorf("impl %q: unknown capability %q", impl.ID, impl.Cap)
		}
		ids[impl.ID] = true
		d.Impls = append(d.Impls, impl)
	}

	adts := make(map[string]bool)
	for _, n := range f.Adts {
		adt, err := n.build(s)
		if err != nil {
			return nil, fmt.Errorf("adt %q: %w", n.Name, err)
		}
		if adts[adt.Name] {
			return nil, fmt.Errorf("adt %q declared twice", adt.Name)
		}
		adts[adt.Name] = true
		d.Adts = append(d.Adts, adt)
	}

	opaques := make(map[string]bool)
	for _, n := range f.Opaques {
		o, err := n.build(s)
		if err != nil {
			return nil, fmt.Errorf("opaque %q: %w", n.Name, err)
		}
		if opaques[o.Name] {
			return nil, fmt.Errorf("opaque %q declared twice", o.Name)
		}
		opaques[o.Name] = true
		d.Opaques = append(d.Opaques, o)
	}

	for i := range f.Goals {
		f.Goals[i].capKinds = kinds
		if _, _, err := f.Goals[i].Build(infer.New()); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func (n CapabilityNode) build(s *varScope) (*types.Capability, error) {
	if n.Name == "" {
		return nil, fmt.Errorf("missing name")
	}
	kind, ok := capKinds[n.Kind]
	if !ok {
		return nil, fmt.Errorf("unknown kind %q", n.Kind)
	}
	role, ok := types.ParseRole(n.Role)
	if !ok {
		return nil, fmt.Errorf("unknown role %q", n.Role)
	}
	c := &types.Capability{Name: n.Name, Params: n.Params, Kind: kind, Role: role}
	for i, sn := range n.Supers {
		r, err := s.traitRef(&sn)
		if err != nil {
			return nil, fmt.Errorf("supers[%d]: %w", i, err)
		}
		c.Supers = append(c.Supers, r)
	}
	clauses, err := s.predicates(n.Clauses)
	if err != nil {
		return nil, fmt.Errorf("clauses%w", err)
	}
	if len(clauses) > 0 && kind != types.CapAlias {
		return nil, fmt.Errorf("clauses are only allowed on alias capabilities")
	}
	c.Clauses = clauses
	for _, it := range n.Items {
		if it.Name == "" {
			return nil, fmt.Errorf("item without name")
		}
		bounds, err := s.bounds(it.Bounds)
		if err != nil {
			return nil, fmt.Errorf("item %s: %w", it.Name, err)
		}
		c.Items = append(c.Items, types.AssocItem{Name: it.Name, Bounds: bounds})
	}
	return c, nil
}

func (n ImplNode) build(s *varScope) (*types.ImplDecl, error) {
	if n.ID == "" {
		return nil, fmt.Errorf("missing id")
	}
	if n.Cap == "" {
		return nil, fmt.Errorf("missing cap")
	}
	pol, ok := polarities[n.Polarity]
	if !ok {
		return nil, fmt.Errorf("unknown polarity %q", n.Polarity)
	}
	self, err := s.typ(n.Self)
	if err != nil {
		return nil, fmt.Errorf("self: %w", err)
	}
	args, err := s.typeList(n.Args)
	if err != nil {
		return nil, fmt.Errorf("args%w", err)
	}
	where, err := s.predicates(n.Where)
	if err != nil {
		return nil, fmt.Errorf("where%w", err)
	}
	impl := &types.ImplDecl{
		ID:       n.ID,
		Generics: n.Generics,
		Cap:      n.Cap,
		Self:     self,
		Args:     args,
		Where:    where,
		Polarity: pol,
	}
	if len(n.Assoc) > 0 {
		impl.Assoc = make(map[string]*types.Type, len(n.Assoc))
		for name, tn := range n.Assoc {
			t, err := s.typ(tn)
			if err != nil {
				return nil, fmt.Errorf("assoc %s: %w", name, err)
			}
			impl.Assoc[name] = t
		}
	}
	return impl, nil
}

func (n AdtNode) build(s *varScope) (*types.AdtDecl, error) {
	if n.Name == "" {
		return nil, fmt.Errorf("missing name")
	}
	fields, err := s.typeList(n.Fields)
	if err != nil {
		return nil, fmt.Errorf("fields%w", err)
	}
	disc, err := s.optional(n.Discriminant)
	if err != nil {
		return nil, fmt.Errorf("discriminant: %w", err)
	}
	if disc != nil && !n.Enum {
		return nil, fmt.Errorf("discriminant on a struct")
	}
	return &types.AdtDecl{
		Name:         n.Name,
		Generics:     n.Generics,
		Fields:       fields,
		Enum:         n.Enum,
		Discriminant: disc,
		PointerSized: n.PointerSized,
	}, nil
}

func (n OpaqueNode) build(s *varScope) (*types.OpaqueDecl, error) {
	if n.Name == "" {
		return nil, fmt.Errorf("missing name")
	}
	bounds, err := s.bounds(n.Bounds)
	if err != nil {
		return nil, err
	}
	hidden, err := s.optional(n.Hidden)
	if err != nil {
		return nil, fmt.Errorf("hidden: %w", err)
	}
	return &types.OpaqueDecl{Name: n.Name, Generics: n.Generics, Bounds: bounds, Hidden: hidden}, nil
}

// Build instantiates the goal in infcx. Every distinct `var: N` becomes one fresh variable
// of infcx; the returned slice lists them in order of first appearance.
func (g GoalSpec) Build(infcx *infer.Ctxt) (types.Goal, []*types.Type, error) {
	var order []*types.Type
	s := &varScope{
		capKinds: g.capKinds,
		vars:     make(map[string]*types.Type),
		fresh: func(kind types.Kind) *types.Type {
			var v *types.Type
			switch kind {
			case types.KindIntVar:
				v = infcx.NewIntVar()
			case types.KindFloatVar:
				v = infcx.NewFloatVar()
			default:
				v = infcx.NewVar()
			}
			order = append(order, v)
			return v
		},
	}
	pred, err := s.predicate(g.Goal)
	if err != nil {
		return types.Goal{}, nil, fmt.Errorf("goal %q: %w", g.Name, err)
	}
	env, err := s.env(g.Env)
	if err != nil {
		return types.Goal{}, nil, fmt.Errorf("goal %q: %w", g.Name, err)
	}
	return types.Goal{Pred: pred, Env: env}, order, nil
}

// Expected parses the expected outcome. ok is false when none is declared.
func (g GoalSpec) Expected() (certainty types.Certainty, noSolution, ok bool, err error) {
	switch g.Expect {
	case "":
		return 0, false, false, nil
	case "proven":
		return types.Proven, false, true, nil
	case "ambiguous":
		return types.Ambiguous, false, true, nil
	case "overflow":
		return types.Overflow, false, true, nil
	case "no_solution":
		return 0, true, true, nil
	}
	return 0, false, false, fmt.Errorf("goal %q: unknown expectation %q", g.Name, g.Expect)
}
