package types

// CapKind classifies a capability for built-in dispatch.
type CapKind uint8

const (
	CapOrdinary CapKind = iota
	CapAuto             // holds iff every structural component holds it
	CapAlias            // shorthand for a conjunction of clauses
)

func (k CapKind) String() string {
	switch k {
	case CapAuto:
		return "auto"
	case CapAlias:
		return "alias"
	}
	return "ordinary"
}

// Role is the built-in role of a capability. At most one role applies per capability.
type Role uint8

const (
	RoleNone Role = iota
	RoleSized
	RoleCopy
	RoleClone
	RolePointerLike
	RoleFn
	RoleFnMut
	RoleFnOnce
	RoleTuple
	RolePointee
	RoleFuture
	RoleGenerator
	RoleUnsize
	RoleDiscriminantKind
)

var roleNames = map[Role]string{
	RoleNone:             "",
	RoleSized:            "sized",
	RoleCopy:             "copy",
	RoleClone:            "clone",
	RolePointerLike:      "pointer_like",
	RoleFn:               "fn",
	RoleFnMut:            "fn_mut",
	RoleFnOnce:           "fn_once",
	RoleTuple:            "tuple",
	RolePointee:          "pointee",
	RoleFuture:           "future",
	RoleGenerator:        "generator",
	RoleUnsize:           "unsize",
	RoleDiscriminantKind: "discriminant_kind",
}

func (r Role) String() string { return roleNames[r] }

// ParseRole maps a role name to its Role. The empty string is RoleNone.
func ParseRole(s string) (Role, bool) {
	for r, name := range roleNames {
		if name == s {
			return r, true
		}
	}
	return RoleNone, false
}

// ClosureKind returns the closure kind a callable role requires.
func (r Role) ClosureKind() (ClosureKind, bool) {
	switch r {
	case RoleFn:
		return ClosureFn, true
	case RoleFnMut:
		return ClosureFnMut, true
	case RoleFnOnce:
		return ClosureFnOnce, true
	}
	return ClosureUnknown, false
}

// BoundRef is a capability reference whose self type is implied by context: the alias for
// item bounds, `Self` for super-relations and alias clauses.
type BoundRef struct {
	Cap  string
	Args []*Type
}

// AssocItem is an associated type declared by a capability.
type AssocItem struct {
	Name   string
	Bounds []BoundRef
}

// Capability is a declared capability. Params excludes the self slot. Supers and Clauses use
// Param("Self") for the self type and Param(p) for each entry of Params.
type Capability struct {
	Name    string
	Params  []string
	Kind    CapKind
	Role    Role
	Supers  []TraitRef
	Clauses []Predicate
	Items   []AssocItem
}

// Item returns the associated item with the given name.
func (c *Capability) Item(name string) (AssocItem, bool) {
	for _, it := range c.Items {
		if it.Name == name {
			return it, true
		}
	}
	return AssocItem{}, false
}

// Polarity of an implementation declaration.
type Polarity uint8

const (
	PolarityPositive Polarity = iota
	PolarityNegative
	// PolarityReservation marks an implementation reserved for future use: it is found by
	// lookup but never commits a caller to its result.
	PolarityReservation
)

func (p Polarity) String() string {
	switch p {
	case PolarityNegative:
		return "negative"
	case PolarityReservation:
		return "reservation"
	}
	return "positive"
}

// ImplDecl is an explicit implementation `impl<Generics> Cap<Args> for Self where Where`.
type ImplDecl struct {
	ID       string
	Generics []string
	Cap      string
	Self     *Type
	Args     []*Type
	Where    []Predicate
	Assoc    map[string]*Type
	Polarity Polarity
}

// AdtDecl describes an algebraic type's structure for structural decomposition.
type AdtDecl struct {
	Name     string
	Generics []string
	Fields   []*Type
	// Enum ADTs have no sized tail; Discriminant is their discriminant type.
	Enum         bool
	Discriminant *Type
	// PointerSized marks ADTs whose layout matches a pointer.
	PointerSized bool
}

// OpaqueDecl describes an opaque type: its declared bounds and, when revealable, its hidden
// type.
type OpaqueDecl struct {
	Name     string
	Generics []string
	Bounds   []BoundRef
	Hidden   *Type
}
