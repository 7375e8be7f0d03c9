package solve

import "capsolve/internal/types"

// LookupPolicy controls the shape pre-filter of implementation lookup.
type LookupPolicy struct {
	// LookThroughProjections makes a projection-shaped self type match every implementation,
	// as if its normalized type were unknown. When false a projection is treated as a rigid
	// shape that only blanket implementations can match.
	LookThroughProjections bool
}

// ImplIndex is the registry of declared implementations.
type ImplIndex interface {
	// RelevantImpls returns the implementations of cap whose self-type shape could unify with
	// self. The result may include false positives; it must not miss a matching impl.
	RelevantImpls(cap string, self *types.Type, policy LookupPolicy) []*types.ImplDecl
	// Impl returns an implementation by identity.
	Impl(id string) (*types.ImplDecl, bool)
	// HasExplicitImpl reports whether the named ADT has any implementation of cap, of any
	// polarity.
	HasExplicitImpl(cap, adt string) bool
}

// CapabilityInfo reports capability metadata.
type CapabilityInfo interface {
	Capability(name string) (*types.Capability, bool)
	// RoleCapability returns the capability carrying a built-in role, if one is declared.
	RoleCapability(role types.Role) (string, bool)
	// SuperReaches reports whether super is a transitive super-capability of sub.
	SuperReaches(sub, super string) bool
}

// TypeDecls supplies the declarations structural decomposition needs.
type TypeDecls interface {
	Adt(name string) (*types.AdtDecl, bool)
	Opaque(name string) (*types.OpaqueDecl, bool)
}

// Database bundles every collaborator the solver consumes.
type Database interface {
	ImplIndex
	CapabilityInfo
	TypeDecls
}
