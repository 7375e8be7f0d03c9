package world

// WorldPredicates enumerates the predicates a world projects into the relation store,
// followed by the derived ones. Used to dump the store in a stable order.
var WorldPredicates = []string{
	"capability",
	"impl",
	"supercap",
	// Derived
	"super_reach",
}

// WorldPredicateSet returns a map form for fast membership checks.
func WorldPredicateSet() map[string]struct{} {
	m := make(map[string]struct{}, len(WorldPredicates))
	for _, p := range WorldPredicates {
		m[p] = struct{}{}
	}
	return m
}
