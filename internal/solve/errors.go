package solve

import (
	"errors"
	"fmt"

	"capsolve/internal/types"
)

// ErrNoSolution is returned when a goal has no proof. It is the only ordinary failure of
// proof search and is expected for most candidate sources on most goals.
var ErrNoSolution = errors.New("no solution")

// InvariantError reports a consistency violation: a type shape that the producer of a goal
// must never let reach structural dispatch. It is raised with panic, never returned.
type InvariantError struct {
	Site string
	Type *types.Type
	Goal string
}

func (e *InvariantError) Error() string {
	if e.Type == nil {
		return fmt.Sprintf("solve: %s failed for `%s`", e.Site, e.Goal)
	}
	if e.Goal != "" {
		return fmt.Sprintf("solve: unexpected self type %s in %s for `%s`", e.Type, e.Site, e.Goal)
	}
	return fmt.Sprintf("solve: unexpected type %s in %s", e.Type, e.Site)
}

func bug(site string, t *types.Type, goal *types.Goal) {
	e := &InvariantError{Site: site, Type: t}
	if goal != nil {
		e.Goal = goal.String()
	}
	panic(e)
}
