package gen

import (
	"math/rand"
	"time"

	"github.com/seclog-dev/seclog/gen/population"
)

// Source is one log stream (CloudTrail, Entra ID sign-in, ...). The engine
// owns scheduling and rate; a source owns its catalog, sequencing state and
// payload templates, and turns (actor, simulated instant) into a finished
// event.
//
// Emit is never called concurrently for the same source; uniform-mode
// engines serialize calls with a mutex.
type Source interface {
	// ID is the stable stream identifier, used for output directories and
	// RNG partitioning.
	ID() string
	// Actors is the sub-population this source draws from.
	Actors() *population.Population
	// Emit produces the actor's next event at the simulated instant t.
	Emit(rng *rand.Rand, a *population.Actor, t time.Time) (*Event, error)
}
