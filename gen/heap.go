package gen

import (
	"math/rand"
	"time"

	"github.com/seclog-dev/seclog/gen/population"
)

// actorState is one scheduled arrival process: an actor emitting into one
// stream. The RNG is private to the pair, so adding or removing a stream
// never perturbs another stream's draws.
type actorState struct {
	stream int
	actor  *population.Actor
	rng    *rand.Rand

	nextFire time.Time
	index    int
}

// fireHeap orders states by (nextFire, actorID, stream). The lexical
// tie-breaks keep pops deterministic when several actors fire on the same
// instant, so replays produce identical event order.
type fireHeap []*actorState

func (h fireHeap) Len() int { return len(h) }

func (h fireHeap) Less(i, j int) bool {
	if !h[i].nextFire.Equal(h[j].nextFire) {
		return h[i].nextFire.Before(h[j].nextFire)
	}
	if h[i].actor.ID != h[j].actor.ID {
		return h[i].actor.ID < h[j].actor.ID
	}
	return h[i].stream < h[j].stream
}

func (h fireHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *fireHeap) Push(x any) {
	st := x.(*actorState)
	st.index = len(*h)
	*h = append(*h, st)
}

func (h *fireHeap) Pop() any {
	old := *h
	n := len(old)
	st := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return st
}
