package logistics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/haulnet/internal/world"
)

func TestMatchSingleCarrierToStore(t *testing.T) {
	pf := newTablePathfinder()
	c := carrier("c1", at(0, 0), 0, 50)
	st := store("s1", at(2, 0), 100, 500)
	pf.set(c.Position, st.Position, 2)

	res := MatchCarriers(pf, world.DefaultCostModel, []*Carrier{c}, []Destination{st})

	assert.Empty(t, res.RemainingCarriers)
	assert.Empty(t, res.RemainingDestinations)
	require.Len(t, res.Matches, 1)
	assert.Same(t, c, res.Matches[0].Carrier)
	assert.Equal(t, st.EntityID(), res.Matches[0].Destination.EntityID())
	assert.Equal(t, 2, res.Matches[0].Distance)
	assert.Equal(t, StopNoDestinations, res.Reason)
}

func TestMatchSkipsCarrierAlreadyInRange(t *testing.T) {
	pf := newTablePathfinder()
	near := carrier("near", at(3, 0), 0, 50)
	far := carrier("far", at(0, 0), 0, 50)
	st := store("s1", at(3, 0), 100, 500)
	pf.set(near.Position, st.Position, 0)
	pf.set(far.Position, st.Position, 3)

	res := MatchCarriers(pf, world.DefaultCostModel, []*Carrier{near, far}, []Destination{st})

	require.Len(t, res.Matches, 1)
	assert.Same(t, far, res.Matches[0].Carrier)
	assert.Equal(t, []*Carrier{near}, res.RemainingCarriers)

	// Alone, the in-range carrier never bids and the auction stops.
	res = MatchCarriers(pf, world.DefaultCostModel, []*Carrier{near}, []Destination{st})

	assert.Empty(t, res.Matches)
	assert.Equal(t, []*Carrier{near}, res.RemainingCarriers)
	assert.Len(t, res.RemainingDestinations, 1)
	assert.Equal(t, StopNoProposals, res.Reason)
}

func TestMatchThreeCarriersOneDestination(t *testing.T) {
	pf := newTablePathfinder()
	carriers := []*Carrier{
		carrier("c1", at(0, 0), 0, 50),
		carrier("c2", at(1, 0), 0, 50),
		carrier("c3", at(2, 0), 0, 50),
	}
	dest := store("s1", at(5, 5), 100, 500)
	for _, c := range carriers {
		pf.set(c.Position, dest.Position, 2)
	}

	res := MatchCarriers(pf, world.DefaultCostModel, carriers, []Destination{dest})

	assert.Len(t, res.Matches, 1)
	assert.Len(t, res.RemainingCarriers, 2)
	assert.Empty(t, res.RemainingDestinations)
}

func TestMatchAlwaysIncomplete(t *testing.T) {
	pf := newTablePathfinder()
	pf.incomplete = true
	carriers := []*Carrier{
		carrier("c1", at(0, 0), 0, 50),
		carrier("c2", at(1, 0), 0, 50),
		carrier("c3", at(2, 0), 0, 50),
	}
	dests := []Destination{store("s1", at(4, 0), 10, 100), store("s2", at(6, 0), 10, 100)}

	res := MatchCarriers(pf, world.DefaultCostModel, carriers, dests)

	assert.Equal(t, carriers, res.RemainingCarriers)
	assert.Equal(t, dests, res.RemainingDestinations)
	assert.Empty(t, res.Matches)
	assert.Equal(t, len(carriers), pf.calls)
	assert.Equal(t, 1, res.Rounds)
	assert.Equal(t, StopNoProposals, res.Reason)
}

func TestMatchClosestSuitorWins(t *testing.T) {
	pf := newTablePathfinder()
	far := carrier("far", at(0, 0), 0, 50)
	near := carrier("near", at(3, 0), 0, 50)
	dest := store("s1", at(4, 0), 100, 500)
	pf.set(far.Position, dest.Position, 9)
	pf.set(near.Position, dest.Position, 1)

	res := MatchCarriers(pf, world.DefaultCostModel, []*Carrier{far, near}, []Destination{dest})

	require.Len(t, res.Matches, 1)
	assert.Same(t, near, res.Matches[0].Carrier)
	assert.Equal(t, []*Carrier{far}, res.RemainingCarriers)
}

func TestMatchLoserRebidsNextRound(t *testing.T) {
	pf := newTablePathfinder()
	a := carrier("a", at(0, 0), 0, 50)
	b := carrier("b", at(1, 0), 0, 50)
	x := store("x", at(2, 0), 100, 500)
	y := store("y", at(9, 0), 100, 500)
	// Both prefer x; a is closer, so b must settle for y in round two.
	pf.set(a.Position, x.Position, 2)
	pf.set(a.Position, y.Position, 8)
	pf.set(b.Position, x.Position, 3)
	pf.set(b.Position, y.Position, 7)

	res := MatchCarriers(pf, world.DefaultCostModel, []*Carrier{a, b}, []Destination{x, y})

	require.Len(t, res.Matches, 2)
	assert.Equal(t, 2, res.Rounds)
	got := map[EntityID]EntityID{}
	for _, m := range res.Matches {
		got[m.Carrier.ID] = m.Destination.EntityID()
	}
	assert.Equal(t, map[EntityID]EntityID{"a": "x", "b": "y"}, got)
}

func TestMatchRoundBound(t *testing.T) {
	pf := newTablePathfinder()
	var carriers []*Carrier
	var dests []Destination
	for i := 0; i < 4; i++ {
		carriers = append(carriers, carrier(string(rune('a'+i)), at(i, 0), 0, 50))
	}
	for i := 0; i < 6; i++ {
		dests = append(dests, store(string(rune('p'+i)), at(i, 10), 100, 500))
	}
	// Every carrier can reach every destination; all want the first one most.
	for ci, c := range carriers {
		for di, d := range dests {
			pf.set(c.Position, d.Pos(), 1+di+ci)
		}
	}

	res := MatchCarriers(pf, world.DefaultCostModel, carriers, dests)

	assert.Len(t, res.Matches, 4)
	assert.Empty(t, res.RemainingCarriers)
	assert.Len(t, res.RemainingDestinations, 2)
	assert.LessOrEqual(t, res.Rounds, min(len(carriers), len(dests))+1)
}

func TestMatchRemainderIsStable(t *testing.T) {
	pf := newTablePathfinder()
	a := carrier("a", at(0, 0), 0, 50)
	b := carrier("b", at(1, 0), 0, 50)
	lonely := carrier("lonely", at(20, 20), 0, 50)
	x := store("x", at(2, 0), 100, 500)
	unreachable := store("u", at(-9, -9), 100, 500)
	pf.set(a.Position, x.Position, 2)
	pf.set(b.Position, x.Position, 4)

	first := MatchCarriers(pf, world.DefaultCostModel, []*Carrier{a, b, lonely}, []Destination{x, unreachable})
	second := MatchCarriers(pf, world.DefaultCostModel, first.RemainingCarriers, first.RemainingDestinations)

	assert.Equal(t, first.RemainingCarriers, second.RemainingCarriers)
	assert.Equal(t, first.RemainingDestinations, second.RemainingDestinations)
	assert.Empty(t, second.Matches)
}

func TestAuctionStages(t *testing.T) {
	pf := newTablePathfinder()
	c := carrier("c1", at(0, 0), 0, 50)
	st := store("s1", at(2, 0), 100, 500)
	pf.set(c.Position, st.Position, 2)

	a := NewAuction(pf, world.DefaultCostModel, []*Carrier{c}, []Destination{st})
	assert.Equal(t, StageProposing, a.Stage)

	require.True(t, a.Step())
	assert.Equal(t, StageAccepting, a.Stage)

	require.True(t, a.Step())
	assert.Equal(t, StageProposing, a.Stage)
	assert.Len(t, a.Matches, 1)

	assert.False(t, a.Step())
	assert.Equal(t, StageDraining, a.Stage)
	assert.Equal(t, StopNoDestinations, a.Reason)
	assert.False(t, a.Step())
}

func TestMatchEmptyInputs(t *testing.T) {
	pf := newTablePathfinder()

	res := MatchCarriers(pf, world.DefaultCostModel, nil, []Destination{store("s", at(1, 1), 1, 10)})
	assert.Equal(t, StopNoProposals, res.Reason)
	assert.Len(t, res.RemainingDestinations, 1)

	res = MatchCarriers(pf, world.DefaultCostModel, []*Carrier{carrier("c", at(0, 0), 0, 10)}, nil)
	assert.Equal(t, StopNoDestinations, res.Reason)
	assert.Len(t, res.RemainingCarriers, 1)
	assert.Zero(t, pf.calls)
}

func TestAssignByDestinationKind(t *testing.T) {
	full := carrier("full", at(0, 0), 40, 50)
	empty := carrier("empty", at(0, 0), 0, 50)
	cons := &Consumer{ID: "spawn", Energy: Energy{Current: 280, Capacity: 300}}
	prod := &Producer{ID: "src", Energy: Energy{Current: 30, Capacity: 3000}}
	st := store("box", at(1, 1), 100, 120)

	Assign(Match{Carrier: full, Destination: cons})
	assert.Equal(t, ReserveDeliver, full.Reservation.Kind)
	assert.Equal(t, 20, full.Reservation.Amount)

	Assign(Match{Carrier: empty, Destination: prod})
	assert.Equal(t, ReserveCollect, empty.Reservation.Kind)
	assert.Equal(t, 30, empty.Reservation.Amount)
	assert.True(t, empty.Active())

	Assign(Match{Carrier: full, Destination: st})
	assert.Equal(t, ReserveDeliver, full.Reservation.Kind)
	assert.Equal(t, 20, full.Reservation.Amount)
	assert.Equal(t, EntityID("box"), full.Reservation.TargetID)

	Assign(Match{Carrier: empty, Destination: st})
	assert.Equal(t, ReserveCollect, empty.Reservation.Kind)
	assert.Equal(t, 50, empty.Reservation.Amount)
}
