// Carrier auction: each round every unmatched carrier bids on its nearest
// reachable destination and each destination accepts its closest bidder.
package logistics

import (
	"github.com/talgya/haulnet/internal/world"
)

// GoalRange is how close a carrier must stand to act on a destination.
const GoalRange = 1

// AuctionStage is the state of an Auction.
type AuctionStage uint8

const (
	StageProposing AuctionStage = iota // Carriers search for their nearest destination
	StageAccepting                     // Destinations accept their closest proposal
	StageDraining                      // Terminal: remainders are final
)

// StopReason records why an auction reached StageDraining.
type StopReason uint8

const (
	StopNone           StopReason = iota
	StopNoDestinations            // Every destination is matched
	StopNoProposals               // A full round produced no reachable bid
)

func (r StopReason) String() string {
	switch r {
	case StopNoDestinations:
		return "no_destinations"
	case StopNoProposals:
		return "no_proposals"
	}
	return "running"
}

// Match pairs a carrier with a destination.
type Match struct {
	Carrier     *Carrier
	Destination Destination
	Distance    int
	Path        []world.HexCoord
}

type proposal struct {
	carrier  int
	distance int
	path     []world.HexCoord
}

// Auction is the matcher state machine. Create with NewAuction and advance
// with Step, or call Run.
type Auction struct {
	pf   Pathfinder
	cost world.CostModel

	carriers     []*Carrier
	destinations []Destination

	carrierTaken []bool
	destTaken    []bool
	proposals    map[int]proposal

	Stage   AuctionStage
	Reason  StopReason
	Rounds  int
	Matches []Match
}

// NewAuction prepares an auction over the given carriers and destinations.
func NewAuction(pf Pathfinder, cost world.CostModel, carriers []*Carrier, destinations []Destination) *Auction {
	return &Auction{
		pf:           pf,
		cost:         cost,
		carriers:     carriers,
		destinations: destinations,
		carrierTaken: make([]bool, len(carriers)),
		destTaken:    make([]bool, len(destinations)),
		Stage:        StageProposing,
	}
}

// Step performs one stage transition. It returns false once the auction is draining.
func (a *Auction) Step() bool {
	switch a.Stage {
	case StageProposing:
		a.propose()
	case StageAccepting:
		a.accept()
	case StageDraining:
		return false
	}
	return a.Stage != StageDraining
}

// Run steps the auction to completion.
func (a *Auction) Run() *Auction {
	for a.Step() {
	}
	return a
}

func (a *Auction) propose() {
	var goals []world.Goal
	var goalDest []int
	for i, d := range a.destinations {
		if !a.destTaken[i] {
			goals = append(goals, world.Goal{Pos: d.Pos(), Range: GoalRange})
			goalDest = append(goalDest, i)
		}
	}
	if len(goals) == 0 {
		a.drain(StopNoDestinations)
		return
	}

	a.Rounds++
	a.proposals = make(map[int]proposal)
	for ci, c := range a.carriers {
		if a.carrierTaken[ci] {
			continue
		}
		res := a.pf.Search(c.Position, goals, a.cost)
		if res.Incomplete || len(res.Path) == 0 {
			continue
		}
		last := res.Path[len(res.Path)-1]
		di := a.destinationAt(last, goals, goalDest)
		if di < 0 {
			continue
		}
		// Strictly shorter wins, so ties stay with the earlier carrier.
		if prev, ok := a.proposals[di]; ok && prev.distance <= len(res.Path) {
			continue
		}
		a.proposals[di] = proposal{carrier: ci, distance: len(res.Path), path: res.Path}
	}

	if len(a.proposals) == 0 {
		a.drain(StopNoProposals)
		return
	}
	a.Stage = StageAccepting
}

// destinationAt maps a path's final step back to a destination: an exact
// position match first, otherwise the first goal whose range covers it.
func (a *Auction) destinationAt(last world.HexCoord, goals []world.Goal, goalDest []int) int {
	for gi, g := range goals {
		if last == g.Pos {
			return goalDest[gi]
		}
	}
	for gi, g := range goals {
		if world.Distance(last, g.Pos) <= g.Range {
			return goalDest[gi]
		}
	}
	return -1
}

func (a *Auction) accept() {
	for di := range a.destinations {
		p, ok := a.proposals[di]
		if !ok {
			continue
		}
		a.destTaken[di] = true
		a.carrierTaken[p.carrier] = true
		a.Matches = append(a.Matches, Match{
			Carrier:     a.carriers[p.carrier],
			Destination: a.destinations[di],
			Distance:    p.distance,
			Path:        p.path,
		})
	}
	a.proposals = nil
	a.Stage = StageProposing
}

func (a *Auction) drain(reason StopReason) {
	a.Reason = reason
	a.Stage = StageDraining
}

// RemainingCarriers returns the unmatched carriers in input order.
func (a *Auction) RemainingCarriers() []*Carrier {
	var out []*Carrier
	for i, c := range a.carriers {
		if !a.carrierTaken[i] {
			out = append(out, c)
		}
	}
	return out
}

// RemainingDestinations returns the unmatched destinations in input order.
func (a *Auction) RemainingDestinations() []Destination {
	var out []Destination
	for i, d := range a.destinations {
		if !a.destTaken[i] {
			out = append(out, d)
		}
	}
	return out
}

// MatchResult is the outcome of a completed auction.
type MatchResult struct {
	Matches               []Match
	RemainingCarriers     []*Carrier
	RemainingDestinations []Destination
	Rounds                int
	Reason                StopReason
}

// MatchCarriers runs a full auction.
func MatchCarriers(pf Pathfinder, cost world.CostModel, carriers []*Carrier, destinations []Destination) MatchResult {
	a := NewAuction(pf, cost, carriers, destinations).Run()
	return MatchResult{
		Matches:               a.Matches,
		RemainingCarriers:     a.RemainingCarriers(),
		RemainingDestinations: a.RemainingDestinations(),
		Rounds:                a.Rounds,
		Reason:                a.Reason,
	}
}

// Assign writes the match into the carrier's reservation. The amount depends on
// the destination kind.
func Assign(m Match) {
	c := m.Carrier
	res := &CarrierReservation{TargetID: m.Destination.EntityID(), Path: m.Path}
	switch d := m.Destination.(type) {
	case *Consumer:
		res.Kind = ReserveDeliver
		res.Amount = min(c.Energy.Current, d.Energy.Missing())
	case *Producer:
		res.Kind = ReserveCollect
		res.Amount = min(c.Energy.Missing(), d.Energy.Current)
	case *Store:
		if c.Energy.Full() {
			res.Kind = ReserveDeliver
			res.Amount = min(c.Energy.Current, d.Energy.Missing())
		} else {
			res.Kind = ReserveCollect
			res.Amount = min(c.Energy.Missing(), d.Energy.Current)
		}
	}
	c.Reservation = res
}
