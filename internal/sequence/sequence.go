// Package sequence plans seqNo reassignments for ordered containers.
//
// Every container holds children whose seqNo values are exactly 1..n at rest.
// PlanMove computes the compensating updates that keep that true when one
// child moves within its container or into another one. Planning is pure:
// callers supply fresh sibling snapshots and apply the result themselves.
package sequence

import (
	"errors"
	"fmt"
	"sort"
)

// ErrInvalidPosition is returned by Validate for a requested position that
// cannot exist in the destination container.
var ErrInvalidPosition = errors.New("sequence: invalid position")

// Sibling is one child of a container as read from the store.
type Sibling struct {
	ID    uint
	SeqNo int
}

// Request describes a move of one item. SeqNo values are 1-based.
type Request struct {
	ItemID                 uint
	SourceContainerID      uint
	DestinationContainerID uint
	OldSeqNo               int
	NewSeqNo               int
}

// CrossContainer reports whether the item changes container.
func (r Request) CrossContainer() bool {
	return r.SourceContainerID != r.DestinationContainerID
}

// Assignment sets one item's seqNo and container.
type Assignment struct {
	ItemID      uint
	ContainerID uint
	SeqNo       int
	Moved       bool // the item named by the request; its container may change
}

// Plan is the ordered list of assignments for a validated request.
// The moved item's assignment always comes first.
type Plan struct {
	Request     Request
	Assignments []Assignment
}

// NoOp reports whether applying the plan changes nothing.
func (p Plan) NoOp() bool {
	return len(p.Assignments) == 0
}

// Moved returns the moved item's assignment, if any.
func (p Plan) Moved() (Assignment, bool) {
	for _, a := range p.Assignments {
		if a.Moved {
			return a, true
		}
	}
	return Assignment{}, false
}

// Validate normalizes req against fresh snapshots of the source container
// (which includes the item) and the destination container (ignored for
// same-container moves). A position past the end is clamped to the last slot;
// a position below 1 is rejected.
func Validate(req Request, source, destination []Sibling) (Request, error) {
	if req.OldSeqNo < 1 {
		return req, fmt.Errorf("%w: old seqNo %d", ErrInvalidPosition, req.OldSeqNo)
	}
	if req.NewSeqNo < 1 {
		return req, fmt.Errorf("%w: new seqNo %d", ErrInvalidPosition, req.NewSeqNo)
	}

	upper := len(source)
	if req.CrossContainer() {
		upper = len(destination) + 1
	}
	if upper < 1 {
		return req, fmt.Errorf("%w: empty source container", ErrInvalidPosition)
	}
	if req.NewSeqNo > upper {
		req.NewSeqNo = upper
	}
	return req, nil
}

// PlanMove computes the assignments for a validated request.
//
// Same container, moving later: siblings in (old, new] shift down by one.
// Same container, moving earlier: siblings in [new, old) shift up by one.
// Across containers: source siblings after old shift down, destination
// siblings at or after new shift up.
func PlanMove(req Request, source, destination []Sibling) Plan {
	plan := Plan{Request: req}

	if !req.CrossContainer() && req.OldSeqNo == req.NewSeqNo {
		return plan
	}

	plan.Assignments = append(plan.Assignments, Assignment{
		ItemID:      req.ItemID,
		ContainerID: req.DestinationContainerID,
		SeqNo:       req.NewSeqNo,
		Moved:       true,
	})

	if !req.CrossContainer() {
		for _, s := range sortedSiblings(source) {
			if s.ID == req.ItemID {
				continue
			}
			switch {
			case req.OldSeqNo < req.NewSeqNo && s.SeqNo > req.OldSeqNo && s.SeqNo <= req.NewSeqNo:
				plan.Assignments = append(plan.Assignments, shift(s, req.SourceContainerID, -1))
			case req.OldSeqNo > req.NewSeqNo && s.SeqNo >= req.NewSeqNo && s.SeqNo < req.OldSeqNo:
				plan.Assignments = append(plan.Assignments, shift(s, req.SourceContainerID, +1))
			}
		}
		return plan
	}

	for _, s := range sortedSiblings(source) {
		if s.ID != req.ItemID && s.SeqNo > req.OldSeqNo {
			plan.Assignments = append(plan.Assignments, shift(s, req.SourceContainerID, -1))
		}
	}
	for _, s := range sortedSiblings(destination) {
		if s.ID != req.ItemID && s.SeqNo >= req.NewSeqNo {
			plan.Assignments = append(plan.Assignments, shift(s, req.DestinationContainerID, +1))
		}
	}
	return plan
}

// PlanRemove returns the assignments that close the gap left by deleting the
// sibling at seqNo.
func PlanRemove(containerID uint, itemID uint, seqNo int, siblings []Sibling) []Assignment {
	var out []Assignment
	for _, s := range sortedSiblings(siblings) {
		if s.ID != itemID && s.SeqNo > seqNo {
			out = append(out, shift(s, containerID, -1))
		}
	}
	return out
}

// NextSeqNo returns the seqNo a newly appended child receives.
func NextSeqNo(siblings []Sibling) int {
	highest := 0
	for _, s := range siblings {
		if s.SeqNo > highest {
			highest = s.SeqNo
		}
	}
	return highest + 1
}

// Contiguous reports whether siblings carry exactly the seqNos 1..n.
func Contiguous(siblings []Sibling) bool {
	seen := make([]bool, len(siblings)+1)
	for _, s := range siblings {
		if s.SeqNo < 1 || s.SeqNo > len(siblings) || seen[s.SeqNo] {
			return false
		}
		seen[s.SeqNo] = true
	}
	return true
}

// Compact returns the assignments that renumber siblings to 1..n, keeping
// their current order and breaking seqNo ties by id.
func Compact(containerID uint, siblings []Sibling) []Assignment {
	var out []Assignment
	for i, s := range sortedSiblings(siblings) {
		if s.SeqNo != i+1 {
			out = append(out, Assignment{ItemID: s.ID, ContainerID: containerID, SeqNo: i + 1})
		}
	}
	return out
}

func shift(s Sibling, containerID uint, delta int) Assignment {
	return Assignment{ItemID: s.ID, ContainerID: containerID, SeqNo: s.SeqNo + delta}
}

func sortedSiblings(in []Sibling) []Sibling {
	out := make([]Sibling, len(in))
	copy(out, in)
	sort.Slice(out, func(i, j int) bool {
		if out[i].SeqNo != out[j].SeqNo {
			return out[i].SeqNo < out[j].SeqNo
		}
		return out[i].ID < out[j].ID
	})
	return out
}
