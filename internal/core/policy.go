package core

import (
	"container/heap"
	"fmt"

	"bitcoin-gains/internal/config"
	"bitcoin-gains/internal/model"
)

// LotOrder reports whether a should be disposed of before b.
type LotOrder func(a, b model.Lot) bool

func byAcquisition(a, b model.Lot) bool {
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.Before(b.Timestamp)
	}
	return a.Origin.Less(b.Origin)
}

func byReverseAcquisition(a, b model.Lot) bool {
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.After(b.Timestamp)
	}
	return a.Origin.Less(b.Origin)
}

// PolicyOrder returns the lot ordering for a disposal method. The price
// based methods fall back to acquisition order between equally priced lots.
func PolicyOrder(method string) (LotOrder, error) {
	switch method {
	case config.MethodFIFO:
		return byAcquisition, nil
	case config.MethodLIFO:
		return byReverseAcquisition, nil
	case config.MethodLowest:
		return func(a, b model.Lot) bool {
			if c := a.Price().Cmp(b.Price()); c != 0 {
				return c < 0
			}
			return byAcquisition(a, b)
		}, nil
	case config.MethodHighest:
		return func(a, b model.Lot) bool {
			if c := a.Price().Cmp(b.Price()); c != 0 {
				return c > 0
			}
			return byAcquisition(a, b)
		}, nil
	default:
		return nil, fmt.Errorf("unknown disposal method %q", method)
	}
}

type heldLot struct {
	lot model.Lot
	seq uint64 // acquisition order, kept across splits
}

// lotHeap is a container/heap of open lots. seq breaks any remaining tie
// so pops are fully determined by the input.
type lotHeap struct {
	items []heldLot
	less  LotOrder
}

func (h *lotHeap) Len() int { return len(h.items) }

func (h *lotHeap) Less(i, j int) bool {
	a, b := h.items[i], h.items[j]
	if h.less(a.lot, b.lot) {
		return true
	}
	if h.less(b.lot, a.lot) {
		return false
	}
	return a.seq < b.seq
}

func (h *lotHeap) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }

func (h *lotHeap) Push(x any) { h.items = append(h.items, x.(heldLot)) }

func (h *lotHeap) Pop() any {
	old := h.items
	n := len(old)
	it := old[n-1]
	h.items = old[:n-1]
	return it
}

func (h *lotHeap) push(l heldLot) { heap.Push(h, l) }

func (h *lotHeap) pop() heldLot { return heap.Pop(h).(heldLot) }

// sorted returns the open lots in disposal order without disturbing h.
func (h *lotHeap) sorted() []model.Lot {
	clone := &lotHeap{items: append([]heldLot(nil), h.items...), less: h.less}
	out := make([]model.Lot, 0, clone.Len())
	for clone.Len() > 0 {
		out = append(out, clone.pop().lot)
	}
	return out
}
