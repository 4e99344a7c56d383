package pipeline

import (
	"fmt"

	"github.com/ukaji3/gridmap-go/pkg/gridmap/address"
	"github.com/ukaji3/gridmap-go/pkg/gridmap/models"
)

// Key identifies a block by sheet and starting cell.
type Key struct {
	Sheet string
	Start address.Cell
}

func (k Key) String() string {
	return fmt.Sprintf("'%s'!%s", k.Sheet, k.Start)
}

// PendingRange ties a requested range to the continuations that will consume
// the grid fetched for it. Pending ranges live for one top-level call.
type PendingRange struct {
	Key   Key
	Range address.Range

	consumers []func(*models.Grid)
	delivered bool
}

// batch collects pending ranges in registration order, merging requests for
// the same key.
type batch struct {
	order []*PendingRange
	byKey map[Key]*PendingRange
}

func newBatch() *batch {
	return &batch{byKey: make(map[Key]*PendingRange)}
}

func (b *batch) register(r address.Range, consume func(*models.Grid)) *PendingRange {
	key := Key{Sheet: r.Sheet, Start: r.Start}
	p, ok := b.byKey[key]
	if !ok {
		p = &PendingRange{Key: key, Range: r}
		b.byKey[key] = p
		b.order = append(b.order, p)
	} else if r.Width() > p.Range.Width() || r.Height() > p.Range.Height() {
		p.Range.End = address.Cell{
			Col: max(p.Range.End.Col, r.End.Col),
			Row: max(p.Range.End.Row, r.End.Row),
		}
	}
	p.consumers = append(p.consumers, consume)
	return p
}

func (b *batch) ranges() []address.Range {
	rs := make([]address.Range, len(b.order))
	for i, p := range b.order {
		rs[i] = p.Range
	}
	return rs
}

// deliver hands grids to their pending ranges. Grids are matched by key; a
// grid whose key is unknown is matched by position in the request list.
func (b *batch) deliver(grids []*models.Grid) error {
	for i, g := range grids {
		if g == nil {
			continue
		}
		p, ok := b.byKey[Key{Sheet: g.Range.Sheet, Start: g.Range.Start}]
		if !ok {
			if i >= len(b.order) {
				return fmt.Errorf("unexpected grid for %s", g.Range)
			}
			p = b.order[i]
		}
		if p.delivered {
			continue
		}
		p.delivered = true
		for _, consume := range p.consumers {
			consume(g)
		}
	}
	return nil
}
