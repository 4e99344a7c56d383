package schema

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// LayoutVersion identifies the placement rules below. It is folded into every
// fingerprint so stored data can be checked against a changed layout.
const LayoutVersion = 1

func defaultOrder(f *Field) int {
	if f.Rank == 0 || f.Bounded() {
		return InlineOrder
	}
	return FreeOrderBase + f.Rank
}

func chain(elem string, rank int) []string {
	c := make([]string, rank+1)
	for i := range c {
		c[i] = strings.Repeat("[]", rank-i) + elem
	}
	return c
}

// sizes computes the footprint of every rank bottom-up. Odd ranks multiply
// the width, even ranks the height; free ranks use the element cap.
func sizes(f *Field) []Size {
	s := make([]Size, f.Rank+1)
	switch f.Kind {
	case Value:
		s[f.Rank] = Size{W: 1, H: 1}
	case Object:
		s[f.Rank] = f.Target.Size
	case Sheet:
		s[f.Rank] = Size{}
	}
	for r := f.Rank - 1; r >= 0; r-- {
		n := f.MaxCount(r)
		s[r] = s[r+1]
		if Horizontal(r) {
			s[r].W *= n
		} else {
			s[r].H *= n
		}
	}
	return s
}

// pack orders the regions and places them side by side: each region starts
// where the previous one ends horizontally, all at the top of the block.
func pack(t *Type) {
	sort.SliceStable(t.Regions, func(i, j int) bool {
		a, b := t.Regions[i], t.Regions[j]
		if a.SortOrder != b.SortOrder {
			return a.SortOrder < b.SortOrder
		}
		return a.Ordinal < b.Ordinal
	})

	var size Size
	for _, f := range t.Regions {
		f.Offset = Size{W: size.W}
		size.W += f.Sizes[0].W
		if h := f.Sizes[0].H; h > size.H {
			size.H = h
		}
	}
	t.Size = size
}

func fingerprint(t *Type) string {
	var b strings.Builder
	b.WriteString("v")
	b.WriteString(strconv.Itoa(LayoutVersion))
	writeLayout(&b, t)
	return fmt.Sprintf("%016x", xxhash.Sum64String(b.String()))
}

func writeLayout(b *strings.Builder, t *Type) {
	fmt.Fprintf(b, "{%s|%s|%s", t.Name, t.SheetName, t.Size)
	for _, group := range [][]*Field{t.Regions, t.Sheets} {
		for _, f := range group {
			fmt.Fprintf(b, "|%s:%s:%s:%v:%v:%s:%t:%s",
				f.Name, f.Chain[0], f.Kind, f.Counts, f.Sizes, f.Offset, f.Optional, f.SheetName)
			if f.Target != nil {
				writeLayout(b, f.Target)
			}
		}
		b.WriteString(";")
	}
	b.WriteString("}")
}
