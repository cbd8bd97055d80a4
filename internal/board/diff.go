package board

import nchess "github.com/corentings/chess/v2"

// View is what a presentation layer currently shows: one rendered piece per
// occupied square.
type View map[nchess.Square]nchess.Piece

// Placement is a piece that must be rendered on a square.
type Placement struct {
	Square nchess.Square
	Piece  nchess.Piece
}

// Relocation moves the rendered piece on From to To, replacing whatever was
// rendered on To.
type Relocation struct {
	From nchess.Square
	To   nchess.Square
}

// Diff brings a View in line with the Board. Apply order: Relocate, Remove, Spawn.
type Diff struct {
	Relocate *Relocation
	Remove   []nchess.Square
	Spawn    []Placement
}

func (d Diff) Empty() bool {
	return d.Relocate == nil && len(d.Remove) == 0 && len(d.Spawn) == 0
}

// Signal is the one-shot render notification raised by a commit.
type Signal struct {
	Dirty bool
	Last  *Committed
}

// NewView renders b from scratch.
func NewView(b *Board) View {
	v := make(View)
	for i, p := range b.Snapshot() {
		if p != nchess.NoPiece {
			v[nchess.Square(i)] = p
		}
	}
	return v
}

// ComputeDiff compares view against b from scratch. When last is set, the
// piece rendered on its origin square is first slid to its destination so a
// presentation can animate it instead of respawning.
func ComputeDiff(b *Board, view View, last *Committed) Diff {
	var d Diff
	work := make(View, len(view))
	for sq, p := range view {
		work[sq] = p
	}

	if last != nil {
		if p, ok := work[last.From]; ok && b.PieceAt(last.From) != p {
			d.Relocate = &Relocation{From: last.From, To: last.To}
			delete(work, last.From)
			work[last.To] = p
		}
	}

	squares := b.Snapshot()
	for i := 0; i < 64; i++ {
		sq := nchess.Square(i)
		rendered, ok := work[sq]
		if ok && rendered != squares[i] {
			d.Remove = append(d.Remove, sq)
			delete(work, sq)
		}
	}
	for i := 0; i < 64; i++ {
		sq := nchess.Square(i)
		if squares[i] == nchess.NoPiece {
			continue
		}
		if _, ok := work[sq]; !ok {
			d.Spawn = append(d.Spawn, Placement{Square: sq, Piece: squares[i]})
		}
	}
	return d
}

// Apply performs d on v in place.
func (v View) Apply(d Diff) {
	if d.Relocate != nil {
		if p, ok := v[d.Relocate.From]; ok {
			delete(v, d.Relocate.From)
			v[d.Relocate.To] = p
		}
	}
	for _, sq := range d.Remove {
		delete(v, sq)
	}
	for _, pl := range d.Spawn {
		v[pl.Square] = pl.Piece
	}
}
