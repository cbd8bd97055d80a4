package board

import (
	"errors"
	"testing"

	nchess "github.com/corentings/chess/v2"
	"github.com/park285/chesslink/internal/packet"
)

func sq(t *testing.T, file, rank uint8) nchess.Square {
	t.Helper()
	s, ok := SquareFromCoords(packet.NewSquare(file, rank))
	if !ok {
		t.Fatalf("square (%d,%d) off board", file, rank)
	}
	return s
}

func TestCoordsMapping(t *testing.T) {
	cases := []struct {
		file, rank uint8
		want       nchess.Square
		name       string
	}{
		{4, 6, nchess.E2, "e2"},
		{0, 0, nchess.A8, "a8"},
		{7, 7, nchess.H1, "h1"},
		{0, 7, nchess.A1, "a1"},
	}
	for _, tc := range cases {
		got := sq(t, tc.file, tc.rank)
		if got != tc.want {
			t.Fatalf("(%d,%d) => %v, want %v", tc.file, tc.rank, got, tc.want)
		}
		if got.String() != tc.name {
			t.Fatalf("(%d,%d) name %q, want %q", tc.file, tc.rank, got.String(), tc.name)
		}
		back := CoordsFromSquare(got)
		if back.File != tc.file || back.Rank != tc.rank {
			t.Fatalf("round trip %v => (%d,%d)", got, back.File, back.Rank)
		}
	}
	if Index(packet.NewSquare(4, 6)) != 12 {
		t.Fatalf("e2 index = %d, want 12", Index(packet.NewSquare(4, 6)))
	}
	if _, ok := SquareFromCoords(packet.NewSquare(8, 0)); ok {
		t.Fatalf("file 8 accepted")
	}
}

func TestFromFENDefaultsAndErrors(t *testing.T) {
	b, err := FromFEN("")
	if err != nil {
		t.Fatalf("empty fen: %v", err)
	}
	if b.FEN() != StartFEN {
		t.Fatalf("fen = %q", b.FEN())
	}
	if b.Turn() != nchess.White {
		t.Fatalf("turn = %v", b.Turn())
	}
	if _, err := FromFEN("not a fen"); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestLegalDestinations(t *testing.T) {
	b, _ := FromFEN(StartFEN)
	dests := b.LegalDestinations(nchess.E2)
	if len(dests) != 2 {
		t.Fatalf("e2 destinations = %v", dests)
	}
	if got := b.LegalDestinations(nchess.E7); len(got) != 0 {
		t.Fatalf("black pawn on white turn has moves %v", got)
	}
	if got := b.LegalDestinations(nchess.E4); len(got) != 0 {
		t.Fatalf("empty square has moves %v", got)
	}
}

func TestCommitOpening(t *testing.T) {
	b, _ := FromFEN(StartFEN)
	c, err := b.Commit(nchess.E2, nchess.E4, nchess.NoPieceType)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if c.UCI != "e2e4" || c.SAN != "e4" || c.Ply != 1 || c.Mover != nchess.White {
		t.Fatalf("unexpected commit %+v", c)
	}
	if b.PieceAt(nchess.E4) != nchess.WhitePawn || b.PieceAt(nchess.E2) != nchess.NoPiece {
		t.Fatalf("board not updated")
	}
	if b.Turn() != nchess.Black {
		t.Fatalf("turn not flipped")
	}
	if b.Status() != packet.Playing {
		t.Fatalf("status = %v", b.Status())
	}
}

func TestCommitIllegalLeavesBoard(t *testing.T) {
	b, _ := FromFEN("4k3/8/8/8/8/8/8/R3K3 w - - 0 1")
	before := b.FEN()
	_, err := b.Commit(sq(t, 0, 7), sq(t, 1, 6), nchess.NoPieceType)
	if !errors.Is(err, ErrIllegalMove) {
		t.Fatalf("err = %v, want ErrIllegalMove", err)
	}
	if b.FEN() != before {
		t.Fatalf("board changed: %s", b.FEN())
	}
}

func TestCommitPromotion(t *testing.T) {
	b, _ := FromFEN("7k/P7/8/8/8/8/8/K7 w - - 0 1")
	from, to := sq(t, 0, 1), sq(t, 0, 0)
	cand, ok := b.Lookup(from, to)
	if !ok || !cand.Promotion {
		t.Fatalf("lookup = %+v %v", cand, ok)
	}
	if _, err := b.Commit(from, to, nchess.NoPieceType); !errors.Is(err, ErrPromotionRequired) {
		t.Fatalf("err = %v", err)
	}
	if _, err := b.Commit(from, to, nchess.King); !errors.Is(err, ErrBadPromotion) {
		t.Fatalf("err = %v", err)
	}
	c, err := b.Commit(from, to, nchess.Queen)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if c.UCI != "a7a8q" {
		t.Fatalf("uci = %s", c.UCI)
	}
	if b.PieceAt(nchess.A8) != nchess.WhiteQueen {
		t.Fatalf("a8 = %v", b.PieceAt(nchess.A8))
	}
}

func TestCommitIgnoresPromotionOnQuietMove(t *testing.T) {
	b, _ := FromFEN(StartFEN)
	c, err := b.Commit(nchess.G1, nchess.F3, nchess.Queen)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if c.Promotion != nchess.NoPieceType || c.UCI != "g1f3" {
		t.Fatalf("commit = %+v", c)
	}
}

func TestStatusCheckmate(t *testing.T) {
	b, _ := FromFEN(StartFEN)
	moves := [][2]nchess.Square{
		{nchess.F2, nchess.F3},
		{nchess.E7, nchess.E5},
		{nchess.G2, nchess.G4},
		{nchess.D8, nchess.H4},
	}
	for _, mv := range moves {
		if _, err := b.Commit(mv[0], mv[1], nchess.NoPieceType); err != nil {
			t.Fatalf("commit %v: %v", mv, err)
		}
	}
	if b.Status() != packet.CheckMate {
		t.Fatalf("status = %v", b.Status())
	}
	if b.Outcome() != nchess.BlackWon {
		t.Fatalf("outcome = %v", b.Outcome())
	}
	if got := b.SANMoves(); len(got) != 4 || got[3] != "Qh4#" {
		t.Fatalf("san = %v", got)
	}
}

func TestStatusStalemate(t *testing.T) {
	b, _ := FromFEN("7k/8/6Q1/8/8/8/8/K7 w - - 0 1")
	if _, err := b.Commit(nchess.G6, nchess.F7, nchess.NoPieceType); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if b.Status() != packet.Stalemate {
		t.Fatalf("status = %v", b.Status())
	}
}

func TestThreefoldRepetitionEndsGame(t *testing.T) {
	b, _ := FromFEN(StartFEN)
	cycle := [][2]nchess.Square{
		{nchess.G1, nchess.F3}, {nchess.G8, nchess.F6},
		{nchess.F3, nchess.G1}, {nchess.F6, nchess.G8},
	}
	for round := 0; round < 2; round++ {
		for i, mv := range cycle {
			if b.Status().Terminal() {
				t.Fatalf("game ended early at round %d move %d", round, i)
			}
			if _, err := b.Commit(mv[0], mv[1], nchess.NoPieceType); err != nil {
				t.Fatalf("commit %s%s: %v", mv[0], mv[1], err)
			}
		}
	}
	if b.Status() != packet.DrawByRepetition || b.Outcome() != nchess.Draw {
		t.Fatalf("status = %v outcome = %v", b.Status(), b.Outcome())
	}
}

func TestFiftyMoveRuleEndsGame(t *testing.T) {
	b, _ := FromFEN("7k/8/8/8/8/8/8/K6R w - - 98 60")
	if _, err := b.Commit(nchess.H1, nchess.D1, nchess.NoPieceType); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if b.Status().Terminal() {
		t.Fatalf("ended at 99 half-moves: %v", b.Status())
	}
	if _, err := b.Commit(nchess.H8, nchess.G8, nchess.NoPieceType); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if b.Status() != packet.DrawByFiftyMoveRule {
		t.Fatalf("status = %v", b.Status())
	}
}

func TestResignAndAgreeDraw(t *testing.T) {
	b, _ := FromFEN(StartFEN)
	b.Resign(nchess.White)
	if b.Status() != packet.Resignation || b.Outcome() != nchess.BlackWon {
		t.Fatalf("status = %v outcome = %v", b.Status(), b.Outcome())
	}

	d, _ := FromFEN(StartFEN)
	if err := d.AgreeDraw(); err != nil {
		t.Fatalf("draw: %v", err)
	}
	if d.Status() != packet.DrawByAgreement {
		t.Fatalf("status = %v", d.Status())
	}
}

func TestDrawText(t *testing.T) {
	b, _ := FromFEN(StartFEN)
	want := "8 r n b q k b n r\n" +
		"7 p p p p p p p p\n" +
		"6 . . . . . . . .\n" +
		"5 . . . . . . . .\n" +
		"4 . . . . . . . .\n" +
		"3 . . . . . . . .\n" +
		"2 P P P P P P P P\n" +
		"1 R N B Q K B N R\n" +
		"  a b c d e f g h\n"
	if got := b.Draw(); got != want {
		t.Fatalf("draw =\n%s\nwant\n%s", got, want)
	}
}
