package board

import (
	"errors"
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"
	"github.com/park285/chesslink/internal/packet"
)

// StartFEN is the standard initial position.
const StartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

var (
	ErrIllegalMove       = errors.New("illegal move")
	ErrPromotionRequired = errors.New("promotion piece required")
	ErrBadPromotion      = errors.New("invalid promotion piece")
)

// Board is the authoritative position of one session. Commit is its only
// mutation of piece placement.
type Board struct {
	game *nchess.Game
}

// Candidate is a legal (from, to) pair as the rules engine sees it.
type Candidate struct {
	From      nchess.Square
	To        nchess.Square
	Promotion bool
}

// Committed describes a move after it was applied.
type Committed struct {
	From      nchess.Square
	To        nchess.Square
	Promotion nchess.PieceType
	Piece     nchess.Piece
	Mover     nchess.Color
	UCI       string
	SAN       string
	Ply       int
	Capture   bool
}

func FromFEN(fen string) (*Board, error) {
	fen = strings.TrimSpace(fen)
	if fen == "" {
		fen = StartFEN
	}
	opt, err := nchess.FEN(fen)
	if err != nil {
		return nil, fmt.Errorf("parse fen %q: %w", fen, err)
	}
	return &Board{game: nchess.NewGame(opt)}, nil
}

func (b *Board) Turn() nchess.Color { return b.game.Position().Turn() }

func (b *Board) FEN() string { return b.game.FEN() }

func (b *Board) PieceAt(sq nchess.Square) nchess.Piece {
	return b.game.Position().Board().Piece(sq)
}

// Snapshot returns the piece on every square, indexed a1=0 … h8=63.
func (b *Board) Snapshot() [64]nchess.Piece {
	var out [64]nchess.Piece
	pos := b.game.Position().Board()
	for i := 0; i < 64; i++ {
		out[i] = pos.Piece(nchess.Square(i))
	}
	return out
}

// LegalDestinations lists where the piece on from may legally move. It is
// empty for an empty square or a piece of the side not to move.
func (b *Board) LegalDestinations(from nchess.Square) []nchess.Square {
	var out []nchess.Square
	seen := make(map[nchess.Square]bool)
	for _, m := range b.game.ValidMoves() {
		if m.S1() != from || seen[m.S2()] {
			continue
		}
		seen[m.S2()] = true
		out = append(out, m.S2())
	}
	return out
}

// Lookup finds the legal move from→to.
func (b *Board) Lookup(from, to nchess.Square) (Candidate, bool) {
	c := Candidate{From: from, To: to}
	found := false
	for _, m := range b.game.ValidMoves() {
		if m.S1() != from || m.S2() != to {
			continue
		}
		found = true
		if m.Promo() != nchess.NoPieceType {
			c.Promotion = true
		}
	}
	return c, found
}

// Commit applies from→to. promo is ignored unless the move promotes, in which
// case it must be a knight, bishop, rook or queen.
func (b *Board) Commit(from, to nchess.Square, promo nchess.PieceType) (Committed, error) {
	c, ok := b.Lookup(from, to)
	if !ok {
		return Committed{}, fmt.Errorf("%w: %s%s", ErrIllegalMove, from, to)
	}
	if c.Promotion {
		if promo == nchess.NoPieceType {
			return Committed{}, ErrPromotionRequired
		}
		if _, ok := promoSuffix[promo]; !ok {
			return Committed{}, fmt.Errorf("%w: %v", ErrBadPromotion, promo)
		}
	} else {
		promo = nchess.NoPieceType
	}

	before := b.game.Position()
	mover := before.Turn()
	piece := b.PieceAt(from)
	uci := from.String() + to.String() + promoSuffix[promo]
	if err := b.game.PushNotationMove(uci, nchess.UCINotation{}, nil); err != nil {
		return Committed{}, fmt.Errorf("%w: %s: %v", ErrIllegalMove, uci, err)
	}
	b.claimDraw()

	moves := b.game.Moves()
	last := moves[len(moves)-1]
	return Committed{
		From:      from,
		To:        to,
		Promotion: promo,
		Piece:     piece,
		Mover:     mover,
		UCI:       uci,
		SAN:       nchess.AlgebraicNotation{}.Encode(before, last),
		Ply:       len(moves),
		Capture:   last.HasTag(nchess.Capture) || last.HasTag(nchess.EnPassant),
	}, nil
}

// claimDraw ends the game at threefold repetition or the fifty-move rule.
// The engine only ends those on its own at fivefold and seventy-five moves.
func (b *Board) claimDraw() {
	if b.game.Outcome() != nchess.NoOutcome {
		return
	}
	for _, m := range b.game.EligibleDraws() {
		if m == nchess.ThreefoldRepetition || m == nchess.FiftyMoveRule {
			if err := b.game.Draw(m); err == nil {
				return
			}
		}
	}
}

var promoSuffix = map[nchess.PieceType]string{
	nchess.NoPieceType: "",
	nchess.Knight:      "n",
	nchess.Bishop:      "b",
	nchess.Rook:        "r",
	nchess.Queen:       "q",
}

// Status maps the engine outcome onto the wire end state.
func (b *Board) Status() packet.EndState {
	if b.game.Outcome() == nchess.NoOutcome {
		return packet.Playing
	}
	switch b.game.Method() {
	case nchess.Checkmate:
		return packet.CheckMate
	case nchess.Stalemate:
		return packet.Stalemate
	case nchess.ThreefoldRepetition, nchess.FivefoldRepetition:
		return packet.DrawByRepetition
	case nchess.InsufficientMaterial:
		return packet.DrawByInsufficientMaterial
	case nchess.FiftyMoveRule, nchess.SeventyFiveMoveRule:
		return packet.DrawByFiftyMoveRule
	case nchess.Resignation:
		return packet.Resignation
	case nchess.DrawOffer:
		return packet.DrawByAgreement
	default:
		if b.game.Outcome() == nchess.Draw {
			return packet.DrawByAgreement
		}
		return packet.CheckMate
	}
}

// Outcome reports the engine's result string ("1-0", "0-1", "1/2-1/2", "*").
func (b *Board) Outcome() nchess.Outcome { return b.game.Outcome() }

// Resign records a resignation by color.
func (b *Board) Resign(color nchess.Color) { b.game.Resign(color) }

// AgreeDraw records a draw by mutual agreement.
func (b *Board) AgreeDraw() error { return b.game.Draw(nchess.DrawOffer) }

// SANMoves returns the game so far in algebraic notation.
func (b *Board) SANMoves() []string {
	positions := b.game.Positions()
	moves := b.game.Moves()
	out := make([]string, len(moves))
	notation := nchess.AlgebraicNotation{}
	for i, mv := range moves {
		if i < len(positions) {
			out[i] = notation.Encode(positions[i], mv)
		}
	}
	return out
}

// Draw renders the position as text, rank 8 first.
func (b *Board) Draw() string {
	var sb strings.Builder
	for rank := nchess.Rank8; rank >= nchess.Rank1; rank-- {
		sb.WriteString(fmt.Sprintf("%d ", int(rank)+1))
		for file := nchess.FileA; file <= nchess.FileH; file++ {
			sb.WriteByte(pieceLetter(b.PieceAt(nchess.NewSquare(file, rank))))
			if file < nchess.FileH {
				sb.WriteByte(' ')
			}
		}
		sb.WriteByte('\n')
	}
	sb.WriteString("  a b c d e f g h\n")
	return sb.String()
}

func pieceLetter(p nchess.Piece) byte {
	if p == nchess.NoPiece {
		return '.'
	}
	var c byte
	switch p.Type() {
	case nchess.King:
		c = 'k'
	case nchess.Queen:
		c = 'q'
	case nchess.Rook:
		c = 'r'
	case nchess.Bishop:
		c = 'b'
	case nchess.Knight:
		c = 'n'
	default:
		c = 'p'
	}
	if p.Color() == nchess.White {
		c -= 'a' - 'A'
	}
	return c
}
