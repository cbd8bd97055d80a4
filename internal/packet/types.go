package packet

import "fmt"

// Square is a wire coordinate: file 0-7 (a-h) and rank 0-7 counted from the
// top of the board as White sees it, so rank 0 is the eighth rank.
type Square struct {
	_    struct{} `cbor:",toarray"`
	File uint8
	Rank uint8
}

func NewSquare(file, rank uint8) Square { return Square{File: file, Rank: rank} }

// Valid reports whether both coordinates are on the board.
func (s Square) Valid() bool { return s.File < 8 && s.Rank < 8 }

func (s Square) String() string {
	if !s.Valid() {
		return fmt.Sprintf("(%d,%d)", s.File, s.Rank)
	}
	return fmt.Sprintf("%c%d", 'a'+s.File, 8-int(s.Rank))
}

// PromotionPiece is the piece a pawn becomes on the back rank.
type PromotionPiece uint8

const (
	PromoteKnight PromotionPiece = iota
	PromoteBishop
	PromoteRook
	PromoteQueen
)

// Valid reports whether p is one of the four promotion pieces.
func (p PromotionPiece) Valid() bool { return p <= PromoteQueen }

func (p PromotionPiece) String() string {
	switch p {
	case PromoteKnight:
		return "knight"
	case PromoteBishop:
		return "bishop"
	case PromoteRook:
		return "rook"
	case PromoteQueen:
		return "queen"
	default:
		return fmt.Sprintf("promotion(%d)", uint8(p))
	}
}

// EndState is the game state a peer reports in an Ack.
type EndState uint8

const (
	Playing EndState = iota
	CheckMate
	Stalemate
	DrawByRepetition
	DrawByInsufficientMaterial
	DrawByFiftyMoveRule
	Resignation
	DrawByAgreement
)

var endStateNames = map[EndState]string{
	Playing:                    "playing",
	CheckMate:                  "checkmate",
	Stalemate:                  "stalemate",
	DrawByRepetition:           "draw_repetition",
	DrawByInsufficientMaterial: "draw_insufficient_material",
	DrawByFiftyMoveRule:        "draw_fifty_move",
	Resignation:                "resignation",
	DrawByAgreement:            "draw_agreement",
}

func (e EndState) String() string {
	if n, ok := endStateNames[e]; ok {
		return n
	}
	return fmt.Sprintf("end_state(%d)", uint8(e))
}

func (e EndState) Valid() bool { return e <= DrawByAgreement }

// Terminal reports whether the state ends move acceptance.
func (e EndState) Terminal() bool { return e != Playing }

// IsDraw reports whether the state is a drawn result.
func (e EndState) IsDraw() bool {
	switch e {
	case Stalemate, DrawByRepetition, DrawByInsufficientMaterial, DrawByFiftyMoveRule, DrawByAgreement:
		return true
	}
	return false
}

// Start is exchanged once in each direction during bootstrap.
type Start struct {
	IsWhite bool    `cbor:"is_white"`
	Name    *string `cbor:"name,omitempty"`
	FEN     *string `cbor:"fen,omitempty"`
	Time    *uint32 `cbor:"time,omitempty"`
	Inc     *uint32 `cbor:"inc,omitempty"`
}

// Move carries one half-move. Forfeit moves ignore From and To.
type Move struct {
	From      Square          `cbor:"from"`
	To        Square          `cbor:"to"`
	Promotion *PromotionPiece `cbor:"promotion,omitempty"`
	Forfeit   bool            `cbor:"forfeit"`
	OfferDraw bool            `cbor:"offer_draw"`
}

// Ack answers exactly one Move.
type Ack struct {
	OK       bool      `cbor:"ok"`
	EndState *EndState `cbor:"end_state,omitempty"`
}

// Optional field helpers.
func String(s string) *string                  { return &s }
func Uint32(v uint32) *uint32                  { return &v }
func Promote(p PromotionPiece) *PromotionPiece { return &p }
func End(e EndState) *EndState                 { return &e }

// EndOrPlaying dereferences an optional end state.
func EndOrPlaying(e *EndState) EndState {
	if e == nil {
		return Playing
	}
	return *e
}
