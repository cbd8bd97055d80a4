package board

import (
	nchess "github.com/corentings/chess/v2"
	"github.com/park285/chesslink/internal/packet"
)

// Index is the canonical square index of a wire coordinate: (7-rank)*8+file.
// It equals the engine's square numbering (a1=0 … h8=63).
func Index(s packet.Square) int {
	return (7-int(s.Rank))*8 + int(s.File)
}

// SquareFromCoords converts a wire coordinate. ok is false off the board.
func SquareFromCoords(s packet.Square) (nchess.Square, bool) {
	if !s.Valid() {
		return 0, false
	}
	return nchess.Square(Index(s)), true
}

// CoordsFromSquare is the inverse of SquareFromCoords.
func CoordsFromSquare(sq nchess.Square) packet.Square {
	return packet.NewSquare(uint8(sq.File()), uint8(7-int(sq.Rank())))
}

// PieceTypeFromPromotion maps a wire promotion onto the engine's piece type.
func PieceTypeFromPromotion(p packet.PromotionPiece) (nchess.PieceType, bool) {
	switch p {
	case packet.PromoteKnight:
		return nchess.Knight, true
	case packet.PromoteBishop:
		return nchess.Bishop, true
	case packet.PromoteRook:
		return nchess.Rook, true
	case packet.PromoteQueen:
		return nchess.Queen, true
	default:
		return nchess.NoPieceType, false
	}
}

// PromotionFromPieceType is the inverse of PieceTypeFromPromotion.
func PromotionFromPieceType(pt nchess.PieceType) (packet.PromotionPiece, bool) {
	switch pt {
	case nchess.Knight:
		return packet.PromoteKnight, true
	case nchess.Bishop:
		return packet.PromoteBishop, true
	case nchess.Rook:
		return packet.PromoteRook, true
	case nchess.Queen:
		return packet.PromoteQueen, true
	default:
		return 0, false
	}
}
