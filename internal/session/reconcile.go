package session

import (
	nchess "github.com/corentings/chess/v2"
	"go.uber.org/zap"

	"github.com/park285/chesslink/internal/board"
	"github.com/park285/chesslink/internal/packet"
)

// handleMove validates a peer move against the legal moves of its source
// square and commits it, or rejects it leaving the board untouched.
func (s *Session) handleMove(mv packet.Move) error {
	if s.result != nil {
		s.logger.Info("link_move_after_game_over", zap.Stringer("from", mv.From), zap.Stringer("to", mv.To))
		return s.ack(false)
	}
	if mv.Forfeit {
		return s.acceptForfeit()
	}

	peer := s.info.OwnColor.Other()
	from, okFrom := board.SquareFromCoords(mv.From)
	to, okTo := board.SquareFromCoords(mv.To)
	if !okFrom || !okTo {
		return s.reject(mv, "off_board")
	}
	piece := s.board.PieceAt(from)
	if piece == nchess.NoPiece || piece.Color() != peer {
		return s.reject(mv, "no_piece")
	}
	cand, ok := s.board.Lookup(from, to)
	if !ok {
		return s.reject(mv, "not_legal")
	}

	promo := nchess.NoPieceType
	switch {
	case cand.Promotion && mv.Promotion == nil:
		promo = nchess.Queen
	case cand.Promotion:
		pt, ok := board.PieceTypeFromPromotion(*mv.Promotion)
		if !ok {
			return s.reject(mv, "bad_promotion")
		}
		promo = pt
	case mv.Promotion != nil:
		s.logger.Info("link_promotion_ignored", zap.Stringer("from", mv.From), zap.Stringer("to", mv.To))
	}

	c, err := s.board.Commit(from, to, promo)
	if err != nil {
		return s.reject(mv, err.Error())
	}

	agreed := mv.OfferDraw && s.offerOut
	s.offerOut = false
	s.peerOffer = mv.OfferDraw && !agreed
	s.afterCommit(c, false)

	if agreed && !s.board.Status().Terminal() {
		if err := s.board.AgreeDraw(); err != nil {
			s.logger.Warn("link_draw_agreement_failed", zap.Error(err))
		} else if s.queued == nil {
			end := packet.DrawByAgreement
			s.queued = &end
		}
	}

	if err := s.ack(true); err != nil {
		return err
	}
	s.state = Normal
	if s.queued != nil {
		s.finish(*s.queued, s.winner(), reasonFor(*s.queued))
	}
	return nil
}

func (s *Session) acceptForfeit() error {
	s.board.Resign(s.info.OwnColor.Other())
	end := packet.Resignation
	if s.queued == nil {
		s.queued = &end
	}
	if err := s.ack(true); err != nil {
		return err
	}
	s.state = Normal
	s.finish(end, s.info.OwnColor, reasonFor(end))
	return nil
}

func (s *Session) reject(mv packet.Move, reason string) error {
	s.metrics.MoveRejected("remote")
	s.logger.Warn("link_move_rejected",
		zap.Stringer("from", mv.From),
		zap.Stringer("to", mv.To),
		zap.String("reason", reason))
	return s.ack(false)
}

func (s *Session) ack(ok bool) error {
	end := packet.Playing
	if s.queued != nil {
		end = *s.queued
	}
	return send(s, packet.Ack{OK: ok, EndState: packet.End(end)})
}
