package packet

import (
	"errors"
	"reflect"
	"testing"
)

func roundTrip[P Packet](t *testing.T, in P) {
	t.Helper()
	raw, err := Encode(in)
	if err != nil {
		t.Fatalf("Encode(%+v): %v", in, err)
	}
	out, rest, err := Decode[P](raw)
	if err != nil {
		t.Fatalf("Decode(%x): %v", raw, err)
	}
	if len(rest) != 0 {
		t.Fatalf("unexpected trailing bytes: %x", rest)
	}
	if !reflect.DeepEqual(in, out) {
		t.Fatalf("round trip mismatch:\n in=%+v\nout=%+v", in, out)
	}
}

func TestRoundTripStart(t *testing.T) {
	roundTrip(t, Start{})
	roundTrip(t, Start{IsWhite: false, Name: String("joiner")})
	roundTrip(t, Start{
		IsWhite: true,
		Name:    String("host"),
		FEN:     String("rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"),
		Time:    Uint32(300),
		Inc:     Uint32(2),
	})
}

func TestRoundTripMove(t *testing.T) {
	roundTrip(t, Move{From: NewSquare(4, 6), To: NewSquare(4, 4)})
	roundTrip(t, Move{Forfeit: true})
	roundTrip(t, Move{From: NewSquare(0, 1), To: NewSquare(0, 0), OfferDraw: true})
	for _, p := range []PromotionPiece{PromoteKnight, PromoteBishop, PromoteRook, PromoteQueen} {
		roundTrip(t, Move{From: NewSquare(7, 1), To: NewSquare(7, 0), Promotion: Promote(p)})
	}
}

func TestRoundTripAck(t *testing.T) {
	roundTrip(t, Ack{})
	roundTrip(t, Ack{OK: true})
	for e := Playing; e <= DrawByAgreement; e++ {
		roundTrip(t, Ack{OK: e != Resignation, EndState: End(e)})
	}
}

func TestDecodeSplitAndCoalesced(t *testing.T) {
	a, _ := Encode(Ack{OK: true})
	b, _ := Encode(Ack{OK: false, EndState: End(CheckMate)})
	stream := append(append([]byte(nil), a...), b...)

	if _, _, err := Decode[Ack](stream[:len(a)-1]); !errors.Is(err, ErrIncomplete) {
		t.Fatalf("expected ErrIncomplete for truncated packet, got %v", err)
	}
	first, rest, err := Decode[Ack](stream)
	if err != nil || !first.OK {
		t.Fatalf("first ack: %+v %v", first, err)
	}
	second, rest, err := Decode[Ack](rest)
	if err != nil || second.OK || EndOrPlaying(second.EndState) != CheckMate {
		t.Fatalf("second ack: %+v %v", second, err)
	}
	if len(rest) != 0 {
		t.Fatalf("expected stream to be drained, %d bytes left", len(rest))
	}
	if _, _, err := Decode[Ack](nil); !errors.Is(err, ErrIncomplete) {
		t.Fatalf("expected ErrIncomplete for empty buffer, got %v", err)
	}
}

func TestDecodeRejectsOtherShapes(t *testing.T) {
	mv, _ := Encode(Move{From: NewSquare(1, 7), To: NewSquare(2, 5)})
	if _, _, err := Decode[Ack](mv); !errors.Is(err, ErrMalformed) {
		t.Fatalf("decoding a Move as Ack must fail, got %v", err)
	}
	start, _ := Encode(Start{IsWhite: true})
	if _, _, err := Decode[Move](start); !errors.Is(err, ErrMalformed) {
		t.Fatalf("decoding a Start as Move must fail, got %v", err)
	}
	if _, _, err := Decode[Start]([]byte{0xff, 0x00}); !errors.Is(err, ErrMalformed) {
		t.Fatalf("garbage must be malformed, got %v", err)
	}
}

func TestSquareString(t *testing.T) {
	if got := NewSquare(4, 6).String(); got != "e2" {
		t.Fatalf("e2 expected, got %s", got)
	}
	if got := NewSquare(0, 0).String(); got != "a8" {
		t.Fatalf("a8 expected, got %s", got)
	}
	if NewSquare(8, 0).Valid() {
		t.Fatalf("file 8 must be invalid")
	}
}
