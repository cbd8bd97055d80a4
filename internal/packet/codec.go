package packet

import (
	"errors"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

var (
	// ErrIncomplete means the buffer holds the start of a packet but not all of it.
	ErrIncomplete = errors.New("packet incomplete")
	// ErrMalformed means the bytes cannot be a packet of the expected shape.
	ErrMalformed = errors.New("packet malformed")
)

// Packet is one of the three wire shapes. The shape is implied by protocol
// state; the codec rejects maps carrying fields of another shape.
type Packet interface {
	Start | Move | Ack
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("packet: cbor enc mode: %v", err))
	}
	decMode, err = cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyEnforcedAPF,
		ExtraReturnErrors: cbor.ExtraDecErrorUnknownField,
		MaxNestedLevels:   4,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("packet: cbor dec mode: %v", err))
	}
}

// Encode serializes p as a single CBOR item.
func Encode[P Packet](p P) ([]byte, error) {
	b, err := encMode.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", KindOf[P](), err)
	}
	return b, nil
}

// Decode reads the first packet in data and returns the bytes after it.
func Decode[P Packet](data []byte) (P, []byte, error) {
	var p P
	if len(data) == 0 {
		return p, data, ErrIncomplete
	}
	rest, err := decMode.UnmarshalFirst(data, &p)
	if err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return p, data, ErrIncomplete
		}
		return p, data, fmt.Errorf("%w: %s: %v", ErrMalformed, KindOf[P](), err)
	}
	return p, rest, nil
}

// KindOf names a packet shape for logs and metrics.
func KindOf[P Packet]() string {
	var p P
	switch any(p).(type) {
	case Start:
		return "start"
	case Move:
		return "move"
	default:
		return "ack"
	}
}
