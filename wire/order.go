package wire

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/sys/cpu"
)

// ByteOrder is a byte order that bridge messages can be encoded in.
//
// The first byte of every bridge message is a flag naming the byte
// order of the rest of the message: 'l' for little endian, 'B' for
// big endian. Receivers accept either, so peers never negotiate an
// order. Senders normally use [NativeEndian].
type ByteOrder interface {
	stdOrder
	flag() byte
}

type stdOrder interface {
	binary.ByteOrder
	binary.AppendByteOrder
}

const (
	flagLittleEndian = 'l'
	flagBigEndian    = 'B'
)

type flaggedOrder struct {
	stdOrder
	f byte
}

func (o flaggedOrder) flag() byte { return o.f }

var (
	BigEndian    ByteOrder = flaggedOrder{binary.BigEndian, flagBigEndian}
	LittleEndian ByteOrder = flaggedOrder{binary.LittleEndian, flagLittleEndian}
	// NativeEndian is the host's byte order.
	NativeEndian ByteOrder = nativeOrder()
)

func nativeOrder() ByteOrder {
	if cpu.IsBigEndian {
		return BigEndian
	}
	return LittleEndian
}

// orderForFlag returns the ByteOrder named by a message's flag byte.
func orderForFlag(f byte) (ByteOrder, error) {
	switch f {
	case flagBigEndian:
		return BigEndian, nil
	case flagLittleEndian:
		return LittleEndian, nil
	default:
		return nil, fmt.Errorf("unknown byte order flag %q", f)
	}
}
