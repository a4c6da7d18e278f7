// Package wire provides the low-level encoder and decoder for the
// messages exchanged by the remote automation bridge.
//
// Values are aligned to their natural size relative to the start of
// the message, in a byte order chosen by the sender and announced in
// the first byte of every message. The encoder and decoder carry no
// message semantics: it is the caller's responsibility to write and
// read fields in a consistent order.
package wire
