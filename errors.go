package tsdemux

import "errors"

// Sentinel error kinds. None of these are fatal to the demuxer: every parse
// path that returns one of these also leaves the demuxer state intact and
// able to process the next packet.
var (
	// ErrInvalidSync is reported when a packet's first byte isn't 0x47.
	ErrInvalidSync = errors.New("tsdemux: packet does not start with sync byte 0x47")

	// ErrPacketSize is reported when Feed is called with a slice that isn't
	// exactly 188 bytes long.
	ErrPacketSize = errors.New("tsdemux: packet must be exactly 188 bytes")

	// ErrReservedAdaptationFieldControl is reported when
	// adaptation_field_control is the reserved value 0b00.
	ErrReservedAdaptationFieldControl = errors.New("tsdemux: adaptation_field_control is reserved")

	// ErrTruncatedPacket is reported when the declared adaptation field
	// length would push the payload offset past the end of the packet.
	ErrTruncatedPacket = errors.New("tsdemux: adaptation field length overruns packet")

	// ErrMalformedAdaptation is reported when an adaptation field's
	// conditional sub-fields don't fit within its declared length.
	ErrMalformedAdaptation = errors.New("tsdemux: adaptation field is truncated")

	// ErrMalformedSection is reported when a PSI or PES field length
	// doesn't fit within its enclosing section or packet.
	ErrMalformedSection = errors.New("tsdemux: section is truncated or malformed")

	// ErrInvalidPESStartCode is reported when a PES header's first three
	// bytes aren't 0x00 0x00 0x01.
	ErrInvalidPESStartCode = errors.New("tsdemux: PES packet does not start with 0x000001")
)
