package tsdemux

import (
	"bytes"
	"fmt"

	"github.com/icza/bitio"
)

// PTS_DTS_flags values.
const (
	ptsDTSIndicatorNone = 0b00
	ptsDTSIndicatorOnly = 0b10
	ptsDTSIndicatorBoth = 0b11
)

// Stream IDs that carry no optional PES header (pure data streams).
const (
	streamIDProgramStreamMap = 0xBC
	streamIDPaddingStream    = 0xBE
	streamIDPrivateStream2   = 0xBF
	streamIDECMStream        = 0xF0
	streamIDEMMStream        = 0xF1
	streamIDDSMCCStream      = 0xF2
	streamIDH222TypeE        = 0xF8
	streamIDProgramStreamDir = 0xFF
)

// DSM trick mode controls.
const (
	trickModeFastForward = 0b000
	trickModeSlowMotion  = 0b001
	trickModeFreezeFrame = 0b010
	trickModeFastReverse = 0b011
	trickModeSlowReverse = 0b100
)

// PESHeader is the parsed header of one PES packet.
type PESHeader struct {
	StreamID     uint8
	PacketLength uint16
	Optional     *PESOptionalHeader
}

// PESOptionalHeader carries the PES header's conditional fields.
type PESOptionalHeader struct {
	ScramblingControl      uint8
	Priority               bool
	DataAlignmentIndicator bool
	IsCopyrighted          bool
	IsOriginal             bool

	PTS *ClockReference
	DTS *ClockReference

	HasESCR bool
	ESCR    *ClockReference

	HasESRate bool
	ESRate    uint32

	HasDSMTrickMode bool
	DSMTrickMode    *DSMTrickMode

	HasAdditionalCopyInfo bool
	AdditionalCopyInfo    uint8

	HasCRC bool
	CRC    uint16

	// HasExtension records whether PES_extension_flag was set. The
	// extension's sub-fields are intentionally left unparsed: the
	// header_data_length-driven skip in parsePESHeader accounts for their
	// bytes without decoding them.
	HasExtension bool
}

// DSMTrickMode describes the optional DSM trick-mode sub-fields.
type DSMTrickMode struct {
	Control             uint8
	FieldID             uint8
	IntraSliceRefresh   bool
	FrequencyTruncation uint8
	RepeatControl       uint8
}

// hasOptionalPESHeader reports whether stream_id carries the optional PES
// header. Program stream map, padding stream, private_stream_2, ECM/EMM,
// DSMCC, ITU-T H.222.1 type E, and program stream directory are pure data
// streams with no optional header.
func hasOptionalPESHeader(streamID uint8) bool {
	switch streamID {
	case streamIDProgramStreamMap, streamIDPaddingStream, streamIDPrivateStream2,
		streamIDECMStream, streamIDEMMStream, streamIDDSMCCStream, streamIDH222TypeE, streamIDProgramStreamDir:
		return false
	}
	return true
}

// parsePESHeader parses a PES header from payload, which must start with
// the 3-byte start code 0x000001. It returns the header and the offset into
// payload where the elementary stream data begins.
func parsePESHeader(payload []byte) (h *PESHeader, dataOffset int, err error) {
	if len(payload) < 6 || payload[0] != 0x00 || payload[1] != 0x00 || payload[2] != 0x01 {
		return nil, 0, ErrInvalidPESStartCode
	}

	r := bitio.NewCountReader(bytes.NewReader(payload[3:]))
	h = &PESHeader{}
	h.StreamID = r.TryReadByte()
	h.PacketLength = uint16(r.TryReadBits(16))
	if r.TryError != nil {
		return nil, 0, fmt.Errorf("tsdemux: parsing PES header failed: %w", r.TryError)
	}

	if !hasOptionalPESHeader(h.StreamID) {
		return h, 6, nil
	}

	opt, headerDataLength, err := parsePESOptionalHeader(r)
	if err != nil {
		return nil, 0, fmt.Errorf("tsdemux: parsing PES optional header failed: %w", err)
	}
	h.Optional = opt

	dataOffset = 9 + int(headerDataLength)
	if dataOffset > len(payload) {
		return nil, 0, fmt.Errorf("tsdemux: %w: PES_header_data_length overruns payload", ErrMalformedSection)
	}
	return h, dataOffset, nil
}

func parsePESOptionalHeader(r *bitio.CountReader) (*PESOptionalHeader, uint8, error) {
	h := &PESOptionalHeader{}

	_ = r.TryReadBits(2) // marker bits, always 0b10
	h.ScramblingControl = uint8(r.TryReadBits(2))
	h.Priority = r.TryReadBool()
	h.DataAlignmentIndicator = r.TryReadBool()
	h.IsCopyrighted = r.TryReadBool()
	h.IsOriginal = r.TryReadBool()

	ptsDTSIndicator := uint8(r.TryReadBits(2))
	h.HasESCR = r.TryReadBool()
	h.HasESRate = r.TryReadBool()
	h.HasDSMTrickMode = r.TryReadBool()
	h.HasAdditionalCopyInfo = r.TryReadBool()
	h.HasCRC = r.TryReadBool()
	h.HasExtension = r.TryReadBool()

	headerDataLength := r.TryReadByte()

	var err error
	switch ptsDTSIndicator {
	case ptsDTSIndicatorOnly:
		_ = r.TryReadBits(4) // marker nibble 0b0010
		if h.PTS, err = parsePTSOrDTS(r); err != nil {
			return nil, 0, fmt.Errorf("parsing PTS failed: %w", err)
		}
		h.DTS = h.PTS
	case ptsDTSIndicatorBoth:
		_ = r.TryReadBits(4) // marker nibble 0b0011
		if h.PTS, err = parsePTSOrDTS(r); err != nil {
			return nil, 0, fmt.Errorf("parsing PTS failed: %w", err)
		}
		_ = r.TryReadBits(4) // marker nibble 0b0001
		if h.DTS, err = parsePTSOrDTS(r); err != nil {
			return nil, 0, fmt.Errorf("parsing DTS failed: %w", err)
		}
	}

	if h.HasESCR {
		if h.ESCR, err = parseESCR(r); err != nil {
			return nil, 0, fmt.Errorf("parsing ESCR failed: %w", err)
		}
	}

	if h.HasESRate {
		_ = r.TryReadBool() // marker bit
		h.ESRate = uint32(r.TryReadBits(22))
		_ = r.TryReadBool() // marker bit
	}

	if h.HasDSMTrickMode {
		m, err := parseDSMTrickMode(r)
		if err != nil {
			return nil, 0, fmt.Errorf("parsing DSM trick mode failed: %w", err)
		}
		h.DSMTrickMode = m
	}

	if h.HasAdditionalCopyInfo {
		_ = r.TryReadBool() // marker bit
		h.AdditionalCopyInfo = uint8(r.TryReadBits(7))
	}

	if h.HasCRC {
		h.CRC = uint16(r.TryReadBits(16))
	}

	return h, headerDataLength, r.TryError
}

func parseDSMTrickMode(r *bitio.CountReader) (*DSMTrickMode, error) {
	m := &DSMTrickMode{}
	m.Control = uint8(r.TryReadBits(3))

	switch m.Control {
	case trickModeFastForward, trickModeFastReverse:
		m.FieldID = uint8(r.TryReadBits(2))
		m.IntraSliceRefresh = r.TryReadBool()
		m.FrequencyTruncation = uint8(r.TryReadBits(2))
	case trickModeFreezeFrame:
		m.FieldID = uint8(r.TryReadBits(2))
		_ = r.TryReadBits(3)
	case trickModeSlowMotion, trickModeSlowReverse:
		m.RepeatControl = uint8(r.TryReadBits(5))
	default:
		_ = r.TryReadBits(5)
	}

	return m, r.TryError
}

// parsePTSOrDTS reads a 33-bit PTS or DTS value, assuming the leading 4-bit
// marker nibble has already been consumed by the caller.
func parsePTSOrDTS(r *bitio.CountReader) (*ClockReference, error) {
	top := int64(r.TryReadBits(3))
	_ = r.TryReadBool() // marker bit
	mid := int64(r.TryReadBits(15))
	_ = r.TryReadBool() // marker bit
	low := int64(r.TryReadBits(15))
	_ = r.TryReadBool() // marker bit
	if r.TryError != nil {
		return nil, r.TryError
	}
	return newClockReference(top<<30|mid<<15|low, 0), nil
}

// parseESCR reads a 33-bit ESCR base plus its 9-bit extension.
func parseESCR(r *bitio.CountReader) (*ClockReference, error) {
	_ = r.TryReadBits(2) // reserved
	top := int64(r.TryReadBits(3))
	_ = r.TryReadBool() // marker bit
	mid := int64(r.TryReadBits(15))
	_ = r.TryReadBool() // marker bit
	low := int64(r.TryReadBits(15))
	_ = r.TryReadBool() // marker bit
	ext := int64(r.TryReadBits(9))
	_ = r.TryReadBool() // marker bit
	if r.TryError != nil {
		return nil, r.TryError
	}
	return newClockReference(top<<30|mid<<15|low, ext), nil
}
