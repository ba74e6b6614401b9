package tsdemux

import (
	"bytes"
	"fmt"

	"github.com/icza/bitio"
)

// PSI table_id values this package dispatches on.
const (
	tableIDPAT uint8 = 0x00
	tableIDPMT uint8 = 0x02
)

// psiReassembler accumulates a PSI section's bytes across one or more TS
// packets on a single PID until section_length says it's complete.
//
// This mirrors the teacher library's packetAccumulator in spirit (partition
// reassembly state per PID, detect completion, hand off a finished unit) but
// accumulates a growing byte buffer for one section instead of a slice of
// whole packets, since section boundaries are defined in bytes, not packets.
type psiReassembler struct {
	buf  []byte
	want int // total bytes needed once known (3 + section_length); 0 until the header is readable
}

func newPSIReassembler() *psiReassembler {
	return &psiReassembler{}
}

func (r *psiReassembler) reset() {
	r.buf = nil
	r.want = 0
}

// feedStart begins a new section from a PUSI=1 packet's payload, which
// starts with a pointer_field byte. Per the corrected invariant (see
// REDESIGN FLAGS in SPEC_FULL.md), the section proper begins 1+pointer_field
// bytes into the payload, not just 1 byte in.
func (r *psiReassembler) feedStart(payload []byte) ([]byte, error) {
	if len(payload) < 1 {
		return nil, ErrMalformedSection
	}
	pointer := int(payload[0])
	start := 1 + pointer
	if start > len(payload) {
		return nil, ErrMalformedSection
	}
	r.buf = append([]byte(nil), payload[start:]...)
	r.want = 0
	return r.checkComplete()
}

// feedContinuation appends a PUSI=0 packet's payload to the section in
// progress. Returns (nil, nil) if no section is currently being assembled on
// this PID (the stream was joined mid-section).
func (r *psiReassembler) feedContinuation(payload []byte) ([]byte, error) {
	if r.buf == nil {
		return nil, nil
	}
	r.buf = append(r.buf, payload...)
	return r.checkComplete()
}

func (r *psiReassembler) checkComplete() ([]byte, error) {
	if r.want == 0 {
		if len(r.buf) < 3 {
			return nil, nil
		}
		sectionLength := int(r.buf[1]&0x0f)<<8 | int(r.buf[2])
		r.want = 3 + sectionLength
	}
	if len(r.buf) < r.want {
		return nil, nil
	}
	section := r.buf[:r.want]
	r.buf = nil
	r.want = 0
	return section, nil
}

// psiSectionHeader is the 8-byte header PAT and PMT sections share: a 3-byte
// table header plus the 5-byte section syntax header.
type psiSectionHeader struct {
	TableID                uint8
	SectionSyntaxIndicator bool
	SectionLength          uint16

	TableIDExtension     uint16
	VersionNumber        uint8
	CurrentNextIndicator bool
	SectionNumber        uint8
	LastSectionNumber    uint8

	CRC32 uint32
}

// parsePSISectionHeader parses a complete PAT/PMT section (table_id through
// the trailing CRC32, inclusive) and returns the header plus the byte
// offsets bracketing the table-specific body (after the header, before the
// CRC32 trailer).
func parsePSISectionHeader(section []byte) (h *psiSectionHeader, bodyStart, bodyEnd int, err error) {
	if len(section) < 8 {
		return nil, 0, 0, ErrMalformedSection
	}

	r := bitio.NewCountReader(bytes.NewReader(section))
	h = &psiSectionHeader{}

	h.TableID = r.TryReadByte()
	h.SectionSyntaxIndicator = r.TryReadBool()
	_ = r.TryReadBool()  // private/reserved bit, unused by PAT/PMT
	_ = r.TryReadBits(2) // reserved
	h.SectionLength = uint16(r.TryReadBits(12))

	bodyEnd = 3 + int(h.SectionLength) - 4 // exclusive, bytes; trailing 4 bytes are the CRC32
	sectionEnd := 3 + int(h.SectionLength)
	if sectionEnd > len(section) || bodyEnd < 8 {
		return nil, 0, 0, ErrMalformedSection
	}

	h.TableIDExtension = uint16(r.TryReadBits(16))
	_ = r.TryReadBits(2) // reserved
	h.VersionNumber = uint8(r.TryReadBits(5))
	h.CurrentNextIndicator = r.TryReadBool()
	h.SectionNumber = r.TryReadByte()
	h.LastSectionNumber = r.TryReadByte()

	if r.TryError != nil {
		return nil, 0, 0, fmt.Errorf("tsdemux: parsing PSI section header failed: %w", r.TryError)
	}

	h.CRC32 = uint32(section[bodyEnd])<<24 | uint32(section[bodyEnd+1])<<16 | uint32(section[bodyEnd+2])<<8 | uint32(section[bodyEnd+3])

	return h, 8, bodyEnd, nil
}
