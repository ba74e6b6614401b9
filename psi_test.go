package tsdemux

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func buildPATSection(versionNumber uint8, tsID uint16, programs map[uint16]uint16) []byte {
	body := []byte{}
	for programNumber, pid := range programs {
		body = append(body,
			byte(programNumber>>8), byte(programNumber),
			byte(0xE0|pid>>8), byte(pid),
		)
	}
	sectionLength := 5 + len(body) + 4 // table_id_ext..last_section_number + body + crc32
	header := []byte{
		tableIDPAT,
		0x80 | byte(sectionLength>>8), byte(sectionLength),
		byte(tsID >> 8), byte(tsID),
		0xC0 | versionNumber<<1 | 1, // reserved(2) + version(5) + current_next(1)
		0x00, // section_number
		0x00, // last_section_number
	}
	section := append(header, body...)
	section = append(section, 0, 0, 0, 0) // CRC32, unvalidated
	return section
}

func TestPSIReassemblerSinglePacket(t *testing.T) {
	section := buildPATSection(0, 1, map[uint16]uint16{1: 0x1000})
	r := newPSIReassembler()

	payload := append([]byte{0x00}, section...) // pointer_field = 0
	got, err := r.feedStart(payload)
	assert.NoError(t, err)
	assert.Equal(t, section, got)
}

func TestPSIReassemblerPointerFieldSkipsFillerBytes(t *testing.T) {
	section := buildPATSection(0, 1, map[uint16]uint16{1: 0x1000})
	r := newPSIReassembler()

	payload := append([]byte{0x03, 0xAA, 0xAA, 0xAA}, section...) // pointer_field=3, 3 filler bytes
	got, err := r.feedStart(payload)
	assert.NoError(t, err)
	assert.Equal(t, section, got)
}

func TestPSIReassemblerMultiPacket(t *testing.T) {
	section := buildPATSection(0, 1, map[uint16]uint16{1: 0x1000, 2: 0x1001})
	r := newPSIReassembler()

	first := append([]byte{0x00}, section[:5]...)
	got, err := r.feedStart(first)
	assert.NoError(t, err)
	assert.Nil(t, got)

	got, err = r.feedContinuation(section[5:])
	assert.NoError(t, err)
	assert.Equal(t, section, got)
}

func TestPSIReassemblerContinuationWithoutStart(t *testing.T) {
	r := newPSIReassembler()
	got, err := r.feedContinuation([]byte{0x01, 0x02})
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestParsePSISectionHeaderTooShort(t *testing.T) {
	_, _, _, err := parsePSISectionHeader([]byte{0x00, 0x00})
	assert.ErrorIs(t, err, ErrMalformedSection)
}
