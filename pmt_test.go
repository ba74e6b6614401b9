package tsdemux

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type pmtStreamFixture struct {
	streamType uint8
	pid        uint16
}

func buildPMTSection(versionNumber uint8, programNumber, pcrPID uint16, streams []pmtStreamFixture) []byte {
	body := []byte{
		0xE0 | byte(pcrPID>>8), byte(pcrPID),
		0xF0, 0x00, // program_info_length = 0
	}
	for _, s := range streams {
		body = append(body,
			s.streamType,
			0xE0|byte(s.pid>>8), byte(s.pid),
			0xF0, 0x00, // ES_info_length = 0
		)
	}

	sectionLength := 5 + len(body) + 4
	header := []byte{
		tableIDPMT,
		0x80 | byte(sectionLength>>8), byte(sectionLength),
		byte(programNumber >> 8), byte(programNumber),
		0xC0 | versionNumber<<1 | 1,
		0x00,
		0x00,
	}
	section := append(header, body...)
	section = append(section, 0, 0, 0, 0)
	return section
}

func TestParsePMTSection(t *testing.T) {
	section := buildPMTSection(1, 7, 0x1011, []pmtStreamFixture{
		{streamType: StreamTypeH264, pid: 0x1011},
		{streamType: StreamTypeAACADTS, pid: 0x1012},
	})

	pmt, err := parsePMTSection(section)
	assert.NoError(t, err)
	assert.Equal(t, uint16(7), pmt.ProgramNumber)
	assert.Equal(t, uint8(1), pmt.VersionNumber)
	assert.Equal(t, uint16(0x1011), pmt.PCRPID)
	assert.Len(t, pmt.Streams, 2)
	assert.Equal(t, uint16(0x1011), pmt.Streams[0].ElementaryPID)
	assert.True(t, pmt.Streams[0].Codec.IsKnown())
	assert.Equal(t, "H.264/AVC", pmt.Streams[0].Codec.String())
	assert.Equal(t, "AAC (ADTS)", pmt.Streams[1].Codec.String())
}

func TestParsePMTSectionUnknownStreamType(t *testing.T) {
	section := buildPMTSection(0, 1, 0x100, []pmtStreamFixture{{streamType: 0x7F, pid: 0x1F0}})

	pmt, err := parsePMTSection(section)
	assert.NoError(t, err)
	assert.False(t, pmt.Streams[0].Codec.IsKnown())
	assert.Equal(t, "Unknown(0x7f)", pmt.Streams[0].Codec.String())
}

func TestParsePMTSectionProgramInfoLengthSkipped(t *testing.T) {
	descriptors := []byte{0x01, 0x02, 0x03}
	body := []byte{0xE0, 0x50, 0xF0 | byte(len(descriptors)>>8), byte(len(descriptors))}
	body = append(body, descriptors...)
	body = append(body, StreamTypeH265, 0xE0, 0x60, 0xF0, 0x00)

	sectionLength := 5 + len(body) + 4
	header := []byte{
		tableIDPMT,
		0x80 | byte(sectionLength>>8), byte(sectionLength),
		0x00, 0x09,
		0xC1,
		0x00,
		0x00,
	}
	section := append(header, body...)
	section = append(section, 0, 0, 0, 0)

	pmt, err := parsePMTSection(section)
	assert.NoError(t, err)
	assert.Equal(t, uint16(0x50), pmt.PCRPID)
	assert.Len(t, pmt.Streams, 1)
	assert.Equal(t, uint16(0x60), pmt.Streams[0].ElementaryPID)
	assert.Equal(t, StreamTypeH265, pmt.Streams[0].StreamType)
}

func TestParsePMTSectionWrongTableID(t *testing.T) {
	section := buildPMTSection(0, 1, 0x100, nil)
	section[0] = 0x00
	_, err := parsePMTSection(section)
	assert.ErrorIs(t, err, ErrMalformedSection)
}
