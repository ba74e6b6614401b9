package tsdemux

import "fmt"

// PMTStream is one elementary stream entry from a PMT.
type PMTStream struct {
	ElementaryPID uint16
	StreamType    uint8
	Codec         CodecTag
}

// PMT is a parsed Program Map Table for one program.
type PMT struct {
	ProgramNumber uint16
	VersionNumber uint8
	PCRPID        uint16
	Streams       []PMTStream
}

// parsePMTSection parses a complete, reassembled PMT section. Program and
// elementary stream descriptors are recognized by their length prefix and
// skipped; this package doesn't decode MPEG/DVB descriptors.
func parsePMTSection(section []byte) (*PMT, error) {
	h, bodyStart, bodyEnd, err := parsePSISectionHeader(section)
	if err != nil {
		return nil, fmt.Errorf("tsdemux: parsing PMT section failed: %w", err)
	}
	if h.TableID != tableIDPMT {
		return nil, fmt.Errorf("tsdemux: %w: expected PMT table_id 0x02, got 0x%02x", ErrMalformedSection, h.TableID)
	}
	if bodyStart+4 > bodyEnd {
		return nil, fmt.Errorf("tsdemux: %w: PMT section too short for PCR_PID/program_info_length", ErrMalformedSection)
	}

	pmt := &PMT{
		ProgramNumber: h.TableIDExtension,
		VersionNumber: h.VersionNumber,
	}

	pmt.PCRPID = uint16(section[bodyStart]&0x1f)<<8 | uint16(section[bodyStart+1])
	programInfoLength := int(section[bodyStart+2]&0x0f)<<8 | int(section[bodyStart+3])

	offset := bodyStart + 4 + programInfoLength
	if offset > bodyEnd {
		return nil, fmt.Errorf("tsdemux: %w: program_info_length overruns section", ErrMalformedSection)
	}

	for offset+5 <= bodyEnd {
		streamType := section[offset]
		elementaryPID := uint16(section[offset+1]&0x1f)<<8 | uint16(section[offset+2])
		esInfoLength := int(section[offset+3]&0x0f)<<8 | int(section[offset+4])
		offset += 5 + esInfoLength
		if offset > bodyEnd {
			return nil, fmt.Errorf("tsdemux: %w: ES_info_length overruns section", ErrMalformedSection)
		}
		pmt.Streams = append(pmt.Streams, PMTStream{
			ElementaryPID: elementaryPID,
			StreamType:    streamType,
			Codec:         codecTagForStreamType(streamType),
		})
	}

	return pmt, nil
}
