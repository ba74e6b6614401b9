package tsdemux

import "fmt"

// PAT is a parsed Program Association Table: transport_stream_id plus the
// program_number -> program_map_PID mapping.
type PAT struct {
	TransportStreamID uint16
	VersionNumber     uint8

	// Programs maps program_number to program_map_PID. program_number==0
	// entries are recorded separately as the network PID, not here.
	Programs map[uint16]uint16

	NetworkPID    uint16
	HasNetworkPID bool
}

// parsePATSection parses a complete, reassembled PAT section.
func parsePATSection(section []byte) (*PAT, error) {
	h, bodyStart, bodyEnd, err := parsePSISectionHeader(section)
	if err != nil {
		return nil, fmt.Errorf("tsdemux: parsing PAT section failed: %w", err)
	}
	if h.TableID != tableIDPAT {
		return nil, fmt.Errorf("tsdemux: %w: expected PAT table_id 0x00, got 0x%02x", ErrMalformedSection, h.TableID)
	}

	pat := &PAT{
		TransportStreamID: h.TableIDExtension,
		VersionNumber:     h.VersionNumber,
		Programs:          make(map[uint16]uint16),
	}

	for offset := bodyStart; offset+4 <= bodyEnd; offset += 4 {
		programNumber := uint16(section[offset])<<8 | uint16(section[offset+1])
		pid := uint16(section[offset+2]&0x1f)<<8 | uint16(section[offset+3])
		if programNumber == 0 {
			pat.NetworkPID = pid
			pat.HasNetworkPID = true
			continue
		}
		pat.Programs[programNumber] = pid
	}

	return pat, nil
}
