package tsdemux

import "fmt"

// Recognized PMT stream_type values.
const (
	StreamTypeMPEG1Video    uint8 = 0x01
	StreamTypeMPEG2Video    uint8 = 0x02
	StreamTypeMPEG1Audio    uint8 = 0x03
	StreamTypeMPEG2Audio    uint8 = 0x04
	StreamTypeAACADTS       uint8 = 0x0F
	StreamTypeMPEG4Video    uint8 = 0x10
	StreamTypeAACLATM       uint8 = 0x11
	StreamTypeTimedMetadata uint8 = 0x15
	StreamTypeH264          uint8 = 0x1B
	StreamTypeH265          uint8 = 0x24
	StreamTypeAVSPlus       uint8 = 0x42
	StreamTypeSVACVideo     uint8 = 0x80
	StreamTypeG711A         uint8 = 0x90
	StreamTypeG711U         uint8 = 0x91
	StreamTypeG722          uint8 = 0x92
	StreamTypeG723          uint8 = 0x93
	StreamTypeG729          uint8 = 0x99
	StreamTypeSVACAudio     uint8 = 0x9B
	StreamTypeOpus          uint8 = 0x9C
	StreamTypeAVS2          uint8 = 0xD2
	StreamTypeAVS3          uint8 = 0xD4
	StreamTypeVC1           uint8 = 0xEA
)

// CodecTag identifies the codec carried by an elementary stream. Unknown
// stream_type values are still represented, as Unknown(n), rather than
// rejected.
type CodecTag struct {
	name       string
	streamType uint8
	known      bool
}

// StreamType returns the raw PMT stream_type byte this tag was derived from.
func (c CodecTag) StreamType() uint8 { return c.streamType }

// IsKnown reports whether the stream_type maps to a recognized codec.
func (c CodecTag) IsKnown() bool { return c.known }

func (c CodecTag) String() string {
	if !c.known {
		return fmt.Sprintf("Unknown(0x%02x)", c.streamType)
	}
	return c.name
}

func codecTagForStreamType(st uint8) CodecTag {
	name, known := streamTypeNames[st]
	return CodecTag{name: name, streamType: st, known: known}
}

var streamTypeNames = map[uint8]string{
	StreamTypeMPEG1Video:    "MPEG-1 video",
	StreamTypeMPEG2Video:    "MPEG-2 video",
	StreamTypeMPEG1Audio:    "MPEG-1 audio",
	StreamTypeMPEG2Audio:    "MPEG-2 audio",
	StreamTypeAACADTS:       "AAC (ADTS)",
	StreamTypeMPEG4Video:    "MPEG-4 part 2 video",
	StreamTypeAACLATM:       "AAC (LATM)",
	StreamTypeTimedMetadata: "Timed metadata",
	StreamTypeH264:          "H.264/AVC",
	StreamTypeH265:          "H.265/HEVC",
	StreamTypeAVSPlus:       "AVS+",
	StreamTypeSVACVideo:     "SVAC video",
	StreamTypeG711A:         "G.711 A-law",
	StreamTypeG711U:         "G.711 u-law",
	StreamTypeG722:          "G.722",
	StreamTypeG723:          "G.723",
	StreamTypeG729:          "G.729",
	StreamTypeSVACAudio:     "SVAC audio",
	StreamTypeOpus:          "Opus",
	StreamTypeAVS2:          "AVS2",
	StreamTypeAVS3:          "AVS3",
	StreamTypeVC1:           "VC-1",
}
