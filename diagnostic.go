package tsdemux

import (
	"fmt"

	"github.com/asticode/go-astikit"
)

// DiagnosticKind classifies a non-fatal event surfaced while demuxing. None
// of these stop the demuxer.
type DiagnosticKind int

const (
	DiagnosticInvalidSync DiagnosticKind = iota
	DiagnosticTruncatedPacket
	DiagnosticMalformedAdaptation
	DiagnosticMalformedSection
	DiagnosticInvalidPESStartCode
	DiagnosticContinuityLoss
	DiagnosticUnknownStreamType
	DiagnosticPCR
	DiagnosticSDTSeen
)

func (k DiagnosticKind) String() string {
	switch k {
	case DiagnosticInvalidSync:
		return "invalid_sync"
	case DiagnosticTruncatedPacket:
		return "truncated_packet"
	case DiagnosticMalformedAdaptation:
		return "malformed_adaptation"
	case DiagnosticMalformedSection:
		return "malformed_section"
	case DiagnosticInvalidPESStartCode:
		return "invalid_pes_start_code"
	case DiagnosticContinuityLoss:
		return "continuity_loss"
	case DiagnosticUnknownStreamType:
		return "unknown_stream_type"
	case DiagnosticPCR:
		return "pcr"
	case DiagnosticSDTSeen:
		return "sdt_seen"
	default:
		return "unknown"
	}
}

// Diagnostic is a single non-fatal event reported while demuxing: a parse
// error that didn't stop processing, a continuity gap, an unrecognized
// stream type, or a surfaced PCR/OPCR sample.
type Diagnostic struct {
	Kind DiagnosticKind
	PID  uint16
	Err  error           // set for error-shaped diagnostics
	PCR  *ClockReference // set for DiagnosticPCR
}

func (d Diagnostic) String() string {
	if d.Err != nil {
		return fmt.Sprintf("tsdemux: pid 0x%04x: %s: %v", d.PID, d.Kind, d.Err)
	}
	return fmt.Sprintf("tsdemux: pid 0x%04x: %s", d.PID, d.Kind)
}

// logger is the package-level diagnostic sink used by a Demuxer that has no
// per-instance logger configured, following the teacher library's global
// SetLogger/AdaptStdLogger convention.
var logger astikit.CompleteLogger = astikit.AdaptStdLogger(nil)

// SetLogger overrides the package-level diagnostic logger.
func SetLogger(l astikit.StdLogger) { logger = astikit.AdaptStdLogger(l) }

// log writes ev through l if set, falling back to the package-level logger.
// Error-shaped diagnostics go through Error; everything else (PCR samples,
// SDT acknowledgement) is informational and goes through Debug.
func (ev Diagnostic) log(l astikit.CompleteLogger) {
	if l == nil {
		l = logger
	}
	if ev.Err != nil {
		l.Error(ev.String())
		return
	}
	l.Debug(ev.String())
}
