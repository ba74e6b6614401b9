package tsdemux

import (
	"errors"

	"github.com/asticode/go-astikit"
)

// PIDs with a fixed, reserved meaning.
const (
	PIDPAT uint16 = 0x0000
	PIDSDT uint16 = 0x0011
)

// AccessUnit is one decodable codec frame's worth of bytes, reassembled
// from one or more PES packets on an elementary PID.
//
// Payload is handed to the sink by reference for the duration of the
// callback only: the next access unit on the same PID starts from a fresh
// buffer, but a sink that wants to retain bytes past the callback must copy
// them.
type AccessUnit struct {
	PID     uint16
	Codec   CodecTag
	PTS     *ClockReference
	DTS     *ClockReference
	Payload []byte
}

// frame is an access unit still being assembled.
type frame struct {
	pid     uint16
	codec   CodecTag
	pts     *ClockReference
	dts     *ClockReference
	payload []byte
}

// elementaryState is the per-elementary-PID reassembly state: which PMT it
// belongs to (so a PMT/PAT version change can find and drop it), its
// current codec, continuity tracking, and any frame under assembly.
type elementaryState struct {
	pmtPID     uint16
	streamType uint8
	codec      CodecTag

	havePESHeader bool
	ccSet         bool
	lastCC        uint8

	frame *frame
}

// Demuxer is the top-level TS/PSI/PES coordinator. It holds the PAT, the
// PMTs, and per-elementary-PID reassembly state, and is driven by feeding it
// one 188-byte packet at a time.
//
// A Demuxer is not safe for concurrent use: Feed must not be called from
// more than one goroutine, and a registered sink must not call back into the
// same Demuxer.
type Demuxer struct {
	sink       func(AccessUnit)
	diagnostic func(Diagnostic)
	logger     astikit.CompleteLogger

	pat *PAT

	// pmtPIDs maps a program_map_PID currently listed in the PAT to its
	// program_number, so a packet's PID can be dispatched in O(1).
	//
	// We use map[uint32] instead of map[uint16] for PID-keyed maps, as the
	// Go runtime provides optimized hash functions for (u)int32/64 keys.
	pmtPIDs map[uint32]uint16

	// pmts holds the currently accepted PMT for each program_map_PID.
	pmts map[uint32]*PMT

	// elementary holds reassembly state for every elementary_PID routable
	// under the current PMTs.
	elementary map[uint32]*elementaryState

	// psi holds one section reassembler per PSI PID in use (PIDPAT plus
	// every currently known program_map_PID).
	psi map[uint32]*psiReassembler
}

// DemuxerOption configures a Demuxer at construction time.
type DemuxerOption func(*Demuxer)

// WithAccessUnitSink registers the callback invoked once per emitted access
// unit.
func WithAccessUnitSink(f func(AccessUnit)) DemuxerOption {
	return func(d *Demuxer) { d.sink = f }
}

// WithDiagnosticSink registers the callback invoked for every non-fatal
// diagnostic event. Diagnostics are also always written through the
// package-level logger (or a per-instance one set via WithLogger); the sink
// is additional, not a replacement.
func WithDiagnosticSink(f func(Diagnostic)) DemuxerOption {
	return func(d *Demuxer) { d.diagnostic = f }
}

// WithLogger overrides the package-level diagnostic logger for this
// Demuxer instance only.
func WithLogger(l astikit.StdLogger) DemuxerOption {
	return func(d *Demuxer) { d.logger = astikit.AdaptStdLogger(l) }
}

// NewDemuxer creates a Demuxer ready to Feed.
func NewDemuxer(opts ...DemuxerOption) *Demuxer {
	d := &Demuxer{
		pmtPIDs:    make(map[uint32]uint16),
		pmts:       make(map[uint32]*PMT),
		elementary: make(map[uint32]*elementaryState),
		psi:        make(map[uint32]*psiReassembler),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Feed consumes one TS packet, exactly PacketSize bytes starting with the
// sync byte. Parse errors are reported on the diagnostic channel and
// returned, but never leave the Demuxer's state corrupted: the caller may
// keep feeding subsequent packets.
func (d *Demuxer) Feed(packet []byte) error {
	p, err := parsePacket(packet)
	if err != nil {
		d.report(Diagnostic{Kind: diagnosticKindForPacketError(err), Err: err})
		return err
	}

	if p.AdaptationField != nil {
		if p.AdaptationField.HasPCR {
			d.report(Diagnostic{Kind: DiagnosticPCR, PID: p.Header.PID, PCR: p.AdaptationField.PCR})
		}
		if p.AdaptationField.HasOPCR {
			d.report(Diagnostic{Kind: DiagnosticPCR, PID: p.Header.PID, PCR: p.AdaptationField.OPCR})
		}
	}

	if !p.Header.hasPayload() {
		return nil
	}

	switch {
	case p.Header.PID == PIDPAT:
		return d.feedPAT(p)
	case p.Header.PID == PIDSDT:
		d.report(Diagnostic{Kind: DiagnosticSDTSeen, PID: p.Header.PID})
		return nil
	}

	if _, ok := d.pmtPIDs[uint32(p.Header.PID)]; ok {
		return d.feedPMT(p)
	}
	if es, ok := d.elementary[uint32(p.Header.PID)]; ok {
		return d.feedElementary(p, es)
	}
	return nil
}

// Flush emits every in-progress access unit that has accumulated any
// payload, then clears all pending frames. Call it once, at end of input.
func (d *Demuxer) Flush() {
	for _, es := range d.elementary {
		if es.frame != nil && len(es.frame.payload) > 0 {
			d.emit(es.frame)
		}
		es.frame = nil
	}
}

func (d *Demuxer) feedPAT(p *Packet) error {
	section, err := d.feedPSI(PIDPAT, p)
	if err != nil {
		d.report(Diagnostic{Kind: DiagnosticMalformedSection, PID: PIDPAT, Err: err})
		return err
	}
	if section == nil {
		return nil
	}

	pat, err := parsePATSection(section)
	if err != nil {
		d.report(Diagnostic{Kind: DiagnosticMalformedSection, PID: PIDPAT, Err: err})
		return err
	}

	d.applyPAT(pat)
	return nil
}

func (d *Demuxer) feedPMT(p *Packet) error {
	section, err := d.feedPSI(p.Header.PID, p)
	if err != nil {
		d.report(Diagnostic{Kind: DiagnosticMalformedSection, PID: p.Header.PID, Err: err})
		return err
	}
	if section == nil {
		return nil
	}

	pmt, err := parsePMTSection(section)
	if err != nil {
		d.report(Diagnostic{Kind: DiagnosticMalformedSection, PID: p.Header.PID, Err: err})
		return err
	}

	d.applyPMT(p.Header.PID, pmt)
	return nil
}

// feedPSI drives the section reassembler for pid with p, returning the
// completed section's bytes once enough packets have arrived.
func (d *Demuxer) feedPSI(pid uint16, p *Packet) ([]byte, error) {
	r := d.reassemblerFor(pid)
	if p.Header.PayloadUnitStartIndicator {
		return r.feedStart(p.Payload)
	}
	return r.feedContinuation(p.Payload)
}

func (d *Demuxer) reassemblerFor(pid uint16) *psiReassembler {
	r, ok := d.psi[uint32(pid)]
	if !ok {
		r = newPSIReassembler()
		d.psi[uint32(pid)] = r
	}
	return r
}

func (d *Demuxer) feedElementary(p *Packet, es *elementaryState) error {
	if p.Header.PayloadUnitStartIndicator {
		return d.startPES(p, es)
	}
	return d.continuePES(p, es)
}

func (d *Demuxer) startPES(p *Packet, es *elementaryState) error {
	header, offset, err := parsePESHeader(p.Payload)
	if err != nil {
		d.report(Diagnostic{Kind: DiagnosticInvalidPESStartCode, PID: p.Header.PID, Err: err})
		es.frame = nil
		es.havePESHeader = false
		return err
	}

	var pts, dts *ClockReference
	if header.Optional != nil {
		pts, dts = header.Optional.PTS, header.Optional.DTS
	}

	// An access unit normally ends at every PUSI=1, but when consecutive PES
	// packets on the same PID share a DTS, only the first is a genuine
	// boundary; the rest keep appending into it (see SPEC_FULL.md §4.7).
	if es.frame != nil && !clockReferencesEqual(es.frame.dts, dts) {
		d.emit(es.frame)
		es.frame = nil
	}
	if es.frame == nil {
		es.frame = &frame{pid: p.Header.PID, codec: es.codec, pts: pts, dts: dts}
	}
	if offset < len(p.Payload) {
		es.frame.payload = append(es.frame.payload, p.Payload[offset:]...)
	}

	es.havePESHeader = true
	es.lastCC = p.Header.ContinuityCounter
	es.ccSet = true
	return nil
}

func (d *Demuxer) continuePES(p *Packet, es *elementaryState) error {
	if !es.havePESHeader {
		// Joined the stream mid-PES; there's nothing to append to.
		return nil
	}

	if es.ccSet {
		expected := (es.lastCC + 1) % 16
		if p.Header.ContinuityCounter != expected {
			d.report(Diagnostic{Kind: DiagnosticContinuityLoss, PID: p.Header.PID})
		}
	}
	es.lastCC = p.Header.ContinuityCounter
	es.ccSet = true

	if es.frame != nil {
		es.frame.payload = append(es.frame.payload, p.Payload...)
	}
	return nil
}

func (d *Demuxer) emit(f *frame) {
	if d.sink == nil {
		return
	}
	d.sink(AccessUnit{PID: f.pid, Codec: f.codec, PTS: f.pts, DTS: f.dts, Payload: f.payload})
}

// applyPAT replaces the held PAT on a version change and drops any program
// whose program_map_PID was removed or reassigned, per the PAT/PMT
// versioning invariant in SPEC_FULL.md §3: a different version replaces the
// table atomically and stale reassembly state for PIDs no longer present is
// dropped.
func (d *Demuxer) applyPAT(pat *PAT) {
	if d.pat != nil {
		if d.pat.VersionNumber == pat.VersionNumber {
			return
		}
		for programNumber, oldPMTPID := range d.pat.Programs {
			if newPMTPID, ok := pat.Programs[programNumber]; !ok || newPMTPID != oldPMTPID {
				d.dropProgram(oldPMTPID)
			}
		}
	}

	d.pat = pat
	d.pmtPIDs = make(map[uint32]uint16, len(pat.Programs))
	for programNumber, pmtPID := range pat.Programs {
		d.pmtPIDs[uint32(pmtPID)] = programNumber
	}
}

// dropProgram removes a program_map_PID's PMT, its section reassembler, and
// every elementary stream it owns, without emitting their pending frames:
// the program is gone, not merely updated.
func (d *Demuxer) dropProgram(pmtPID uint16) {
	delete(d.pmts, uint32(pmtPID))
	delete(d.psi, uint32(pmtPID))
	for pid, es := range d.elementary {
		if es.pmtPID == pmtPID {
			delete(d.elementary, pid)
		}
	}
}

// applyPMT replaces the held PMT for pmtPID on a version change, preserving
// continuity state for elementary PIDs whose stream_type is unchanged,
// flushing the pending frame and resetting continuity for PIDs whose
// stream_type changed (the old codec's frame cannot be continued under the
// new codec's identity), and dropping reassembly state (without emission)
// for PIDs no longer listed.
func (d *Demuxer) applyPMT(pmtPID uint16, pmt *PMT) {
	existing, ok := d.pmts[uint32(pmtPID)]
	if ok && existing.VersionNumber == pmt.VersionNumber {
		return
	}

	newByPID := make(map[uint16]PMTStream, len(pmt.Streams))
	for _, s := range pmt.Streams {
		newByPID[s.ElementaryPID] = s
	}

	if ok {
		for _, oldStream := range existing.Streams {
			newStream, stillPresent := newByPID[oldStream.ElementaryPID]
			if !stillPresent {
				delete(d.elementary, uint32(oldStream.ElementaryPID))
				continue
			}
			if newStream.StreamType != oldStream.StreamType {
				if es, exists := d.elementary[uint32(oldStream.ElementaryPID)]; exists {
					if es.frame != nil && len(es.frame.payload) > 0 {
						d.emit(es.frame)
					}
					es.streamType = newStream.StreamType
					es.codec = newStream.Codec
					es.frame = nil
					es.havePESHeader = false
					es.ccSet = false
				}
			}
		}
	}

	for pid, s := range newByPID {
		es, exists := d.elementary[uint32(pid)]
		if !exists {
			es = &elementaryState{pmtPID: pmtPID, streamType: s.StreamType, codec: s.Codec}
			d.elementary[uint32(pid)] = es
		} else {
			es.pmtPID = pmtPID
		}
		if !s.Codec.IsKnown() {
			d.report(Diagnostic{Kind: DiagnosticUnknownStreamType, PID: pid})
		}
	}

	d.pmts[uint32(pmtPID)] = pmt
}

func (d *Demuxer) report(ev Diagnostic) {
	if d.diagnostic != nil {
		d.diagnostic(ev)
	}
	ev.log(d.logger)
}

func diagnosticKindForPacketError(err error) DiagnosticKind {
	switch {
	case errors.Is(err, ErrInvalidSync):
		return DiagnosticInvalidSync
	case errors.Is(err, ErrTruncatedPacket):
		return DiagnosticTruncatedPacket
	case errors.Is(err, ErrMalformedAdaptation):
		return DiagnosticMalformedAdaptation
	default:
		// ErrPacketSize and ErrReservedAdaptationFieldControl have no
		// dedicated diagnostic kind in SPEC_FULL.md §7; both describe a
		// packet discarded wholesale, so they fall into the same bucket
		// as a malformed section.
		return DiagnosticMalformedSection
	}
}

func clockReferencesEqual(a, b *ClockReference) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Base == b.Base && a.Extension == b.Extension
}
