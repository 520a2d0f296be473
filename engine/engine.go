package engine

import (
	"fmt"
	"sync/atomic"

	"github.com/seosaudio/seos"
)

// maxCommandsPerBlock caps how many control commands one callback applies, so
// a burst of queued commands cannot blow the render budget.
const maxCommandsPerBlock = 64

// Engine is the audio-thread side of the mixer. One ProcessBlock call renders
// one device callback: it applies queued commands, walks the active render
// plan track by track, mixes the metronome and runs the master chain. All
// communication with the rest of the system goes through the wait-free
// structures (command queue, event ring, param buffer, meters, telemetry) and
// the broker; ProcessBlock itself never locks, allocates or logs.
type Engine struct {
	cfg       Config
	settings  *settings
	transport *Transport
	params    *ParamBuffer
	meters    *MeterBuffer
	telemetry *Telemetry
	compiler  *Compiler
	commands  *CommandQueue
	events    *EventQueue
	scheduler *PatternScheduler
	broker    *Broker
	scope     *Scope
	click     *metronome

	graph atomic.Pointer[AudioGraph]
	tempo atomic.Pointer[seos.TempoMap]

	master       seos.MixBuffer
	masterState  masterState
	masterDbSeed float32

	voices [MaxVoices]previewVoice
}

// NewEngine builds an engine for the given configuration. The broker is
// optional; without one the engine runs headless (offline render, tests).
func NewEngine(c Config, broker *Broker) *Engine {
	e := &Engine{
		cfg:       c,
		settings:  newSettings(c),
		transport: NewTransport(c.SampleRate),
		params:    NewParamBuffer(),
		meters:    NewMeterBuffer(),
		telemetry: NewTelemetry(),
		commands:  NewCommandQueue(DefaultCommandCapacity),
		events:    NewEventQueue(DefaultEventCapacity),
		broker:    broker,
		scope:     NewScope(c.ScopeFrames, true),
		click:     newMetronome(int(c.SampleRate)),
		master:    make(seos.MixBuffer, c.MaxBlockFrames),
	}
	e.compiler = NewCompiler(e.master, c.MaxBlockFrames, e.telemetry)
	e.tempo.Store(seos.ConstantTempo(120, c.SampleRate))
	return e
}

func (e *Engine) Config() Config          { return e.cfg }
func (e *Engine) Transport() *Transport   { return e.transport }
func (e *Engine) Params() *ParamBuffer    { return e.params }
func (e *Engine) Meters() *MeterBuffer    { return e.meters }
func (e *Engine) Telemetry() *Telemetry   { return e.telemetry }
func (e *Engine) Commands() *CommandQueue { return e.commands }
func (e *Engine) Events() *EventQueue     { return e.events }
func (e *Engine) Compiler() *Compiler     { return e.compiler }
func (e *Engine) Scope() *Scope           { return e.scope }

// Runtime toggles; safe from any thread, latched by the audio thread at the
// next block boundary.
func (e *Engine) SetQuality(q Quality)         { e.settings.SetQuality(q) }
func (e *Engine) SetSafety(on bool)            { e.settings.SetSafety(on) }
func (e *Engine) SetHeadroomDb(db float32)     { e.settings.SetHeadroomDb(db) }
func (e *Engine) SetMetronome(on bool)         { e.settings.SetMetronome(on) }
func (e *Engine) SetMetronomeVolume(v float32) { e.settings.SetMetronomeVolume(v) }

// SetScheduler attaches the pattern scheduler whose cancellation flags the
// audio thread consults. Set before the stream starts.
func (e *Engine) SetScheduler(s *PatternScheduler) { e.scheduler = s }

// SeedMasterDb sets the master fader value used until the first param write.
// Set before the stream starts.
func (e *Engine) SeedMasterDb(db float32) { e.masterDbSeed = db }

// SetTempoMap publishes the beat-to-sample map the metronome and the pattern
// scheduler follow. Control thread; swap at safe points or tempo edits.
func (e *Engine) SetTempoMap(tm *seos.TempoMap) {
	if tm != nil {
		e.tempo.Store(tm)
	}
}

// TempoMap returns the published tempo map.
func (e *Engine) TempoMap() *seos.TempoMap { return e.tempo.Load() }

// SetGraph publishes a new graph snapshot and returns the previous one so the
// caller can retire it after a grace period. Control thread only.
func (e *Engine) SetGraph(g *AudioGraph) *AudioGraph {
	return e.graph.Swap(g)
}

// Graph returns the currently published snapshot.
func (e *Engine) Graph() *AudioGraph { return e.graph.Load() }

// ProcessBlock renders len(out) frames. This is the device callback body; it
// is the only function that advances the transport.
func (e *Engine) ProcessBlock(out seos.AudioBuffer) {
	bt := e.telemetry.beginBlock()
	frames := len(out)
	if frames == 0 {
		return
	}
	g := e.graph.Load()
	if frames > e.cfg.MaxBlockFrames || g == nil {
		// Impossible block or nothing to render: substitute silence rather
		// than read out of bounds.
		out.Fill([2]float32{})
		if frames > e.cfg.MaxBlockFrames {
			e.telemetry.Underruns.Add(1)
		}
		e.telemetry.endBlock(bt, frames, e.cfg.SampleRate)
		return
	}

	e.applyCommands(g)

	if !e.audible() {
		out.Fill([2]float32{})
		e.meters.WritePeak(seos.MasterSlot, 0, 0, 0, 0)
		e.telemetry.endBlock(bt, frames, e.cfg.SampleRate)
		return
	}

	plan := e.compiler.Plan()
	playing := e.transport.Playing()
	offset := 0
	for offset < frames {
		seg := e.transport.nextSegment(frames - offset)
		if !playing {
			seg.frames = frames - offset
		}
		e.renderSegment(out[offset:offset+seg.frames], plan, g, seg.start, seg.frames, playing)
		if playing {
			if e.transport.advance(seg.frames) {
				// Events queued on the pre-wrap timeline are stale; the
				// lookahead worker reschedules from the loop start. Held
				// voices go into release so nothing rings across the jump.
				e.releaseAllVoices()
				e.drainEvents()
			}
			playing = e.transport.Playing() // a fade-out may have completed
		}
		offset += seg.frames
	}

	e.scope.Write(out)
	e.publish(out)
	e.telemetry.endBlock(bt, frames, e.cfg.SampleRate)
}

// audible reports whether anything can reach the output this block: playing,
// or a fade-out tail still ringing.
func (e *Engine) audible() bool {
	return e.transport.Playing() || e.transport.Fade() == FadingOut
}

func (e *Engine) renderSegment(out seos.AudioBuffer, plan *RenderPlan, g *AudioGraph, blockStart int64, frames int, playing bool) {
	e.master[:frames].Zero()
	if playing {
		e.consumeEvents(blockStart, frames)
	}
	for i := range plan.Tracks {
		rt := &plan.Tracks[i]
		if rt.TrackIndex >= len(g.Tracks) {
			continue // plan and graph out of sync for one block after a swap
		}
		e.processTrack(rt, &plan.states[i], g, blockStart, frames)
	}
	if playing && e.settings.metronome() {
		e.click.mix(e.master[:frames], blockStart, e.tempo.Load(), e.transport.BeatsPerBar(), frames, float64(e.settings.metronomeGain()))
	}
	e.processMaster(out, frames)
}

// consumeEvents pops every scheduled event due within the segment and
// triggers or releases preview voices, honoring cancellation.
func (e *Engine) consumeEvents(blockStart int64, frames int) {
	limit := uint64(blockStart) + uint64(frames)
	for {
		ev, ok := e.events.Peek()
		if !ok || ev.Frame >= limit {
			return
		}
		e.events.Pop()
		if e.scheduler != nil && e.scheduler.Cancelled(ev.InstanceID) {
			e.telemetry.EventCancels.Add(1)
			continue
		}
		delay := int(int64(ev.Frame) - blockStart)
		if delay < 0 {
			delay = 0 // late event, sound it immediately
		}
		switch ev.Status & 0xf0 {
		case 0x90:
			if ev.Data2 > 0 {
				e.triggerVoice(int(ev.ChannelIdx), ev.Data1, ev.Data2, delay)
			} else {
				e.releaseVoice(int(ev.ChannelIdx), ev.Data1, delay)
			}
		case 0x80:
			e.releaseVoice(int(ev.ChannelIdx), ev.Data1, delay)
		}
	}
}

// applyCommands drains the command queue, bounded per block. Transport
// commands are coalesced: only the last play/stop/seek in the batch takes
// effect, so a queue full of rapid toggles resolves to its final state.
func (e *Engine) applyCommands(g *AudioGraph) {
	var transportCmd Command
	hasTransport := false
	for i := 0; i < maxCommandsPerBlock; i++ {
		c, ok := e.commands.Pop()
		if !ok {
			break
		}
		switch c.Kind {
		case CmdPlay, CmdStop, CmdSeek:
			transportCmd = c
			hasTransport = true
		case CmdSetBPM:
			e.transport.SetBPM(c.Value1)
		case CmdSetLoop:
			e.transport.SetLoop(c.Pos, int64(c.Value1), c.Flag)
		case CmdSetMasterDb:
			e.params.SetFaderDb(seos.MasterSlot, float32(c.Value1))
		case CmdSetMute:
			setTrackMute(g, c.Track, c.Flag)
		case CmdSetSolo:
			setTrackSolo(g, c.Track, c.Flag)
		case CmdPanic:
			e.allNotesOff()
			e.drainEvents()
		}
	}
	if hasTransport {
		switch transportCmd.Kind {
		case CmdPlay:
			e.flushVoices()
			e.transport.Play(transportCmd.Pos)
		case CmdStop:
			e.transport.Stop()
		case CmdSeek:
			e.flushVoices()
			e.transport.Seek(transportCmd.Pos)
		}
	}
}

// setTrackMute flips a mute on the live snapshot. Only the audio thread
// mutates the snapshot, so this is a plain store; the control side mirrors
// the change into the project for the next rebuild.
func setTrackMute(g *AudioGraph, id int32, mute bool) {
	for i := range g.Tracks {
		if g.Tracks[i].ID == id {
			g.Tracks[i].Mute = mute
			return
		}
	}
}

func setTrackSolo(g *AudioGraph, id int32, solo bool) {
	found := false
	anySolo := false
	for i := range g.Tracks {
		if g.Tracks[i].ID == id {
			g.Tracks[i].Solo = solo
			found = true
		}
		anySolo = anySolo || g.Tracks[i].Solo
	}
	if found {
		g.AnySolo = anySolo
	}
}

// flushVoices hard-kills the preview voices and stale scheduled events; used
// on jumps, where held notes would otherwise ring at the wrong position.
func (e *Engine) flushVoices() {
	e.allNotesOff()
	e.drainEvents()
}

func (e *Engine) allNotesOff() {
	for i := range e.voices {
		e.voices[i].active = false
		e.voices[i].on = false
	}
}

func (e *Engine) drainEvents() {
	for {
		if _, ok := e.events.Pop(); !ok {
			return
		}
	}
}

// publish taps the finished block to the broker: state to the model, a pooled
// copy of the audio to the detector. All sends are non-blocking.
func (e *Engine) publish(out seos.AudioBuffer) {
	if e.broker == nil {
		return
	}
	TrySend(e.broker.ToModel, MsgToModel{
		Playing:   e.transport.Playing(),
		SamplePos: e.transport.Pos(),
		Load:      e.telemetry.Load(),
	})
	buf := e.broker.GetAudioBuffer()
	*buf = append(*buf, out...)
	if !TrySend(e.broker.ToDetector, MsgToDetector{Data: buf}) {
		e.broker.PutAudioBuffer(buf)
	}
}

// ReadAudio implements seos.AudioSource so a driver or offline renderer can
// pull from the engine.
func (e *Engine) ReadAudio(buffer seos.AudioBuffer) (int, error) {
	total := len(buffer)
	for len(buffer) > 0 {
		n := min(len(buffer), e.cfg.MaxBlockFrames)
		e.ProcessBlock(buffer[:n])
		buffer = buffer[n:]
	}
	return total, nil
}

// Close implements seos.AudioSource.
func (e *Engine) Close() error { return nil }

// RenderProject renders length frames of a project offline, outside any
// device callback. Sources must already be loaded into the manager; patterns
// may be nil when the project has no MIDI clips. The loop range is ignored so
// the export runs straight through.
func RenderProject(p *seos.Project, sources *SourceManager, patterns *PatternManager, c Config, length int) (seos.AudioBuffer, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("rendering project: %w", err)
	}
	e := NewEngine(c, nil)
	e.SeedMasterDb(p.MasterDb)
	g := SnapshotGraph(p, sources)
	slots := NewSlotMap(g.TrackIDs())
	if err := e.compiler.Compile(g, slots); err != nil {
		return nil, fmt.Errorf("rendering project: %w", err)
	}
	e.SetGraph(g)
	e.transport.SetBPM(p.BPM)
	tm := seos.ConstantTempo(p.BPM, c.SampleRate)
	if len(p.Tempo) > 0 {
		tm = seos.NewTempoMap(p.Tempo, c.SampleRate)
	}
	e.SetTempoMap(tm)

	var sched *PatternScheduler
	if patterns != nil {
		sched = NewPatternScheduler(patterns, e.events, e.telemetry)
		sched.SetInstances(InstancesFromGraph(g))
		e.SetScheduler(sched)
	}

	e.transport.Play(0)
	out := make(seos.AudioBuffer, length)
	for off := 0; off < length; off += c.MaxBlockFrames {
		n := min(c.MaxBlockFrames, length-off)
		if sched != nil {
			// Offline there is no worker; refill synchronously just ahead of
			// the render position.
			sched.RefillWindow(e.transport.Pos(), tm, 2*c.MaxBlockFrames)
		}
		e.ProcessBlock(out[off : off+n])
	}
	g.Retire()
	return out, nil
}
