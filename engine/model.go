package engine

import (
	"fmt"
	"time"

	"github.com/seosaudio/seos"
)

// schedulerTick is how often the lookahead worker refills the event window.
const schedulerTick = 25 * time.Millisecond

// lookaheadSeconds is how far ahead of the play head events are scheduled.
const lookaheadSeconds = 0.5

// Model is the control-thread facade over the whole system: it owns the
// project, the decoded sources, the patterns and the units, and it drives the
// engine exclusively through the lock-free structures. Everything here may
// lock, allocate and block; nothing here runs on the audio thread.
type Model struct {
	engine   *Engine
	broker   *Broker
	project  *seos.Project
	sources  *SourceManager
	patterns *PatternManager
	units    *UnitManager

	slots     *SlotMap
	scheduler *PatternScheduler

	closeScheduler    chan struct{}
	finishedScheduler chan struct{}
}

// NewModel wires a model around an engine and takes ownership of the project.
// Start the scheduler worker with Run; publish the first graph with Rebuild.
func NewModel(e *Engine, broker *Broker, p *seos.Project) (*Model, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("loading project: %w", err)
	}
	m := &Model{
		engine:            e,
		broker:            broker,
		project:           p,
		sources:           NewSourceManager(),
		patterns:          NewPatternManager(),
		units:             NewUnitManager(),
		closeScheduler:    make(chan struct{}, 1),
		finishedScheduler: make(chan struct{}),
	}
	m.scheduler = NewPatternScheduler(m.patterns, e.Events(), e.Telemetry())
	e.SetScheduler(m.scheduler)
	e.SeedMasterDb(p.MasterDb)
	e.Params().SetFaderDb(seos.MasterSlot, p.MasterDb)
	e.SetTempoMap(m.tempoMap())
	return m, nil
}

func (m *Model) Project() *seos.Project    { return m.project }
func (m *Model) Sources() *SourceManager   { return m.sources }
func (m *Model) Patterns() *PatternManager { return m.patterns }
func (m *Model) Units() *UnitManager       { return m.units }
func (m *Model) Engine() *Engine           { return m.engine }
func (m *Model) Slots() *SlotMap           { return m.slots }

// blockPeriod is the wall-clock duration of one maximum-size callback, the
// grace the rebuild protocol waits for in-flight callbacks.
func (m *Model) blockPeriod() time.Duration {
	c := m.engine.Config()
	return time.Duration(float64(c.MaxBlockFrames) / c.SampleRate * float64(time.Second))
}

// Rebuild publishes the current project structure to the audio thread: it
// stops the transport, snapshots the graph, rebuilds the slot map, compiles a
// fresh render plan, swaps both in and resumes. Structural errors keep the
// previous graph and plan in force and surface as alerts. Call after any edit
// that changes tracks, routing or clips; fader moves go through the param
// buffer instead.
func (m *Model) Rebuild() error {
	// Slot map and plan swaps happen at safe points only: stop, wait out the
	// fade and any in-flight callback, rebuild, resume.
	resume := m.engine.Transport().Playing()
	resumePos := m.engine.Transport().Pos()
	if resume {
		m.Stop()
		m.waitStopped()
	}
	g := SnapshotGraph(m.project, m.sources)
	slots := NewSlotMap(g.TrackIDs())
	if n := len(slots.Overflow()); n > 0 {
		m.alert(Alert{
			Name:     "SlotOverflow",
			Priority: Warning,
			Message:  fmt.Sprintf("%d tracks exceed the mixer capacity and are unroutable", n),
			Duration: defaultAlertDuration,
		})
	}
	// The compiler reuses buffers from the plan retired two swaps ago; give
	// any callback still running on it one block period to finish.
	time.Sleep(m.blockPeriod())
	if err := m.engine.Compiler().Compile(g, slots); err != nil {
		g.Retire()
		m.alert(Alert{
			Name:     "RoutingCycle",
			Priority: Error,
			Message:  err.Error(),
			Duration: defaultAlertDuration,
		})
		if resume {
			m.PlayFrom(resumePos)
		}
		return fmt.Errorf("rebuilding graph: %w", err)
	}
	m.slots = slots
	m.seedParams(g, slots)
	m.engine.SetTempoMap(m.tempoMap())
	old := m.engine.SetGraph(g)
	if old != nil {
		time.Sleep(m.blockPeriod())
		old.Retire()
	}
	if resume {
		m.PlayFrom(resumePos)
	}
	return nil
}

// waitStopped polls until the audio thread has applied the stop and the
// fade-out has run out, bounded so a stalled stream cannot hang the control
// thread.
func (m *Model) waitStopped() {
	deadline := time.Now().Add(20 * m.blockPeriod())
	for m.engine.Transport().Playing() && time.Now().Before(deadline) {
		time.Sleep(m.blockPeriod())
	}
}

// tempoMap builds the beat↔sample map the scheduler and the metronome follow:
// the project's tempo changes when it has any, its flat BPM otherwise.
func (m *Model) tempoMap() *seos.TempoMap {
	rate := m.engine.Config().SampleRate
	if len(m.project.Tempo) > 0 {
		return seos.NewTempoMap(m.project.Tempo, rate)
	}
	return seos.ConstantTempo(m.project.BPM, rate)
}

// seedParams writes the snapshot's fader/pan/trim into the param buffer so a
// track that just got a slot starts from its project values.
func (m *Model) seedParams(g *AudioGraph, slots *SlotMap) {
	for i := range g.Tracks {
		t := &g.Tracks[i]
		slot := slots.SlotOf(t.ID)
		if slot == InvalidSlot {
			continue
		}
		m.engine.Params().SetFaderDb(slot, t.FaderDb)
		m.engine.Params().SetPan(slot, t.Pan)
		m.engine.Params().SetTrimDb(slot, t.TrimDb)
	}
}

// Run is the scheduler worker loop: it follows the play head, refills the
// lookahead window and detects jumps (seek, loop wrap) that need the window
// rewound. Run it in a goroutine; Close stops it.
func (m *Model) Run() {
	defer close(m.finishedScheduler)
	t := m.engine.Transport()
	ticker := time.NewTicker(schedulerTick)
	defer ticker.Stop()
	lastPos := int64(-1)
	wasPlaying := false
	for {
		select {
		case <-m.closeScheduler:
			return
		case <-ticker.C:
		}
		playing := t.Playing()
		pos := t.Pos()
		if !playing {
			wasPlaying = false
			continue
		}
		if !wasPlaying || pos < lastPos {
			// Fresh start, seek backwards or loop wrap: schedule from here.
			m.scheduler.Reset(pos)
			m.scheduler.SetInstances(InstancesFromGraph(m.engine.Graph()))
		}
		// Never schedule past the loop end; those frames do not play. The
		// wrap rewinds the window to the loop start instead.
		if _, loopEnd, loopOn := t.Loop(); loopOn {
			m.scheduler.SetWindowLimit(loopEnd)
		} else {
			m.scheduler.SetWindowLimit(0)
		}
		lookahead := int(lookaheadSeconds * m.engine.Config().SampleRate)
		m.scheduler.RefillWindow(pos, m.engine.TempoMap(), lookahead)
		lastPos = pos
		wasPlaying = true
	}
}

// Close stops the scheduler worker and releases the sources.
func (m *Model) Close() {
	TrySend(m.closeScheduler, struct{}{})
	<-m.finishedScheduler
	m.sources.Close()
}

// push enqueues a command, counting the drop if the ring is full. The audio
// thread coalesces transport commands, so dropping here is already rare.
func (m *Model) push(c Command) {
	if !m.engine.Commands().Push(c) {
		m.engine.Telemetry().CommandDrops.Add(1)
	}
}

func (m *Model) alert(a Alert) {
	if m.broker != nil {
		TrySend(m.broker.ToHost, any(a))
	}
}

// PlayFrom starts playback at the given sample position.
func (m *Model) PlayFrom(pos int64) { m.push(Command{Kind: CmdPlay, Pos: pos}) }

// Play starts playback at the current position.
func (m *Model) Play() { m.PlayFrom(m.engine.Transport().Pos()) }

func (m *Model) Stop() { m.push(Command{Kind: CmdStop}) }

func (m *Model) Seek(pos int64) { m.push(Command{Kind: CmdSeek, Pos: pos}) }

// TogglePlay flips between playing and stopped.
func (m *Model) TogglePlay() {
	if m.engine.Transport().Playing() {
		m.Stop()
	} else {
		m.Play()
	}
}

// Panic releases every sounding voice and drops queued events.
func (m *Model) Panic() { m.push(Command{Kind: CmdPanic}) }

// SetBPM changes the flat tempo, effective at the next block boundary. With
// explicit tempo changes in the project the map keeps precedence.
func (m *Model) SetBPM(bpm float64) {
	if bpm <= 0 {
		return
	}
	m.project.BPM = bpm
	m.engine.SetTempoMap(m.tempoMap())
	m.push(Command{Kind: CmdSetBPM, Value1: bpm})
}

// SetTempo replaces the project's tempo changes and republishes the map the
// scheduler and metronome follow.
func (m *Model) SetTempo(changes []seos.TempoChange) {
	m.project.Tempo = append(m.project.Tempo[:0], changes...)
	m.engine.SetTempoMap(m.tempoMap())
}

// SetLoop sets the loop range in samples.
func (m *Model) SetLoop(start, end int64, enabled bool) {
	m.project.LoopStart = start
	m.project.LoopEnd = end
	m.project.LoopEnabled = enabled
	m.push(Command{Kind: CmdSetLoop, Pos: start, Value1: float64(end), Flag: enabled})
}

// SetTrackVolume moves a track fader. Takes effect within one block; no
// rebuild needed.
func (m *Model) SetTrackVolume(id int32, db float32) {
	if t := m.project.TrackByID(id); t != nil {
		t.VolumeDb = db
	}
	if slot := m.slotOf(id); slot != InvalidSlot {
		m.engine.Params().SetFaderDb(slot, db)
	}
}

func (m *Model) SetTrackPan(id int32, pan float32) {
	if t := m.project.TrackByID(id); t != nil {
		t.Pan = pan
	}
	if slot := m.slotOf(id); slot != InvalidSlot {
		m.engine.Params().SetPan(slot, pan)
	}
}

func (m *Model) SetTrackTrim(id int32, db float32) {
	if t := m.project.TrackByID(id); t != nil {
		t.TrimDb = db
	}
	if slot := m.slotOf(id); slot != InvalidSlot {
		m.engine.Params().SetTrimDb(slot, db)
	}
}

func (m *Model) SetMasterVolume(db float32) {
	m.project.MasterDb = db
	m.push(Command{Kind: CmdSetMasterDb, Value1: float64(db)})
}

// SetTrackMute flips a mute live on the audio thread and mirrors it into the
// project for the next rebuild.
func (m *Model) SetTrackMute(id int32, mute bool) {
	if t := m.project.TrackByID(id); t != nil {
		t.Mute = mute
	}
	m.push(Command{Kind: CmdSetMute, Track: id, Flag: mute})
}

func (m *Model) SetTrackSolo(id int32, solo bool) {
	if t := m.project.TrackByID(id); t != nil {
		t.Solo = solo
	}
	m.push(Command{Kind: CmdSetSolo, Track: id, Flag: solo})
}

func (m *Model) slotOf(id int32) int {
	if m.slots == nil {
		return InvalidSlot
	}
	return m.slots.SlotOf(id)
}

// Meter reads the latest meter snapshot for a track, or the master with
// id == MasterRoute.
func (m *Model) Meter(id int32) MeterSnapshot {
	slot := m.slotOf(id)
	if id == seos.MasterRoute {
		slot = seos.MasterSlot
	}
	if slot == InvalidSlot {
		return MeterSnapshot{}
	}
	return m.engine.Meters().ReadSnapshot(slot)
}

// ClearClip resets the sticky clip indicator of a track or the master.
func (m *Model) ClearClip(id int32) {
	slot := m.slotOf(id)
	if id == seos.MasterRoute {
		slot = seos.MasterSlot
	}
	if slot != InvalidSlot {
		m.engine.Meters().ClearClip(slot)
	}
}
