package engine

import (
	"sort"
	"sync/atomic"

	"gitlab.com/gomidi/midi/v2"

	"github.com/seosaudio/seos"
)

// MaxPatternInstances bounds the cancellation flag table; instance IDs wrap
// into this range.
const MaxPatternInstances = 256

type (
	// PatternInstance is one placement of a pattern on the timeline, derived
	// from a MIDI clip. ID indexes the cancellation table.
	PatternInstance struct {
		ID         uint32
		PatternID  int32
		Start, End int64
		ChannelIdx uint8
	}

	// PatternScheduler is the worker-side lookahead: each RefillWindow walks
	// the active instances and pushes the note events whose frames fall in
	// [from, from+lookahead) into the event ring, note-offs before note-ons
	// on equal frames. It never blocks: a full ring drops events and bumps
	// the overflow counter.
	PatternScheduler struct {
		patterns  *PatternManager
		queue     *EventQueue
		telemetry *Telemetry

		instances   []PatternInstance
		cancelled   [MaxPatternInstances]atomic.Bool
		windowEnd   int64   // end of the last refilled window, exclusive
		windowLimit int64   // scheduling cap (loop end), 0 when unlimited
		scratch     []Event // per-refill gather buffer, sorted before pushing
	}
)

func NewPatternScheduler(patterns *PatternManager, queue *EventQueue, tel *Telemetry) *PatternScheduler {
	return &PatternScheduler{patterns: patterns, queue: queue, telemetry: tel}
}

// SetInstances replaces the active instance list, e.g. after a graph
// snapshot. Worker thread only.
func (s *PatternScheduler) SetInstances(instances []PatternInstance) {
	s.instances = append(s.instances[:0], instances...)
	for i := range s.cancelled {
		s.cancelled[i].Store(false)
	}
}

// InstancesFromGraph derives pattern instances from the MIDI clips of a
// graph snapshot, numbering them in encounter order.
func InstancesFromGraph(g *AudioGraph) []PatternInstance {
	var out []PatternInstance
	var id uint32
	for ti := range g.Tracks {
		for _, c := range g.Tracks[ti].Clips {
			if c.PatternID < 0 || c.Data != nil {
				continue
			}
			out = append(out, PatternInstance{
				ID:         id % MaxPatternInstances,
				PatternID:  c.PatternID,
				Start:      c.Start,
				End:        c.End,
				ChannelIdx: uint8(ti),
			})
			id++
		}
	}
	return out
}

// Cancel marks an instance so the audio thread discards its queued events.
// Safe from any thread.
func (s *PatternScheduler) Cancel(instanceID uint32) {
	s.cancelled[instanceID%MaxPatternInstances].Store(true)
}

// Cancelled reports whether an instance has been cancelled. Audio thread
// checks this as it dequeues.
func (s *PatternScheduler) Cancelled(instanceID uint32) bool {
	return s.cancelled[instanceID%MaxPatternInstances].Load()
}

// Reset rewinds the scheduling window, e.g. on seek or loop wrap, so the new
// position is scheduled from scratch.
func (s *PatternScheduler) Reset(frame int64) {
	s.windowEnd = frame
}

// SetWindowLimit caps scheduling at the given frame (exclusive), normally the
// loop end; 0 removes the cap. Frames at or past the loop end never play, the
// wrap rewinds the window to the loop start instead. Worker thread only.
func (s *PatternScheduler) SetWindowLimit(limit int64) {
	s.windowLimit = limit
}

// RefillWindow schedules all events in [currentFrame, currentFrame+lookahead)
// that were not covered by the previous window. tempo converts the pattern's
// beat positions to frames.
func (s *PatternScheduler) RefillWindow(currentFrame int64, tempo *seos.TempoMap, lookahead int) {
	from := currentFrame
	if s.windowEnd > from {
		from = s.windowEnd
	}
	to := currentFrame + int64(lookahead)
	if s.windowLimit > 0 && to > s.windowLimit {
		to = s.windowLimit
	}
	if from >= to {
		return
	}
	snap := s.patterns.Snapshot()
	s.scratch = s.scratch[:0]
	for i := range s.instances {
		inst := &s.instances[i]
		if s.Cancelled(inst.ID) {
			continue
		}
		pat := snap.Patterns[inst.PatternID]
		if pat == nil {
			continue
		}
		baseBeat := tempo.BeatForSample(float64(inst.Start))
		for _, note := range pat.Notes {
			on := int64(tempo.SampleForBeat(baseBeat + note.Beat))
			if on >= inst.End {
				break // notes are sorted; the rest start even later
			}
			off := int64(tempo.SampleForBeat(baseBeat + note.Beat + note.Length))
			if off > inst.End {
				off = inst.End
			}
			s.gatherNote(inst, on, off, from, to, note.Key, note.Velocity)
		}
	}
	// The ring is FIFO, so order the whole window by frame with note-offs
	// ahead of note-ons on ties before pushing.
	sort.SliceStable(s.scratch, func(i, j int) bool {
		if s.scratch[i].Frame != s.scratch[j].Frame {
			return s.scratch[i].Frame < s.scratch[j].Frame
		}
		return s.scratch[i].Priority < s.scratch[j].Priority
	})
	for _, ev := range s.scratch {
		if !s.queue.Push(ev) && s.telemetry != nil {
			s.telemetry.EventDrops.Add(1)
		}
	}
	s.windowEnd = to
}

func (s *PatternScheduler) gatherNote(inst *PatternInstance, on, off, from, to int64, key, vel uint8) {
	if on >= from && on < to {
		s.scratch = append(s.scratch, Event{
			Frame:      uint64(on),
			InstanceID: inst.ID,
			ChannelIdx: inst.ChannelIdx,
			Status:     statusByte(midi.NoteOn(inst.ChannelIdx, key, vel)),
			Data1:      key,
			Data2:      vel,
			Priority:   PriorityNoteOn,
		})
	}
	if off >= from && off < to {
		s.scratch = append(s.scratch, Event{
			Frame:      uint64(off),
			InstanceID: inst.ID,
			ChannelIdx: inst.ChannelIdx,
			Status:     statusByte(midi.NoteOff(inst.ChannelIdx, key)),
			Data1:      key,
			Priority:   PriorityNoteOff,
		})
	}
}

// statusByte extracts the status byte of a MIDI message.
func statusByte(msg midi.Message) uint8 {
	if len(msg) == 0 {
		return 0
	}
	return msg[0]
}
