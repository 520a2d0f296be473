package engine

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/seosaudio/seos"
)

type (
	// Connection is one pre-resolved mix destination of a track: a pointer to
	// the destination buffer plus baked gains. The audio thread just
	// multiply-accumulates; all lookups happened at compile time.
	Connection struct {
		Dest         seos.MixBuffer
		GainL, GainR float64
	}

	// RenderTrack is one entry of the flattened render plan. TrackIndex
	// points back into the AudioGraph; Slot is the channel's param/meter
	// slot or InvalidSlot. Conns[0] is the main route (unity gains, the
	// fader is applied dynamically); the rest are sends with baked gains.
	RenderTrack struct {
		TrackIndex int
		Slot       int
		Self       seos.MixBuffer
		Conns      []Connection
	}

	// RenderPlan is a compiled topology: tracks in topological order, leaves
	// before the buses they feed, so straight iteration is a valid sum order.
	// states holds the per-track smoothing state, parallel to Tracks; it
	// lives in the plan because the plan only changes at safe points.
	RenderPlan struct {
		Tracks []RenderTrack
		states []trackState
	}

	// Compiler turns graph snapshots into render plans. Plans are
	// double-buffered: Compile writes the inactive plan and publishes it by
	// storing the flipped index, which the audio thread acquire-loads at
	// block start. On any compile error the previous plan stays in force.
	Compiler struct {
		maxFrames int
		master    seos.MixBuffer
		telemetry *Telemetry
		plans     [2]*RenderPlan
		active    atomic.Uint32
		misses    int
	}
)

// ErrRoutingCycle is returned when track routing contains a cycle; the plan
// is not published.
var ErrRoutingCycle = errors.New("routing graph contains a cycle")

// NewCompiler creates a compiler whose plans render into the given master
// buffer. maxFrames caps the block size every self buffer must accommodate;
// tel may be nil, otherwise dropped connections bump its miss counter.
func NewCompiler(master seos.MixBuffer, maxFrames int, tel *Telemetry) *Compiler {
	c := &Compiler{maxFrames: maxFrames, master: master, telemetry: tel}
	empty := &RenderPlan{}
	c.plans[0] = empty
	c.plans[1] = empty
	return c
}

// Plan returns the active render plan. Audio thread; wait-free.
func (c *Compiler) Plan() *RenderPlan {
	return c.plans[c.active.Load()]
}

// Misses reports how many connections the last compile dropped because their
// destination had no slot or no track.
func (c *Compiler) Misses() int { return c.misses }

// Compile flattens the snapshot into the inactive plan and publishes it.
// Only call at safe points: the inactive plan's buffers may still be written
// by an in-flight callback otherwise.
func (c *Compiler) Compile(g *AudioGraph, slots *SlotMap) error {
	order, err := topoOrder(g)
	if err != nil {
		return err
	}
	inactive := 1 - c.active.Load()
	old := c.plans[inactive]
	plan := &RenderPlan{Tracks: make([]RenderTrack, 0, len(order))}

	// Pass 1: one render track and self buffer per graph track, reusing the
	// retired plan's buffers where they fit.
	byIndex := make(map[int]*RenderTrack, len(order))
	spare := make([]seos.MixBuffer, 0, len(old.Tracks))
	for i := range old.Tracks {
		if len(old.Tracks[i].Self) >= c.maxFrames {
			spare = append(spare, old.Tracks[i].Self)
		}
	}
	for _, idx := range order {
		var self seos.MixBuffer
		if n := len(spare); n > 0 {
			self = spare[n-1][:c.maxFrames]
			self.Zero()
			spare = spare[:n-1]
		} else {
			self = make(seos.MixBuffer, c.maxFrames)
		}
		plan.Tracks = append(plan.Tracks, RenderTrack{
			TrackIndex: idx,
			Slot:       slots.SlotOf(g.Tracks[idx].ID),
			Self:       self,
		})
		byIndex[idx] = &plan.Tracks[len(plan.Tracks)-1]
	}

	// Pass 2: resolve destinations now that every buffer exists.
	indexOf := make(map[int32]int, len(g.Tracks))
	for i := range g.Tracks {
		indexOf[g.Tracks[i].ID] = i
	}
	c.misses = 0
	for i := range plan.Tracks {
		rt := &plan.Tracks[i]
		track := &g.Tracks[rt.TrackIndex]
		if dest, ok := c.resolve(track.Route, indexOf, byIndex); ok {
			rt.Conns = append(rt.Conns, Connection{Dest: dest, GainL: 1, GainR: 1})
		} else {
			c.misses++
		}
		for _, s := range track.Sends {
			if s.Mute {
				continue
			}
			dest, ok := c.resolve(s.Target, indexOf, byIndex)
			if !ok {
				c.misses++
				continue
			}
			gain := seos.DbToLinear(s.GainDb)
			panL, panR := seos.Pan(s.Pan)
			rt.Conns = append(rt.Conns, Connection{
				Dest:  dest,
				GainL: float64(gain * panL),
				GainR: float64(gain * panR),
			})
		}
	}

	if c.misses > 0 && c.telemetry != nil {
		c.telemetry.SlotMapMisses.Add(uint64(c.misses))
	}

	plan.states = make([]trackState, len(plan.Tracks))
	c.plans[inactive] = plan
	c.active.Store(inactive)
	return nil
}

func (c *Compiler) resolve(route int32, indexOf map[int32]int, byIndex map[int]*RenderTrack) (seos.MixBuffer, bool) {
	if route == seos.MasterRoute {
		return c.master, true
	}
	idx, ok := indexOf[route]
	if !ok {
		return nil, false
	}
	rt, ok := byIndex[idx]
	if !ok {
		return nil, false
	}
	return rt.Self, true
}

// topoOrder returns track indices ordered so every track precedes the tracks
// it feeds (main route and sends both count as edges). DFS with color marks;
// a gray-gray edge is a cycle.
func topoOrder(g *AudioGraph) ([]int, error) {
	const (
		white = iota
		gray
		black
	)
	indexOf := make(map[int32]int, len(g.Tracks))
	for i := range g.Tracks {
		indexOf[g.Tracks[i].ID] = i
	}
	color := make([]int, len(g.Tracks))
	postorder := make([]int, 0, len(g.Tracks))
	var visit func(int) error
	visit = func(i int) error {
		color[i] = gray
		t := &g.Tracks[i]
		dests := make([]int32, 0, 1+len(t.Sends))
		dests = append(dests, t.Route)
		for _, s := range t.Sends {
			dests = append(dests, s.Target)
		}
		for _, d := range dests {
			if d == seos.MasterRoute {
				continue
			}
			j, ok := indexOf[d]
			if !ok {
				continue // unresolved route, handled as a miss at connect time
			}
			switch color[j] {
			case gray:
				return fmt.Errorf("%w: track %d feeds back into track %d", ErrRoutingCycle, t.ID, d)
			case white:
				if err := visit(j); err != nil {
					return err
				}
			}
		}
		color[i] = black
		postorder = append(postorder, i)
		return nil
	}
	for i := range g.Tracks {
		if color[i] == white {
			if err := visit(i); err != nil {
				return nil, err
			}
		}
	}
	// Postorder emits a track after everything it feeds; reversing puts each
	// track before its destinations.
	for i, j := 0, len(postorder)-1; i < j; i, j = i+1, j-1 {
		postorder[i], postorder[j] = postorder[j], postorder[i]
	}
	return postorder, nil
}
