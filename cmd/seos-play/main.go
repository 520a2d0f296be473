// Command seos-play loads a project, opens the audio device and exposes the
// transport and mixer through a small interactive shell. Run without
// arguments it plays a built-in demo project.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/seosaudio/seos"
	"github.com/seosaudio/seos/decode"
	"github.com/seosaudio/seos/driver"
	"github.com/seosaudio/seos/engine"
)

func main() {
	projectFile := flag.String("project", "", "project file (.yaml); empty plays the demo project")
	patternFile := flag.String("patterns", "", "pattern bank file (.yaml) for MIDI clips")
	configFile := flag.String("config", "", "engine config file (.yaml)")
	exclusive := flag.Bool("exclusive", false, "try the low-latency exclusive backend first")
	buffer := flag.Int("buffer", 512, "device buffer size in frames")
	flag.Parse()
	if err := run(*projectFile, *patternFile, *configFile, *exclusive, *buffer); err != nil {
		fmt.Fprintln(os.Stderr, "seos-play:", err)
		os.Exit(1)
	}
}

func run(projectFile, patternFile, configFile string, exclusive bool, buffer int) error {
	cfg := engine.DefaultConfig()
	if configFile != "" {
		f, err := os.Open(configFile)
		if err != nil {
			return err
		}
		cfg, err = engine.ReadConfig(f)
		f.Close()
		if err != nil {
			return err
		}
	}

	var project *seos.Project
	if projectFile != "" {
		f, err := os.Open(projectFile)
		if err != nil {
			return err
		}
		p, err := seos.ReadProject(f)
		f.Close()
		if err != nil {
			return err
		}
		project = &p
	} else {
		project = demoProject(cfg.SampleRate)
	}

	broker := engine.NewBroker()
	eng := engine.NewEngine(cfg, broker)
	model, err := engine.NewModel(eng, broker, project)
	if err != nil {
		return err
	}
	if projectFile == "" {
		demoPatterns(model.Patterns())
	}
	if patternFile != "" {
		pf, err := os.Open(patternFile)
		if err != nil {
			return err
		}
		err = model.Patterns().ReadPatterns(pf)
		pf.Close()
		if err != nil {
			return err
		}
	}
	if err := loadSources(model, project); err != nil {
		return err
	}
	if err := model.Rebuild(); err != nil {
		return err
	}

	detector := engine.NewDetector(broker, int(cfg.SampleRate))
	go detector.Run()
	go model.Run()
	go drainToModel(broker)

	dev, err := driver.Open(driver.Config{
		SampleRate:   cfg.SampleRate,
		BufferFrames: buffer,
		Exclusive:    exclusive,
	}, eng)
	if err != nil {
		return err
	}
	if exclusive && dev.Mode() != driver.ModeExclusive {
		fmt.Println("exclusive stream unavailable, running in shared mode")
	}
	lo, hi := dev.Latency()
	fmt.Printf("%s %g Hz, %d frames, latency %.1f-%.1f ms\n",
		dev.Mode(), dev.Format().SampleRate, dev.Format().BufferFrames, lo*1000, hi*1000)
	if err := dev.Start(); err != nil {
		return err
	}
	defer func() {
		dev.Close()
		engine.TrySend(broker.CloseDetector, struct{}{})
		model.Close()
	}()

	return shell(model, eng)
}

// loadSources decodes every audio file the project's clips reference.
func loadSources(m *engine.Model, p *seos.Project) error {
	seen := map[string]bool{}
	for _, t := range p.Tracks {
		for _, c := range t.Clips {
			if c.Kind != seos.ClipAudio || c.Source == "" || seen[c.Source] {
				continue
			}
			seen[c.Source] = true
			data, err := decode.File(c.Source)
			if err != nil {
				return err
			}
			if err := m.Sources().Add(data); err != nil {
				return err
			}
		}
	}
	return nil
}

// drainToModel keeps the model channel from backing up; the shell polls state
// directly through the atomics instead.
func drainToModel(b *engine.Broker) {
	for range b.ToModel {
	}
}

func shell(m *engine.Model, eng *engine.Engine) error {
	rl, err := readline.New("seos> ")
	if err != nil {
		return err
	}
	defer rl.Close()
	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt || err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if done := command(m, eng, fields); done {
			return nil
		}
	}
}

func command(m *engine.Model, eng *engine.Engine, fields []string) bool {
	t := eng.Transport()
	switch fields[0] {
	case "quit", "exit", "q":
		return true
	case "play", "p":
		m.Play()
	case "stop", "s":
		m.Stop()
	case "seek":
		if v, ok := intArg(fields, 1); ok {
			m.Seek(int64(v))
		}
	case "bpm":
		if v, ok := floatArg(fields, 1); ok {
			m.SetBPM(v)
		}
	case "loop":
		if len(fields) == 2 && fields[1] == "off" {
			m.SetLoop(0, 0, false)
			break
		}
		s, ok1 := intArg(fields, 1)
		e, ok2 := intArg(fields, 2)
		if ok1 && ok2 {
			m.SetLoop(int64(s), int64(e), true)
		}
	case "fader":
		id, ok1 := intArg(fields, 1)
		db, ok2 := floatArg(fields, 2)
		if ok1 && ok2 {
			m.SetTrackVolume(int32(id), float32(db))
		}
	case "pan":
		id, ok1 := intArg(fields, 1)
		v, ok2 := floatArg(fields, 2)
		if ok1 && ok2 {
			m.SetTrackPan(int32(id), float32(v))
		}
	case "master":
		if v, ok := floatArg(fields, 1); ok {
			m.SetMasterVolume(float32(v))
		}
	case "mute":
		if id, on, ok := toggleArgs(fields); ok {
			m.SetTrackMute(id, on)
		}
	case "solo":
		if id, on, ok := toggleArgs(fields); ok {
			m.SetTrackSolo(id, on)
		}
	case "metronome":
		eng.SetMetronome(len(fields) > 1 && fields[1] == "on")
	case "panic":
		m.Panic()
	case "meters":
		for _, tr := range m.Project().Tracks {
			ms := m.Meter(tr.ID)
			fmt.Printf("%3d %-12s peak %s / %s\n", tr.ID, tr.Name,
				seos.FormatDb(seos.LinearToDb(ms.PeakL)), seos.FormatDb(seos.LinearToDb(ms.PeakR)))
		}
		ms := m.Meter(seos.MasterRoute)
		fmt.Printf("    %-12s peak %s / %s\n", "master",
			seos.FormatDb(seos.LinearToDb(ms.PeakL)), seos.FormatDb(seos.LinearToDb(ms.PeakR)))
	case "status":
		fmt.Printf("playing=%v pos=%d bpm=%g load=%.0f%% underruns=%d\n",
			t.Playing(), t.Pos(), t.BPM(), eng.Telemetry().Load()*100,
			eng.Telemetry().Underruns.Load())
	case "help":
		fmt.Println("play stop seek <frame> bpm <v> loop <s> <e>|off fader <id> <db> pan <id> <v>")
		fmt.Println("master <db> mute/solo <id> on|off metronome on|off panic meters status quit")
	default:
		fmt.Println("unknown command; try help")
	}
	return false
}

func intArg(fields []string, i int) (int, bool) {
	if i >= len(fields) {
		return 0, false
	}
	v, err := strconv.Atoi(fields[i])
	return v, err == nil
}

func floatArg(fields []string, i int) (float64, bool) {
	if i >= len(fields) {
		return 0, false
	}
	v, err := strconv.ParseFloat(fields[i], 64)
	return v, err == nil
}

func toggleArgs(fields []string) (int32, bool, bool) {
	id, ok := intArg(fields, 1)
	if !ok || len(fields) < 3 {
		return 0, false, false
	}
	return int32(id), fields[2] == "on", true
}
