// Command seos-export renders a project file offline and writes the mix as a
// .wav file.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/seosaudio/seos"
	"github.com/seosaudio/seos/decode"
	"github.com/seosaudio/seos/engine"
)

func main() {
	configFile := flag.String("config", "", "engine config file (.yaml)")
	patternFile := flag.String("patterns", "", "pattern bank file (.yaml) for MIDI clips")
	output := flag.String("o", "", "output file; defaults to the project name with .wav")
	seconds := flag.Float64("length", 0, "render length in seconds; 0 renders to the last clip end plus a tail")
	pcm16 := flag.Bool("pcm16", false, "write 16-bit PCM instead of 32-bit float")
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: seos-export [flags] project.yaml")
		flag.PrintDefaults()
		os.Exit(1)
	}
	if err := run(flag.Arg(0), *configFile, *patternFile, *output, *seconds, *pcm16); err != nil {
		fmt.Fprintln(os.Stderr, "seos-export:", err)
		os.Exit(1)
	}
}

func run(projectFile, configFile, patternFile, output string, seconds float64, pcm16 bool) error {
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

	f, err := os.Open(projectFile)
	if err != nil {
		return err
	}
	p, err := seos.ReadProject(f)
	f.Close()
	if err != nil {
		return err
	}
	project := &p
	cfg.SampleRate = project.SampleRate

	sources := engine.NewSourceManager()
	defer sources.Close()
	for _, t := range project.Tracks {
		for _, c := range t.Clips {
			if c.Kind != seos.ClipAudio || c.Source == "" || sources.Get(c.Source) != nil {
				continue
			}
			data, err := decode.File(c.Source)
			if err != nil {
				return err
			}
			if err := sources.Add(data); err != nil {
				return err
			}
		}
	}

	var patterns *engine.PatternManager
	if patternFile != "" {
		pf, err := os.Open(patternFile)
		if err != nil {
			return err
		}
		patterns = engine.NewPatternManager()
		err = patterns.ReadPatterns(pf)
		pf.Close()
		if err != nil {
			return err
		}
	}

	length := int(seconds * cfg.SampleRate)
	if length <= 0 {
		length = int(projectEnd(project)) + int(cfg.SampleRate) // one second of tail
	}

	buffer, err := engine.RenderProject(project, sources, patterns, cfg, length)
	if err != nil {
		return err
	}
	wav, err := seos.Wav(buffer, int(cfg.SampleRate), pcm16)
	if err != nil {
		return err
	}

	if output == "" {
		output = strings.TrimSuffix(projectFile, ".yaml") + ".wav"
	}
	if err := os.WriteFile(output, wav, 0o644); err != nil {
		return err
	}
	fmt.Printf("wrote %s: %d frames at %g Hz\n", output, length, cfg.SampleRate)
	return nil
}

// projectEnd returns the last clip end across all tracks, in samples.
func projectEnd(p *seos.Project) int64 {
	var end int64
	for _, t := range p.Tracks {
		for _, c := range t.Clips {
			if c.End > end {
				end = c.End
			}
		}
	}
	return end
}
