// Command texttracker reads a pattern-language program from stdin and
// plays it in real time through a MIDI output port.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"texttracker/internal/backend"
	"texttracker/internal/config"
	"texttracker/internal/engine"
	"texttracker/internal/lang"
	"texttracker/internal/player"
	"texttracker/internal/sequencer"
	"texttracker/internal/tracklog"
)

func main() {
	os.Exit(run())
}

func run() int {
	clientName := flag.String("client", "", "MIDI client name (default from config)")
	outPort := flag.String("port", "", "output port to auto-connect (default from config)")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "texttracker: load config: %v\n", err)
		return 1
	}
	if *clientName != "" {
		cfg.ClientName = *clientName
	}
	if *outPort != "" {
		cfg.DefaultOutputPort = *outPort
	}

	if *debug {
		if dir, err := config.Dir(); err == nil {
			if err := tracklog.Enable(filepath.Dir(dir), "texttracker"); err != nil {
				fmt.Fprintf(os.Stderr, "texttracker: enable debug log: %v\n", err)
			}
			defer tracklog.Disable()
		}
	}

	be := backend.NewRTMIDI(44100, 128)
	eng := engine.New(be, cfg.HeapCapacity, cfg.RingCapacity, cfg.PumpLookahead)
	if err := eng.Init(cfg.ClientName); err != nil {
		fmt.Fprintf(os.Stderr, "texttracker: init engine: %v\n", err)
		return 1
	}
	defer eng.Shutdown()

	if cfg.DefaultOutputPort != "" {
		eng.ConnectPort("default", cfg.DefaultOutputPort)
	}

	parser := lang.New(eng)
	seq := sequencer.New()
	if cfg.DefaultTempo > 0 {
		seq.SetTempo(cfg.DefaultTempo)
	}
	if cfg.DefaultQuant > 0 {
		seq.SetQuant(cfg.DefaultQuant)
	}

	if err := seq.ReadFromStream(os.Stdin, parser); err != nil {
		fmt.Fprintf(os.Stderr, "texttracker: read pattern: %v\n", err)
		return 1
	}

	p := player.New(eng, seq)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGQUIT, syscall.SIGILL, syscall.SIGABRT, syscall.SIGTERM)
	interrupted := make(chan struct{})
	go func() {
		<-sigCh
		p.Stop()
		close(interrupted)
	}()

	if err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "texttracker: playback: %v\n", err)
		return 1
	}

	select {
	case <-interrupted:
		return 1
	default:
		return 0
	}
}
