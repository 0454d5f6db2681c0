// Package main is an interactive terminal client that runs a conversation
// engine in process.
package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/peterh/liner"
	"go.uber.org/zap"

	"github.com/hilvik/vivum-demo-v1/internal/config"
	"github.com/hilvik/vivum-demo-v1/internal/engine"
	"github.com/hilvik/vivum-demo-v1/internal/model"
	"github.com/hilvik/vivum-demo-v1/internal/render"
	"github.com/hilvik/vivum-demo-v1/internal/resolver"
	"github.com/hilvik/vivum-demo-v1/internal/reveal"
	"github.com/hilvik/vivum-demo-v1/pkg/logger"
)

var (
	promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("error: "+err.Error()))
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return err
	}

	// Logs would tear the repainted output, so they are off unless debugging.
	log := logger.NewNop()
	if cfg.LogLevel == "debug" {
		dev, err := logger.NewDevelopment()
		if err != nil {
			return err
		}
		log = dev
	}
	defer log.Sync()
	logger.SetGlobal(log)

	res, err := resolver.FromConfig(cfg)
	if err != nil {
		return err
	}

	var renderer render.Renderer = render.Plain{}
	if md, err := render.NewMarkdown(80); err == nil {
		renderer = md
	} else {
		log.Warn("markdown rendering disabled", zap.Error(err))
	}

	eng := engine.New(res,
		engine.WithLogger(log),
		engine.WithScheduler(reveal.NewScheduler(reveal.WithInterval(cfg.RevealInterval))),
		engine.WithResolveTimeout(cfg.ResolveTimeout),
	)
	defer eng.Close()

	transcript := render.NewTranscript(os.Stdout, renderer)
	// eng.Close ends every subscription, including ones taken after a drop.
	snapshot, events, _ := eng.SubscribeWithSnapshot()
	if err := transcript.Show(snapshot.Turns); err != nil {
		return err
	}

	idle := make(chan struct{}, 1)
	signalIdle := func() {
		select {
		case idle <- struct{}{}:
		default:
		}
	}
	go func() {
		for {
			for ev := range events {
				if err := transcript.Handle(ev); err != nil {
					log.Warn("render failed", zap.Error(err))
				}
				if ev.Type == model.EventTypeBusyChanged && !ev.Busy {
					signalIdle()
				}
			}
			if eng.Closed() {
				return
			}

			log.Warn("event subscription dropped; resyncing")
			var snap model.Snapshot
			snap, events, _ = eng.SubscribeWithSnapshot()
			if err := transcript.Resync(snap); err != nil {
				log.Warn("render failed", zap.Error(err))
			}
			if !snap.Busy {
				signalIdle()
			}
		}
	}()

	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(interrupts)

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	for {
		input, err := line.Prompt(promptStyle.Render("vivum> "))
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) {
				fmt.Println()
			}
			return nil
		}

		switch strings.TrimSpace(input) {
		case "/quit", "/exit":
			return nil
		case "/reset":
			eng.Reset()
			continue
		}

		// Signals left over from before this submission do not count.
		select {
		case <-idle:
		default:
		}
		select {
		case <-interrupts:
		default:
		}
		if err := eng.Submit(input); err != nil {
			if errors.Is(err, engine.ErrEmptySubmission) {
				continue
			}
			fmt.Fprintln(os.Stderr, errorStyle.Render(err.Error()))
			continue
		}
		line.AppendHistory(input)

		// Ctrl+C while an answer is in progress abandons it.
		select {
		case <-idle:
		case <-interrupts:
			eng.Reset()
		}
	}
}
