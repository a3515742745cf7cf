package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/selkane/auxilium/internal/app/voice"
	"github.com/selkane/auxilium/internal/audio/output"
	"github.com/selkane/auxilium/internal/domain"
	"github.com/selkane/auxilium/internal/events"
)

func init() {
	rootCmd.AddCommand(speakCmd)
}

var speakCmd = &cobra.Command{
	Use:   "speak <text>",
	Short: "Synthesize text and write it as a WAV file",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSpeak,
}

func runSpeak(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	client, err := newModelClient(ctx, cfg)
	if err != nil {
		return err
	}

	out, err := output.NewWAVDir(cfg.AudioDir)
	if err != nil {
		return err
	}

	const id domain.MessageID = "speak-1"
	bus := events.NewBus(domain.NewSessionID())
	defer bus.Close()

	evs, err := bus.Subscribe(ctx)
	if err != nil {
		return err
	}

	player := voice.NewPlayer(client, func() (output.Output, error) { return out, nil }, bus)
	if err := player.Play(ctx, strings.Join(args, " "), id); err != nil {
		return err
	}

	if err := waitIdle(ctx, evs, id); err != nil {
		return err
	}

	if out.LastPath() == "" {
		return fmt.Errorf("no audio was produced")
	}
	fmt.Fprintln(cmd.OutOrStdout(), out.LastPath())
	return nil
}

// waitIdle blocks until playback of id went back to idle.
func waitIdle(ctx context.Context, evs <-chan events.Event, id domain.MessageID) error {
	for {
		select {
		case ev, ok := <-evs:
			if !ok {
				return nil
			}
			if ev.Type == events.TypePlaybackChanged && ev.MessageID == id && ev.Playback == string(voice.StateIdle) {
				return nil
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
