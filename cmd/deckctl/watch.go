package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/signal"
	"syscall"

	"connectrpc.com/connect"
	"github.com/schollz/progressbar/v3"

	apiconnect "github.com/osa030/playdeck/internal/api/connect"
	"github.com/osa030/playdeck/internal/app/playback"
)

// watch follows the state stream until interrupted.
func watch(ctx context.Context, c *clients, pagePath string, raw bool) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	stream, err := c.player.WatchState(ctx, connect.NewRequest(&apiconnect.WatchStateRequest{Path: pagePath}))
	if err != nil {
		return err
	}
	defer stream.Close()

	fmt.Println("Watching playback state. Press Ctrl+C to exit.")

	var view *trackBar
	if !raw {
		view = newTrackBar()
		defer view.finish()
	}

	for stream.Receive() {
		ev := stream.Msg()
		if raw {
			printEvent(ev)
			continue
		}
		view.update(ev)
	}

	if err := stream.Err(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func printEvent(ev *apiconnect.StateEvent) {
	s := ev.State
	title := "-"
	if s.CurrentTrack != nil {
		title = s.CurrentTrack.Title
	}
	fmt.Printf("[%d] %-16s %-10s %s  %s/%s  vol=%.2f mini=%v\n",
		ev.SequenceNo, ev.Reason, s.State(), title,
		playback.FormatTime(s.CurrentTime), playback.FormatTime(s.Duration), s.Volume, ev.MiniPlayerVisible)
}

// trackBar renders the current track position as a progress bar.
type trackBar struct {
	bar   *progressbar.ProgressBar
	track string
}

func newTrackBar() *trackBar {
	return &trackBar{
		bar: progressbar.NewOptions64(1,
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetWidth(30),
			progressbar.OptionSetPredictTime(false),
			progressbar.OptionSetElapsedTime(false),
			progressbar.OptionSetRenderBlankState(true),
		),
	}
}

func (t *trackBar) update(ev *apiconnect.StateEvent) {
	s := ev.State
	if s.CurrentTrack == nil {
		if t.track != "" {
			t.bar.Clear()
			fmt.Fprintln(os.Stderr, "⏹  Idle")
			t.track = ""
		}
		return
	}

	key := fmt.Sprintf("%d:%s", s.CurrentIndex, s.CurrentTrack.Src)
	if key != t.track {
		t.track = key
		t.bar.Reset()
	}

	total := int64(math.Max(1, math.Round(s.Duration)))
	t.bar.ChangeMax64(total)
	t.bar.Describe(fmt.Sprintf("%s %s %s/%s", formatState(s), s.CurrentTrack.Title,
		playback.FormatTime(s.CurrentTime), playback.FormatTime(s.Duration)))
	_ = t.bar.Set64(int64(math.Min(float64(total), math.Round(s.CurrentTime))))
}

func (t *trackBar) finish() {
	_ = t.bar.Clear()
	fmt.Fprintln(os.Stderr)
}
