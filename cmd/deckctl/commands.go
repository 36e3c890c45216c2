package main

import (
	"context"
	"fmt"
	"path"
	"strings"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"

	apiconnect "github.com/osa030/playdeck/internal/api/connect"
	"github.com/osa030/playdeck/internal/app/playback"
	"github.com/osa030/playdeck/internal/domain/track"
)

// execute runs a one-shot command with the flag values of the last parse.
func execute(ctx context.Context, c *clients, command string) error {
	switch command {
	case statusCmd.FullCommand():
		return status(ctx, c, *statusPath)
	case collectionsCmd.FullCommand():
		return listCollections(ctx, c, *collectionsRefresh)
	case playCmd.FullCommand():
		return printState(c.catalog.PlayCollection(ctx, connect.NewRequest(&apiconnect.PlayCollectionRequest{
			CollectionID: *playCollection,
			Index:        *playIndex,
			Origin:       *playOrigin,
		})))
	case loadCmd.FullCommand():
		return printState(c.player.LoadAndPlay(ctx, connect.NewRequest(&apiconnect.LoadAndPlayRequest{
			Tracks: tracksFromSources(*loadSrcs),
			Index:  *loadIndex,
			Origin: *loadOrigin,
		})))
	case toggleCmd.FullCommand():
		source := *toggleSource
		if source == "none" {
			source = ""
		}
		return printState(c.player.TogglePlayPause(ctx, connect.NewRequest(&apiconnect.TogglePlayPauseRequest{Source: source})))
	case nextCmd.FullCommand():
		return printState(c.player.PlayNext(ctx, connect.NewRequest(&apiconnect.Empty{})))
	case prevCmd.FullCommand():
		return printState(c.player.PlayPrev(ctx, connect.NewRequest(&apiconnect.Empty{})))
	case seekCmd.FullCommand():
		return printState(c.player.Seek(ctx, connect.NewRequest(&apiconnect.SeekRequest{Time: *seekTime})))
	case volumeCmd.FullCommand():
		return printState(c.player.SetVolume(ctx, connect.NewRequest(&apiconnect.SetVolumeRequest{Volume: *volumeValue})))
	case keyCmd.FullCommand():
		return pressKey(ctx, c, *keyCode, *keyTarget)
	default:
		return errors.Newf("unknown command: %s", command)
	}
}

func status(ctx context.Context, c *clients, pagePath string) error {
	resp, err := c.player.GetState(ctx, connect.NewRequest(&apiconnect.GetStateRequest{Path: pagePath}))
	if err != nil {
		return err
	}

	s := resp.Msg.State
	fmt.Println("\n=== PLAYBACK STATUS ===")
	fmt.Printf("State: %s\n", formatState(s))
	fmt.Printf("Volume: %.2f\n", s.Volume)
	fmt.Printf("Origin: %s\n", s.GlobalOrigin)
	if s.LastPauseSource != playback.PauseSourceNone {
		fmt.Printf("Last paused from: %s\n", s.LastPauseSource)
	}
	fmt.Printf("Mini player on %s: %v\n", pagePath, resp.Msg.MiniPlayerVisible)

	if s.CurrentTrack != nil {
		fmt.Println("\nCurrent Track:")
		fmt.Printf("  [%d/%d] %s\n", s.CurrentIndex+1, len(s.Queue), s.CurrentTrack.Title)
		fmt.Printf("  Source: %s\n", s.CurrentTrack.Src)
		fmt.Printf("  Position: %s / %s\n", playback.FormatTime(s.CurrentTime), playback.FormatTime(s.Duration))
	} else {
		fmt.Println("\nNo track selected")
	}

	if len(s.Queue) > 0 {
		fmt.Println("\nQueue:")
		for i, t := range s.Queue {
			marker := " "
			if i == s.CurrentIndex {
				marker = ">"
			}
			fmt.Printf("  %s %2d. %s\n", marker, i, t.Title)
		}
	}
	fmt.Println()
	return nil
}

func listCollections(ctx context.Context, c *clients, refresh bool) error {
	resp, err := c.catalog.ListCollections(ctx, connect.NewRequest(&apiconnect.ListCollectionsRequest{Refresh: refresh}))
	if err != nil {
		return err
	}

	if len(resp.Msg.Collections) == 0 {
		fmt.Println("No collections")
		return nil
	}
	for _, col := range resp.Msg.Collections {
		fmt.Printf("%s  %s (%s, %d tracks)\n", col.ID, col.Name, col.Source, len(col.Tracks))
		for i, t := range col.Tracks {
			fmt.Printf("    %2d. %s\n", i, t.Title)
		}
	}
	return nil
}

func pressKey(ctx context.Context, c *clients, code, target string) error {
	key := ""
	if code == "Space" {
		key = " "
	}
	resp, err := c.player.PressKey(ctx, connect.NewRequest(&apiconnect.PressKeyRequest{
		Code:      code,
		Key:       key,
		TargetTag: target,
	}))
	if err != nil {
		return err
	}
	if resp.Msg.Handled {
		fmt.Println("Handled")
	} else {
		fmt.Println("Ignored")
	}
	return nil
}

func printState(resp *connect.Response[apiconnect.StateResponse], err error) error {
	if err != nil {
		return err
	}
	s := resp.Msg.State
	if s.CurrentTrack == nil {
		fmt.Printf("%s\n", formatState(s))
		return nil
	}
	fmt.Printf("%s  [%d/%d] %s  %s/%s  vol=%.2f\n", formatState(s), s.CurrentIndex+1, len(s.Queue),
		s.CurrentTrack.Title, playback.FormatTime(s.CurrentTime), playback.FormatTime(s.Duration), s.Volume)
	return nil
}

func formatState(s playback.Snapshot) string {
	switch s.State() {
	case playback.StatePlaying:
		return "▶️  Playing"
	case playback.StatePaused:
		return "⏸  Paused"
	default:
		return "⏹  Idle"
	}
}

// tracksFromSources titles each source with its base name.
func tracksFromSources(srcs []string) []track.Track {
	tracks := make([]track.Track, 0, len(srcs))
	for _, src := range srcs {
		title := path.Base(strings.TrimRight(src, "/"))
		tracks = append(tracks, track.Track{Title: title, Src: src})
	}
	return tracks
}
