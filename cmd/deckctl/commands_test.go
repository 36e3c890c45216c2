package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/osa030/playdeck/internal/app/playback"
	"github.com/osa030/playdeck/internal/domain/track"
)

func TestTracksFromSources(t *testing.T) {
	got := tracksFromSources([]string{
		"https://cdn.example/audio/Song%20One.mp3",
		"/srv/music/two.wav",
		"three.mp3",
	})

	assert.Equal(t, []track.Track{
		{Title: "Song%20One.mp3", Src: "https://cdn.example/audio/Song%20One.mp3"},
		{Title: "two.wav", Src: "/srv/music/two.wav"},
		{Title: "three.mp3", Src: "three.mp3"},
	}, got)
}

func TestFormatState(t *testing.T) {
	tests := []struct {
		name  string
		state playback.Snapshot
		want  string
	}{
		{name: "idle", state: playback.Snapshot{CurrentIndex: -1}, want: "⏹  Idle"},
		{name: "paused", state: playback.Snapshot{CurrentIndex: 0}, want: "⏸  Paused"},
		{name: "playing", state: playback.Snapshot{CurrentIndex: 0, IsPlaying: true}, want: "▶️  Playing"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatState(tt.state))
		})
	}
}
