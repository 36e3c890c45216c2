// Package main provides the playdeck control CLI.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"connectrpc.com/connect"
	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"

	apiconnect "github.com/osa030/playdeck/internal/api/connect"
)

var (
	app    = kingpin.New("deckctl", "playdeck control client")
	server = app.Flag("server", "Server address").Default("http://localhost:8080").String()
	token  = app.Flag("token", "Control token (or set PLAYDECK_CONTROL_TOKEN env)").Envar("PLAYDECK_CONTROL_TOKEN").String()

	// status command
	statusCmd  = app.Command("status", "Show the playback state")
	statusPath = statusCmd.Flag("path", "Page path used for mini player visibility").Default("/").String()

	// collections command
	collectionsCmd     = app.Command("collections", "List catalog collections").Alias("list")
	collectionsRefresh = collectionsCmd.Flag("refresh", "Bypass the catalog cache").Bool()

	// play command
	playCmd        = app.Command("play", "Play a catalog collection")
	playCollection = playCmd.Arg("collection-id", "Collection ID").Required().String()
	playIndex      = playCmd.Arg("index", "Track index").Default("0").Int()
	playOrigin     = playCmd.Flag("origin", "Queue origin").Default("music").Enum("music", "none")

	// load command
	loadCmd    = app.Command("load", "Replace the queue with the given sources and play")
	loadSrcs   = loadCmd.Arg("src", "Track sources (URL or path)").Required().Strings()
	loadIndex  = loadCmd.Flag("index", "Track index to start at").Default("0").Int()
	loadOrigin = loadCmd.Flag("origin", "Queue origin").Default("none").Enum("music", "none")

	// toggle command
	toggleCmd    = app.Command("toggle", "Toggle play/pause")
	toggleSource = toggleCmd.Flag("source", "Pause source").Default("mini").Enum("mini", "music", "none")

	// next / prev commands
	nextCmd = app.Command("next", "Play the next track")
	prevCmd = app.Command("prev", "Play the previous track")

	// seek command
	seekCmd  = app.Command("seek", "Move the playback position")
	seekTime = seekCmd.Arg("seconds", "Position in seconds").Required().Float64()

	// volume command
	volumeCmd   = app.Command("volume", "Set the volume")
	volumeValue = volumeCmd.Arg("value", "Volume between 0 and 1").Required().Float64()

	// key command
	keyCmd    = app.Command("key", "Forward a key press")
	keyCode   = keyCmd.Arg("code", "Key code").Default("Space").String()
	keyTarget = keyCmd.Flag("target", "Focused element tag").Default("BODY").String()

	// watch command
	watchCmd  = app.Command("watch", "Follow playback state changes")
	watchPath = watchCmd.Flag("path", "Page path used for mini player visibility").Default("/").String()
	watchRaw  = watchCmd.Flag("raw", "Print every notification instead of a progress bar").Bool()

	// shell command
	shellCmd = app.Command("shell", "Interactive shell")
)

// clients bundles the RPC clients used by the commands.
type clients struct {
	player  *apiconnect.PlayerClient
	catalog *apiconnect.CatalogClient
}

func newClients() *clients {
	opts := []connect.ClientOption{
		connect.WithInterceptors(apiconnect.WithControlToken(*token)),
	}
	return &clients{
		player:  apiconnect.NewPlayerClient(http.DefaultClient, *server, opts...),
		catalog: apiconnect.NewCatalogClient(http.DefaultClient, *server, opts...),
	}
}

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	// Parse command
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	c := newClients()
	ctx := context.Background()

	var err error
	switch command {
	case shellCmd.FullCommand():
		err = shell(ctx, c)
	case watchCmd.FullCommand():
		err = watch(ctx, c, *watchPath, *watchRaw)
	default:
		err = execute(ctx, c, command)
	}
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}
