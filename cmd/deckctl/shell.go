package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/cockroachdb/errors"
)

var shellCompleter = readline.NewPrefixCompleter(
	readline.PcItem("status"),
	readline.PcItem("collections", readline.PcItem("--refresh")),
	readline.PcItem("play"),
	readline.PcItem("load"),
	readline.PcItem("toggle", readline.PcItem("--source=mini"), readline.PcItem("--source=music")),
	readline.PcItem("next"),
	readline.PcItem("prev"),
	readline.PcItem("seek"),
	readline.PcItem("volume"),
	readline.PcItem("key", readline.PcItem("Space")),
	readline.PcItem("watch", readline.PcItem("--raw")),
	readline.PcItem("help"),
	readline.PcItem("exit"),
)

// shell reads commands interactively and runs them against the server.
func shell(ctx context.Context, c *clients) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "deck> ",
		HistoryFile:     historyFile(),
		AutoComplete:    shellCompleter,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return errors.Wrap(err, "failed to start shell")
	}
	defer rl.Close()

	// Keep usage errors inside the shell.
	app.Terminate(nil)
	app.UsageWriter(rl.Stderr())
	app.ErrorWriter(rl.Stderr())

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if line == "" {
				return nil
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		args := strings.Fields(line)
		if len(args) == 0 {
			continue
		}
		switch args[0] {
		case "exit", "quit":
			return nil
		case "help":
			app.Usage(nil)
			continue
		}

		if err := runLine(ctx, c, args); err != nil {
			fmt.Fprintf(rl.Stderr(), "Error: %v\n", err)
		}
	}
}

func runLine(ctx context.Context, c *clients, args []string) error {
	command, err := app.Parse(args)
	if err != nil {
		return err
	}
	switch command {
	case shellCmd.FullCommand():
		return errors.New("already in a shell")
	case watchCmd.FullCommand():
		return watch(ctx, c, *watchPath, *watchRaw)
	default:
		return execute(ctx, c, command)
	}
}

func historyFile() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	dir = filepath.Join(dir, "playdeck")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ""
	}
	return filepath.Join(dir, "deckctl_history")
}
