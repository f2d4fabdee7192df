// Package main provides a command line client for the player surface.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"

	"github.com/osa030/podcastr/internal/app/format"
	"github.com/osa030/podcastr/internal/app/notification"
)

var (
	app        = kingpin.New("podcastr-playercli", "podcastr player client")
	server     = app.Flag("server", "Server address").Default("http://localhost:3000").Envar("PODCASTR_SERVER").String()
	cookieName = app.Flag("cookie-name", "Session cookie name").Default("podcastr_session").String()
	cookieFile = app.Flag("cookie-file", "File keeping the session cookie").Default(defaultCookieFile()).String()

	statusCmd = app.Command("status", "Show the player state")

	playCmd     = app.Command("play", "Play a single episode")
	playEpisode = playCmd.Arg("episode-id", "Episode ID").Required().String()

	playListCmd   = app.Command("play-list", "Play a list of episodes")
	playListIndex = playListCmd.Flag("index", "Position to start from").Short('i').Default("0").Int()
	playListIDs   = playListCmd.Arg("episode-ids", "Episode IDs").Required().Strings()

	nextCmd     = app.Command("next", "Play the next episode")
	previousCmd = app.Command("previous", "Play the previous episode")

	toggleCmd  = app.Command("toggle", "Toggle a player flag")
	toggleFlag = toggleCmd.Arg("flag", "Flag to toggle").Required().Enum("play", "loop", "shuffle")

	seekCmd     = app.Command("seek", "Seek the current episode")
	seekSeconds = seekCmd.Arg("seconds", "Position in seconds").Required().Float64()

	watchCmd = app.Command("watch", "Print player notifications as they arrive")
)

func defaultCookieFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".podcastr-session"
	}
	return filepath.Join(home, ".podcastr-session")
}

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	client := newPlayerClient(*server, *cookieName, *cookieFile)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		state *stateResponse
		err   error
	)

	switch command {
	case statusCmd.FullCommand():
		state, err = client.Status(ctx)
	case playCmd.FullCommand():
		state, err = client.Play(ctx, *playEpisode)
	case playListCmd.FullCommand():
		state, err = client.PlayList(ctx, *playListIDs, *playListIndex)
	case nextCmd.FullCommand():
		state, err = client.Next(ctx)
	case previousCmd.FullCommand():
		state, err = client.Previous(ctx)
	case toggleCmd.FullCommand():
		state, err = client.Toggle(ctx, *toggleFlag)
	case seekCmd.FullCommand():
		state, err = client.Seek(ctx, *seekSeconds)
	case watchCmd.FullCommand():
		fmt.Println("Watching player notifications. Press Ctrl+C to exit.")
		err = client.Watch(ctx, printNotification)
	}

	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	if state != nil {
		printState(state)
	}
}

func printState(s *stateResponse) {
	fmt.Printf("Mode: %s\n", s.State.Mode)
	fmt.Printf("Loop: %v  Shuffle: %v\n", s.State.IsLooping, s.State.IsShuffling)

	if ep, ok := s.State.Current(); ok {
		fmt.Printf("Now playing: %s (%s)\n", ep.Title, ep.Members)
		fmt.Printf("  %s / %s\n", s.Panel.ProgressText, s.Panel.DurationText)
	} else {
		fmt.Println("Now playing: nothing")
	}

	if len(s.State.Episodes) == 0 {
		return
	}
	fmt.Println("\nPlaylist:")
	for i, ep := range s.State.Episodes {
		marker := "  "
		if i == s.State.CurrentIndex {
			marker = "> "
		}
		fmt.Printf("%s%2d. %s [%s]\n", marker, i+1, ep.Title, format.ClockLong(ep.Duration))
	}
}

func printNotification(n *notification.Notification) {
	fmt.Printf("\n[Sequence: %d] ", n.SequenceNo)

	switch n.Type {
	case notification.TypeInitialState:
		fmt.Println("=== INITIAL STATE ===")
	case notification.TypeState:
		fmt.Printf("=== STATE CHANGED (%s) ===\n", n.Event)
	case notification.TypeCommand:
		if n.Command == "seek" {
			fmt.Printf("=== COMMAND: seek %s ===\n", format.Clock(n.Seconds))
		} else {
			fmt.Printf("=== COMMAND: %s ===\n", n.Command)
		}
		return
	default:
		fmt.Printf("=== UNKNOWN (%s) ===\n", n.Type)
	}

	if n.Panel == nil {
		return
	}
	if n.Panel.Empty {
		fmt.Println("  Nothing loaded")
		return
	}
	fmt.Printf("  Episode: %s\n", n.Panel.Episode.Title)
	fmt.Printf("  Mode: %s  Loop: %v  Shuffle: %v\n", n.Panel.Mode, n.Panel.IsLooping, n.Panel.IsShuffling)
	fmt.Printf("  Progress: %s / %s\n", n.Panel.ProgressText, n.Panel.DurationText)
}
