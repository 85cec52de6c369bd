package main

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/WebRTC-Sync/kero-project-sub001/internal/history"
)

// Prints the local play log. With a song id argument it also prints the
// best recorded score for that song in each mode.
func main() {
	path := os.Getenv("KERO_HISTORY_PATH")
	if path == "" {
		path = history.DefaultDBFile
	}

	// 1) Open the local play log
	store, err := history.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open history: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	// 2) Dump the most recent plays
	plays, err := store.Recent(20)
	if err != nil {
		fmt.Fprintf(os.Stderr, "list plays: %v\n", err)
		os.Exit(1)
	}
	if len(plays) == 0 {
		fmt.Println("no plays recorded yet")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PLAYED\tMODE\tTITLE\tARTIST\tSCORE\tSTREAK")
	for _, p := range plays {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\n",
			p.PlayedAt.Format("2006-01-02 15:04"), p.Mode, p.Title, p.Artist, p.Score, p.MaxStreak)
	}
	w.Flush()

	// 3) Best scores for a specific song, if asked
	if len(os.Args) < 2 {
		return
	}
	songID := os.Args[1]
	for _, mode := range []string{"karaoke", "quiz"} {
		best, err := store.BestForSong(songID, mode)
		if errors.Is(err, history.ErrNoPlays) {
			continue
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "best score: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("best %s score for %s: %d (streak %d, %s)\n",
			mode, best.Title, best.Score, best.MaxStreak, best.PlayedAt.Format("2006-01-02"))
	}
}
