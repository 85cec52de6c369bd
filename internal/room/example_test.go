package room_test

import (
	"context"
	"fmt"

	"github.com/WebRTC-Sync/kero-project-sub001/internal/channel"
	"github.com/WebRTC-Sync/kero-project-sub001/internal/room"
)

// Example wires a live socket to a store and reacts to the effects its
// reducer emits. Run blocks until the context is cancelled or the
// transport dies.
func Example() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := channel.Dial(ctx, "ws://localhost:4000/socket", nil, channel.DefaultConfig())
	if err != nil {
		fmt.Println("dial:", err)
		return
	}
	defer ch.Close()

	store := room.NewStore()
	syn := room.NewSynchronizer(ch, store, room.Config{
		RoomCode: "KERO42",
		UserID:   "user-1",
		Nickname: "mia",
	}, func(e room.Effect) {
		switch eff := e.(type) {
		case room.GameStartEffect:
			fmt.Println("game started:", eff.Mode)
		case room.RedirectEffect:
			fmt.Println("left room:", eff.Reason)
		}
	})

	if err := syn.Run(ctx); err != nil {
		fmt.Println("session:", err)
	}
}
