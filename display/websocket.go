package ringfleet

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const streamInterval = 100 * time.Millisecond

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebsocketHandler streams the fleet status until the client goes away
func (v *View) WebsocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	// reads only to notice the close
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(streamInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			v.MU.Lock()
			status := v.Board.Status(v.now())
			v.MU.Unlock()

			if err := conn.WriteJSON(status); err != nil {
				slog.Debug("Websocket closed", slog.Any("error", err))
				return
			}
		case <-gone:
			return
		}
	}
}
