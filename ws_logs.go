package main

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 54 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

func isWebSocketUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

// ServerLogsWS sends the log tail and then every appended chunk as text frames.
func (h *Handler) ServerLogsWS(w http.ResponseWriter, r *http.Request) {
	id, err := h.serverID(r)
	if err != nil {
		webFail(w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied to the client.
		slog.Debug("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The client never sends data; reading surfaces close frames and keeps pongs flowing.
	go func() {
		defer cancel()
		conn.SetReadLimit(512)
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					slog.Debug("log stream read error", "server", id, "error", err)
				}
				return
			}
		}
	}()

	write := func(msgType int, data []byte) error {
		conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		return conn.WriteMessage(msgType, data)
	}

	tail, err := h.procs.Logs(id, h.cfg.Frpc.LogTailLines)
	if err != nil {
		slog.Warn("read log tail", "server", id, "error", err)
	}
	if tail != "" {
		if !strings.HasSuffix(tail, "\n") {
			tail += "\n"
		}
		if err := write(websocket.TextMessage, []byte(tail)); err != nil {
			return
		}
	}

	chunks := h.procs.Follow(ctx, id)
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case chunk, ok := <-chunks:
			if !ok {
				return
			}
			if err := write(websocket.TextMessage, []byte(chunk)); err != nil {
				return
			}
		case <-ticker.C:
			if err := write(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-ctx.Done():
			write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
