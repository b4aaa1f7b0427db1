// internal/handlers/ws_codes.go
package handlers

import "github.com/coder/websocket"

// Custom WebSocket close codes used by the play handler.
const (
	BadSubprotocolError websocket.StatusCode = 3000 // Client connected without the duel subprotocol.
	DispatcherDownError websocket.StatusCode = 3001 // The session dispatcher stopped while the client was connected.
)
