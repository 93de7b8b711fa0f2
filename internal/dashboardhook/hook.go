package dashboardhook

import (
	"github.com/mradwan/autofrotz/internal/domain/item"
	"github.com/mradwan/autofrotz/internal/domain/maze"
	"github.com/mradwan/autofrotz/internal/domain/puzzle"
	"github.com/mradwan/autofrotz/internal/domain/room"
	"github.com/mradwan/autofrotz/internal/domain/turn"
)

// WebSocketHook broadcasts every orchestrator event to whatever dashboard
// clients happen to be connected to its Hub. It satisfies
// orchestrator.Hook structurally, without importing that package — the
// Hook interface is small enough that method-set satisfaction alone is
// the contract.
type WebSocketHook struct {
	hub *Hub
}

// NewWebSocketHook wires a hook to an already-running Hub.
func NewWebSocketHook(hub *Hub) *WebSocketHook {
	return &WebSocketHook{hub: hub}
}

func (h *WebSocketHook) OnGameStart(gameID int64, gameFile string) {
	h.hub.broadcastEvent("game_start", map[string]any{"game_id": gameID, "game_file": gameFile})
}

func (h *WebSocketHook) OnTurnStart(rec turn.Record) {
	h.hub.broadcastEvent("turn_start", rec)
}

func (h *WebSocketHook) OnTurnEnd(rec turn.Record) {
	h.hub.broadcastEvent("turn_end", rec)
}

func (h *WebSocketHook) OnRoomEnter(r room.Room) {
	h.hub.broadcastEvent("room_enter", r)
}

func (h *WebSocketHook) OnItemFound(it item.Item) {
	h.hub.broadcastEvent("item_found", it)
}

func (h *WebSocketHook) OnItemTaken(it item.Item) {
	h.hub.broadcastEvent("item_taken", it)
}

func (h *WebSocketHook) OnPuzzleFound(p puzzle.Puzzle) {
	h.hub.broadcastEvent("puzzle_found", p)
}

func (h *WebSocketHook) OnPuzzleSolved(p puzzle.Puzzle) {
	h.hub.broadcastEvent("puzzle_solved", p)
}

func (h *WebSocketHook) OnMazeDetected(g maze.Group) {
	h.hub.broadcastEvent("maze_detected", g)
}

func (h *WebSocketHook) OnMazeRoomMarked(roomID, itemID string) {
	h.hub.broadcastEvent("maze_room_marked", map[string]string{"room_id": roomID, "item_id": itemID})
}

func (h *WebSocketHook) OnMazeCompleted(g maze.Group) {
	h.hub.broadcastEvent("maze_completed", g)
}

func (h *WebSocketHook) OnGameEnd(gameID int64, status string) {
	h.hub.broadcastEvent("game_end", map[string]any{"game_id": gameID, "status": status})
}
