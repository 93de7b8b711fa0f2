package journal

import (
	"context"
	"testing"
	"time"

	"github.com/mradwan/autofrotz/internal/domain/item"
	"github.com/mradwan/autofrotz/internal/domain/room"
	"github.com/mradwan/autofrotz/internal/domain/turn"
)

func TestInMemorySaveTurnUpsertsByTurnNumber(t *testing.T) {
	j := NewInMemory()
	ctx := context.Background()

	gameID, err := j.CreateGame(ctx, "zork1.z3")
	if err != nil {
		t.Fatalf("create game: %v", err)
	}

	rec := turn.Record{
		GameID:            gameID,
		TurnNumber:        1,
		Timestamp:         time.Now(),
		CommandSent:       "open mailbox",
		GameOutput:        "Opening the mailbox reveals a leaflet.",
		CurrentRoom:       "west_of_house",
		InventorySnapshot: []string{},
	}
	if err := j.SaveTurn(ctx, gameID, rec); err != nil {
		t.Fatalf("save turn: %v", err)
	}

	rec.GameOutput = "Opening the mailbox reveals a leaflet and a key."
	if err := j.SaveTurn(ctx, gameID, rec); err != nil {
		t.Fatalf("replay save turn: %v", err)
	}

	turns, err := j.GetTurns(ctx, gameID)
	if err != nil {
		t.Fatalf("get turns: %v", err)
	}
	if len(turns) != 1 {
		t.Fatalf("expected replay to upsert, not append: got %d rows", len(turns))
	}
	if turns[0].GameOutput != rec.GameOutput {
		t.Errorf("expected upserted output to win, got %q", turns[0].GameOutput)
	}
}

func TestInMemoryItemKeepsTakenPortability(t *testing.T) {
	j := NewInMemory()
	ctx := context.Background()
	gameID, _ := j.CreateGame(ctx, "zork1.z3")

	lamp := item.New("brass_lantern", "brass lantern", "living_room", 3)
	lamp.MarkTaken(4)
	if err := j.SaveItem(ctx, gameID, *lamp); err != nil {
		t.Fatalf("save item: %v", err)
	}

	items, err := j.GetItems(ctx, gameID)
	if err != nil {
		t.Fatalf("get items: %v", err)
	}
	got := items["brass_lantern"]
	if got.Portable != item.PortableTrue {
		t.Fatalf("expected portable=true, got %v", got.Portable)
	}
	if !got.IsInInventory() {
		t.Errorf("expected lamp to be in inventory after MarkTaken")
	}
}

func TestLoadResumeStateReturnsNilWhenNoActiveGame(t *testing.T) {
	j := NewInMemory()
	state, err := LoadResumeState(context.Background(), j)
	if err != nil {
		t.Fatalf("load resume state: %v", err)
	}
	if state != nil {
		t.Fatalf("expected nil resume state on a fresh journal, got %+v", state)
	}
}

func TestLoadResumeStateRehydratesRoomsAndLatestTurn(t *testing.T) {
	j := NewInMemory()
	ctx := context.Background()

	gameID, err := j.CreateGame(ctx, "zork1.z3")
	if err != nil {
		t.Fatalf("create game: %v", err)
	}

	r := room.New("west_of_house", "West of House", "You are standing in an open field.", 1)
	if err := j.SaveRoom(ctx, gameID, *r); err != nil {
		t.Fatalf("save room: %v", err)
	}

	rec := turn.Record{GameID: gameID, TurnNumber: 1, Timestamp: time.Now(), CommandSent: "look", CurrentRoom: r.ID}
	if err := j.SaveTurn(ctx, gameID, rec); err != nil {
		t.Fatalf("save turn: %v", err)
	}

	state, err := LoadResumeState(ctx, j)
	if err != nil {
		t.Fatalf("load resume state: %v", err)
	}
	if state == nil {
		t.Fatal("expected a resumable state")
	}
	if state.LastTurn == nil || state.LastTurn.TurnNumber != 1 {
		t.Errorf("expected last turn 1, got %+v", state.LastTurn)
	}
	if _, ok := state.Rooms["west_of_house"]; !ok {
		t.Errorf("expected west_of_house to be rehydrated")
	}
}

func TestEndGameMakesItInactive(t *testing.T) {
	j := NewInMemory()
	ctx := context.Background()
	gameID, _ := j.CreateGame(ctx, "zork1.z3")

	if err := j.EndGame(ctx, gameID, GameStatusDied); err != nil {
		t.Fatalf("end game: %v", err)
	}

	active, err := j.GetActiveGame(ctx)
	if err != nil {
		t.Fatalf("get active game: %v", err)
	}
	if active != nil {
		t.Errorf("expected no active game after ending, got %+v", active)
	}
}
