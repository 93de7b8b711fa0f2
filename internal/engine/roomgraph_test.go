package engine

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mradwan/autofrotz/internal/llm"
	"github.com/mradwan/autofrotz/internal/platform/logger"
)

// scriptedProvider replays a fixed sequence of CompleteJSON responses, one
// per call, looping the last entry once exhausted. It satisfies
// llm.Provider but is never asked to do a plain Complete in these tests.
type scriptedProvider struct {
	responses []string
	calls     int
}

func (p *scriptedProvider) Complete(context.Context, string, llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return &llm.CompletionResponse{Text: "look"}, nil
}

func (p *scriptedProvider) CompleteJSON(context.Context, string, llm.JSONRequest) (json.RawMessage, error) {
	i := p.calls
	if i >= len(p.responses) {
		i = len(p.responses) - 1
	}
	p.calls++
	return json.RawMessage(p.responses[i]), nil
}

func (p *scriptedProvider) Name() string                  { return "scripted" }
func (p *scriptedProvider) IsAvailable() bool              { return true }
func (p *scriptedProvider) GetUsageStats() llm.UsageStats { return llm.UsageStats{} }
func (p *scriptedProvider) ResetUsage()                   {}

var _ llm.Provider = (*scriptedProvider)(nil)

func TestMapGraphTwoRoomRoundTrip(t *testing.T) {
	provider := &scriptedProvider{responses: []string{
		`{"room_changed": true, "new_name": "Room A", "description": "a room", "exits": ["north"]}`,
		`{"room_changed": true, "new_name": "Room B", "description": "another room", "exits": ["south"]}`,
		`{"room_changed": true, "new_name": "Room A", "description": "a room", "exits": ["north"]}`,
	}}
	g := NewMapGraph(provider, logger.NewLogger())
	ctx := context.Background()

	if _, err := g.UpdateFromGameOutput(ctx, "a room", "", 1); err != nil {
		t.Fatalf("seed room: %v", err)
	}
	if _, err := g.UpdateFromGameOutput(ctx, "another room", "north", 2); err != nil {
		t.Fatalf("move north: %v", err)
	}
	if _, err := g.UpdateFromGameOutput(ctx, "a room", "south", 3); err != nil {
		t.Fatalf("move south: %v", err)
	}

	if len(g.AllRooms()) != 2 {
		t.Fatalf("expected 2 rooms, got %d", len(g.AllRooms()))
	}
	if len(g.AllConnections()) != 2 {
		t.Fatalf("expected 2 connections, got %d", len(g.AllConnections()))
	}

	path, err := g.GetPath("room_a", "room_b")
	if err != nil {
		t.Fatalf("get path: %v", err)
	}
	if len(path) != 1 || path[0] != "north" {
		t.Fatalf("expected [north], got %v", path)
	}
	if unexplored := g.GetUnexploredExits(""); len(unexplored) != 0 {
		t.Fatalf("expected no unexplored exits, got %v", unexplored)
	}
}

func TestMapGraphReciprocityDemotion(t *testing.T) {
	provider := &scriptedProvider{responses: []string{
		`{"room_changed": true, "new_name": "Room A", "description": "a"}`,
		`{"room_changed": true, "new_name": "Room B", "description": "b"}`,
		`{"room_changed": true, "new_name": "Room C", "description": "c"}`,
	}}
	g := NewMapGraph(provider, logger.NewLogger())
	ctx := context.Background()

	if _, err := g.UpdateFromGameOutput(ctx, "a", "", 1); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := g.UpdateFromGameOutput(ctx, "b", "north", 2); err != nil {
		t.Fatalf("north: %v", err)
	}
	if _, err := g.UpdateFromGameOutput(ctx, "c", "south", 3); err != nil {
		t.Fatalf("south: %v", err)
	}

	for _, c := range g.AllConnections() {
		if c.FromRoom == "room_b" && c.Direction == "south" && c.ToRoom != "room_c" {
			t.Fatalf("expected room_b-south to point at room_c, got %+v", c)
		}
		if c.FromRoom == "room_b" && c.ToRoom == "room_a" {
			t.Fatalf("expected the provisional room_b->room_a reverse edge to be gone, found %+v", c)
		}
	}

	path, err := g.GetPath("room_a", "room_b")
	if err != nil || len(path) != 1 || path[0] != "north" {
		t.Fatalf("expected forward edge A->B(north) untouched, got path=%v err=%v", path, err)
	}
}

func TestMapGraphMarkBlockedExcludesFromPath(t *testing.T) {
	provider := &scriptedProvider{responses: []string{
		`{"room_changed": true, "new_name": "Room A", "description": "a"}`,
		`{"room_changed": true, "new_name": "Room B", "description": "b"}`,
	}}
	g := NewMapGraph(provider, logger.NewLogger())
	ctx := context.Background()
	g.UpdateFromGameOutput(ctx, "a", "", 1)
	g.UpdateFromGameOutput(ctx, "b", "north", 2)

	g.MarkBlocked("room_a", "north", "locked door")
	if _, err := g.GetPath("room_a", "room_b"); err == nil {
		t.Fatal("expected blocked edge to make room_b unreachable")
	}

	g.Unblock("room_a", "north")
	if _, err := g.GetPath("room_a", "room_b"); err != nil {
		t.Fatalf("expected path restored after unblock: %v", err)
	}
}
