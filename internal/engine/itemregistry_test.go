package engine

import (
	"context"
	"testing"

	"github.com/mradwan/autofrotz/internal/domain/item"
	"github.com/mradwan/autofrotz/internal/platform/logger"
)

func TestItemRegistryTakeDropCycle(t *testing.T) {
	provider := &scriptedProvider{responses: []string{
		`{"updates": [{"item_id": "leaflet", "name": "leaflet", "change_type": "new", "location": "room_x"}]}`,
		`{"updates": [{"item_id": "leaflet", "change_type": "taken"}]}`,
		`{"updates": [{"item_id": "leaflet", "change_type": "dropped", "location": "room_y"}]}`,
	}}
	r := NewItemRegistry(provider, logger.NewLogger())
	ctx := context.Background()

	if _, err := r.UpdateFromGameOutput(ctx, "a leaflet is here", "room_x", "look", 1); err != nil {
		t.Fatalf("seed item: %v", err)
	}
	if _, err := r.UpdateFromGameOutput(ctx, "taken", "room_x", "take leaflet", 2); err != nil {
		t.Fatalf("take: %v", err)
	}
	it, ok := r.GetItem("leaflet")
	if !ok || !it.IsInInventory() || it.Portable != item.PortableTrue {
		t.Fatalf("expected leaflet in inventory, portable=true, got %+v ok=%v", it, ok)
	}

	if _, err := r.UpdateFromGameOutput(ctx, "dropped", "room_y", "drop leaflet", 3); err != nil {
		t.Fatalf("drop: %v", err)
	}
	inRoom := r.GetItemsInRoom("room_y")
	if len(inRoom) != 1 || inRoom[0].ID != "leaflet" {
		t.Fatalf("expected leaflet in room_y, got %v", inRoom)
	}
	if len(r.GetInventory()) != 0 {
		t.Fatalf("expected empty inventory after drop, got %v", r.GetInventory())
	}
}

func TestItemRegistryPortabilityNeverDowngrades(t *testing.T) {
	provider := &scriptedProvider{responses: []string{
		`{"updates": [{"item_id": "sword", "change_type": "new"}]}`,
		`{"updates": [{"item_id": "sword", "change_type": "taken"}]}`,
		`{"updates": [{"item_id": "sword", "change_type": "state_change"}]}`,
	}}
	r := NewItemRegistry(provider, logger.NewLogger())
	ctx := context.Background()
	r.UpdateFromGameOutput(ctx, "a sword", "room_x", "look", 1)
	r.UpdateFromGameOutput(ctx, "taken", "room_x", "take sword", 2)
	r.UpdateFromGameOutput(ctx, "it glows", "room_x", "look", 3)

	it, _ := r.GetItem("sword")
	if it.Portable != item.PortableTrue {
		t.Fatalf("expected portability to stay true, got %v", it.Portable)
	}
}

func TestItemRegistryGoneItemBecomesUnknownNotDeleted(t *testing.T) {
	provider := &scriptedProvider{responses: []string{
		`{"updates": [{"item_id": "coins", "change_type": "new"}]}`,
		`{"updates": [{"item_id": "coins", "change_type": "taken"}]}`,
		`{"updates": [{"item_id": "coins", "change_type": "gone"}]}`,
	}}
	r := NewItemRegistry(provider, logger.NewLogger())
	ctx := context.Background()
	r.UpdateFromGameOutput(ctx, "coins glint", "room_x", "look", 1)
	r.UpdateFromGameOutput(ctx, "taken", "room_x", "take coins", 2)
	r.UpdateFromGameOutput(ctx, "a thief grabs your coins!", "room_x", "look", 3)

	it, ok := r.GetItem("coins")
	if !ok {
		t.Fatal("expected coins to still exist in the registry")
	}
	if it.Location != item.LocationUnknown {
		t.Fatalf("expected location unknown after gone delta, got %q", it.Location)
	}
}

func TestItemRegistryCarryLimitDiscovery(t *testing.T) {
	provider := &scriptedProvider{responses: []string{
		`{"updates": [{"item_id": "rock", "change_type": "new"}]}`,
		`{"updates": [{"item_id": "rock", "change_type": "taken"}]}`,
		`{"updates": []}`,
	}}
	r := NewItemRegistry(provider, logger.NewLogger())
	ctx := context.Background()
	r.UpdateFromGameOutput(ctx, "a rock", "room_x", "look", 1)
	r.UpdateFromGameOutput(ctx, "taken", "room_x", "take rock", 2)

	if r.CarryLimit() != 0 {
		t.Fatalf("expected carry limit undiscovered before any refusal, got %d", r.CarryLimit())
	}

	if _, err := r.UpdateFromGameOutput(ctx, "You can't carry any more.", "room_x", "take anvil", 3); err != nil {
		t.Fatalf("overloaded take: %v", err)
	}
	if got := r.CarryLimit(); got != 1 {
		t.Fatalf("expected carry limit fixed at current inventory count 1, got %d", got)
	}
}

func TestItemRegistryDroppableItemsDeprioritizesPuzzleItems(t *testing.T) {
	provider := &scriptedProvider{responses: []string{
		`{"updates": [
			{"item_id": "garlic", "change_type": "new"},
			{"item_id": "key", "change_type": "new"}
		]}`,
		`{"updates": [
			{"item_id": "garlic", "change_type": "taken"},
			{"item_id": "key", "change_type": "taken"}
		]}`,
	}}
	r := NewItemRegistry(provider, logger.NewLogger())
	ctx := context.Background()
	r.UpdateFromGameOutput(ctx, "garlic and a key", "room_x", "look", 1)
	r.UpdateFromGameOutput(ctx, "taken", "room_x", "take all", 2)

	droppable := r.GetDroppableItems([]string{"key"})
	if len(droppable) != 2 {
		t.Fatalf("expected both items droppable, got %v", droppable)
	}
	if droppable[len(droppable)-1].ID != "key" {
		t.Fatalf("expected excluded puzzle item sorted last, got %v", droppable)
	}
}
