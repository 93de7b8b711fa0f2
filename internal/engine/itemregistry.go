package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/mradwan/autofrotz/internal/domain/item"
	"github.com/mradwan/autofrotz/internal/llm"
	"github.com/mradwan/autofrotz/internal/platform/logger"
)

var carryLimitPhrases = []string{"too heavy", "can't carry", "cannot carry", "your load is too great"}

var itemUpdateSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"updates": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"item_id":     map[string]any{"type": "string"},
					"name":        map[string]any{"type": "string"},
					"change_type": map[string]any{"type": "string", "enum": []string{"new", "taken", "dropped", "state_change", "moved", "gone"}},
					"location":    map[string]any{"type": "string"},
					"properties":  map[string]any{"type": "object"},
				},
				"required": []string{"item_id", "change_type"},
			},
		},
	},
}

type itemUpdateEnvelope struct {
	Updates []item.Update `json:"updates"`
}

// ItemRegistry is the stateful manager of every world object the parser has
// ever mentioned, keyed by normalized item id. It owns the one
// structured-extraction call that turns game prose into item deltas.
type ItemRegistry struct {
	mu         sync.Mutex
	items      map[string]item.Item
	provider   llm.Provider
	log        *logger.Logger
	carryLimit int // 0 means undiscovered
}

// NewItemRegistry creates an empty registry driven by provider for its
// structured-extraction calls.
func NewItemRegistry(provider llm.Provider, log *logger.Logger) *ItemRegistry {
	return &ItemRegistry{
		items:    make(map[string]item.Item),
		provider: provider,
		log:      log,
	}
}

// LoadFromDB rehydrates the registry from journal rows after a crash.
func (r *ItemRegistry) LoadFromDB(items map[string]item.Item) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = make(map[string]item.Item, len(items))
	for k, v := range items {
		r.items[k] = v
	}
}

// UpdateFromGameOutput issues the item_parser structured-extraction call and
// applies every returned delta. The parser never invents items: a prose
// mentioning none must resolve to an empty update list, never an error.
func (r *ItemRegistry) UpdateFromGameOutput(ctx context.Context, text, currentRoom, command string, turn int) ([]item.Update, error) {
	req := llm.JSONRequest{
		Messages: []llm.Message{
			{Role: "user", Content: fmt.Sprintf("Room: %s\nCommand: %s\nOutput: %s", currentRoom, command, text)},
		},
		Schema: itemUpdateSchema,
	}

	raw, err := llm.ExtractJSON(ctx, r.provider, itemParserSystemPrompt, req, validateItemUpdates, r.log)
	if err != nil {
		return nil, fmt.Errorf("item_parser: %w", err)
	}

	var env itemUpdateEnvelope
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil {
			r.log.Warn("item_parser: malformed structured response, treating as empty delta")
			return nil, nil
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range env.Updates {
		r.applyDelta(u, currentRoom, turn)
	}

	if command != "" && strings.HasPrefix(strings.ToLower(strings.TrimSpace(command)), "take") && containsAny(text, carryLimitPhrases) {
		r.carryLimit = len(r.inventoryLocked())
	}

	return env.Updates, nil
}

func validateItemUpdates(raw json.RawMessage) error {
	var env itemUpdateEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return err
	}
	for _, u := range env.Updates {
		switch u.ChangeType {
		case item.ChangeNew, item.ChangeTaken, item.ChangeDropped, item.ChangeStateChange, item.ChangeMoved, item.ChangeGone, "":
		default:
			return fmt.Errorf("unknown change_type %q", u.ChangeType)
		}
	}
	return nil
}

func (r *ItemRegistry) applyDelta(u item.Update, currentRoom string, turn int) {
	existing, ok := r.items[u.ItemID]
	if !ok {
		loc := u.Location
		if loc == "" {
			loc = currentRoom
		}
		it := item.New(u.ItemID, nameOrID(u.Name, u.ItemID), loc, turn)
		for k, v := range u.Properties {
			it.SetProperty(k, v)
		}
		existing = *it
	}

	switch u.ChangeType {
	case item.ChangeTaken:
		existing.MarkTaken(turn)
	case item.ChangeDropped:
		room := u.Location
		if room == "" {
			room = currentRoom
		}
		existing.MarkDropped(room, turn)
	case item.ChangeGone:
		existing.MarkGone(turn)
	case item.ChangeMoved:
		if u.Location != "" {
			existing.MarkDropped(u.Location, turn)
		}
	case item.ChangeStateChange, item.ChangeNew:
		// location/properties merge handled below
	}

	for k, v := range u.Properties {
		existing.SetProperty(k, v)
	}
	if u.Name != "" {
		existing.Name = u.Name
	}
	r.items[u.ItemID] = existing
}

// TakeItem records a direct take outside the parser pipeline (e.g. driven by
// the maze subsystem's marker-drop protocol).
func (r *ItemRegistry) TakeItem(id string, turn int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	it, ok := r.items[id]
	if !ok {
		return fmt.Errorf("take_item: unknown item %q", id)
	}
	it.MarkTaken(turn)
	r.items[id] = it
	return nil
}

// DropItem records a direct drop into room, leaving portability untouched.
func (r *ItemRegistry) DropItem(id, room string, turn int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	it, ok := r.items[id]
	if !ok {
		return fmt.Errorf("drop_item: unknown item %q", id)
	}
	it.MarkDropped(room, turn)
	r.items[id] = it
	return nil
}

func (r *ItemRegistry) GetInventory() []item.Item {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inventoryLocked()
}

func (r *ItemRegistry) inventoryLocked() []item.Item {
	var out []item.Item
	for _, it := range r.items {
		if it.IsInInventory() {
			out = append(out, it)
		}
	}
	sortItemsByID(out)
	return out
}

func (r *ItemRegistry) GetItemsInRoom(room string) []item.Item {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []item.Item
	for _, it := range r.items {
		if it.Location == room {
			out = append(out, it)
		}
	}
	sortItemsByID(out)
	return out
}

func (r *ItemRegistry) FindItemsByProperty(key string, value any) []item.Item {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []item.Item
	for _, it := range r.items {
		if it.HasProperty(key, value) {
			out = append(out, it)
		}
	}
	sortItemsByID(out)
	return out
}

func (r *ItemRegistry) GetItem(id string) (item.Item, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	it, ok := r.items[id]
	return it, ok
}

func (r *ItemRegistry) GetAllItems() map[string]item.Item {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]item.Item, len(r.items))
	for k, v := range r.items {
		out[k] = v
	}
	return out
}

// GetDroppableItems returns portable inventory items, with anything in
// exclude (typically puzzle-related items) sorted to the back: the
// marker-selection primitive the maze subsystem draws from.
func (r *ItemRegistry) GetDroppableItems(exclude []string) []item.Item {
	r.mu.Lock()
	defer r.mu.Unlock()

	excluded := make(map[string]bool, len(exclude))
	for _, id := range exclude {
		excluded[id] = true
	}

	var preferred, deprioritized []item.Item
	for _, it := range r.items {
		if !it.IsInInventory() || it.Portable != item.PortableTrue {
			continue
		}
		if excluded[it.ID] {
			deprioritized = append(deprioritized, it)
		} else {
			preferred = append(preferred, it)
		}
	}
	sortItemsByID(preferred)
	sortItemsByID(deprioritized)
	return append(preferred, deprioritized...)
}

// CarryLimit returns the discovered inventory-count ceiling, or 0 if the
// game has never refused a take on "too heavy" grounds.
func (r *ItemRegistry) CarryLimit() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.carryLimit
}

func sortItemsByID(items []item.Item) {
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
}

func containsAny(text string, phrases []string) bool {
	lower := strings.ToLower(text)
	for _, p := range phrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

func nameOrID(name, id string) string {
	if name != "" {
		return name
	}
	return id
}

const itemParserSystemPrompt = `You track physical objects mentioned in text-adventure prose. Given a room, ` +
	`the command just executed, and the game's output, list every item delta implied by the output. Never ` +
	`invent an item that isn't mentioned; if nothing changed, return an empty updates array.`
