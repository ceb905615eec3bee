package state

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"github.com/mitchellh/mapstructure"
)

// Cursors gives bots typed access to their entry in the state map. Every Set
// rewrites the whole map; the in-memory copy changes only after the save
// succeeds.
type Cursors struct {
	mu     sync.Mutex
	store  Store
	state  Map
	loaded bool
}

// NewCursors wraps store. The map is loaded on first use.
func NewCursors(store Store) *Cursors {
	return &Cursors{store: store}
}

// Load reads the persisted map, replacing anything held in memory.
func (c *Cursors) Load(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadLocked(ctx)
}

func (c *Cursors) loadLocked(ctx context.Context) error {
	m, err := c.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load cursors: %w", err)
	}
	if m == nil {
		m = Map{}
	}
	c.state = m
	c.loaded = true
	return nil
}

func (c *Cursors) ensureLoaded(ctx context.Context) error {
	if c.loaded {
		return nil
	}
	return c.loadLocked(ctx)
}

// Get decodes bot's cursor into out, a pointer to a struct with json tags
// and scalar fields. It reports false when the bot has no saved state.
func (c *Cursors) Get(ctx context.Context, bot string, out any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureLoaded(ctx); err != nil {
		return false, err
	}

	raw, ok := c.state[bot]
	if !ok || raw == nil {
		return false, nil
	}
	if err := decode(raw, out); err != nil {
		return false, fmt.Errorf("decode cursor %q: %w", bot, err)
	}
	return true, nil
}

// Set stores v as bot's cursor and saves the whole map.
func (c *Cursors) Set(ctx context.Context, bot string, v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureLoaded(ctx); err != nil {
		return err
	}

	entry := map[string]any{}
	if err := decode(v, &entry); err != nil {
		return fmt.Errorf("encode cursor %q: %w", bot, err)
	}

	next := maps.Clone(c.state)
	next[bot] = entry
	if err := c.store.Save(ctx, next); err != nil {
		return fmt.Errorf("save cursors: %w", err)
	}
	c.state = next
	return nil
}

// Bots lists the bots with saved state.
func (c *Cursors) Bots(ctx context.Context) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	bots := make([]string, 0, len(c.state))
	for bot := range c.state {
		bots = append(bots, bot)
	}
	return bots, nil
}

func decode(in, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "json",
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return fmt.Errorf("create decoder: %w", err)
	}
	return decoder.Decode(in)
}
