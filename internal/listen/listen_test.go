// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package listen

import (
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/holomush/simscript/internal/core"
	"github.com/holomush/simscript/internal/world"
)

type collector struct {
	mu      sync.Mutex
	records []core.EventRecord
}

func (c *collector) Post(rec core.EventRecord) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append(c.records, rec)
	return true
}

func (c *collector) Records() []core.EventRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]core.EventRecord(nil), c.records...)
}

func (c *collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.records)
}

// placeScript puts a scripted part into scene and returns a script in it.
func placeScript(scene *world.MemoryScene, name string, pos core.Vector) core.ScriptRef {
	part := core.NewULID()
	scene.Put(world.Entity{Key: part, Name: name, Type: world.TypePassive | world.TypeScripted, Pos: pos})
	return core.NewScriptRef(part)
}

func say(channel int32, name string, key ulid.ULID, message string, origin core.Vector) world.Chat {
	return world.Chat{
		Kind:       world.ChatSay,
		Channel:    channel,
		SenderName: name,
		SenderKey:  key,
		SenderPart: key,
		Message:    message,
		Origin:     origin,
	}
}
