package types

import (
	"cmp"
	"fmt"
)

// InvalidKey is the sentinel value of an unset EntryKey or StackKey.
const InvalidKey = -1

// FirstKey is the first value a fresh KeyGen issues.
const FirstKey = 100

// EntryKey identifies an entry within a container.
type EntryKey int64

// StackKey identifies a stack. Keys are unique across a whole container.
type StackKey int64

// IsValid reports whether k was issued by a KeyGen.
func (k EntryKey) IsValid() bool { return k > InvalidKey }

// IsValid reports whether k was issued by a KeyGen.
func (k StackKey) IsValid() bool { return k > InvalidKey }

func (k EntryKey) String() string { return fmt.Sprintf("E%d", int64(k)) }

func (k StackKey) String() string { return fmt.Sprintf("S%d", int64(k)) }

// InventoryKey addresses a single stack of an entry.
type InventoryKey struct {
	EntryKey EntryKey `json:"entry"`
	StackKey StackKey `json:"stack"`
}

// IsValid reports whether both halves of the key are valid.
func (k InventoryKey) IsValid() bool {
	return k.EntryKey.IsValid() && k.StackKey.IsValid()
}

// Compare orders keys by entry, then by stack.
func (k InventoryKey) Compare(o InventoryKey) int {
	if c := cmp.Compare(k.EntryKey, o.EntryKey); c != 0 {
		return c
	}
	return cmp.Compare(k.StackKey, o.StackKey)
}

func (k InventoryKey) String() string {
	return fmt.Sprintf("%s/%s", k.EntryKey, k.StackKey)
}

// Key is the constraint satisfied by EntryKey and StackKey.
type Key interface {
	~int64
}

// KeyGen issues strictly increasing keys. The zero value issues FirstKey
// first.
type KeyGen[K Key] struct {
	previous K
	started  bool
}

// NextKey returns a key greater than every key issued before it.
func (g *KeyGen[K]) NextKey() K {
	if !g.started {
		g.previous = FirstKey - 1
		g.started = true
	}
	g.previous++
	return g.previous
}

// Peek returns the key NextKey would issue without consuming it.
func (g *KeyGen[K]) Peek() K {
	if !g.started {
		return FirstKey
	}
	return g.previous + 1
}

// Reset returns the generator to its initial state.
func (g *KeyGen[K]) Reset() {
	g.previous = 0
	g.started = false
}

// SetPosition records k as the last issued key so the next key is k+1.
// Moving backwards would allow reuse, so it panics; call Reset first for a
// full rewind.
func (g *KeyGen[K]) SetPosition(k K) {
	if g.started && k <= g.previous {
		panic(fmt.Sprintf("keygen: SetPosition(%d) does not advance past %d", int64(k), int64(g.previous)))
	}
	g.previous = k
	g.started = true
}
