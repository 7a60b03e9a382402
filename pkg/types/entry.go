package types

import "sort"

// KeyedStack is one keyed sub-quantity of an entry.
type KeyedStack struct {
	Key   StackKey `json:"key"`
	Stack int      `json:"stack"`
}

// Entry aggregates one item and its stacks. Stacks are sorted by key and
// every count is positive and no greater than Limit unless Limit is
// Unlimited.
type Entry struct {
	Item   Item
	Stacks []KeyedStack
	Limit  int
}

// KeyedEntry pairs an entry with its key.
type KeyedEntry struct {
	Key   EntryKey
	Entry Entry
}

// AddBehavior selects how an addition treats existing stacks.
type AddBehavior uint8

// Addition behaviors.
const (
	// AddToAnyStack fills existing stacks before creating new ones.
	AddToAnyStack AddBehavior = iota
	// OnlyNewStacks leaves existing stacks untouched.
	OnlyNewStacks
)

func (b AddBehavior) String() string {
	if b == OnlyNewStacks {
		return "only_new_stacks"
	}
	return "add_to_any_stack"
}

// StackSum returns the total number of copies across all stacks.
func (e *Entry) StackSum() int {
	sum := 0
	for _, s := range e.Stacks {
		sum += s.Stack
	}
	return sum
}

// StackIndex returns the position of key in Stacks, or -1.
func (e *Entry) StackIndex(key StackKey) int {
	i := sort.Search(len(e.Stacks), func(i int) bool { return e.Stacks[i].Key >= key })
	if i < len(e.Stacks) && e.Stacks[i].Key == key {
		return i
	}
	return -1
}

// HasStack reports whether the entry holds a stack with key.
func (e *Entry) HasStack(key StackKey) bool {
	return e.StackIndex(key) >= 0
}

// GetStack returns the count of the stack with key, or 0.
func (e *Entry) GetStack(key StackKey) int {
	if i := e.StackIndex(key); i >= 0 {
		return e.Stacks[i].Stack
	}
	return 0
}

// StackKeys returns the stack keys in ascending order.
func (e *Entry) StackKeys() []StackKey {
	keys := make([]StackKey, len(e.Stacks))
	for i, s := range e.Stacks {
		keys[i] = s.Key
	}
	return keys
}

// SetStack sets the count of key. A count of zero or less removes the stack.
func (e *Entry) SetStack(key StackKey, count int) {
	i := sort.Search(len(e.Stacks), func(i int) bool { return e.Stacks[i].Key >= key })
	found := i < len(e.Stacks) && e.Stacks[i].Key == key
	switch {
	case count <= 0 && found:
		e.Stacks = append(e.Stacks[:i], e.Stacks[i+1:]...)
	case count <= 0:
	case found:
		e.Stacks[i].Stack = count
	default:
		e.Stacks = append(e.Stacks, KeyedStack{})
		copy(e.Stacks[i+1:], e.Stacks[i:])
		e.Stacks[i] = KeyedStack{Key: key, Stack: count}
	}
}

// room returns how many more copies the stack at i can take.
func (e *Entry) room(i int) int {
	if e.Limit == Unlimited {
		return int(^uint(0) >> 1)
	}
	return max(e.Limit-e.Stacks[i].Stack, 0)
}

// AddToAnyStack disperses amount over the existing stacks, then creates new
// stacks for the rest. It returns the keys of modified and created stacks.
func (e *Entry) AddToAnyStack(amount int, gen *KeyGen[StackKey]) (modified, added []StackKey) {
	for i := range e.Stacks {
		if amount <= 0 {
			break
		}
		n := min(e.room(i), amount)
		if n == 0 {
			continue
		}
		e.Stacks[i].Stack += n
		amount -= n
		modified = append(modified, e.Stacks[i].Key)
	}
	if amount > 0 {
		added = e.AddToNewStacks(amount, gen)
	}
	return modified, added
}

// AddToNewStacks creates as many new stacks as amount needs under Limit.
func (e *Entry) AddToNewStacks(amount int, gen *KeyGen[StackKey]) []StackKey {
	var added []StackKey
	for amount > 0 {
		n := amount
		if e.Limit != Unlimited {
			n = min(amount, e.Limit)
		}
		key := gen.NextKey()
		e.Stacks = append(e.Stacks, KeyedStack{Key: key, Stack: n})
		added = append(added, key)
		amount -= n
	}
	return added
}

// NewStacksNeeded returns how many stacks an addition of amount would create.
func (e *Entry) NewStacksNeeded(amount int, behavior AddBehavior) int {
	if behavior == AddToAnyStack {
		for i := range e.Stacks {
			amount -= min(e.room(i), amount)
		}
	}
	return NewStacksFor(amount, e.Limit)
}

// NewStacksFor returns how many stacks amount copies occupy under limit.
func NewStacksFor(amount, limit int) int {
	if amount <= 0 {
		return 0
	}
	if limit == Unlimited {
		return 1
	}
	return (amount + limit - 1) / limit
}

// RemoveFromAnyStack takes amount copies starting from the last stack. It
// returns the keys of stacks that were reduced and stacks that were emptied
// and removed.
func (e *Entry) RemoveFromAnyStack(amount int) (modified, removed []StackKey) {
	for i := len(e.Stacks) - 1; i >= 0 && amount > 0; i-- {
		s := &e.Stacks[i]
		if s.Stack > amount {
			s.Stack -= amount
			modified = append(modified, s.Key)
			amount = 0
			break
		}
		amount -= s.Stack
		removed = append(removed, s.Key)
		e.Stacks = e.Stacks[:i]
	}
	return modified, removed
}

// MergeStacks moves as many copies as fit from stack from into stack to. A
// drained source stack is removed. It returns the copies left in from. Both
// keys must exist.
func (e *Entry) MergeStacks(from, to StackKey) int {
	fi, ti := e.StackIndex(from), e.StackIndex(to)
	if fi < 0 || ti < 0 || fi == ti {
		return e.GetStack(from)
	}
	n := min(e.room(ti), e.Stacks[fi].Stack)
	e.Stacks[ti].Stack += n
	rest := e.Stacks[fi].Stack - n
	e.SetStack(from, rest)
	return rest
}

// Split moves amount copies from key into a new stack and returns its key.
// The caller guarantees 0 < amount < GetStack(key).
func (e *Entry) Split(key StackKey, amount int, gen *KeyGen[StackKey]) StackKey {
	i := e.StackIndex(key)
	e.Stacks[i].Stack -= amount
	next := gen.NextKey()
	e.Stacks = append(e.Stacks, KeyedStack{Key: next, Stack: amount})
	return next
}

// IsValid reports whether the entry satisfies its invariants.
func (e *Entry) IsValid() bool {
	if e.Item == nil || len(e.Stacks) == 0 {
		return false
	}
	for i, s := range e.Stacks {
		if s.Stack <= 0 || !s.Key.IsValid() {
			return false
		}
		if e.Limit != Unlimited && s.Stack > e.Limit {
			return false
		}
		if i > 0 && e.Stacks[i-1].Key >= s.Key {
			return false
		}
	}
	return true
}

// Clone returns a copy whose stack slice is not shared with e.
func (e Entry) Clone() Entry {
	e.Stacks = append([]KeyedStack(nil), e.Stacks...)
	return e
}

// View returns the entry's item and total count.
func (e *Entry) View() StackView {
	return StackView{Item: e.Item, Copies: e.StackSum()}
}

// Equivalency selects which fields Matches compares.
type Equivalency uint8

// Equivalency flags.
const (
	MatchItemData Equivalency = 1 << iota
	MatchStackSum
	MatchLimit

	MatchAll = MatchItemData | MatchStackSum | MatchLimit
)

// Matches compares the selected fields of two entries. Item data is compared
// with cmp, defaulting to DefaultComparator.
func (e *Entry) Matches(o *Entry, flags Equivalency, cmp Comparator) bool {
	if cmp == nil {
		cmp = DefaultComparator
	}
	if flags&MatchItemData != 0 && e.Item != o.Item && !cmp(e.Item, o.Item) {
		return false
	}
	if flags&MatchStackSum != 0 && e.StackSum() != o.StackSum() {
		return false
	}
	if flags&MatchLimit != 0 && e.Limit != o.Limit {
		return false
	}
	return true
}
