package script

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/mesh-intelligence/stockpile/internal/extension"
	"github.com/mesh-intelligence/stockpile/internal/grid"
	"github.com/mesh-intelligence/stockpile/internal/storage"
	"github.com/mesh-intelligence/stockpile/pkg/types"
)

// Runner errors.
var (
	ErrNoGrid     = errors.New("script uses grid ops but no grid is attached")
	ErrNoMetadata = errors.New("script uses tag ops but no metadata extension is attached")
	ErrNoEntry    = errors.New("op has no entry and no previous op touched one")
	ErrUnknownTag = errors.New("unknown meta tag")
)

// Result is the outcome of one op.
type Result struct {
	Index   int          `json:"index"`
	Op      string       `json:"op"`
	Success bool         `json:"success"`
	Event   *types.Event `json:"event,omitempty"`
	Detail  string       `json:"detail,omitempty"`
	Error   string       `json:"error,omitempty"`
}

// String renders the result as one line.
func (r Result) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "#%d %s", r.Index, r.Op)
	if r.Success {
		b.WriteString(" ok")
	} else {
		b.WriteString(" failed")
	}
	if r.Event != nil {
		fmt.Fprintf(&b, " type=%s entry=%s amount=%d", r.Event.Type, r.Event.EntryTouched, r.Event.Amount)
		if len(r.Event.StackKeys) > 0 {
			fmt.Fprintf(&b, " stacks=%v", r.Event.StackKeys)
		}
	}
	if r.Detail != "" {
		b.WriteString(" " + r.Detail)
	}
	if r.Error != "" {
		b.WriteString(": " + r.Error)
	}
	return b.String()
}

// Runner executes scripts against one storage. The grid and metadata
// extensions are optional; ops that need them fail when they are missing.
type Runner struct {
	store *storage.Storage
	grid  *grid.Grid
	meta  *extension.Metadata
	log   *slog.Logger
	items map[string]*types.BasicItem
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithGrid enables move and rotate ops.
func WithGrid(g *grid.Grid) RunnerOption {
	return func(r *Runner) { r.grid = g }
}

// WithMetadata enables tag ops.
func WithMetadata(m *extension.Metadata) RunnerOption {
	return func(r *Runner) { r.meta = m }
}

// WithLogger sets the logger for op outcomes.
func WithLogger(log *slog.Logger) RunnerOption {
	return func(r *Runner) {
		if log != nil {
			r.log = log
		}
	}
}

// NewRunner creates a Runner for store.
func NewRunner(store *storage.Storage, opts ...RunnerOption) *Runner {
	r := &Runner{
		store: store,
		log:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		items: make(map[string]*types.BasicItem),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes every op in order and returns one result per op. A failed op
// does not stop the script. Run returns early only when ctx is done.
func (r *Runner) Run(ctx context.Context, s *Script) ([]Result, error) {
	results := make([]Result, 0, len(s.Ops))
	last := types.EntryKey(types.InvalidKey)
	for i, op := range s.Ops {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res := r.exec(s, op, last)
		res.Index = i + 1
		res.Op = op.Op
		if res.Success && res.Event != nil && res.Event.EntryTouched.IsValid() {
			last = res.Event.EntryTouched
		}
		if res.Success {
			r.log.Debug("script op", "index", res.Index, "op", op.Op)
		} else {
			r.log.Info("script op failed", "index", res.Index, "op", op.Op, "error", res.Error)
		}
		results = append(results, res)
	}
	return results, nil
}

// item returns the catalogue instance for name. Mutable items get a fresh
// instance per call.
func (r *Runner) item(s *Script, name string) *types.BasicItem {
	def := s.Items[name]
	build := func() *types.BasicItem {
		return &types.BasicItem{Name: name, Limit: def.StackLimit, IsMutable: def.Mutable, Cells: def.Cells, Capacity: def.Capacity}
	}
	if def.Mutable {
		return build()
	}
	it, ok := r.items[name]
	if !ok {
		it = build()
		r.items[name] = it
	}
	return it
}

func (r *Runner) reason(name string) (types.Tag, error) {
	if name == "" {
		return types.TagRemovalDeletion, nil
	}
	tag, ok := r.store.Tags().ResolveReason(name)
	if !ok {
		return "", fmt.Errorf("%w: %q", types.ErrUnknownReason, name)
	}
	return tag, nil
}

func entryOf(op Op, last types.EntryKey) (types.EntryKey, error) {
	if op.Entry != nil {
		return *op.Entry, nil
	}
	if !last.IsValid() {
		return types.InvalidKey, ErrNoEntry
	}
	return last, nil
}

func amountOf(op Op) int {
	if op.Amount == nil {
		return types.Unlimited
	}
	return *op.Amount
}

func fromEvent(ev types.Event, err error) Result {
	res := Result{Success: err == nil, Event: &ev}
	if err != nil {
		res.Error = err.Error()
	}
	return res
}

func failed(err error) Result {
	return Result{Error: err.Error()}
}

func (r *Runner) exec(s *Script, op Op, last types.EntryKey) Result {
	switch op.Op {
	case OpAdd:
		behavior := types.AddToAnyStack
		if op.NewStacks {
			behavior = types.OnlyNewStacks
		}
		return fromEvent(r.store.AddStack(r.item(s, op.Item), op.Count, behavior))

	case OpClear:
		reason, err := r.reason(op.Reason)
		if err != nil {
			return failed(err)
		}
		n, err := r.store.Clear(reason)
		if err != nil {
			return failed(err)
		}
		return Result{Success: true, Detail: fmt.Sprintf("removed=%d", n)}
	}

	entry, err := entryOf(op, last)
	if err != nil {
		return failed(err)
	}
	key := types.InventoryKey{EntryKey: entry}
	if op.Stack != nil {
		key.StackKey = *op.Stack
	}

	switch op.Op {
	case OpRemoveEntry, OpRemoveStack, OpTakeEntry, OpTakeStack:
		reason, err := r.reason(op.Reason)
		if err != nil {
			return failed(err)
		}
		return r.remove(op.Op, key, reason, amountOf(op))

	case OpSplit:
		return fromEvent(r.store.SplitStack(key, amountOf(op)))

	case OpMerge:
		return fromEvent(r.store.MergeStacks(entry, *op.From, *op.To))

	case OpMove, OpRotate:
		if r.grid == nil {
			return failed(ErrNoGrid)
		}
		var ok bool
		if op.Op == OpMove {
			ok = r.grid.Move(r.store, key, *op.At)
		} else {
			ok = r.grid.Rotate(r.store, key)
		}
		res := Result{Success: ok}
		if p, found := r.grid.GetPlacement(r.store.ID(), key); found {
			res.Detail = fmt.Sprintf("origin=%s rotation=%s", p.Origin, p.Rotation)
		}
		if !ok {
			res.Error = "placement refused"
		}
		return res

	case OpTag:
		if r.meta == nil {
			return failed(ErrNoMetadata)
		}
		tag, ok := extension.ResolveMetaTag(op.Tag)
		if !ok {
			return failed(fmt.Errorf("%w: %q", ErrUnknownTag, op.Tag))
		}
		if op.Clear {
			ok = r.meta.Clear(r.store, entry, tag)
		} else {
			ok = r.meta.Mark(r.store, entry, tag)
		}
		res := Result{Success: ok, Detail: fmt.Sprintf("entry=%s tag=%s", entry, tag)}
		if !ok {
			res.Error = "tag unchanged"
		}
		return res
	}
	return failed(fmt.Errorf("%w: unknown op %q", ErrInvalidScript, op.Op))
}

func (r *Runner) remove(name string, key types.InventoryKey, reason types.Tag, amount int) Result {
	switch name {
	case OpRemoveEntry:
		return fromEvent(r.store.RemoveEntry(key.EntryKey, reason, amount))
	case OpRemoveStack:
		return fromEvent(r.store.RemoveStack(key, reason, amount))
	}

	var (
		taken types.ItemStack
		ev    types.Event
		err   error
	)
	if name == OpTakeEntry {
		taken, ev, err = r.store.TakeEntry(key.EntryKey, reason, amount)
	} else {
		taken, ev, err = r.store.TakeStack(key, reason, amount)
	}
	res := fromEvent(ev, err)
	if err == nil {
		if b, ok := taken.Item.(*types.BasicItem); ok {
			res.Detail = fmt.Sprintf("took=%d %s", taken.Copies, b.Name)
		} else {
			res.Detail = fmt.Sprintf("took=%d", taken.Copies)
		}
	}
	return res
}
