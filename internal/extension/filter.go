package extension

import "github.com/mesh-intelligence/stockpile/pkg/types"

// ContentFilter admits only stacks accepted by Filter. A nil Filter casts no
// vote.
type ContentFilter struct {
	types.BaseExtension

	Filter func(types.StackView) bool
}

// NewContentFilter returns a filter extension.
func NewContentFilter(filter func(types.StackView) bool) *ContentFilter {
	return &ContentFilter{Filter: filter}
}

func (f *ContentFilter) AllowsAddition(_ types.Container, view types.StackView, _ types.AddBehavior) types.Response {
	if f.Filter == nil {
		return types.NoExplicitResponse
	}
	if f.Filter(view) {
		return types.Allowed
	}
	return types.Disallowed
}

// ByName returns a filter accepting BasicItems with one of the given names.
func ByName(names ...string) func(types.StackView) bool {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return func(v types.StackView) bool {
		b, ok := v.Item.(*types.BasicItem)
		if !ok {
			return false
		}
		_, ok = set[b.Name]
		return ok
	}
}
