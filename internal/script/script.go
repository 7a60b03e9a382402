// Package script parses and runs YAML operation scripts against a storage.
// A script declares an item catalogue and a list of operations. Scripts are
// checked against an embedded JSON Schema before anything runs.
package script

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/stockpile/pkg/spatial"
	"github.com/mesh-intelligence/stockpile/pkg/types"
)

//go:embed schema.json
var schemaJSON string

const schemaURL = "script.schema.json"

// Script errors.
var (
	ErrInvalidScript = errors.New("invalid script")
	ErrUnknownItem   = errors.New("unknown catalogue item")
)

// Op names.
const (
	OpAdd         = "add"
	OpRemoveEntry = "remove_entry"
	OpRemoveStack = "remove_stack"
	OpTakeEntry   = "take_entry"
	OpTakeStack   = "take_stack"
	OpSplit       = "split"
	OpMerge       = "merge"
	OpMove        = "move"
	OpRotate      = "rotate"
	OpClear       = "clear"
	OpTag         = "tag"
)

// ItemDef describes one catalogue item.
type ItemDef struct {
	StackLimit int                 `yaml:"stack_limit,omitempty"`
	Mutable    bool                `yaml:"mutable,omitempty"`
	Cells      []spatial.Point     `yaml:"cells,omitempty"`
	Capacity   *types.ItemCapacity `yaml:"capacity,omitempty"`
}

// Op is one scripted operation. Which fields apply depends on Op. Entry
// defaults to the entry touched by the previous successful operation.
type Op struct {
	Op        string          `yaml:"op"`
	Item      string          `yaml:"item,omitempty"`
	Count     int             `yaml:"count,omitempty"`
	NewStacks bool            `yaml:"new_stacks,omitempty"`
	Entry     *types.EntryKey `yaml:"entry,omitempty"`
	Stack     *types.StackKey `yaml:"stack,omitempty"`
	From      *types.StackKey `yaml:"from,omitempty"`
	To        *types.StackKey `yaml:"to,omitempty"`
	At        *spatial.Point  `yaml:"at,omitempty"`
	Amount    *int            `yaml:"amount,omitempty"`
	Reason    string          `yaml:"reason,omitempty"`
	Tag       string          `yaml:"tag,omitempty"`
	Clear     bool            `yaml:"clear,omitempty"`
}

// Script is a parsed operation script.
type Script struct {
	Container string             `yaml:"container,omitempty"`
	Items     map[string]ItemDef `yaml:"items,omitempty"`
	Ops       []Op               `yaml:"ops"`
}

var (
	schemaOnce sync.Once
	compiled   *jsonschema.Schema
	compileErr error
)

func schema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		if err := c.AddResource(schemaURL, strings.NewReader(schemaJSON)); err != nil {
			compileErr = err
			return
		}
		compiled, compileErr = c.Compile(schemaURL)
	})
	return compiled, compileErr
}

// Parse decodes a YAML script, validates it against the schema, and checks
// that every op names a catalogue item that exists.
func Parse(data []byte) (*Script, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScript, err)
	}
	if err := validate(doc); err != nil {
		return nil, err
	}

	var s Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScript, err)
	}
	for i, op := range s.Ops {
		if op.Item == "" {
			continue
		}
		if _, ok := s.Items[op.Item]; !ok {
			return nil, fmt.Errorf("%w: op %d names %q", ErrUnknownItem, i+1, op.Item)
		}
	}
	return &s, nil
}

// validate round-trips the YAML document through JSON so the validator sees
// json.Number values and string-keyed objects.
func validate(doc any) error {
	if doc == nil {
		return fmt.Errorf("%w: empty document", ErrInvalidScript)
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidScript, err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidScript, err)
	}

	sch, err := schema()
	if err != nil {
		return fmt.Errorf("compiling script schema: %w", err)
	}
	if err := sch.Validate(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidScript, err)
	}
	return nil
}

// ItemNames returns the catalogue names in ascending order.
func (s *Script) ItemNames() []string {
	names := make([]string, 0, len(s.Items))
	for name := range s.Items {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
