package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/stockpile/internal/grid"
	"github.com/mesh-intelligence/stockpile/pkg/spatial"
	"github.com/mesh-intelligence/stockpile/pkg/types"
)

func newShowCmd() *cobra.Command {
	var withGrid bool
	cmd := &cobra.Command{
		Use:   "show <name>",
		Short: "Show the entries of a snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(cmd, args[0], withGrid)
		},
	}
	cmd.Flags().BoolVar(&withGrid, "grid", false, "render the grid layout")
	return cmd
}

type entryOutput struct {
	Key    types.EntryKey     `json:"key"`
	Item   string             `json:"item"`
	Copies int                `json:"copies"`
	Limit  int                `json:"limit"`
	Stacks []types.KeyedStack `json:"stacks"`
	Tags   []types.Tag        `json:"tags,omitempty"`
}

type showOutput struct {
	Name       string            `json:"name"`
	Container  types.ContainerID `json:"container_id"`
	Entries    []entryOutput     `json:"entries"`
	Placements []grid.Placement  `json:"placements,omitempty"`
	Load       *loadOutput       `json:"load,omitempty"`
}

type loadOutput struct {
	Weight    int `json:"weight"`
	MaxWeight int `json:"max_weight,omitempty"`
	Volume    int `json:"volume"`
	MaxVolume int `json:"max_volume,omitempty"`
}

func runShow(cmd *cobra.Command, name string, withGrid bool) error {
	e, err := openEngine()
	if err != nil {
		return err
	}
	defer e.close()

	p, found, err := e.loadPile(name, "", nil)
	if err != nil {
		return sysError("load %q: %w", name, err)
	}
	if !found {
		return userError("%w: %q", types.ErrSnapshotNotFound, name)
	}
	if withGrid && p.grid == nil {
		return userError("%w: set grid.width and grid.height in config.yaml", errNoGrid)
	}

	id := p.storage.ID()
	out := showOutput{Name: name, Container: id}
	for _, key := range p.storage.GetAllKeys() {
		entry, _ := p.storage.GetEntry(key)
		out.Entries = append(out.Entries, entryOutput{
			Key:    key,
			Item:   itemName(entry.Item),
			Copies: entry.StackSum(),
			Limit:  entry.Limit,
			Stacks: entry.Stacks,
			Tags:   p.meta.Tags(id, key),
		})
	}
	if withGrid {
		out.Placements = p.grid.Placements(id)
	}
	if p.capacity != nil {
		st := p.capacity.State(id)
		out.Load = &loadOutput{
			Weight:    st.Weight,
			MaxWeight: p.capacity.MaxWeight,
			Volume:    st.Volume,
			MaxVolume: p.capacity.MaxVolume,
		}
	}

	w := cmd.OutOrStdout()
	if flags.jsonMode {
		return writeJSON(w, out)
	}
	fmt.Fprintf(w, "%s (container %s): %d entries, %d copies\n",
		name, id, p.storage.EntryCount(), p.storage.TotalCopies())
	for _, eo := range out.Entries {
		stacks := make([]string, len(eo.Stacks))
		for i, st := range eo.Stacks {
			stacks[i] = fmt.Sprintf("%s=%d", st.Key, st.Stack)
		}
		line := fmt.Sprintf("  %s %s x%d [%s]", eo.Key, eo.Item, eo.Copies, strings.Join(stacks, " "))
		if len(eo.Tags) > 0 {
			line += fmt.Sprintf(" tags=%v", eo.Tags)
		}
		fmt.Fprintln(w, line)
	}
	if out.Load != nil {
		fmt.Fprintf(w, "  load: weight %d/%d volume %d/%d\n",
			out.Load.Weight, out.Load.MaxWeight, out.Load.Volume, out.Load.MaxVolume)
	}
	if withGrid {
		renderGrid(w, p.grid, id, glyphsFor(w))
	}
	return nil
}

func itemName(item types.Item) string {
	if b, ok := item.(*types.BasicItem); ok {
		return b.Name
	}
	return fmt.Sprintf("%T", item)
}

// glyphs are the characters used to draw a grid.
type glyphs struct {
	empty, horiz, vert      string
	topLeft, topRight       string
	bottomLeft, bottomRight string
}

var (
	asciiGlyphs = glyphs{empty: ".", horiz: "-", vert: "|",
		topLeft: "+", topRight: "+", bottomLeft: "+", bottomRight: "+"}
	boxGlyphs = glyphs{empty: "·", horiz: "─", vert: "│",
		topLeft: "┌", topRight: "┐", bottomLeft: "└", bottomRight: "┘"}
)

// glyphsFor uses box drawing only when w is a terminal.
func glyphsFor(w io.Writer) glyphs {
	f, ok := w.(*os.File)
	if ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		return boxGlyphs
	}
	return asciiGlyphs
}

// entryLetter labels entries A..Z then a..z, cycling after that.
func entryLetter(i int) string {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
	return string(letters[i%len(letters)])
}

// renderGrid draws the layout of container id, one letter per entry, with a
// legend mapping letters to entry keys.
func renderGrid(w io.Writer, g *grid.Grid, id types.ContainerID, gl glyphs) {
	width, height, ok := g.Size(id)
	if !ok {
		return
	}
	labels := make(map[types.EntryKey]string)
	var order []types.EntryKey
	label := func(key types.EntryKey) string {
		if l, ok := labels[key]; ok {
			return l
		}
		l := entryLetter(len(order))
		labels[key] = l
		order = append(order, key)
		return l
	}
	for _, p := range g.Placements(id) {
		label(p.Key.EntryKey)
	}

	border := strings.Repeat(gl.horiz, width)
	fmt.Fprintln(w, gl.topLeft+border+gl.topRight)
	for y := 0; y < height; y++ {
		var row strings.Builder
		row.WriteString(gl.vert)
		for x := 0; x < width; x++ {
			if key, ok := g.ViewAt(id, spatial.Point{X: x, Y: y}); ok {
				row.WriteString(label(key.EntryKey))
			} else {
				row.WriteString(gl.empty)
			}
		}
		row.WriteString(gl.vert)
		fmt.Fprintln(w, row.String())
	}
	fmt.Fprintln(w, gl.bottomLeft+border+gl.bottomRight)
	for _, key := range order {
		fmt.Fprintf(w, "  %s = %s\n", labels[key], key)
	}
}

var errNoGrid = errors.New("grid is disabled")
