package dump

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/starsquare/classpy/tree"
)

// Styles colors the parts of a dump line. Build one with DefaultStyles; the
// zero value renders plain text.
type Styles struct {
	Range     lipgloss.Style
	Name      lipgloss.Style
	Desc      lipgloss.Style
	Marker    lipgloss.Style
	populated bool
}

// DefaultStyles returns the color scheme used on terminals. The renderer
// decides which color profile the output uses.
func DefaultStyles(r *lipgloss.Renderer) Styles {
	return Styles{
		Range:     r.NewStyle().Foreground(lipgloss.Color("240")),
		Name:      r.NewStyle().Foreground(lipgloss.Color("39")).Bold(true),
		Desc:      r.NewStyle().Foreground(lipgloss.Color("252")),
		Marker:    r.NewStyle().Foreground(lipgloss.Color("214")),
		populated: true,
	}
}

func (s Styles) render(st lipgloss.Style, text string) string {
	if !s.populated || text == "" {
		return text
	}
	return st.Render(text)
}

// Options controls rendering.
type Options struct {
	// Styles colors the output when set.
	Styles *Styles
	// Indent is the per-level indentation; two spaces when empty.
	Indent string
	// MaxDepth stops descending below this depth when positive.
	MaxDepth int
}

// Line formats a single component without indentation:
//
//	[0x0a+3] name: description
//
// Out-of-band components are marked with "@" after the range and components
// that did not finish reading end with "(incomplete)".
func Line(c tree.Component) string {
	return line(c, Styles{})
}

func line(c tree.Component, s Styles) string {
	var b strings.Builder
	b.WriteString(s.render(s.Range, fmt.Sprintf("[%#x+%d]", c.Offset(), c.Length())))
	if c.OutOfBand() {
		b.WriteString(s.render(s.Marker, "@"))
	}
	if name := c.Name(); name != "" {
		b.WriteByte(' ')
		b.WriteString(s.render(s.Name, name))
	}
	if desc := c.Desc(); desc != "" {
		b.WriteString(": ")
		b.WriteString(s.render(s.Desc, desc))
	}
	if !tree.Complete(c) {
		b.WriteByte(' ')
		b.WriteString(s.render(s.Marker, "(incomplete)"))
	}
	return b.String()
}

// Write renders the tree rooted at root, one component per line, indented by
// depth.
func Write(w io.Writer, root tree.Component, opts Options) error {
	if root == nil {
		return nil
	}
	indent := opts.Indent
	if indent == "" {
		indent = "  "
	}
	var styles Styles
	if opts.Styles != nil {
		styles = *opts.Styles
	}

	bw := bufio.NewWriter(w)
	var err error
	tree.Walk(root, func(c tree.Component, depth int) bool {
		if err != nil {
			return false
		}
		_, err = fmt.Fprintf(bw, "%s%s\n", strings.Repeat(indent, depth), line(c, styles))
		return opts.MaxDepth <= 0 || depth < opts.MaxDepth
	})
	if err != nil {
		return err
	}
	return bw.Flush()
}

// String renders the tree with default options.
func String(root tree.Component) string {
	var b strings.Builder
	_ = Write(&b, root, Options{})
	return b.String()
}

// Diff returns a unified diff between the dumps of two trees. It is empty
// when the trees render identically.
func Diff(aName string, a tree.Component, bName string, b tree.Component) (string, error) {
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(String(a)),
		B:        difflib.SplitLines(String(b)),
		FromFile: aName,
		ToFile:   bName,
		Context:  3,
	})
}
