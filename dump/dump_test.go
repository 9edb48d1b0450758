package dump_test

import (
	"encoding/binary"
	"io"
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/starsquare/classpy/dump"
	"github.com/starsquare/classpy/reader"
	"github.com/starsquare/classpy/tree"
)

// record is a u1 tag, a u2 length and that many bytes, followed by an
// out-of-band re-read of the tag.
func record() *tree.Group {
	return tree.NewGroup("record", func(g *tree.Group, r *reader.Reader) error {
		if _, err := tree.Add(g, r, tree.U1("tag")); err != nil {
			return err
		}
		n, err := tree.Add(g, r, tree.U2("len"))
		if err != nil {
			return err
		}
		if _, err := tree.Add(g, r, tree.Bytes("data", n.Int())); err != nil {
			return err
		}
		_, err = tree.AddAt(g, r, 0, tree.U1("tag_again").Hex())
		return err
	})
}

func parse(t *testing.T, data []byte) tree.Component {
	t.Helper()
	root, _ := tree.Parse(record(), data, binary.BigEndian)
	return root
}

func TestString(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{
			name: "complete",
			data: []byte{0x01, 0x00, 0x02, 0xaa, 0xbb},
			want: `[0x0+5] record
  [0x0+1] tag: 1
  [0x1+2] len: 2
  [0x3+2] data: aabb
  [0x0+1]@ tag_again: 0x1
`,
		},
		{
			name: "truncated",
			data: []byte{0x01, 0x00, 0x05, 0xaa},
			want: `[0x0+3] record (incomplete)
  [0x0+1] tag: 1
  [0x1+2] len: 5
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := dump.String(parse(t, tt.data))
			if got != tt.want {
				t.Errorf("dump mismatch:\ngot:\n%s\nwant:\n%s", got, tt.want)
			}
		})
	}
}

func TestStringNil(t *testing.T) {
	if got := dump.String(nil); got != "" {
		t.Errorf("String(nil) = %q, want empty", got)
	}
}

func TestWriteOptions(t *testing.T) {
	outer := tree.NewGroup("outer", func(g *tree.Group, r *reader.Reader) error {
		_, err := tree.Add(g, r, record())
		return err
	})
	root, err := tree.Parse(outer, []byte{0x01, 0x00, 0x00}, binary.BigEndian)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	var b strings.Builder
	if err := dump.Write(&b, root, dump.Options{Indent: "\t", MaxDepth: 1}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	want := "[0x0+3] outer\n\t[0x0+3] record\n"
	if b.String() != want {
		t.Errorf("got %q, want %q", b.String(), want)
	}

	b.Reset()
	if err := dump.Write(&b, root, dump.Options{MaxDepth: -1}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if n := strings.Count(b.String(), "\n"); n != 6 {
		t.Errorf("negative MaxDepth: got %d lines, want 6", n)
	}
	if !strings.Contains(b.String(), "\n    [0x3+0] data\n") {
		t.Errorf("data not indented two levels:\n%s", b.String())
	}
}

func TestStyles(t *testing.T) {
	root := parse(t, []byte{0x01, 0x00, 0x02, 0xaa, 0xbb})

	t.Run("ascii profile", func(t *testing.T) {
		r := lipgloss.NewRenderer(io.Discard)
		r.SetColorProfile(termenv.Ascii)
		styles := dump.DefaultStyles(r)

		var b strings.Builder
		if err := dump.Write(&b, root, dump.Options{Styles: &styles}); err != nil {
			t.Fatalf("Write: %v", err)
		}
		if b.String() != dump.String(root) {
			t.Errorf("ascii output differs from plain output:\n%s", b.String())
		}
	})

	t.Run("ansi profile", func(t *testing.T) {
		r := lipgloss.NewRenderer(io.Discard)
		r.SetColorProfile(termenv.ANSI256)
		styles := dump.DefaultStyles(r)

		var b strings.Builder
		if err := dump.Write(&b, root, dump.Options{Styles: &styles}); err != nil {
			t.Fatalf("Write: %v", err)
		}
		if !strings.Contains(b.String(), "\x1b[") {
			t.Errorf("expected escape sequences, got %q", b.String())
		}
		if !strings.Contains(b.String(), "tag_again") {
			t.Errorf("names missing from styled output: %q", b.String())
		}
	})
}

func TestLine(t *testing.T) {
	root := parse(t, []byte{0x07, 0x00, 0x00})
	tests := []struct {
		path []string
		want string
	}{
		{nil, "[0x0+3] record"},
		{[]string{"tag"}, "[0x0+1] tag: 7"},
		{[]string{"data"}, "[0x3+0] data"},
		{[]string{"tag_again"}, "[0x0+1]@ tag_again: 0x7"},
	}
	for _, tt := range tests {
		t.Run(strings.Join(tt.path, "."), func(t *testing.T) {
			c := tree.FindPath(root, tt.path...)
			if c == nil {
				t.Fatalf("no component at %v", tt.path)
			}
			if got := dump.Line(c); got != tt.want {
				t.Errorf("Line = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDiff(t *testing.T) {
	a := parse(t, []byte{0x01, 0x00, 0x02, 0xaa, 0xbb})
	b := parse(t, []byte{0x01, 0x00, 0x02, 0xaa, 0xcc})

	same, err := dump.Diff("a", a, "a", a)
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	if same != "" {
		t.Errorf("identical trees: got diff %q", same)
	}

	diff, err := dump.Diff("a.bin", a, "b.bin", b)
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	for _, want := range []string{
		"--- a.bin",
		"+++ b.bin",
		"-  [0x3+2] data: aabb",
		"+  [0x3+2] data: aacc",
	} {
		if !strings.Contains(diff, want) {
			t.Errorf("diff missing %q:\n%s", want, diff)
		}
	}
	if strings.Contains(diff, "-  [0x1+2] len: 2") {
		t.Errorf("unchanged line reported as removed:\n%s", diff)
	}
}
