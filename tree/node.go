package tree

import (
	"fmt"

	"github.com/starsquare/classpy/errors"
	"github.com/starsquare/classpy/reader"
)

// Component is a node of the decoded tree.
//
// The unexported node method keeps the set of implementations to types that
// embed Node.
type Component interface {
	node() *Node

	Name() string
	Desc() string
	Offset() int
	Length() int
	End() int
	Children() []Component
	OutOfBand() bool

	// ReadContent consumes this component's encoding, including its
	// children, and leaves r at the first byte after it.
	ReadContent(r *reader.Reader) error
}

// Node carries the bookkeeping shared by all components.
type Node struct {
	name      string
	desc      string
	children  []Component
	offset    int
	length    int
	complete  bool
	outOfBand bool
}

func (n *Node) node() *Node { return n }

// Name returns the component's short name (field name or list index).
func (n *Node) Name() string { return n.name }

// SetName replaces the component's name.
func (n *Node) SetName(name string) { n.name = name }

// Desc returns the human-readable description.
func (n *Node) Desc() string { return n.desc }

// SetDesc replaces the description.
func (n *Node) SetDesc(desc string) { n.desc = desc }

// Describe sets the description from a format string.
func (n *Node) Describe(format string, args ...any) {
	n.desc = fmt.Sprintf(format, args...)
}

// Offset returns the first byte of the component.
func (n *Node) Offset() int { return n.offset }

// Length returns the number of bytes the component covers. For an incomplete
// component it is the number of bytes consumed before the failure.
func (n *Node) Length() int { return n.length }

// End returns Offset()+Length().
func (n *Node) End() int { return n.offset + n.length }

// Children returns the direct children in read order.
func (n *Node) Children() []Component { return n.children }

// OutOfBand reports whether the component was read at a stored offset
// rather than at its parent's sequential position.
func (n *Node) OutOfBand() bool { return n.outOfBand }

// Complete reports whether c finished ReadContent without error.
func Complete(c Component) bool {
	return c.node().complete
}

// Read runs c.ReadContent at the reader's current position and records the
// resulting byte range.
func Read(c Component, r *reader.Reader) error {
	n := c.node()
	n.offset = r.Position()
	n.length = 0
	n.complete = false
	n.children = nil

	err := c.ReadContent(r)
	n.length = r.Position() - n.offset
	if n.length < 0 {
		n.length = 0
	}
	if err != nil {
		if e, ok := errors.As(err); ok {
			e.PrependPath(n.name)
		}
		return err
	}
	n.complete = true
	return nil
}

// Add reads c at the current position and appends it to parent's children.
// A child that fails is still attached when it holds completed children of
// its own, so the partial tree keeps everything read so far.
func Add[T Component](parent Component, r *reader.Reader, c T) (T, error) {
	err := Read(c, r)
	if err == nil || len(c.node().children) > 0 {
		p := parent.node()
		p.children = append(p.children, c)
	}
	return c, err
}

// AddAt reads c at an absolute offset, attaches it to parent, and restores
// the reader's position.
func AddAt[T Component](parent Component, r *reader.Reader, offset int, c T) (T, error) {
	c.node().outOfBand = true
	read := false
	err := r.At(offset, func(r *reader.Reader) error {
		read = true
		_, err := Add(parent, r, c)
		return err
	})
	if err != nil && !read {
		if e, ok := errors.As(err); ok {
			e.PrependPath(c.Name())
		}
	}
	return c, err
}
