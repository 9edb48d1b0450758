package tree

import (
	"strconv"

	"github.com/starsquare/classpy/reader"
)

// List is a run of count sibling components built by the same constructor.
type List[T Component] struct {
	Node
	newElem func() T
	Items   []T
	count   int
}

// NewList returns an unread list of count elements.
func NewList[T Component](name string, count int, newElem func() T) *List[T] {
	l := &List[T]{count: count, newElem: newElem}
	l.name = name
	return l
}

// Count returns the number of elements the list was asked to read.
func (l *List[T]) Count() int {
	return l.count
}

// ReadContent reads exactly Count elements in order. Elements without a name
// are named by their index.
func (l *List[T]) ReadContent(r *reader.Reader) error {
	l.Items = make([]T, 0, min(l.count, r.Remaining()))
	for i := 0; i < l.count; i++ {
		e := l.newElem()
		if e.Name() == "" {
			e.node().name = "[" + strconv.Itoa(i) + "]"
		}
		if _, err := Add(l, r, e); err != nil {
			return err
		}
		l.Items = append(l.Items, e)
	}
	return nil
}

// ReadList reads count elements from r as a standalone list.
func ReadList[T Component](r *reader.Reader, count int, newElem func() T) (*List[T], error) {
	l := NewList("", count, newElem)
	err := Read(l, r)
	return l, err
}

// AddEach reads count elements and attaches each one directly to parent,
// without an intermediate list node.
func AddEach[T Component](parent Component, r *reader.Reader, count int, newElem func() T) ([]T, error) {
	items := make([]T, 0, min(count, r.Remaining()))
	for i := 0; i < count; i++ {
		e := newElem()
		if e.Name() == "" {
			e.node().name = "[" + strconv.Itoa(i) + "]"
		}
		if _, err := Add(parent, r, e); err != nil {
			return items, err
		}
		items = append(items, e)
	}
	return items, nil
}

// AddList reads a list of count elements and attaches it to parent.
func AddList[T Component](parent Component, r *reader.Reader, name string, count int, newElem func() T) (*List[T], error) {
	return Add(parent, r, NewList(name, count, newElem))
}
