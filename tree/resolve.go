package tree

import (
	"encoding/binary"

	"go.uber.org/multierr"

	"github.com/starsquare/classpy/errors"
	"github.com/starsquare/classpy/reader"
)

// PostReader is implemented by components that annotate themselves from
// file-level tables once the whole tree exists. F is the format's root type.
type PostReader[F any] interface {
	PostRead(file F) error
}

// Indexer is implemented by roots that build lookup tables after the linear
// read and before the resolution pass.
type Indexer interface {
	BuildIndex() error
}

// Resolve calls PostRead on every node below and including c, children
// before parents. A failing node keeps its raw description; the failures are
// combined and returned after the whole tree has been visited.
func Resolve[F any](c Component, file F) error {
	var errs error
	resolve(c, file, nil, &errs)
	return errs
}

func resolve[F any](c Component, file F, path []string, errs *error) {
	path = append(path, c.Name())
	for _, child := range c.Children() {
		resolve(child, file, path, errs)
	}
	p, ok := c.(PostReader[F])
	if !ok {
		return
	}
	if err := p.PostRead(file); err != nil {
		if e, ok := errors.As(err); ok && len(e.Path) == 0 {
			e.Path = append([]string(nil), path...)
		}
		*errs = multierr.Append(*errs, err)
	}
}

// Parse runs a full decode session: read root from a fresh reader over
// data, build the root's index tables, then run the resolution pass.
//
// When the read fails, root is returned as it stands with the read error and
// no resolution is attempted. Resolution failures are returned alongside the
// fully built tree.
func Parse[F Component](root F, data []byte, order binary.ByteOrder) (F, error) {
	r := reader.New(data, order)
	if err := Read(root, r); err != nil {
		return root, err
	}
	if ix, ok := any(root).(Indexer); ok {
		if err := ix.BuildIndex(); err != nil {
			return root, err
		}
	}
	return root, Resolve(root, root)
}
