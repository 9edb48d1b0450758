// Package tree defines the component tree produced by every container decoder.
//
// A Component is one node of the decoded structure. It owns a byte range
// (offset and length), a short name, a human-readable description, and an
// ordered list of children. Concrete components embed Node for the
// bookkeeping and implement ReadContent to consume their own encoding.
//
// # Reading
//
// Decoding is a single depth-first pass driven by a reader.Reader. A parent
// attaches each child with Add, which records the child's range and appends
// it to the parent's children in read order:
//
//	func (m *MethodID) ReadContent(r *reader.Reader) (err error) {
//		if m.ClassIdx, err = tree.Add(m, r, tree.U2("class_idx")); err != nil {
//			return err
//		}
//		m.NameIdx, err = tree.Add(m, r, tree.U4("name_idx"))
//		return err
//	}
//
// Structures reachable only through a stored offset are attached with AddAt,
// which seeks, reads, and restores the cursor. Their ranges lie outside the
// parent's range and they report OutOfBand.
//
// Count-prefixed repetition is a count leaf followed by a List read with
// AddList; the list holds exactly that many elements.
//
// # Resolution
//
// After the linear read, Parse runs the root's Indexer hook (when present) to
// build file-level lookup tables, then calls PostRead on every node that
// implements PostReader, children before parents. PostRead may only change
// descriptions.
//
// # Failures
//
// A read failure unwinds to Parse, which returns the partial tree with the
// error. Completed components stay attached; a container that failed midway
// stays attached too (Complete reports false) when it already holds children.
package tree
