package tree

// Walk visits c and its descendants in pre-order. Returning false from fn
// skips the children of the visited component.
func Walk(c Component, fn func(c Component, depth int) bool) {
	walk(c, 0, fn)
}

func walk(c Component, depth int, fn func(Component, int) bool) {
	if !fn(c, depth) {
		return
	}
	for _, child := range c.Children() {
		walk(child, depth+1, fn)
	}
}

// Count returns the number of components in the tree rooted at c.
func Count(c Component) int {
	n := 0
	Walk(c, func(Component, int) bool {
		n++
		return true
	})
	return n
}

// At returns the path from root to the smallest component whose byte range
// contains offset. Out-of-band subtrees are searched as well, so
// intermediate path elements need not contain offset themselves. It returns
// nil when nothing covers offset.
func At(root Component, offset int) []Component {
	var (
		best    []Component
		bestLen int
		path    []Component
	)
	var visit func(c Component)
	visit = func(c Component) {
		path = append(path, c)
		if c.Length() > 0 && offset >= c.Offset() && offset < c.Offset()+c.Length() {
			if best == nil || c.Length() < bestLen || (c.Length() == bestLen && len(path) > len(best)) {
				best = append(best[:0:0], path...)
				bestLen = c.Length()
			}
		}
		for _, child := range c.Children() {
			visit(child)
		}
		path = path[:len(path)-1]
	}
	visit(root)
	return best
}

// Find returns the first direct child of c named name, or nil.
func Find(c Component, name string) Component {
	for _, child := range c.Children() {
		if child.Name() == name {
			return child
		}
	}
	return nil
}

// FindPath follows a sequence of child names from c.
func FindPath(c Component, names ...string) Component {
	for _, name := range names {
		if c = Find(c, name); c == nil {
			return nil
		}
	}
	return c
}
