package ast

// Children returns the owned children of n in source order.
func Children(n *Node) []*Node {
	if n == nil {
		return nil
	}
	var out []*Node
	add := func(c *Node) {
		if c != nil {
			out = append(out, c)
		}
	}

	switch n.Kind {
	case Call:
		add(n.Node)
		out = append(out, n.Args...)
	case GetField, SetField, GetMethod, SetMethod:
		add(n.Node)
		add(n.Value)
	case GetIndex, SetIndex:
		add(n.Node)
		add(n.Index)
		add(n.Value)
	case TableIndex:
		add(n.Index)
		add(n.Value)
	case Function:
		out = append(out, n.Params...)
		out = append(out, n.Body...)
	case NumericFor, GenericFor:
		out = append(out, n.Params...)
		out = append(out, n.Exprs...)
		out = append(out, n.Body...)
	case Repeat:
		out = append(out, n.Body...)
		add(n.Value)
	default:
		add(n.Value)
		out = append(out, n.Exprs...)
		out = append(out, n.Body...)
	}
	return out
}

// Walk visits n and its descendants depth-first. Returning false from fn skips
// the children of the node just visited.
func Walk(n *Node, fn func(*Node) bool) {
	if n == nil {
		return
	}
	if !fn(n) {
		return
	}
	for _, c := range Children(n) {
		Walk(c, fn)
	}
}

// Find returns the first node under n for which pred holds.
func Find(n *Node, pred func(*Node) bool) *Node {
	var found *Node
	Walk(n, func(c *Node) bool {
		if found != nil {
			return false
		}
		if pred(c) {
			found = c
			return false
		}
		return true
	})
	return found
}

// Collect returns every node under n of one of the given kinds.
func Collect(n *Node, kinds ...Kind) []*Node {
	want := map[Kind]bool{}
	for _, k := range kinds {
		want[k] = true
	}
	var out []*Node
	Walk(n, func(c *Node) bool {
		if want[c.Kind] {
			out = append(out, c)
		}
		return true
	})
	return out
}

// At returns the innermost node whose span contains offset.
func At(root *Node, offset int) *Node {
	var best *Node
	Walk(root, func(c *Node) bool {
		if offset < c.Start || offset > c.Finish {
			return c.Kind == Main
		}
		best = c
		return true
	})
	return best
}

// Returns collects the return statements of the main chunk, skipping those
// nested inside functions.
func Returns(root *Node) []*Node {
	var out []*Node
	Walk(root, func(c *Node) bool {
		if c.Kind == Function {
			return false
		}
		if c.Kind == Return {
			out = append(out, c)
		}
		return true
	})
	return out
}

// VisibleLocals returns the locals in scope at offset, innermost last. Locals
// declared after offset or in blocks that do not contain it are skipped.
func VisibleLocals(root *Node, offset int) []*Node {
	var out []*Node
	var visit func(block *Node)
	visit = func(block *Node) {
		for _, c := range Children(block) {
			if c.Start > offset {
				break
			}
			if c.Kind == Local && c.Finish <= offset {
				out = append(out, c)
			}
			if offset >= c.Start && offset <= c.Finish {
				if c.Kind == Local && c.Value != nil && c.Value.Kind == Function {
					out = append(out, c)
				}
				visit(c)
			}
		}
	}
	visit(root)

	seen := map[*Node]bool{}
	uniq := out[:0]
	for _, l := range out {
		if !seen[l] {
			seen[l] = true
			uniq = append(uniq, l)
		}
	}
	return uniq
}
