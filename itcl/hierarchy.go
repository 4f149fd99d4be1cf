package itcl

// HierOrder selects how a HierIter walks a class and its ancestors.
type HierOrder int

const (
	// DerivedFirst yields a class before its bases, depth first in base
	// declaration order. Member lookup uses this order.
	DerivedFirst HierOrder = iota
	// BaseFirst yields every base before the classes derived from it.
	// Construction uses this order; destruction uses its reverse.
	BaseFirst
)

type hierEntry struct {
	cls      *Class
	expanded bool
}

// HierIter is a restartable traversal over a class and its ancestors. It keeps
// its own stack and yields each class once, even across diamond inheritance.
type HierIter struct {
	root    *Class
	order   HierOrder
	stack   Stack[hierEntry]
	visited map[classID]struct{}
	current *Class
}

// NewHierIter starts a traversal rooted at cls.
func NewHierIter(cls *Class, order HierOrder) *HierIter {
	it := &HierIter{root: cls, order: order}
	it.Reset()
	return it
}

// Reset restarts the traversal from the root.
func (it *HierIter) Reset() {
	it.stack = Stack[hierEntry]{}
	it.visited = make(map[classID]struct{})
	it.current = nil
	if it.root != nil {
		it.stack.Push(hierEntry{cls: it.root})
	}
}

// Current returns the class most recently yielded.
func (it *HierIter) Current() *Class {
	return it.current
}

// Next returns the next class, or nil when the traversal is done.
func (it *HierIter) Next() *Class {
	if it.order == BaseFirst {
		it.current = it.nextBaseFirst()
	} else {
		it.current = it.nextDerivedFirst()
	}
	return it.current
}

func (it *HierIter) nextDerivedFirst() *Class {
	for it.stack.Len() > 0 {
		entry, _ := it.stack.Pop()
		if _, seen := it.visited[entry.cls.id]; seen {
			continue
		}
		it.visited[entry.cls.id] = struct{}{}
		bases := entry.cls.Bases()
		for i := len(bases) - 1; i >= 0; i-- {
			it.stack.Push(hierEntry{cls: bases[i]})
		}
		return entry.cls
	}
	return nil
}

func (it *HierIter) nextBaseFirst() *Class {
	for it.stack.Len() > 0 {
		entry, _ := it.stack.Pop()
		if _, seen := it.visited[entry.cls.id]; seen {
			continue
		}
		if entry.expanded {
			it.visited[entry.cls.id] = struct{}{}
			return entry.cls
		}
		it.stack.Push(hierEntry{cls: entry.cls, expanded: true})
		bases := entry.cls.Bases()
		for i := len(bases) - 1; i >= 0; i-- {
			if _, seen := it.visited[bases[i].id]; !seen {
				it.stack.Push(hierEntry{cls: bases[i]})
			}
		}
	}
	return nil
}

// collectHierarchy drains a fresh traversal into a slice.
func collectHierarchy(cls *Class, order HierOrder) []*Class {
	var out []*Class
	it := NewHierIter(cls, order)
	for c := it.Next(); c != nil; c = it.Next() {
		out = append(out, c)
	}
	return out
}
