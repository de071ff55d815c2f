package http2

const (
	rootNode int32 = -1
	noNode   int32 = -2
)

// node is a priority tree entry. It outlives its stream for a while so
// that dependencies on a finished stream can still be resolved.
type node struct {
	id       uint32
	parent   int32
	children []int32
	weight   int
	rank     int
	rel      float64
	next     int32
	stream   *Stream
	closed   bool
}

// priorityTree owns every node of a connection. Nodes are addressed by
// their arena index and found by id through a bucket index with chaining.
type priorityTree struct {
	nodes   []node
	buckets []int32
	mask    uint32
	roots   []int32
	closed  []int32
	quota   int
}

func newPriorityTree(indexSize, quota int) *priorityTree {
	size := 1
	for size < indexSize {
		size <<= 1
	}

	t := &priorityTree{
		buckets: make([]int32, size),
		mask:    uint32(size - 1),
		quota:   quota,
	}
	for i := range t.buckets {
		t.buckets[i] = noNode
	}
	return t
}

func (t *priorityTree) bucket(id uint32) uint32 {
	return (id >> 1) & t.mask
}

func (t *priorityTree) lookup(id uint32) int32 {
	for i := t.buckets[t.bucket(id)]; i != noNode; i = t.nodes[i].next {
		if t.nodes[i].id == id {
			return i
		}
	}
	return noNode
}

func (t *priorityTree) stream(id uint32) *Stream {
	if i := t.lookup(id); i != noNode {
		return t.nodes[i].stream
	}
	return nil
}

// get returns the node of id, allocating one if alloc is set. Once the
// closed ring has reached its quota the oldest closed node is recycled.
func (t *priorityTree) get(id uint32, alloc bool) int32 {
	if i := t.lookup(id); i != noNode || !alloc {
		return i
	}

	var i int32
	if len(t.closed) < t.quota || len(t.closed) == 0 {
		t.nodes = append(t.nodes, node{})
		i = int32(len(t.nodes) - 1)
	} else {
		i = t.evict()
	}

	b := t.bucket(id)
	t.nodes[i] = node{
		id:       id,
		parent:   noNode,
		children: t.nodes[i].children[:0],
		weight:   DefaultWeight,
		next:     t.buckets[b],
	}
	t.buckets[b] = i
	return i
}

// evict removes the oldest closed node from the tree and returns its slot.
// Its children move up to its parent and share out its weight.
func (t *priorityTree) evict() int32 {
	i := t.closed[0]
	t.unpark(i)

	n := &t.nodes[i]

	b := t.bucket(n.id)
	if t.buckets[b] == i {
		t.buckets[b] = n.next
	} else {
		for j := t.buckets[b]; j != noNode; j = t.nodes[j].next {
			if t.nodes[j].next == i {
				t.nodes[j].next = n.next
				break
			}
		}
	}

	parent := n.parent
	if parent == noNode {
		parent = rootNode
	} else {
		t.detach(i)
	}

	sum := 0
	for _, c := range n.children {
		sum += t.nodes[c].weight
	}
	for _, c := range n.children {
		cn := &t.nodes[c]
		cn.parent = parent
		cn.weight = n.weight * cn.weight / sum
		if cn.weight == 0 {
			cn.weight = 1
		}
	}

	siblings := t.childrenOf(parent)
	*siblings = append(*siblings, n.children...)
	n.children = n.children[:0]
	n.parent = noNode

	t.update()
	return i
}

// setDependency makes node i depend on stream depend. A dependency on an
// unknown stream falls back to the root with default exclusivity.
func (t *priorityTree) setDependency(i int32, depend uint32, exclusive bool) {
	parent := rootNode
	if depend != 0 {
		if parent = t.lookup(depend); parent == noNode {
			parent = rootNode
			exclusive = false
		}
	}

	if parent != rootNode {
		if t.nodes[i].parent != noNode && t.isDescendant(parent, i) {
			t.detach(parent)
			t.nodes[parent].parent = t.nodes[i].parent
			s := t.childrenOf(t.nodes[i].parent)
			*s = append(*s, parent)
		}
		if t.nodes[parent].closed {
			t.unpark(parent)
			t.park(parent)
		}
	}

	if t.nodes[i].parent != noNode {
		t.detach(i)
	}

	if exclusive {
		s := t.childrenOf(parent)
		for _, c := range *s {
			t.nodes[c].parent = i
		}
		t.nodes[i].children = append(t.nodes[i].children, *s...)
		*s = (*s)[:0]
	}

	t.nodes[i].parent = parent
	s := t.childrenOf(parent)
	*s = append(*s, i)

	t.update()
}

func (t *priorityTree) isDescendant(i, ancestor int32) bool {
	for p := t.nodes[i].parent; p >= 0; p = t.nodes[p].parent {
		if p == ancestor {
			return true
		}
	}
	return false
}

func (t *priorityTree) childrenOf(i int32) *[]int32 {
	if i == rootNode {
		return &t.roots
	}
	return &t.nodes[i].children
}

// detach unlinks node i from its parent's children.
func (t *priorityTree) detach(i int32) {
	s := t.childrenOf(t.nodes[i].parent)
	for k, c := range *s {
		if c == i {
			*s = append((*s)[:k], (*s)[k+1:]...)
			break
		}
	}
}

// park appends node i to the closed ring.
func (t *priorityTree) park(i int32) {
	t.nodes[i].closed = true
	t.closed = append(t.closed, i)
}

func (t *priorityTree) unpark(i int32) {
	t.nodes[i].closed = false
	for k, c := range t.closed {
		if c == i {
			t.closed = append(t.closed[:k], t.closed[k+1:]...)
			return
		}
	}
}

// update recomputes rank and relative weight of the whole tree. A child
// gets its parent's relative weight scaled by its share of the sibling
// weights; the root counts as 1.
func (t *priorityTree) update() {
	t.updateChildren(t.roots, 0, 1.0)
}

func (t *priorityTree) updateChildren(children []int32, rank int, rel float64) {
	sum := 0
	for _, c := range children {
		sum += t.nodes[c].weight
	}
	for _, c := range children {
		n := &t.nodes[c]
		n.rank = rank + 1
		n.rel = rel * float64(n.weight) / float64(sum)
		t.updateChildren(n.children, n.rank, n.rel)
	}
}

func (t *priorityTree) rank(i int32) int {
	if i < 0 {
		return 0
	}
	return t.nodes[i].rank
}

func (t *priorityTree) relWeight(i int32) float64 {
	if i < 0 {
		return 1.0
	}
	return t.nodes[i].rel
}
