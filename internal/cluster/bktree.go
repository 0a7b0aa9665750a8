package cluster

// bkTree indexes fingerprints under the Hamming metric so that range
// queries only visit the subtrees the triangle inequality cannot rule
// out, giving near-linear scaling in practice instead of O(n^2)
// pairwise comparison.
type bkTree struct {
	root     *bkNode
	distance func(a, b uint64) int
}

type bkNode struct {
	hash     uint64
	index    int
	children map[int]*bkNode // edge label is the distance to the child
}

func newBKTree(distanceFn func(a, b uint64) int) *bkTree {
	return &bkTree{distance: distanceFn}
}

// insert adds a fingerprint with its record index.
func (t *bkTree) insert(hash uint64, index int) {
	node := &bkNode{
		hash:     hash,
		index:    index,
		children: make(map[int]*bkNode),
	}

	if t.root == nil {
		t.root = node
		return
	}

	current := t.root
	for {
		dist := t.distance(hash, current.hash)
		if child, exists := current.children[dist]; exists {
			current = child
		} else {
			current.children[dist] = node
			return
		}
	}
}

// findWithinDistance returns the indices of all stored fingerprints
// whose distance to hash is at most threshold.
func (t *bkTree) findWithinDistance(hash uint64, threshold int) []int {
	if t.root == nil {
		return nil
	}

	var results []int
	t.searchNode(t.root, hash, threshold, &results)
	return results
}

func (t *bkTree) searchNode(node *bkNode, hash uint64, threshold int, results *[]int) {
	dist := t.distance(hash, node.hash)

	if dist <= threshold {
		*results = append(*results, node.index)
	}

	// Only children labelled within [dist-threshold, dist+threshold]
	// can contain a match.
	minDist := dist - threshold
	if minDist < 0 {
		minDist = 0
	}
	maxDist := dist + threshold

	for childDist, child := range node.children {
		if childDist >= minDist && childDist <= maxDist {
			t.searchNode(child, hash, threshold, results)
		}
	}
}

// size returns the number of stored fingerprints.
func (t *bkTree) size() int {
	if t.root == nil {
		return 0
	}
	return t.countNodes(t.root)
}

func (t *bkTree) countNodes(node *bkNode) int {
	count := 1
	for _, child := range node.children {
		count += t.countNodes(child)
	}
	return count
}
