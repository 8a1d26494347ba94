package core

// JoinKind is the SQL join type of an include node.
type JoinKind int

// Join kinds.
const (
	LeftJoin JoinKind = iota
	InnerJoin
)

func (k JoinKind) String() string {
	if k == InnerJoin {
		return "INNER JOIN"
	}
	return "LEFT JOIN"
}

type join struct {
	node *Node
	kind JoinKind
}

// findPlan lists the joins of a find query. When derived is set the root
// rows are paginated in a derived table before the includes are joined.
type findPlan struct {
	joins   []join
	derived *derivedRoot
}

type derivedRoot struct {
	joins    []join
	distinct bool
}

type countPlan struct {
	joins    []join
	distinct bool
}

// leafPaths returns every root-to-leaf path of the tree.
func leafPaths(n *Node) [][]*Node {
	if len(n.Children) == 0 {
		return [][]*Node{{n}}
	}
	var paths [][]*Node
	for _, child := range n.Children {
		for _, p := range leafPaths(child) {
			paths = append(paths, append([]*Node{n}, p...))
		}
	}
	return paths
}

// nearestRequired returns the index of the required node closest to the
// leaf, or 0 when no node below the root is required.
func nearestRequired(path []*Node) int {
	for i := len(path) - 1; i > 0; i-- {
		if path[i].Required {
			return i
		}
	}
	return 0
}

// requiredChains returns the ids of the nodes lying on a path from the root
// down to some required node. A required node forces its ancestors to be
// joined too, whatever their own requiredness.
func requiredChains(t *Tree) map[int]bool {
	chain := make(map[int]bool)
	for _, path := range leafPaths(t.Root) {
		for _, n := range path[1 : nearestRequired(path)+1] {
			chain[n.ID] = true
		}
	}
	return chain
}

// chainJoins returns the required chain as INNER joins in tree order.
func chainJoins(t *Tree) []join {
	chain := requiredChains(t)
	if len(chain) == 0 {
		return nil
	}
	joins := make([]join, 0, len(chain))
	for _, n := range t.nodes {
		if chain[n.ID] {
			joins = append(joins, join{node: n, kind: InnerJoin})
		}
	}
	return joins
}

// planFind joins every include with its own requiredness. A paginated query
// over a fan-out join moves the root rows into a derived table, limited
// there and filtered by the required chain.
func planFind(t *Tree, paginated bool) findPlan {
	var plan findPlan
	for _, n := range t.nodes[1:] {
		kind := LeftJoin
		if n.Required {
			kind = InnerJoin
		}
		plan.joins = append(plan.joins, join{node: n, kind: kind})
	}

	if paginated && t.FansOut() {
		d := &derivedRoot{joins: chainJoins(t)}
		for _, j := range d.joins {
			if j.node.FansOut() {
				d.distinct = true
			}
		}
		plan.derived = d
	}
	return plan
}

// planCount keeps only the joins that can remove root rows.
func planCount(t *Tree) countPlan {
	joins := chainJoins(t)
	return countPlan{joins: joins, distinct: len(joins) > 0}
}
