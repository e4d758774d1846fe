package layout

// LevelPlan summarises one level of the tree.
type LevelPlan struct {
	Level     int
	Nodes     uint64
	First     uint64 // global index of the level's first node
	Extent    uint64 // keys covered by one node
	SubExtent uint64 // distance between adjacent keys of a node
	Leaf      bool
}

// Plan computes the per-level partitioning of cfg. Extents use integer
// division; keys past Nodes*Extent are not covered by any node.
func Plan(cfg Config) ([]LevelPlan, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	f := uint64(cfg.fanout())
	levels := make([]LevelPlan, len(cfg.NodeCounts))
	var first uint64
	for i, n := range cfg.NodeCounts {
		extent := cfg.MaxKey / n
		levels[i] = LevelPlan{
			Level:     i,
			Nodes:     n,
			First:     first,
			Extent:    extent,
			SubExtent: extent / f,
			Leaf:      i == len(cfg.NodeCounts)-1,
		}
		first += n
	}
	return levels, nil
}

// Planner yields the nodes of an image in file order: level by level from
// the root, left to right within a level. It is single use.
type Planner struct {
	cfg       Config
	levels    []LevelPlan
	fanout    int
	indexSize uint64

	level int    // current level
	j     uint64 // next node within the level

	// child is the next unassigned node of level+1; it is reset to that
	// level's first node whenever the planner descends. value is the next
	// unassigned value slot and only moves forward.
	child uint64
	value uint64
}

// NewPlanner validates cfg and positions the planner on the root.
func NewPlanner(cfg Config) (*Planner, error) {
	levels, err := Plan(cfg)
	if err != nil {
		return nil, err
	}
	p := &Planner{
		cfg:       cfg,
		levels:    levels,
		fanout:    cfg.fanout(),
		indexSize: cfg.IndexSize(),
	}
	p.enterLevel(0)
	return p, nil
}

// Levels returns the plan the planner is walking.
func (p *Planner) Levels() []LevelPlan { return p.levels }

func (p *Planner) enterLevel(i int) {
	p.level = i
	p.j = 0
	if i+1 < len(p.levels) {
		p.child = p.levels[i+1].First
	}
}

// Next returns the next node, or false once the leaf level is exhausted.
func (p *Planner) Next() (Node, bool) {
	if p.level >= len(p.levels) {
		return Node{}, false
	}
	lv := p.levels[p.level]

	n := Node{
		Type: TypeInternal,
		Keys: make([]uint64, p.fanout),
		Ptrs: make([]Ptr, p.fanout),
	}
	if lv.Leaf {
		n.Type = TypeLeaf
	}
	if p.j == lv.Nodes-1 {
		n.Next = NoNext
	} else {
		n.Next = NodeOffset(lv.First + p.j + 1)
	}

	start := p.j * lv.Extent
	for k := 0; k < p.fanout; k++ {
		n.Keys[k] = start + uint64(k)*lv.SubExtent
		if lv.Leaf {
			n.Ptrs[k] = MustEncode(p.indexSize + p.value*ValueSize)
			p.value++
		} else {
			n.Ptrs[k] = MustEncode(NodeOffset(p.child))
			p.child++
		}
	}

	p.j++
	if p.j == lv.Nodes {
		p.enterLevel(p.level + 1)
	}
	return n, true
}
