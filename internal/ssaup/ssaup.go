/*
 * Copyright 2022 CloudWeGo Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package ssaup

import (
	"sort"

	"github.com/oleiade/lane"
	"gonum.org/v1/gonum/graph/flow"
	"gonum.org/v1/gonum/graph/simple"

	"github.com/cloudwego/meopt/internal/cfg"
	"github.com/cloudwego/meopt/internal/ir"
)

// DominatorTree of the blocks reachable from CommonEntry.
type DominatorTree struct {
	Root              cfg.BBId
	DominatedBy       map[cfg.BBId]cfg.BBId
	DominatorOf       map[cfg.BBId][]cfg.BBId
	DominanceFrontier map[cfg.BBId][]cfg.BBId
}

// BuildDominatorTree computes the dominator tree and the dominance
// frontiers of fn, rooted at CommonEntry.
func BuildDominatorTree(fn *cfg.Func) *DominatorTree {
	g := simple.NewDirectedGraph()
	g.AddNode(simple.Node(cfg.CommonEntry))

	/* the virtual entry edges */
	for _, id := range fn.CommonEntry().Succ {
		g.SetEdge(g.NewEdge(simple.Node(cfg.CommonEntry), simple.Node(id)))
	}

	/* all the real edges, self loops never affect dominance */
	for _, bb := range fn.Blocks() {
		if g.Node(int64(bb.Id)) == nil {
			g.AddNode(simple.Node(bb.Id))
		}
		for _, id := range bb.Succ {
			if id != bb.Id && !g.HasEdgeFromTo(int64(bb.Id), int64(id)) {
				g.SetEdge(g.NewEdge(simple.Node(bb.Id), simple.Node(id)))
			}
		}
	}

	/* compute the dominators */
	dt := flow.Dominators(g.Node(int64(cfg.CommonEntry)), g)
	ret := &DominatorTree{
		Root:              cfg.CommonEntry,
		DominatedBy:       make(map[cfg.BBId]cfg.BBId),
		DominatorOf:       make(map[cfg.BBId][]cfg.BBId),
		DominanceFrontier: make(map[cfg.BBId][]cfg.BBId),
	}

	/* the immediate dominators, unreachable blocks have none */
	for _, bb := range fn.Blocks() {
		if p := dt.DominatorOf(int64(bb.Id)); p != nil {
			ret.DominatedBy[bb.Id] = cfg.BBId(p.ID())
			ret.DominatorOf[cfg.BBId(p.ID())] = append(ret.DominatorOf[cfg.BBId(p.ID())], bb.Id)
		}
	}

	/* sort the children, so the walk is deterministic */
	for _, v := range ret.DominatorOf {
		sort.Slice(v, func(i int, j int) bool { return v[i] < v[j] })
	}

	/* compute the dominance frontiers */
	ret.frontiers(fn)
	return ret
}

func (self *DominatorTree) reachable(id cfg.BBId) bool {
	_, ok := self.DominatedBy[id]
	return ok || id == self.Root
}

func (self *DominatorTree) frontiers(fn *cfg.Func) {
	for _, bb := range fn.Blocks() {
		if !self.reachable(bb.Id) || len(bb.Pred) == 0 {
			continue
		}

		/* walk up from every predecessor until the immediate dominator */
		idom := self.DominatedBy[bb.Id]
		seen := make(map[cfg.BBId]bool)
		for _, p := range bb.Pred {
			for r := p; self.reachable(r) && r != idom && !seen[r]; r = self.DominatedBy[r] {
				seen[r] = true
				self.DominanceFrontier[r] = append(self.DominanceFrontier[r], bb.Id)
				if r == self.Root {
					break
				}
			}
		}
	}
}

// Updater rebuilds the SSA form of the candidate variables from scratch:
// the existing phis of each variable are discarded, new ones are placed on
// the iterated dominance frontier of its definitions, and every use is
// renamed to its reaching definition.
type Updater struct{}

func (Updater) Update(fn *cfg.Func) {
	var vars []ir.Var
	var dt *DominatorTree

	/* nothing to update */
	if len(fn.Cands) == 0 {
		return
	}

	/* entry blocks that are loop headers need a block in front of them */
	for _, bb := range fn.Entries() {
		if len(bb.Pred) != 0 {
			fn.SplitEntry(bb)
		}
	}

	/* sort the variables, so new versions are deterministic */
	for v := range fn.Cands {
		vars = append(vars, v)
	}
	sort.Slice(vars, func(i int, j int) bool {
		return vars[i] < vars[j]
	})

	/* rebuild each variable */
	dt = BuildDominatorTree(fn)
	for _, v := range vars {
		rebuild(fn, dt, v)
	}

	/* drain the candidate set */
	fn.Cands = make(map[ir.Var]map[cfg.BBId]struct{})
}

func rebuild(fn *cfg.Func, dt *DominatorTree, v ir.Var) {
	defs := make(map[cfg.BBId]bool)
	phis := make(map[cfg.BBId]bool)

	/* drop the old phis, and find all the definition sites */
	for _, bb := range fn.Blocks() {
		delete(bb.Phis, v)
		for _, s := range bb.Stmts {
			for _, d := range ir.Defs(s) {
				if d.Var == v {
					defs[bb.Id] = true
				}
			}
		}
	}

	/* place the phis on the iterated dominance frontier */
	q := lane.NewQueue()
	for _, id := range sortedIds(defs) {
		q.Enqueue(id)
	}

	/* the queue only grows with blocks that did not define v */
	for !q.Empty() {
		for _, y := range dt.DominanceFrontier[q.Dequeue().(cfg.BBId)] {
			if !phis[y] {
				phis[y] = true
				insertPhi(fn, fn.Block(y), v)
				if !defs[y] {
					q.Enqueue(y)
				}
			}
		}
	}

	/* rename all the uses */
	rename(fn, dt, v)
}

func insertPhi(fn *cfg.Func, bb *cfg.BasicBlock, v ir.Var) {
	if bb.Has(cfg.AttrEntry) {
		panic(cfg.Invariantf(bb.Id, nil, "variable %%v%d needs a phi in an entry block", v))
	}

	/* allocate the phi map if needed */
	if bb.Phis == nil {
		bb.Phis = make(map[ir.Var]*cfg.Phi)
	}

	/* operands are filled in by renaming */
	bb.Phis[v] = &cfg.Phi{
		Block:  bb.Id,
		Var:    v,
		Result: fn.NewVersion(v),
		Opnds:  make([]ir.Value, len(bb.Pred)),
	}
}

type _RenameFrame struct {
	bb  cfg.BBId
	cur ir.Value
}

func rename(fn *cfg.Func, dt *DominatorTree, v ir.Var) {
	st := lane.NewStack()
	st.Push(_RenameFrame{bb: dt.Root, cur: ir.V(v, 0)})

	/* walk the dominator tree */
	for !st.Empty() {
		p := st.Pop().(_RenameFrame)
		cur := p.cur

		/* the root is a sentinel, it has no statements */
		if p.bb != dt.Root {
			cur = renameBlock(fn, fn.Block(p.bb), v, cur)
		}

		/* visit the children */
		for _, c := range dt.DominatorOf[p.bb] {
			st.Push(_RenameFrame{bb: c, cur: cur})
		}
	}
}

func renameBlock(fn *cfg.Func, bb *cfg.BasicBlock, v ir.Var, cur ir.Value) ir.Value {
	if p := bb.Phis[v]; p != nil {
		cur = p.Result
	}

	/* uses first, then definitions */
	for _, s := range bb.Stmts {
		ir.UsesOf(s, func(p *ir.Value) {
			if p.Var == v {
				*p = cur
			}
		})
		for _, d := range ir.Defs(s) {
			if d.Var == v {
				cur = *d
			}
		}
	}

	/* fill in the phi operands of the successors */
	for i, id := range bb.Succ {
		if p := fn.Block(id).Phis[v]; p != nil {
			p.Opnds[fn.EdgeSlot(bb, i)] = cur
		}
	}

	/* the definition reaching the end of the block */
	return cur
}

func sortedIds(m map[cfg.BBId]bool) []cfg.BBId {
	ret := make([]cfg.BBId, 0, len(m))
	for id := range m {
		ret = append(ret, id)
	}
	sort.Slice(ret, func(i int, j int) bool {
		return ret[i] < ret[j]
	})
	return ret
}
