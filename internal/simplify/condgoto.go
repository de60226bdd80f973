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

package simplify

import (
	"github.com/cloudwego/meopt/internal/cfg"
	"github.com/cloudwego/meopt/internal/ir"
)

const (
	_MaxDupStmts = 8
)

// condToUncond turns a conditional branch into an unconditional one when
// the condition is a constant, or when both edges end up in the same block
// with the same phi operands.
func (self *simplifier) condToUncond(bb *cfg.BasicBlock) bool {
	fn := self.fn
	br := bb.CondGoto()

	/* constant conditions select one of the edges */
	if br.Cond.IsConst() {
		keep := 0
		if (br.Cond.Imm != 0) == (br.Br == ir.BrTrue) {
			keep = 1
		}

		/* the kept target receives the weight of the dropped edge */
		f := fn.EdgeFreq(bb, 1-keep)
		self.collapse(bb, keep)
		self.addFreq(fn.Block(bb.Succ[0]), f)
		return true
	}

	/* the condition is dropped, so it must not have any effect */
	if !isPure(br.Cond) {
		return false
	}

	/* both edges must reach the same block */
	t := fn.FindFirstRealSucc(fn.Block(bb.Succ[0]))
	if t != fn.FindFirstRealSucc(fn.Block(bb.Succ[1])) {
		return false
	}

	/* with the same values */
	for _, p := range t.Phis {
		if p.Opnds[self.arrivalSlot(bb, 0, t)] != p.Opnds[self.arrivalSlot(bb, 1, t)] {
			return false
		}
	}

	/* the taken edge goes away, the connectors on the other path carry
	 * its weight from now on */
	f := fn.EdgeFreq(bb, 1)
	direct := bb.Succ[1] == t.Id
	self.collapse(bb, 0)

	/* update the frequencies along the surviving path */
	for c := fn.Block(bb.Succ[0]); c != t; c = fn.Block(c.Succ[0]) {
		self.addFreq(c, f)
	}

	/* t lost the weight only if the edge went there directly */
	if direct {
		self.addFreq(t, f)
	}
	return true
}

// arrivalSlot follows the i-th edge of bb through connector blocks and
// returns the predecessor slot it arrives at in t.
func (self *simplifier) arrivalSlot(bb *cfg.BasicBlock, i int, t *cfg.BasicBlock) int {
	for nb := self.fn.Block(bb.Succ[i]); nb != t; nb = self.fn.Block(nb.Succ[0]) {
		bb, i = nb, 0
	}
	return self.fn.EdgeSlot(bb, i)
}

// collapse keeps only the keep-th edge of a conditional branch.
func (self *simplifier) collapse(bb *cfg.BasicBlock, keep int) {
	self.fn.RemoveSuccAt(bb, 1-keep, true)

	/* the fallthrough edge stays a fallthrough, the taken edge becomes an
	 * explicit jump */
	if keep != 0 {
		self.toGoto(bb, self.fn.Block(bb.Succ[0]))
	} else {
		bb.RemoveTerm()
		bb.Kind = cfg.KindFallthrough
	}
}

// condOn returns the expression that holds exactly when bb takes its i-th
// edge.
func condOn(bb *cfg.BasicBlock, i int) *ir.Expr {
	if i == bb.TakenIndex() {
		return bb.CondGoto().Cond.Clone()
	} else {
		return AsCompare(bb.CondGoto().Cond.Clone()).Negate().Expr()
	}
}

// factOn returns the comparison known to hold on the i-th edge of bb.
func factOn(bb *cfg.BasicBlock, i int) Compare {
	if c := AsCompare(bb.CondGoto().Cond); i == bb.TakenIndex() {
		return c
	} else {
		return c.Negate()
	}
}

// skipRedundantCond redirects a conditional predecessor of bb straight to
// the successor of bb that the predecessor's condition selects. Empty
// blocks between the two are looked through, and removed before the edge
// is redirected.
func (self *simplifier) skipRedundantCond(bb *cfg.BasicBlock) bool {
	for _, id := range uniquePreds(bb) {
		p, h, ok := self.realPred(bb, self.fn.Block(id))

		/* only conditional predecessors know anything */
		if !ok || p == bb || p.Kind != cfg.KindCondGoto || p.Succ[0] == p.Succ[1] {
			continue
		}

		/* the connectors are only removed if the edge decides bb */
		i := p.SuccIndex(h.Id)
		if h != bb && !self.decides(p, i, bb, self.fn.Block(id)) {
			continue
		}

		/* p becomes a direct predecessor of bb */
		if h != bb {
			if n := self.fn.EliminateEmptyConnectingBB(p, h, bb); n != bb {
				if n != h {
					return true
				}
				continue
			}
		}

		/* try to thread this edge, which may now run parallel to another */
		if ok = p.Succ[0] != p.Succ[1] && self.threadEdge(p, i, bb); ok || h != bb {
			return true
		}
	}
	return false
}

// decides reports whether the fact on the i-th edge of p decides the
// condition of s, which the edge reaches through last, the predecessor of
// s on that path.
func (self *simplifier) decides(p *cfg.BasicBlock, i int, s *cfg.BasicBlock, last *cfg.BasicBlock) bool {
	slot := s.PredIndex(last.Id)
	cond := s.CondGoto().Cond.Clone()
	sub := make(map[ir.Value]ir.Value, len(s.Phis))

	/* the values s receives along the path */
	for _, ph := range s.Phis {
		sub[ph.Result] = ph.Opnds[slot]
	}
	cond.Values(func(v *ir.Value) {
		if x, ok := sub[*v]; ok {
			*v = x
		}
	})

	/* the outcome must be known */
	return Implies(factOn(p, i), AsCompare(cond)) != Unknown
}

// threadEdge tries to redirect the i-th edge of p, which goes to s, to the
// successor of s selected by the condition of p.
func (self *simplifier) threadEdge(p *cfg.BasicBlock, i int, s *cfg.BasicBlock) bool {
	fn := self.fn
	br := s.CondGoto()
	slot := fn.EdgeSlot(p, i)

	/* the condition must be free of effects */
	if !isPure(br.Cond) {
		return false
	}

	/* the values s receives along this edge */
	sub := make(map[ir.Value]ir.Value, len(s.Phis))
	for _, ph := range s.Phis {
		sub[ph.Result] = ph.Opnds[slot]
	}

	/* the condition as seen from p */
	cond := br.Cond.Clone()
	cond.Values(func(v *ir.Value) {
		if x, ok := sub[*v]; ok {
			*v = x
		}
	})

	/* the operands must not change between the two conditions */
	if self.redefinedIn(s, cond) {
		return false
	}

	/* find out the outcome */
	ok := Implies(factOn(p, i), AsCompare(cond))
	if ok == Unknown {
		return false
	}

	/* the successor that s would go to */
	k := s.TakenIndex()
	if ok == False {
		k = 1 - k
	}

	/* threading into a loop of s or p is not worth the trouble */
	t := fn.Block(s.Succ[k])
	if t == s || t == p || !sameTry(p, s, t) {
		return false
	}

	/* s has no other predecessor, just fix the condition */
	if len(s.Pred) == 1 {
		if ok == True {
			br.Cond = ir.Const(1)
		} else {
			br.Cond = ir.Const(0)
		}
		return true
	}

	/* nothing to execute in s, jump over it */
	if len(s.Body()) == 0 {
		return self.bypass(p, i, s, t)
	}

	/* otherwise copy the body of s onto the edge */
	return self.duplicate(p, i, s, k, sub)
}

// redefinedIn reports whether cond reads a value defined in the body of s,
// or reads memory that the body of s may write.
func (self *simplifier) redefinedIn(s *cfg.BasicBlock, cond *ir.Expr) bool {
	mem := false
	defs := make(map[ir.Value]bool)

	/* collect the definitions and the side effects */
	for _, st := range s.Body() {
		mem = mem || ir.HasSideEffects(st)
		for _, d := range ir.Defs(st) {
			defs[*d] = true
		}
	}

	/* check every value and every load */
	ret := false
	cond.Walk(func(e *ir.Expr) bool {
		ret = ret || (e.Op == ir.OpVal && defs[e.Val]) || (e.Op == ir.OpDeref && mem)
		return !ret
	})
	return ret
}

// bypass redirects the i-th edge of p from the empty block s to t.
func (self *simplifier) bypass(p *cfg.BasicBlock, i int, s *cfg.BasicBlock, t *cfg.BasicBlock) bool {
	if i == 0 && !self.fn.CanFallInto(p, t) {
		return false
	}

	/* t receives the same amount of flow as before */
	f := self.fn.EdgeFreq(p, i)
	self.fn.ReplaceSuccAt(p, i, t, true)
	self.subFreq(t, f)
	return true
}

// duplicate copies the body of s into a fresh block on the i-th edge of p,
// which then jumps to the k-th successor of s directly. sub maps the phi
// results of s to the operands of the edge.
func (self *simplifier) duplicate(p *cfg.BasicBlock, i int, s *cfg.BasicBlock, k int, sub map[ir.Value]ir.Value) bool {
	fn := self.fn
	t := fn.Block(s.Succ[k])

	/* keep the code growth bounded */
	if len(s.Body()) > _MaxDupStmts {
		return false
	}

	/* allocate the copy */
	vars := make(map[ir.Var]bool)
	d := fn.NewBlock(cfg.KindGoto)
	d.Attr = s.Attr & cfg.AttrTry

	/* copy the body with fresh definitions */
	for _, st := range s.Body() {
		ns := ir.Clone(st)
		ir.UsesOf(ns, func(v *ir.Value) {
			if x, ok := sub[*v]; ok {
				*v = x
			}
		})
		for _, dv := range ir.Defs(ns) {
			nv := fn.NewVersion(dv.Var)
			sub[*dv] = nv
			vars[dv.Var] = true
			*dv = nv
		}
		d.Stmts = append(d.Stmts, ns)
	}

	/* the values t receives from s along the copied path */
	vals := make(map[ir.Var]ir.Value, len(t.Phis))
	for v, ph := range t.Phis {
		if x, ok := sub[ph.Opnds[fn.EdgeSlot(s, k)]]; ok {
			vals[v] = x
		} else {
			vals[v] = ph.Opnds[fn.EdgeSlot(s, k)]
		}
	}

	/* move the edge onto the copy */
	slot := fn.EdgeSlot(p, i)
	fn.ReplaceSuccAt(p, i, d, false)
	fn.DropPhiOpnds(s, slot)

	/* and link the copy to t */
	d.Stmts = append(d.Stmts, &ir.Goto{Target: fn.LabelOf(t)})
	fn.AddSucc(d, t, false)
	fn.AppendPhiOpnds(t, vals)
	fn.SetFreq(d, d.Freq)

	/* values of s now have two definitions reaching t */
	for v := range vars {
		fn.AddCand(v, t.Id)
	}
	for v := range s.Phis {
		fn.AddCand(v, t.Id)
	}
	return true
}
