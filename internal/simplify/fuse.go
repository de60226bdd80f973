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

// _Diamond is a conditional block s whose only predecessor p is also a
// conditional block, with one successor c shared by both of them:
//
//	p: if ... goto c else goto s
//	s: if ... goto c else goto e
//
// The edge p -> s may pass through empty blocks, starting at h.
type _Diamond struct {
	p  *cfg.BasicBlock
	s  *cfg.BasicBlock
	h  *cfg.BasicBlock
	c  *cfg.BasicBlock
	e  *cfg.BasicBlock
	ps int // edge p -> h
	sc int // edge s -> c
}

// pc returns the index of the edge p -> c.
func (self *_Diamond) pc() int {
	return 1 - self.ps
}

// se returns the index of the edge s -> e.
func (self *_Diamond) se() int {
	return 1 - self.sc
}

func (self *simplifier) matchDiamond(s *cfg.BasicBlock) (*_Diamond, bool) {
	fn := self.fn

	/* s must be nothing but the branch */
	if len(s.Pred) != 1 || len(s.Stmts) != 1 || len(s.Phis) != 0 || s.Has(cfg.AttrEntry) {
		return nil, false
	}

	/* so is the predecessor, connectors in between do not count */
	p, h, ok := self.realPred(s, fn.Block(s.Pred[0]))
	if !ok || p == s || p.Kind != cfg.KindCondGoto || p.Succ[0] == p.Succ[1] || !sameTry(p, s) {
		return nil, false
	}

	/* find the shared successor */
	d := &_Diamond{p: p, s: s, h: h, ps: p.SuccIndex(h.Id)}
	d.c = fn.Block(p.Succ[d.pc()])
	if d.sc = s.SuccIndex(d.c.Id); d.sc < 0 || s.Succ[0] == s.Succ[1] {
		return nil, false
	}

	/* the other successor of s, loops through p are left alone */
	if d.e = fn.Block(s.Succ[d.se()]); d.e == p || d.c == p {
		return nil, false
	}

	/* c must receive the same values from both */
	for _, ph := range d.c.Phis {
		if ph.Opnds[fn.EdgeSlot(p, d.pc())] != ph.Opnds[fn.EdgeSlot(s, d.sc)] {
			return nil, false
		}
	}

	/* p falls into e afterwards when s was its fallthrough successor */
	if d.ps == 0 {
		if ft := fn.FallthroughPred(d.e); ft != nil && ft != s && ft != p {
			return nil, false
		}
	}
	return d, true
}

// fuse replaces the two branches of the diamond with a single branch in p
// on cond, taken to index 1 on br.
func (self *simplifier) fuse(d *_Diamond, cond *ir.Expr, br ir.Br) {
	fn := self.fn

	/* p must branch to s directly */
	if d.h != d.s && fn.EliminateEmptyConnectingBB(d.p, d.h, d.s) != d.s {
		panic(cfg.Invariantf(d.h.Id, nil, "cannot remove the connectors between %s and %s", d.p.Id, d.s.Id))
	}

	/* the weights before fusing */
	pf := fn.EdgeFreq(d.p, d.ps)
	cf := d.c.Freq
	ef := d.e.Freq

	/* the weights of the fused edges */
	fc := fn.EdgeFreq(d.p, d.pc()) + scaleEdge(fn, d.s, d.sc, pf)
	fe := scaleEdge(fn, d.s, d.se(), pf)

	/* install the new condition */
	pb := d.p.CondGoto()
	pb.Br = br
	pb.Cond = cond

	/* p -> s becomes p -> e, then s goes away */
	fn.ReplaceSuccAt(d.p, d.ps, d.e, true)
	fn.RemoveAllSuccs(d.s, true)
	fn.DeleteBlock(d.s)

	/* restore the frequencies, the amount of flow into c and e is the same */
	if fn.TrackFreq {
		fn.SetFreq(d.c, cf)
		fn.SetFreq(d.e, ef)
		d.p.SuccFreq[d.pc()] = fc
		d.p.SuccFreq[d.ps] = fe
		fn.SetFreq(d.p, d.p.Freq)
	}
}

// scaleEdge returns the share of f that flows along the i-th edge of bb.
func scaleEdge(fn *cfg.Func, bb *cfg.BasicBlock, i int, f uint64) uint64 {
	if !fn.TrackFreq || bb.Freq == 0 {
		return 0
	} else {
		return uint64(float64(f) * float64(bb.SuccFreq[i]) / float64(bb.Freq))
	}
}

// foldCommonDest evaluates both conditions of a diamond in p, combining
// them with a logical and/or, when the condition of s is a cheap comparison
// that is safe to evaluate unconditionally.
func (self *simplifier) foldCommonDest(bb *cfg.BasicBlock) bool {
	d, ok := self.matchDiamond(bb)
	if !ok {
		return false
	}

	/* profitable only for simple comparisons */
	sc := bb.CondGoto().Cond
	if !isSimpleCompare(sc) || !isPure(sc) {
		return false
	}

	/* anything that may trap must already be evaluated by p */
	pc := d.p.CondGoto().Cond
	for _, e := range unsafeNodes(sc) {
		if !pc.Contains(e) {
			return false
		}
	}

	/* build the combined condition, taken towards index 1 */
	a := condOn(d.p, d.ps)
	b := condOn(d.s, d.se())

	/* p reaches e when both hold */
	var cond *ir.Expr
	if d.ps == 1 {
		cond = ir.Binary(ir.OpLand, a, b)
	} else {
		cond = ir.Binary(ir.OpLior, AsCompare(a).Negate().Expr(), AsCompare(b).Negate().Expr())
	}

	/* fuse the diamond */
	self.fuse(d, cond, ir.BrTrue)
	return true
}

// foldSequentialConds merges a diamond whose conditions towards the shared
// successor are both non-zero tests into one test of the bitwise or of the
// two operands. Masks of the same value are folded into one mask.
func (self *simplifier) foldSequentialConds(bb *cfg.BasicBlock) bool {
	d, ok := self.matchDiamond(bb)
	if !ok {
		return false
	}

	/* both conditions must test something against zero */
	x, ok1 := nonZeroOperand(condOn(d.p, d.pc()))
	y, ok2 := nonZeroOperand(condOn(d.s, d.sc))
	if !ok1 || !ok2 {
		return false
	}

	/* y is evaluated unconditionally afterwards */
	if !IsSafeExpr(y) || !isPure(y) {
		return false
	}

	/* combine the two operands */
	cond := ir.Binary(ir.OpNe, orOperands(x, y), ir.Const(0))
	br := ir.BrTrue

	/* the branch is taken towards c */
	if d.pc() == 0 {
		br = ir.BrFalse
	}

	/* fuse the diamond */
	self.fuse(d, cond, br)
	return true
}

// nonZeroOperand returns x if cond holds exactly when x is non-zero.
func nonZeroOperand(cond *ir.Expr) (*ir.Expr, bool) {
	c := AsCompare(cond)
	switch {
	case c.Op != ir.OpNe:
		return nil, false
	case isZero(c.Y):
		return c.X, true
	case isZero(c.X):
		return c.Y, true
	default:
		return nil, false
	}
}

// orOperands builds x | y, folding "(v & m1) | (v & m2)" into "v & (m1|m2)".
func orOperands(x *ir.Expr, y *ir.Expr) *ir.Expr {
	if x.Op == ir.OpAnd && y.Op == ir.OpAnd && x.Y().IsConst() && y.Y().IsConst() && x.X().Equal(y.X()) {
		return ir.Binary(ir.OpAnd, x.X(), ir.Const(x.Y().Imm|y.Y().Imm))
	} else {
		return ir.Binary(ir.OpOr, x, y)
	}
}
