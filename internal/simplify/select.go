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

// _Arm is one side of a branch that converges on a join block, either
// directly or through a block holding a single assignment. Both edges of a
// branch may enter the join directly, with different phi operands.
type _Arm struct {
	bb   *cfg.BasicBlock
	def  *ir.Assign
	from *cfg.BasicBlock
	edge int
}

// value returns the expression that produces v on this arm.
func (self *_Arm) value(v ir.Value) *ir.Expr {
	if self.def != nil && self.def.Def == v {
		return self.def.Rhs.Clone()
	} else {
		return ir.Ref(v)
	}
}

func (self *simplifier) matchArm(bb *cfg.BasicBlock, i int) (ret _Arm) {
	a := self.fn.Block(bb.Succ[i])
	ret.from, ret.edge = bb, i

	/* must be a plain block with a single predecessor */
	if a == bb || len(a.Pred) != 1 || len(a.Succ) != 1 || len(a.Phis) != 0 || a.Has(cfg.AttrEntry) || !sameTry(bb, a) {
		return
	}

	/* holding a single assignment */
	if (a.Kind != cfg.KindFallthrough && a.Kind != cfg.KindGoto) || len(a.Body()) != 1 {
		return
	}

	/* found an arm block */
	if def, ok := a.Body()[0].(*ir.Assign); ok {
		ret = _Arm{bb: a, def: def, from: a, edge: 0}
	}
	return
}

// join returns the block the arm converges on.
func (self *_Arm) join(fn *cfg.Func) *cfg.BasicBlock {
	return fn.Block(self.from.Succ[self.edge])
}

// condToSelect replaces a branch whose arms only choose between values
// with select expressions computed in the branch block itself.
func (self *simplifier) condToSelect(bb *cfg.BasicBlock) bool {
	fn := self.fn
	br := bb.CondGoto()
	arms := [2]_Arm{self.matchArm(bb, 0), self.matchArm(bb, 1)}

	/* both arms must converge, possibly both directly */
	j := arms[0].join(fn)
	if j != arms[1].join(fn) || j == bb {
		return false
	}

	/* the condition is evaluated once more per select */
	if !isPure(br.Cond) {
		return false
	}

	/* the assignments are executed unconditionally afterwards */
	for _, a := range arms {
		if a.def != nil && (!IsSafeExpr(a.def.Rhs) || !isPure(a.def.Rhs) || !profitableSelect(a.def.Rhs, br.Cond)) {
			return false
		}
	}

	/* find the values that differ between the two arms */
	var sel []*cfg.Phi
	for _, ph := range j.SortedPhis() {
		if ph.Opnds[fn.EdgeSlot(arms[0].from, arms[0].edge)] != ph.Opnds[fn.EdgeSlot(arms[1].from, arms[1].edge)] {
			sel = append(sel, ph)
		}
	}

	/* a condition that may trap is only evaluated once */
	if len(sel) > 1 && !IsSafeExpr(br.Cond) {
		return false
	}

	/* compute the merged values */
	k := bb.TakenIndex()
	vals := make(map[ir.Var]ir.Value, len(j.Phis))
	stmts := make([]ir.Stmt, 0, len(sel))

	/* values that agree are passed as is */
	for v, ph := range j.Phis {
		vals[v] = ph.Opnds[fn.EdgeSlot(arms[0].from, arms[0].edge)]
	}

	/* the others are selected on the condition */
	for _, ph := range sel {
		x := ph.Opnds[fn.EdgeSlot(arms[k].from, arms[k].edge)]
		y := ph.Opnds[fn.EdgeSlot(arms[1-k].from, arms[1-k].edge)]
		r := fn.NewVersion(ph.Var)
		vals[ph.Var] = r
		stmts = append(stmts, &ir.Assign{Def: r, Rhs: ir.Select(br.Cond.Clone(), arms[k].value(x), arms[1-k].value(y))})
	}

	/* replace the branch with the selects */
	jf := j.Freq
	bb.RemoveTerm()
	bb.Stmts = append(bb.Stmts, stmts...)

	/* drop both arms */
	for i := 1; i >= 0; i-- {
		fn.RemoveSuccAt(bb, i, true)
		if a := arms[i].bb; a != nil {
			fn.RemoveAllSuccs(a, true)
			fn.DeleteBlock(a)
		}
	}

	/* link straight to the join */
	fn.AddSucc(bb, j, false)
	fn.AppendPhiOpnds(j, vals)
	fn.SetFreq(bb, bb.Freq)
	fn.SetFreq(j, jf)

	/* fall into the join if possible */
	if fn.CanFallInto(bb, j) {
		bb.Kind = cfg.KindFallthrough
	} else {
		bb.Kind = cfg.KindGoto
		bb.Stmts = append(bb.Stmts, &ir.Goto{Target: fn.LabelOf(j)})
	}
	return true
}
