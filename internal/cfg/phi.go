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

package cfg

import (
	"github.com/cloudwego/meopt/internal/ir"
)

// UpdatePhiForMovingPred fixes the phis of from and to after the edge
// pred -> from has been redirected to pred -> to. predIdx is the slot the
// edge occupied in from and must be captured before the redirection,
// newIdx is the slot it occupies in to now.
//
// When to has no phis yet, they are seeded from the phis of from: every
// other predecessor receives the old phi output of from, the moved edge
// receives the operand pred used to pass to from. When to already has
// phis, the moved edge receives the operand from the phi of from, or the
// value to already receives from from. The stale operand is dropped from
// the phis of from in both cases.
func (self *Func) UpdatePhiForMovingPred(predIdx int, newIdx int, pred *BasicBlock, from *BasicBlock, to *BasicBlock) {
	if len(to.Phis) == 0 {
		self.seedPhis(predIdx, newIdx, from, to)
	} else {
		self.insertPhiOpnds(predIdx, newIdx, from, to)
	}

	/* drop the stale operands */
	for _, p := range from.Phis {
		if len(p.Opnds) != len(from.Pred)+1 {
			panic(Invariantf(from.Id, nil, "phi %s is out of sync with the predecessors of %s", p, pred.Id))
		} else {
			p.Opnds = removeValue(p.Opnds, predIdx)
		}
	}
}

func (self *Func) seedPhis(predIdx int, newIdx int, from *BasicBlock, to *BasicBlock) {
	if len(from.Phis) != 0 {
		to.Phis = make(map[ir.Var]*Phi, len(from.Phis))
	}

	/* replicate every phi of from */
	for v, p := range from.Phis {
		np := &Phi{
			Block:  to.Id,
			Var:    v,
			Result: self.NewVersion(v),
			Opnds:  make([]ir.Value, len(to.Pred)),
		}

		/* every other path carries the old output of from */
		for i := range np.Opnds {
			np.Opnds[i] = p.Result
		}

		/* the moved edge carries what pred used to pass to from */
		np.Opnds[newIdx] = p.Opnds[predIdx]
		to.Phis[v] = np
		self.AddCand(v, to.Id)
	}
}

func (self *Func) insertPhiOpnds(predIdx int, newIdx int, from *BasicBlock, to *BasicBlock) {
	k := to.PredIndex(from.Id)

	/* the phi operands have not been shifted yet */
	if k > newIdx {
		k--
	}

	/* insert the operand for the moved edge */
	for v, p := range to.Phis {
		if fp := from.Phis[v]; fp != nil {
			p.Opnds = insertValue(p.Opnds, newIdx, fp.Opnds[predIdx])
		} else if k >= 0 {
			p.Opnds = insertValue(p.Opnds, newIdx, p.Opnds[k])
		} else {
			p.Opnds = insertValue(p.Opnds, newIdx, ir.V(v, 0))
			self.AddCand(v, to.Id)
		}
	}

	/* variables merged by from but not by to need a rebuild */
	for v := range from.Phis {
		if to.Phis[v] == nil {
			self.AddCand(v, to.Id)
		}
	}
}

// FoldTrivialPhis removes the phis of bb that select a single value, either
// because bb has a single predecessor or because all operands other than
// the phi itself are the same value. Uses of the removed phis are replaced
// throughout the function.
func (self *Func) FoldTrivialPhis(bb *BasicBlock) bool {
	var ok bool
	var rs bool

	/* removing one phi may make another trivial */
	for rs = true; rs; {
		rs = false
		for _, p := range bb.SortedPhis() {
			if v, trivial := trivialValue(p); trivial {
				rs, ok = true, true
				delete(bb.Phis, p.Var)
				self.ReplaceUses(p.Result, v)
			}
		}
	}

	/* release the map */
	if len(bb.Phis) == 0 {
		bb.Phis = nil
	}
	return ok
}

func trivialValue(p *Phi) (ir.Value, bool) {
	var ok bool
	var rv ir.Value

	/* find the only operand that is not a self reference */
	for _, v := range p.Opnds {
		if v == p.Result {
			continue
		} else if !ok {
			rv, ok = v, true
		} else if v != rv {
			return ir.Value{}, false
		}
	}

	/* a phi with no operands at all is left for dead block elimination */
	return rv, ok
}
