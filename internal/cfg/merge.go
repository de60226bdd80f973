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

// Absorb merges s into p, where p is the only predecessor of s and s is the
// only successor of p. The statements, kind and successors of s move to p,
// and the merged block keeps the lower of the two ids. It returns the
// merged block.
func (self *Func) Absorb(p *BasicBlock, s *BasicBlock) *BasicBlock {
	sid := s.Id
	pid := p.Id

	/* check the shape */
	if p == s || len(s.Pred) != 1 || s.Pred[0] != pid || len(p.Succ) != 1 || p.Succ[0] != sid {
		panic(Invariantf(sid, nil, "cannot merge into %s: not a distinct pair", pid))
	}

	/* the phis of s must be folded first */
	if len(s.Phis) != 0 {
		panic(Invariantf(sid, nil, "cannot merge into %s: block still has phis", pid))
	}

	/* p must not branch anywhere else */
	if p.Kind != KindFallthrough && p.Kind != KindGoto {
		panic(Invariantf(pid, p.Last(), "cannot merge a %s block", p.Kind))
	}

	/* unlink the edge */
	p.RemoveTerm()
	p.Succ = p.Succ[:0]
	s.Pred = s.Pred[:0]

	/* move the statements and the kind */
	p.Stmts = append(p.Stmts, s.Stmts...)
	p.Kind = s.Kind
	s.Stmts = nil

	/* successors of s now come from p, p has no other successor */
	for _, id := range s.Succ {
		replaceAll(self.Block(id).Pred, sid, pid)
	}

	/* take over the outgoing edges */
	p.Succ = append(p.Succ, s.Succ...)
	s.Succ = s.Succ[:0]

	/* take over the edge frequencies */
	if self.TrackFreq {
		p.SuccFreq = append(p.SuccFreq[:0], s.SuccFreq...)
		rescale(p.SuccFreq, p.Freq)
		s.SuccFreq = nil
	}

	/* exit related attributes */
	p.Set(s.Attr & (AttrExit | AttrWontExit))
	if self.CommonExit().PredIndex(sid) >= 0 {
		self.RemoveExit(s)
		self.AddExit(p)
	}

	/* pending SSA candidates follow the statements */
	for _, m := range self.Cands {
		if _, ok := m[sid]; ok {
			m[pid] = struct{}{}
		}
	}

	/* drop the absorbed block, keeping the lower id */
	if self.DeleteBlock(s); sid < pid {
		self.Renumber(p, sid)
	}
	return p
}

// MergeSwitchEdge folds the switch edge bb -> from into the existing edge
// bb -> to: every case that jumps to from jumps to to instead. The phis of
// to must already agree on both paths.
func (self *Func) MergeSwitchEdge(bb *BasicBlock, from *BasicBlock, to *BasicBlock) {
	i := bb.SuccIndex(from.Id)
	j := bb.SuccIndex(to.Id)

	/* both edges must exist */
	if i < 0 || j < 0 || from == to {
		panic(Invariantf(bb.Id, bb.Last(), "cannot merge the switch edge to %s into %s", from.Id, to.Id))
	}

	/* retarget the cases */
	self.retargetSwitch(bb.Switch(), from, to)

	/* the weight travels with the cases */
	if self.TrackFreq {
		f := bb.SuccFreq[i]
		bb.SuccFreq[i] = 0
		bb.SuccFreq[j] += f
		self.moveFreq(from, to, f)
	}

	/* the default target must stay the first successor */
	if self.RemoveSuccAt(bb, i, true); i == 0 {
		k := bb.SuccIndex(to.Id)
		bb.Succ[0], bb.Succ[k] = bb.Succ[k], bb.Succ[0]
		if self.TrackFreq {
			bb.SuccFreq[0], bb.SuccFreq[k] = bb.SuccFreq[k], bb.SuccFreq[0]
		}
	}
}

// DropPhiOpnds removes the operand of slot i from every phi of bb, after
// the edge that occupied it has been removed without updating the phis.
func (self *Func) DropPhiOpnds(bb *BasicBlock, i int) {
	for _, p := range bb.Phis {
		if len(p.Opnds) != len(bb.Pred)+1 {
			panic(Invariantf(bb.Id, nil, "phi %s is out of sync with the predecessors", p))
		} else {
			p.Opnds = removeValue(p.Opnds, i)
		}
	}
}

// AppendPhiOpnds adds one operand per phi of bb for an edge that was added
// without updating the phis. Variables missing from vals receive their
// entry value and are recorded as SSA candidates.
func (self *Func) AppendPhiOpnds(bb *BasicBlock, vals map[ir.Var]ir.Value) {
	for v, p := range bb.Phis {
		if x, ok := vals[v]; ok {
			p.Opnds = append(p.Opnds, x)
		} else {
			p.Opnds = append(p.Opnds, ir.V(v, 0))
			self.AddCand(v, bb.Id)
		}
	}
}
