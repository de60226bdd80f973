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

// AddSucc appends the edge bb -> to and returns its predecessor slot in to.
// With updatePhi, every phi in to receives an operand for the new edge:
// the operand of an existing parallel edge if there is one, otherwise the
// entry value of the variable, which is recorded as an SSA candidate.
func (self *Func) AddSucc(bb *BasicBlock, to *BasicBlock, updatePhi bool) int {
	j := len(to.Pred)
	k := to.PredIndex(bb.Id)

	/* link the edge */
	bb.Succ = append(bb.Succ, to.Id)
	to.Pred = append(to.Pred, bb.Id)

	/* new edges carry no weight */
	if self.TrackFreq {
		bb.SuccFreq = append(bb.SuccFreq, 0)
	}

	/* add the phi operands */
	if updatePhi {
		for v, p := range to.Phis {
			if k >= 0 {
				p.Opnds = append(p.Opnds, p.Opnds[k])
			} else {
				p.Opnds = append(p.Opnds, ir.V(v, 0))
				self.AddCand(v, to.Id)
			}
		}
	}

	/* the predecessor slot */
	return j
}

// RemoveSuccAt removes the i-th outgoing edge of bb and returns the
// predecessor slot it occupied in the successor. With updatePhi, the
// matching operand is removed from every phi of the successor. The weight
// of the removed edge is folded into the remaining edges of bb.
func (self *Func) RemoveSuccAt(bb *BasicBlock, i int, updatePhi bool) int {
	to := self.Block(bb.Succ[i])
	j := indexOf(to.Pred, bb.Id, occurrence(bb.Succ, i))

	/* the edges must be symmetric */
	if j < 0 {
		panic(Invariantf(bb.Id, nil, "edge to %s has no back edge", to.Id))
	}

	/* unlink the edge */
	bb.Succ = removeAt(bb.Succ, i)
	to.Pred = removeAt(to.Pred, j)

	/* remove the phi operands */
	if updatePhi {
		for _, p := range to.Phis {
			p.Opnds = removeValue(p.Opnds, j)
		}
	}

	/* fold the edge weight into the remaining edges */
	if self.TrackFreq {
		f := bb.SuccFreq[i]
		bb.SuccFreq = removeFreq(bb.SuccFreq, i)
		rescale(bb.SuccFreq, bb.Freq)
		self.subFreq(to, f)
	}

	/* the removed slot */
	return j
}

// RemoveSucc removes the first edge bb -> to.
func (self *Func) RemoveSucc(bb *BasicBlock, to *BasicBlock, updatePhi bool) int {
	if i := bb.SuccIndex(to.Id); i < 0 {
		panic(Invariantf(bb.Id, nil, "%s is not a successor", to.Id))
	} else {
		return self.RemoveSuccAt(bb, i, updatePhi)
	}
}

// RemoveAllSuccs drops every outgoing edge of bb.
func (self *Func) RemoveAllSuccs(bb *BasicBlock, updatePhi bool) {
	for len(bb.Succ) != 0 {
		self.RemoveSuccAt(bb, len(bb.Succ)-1, updatePhi)
	}
}

// ReplaceSuccAt redirects the i-th outgoing edge of bb to to, retargeting
// the terminator label and keeping the edge frequency. With updatePhi, the
// phi operands are moved along with the edge, phis of unrelated edges are
// left alone.
func (self *Func) ReplaceSuccAt(bb *BasicBlock, i int, to *BasicBlock, updatePhi bool) {
	from := self.Block(bb.Succ[i])
	slot := indexOf(from.Pred, bb.Id, occurrence(bb.Succ, i))

	/* nothing to do */
	if from == to {
		return
	}

	/* the edges must be symmetric */
	if slot < 0 {
		panic(Invariantf(bb.Id, nil, "edge to %s has no back edge", from.Id))
	}

	/* move the edge */
	from.Pred = removeAt(from.Pred, slot)
	bb.Succ[i] = to.Id
	next := insertPred(to, bb.Id, occurrence(bb.Succ, i))

	/* retarget the branch, and move the edge weight */
	self.retarget(bb, i, from, to)
	self.moveFreq(from, to, self.EdgeFreq(bb, i))

	/* move the phi operands */
	if updatePhi {
		self.UpdatePhiForMovingPred(slot, next, bb, from, to)
	}
}

// ReplaceSucc redirects the first edge bb -> from to to.
func (self *Func) ReplaceSucc(bb *BasicBlock, from *BasicBlock, to *BasicBlock, updatePhi bool) {
	if i := bb.SuccIndex(from.Id); i < 0 {
		panic(Invariantf(bb.Id, nil, "%s is not a successor", from.Id))
	} else {
		self.ReplaceSuccAt(bb, i, to, updatePhi)
	}
}

func (self *Func) retarget(bb *BasicBlock, i int, from *BasicBlock, to *BasicBlock) {
	switch bb.Kind {
	case KindGoto:
		bb.Goto().Target = self.LabelOf(to)
	case KindCondGoto:
		if i == 1 {
			bb.CondGoto().Target = self.LabelOf(to)
		}
	case KindSwitch:
		self.retargetSwitch(bb.Switch(), from, to)
	}
}

func (self *Func) retargetSwitch(sw *ir.Switch, from *BasicBlock, to *BasicBlock) {
	lb := self.LabelOf(to)
	id := from.Id

	/* the default branch */
	if self.labels[sw.Default] == id {
		sw.Default = lb
	}

	/* every case that jumps to from */
	for i := range sw.Cases {
		if self.labels[sw.Cases[i].Target] == id {
			sw.Cases[i].Target = lb
		}
	}
}

func (self *Func) moveFreq(from *BasicBlock, to *BasicBlock, freq uint64) {
	if self.TrackFreq && freq != 0 {
		self.subFreq(from, freq)
		self.addFreq(to, freq)
	}
}

// FindFirstRealSucc follows single-successor connector blocks starting at
// bb and returns the first block that is not a connector.
func (self *Func) FindFirstRealSucc(bb *BasicBlock) *BasicBlock {
	for n := 0; n < len(self.blocks) && bb.IsConnector(); n++ {
		bb = self.Block(bb.Succ[0])
	}
	return bb
}

// FindFirstRealPred follows connector blocks backwards starting at bb.
func (self *Func) FindFirstRealPred(bb *BasicBlock) *BasicBlock {
	for n := 0; n < len(self.blocks) && bb.IsConnector(); n++ {
		bb = self.Block(bb.Pred[0])
	}
	return bb
}

// FallthroughPred returns the predecessor that falls into bb, or nil.
func (self *Func) FallthroughPred(bb *BasicBlock) *BasicBlock {
	for _, id := range bb.Pred {
		if p := self.Block(id); p.FallsInto(bb.Id) {
			return p
		}
	}
	return nil
}

// CanFallInto reports whether bb may become a fallthrough predecessor of to
// without giving to a second one.
func (self *Func) CanFallInto(bb *BasicBlock, to *BasicBlock) bool {
	p := self.FallthroughPred(to)
	return p == nil || p == bb
}

// MakeJump turns a fallthrough block into an explicit goto.
func (self *Func) MakeJump(bb *BasicBlock) {
	if bb.Kind == KindFallthrough {
		bb.Kind = KindGoto
		bb.Stmts = append(bb.Stmts, &ir.Goto{Target: self.LabelOf(self.Block(bb.Succ[0]))})
	}
}

// EliminateEmptyConnectingBB removes the run of connector blocks that starts
// at empty, a successor of pred, and stops before stop. Afterwards pred is a
// direct predecessor of the first block of the run that could not be
// removed, which is returned.
func (self *Func) EliminateEmptyConnectingBB(pred *BasicBlock, empty *BasicBlock, stop *BasicBlock) *BasicBlock {
	for empty != stop && empty.IsConnector() && empty.Pred[0] == pred.Id {
		i := pred.SuccIndex(empty.Id)
		next := self.Block(empty.Succ[0])

		/* switch successors must stay unique */
		if pred.Kind == KindSwitch && pred.SuccIndex(next.Id) >= 0 {
			break
		}

		/* keep a single fallthrough predecessor */
		if pred.FallsInto(empty.Id) {
			if ft := self.FallthroughPred(next); ft != nil && ft != empty && ft != pred {
				if pred.Kind != KindFallthrough {
					break
				} else {
					self.MakeJump(pred)
				}
			}
		}

		/* relink pred directly to next, in the slot of empty */
		k := indexOf(next.Pred, empty.Id, 0)
		next.Pred = removeAt(next.Pred, k)
		pred.Succ[i] = next.Id
		n := insertPred(next, pred.Id, occurrence(pred.Succ, i))

		/* move the phi operands along with the slot */
		for _, p := range next.Phis {
			v := p.Opnds[k]
			p.Opnds = insertValue(removeValue(p.Opnds, k), n, v)
		}

		/* retarget the branch */
		self.retarget(pred, i, empty, next)

		/* the entry mark moves to the next block */
		if empty.Has(AttrEntry) {
			self.RemoveEntry(empty)
			self.AddEntry(next)
		}

		/* drop the connector */
		empty.Pred = empty.Pred[:0]
		empty.Succ = empty.Succ[:0]
		empty.SuccFreq = empty.SuccFreq[:0]
		self.DeleteBlock(empty)
		empty = next
	}
	return empty
}

// insertPred adds id to the predecessor list of bb so that it becomes the
// n-th occurrence of id, and returns its slot.
func insertPred(bb *BasicBlock, id BBId, n int) int {
	i := indexOf(bb.Pred, id, n)

	/* no such occurrence, append to the end */
	if i < 0 {
		bb.Pred = append(bb.Pred, id)
		return len(bb.Pred) - 1
	}

	/* insert before the current n-th occurrence */
	bb.Pred = append(bb.Pred, 0)
	copy(bb.Pred[i+1:], bb.Pred[i:])
	bb.Pred[i] = id
	return i
}

func removeFreq(v []uint64, i int) []uint64 {
	copy(v[i:], v[i+1:])
	return v[:len(v)-1]
}

func removeValue(v []ir.Value, i int) []ir.Value {
	copy(v[i:], v[i+1:])
	return v[:len(v)-1]
}

func insertValue(v []ir.Value, i int, val ir.Value) []ir.Value {
	v = append(v, ir.Value{})
	copy(v[i+1:], v[i:])
	v[i] = val
	return v
}
