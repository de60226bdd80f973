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
	"fmt"

	"github.com/cloudwego/meopt/internal/ir"
)

// InvariantError describes a violated structural invariant. It is raised
// with panic and means an upstream collaborator produced an inconsistent
// graph, it is never recovered inside the engine.
type InvariantError struct {
	Block  BBId
	Stmt   ir.Stmt
	Reason string
}

func (self *InvariantError) Error() string {
	if self.Stmt == nil {
		return fmt.Sprintf("internal error at %s: %s", self.Block, self.Reason)
	} else {
		return fmt.Sprintf("internal error at %s (%s): %s", self.Block, self.Stmt, self.Reason)
	}
}

// Invariantf builds an InvariantError with a formatted reason.
func Invariantf(id BBId, stmt ir.Stmt, reason string, args ...interface{}) *InvariantError {
	return &InvariantError{
		Block:  id,
		Stmt:   stmt,
		Reason: fmt.Sprintf(reason, args...),
	}
}

// Verify checks every structural invariant of the function and panics with
// an *InvariantError on the first violation.
func (self *Func) Verify() {
	self.verifySentinels()
	self.verifyLabels()

	/* check every live block */
	for _, bb := range self.Blocks() {
		self.verifyEdges(bb)
		self.verifyPhis(bb)
		self.verifyTerm(bb)
		self.verifyFreq(bb)
		self.verifyFallthrough(bb)
	}
}

func (self *Func) verifySentinels() {
	ce := self.CommonEntry()
	cx := self.CommonExit()

	/* sentinels never carry real edges */
	if len(ce.Pred) != 0 || len(cx.Succ) != 0 {
		panic(Invariantf(CommonEntry, nil, "sentinel blocks with real edges"))
	}

	/* every virtual entry edge points to an entry block */
	for _, id := range ce.Succ {
		if !self.Block(id).Has(AttrEntry) {
			panic(Invariantf(id, nil, "reachable from %s but not marked as entry", CommonEntry))
		}
	}

	/* every entry block is registered */
	for _, bb := range self.Blocks() {
		if bb.Has(AttrEntry) && ce.SuccIndex(bb.Id) < 0 {
			panic(Invariantf(bb.Id, nil, "entry block is not registered with %s", CommonEntry))
		}
	}

	/* every exit edge points to a live block */
	for _, id := range cx.Pred {
		self.Block(id)
	}
}

func (self *Func) verifyLabels() {
	for l, id := range self.labels {
		if self.Block(id).Label != l {
			panic(Invariantf(id, nil, "label %s is bound to a block that does not carry it", l))
		}
	}
}

func (self *Func) verifyEdges(bb *BasicBlock) {
	for _, id := range bb.Succ {
		if id == CommonEntry || id == CommonExit {
			panic(Invariantf(bb.Id, nil, "sentinel %s used as a real successor", id))
		} else if n, m := count(bb.Succ, id), count(self.Block(id).Pred, bb.Id); n != m {
			panic(Invariantf(bb.Id, nil, "%d edges to %s but %d back edges", n, id, m))
		}
	}
	for _, id := range bb.Pred {
		if id == CommonEntry || id == CommonExit {
			panic(Invariantf(bb.Id, nil, "sentinel %s used as a real predecessor", id))
		} else if n, m := count(bb.Pred, id), count(self.Block(id).Succ, bb.Id); n != m {
			panic(Invariantf(bb.Id, nil, "%d edges from %s but %d forward edges", n, id, m))
		}
	}
}

func (self *Func) verifyPhis(bb *BasicBlock) {
	for v, p := range bb.Phis {
		if p.Var != v || p.Result.Var != v {
			panic(Invariantf(bb.Id, nil, "phi %s is filed under %%v%d", p, v))
		} else if p.Block != bb.Id {
			panic(Invariantf(bb.Id, nil, "phi %s belongs to %s", p, p.Block))
		} else if len(p.Opnds) != len(bb.Pred) {
			panic(Invariantf(bb.Id, nil, "phi %s has %d operands but the block has %d predecessors", p, len(p.Opnds), len(bb.Pred)))
		}
	}
}

func (self *Func) verifyTerm(bb *BasicBlock) {
	for _, s := range bb.Body() {
		if ir.IsTerminator(s) {
			panic(Invariantf(bb.Id, s, "terminator in the middle of a block"))
		}
	}

	/* check the terminator against the kind */
	switch bb.Kind {
	case KindFallthrough:
		self.expectSucc(bb, 1)
	case KindGoto:
		self.expectSucc(bb, 1)
		self.expectTarget(bb, bb.Goto().Target, bb.Succ[0])
	case KindCondGoto:
		self.expectSucc(bb, 2)
		self.expectTarget(bb, bb.CondGoto().Target, bb.Succ[1])
	case KindSwitch:
		self.verifySwitch(bb)
	case KindReturn:
		self.expectSucc(bb, 0)
		if _, ok := bb.Last().(*ir.Return); !ok {
			panic(Invariantf(bb.Id, bb.Last(), "return block without a return terminator"))
		}
	case KindNoReturn:
		self.expectSucc(bb, 0)
	default:
		panic(Invariantf(bb.Id, nil, "block kind is %s", bb.Kind))
	}
}

func (self *Func) verifySwitch(bb *BasicBlock) {
	sw := bb.Switch()
	seen := make(map[BBId]bool, len(bb.Succ))

	/* switch successors are unique */
	for _, id := range bb.Succ {
		if seen[id] {
			panic(Invariantf(bb.Id, sw, "duplicated switch successor %s", id))
		}
		seen[id] = true
	}

	/* the default target is always the first successor */
	if len(bb.Succ) == 0 {
		panic(Invariantf(bb.Id, sw, "switch without successors"))
	}

	/* every target must be a successor, and every successor a target */
	used := map[BBId]bool{self.expectTarget(bb, sw.Default, bb.Succ[0]): true}
	for _, c := range sw.Cases {
		if id := self.BlockOf(c.Target).Id; !seen[id] {
			panic(Invariantf(bb.Id, sw, "case %d jumps to %s which is not a successor", c.Value, id))
		} else {
			used[id] = true
		}
	}

	/* no dangling successors */
	if len(used) != len(bb.Succ) {
		panic(Invariantf(bb.Id, sw, "switch has successors that no case jumps to"))
	}
}

func (self *Func) verifyFreq(bb *BasicBlock) {
	if !self.TrackFreq {
		return
	}

	/* one frequency per edge */
	if len(bb.SuccFreq) != len(bb.Succ) {
		panic(Invariantf(bb.Id, nil, "%d edge frequencies for %d successors", len(bb.SuccFreq), len(bb.Succ)))
	}

	/* outgoing frequencies sum up to the block frequency */
	if len(bb.Succ) != 0 {
		if sum := sumFreq(bb.SuccFreq); sum != bb.Freq {
			panic(Invariantf(bb.Id, nil, "edge frequencies sum up to %d, block frequency is %d", sum, bb.Freq))
		}
	}
}

func (self *Func) verifyFallthrough(bb *BasicBlock) {
	var n int
	var seen map[BBId]bool

	/* count the distinct fallthrough predecessors */
	for _, id := range bb.Pred {
		if p := self.Block(id); !seen[id] && p.FallsInto(bb.Id) {
			n++
			if seen == nil {
				seen = make(map[BBId]bool)
			}
			seen[id] = true
		}
	}

	/* at most one of them */
	if n > 1 {
		panic(Invariantf(bb.Id, nil, "%d fallthrough predecessors", n))
	}
}

func (self *Func) expectSucc(bb *BasicBlock, n int) {
	if len(bb.Succ) != n {
		panic(Invariantf(bb.Id, bb.Term(), "%s block with %d successors", bb.Kind, len(bb.Succ)))
	}
}

func (self *Func) expectTarget(bb *BasicBlock, l ir.Label, id BBId) BBId {
	if to := self.BlockOf(l).Id; to != id {
		panic(Invariantf(bb.Id, bb.Term(), "branch target %s resolves to %s, expected %s", l, to, id))
	} else {
		return to
	}
}

func count(v []BBId, id BBId) (n int) {
	for _, p := range v {
		if p == id {
			n++
		}
	}
	return
}
