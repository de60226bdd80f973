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
	"fmt"
	"io"
	"sort"

	"github.com/cloudwego/meopt/internal/cfg"
	"github.com/cloudwego/meopt/internal/opts"
	"github.com/davecgh/go-spew/spew"
	"github.com/fatih/color"
)

// Phase is the name of the engine in dump filters.
const Phase = "simplify"

// Stats counts how many times each rewrite has been applied.
type Stats map[string]int

// Names returns the rewrite names in alphabetical order.
func (self Stats) Names() []string {
	ret := make([]string, 0, len(self))
	for k := range self {
		ret = append(ret, k)
	}
	sort.Strings(ret)
	return ret
}

// Total returns the number of rewrites applied.
func (self Stats) Total() (n int) {
	for _, v := range self {
		n += v
	}
	return
}

// Result describes one run of the engine.
type Result struct {
	Changed bool
	Rounds  int
	Removed int
	Stats   Stats
}

type rewrite struct {
	name string
	fn   func(*simplifier, *cfg.BasicBlock) bool
}

type simplifier struct {
	fn    *cfg.Func
	opts  *opts.Options
	stats Stats
}

var _Catalog [cfg.NumKinds][]rewrite

func init() {
	generic := []rewrite{
		{"eliminate-dead-block", (*simplifier).eliminateDeadBlock},
		{"fold-trivial-phis", (*simplifier).foldTrivialPhis},
		{"disconnect-noreturn", (*simplifier).disconnectNoReturn},
		{"merge-distinct-pair", (*simplifier).mergeDistinctPair},
	}

	/* every kind gets the generic rewrites */
	for k := range _Catalog {
		_Catalog[k] = append(_Catalog[k], generic...)
	}

	/* conditional branches */
	_Catalog[cfg.KindCondGoto] = append(_Catalog[cfg.KindCondGoto],
		rewrite{"cond-to-uncond", (*simplifier).condToUncond},
		rewrite{"fold-sequential-conds", (*simplifier).foldSequentialConds},
		rewrite{"skip-redundant-cond", (*simplifier).skipRedundantCond},
		rewrite{"fold-common-dest", (*simplifier).foldCommonDest},
		rewrite{"cond-to-select", (*simplifier).condToSelect},
	)

	/* empty blocks falling into the next one */
	_Catalog[cfg.KindFallthrough] = append(_Catalog[cfg.KindFallthrough],
		rewrite{"eliminate-connector", (*simplifier).eliminateConnector},
	)

	/* unconditional jumps */
	_Catalog[cfg.KindGoto] = append(_Catalog[cfg.KindGoto],
		rewrite{"merge-goto-into-preds", (*simplifier).mergeGotoIntoPreds},
	)

	/* switches */
	_Catalog[cfg.KindSwitch] = append(_Catalog[cfg.KindSwitch],
		rewrite{"constant-switch", (*simplifier).constantSwitch},
		rewrite{"single-target-switch", (*simplifier).singleTargetSwitch},
	)
}

// Run simplifies fn until a fixed point is reached. The SSA candidate set
// accumulated on fn is left for the caller to hand off.
func Run(fn *cfg.Func, opt opts.Options) Result {
	ret := Result{Stats: make(Stats)}
	sim := &simplifier{fn: fn, opts: &opt, stats: ret.Stats}

	/* the profile is dropped when frequencies are not tracked */
	if !opt.TrackFreq && fn.TrackFreq {
		fn.DropFreq()
	}

	/* dump the input */
	sim.dump("before")

	/* iterate until nothing changes */
	for rs := true; rs; ret.Rounds++ {
		n := sim.removeUnreachable()
		rs = n != 0
		ret.Removed += n

		/* try every block that is still alive */
		for _, bb := range fn.Blocks() {
			if fn.Lookup(bb.Id) == bb && sim.simplifyBlock(bb) {
				rs = true
			}
		}

		/* rewrites may leave unreachable regions behind */
		n = sim.removeUnreachable()
		rs = rs || n != 0
		ret.Removed += n
		ret.Changed = ret.Changed || rs
	}

	/* dump the output */
	sim.dump("after")
	record(&ret)
	return ret
}

// simplifyBlock applies the catalog to bb until no rewrite applies or the
// block is gone, restarting from the top after every successful rewrite.
func (self *simplifier) simplifyBlock(bb *cfg.BasicBlock) bool {
	ok := false
	rs := true

	/* the kind may change after every rewrite */
	for rs {
		rs = false
		for _, rw := range _Catalog[bb.Kind] {
			if rw.fn(self, bb) {
				rs, ok = true, true
				self.applied(rw.name)
				break
			}
		}

		/* the block may have been absorbed or removed */
		if self.fn.Lookup(bb.Id) != bb {
			break
		}
	}
	return ok
}

func (self *simplifier) applied(name string) {
	self.stats[name]++
	if self.opts.Verify {
		self.fn.Verify()
	}
}

func (self *simplifier) dump(when string) {
	if self.opts.CanDump(self.fn.Name, Phase) {
		w := self.opts.Output()
		self.header(w, when)
		fmt.Fprint(w, self.fn)
		if when == "after" {
			spew.Fdump(w, self.stats)
		}
	}
}

func (self *simplifier) header(w io.Writer, when string) {
	fmt.Fprintln(w, color.New(color.FgCyan, color.Bold).Sprintf("=== %s %s: %s ===", Phase, when, self.fn.Name))
}

func (self *simplifier) addFreq(bb *cfg.BasicBlock, f uint64) {
	if f != 0 {
		self.fn.SetFreq(bb, bb.Freq+f)
	}
}

func (self *simplifier) subFreq(bb *cfg.BasicBlock, f uint64) {
	if f > bb.Freq {
		f = bb.Freq
	}
	if f != 0 {
		self.fn.SetFreq(bb, bb.Freq-f)
	}
}

// shiftWeight moves the weight of the i-th out edge of bb onto its j-th
// out edge, along with the targets' frequencies.
func (self *simplifier) shiftWeight(bb *cfg.BasicBlock, i int, j int) {
	if f := self.fn.EdgeFreq(bb, i); f != 0 {
		bb.SuccFreq[i] = 0
		bb.SuccFreq[j] += f
		self.subFreq(self.fn.Block(bb.Succ[i]), f)
		self.addFreq(self.fn.Block(bb.Succ[j]), f)
	}
}

// realPred follows pb, a predecessor of s, backwards over connector blocks.
// It returns the first real block p on the way, and h, the block that p
// branches to on its path to s. Paths through an entry block are not
// followed.
func (self *simplifier) realPred(s *cfg.BasicBlock, pb *cfg.BasicBlock) (p *cfg.BasicBlock, h *cfg.BasicBlock, ok bool) {
	if p = self.fn.FindFirstRealPred(pb); p == pb {
		return p, s, true
	}

	/* find the head of the chain */
	for h = pb; ; h = self.fn.Block(h.Pred[0]) {
		if h.Has(cfg.AttrEntry) || !sameTry(h, s) {
			return nil, nil, false
		} else if h.Pred[0] == p.Id {
			return p, h, true
		}
	}
}

// uniquePreds returns the distinct predecessors of bb, in order.
func uniquePreds(bb *cfg.BasicBlock) []cfg.BBId {
	ret := make([]cfg.BBId, 0, len(bb.Pred))
	for _, id := range bb.Pred {
		if !containsId(ret, id) {
			ret = append(ret, id)
		}
	}
	return ret
}

func containsId(v []cfg.BBId, id cfg.BBId) bool {
	for _, p := range v {
		if p == id {
			return true
		}
	}
	return false
}

// sameTry reports whether all the blocks are in the same try region.
func sameTry(bbs ...*cfg.BasicBlock) bool {
	for _, bb := range bbs[1:] {
		if bb.Has(cfg.AttrTry) != bbs[0].Has(cfg.AttrTry) {
			return false
		}
	}
	return true
}
