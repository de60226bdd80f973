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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cloudwego/meopt/internal/cfg"
	"github.com/cloudwego/meopt/internal/ir"
)

func TestDominatorTree_Diamond(t *testing.T) {
	b := cfg.NewBuilder("diamond")
	b.Block("entry")
	b.CondGoto(ir.BrTrue, ir.Binary(ir.OpGt, ir.Ref(ir.V(1, 0)), ir.Const(0)), "then")
	b.Block("else")
	b.Goto("join")
	b.Block("then")
	b.Block("join")
	b.Return()
	fn := b.Build()
	dt := BuildDominatorTree(fn)
	require.Equal(t, cfg.CommonEntry, dt.DominatedBy[b.Id("entry")])
	require.Equal(t, b.Id("entry"), dt.DominatedBy[b.Id("join")])
	require.Equal(t, []cfg.BBId{b.Id("else"), b.Id("then"), b.Id("join")}, dt.DominatorOf[b.Id("entry")])
	require.Equal(t, []cfg.BBId{b.Id("join")}, dt.DominanceFrontier[b.Id("else")])
	require.Equal(t, []cfg.BBId{b.Id("join")}, dt.DominanceFrontier[b.Id("then")])
	require.Empty(t, dt.DominanceFrontier[b.Id("entry")])
}

func TestUpdater_Merge(t *testing.T) {
	b := cfg.NewBuilder("merge")
	b.Block("entry")
	b.CondGoto(ir.BrTrue, ir.Binary(ir.OpGt, ir.Ref(ir.V(1, 0)), ir.Const(0)), "b")
	b.Block("a")
	b.Assign(ir.V(2, 1), ir.Const(1))
	b.Goto("j")
	b.Block("b")
	b.Assign(ir.V(2, 2), ir.Const(2))
	b.Block("j")
	b.Return(ir.Ref(ir.V(2, 1)))
	fn := b.Build()
	j := fn.Block(b.Id("j"))
	fn.AddCand(2, j.Id)
	Updater{}.Update(fn)
	require.Empty(t, fn.Cands)
	require.Equal(t, ir.V(2, 3), j.Phis[2].Result)
	require.Equal(t, []ir.Value{ir.V(2, 1), ir.V(2, 2)}, j.Phis[2].Opnds)
	require.Equal(t, ir.V(2, 3), j.Last().(*ir.Return).Vals[0].Val)
	fn.Verify()
}

func TestUpdater_Loop(t *testing.T) {
	b := cfg.NewBuilder("loop")
	b.Block("entry")
	b.Assign(ir.V(1, 1), ir.Const(0))
	b.Block("loop")
	b.Assign(ir.V(1, 2), ir.Binary(ir.OpAdd, ir.Ref(ir.V(1, 1)), ir.Const(1)))
	b.CondGoto(ir.BrTrue, ir.Binary(ir.OpLt, ir.Ref(ir.V(1, 2)), ir.Const(10)), "loop")
	b.Block("exit")
	b.Return(ir.Ref(ir.V(1, 2)))
	fn := b.Build()
	loop := fn.Block(b.Id("loop"))
	fn.AddCand(1, loop.Id)
	Updater{}.Update(fn)
	require.Equal(t, ir.V(1, 3), loop.Phis[1].Result)
	require.Equal(t, []ir.Value{ir.V(1, 1), ir.V(1, 2)}, loop.Phis[1].Opnds)
	require.Equal(t, ir.V(1, 3), loop.Stmts[0].(*ir.Assign).Rhs.X().Val)
	require.Equal(t, ir.V(1, 2), fn.Block(b.Id("exit")).Last().(*ir.Return).Vals[0].Val)
	require.Nil(t, fn.Block(b.Id("exit")).Phis[1])
	fn.Verify()
}

func TestUpdater_EntryPhi(t *testing.T) {
	b := cfg.NewBuilder("head")
	b.Block("head")
	b.Assign(ir.V(1, 1), ir.Binary(ir.OpAdd, ir.Ref(ir.V(1, 0)), ir.Const(1)))
	b.CondGoto(ir.BrTrue, ir.Ref(ir.V(1, 1)), "head")
	b.Block("exit")
	b.Return()
	fn := b.Build()
	head := fn.Block(b.Id("head"))
	fn.AddCand(1, head.Id)
	Updater{}.Update(fn)
	fn.Verify()

	/* a new block enters the loop */
	require.False(t, head.Has(cfg.AttrEntry))
	require.Len(t, fn.Entries(), 1)
	pre := fn.Entries()[0]
	require.Empty(t, pre.Pred)
	require.Equal(t, []cfg.BBId{head.Id}, pre.Succ)
	require.Equal(t, []cfg.BBId{head.Id, pre.Id}, head.Pred)

	/* the entry value comes in through it */
	require.Equal(t, ir.V(1, 2), head.Phis[1].Result)
	require.Equal(t, []ir.Value{ir.V(1, 1), ir.V(1, 0)}, head.Phis[1].Opnds)
	require.Equal(t, ir.V(1, 2), head.Stmts[0].(*ir.Assign).Rhs.X().Val)
}

func TestSplitEntry_Freq(t *testing.T) {
	b := cfg.NewBuilder("head")
	b.Block("head")
	b.Freq(10, 6, 4)
	b.CondGoto(ir.BrTrue, ir.Ref(ir.V(1, 0)), "head")
	b.Block("exit")
	b.Freq(6)
	b.Return()
	fn := b.Build()
	head := fn.Block(b.Id("head"))
	pre := fn.SplitEntry(head)
	fn.Verify()
	require.Equal(t, uint64(6), pre.Freq)
	require.Equal(t, []uint64{6}, pre.SuccFreq)
	require.Equal(t, uint64(10), head.Freq)
	require.True(t, pre.Has(cfg.AttrEntry))
}

func TestUpdater_NoCandidates(t *testing.T) {
	b := cfg.NewBuilder("empty")
	b.Block("entry")
	b.Return()
	fn := b.Build()
	Updater{}.Update(fn)
	require.Empty(t, fn.Cands)
}
