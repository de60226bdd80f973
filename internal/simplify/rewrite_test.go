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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cloudwego/meopt/internal/cfg"
	"github.com/cloudwego/meopt/internal/ir"
	"github.com/cloudwego/meopt/internal/opts"
)

func newSimplifier(fn *cfg.Func) *simplifier {
	return &simplifier{
		fn:    fn,
		opts:  &opts.Options{TrackFreq: fn.TrackFreq, Verify: true},
		stats: make(Stats),
	}
}

func val(v ir.Var) *ir.Expr {
	return ir.Ref(ir.V(v, 0))
}

func cmp(op ir.Op, x *ir.Expr, y int64) *ir.Expr {
	return ir.Binary(op, x, ir.Const(y))
}

func TestCondToUncond_Constant(t *testing.T) {
	for _, tc := range []struct {
		name string
		br   ir.Br
		cond int64
		want string
	}{
		{"true-taken", ir.BrTrue, 1, "t"},
		{"false-taken", ir.BrTrue, 0, "f"},
		{"true-not-taken", ir.BrFalse, 7, "f"},
		{"false-not-taken", ir.BrFalse, 0, "t"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			b := cfg.NewBuilder(tc.name)
			b.Block("entry")
			b.CondGoto(tc.br, ir.Const(tc.cond), "t")
			b.Block("f")
			b.Return(ir.Const(0))
			b.Block("t")
			b.Return(ir.Const(1))
			fn := b.Build()
			entry := fn.Block(b.Id("entry"))
			require.True(t, newSimplifier(fn).condToUncond(entry))
			require.Equal(t, []cfg.BBId{b.Id(tc.want)}, entry.Succ)
			if tc.want == "t" {
				require.Equal(t, cfg.KindGoto, entry.Kind)
				require.Equal(t, fn.Block(b.Id("t")).Label, entry.Goto().Target)
			} else {
				require.Equal(t, cfg.KindFallthrough, entry.Kind)
				require.Empty(t, entry.Stmts)
			}
			fn.Verify()
		})
	}
}

func TestCondToUncond_SameTarget(t *testing.T) {
	b := cfg.NewBuilder("same")
	b.Block("entry")
	b.Freq(10, 3, 7)
	b.CondGoto(ir.BrTrue, cmp(ir.OpGt, val(1), 0), "c2")
	b.Block("c1")
	b.Freq(3)
	b.Goto("t")
	b.Block("c2")
	b.Freq(7)
	b.Block("t")
	b.Freq(10)
	b.Phi(ir.V(2, 1), cfg.Incoming{"c1": ir.V(2, 0), "c2": ir.V(2, 0)})
	b.Return(ir.Ref(ir.V(2, 1)))
	fn := b.Build()
	entry := fn.Block(b.Id("entry"))
	c1 := fn.Block(b.Id("c1"))
	require.True(t, newSimplifier(fn).condToUncond(entry))
	require.Equal(t, cfg.KindFallthrough, entry.Kind)
	require.Equal(t, []cfg.BBId{c1.Id}, entry.Succ)
	require.Equal(t, []uint64{10}, entry.SuccFreq)
	require.Equal(t, uint64(10), c1.Freq)
	require.Equal(t, uint64(10), fn.Block(b.Id("t")).Freq)
	require.Empty(t, fn.Block(b.Id("c2")).Pred)
	fn.Verify()
}

func TestCondToUncond_DifferentValues(t *testing.T) {
	b := cfg.NewBuilder("differ")
	b.Block("entry")
	b.CondGoto(ir.BrTrue, cmp(ir.OpGt, val(1), 0), "c2")
	b.Block("c1")
	b.Goto("t")
	b.Block("c2")
	b.Block("t")
	b.Phi(ir.V(2, 3), cfg.Incoming{"c1": ir.V(2, 1), "c2": ir.V(2, 2)})
	b.Return(ir.Ref(ir.V(2, 3)))
	fn := b.Build()
	require.False(t, newSimplifier(fn).condToUncond(fn.Block(b.Id("entry"))))
}

func TestEliminateDeadBlock(t *testing.T) {
	b := cfg.NewBuilder("dead")
	b.Block("entry")
	b.Goto("t")
	b.Block("dead")
	b.Assign(ir.V(1, 1), ir.Const(1))
	b.Goto("dead")
	b.Block("t")
	b.Return()
	fn := b.Build()
	sim := newSimplifier(fn)
	require.False(t, sim.eliminateDeadBlock(fn.Block(b.Id("entry"))))
	require.False(t, sim.eliminateDeadBlock(fn.Block(b.Id("t"))))
	require.True(t, sim.eliminateDeadBlock(fn.Block(b.Id("dead"))))
	require.Nil(t, fn.Lookup(b.Id("dead")))
	fn.Verify()
}

func TestDisconnectNoReturn(t *testing.T) {
	abort := &ir.Callee{Name: "abort", NoReturn: true}
	for _, tc := range []struct {
		name string
		stmt ir.Stmt
	}{
		{"null-store", &ir.Store{Addr: ir.Null(), Rhs: ir.Const(1)}},
		{"null-load", &ir.Assign{Def: ir.V(3, 1), Rhs: ir.Deref(ir.Null())}},
		{"div-zero", &ir.Assign{Def: ir.V(3, 1), Rhs: ir.Binary(ir.OpRem, val(1), ir.Const(0))}},
		{"noreturn-call", &ir.Call{Fn: abort}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			b := cfg.NewBuilder(tc.name)
			b.Block("entry")
			b.Assign(ir.V(2, 1), ir.Const(1))
			b.Stmt(tc.stmt)
			b.Assign(ir.V(2, 2), ir.Const(2))
			b.Goto("t")
			b.Block("t")
			b.Return()
			fn := b.Build()
			entry := fn.Block(b.Id("entry"))
			sim := newSimplifier(fn)
			require.True(t, sim.disconnectNoReturn(entry))
			require.Equal(t, cfg.KindNoReturn, entry.Kind)
			require.Equal(t, []ir.Stmt{entry.Stmts[0], tc.stmt}, entry.Stmts)
			require.Empty(t, entry.Succ)
			require.Empty(t, fn.Block(b.Id("t")).Pred)
			require.Contains(t, fn.CommonExit().Pred, entry.Id)
			require.False(t, sim.disconnectNoReturn(entry))
			fn.Verify()
		})
	}
}

func TestDisconnectNoReturn_Safe(t *testing.T) {
	b := cfg.NewBuilder("safe")
	b.Block("entry")
	b.Assign(ir.V(2, 1), ir.Binary(ir.OpDiv, val(1), ir.Const(3)))
	b.Store(val(4), ir.Const(1))
	b.Return()
	fn := b.Build()
	require.False(t, newSimplifier(fn).disconnectNoReturn(fn.Block(b.Id("entry"))))
}

func TestMergeDistinctPair(t *testing.T) {
	b := cfg.NewBuilder("pair")
	b.Block("entry")
	b.Goto("p")
	b.Block("s")
	b.Phi(ir.V(1, 2), cfg.Incoming{"p": ir.V(1, 1)})
	b.Return(ir.Ref(ir.V(1, 2)))
	b.Block("p")
	b.Assign(ir.V(1, 1), ir.Const(3))
	b.Goto("s")
	fn := b.Build()
	s := fn.Block(b.Id("s"))
	sim := newSimplifier(fn)

	/* phis go first */
	require.False(t, sim.mergeDistinctPair(s))
	require.True(t, sim.foldTrivialPhis(s))
	require.True(t, sim.mergeDistinctPair(s))

	/* the merged block takes the lower id */
	m := fn.Block(b.Id("s"))
	require.Nil(t, fn.Lookup(b.Id("p")))
	require.Equal(t, cfg.KindReturn, m.Kind)
	require.Equal(t, "ret {%v1.1}", m.Last().String())
	require.Equal(t, []cfg.BBId{m.Id}, fn.Block(b.Id("entry")).Succ)
	fn.Verify()
}

func TestMergeDistinctPair_Try(t *testing.T) {
	b := cfg.NewBuilder("try")
	b.Block("entry")
	b.Assign(ir.V(1, 1), ir.Const(3))
	b.Block("s")
	b.Attr(cfg.AttrTry)
	b.Return()
	fn := b.Build()
	require.False(t, newSimplifier(fn).mergeDistinctPair(fn.Block(b.Id("s"))))
}

func TestSkipRedundantCond_Bypass(t *testing.T) {
	b := cfg.NewBuilder("bypass")
	b.Block("entry")
	b.CondGoto(ir.BrTrue, cmp(ir.OpGt, val(1), 5), "p")
	b.Block("q")
	b.CondGoto(ir.BrTrue, cmp(ir.OpGt, val(3), 0), "p")
	b.Block("r")
	b.Return(ir.Const(0))
	b.Block("p")
	b.CondGoto(ir.BrTrue, cmp(ir.OpGt, val(1), 0), "yes")
	b.Block("no")
	b.Return(ir.Const(1))
	b.Block("yes")
	b.Return(ir.Const(2))
	fn := b.Build()
	entry := fn.Block(b.Id("entry"))
	p := fn.Block(b.Id("p"))
	yes := fn.Block(b.Id("yes"))
	require.True(t, newSimplifier(fn).skipRedundantCond(p))
	require.Equal(t, []cfg.BBId{b.Id("q"), yes.Id}, entry.Succ)
	require.Equal(t, yes.Label, entry.CondGoto().Target)
	require.Equal(t, []cfg.BBId{b.Id("q")}, p.Pred)
	fn.Verify()
}

// buildBehindConnector has an empty block between a branch and the block
// whose condition it implies.
func buildBehindConnector() (*cfg.Builder, *cfg.Func) {
	b := cfg.NewBuilder("connector")
	b.Block("entry")
	b.CondGoto(ir.BrFalse, cmp(ir.OpGt, val(1), 5), "q")
	b.Block("c")
	b.Block("s")
	b.CondGoto(ir.BrTrue, cmp(ir.OpGt, val(1), 0), "yes")
	b.Block("no")
	b.Return(ir.Const(1))
	b.Block("q")
	b.Store(val(3), ir.Const(1))
	b.Goto("s")
	b.Block("yes")
	b.Return(ir.Const(2))
	return b, b.Build()
}

func TestSkipRedundantCond_ThroughConnector(t *testing.T) {
	b, fn := buildBehindConnector()
	entry := fn.Block(b.Id("entry"))
	s := fn.Block(b.Id("s"))
	require.True(t, newSimplifier(fn).skipRedundantCond(s))
	require.Nil(t, fn.Lookup(b.Id("c")))
	require.Equal(t, []cfg.BBId{b.Id("yes"), b.Id("q")}, entry.Succ)
	require.Equal(t, []cfg.BBId{b.Id("q")}, s.Pred)
	fn.Verify()
}

func TestSkipRedundantCond_KeepsUselessConnector(t *testing.T) {
	b := cfg.NewBuilder("unknown")
	b.Block("entry")
	b.CondGoto(ir.BrFalse, cmp(ir.OpGt, val(2), 5), "q")
	b.Block("c")
	b.Block("s")
	b.CondGoto(ir.BrTrue, cmp(ir.OpGt, val(1), 0), "yes")
	b.Block("no")
	b.Return(ir.Const(1))
	b.Block("q")
	b.Store(val(3), ir.Const(1))
	b.Goto("s")
	b.Block("yes")
	b.Return(ir.Const(2))
	fn := b.Build()
	require.False(t, newSimplifier(fn).skipRedundantCond(fn.Block(b.Id("s"))))
	require.NotNil(t, fn.Lookup(b.Id("c")))
}

func TestEliminateConnector(t *testing.T) {
	b, fn := buildBehindConnector()
	c := fn.Block(b.Id("c"))
	s := fn.Block(b.Id("s"))
	require.True(t, newSimplifier(fn).eliminateConnector(c))
	require.Nil(t, fn.Lookup(c.Id))
	require.Equal(t, []cfg.BBId{s.Id, b.Id("q")}, fn.Block(b.Id("entry")).Succ)
	require.Equal(t, []cfg.BBId{b.Id("q"), b.Id("entry")}, s.Pred)
	fn.Verify()
}

func TestSkipRedundantCond_SinglePred(t *testing.T) {
	b := cfg.NewBuilder("single")
	b.Block("entry")
	b.CondGoto(ir.BrTrue, cmp(ir.OpGt, val(1), 5), "p")
	b.Block("r")
	b.Return(ir.Const(0))
	b.Block("p")
	b.CondGoto(ir.BrTrue, cmp(ir.OpGt, val(1), 0), "yes")
	b.Block("no")
	b.Return(ir.Const(1))
	b.Block("yes")
	b.Return(ir.Const(2))
	fn := b.Build()
	p := fn.Block(b.Id("p"))
	sim := newSimplifier(fn)
	require.True(t, sim.skipRedundantCond(p))
	require.True(t, p.CondGoto().Cond.IsConst())
	require.True(t, sim.condToUncond(p))
	require.Equal(t, []cfg.BBId{b.Id("yes")}, p.Succ)
	fn.Verify()
}

func TestSkipRedundantCond_Duplicate(t *testing.T) {
	b := cfg.NewBuilder("dup")
	b.Block("entry")
	b.CondGoto(ir.BrTrue, cmp(ir.OpEq, val(1), 5), "p")
	b.Block("q")
	b.CondGoto(ir.BrTrue, cmp(ir.OpGt, val(3), 0), "p")
	b.Block("r")
	b.Return(ir.Const(0))
	b.Block("p")
	b.Assign(ir.V(4, 1), ir.Binary(ir.OpAdd, val(1), ir.Const(1)))
	b.CondGoto(ir.BrTrue, cmp(ir.OpEq, val(1), 5), "yes")
	b.Block("no")
	b.Return(ir.Ref(ir.V(4, 1)))
	b.Block("yes")
	b.Return(ir.Ref(ir.V(4, 1)))
	fn := b.Build()
	entry := fn.Block(b.Id("entry"))
	p := fn.Block(b.Id("p"))
	yes := fn.Block(b.Id("yes"))
	require.True(t, newSimplifier(fn).skipRedundantCond(p))

	/* the body was copied onto the edge */
	d := fn.Block(entry.Succ[1])
	require.Equal(t, cfg.KindGoto, d.Kind)
	require.Equal(t, []cfg.BBId{yes.Id}, d.Succ)
	require.Equal(t, ir.V(4, 2), d.Stmts[0].(*ir.Assign).Def)
	require.Equal(t, "add(%v1.0, 1)", d.Stmts[0].(*ir.Assign).Rhs.String())
	require.Equal(t, []cfg.BBId{b.Id("q")}, p.Pred)
	require.ElementsMatch(t, []cfg.BBId{p.Id, d.Id}, yes.Pred)
	require.Contains(t, fn.Cands[4], yes.Id)
	fn.Verify()
}

func TestSkipRedundantCond_Contradiction(t *testing.T) {
	b := cfg.NewBuilder("contra")
	b.Block("entry")
	b.CondGoto(ir.BrTrue, cmp(ir.OpLt, val(1), 3), "p")
	b.Block("q")
	b.CondGoto(ir.BrTrue, cmp(ir.OpGt, val(3), 0), "p")
	b.Block("r")
	b.Return(ir.Const(0))
	b.Block("p")
	b.CondGoto(ir.BrTrue, cmp(ir.OpGe, val(1), 10), "yes")
	b.Block("no")
	b.Return(ir.Const(1))
	b.Block("yes")
	b.Return(ir.Const(2))
	fn := b.Build()
	entry := fn.Block(b.Id("entry"))
	require.True(t, newSimplifier(fn).skipRedundantCond(fn.Block(b.Id("p"))))
	require.Equal(t, b.Id("no"), entry.Succ[1])
	fn.Verify()
}

func TestSkipRedundantCond_Redefined(t *testing.T) {
	b := cfg.NewBuilder("redef")
	b.Block("entry")
	b.CondGoto(ir.BrTrue, cmp(ir.OpGt, ir.Deref(val(5)), 0), "p")
	b.Block("q")
	b.CondGoto(ir.BrTrue, cmp(ir.OpGt, val(3), 0), "p")
	b.Block("r")
	b.Return(ir.Const(0))
	b.Block("p")
	b.Store(val(5), ir.Const(0))
	b.CondGoto(ir.BrTrue, cmp(ir.OpGt, ir.Deref(val(5)), 0), "yes")
	b.Block("no")
	b.Return(ir.Const(1))
	b.Block("yes")
	b.Return(ir.Const(2))
	fn := b.Build()
	require.False(t, newSimplifier(fn).skipRedundantCond(fn.Block(b.Id("p"))))
}

func TestFoldCommonDest(t *testing.T) {
	b := cfg.NewBuilder("common")
	b.Block("entry")
	b.CondGoto(ir.BrTrue, cmp(ir.OpGt, val(1), 0), "c")
	b.Block("s")
	b.CondGoto(ir.BrTrue, cmp(ir.OpLt, val(2), 10), "c")
	b.Block("e")
	b.Return(ir.Const(1))
	b.Block("c")
	b.Return(ir.Const(0))
	fn := b.Build()
	entry := fn.Block(b.Id("entry"))
	sim := newSimplifier(fn)
	require.False(t, sim.foldSequentialConds(fn.Block(b.Id("s"))))
	require.True(t, sim.foldCommonDest(fn.Block(b.Id("s"))))
	require.Nil(t, fn.Lookup(b.Id("s")))
	require.Equal(t, []cfg.BBId{b.Id("e"), b.Id("c")}, entry.Succ)
	require.Equal(t, "lior(gt(%v1.0, 0), lt(%v2.0, 10))", entry.CondGoto().Cond.String())
	require.Equal(t, ir.BrTrue, entry.CondGoto().Br)
	fn.Verify()
}

func TestFoldCommonDest_ThroughConnector(t *testing.T) {
	b := cfg.NewBuilder("common")
	b.Block("entry")
	b.CondGoto(ir.BrTrue, cmp(ir.OpGt, val(1), 0), "c")
	b.Block("h")
	b.Block("s")
	b.CondGoto(ir.BrTrue, cmp(ir.OpLt, val(2), 10), "c")
	b.Block("e")
	b.Return(ir.Const(1))
	b.Block("c")
	b.Return(ir.Const(0))
	fn := b.Build()
	entry := fn.Block(b.Id("entry"))
	require.True(t, newSimplifier(fn).foldCommonDest(fn.Block(b.Id("s"))))
	require.Nil(t, fn.Lookup(b.Id("h")))
	require.Nil(t, fn.Lookup(b.Id("s")))
	require.Equal(t, []cfg.BBId{b.Id("e"), b.Id("c")}, entry.Succ)
	require.Equal(t, "lior(gt(%v1.0, 0), lt(%v2.0, 10))", entry.CondGoto().Cond.String())
	fn.Verify()
}

func TestFoldCommonDest_Taken(t *testing.T) {
	b := cfg.NewBuilder("taken")
	b.Block("entry")
	b.CondGoto(ir.BrTrue, cmp(ir.OpGt, val(1), 0), "s")
	b.Block("c")
	b.Return(ir.Const(0))
	b.Block("s")
	b.CondGoto(ir.BrFalse, cmp(ir.OpLt, val(2), 10), "c")
	b.Block("e")
	b.Return(ir.Const(1))
	fn := b.Build()
	entry := fn.Block(b.Id("entry"))
	require.True(t, newSimplifier(fn).foldCommonDest(fn.Block(b.Id("s"))))
	require.Equal(t, []cfg.BBId{b.Id("c"), b.Id("e")}, entry.Succ)
	require.Equal(t, "land(gt(%v1.0, 0), lt(%v2.0, 10))", entry.CondGoto().Cond.String())
	require.Equal(t, ir.BrTrue, entry.CondGoto().Br)
	fn.Verify()
}

func TestFoldSequentialConds(t *testing.T) {
	b := cfg.NewBuilder("masks")
	b.Block("entry")
	b.CondGoto(ir.BrTrue, ir.Binary(ir.OpAnd, val(1), ir.Const(1)), "c")
	b.Block("s")
	b.CondGoto(ir.BrTrue, cmp(ir.OpNe, ir.Binary(ir.OpAnd, val(1), ir.Const(2)), 0), "c")
	b.Block("e")
	b.Return(ir.Const(0))
	b.Block("c")
	b.Return(ir.Const(1))
	fn := b.Build()
	entry := fn.Block(b.Id("entry"))
	require.True(t, newSimplifier(fn).foldSequentialConds(fn.Block(b.Id("s"))))
	require.Equal(t, "ne(band(%v1.0, 3), 0)", entry.CondGoto().Cond.String())
	require.Equal(t, ir.BrTrue, entry.CondGoto().Br)
	require.Equal(t, []cfg.BBId{b.Id("e"), b.Id("c")}, entry.Succ)
	fn.Verify()
}

func TestFoldSequentialConds_Or(t *testing.T) {
	b := cfg.NewBuilder("or")
	b.Block("entry")
	b.CondGoto(ir.BrFalse, cmp(ir.OpEq, val(1), 0), "c")
	b.Block("s")
	b.CondGoto(ir.BrFalse, cmp(ir.OpEq, val(2), 0), "c")
	b.Block("e")
	b.Return(ir.Const(0))
	b.Block("c")
	b.Return(ir.Const(1))
	fn := b.Build()
	entry := fn.Block(b.Id("entry"))
	require.True(t, newSimplifier(fn).foldSequentialConds(fn.Block(b.Id("s"))))
	require.Equal(t, "ne(bior(%v1.0, %v2.0), 0)", entry.CondGoto().Cond.String())
	require.Equal(t, ir.BrTrue, entry.CondGoto().Br)
	require.Equal(t, []cfg.BBId{b.Id("e"), b.Id("c")}, entry.Succ)
	fn.Verify()
}

func buildNullCheck(load *ir.Expr) (*cfg.Builder, *cfg.Func) {
	b := cfg.NewBuilder("nullcheck")
	b.Block("entry")
	b.CondGoto(ir.BrTrue, cmp(ir.OpEq, val(1), 0), "c")
	b.Block("s")
	b.CondGoto(ir.BrTrue, cmp(ir.OpGt, load, 0), "c")
	b.Block("e")
	b.Return(ir.Const(1))
	b.Block("c")
	b.Return(ir.Const(0))
	return b, b.Build()
}

func TestSafetyGate_FoldCommonDest(t *testing.T) {
	b, fn := buildNullCheck(ir.Deref(val(1)))
	s := fn.Block(b.Id("s"))
	before := fn.String()
	sim := newSimplifier(fn)
	require.False(t, sim.foldCommonDest(s))
	require.False(t, sim.foldSequentialConds(s))
	require.Equal(t, before, fn.String())

	/* the same shape without the load is folded */
	b, fn = buildNullCheck(val(1))
	require.True(t, newSimplifier(fn).foldCommonDest(fn.Block(b.Id("s"))))
}

func buildSelect(rhs *ir.Expr) (*cfg.Builder, *cfg.Func) {
	b := cfg.NewBuilder("select")
	b.Block("entry")
	b.CondGoto(ir.BrTrue, cmp(ir.OpNe, val(1), 0), "a")
	b.Block("z")
	b.Assign(ir.V(2, 1), ir.Const(0))
	b.Goto("j")
	b.Block("a")
	b.Assign(ir.V(2, 2), rhs)
	b.Block("j")
	b.Phi(ir.V(2, 3), cfg.Incoming{"z": ir.V(2, 1), "a": ir.V(2, 2)})
	b.Return(ir.Ref(ir.V(2, 3)))
	return b, b.Build()
}

func TestCondToSelect(t *testing.T) {
	b, fn := buildSelect(val(3))
	entry := fn.Block(b.Id("entry"))
	j := fn.Block(b.Id("j"))
	require.True(t, newSimplifier(fn).condToSelect(entry))
	require.Equal(t, cfg.KindFallthrough, entry.Kind)
	require.Equal(t, []cfg.BBId{j.Id}, entry.Succ)
	require.Nil(t, fn.Lookup(b.Id("z")))
	require.Nil(t, fn.Lookup(b.Id("a")))
	require.Len(t, entry.Stmts, 1)
	require.Equal(t, "%v2.4 = select(ne(%v1.0, 0), %v3.0, 0)", entry.Stmts[0].String())
	require.Equal(t, []ir.Value{ir.V(2, 4)}, j.Phis[2].Opnds)
	fn.Verify()
}

func TestSafetyGate_CondToSelect(t *testing.T) {
	b, fn := buildSelect(ir.Deref(val(1)))
	before := fn.String()
	require.False(t, newSimplifier(fn).condToSelect(fn.Block(b.Id("entry"))))
	require.Equal(t, before, fn.String())

	/* not worth computing on both paths either */
	b, fn = buildSelect(ir.Binary(ir.OpMul, val(3), val(4)))
	require.False(t, newSimplifier(fn).condToSelect(fn.Block(b.Id("entry"))))
}

func TestMergeGotoIntoPreds(t *testing.T) {
	b := cfg.NewBuilder("gotos")
	b.Block("entry")
	b.CondGoto(ir.BrTrue, cmp(ir.OpGt, val(1), 0), "h")
	b.Block("f")
	b.Assign(ir.V(2, 1), ir.Const(1))
	b.Block("g")
	b.Goto("t")
	b.Block("h")
	b.Assign(ir.V(2, 2), ir.Const(2))
	b.Block("t")
	b.Phi(ir.V(2, 3), cfg.Incoming{"g": ir.V(2, 1), "h": ir.V(2, 2)})
	b.Return(ir.Ref(ir.V(2, 3)))
	fn := b.Build()
	f := fn.Block(b.Id("f"))
	tb := fn.Block(b.Id("t"))
	require.True(t, newSimplifier(fn).mergeGotoIntoPreds(fn.Block(b.Id("g"))))
	require.Nil(t, fn.Lookup(b.Id("g")))
	require.Equal(t, cfg.KindGoto, f.Kind)
	require.Equal(t, tb.Label, f.Goto().Target)
	require.Equal(t, fn.Block(b.Id("h")), fn.FallthroughPred(tb))
	require.Equal(t, []cfg.BBId{b.Id("h"), f.Id}, tb.Pred)
	require.Equal(t, []ir.Value{ir.V(2, 2), ir.V(2, 1)}, tb.Phis[2].Opnds)
	fn.Verify()
}

func TestMergeGotoIntoPreds_Switch(t *testing.T) {
	b := cfg.NewBuilder("switch")
	b.Block("entry")
	b.Freq(12, 4, 6, 2)
	b.Switch(val(1), "g", cfg.SwitchCase{Value: 1, Target: "a"}, cfg.SwitchCase{Value: 2, Target: "t"})
	b.Block("g")
	b.Freq(4)
	b.Goto("t")
	b.Block("a")
	b.Freq(6)
	b.Return()
	b.Block("t")
	b.Freq(6)
	b.Return()
	fn := b.Build()
	entry := fn.Block(b.Id("entry"))
	tb := fn.Block(b.Id("t"))
	require.True(t, newSimplifier(fn).mergeGotoIntoPreds(fn.Block(b.Id("g"))))
	require.Nil(t, fn.Lookup(b.Id("g")))
	require.Equal(t, []cfg.BBId{tb.Id, b.Id("a")}, entry.Succ)
	require.Equal(t, []uint64{6, 6}, entry.SuccFreq)
	require.Equal(t, tb.Label, entry.Switch().Default)
	require.Equal(t, uint64(6), tb.Freq)
	fn.Verify()
}

func TestConstantSwitch(t *testing.T) {
	b := cfg.NewBuilder("switch")
	b.Block("entry")
	b.Freq(9, 3, 3, 3)
	b.Switch(ir.Const(2), "d", cfg.SwitchCase{Value: 1, Target: "a"}, cfg.SwitchCase{Value: 2, Target: "t"})
	b.Block("d")
	b.Freq(3)
	b.Return()
	b.Block("a")
	b.Freq(3)
	b.Return()
	b.Block("t")
	b.Freq(3)
	b.Return()
	fn := b.Build()
	entry := fn.Block(b.Id("entry"))
	tb := fn.Block(b.Id("t"))
	require.True(t, newSimplifier(fn).constantSwitch(entry))
	require.Equal(t, cfg.KindGoto, entry.Kind)
	require.Equal(t, []cfg.BBId{tb.Id}, entry.Succ)
	require.Equal(t, []uint64{9}, entry.SuccFreq)
	require.Equal(t, uint64(9), tb.Freq)
	fn.Verify()
}

func TestSingleTargetSwitch(t *testing.T) {
	b := cfg.NewBuilder("switch")
	b.Block("entry")
	b.Switch(val(1), "t", cfg.SwitchCase{Value: 1, Target: "t"})
	b.Block("t")
	b.Return()
	fn := b.Build()
	entry := fn.Block(b.Id("entry"))
	sim := newSimplifier(fn)
	require.False(t, sim.constantSwitch(entry))
	require.True(t, sim.singleTargetSwitch(entry))
	require.Equal(t, cfg.KindGoto, entry.Kind)
	fn.Verify()
}
