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

package meopt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cloudwego/meopt/internal/cfg"
	"github.com/cloudwego/meopt/internal/ir"
)

func val(v ir.Var) *ir.Expr {
	return ir.Ref(ir.V(v, 0))
}

func buildChain(name string) *Func {
	b := NewBuilder(name)
	b.Block("entry")
	b.Assign(ir.V(1, 1), ir.Const(1))
	b.Goto("exit")
	b.Block("exit")
	b.Return(ir.Ref(ir.V(1, 1)))
	return b.Build()
}

// buildThread has an edge entry -> p on which the condition of p is known
// to hold, so the edge is threaded through a copy of the body of p.
func buildThread() (*Builder, *Func) {
	b := NewBuilder("thread")
	b.Block("entry")
	b.CondGoto(ir.BrTrue, ir.Binary(ir.OpEq, val(1), ir.Const(5)), "p")
	b.Block("q")
	b.CondGoto(ir.BrTrue, ir.Binary(ir.OpGt, ir.Deref(val(3)), ir.Const(0)), "p")
	b.Block("r")
	b.Return(ir.Const(0))
	b.Block("p")
	b.Assign(ir.V(4, 1), ir.Binary(ir.OpAdd, val(1), ir.Const(1)))
	b.CondGoto(ir.BrTrue, ir.Binary(ir.OpEq, val(1), ir.Const(5)), "yes")
	b.Block("no")
	b.Return(ir.Ref(ir.V(4, 1)))
	b.Block("yes")
	b.Return(ir.Ref(ir.V(4, 1)))
	return b, b.Build()
}

type recorder struct {
	updates int
	splits  int
}

func (self *recorder) Update(fn *Func) {
	self.updates++
	fn.Cands = make(map[ir.Var]map[cfg.BBId]struct{})
}

func (self *recorder) Split(fn *Func) bool {
	self.splits++
	return false
}

func TestOptimize_Chain(t *testing.T) {
	rec := new(recorder)
	fn := buildChain("chain")
	ret := Optimize(fn, WithVerify(true), WithSSAUpdater(rec), WithEdgeSplitter(rec))
	require.True(t, ret.Changed)
	require.False(t, ret.Updated)
	require.False(t, ret.Split)
	require.Equal(t, 1, fn.NumBlocks())
	require.Equal(t, 0, rec.updates)
	require.Equal(t, 1, rec.splits)

	/* nothing left to do */
	ret = Optimize(fn, WithVerify(true), WithSSAUpdater(rec), WithEdgeSplitter(rec))
	require.False(t, ret.Changed)
	require.Equal(t, 1, rec.splits)
}

func TestOptimize_Thread(t *testing.T) {
	b, fn := buildThread()
	ret := Optimize(fn, WithVerify(true))
	require.True(t, ret.Changed)
	require.True(t, ret.Updated)
	require.True(t, ret.Split)
	require.Equal(t, 1, ret.Stats["skip-redundant-cond"])
	require.Empty(t, fn.Cands)

	/* the copy and the original definition meet in yes */
	yes := fn.Block(b.Id("yes"))
	require.Equal(t, ir.V(4, 3), yes.Phis[4].Result)
	require.Equal(t, []ir.Value{ir.V(4, 1), ir.V(4, 2)}, yes.Phis[4].Opnds)
	require.Equal(t, "ret {%v4.3}", yes.Last().String())
	require.Equal(t, "ret {%v4.1}", fn.Block(b.Id("no")).Last().String())
}

// buildEntryLoop threads an edge inside a loop that jumps back to the
// entry block, so the copied definition needs a phi in the entry block.
func buildEntryLoop() (*Builder, *Func) {
	b := NewBuilder("entryloop")
	b.Block("e")
	b.CondGoto(ir.BrTrue, ir.Binary(ir.OpGt, val(1), ir.Const(0)), "q")
	b.Block("p")
	b.Assign(ir.V(6, 1), ir.Binary(ir.OpAdd, val(1), ir.Const(1)))
	b.CondGoto(ir.BrTrue, ir.Binary(ir.OpGt, val(1), ir.Const(0)), "y")
	b.Block("r")
	b.Return(ir.Const(0))
	b.Block("q")
	b.Store(val(3), ir.Const(1))
	b.Goto("p")
	b.Block("y")
	b.Goto("e")
	return b, b.Build()
}

func TestOptimize_EntryLoop(t *testing.T) {
	b, fn := buildEntryLoop()
	ret := Optimize(fn, WithVerify(true))
	require.True(t, ret.Changed)
	require.True(t, ret.Updated)
	require.Empty(t, fn.Cands)
	e := fn.Block(b.Id("e"))

	/* the loop header is no longer the entry */
	require.False(t, e.Has(cfg.AttrEntry))
	require.Len(t, fn.Entries(), 1)
	require.Empty(t, fn.Entries()[0].Pred)

	/* and receives the entry value from the new block */
	require.NotNil(t, e.Phis[6])
	require.Contains(t, e.Phis[6].Opnds, ir.V(6, 0))
}

func TestOptimize_Dump(t *testing.T) {
	buf := new(bytes.Buffer)
	_, fn := buildThread()
	Optimize(fn, WithDump(true), WithDumpFilter("thread", "splitcritical"), WithDumpWriter(buf))
	require.Contains(t, buf.String(), "=== splitcritical: thread ===")
	require.NotContains(t, buf.String(), "ssaupdate")
}

// buildBroken returns a function whose dead block has an edge that its
// successor does not know about.
func buildBroken(name string) *Func {
	b := NewBuilder(name)
	b.Block("entry")
	b.Return()
	b.Block("dead")
	b.Goto("t")
	b.Block("t")
	b.Return()
	fn := b.Build()
	fn.Block(b.Id("t")).Pred = nil
	return fn
}

func TestOptimize_InternalError(t *testing.T) {
	defer func() {
		e, ok := AsInternalError(recover())
		require.True(t, ok)
		require.Contains(t, e.Error(), "no back edge")
	}()
	Optimize(buildBroken("broken"))
}

func TestOptimizeModule(t *testing.T) {
	var fns []*Func
	for i := 0; i < 8; i++ {
		fns = append(fns, buildChain(fmt.Sprintf("chain_%d", i)))
	}

	/* every function is optimized */
	ret, err := OptimizeModule(context.Background(), fns, WithWorkers(3), WithVerify(true))
	require.NoError(t, err)
	require.Len(t, ret, len(fns))
	for i, fn := range fns {
		require.True(t, ret[i].Changed)
		require.Equal(t, 1, fn.NumBlocks())
	}
}

func TestOptimizeModule_InternalError(t *testing.T) {
	var e *InternalError
	fns := []*Func{buildChain("ok"), buildBroken("broken")}
	ret, err := OptimizeModule(context.Background(), fns, WithWorkers(1))
	require.Nil(t, ret)
	require.True(t, errors.As(err, &e))
	require.Contains(t, err.Error(), "broken")
}

func TestOptimizeModule_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ret, err := OptimizeModule(ctx, []*Func{buildChain("chain")})
	require.Nil(t, ret)
	require.ErrorIs(t, err, context.Canceled)
}
