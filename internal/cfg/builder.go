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

// Incoming maps predecessor block names to phi operands.
type Incoming map[string]ir.Value

// SwitchCase is one case of a switch built by the Builder.
type SwitchCase struct {
	Value  int64
	Target string
}

type blockDef struct {
	name  string
	bb    *BasicBlock
	jump  string
	cases []SwitchCase
	phis  map[ir.Value]Incoming
	freq  []uint64
}

// Builder constructs a Func from named blocks laid out in order. A block
// that does not end with a terminator falls through into the next one.
type Builder struct {
	fn   *Func
	cur  *blockDef
	defs []*blockDef
	refs map[string]*blockDef
}

func NewBuilder(name string) *Builder {
	return &Builder{
		fn:   NewFunc(name),
		refs: make(map[string]*blockDef),
	}
}

func (self *Builder) check() {
	if self.cur == nil {
		panic("statement outside of any block")
	} else if self.cur.bb.Kind != KindUnknown {
		panic("block " + self.cur.name + " has already been terminated")
	}
}

func (self *Builder) add(s ir.Stmt) {
	self.check()
	self.cur.bb.Stmts = append(self.cur.bb.Stmts, s)
}

func (self *Builder) term(kind Kind, s ir.Stmt, jump string) {
	if self.check(); s != nil {
		self.cur.bb.Stmts = append(self.cur.bb.Stmts, s)
	}
	self.cur.jump = jump
	self.cur.bb.Kind = kind
}

// Block starts a new block named name.
func (self *Builder) Block(name string) {
	if _, ok := self.refs[name]; ok {
		panic("label " + name + " has already been linked")
	}

	/* allocate the block */
	self.cur = &blockDef{name: name, bb: self.fn.NewBlock(KindUnknown)}
	self.refs[name] = self.cur
	self.defs = append(self.defs, self.cur)
}

// Id returns the id the named block was built with.
func (self *Builder) Id(name string) BBId {
	if p, ok := self.refs[name]; ok {
		return p.bb.Id
	} else {
		panic("undefined label: " + name)
	}
}

func (self *Builder) Attr(attr Attr) {
	self.cur.bb.Set(attr)
}

// Freq sets the frequency of the current block and of its outgoing edges,
// in successor order. Using it anywhere enables frequency tracking.
func (self *Builder) Freq(block uint64, edges ...uint64) {
	self.fn.TrackFreq = true
	self.cur.bb.Freq = block
	self.cur.freq = edges
}

// Phi defines res as a phi in the current block, with one operand per
// predecessor name.
func (self *Builder) Phi(res ir.Value, in Incoming) {
	if self.cur.phis == nil {
		self.cur.phis = make(map[ir.Value]Incoming)
	}
	self.cur.phis[res] = in
}

func (self *Builder) Stmt(s ir.Stmt) {
	self.add(s)
}

func (self *Builder) Assign(def ir.Value, rhs *ir.Expr) {
	self.add(&ir.Assign{Def: def, Rhs: rhs})
}

func (self *Builder) Store(addr *ir.Expr, rhs *ir.Expr) {
	self.add(&ir.Store{Addr: addr, Rhs: rhs})
}

func (self *Builder) Call(fn *ir.Callee, defs []ir.Value, args ...*ir.Expr) {
	self.add(&ir.Call{Fn: fn, Args: args, Defs: defs})
}

func (self *Builder) Goto(to string) {
	self.term(KindGoto, new(ir.Goto), to)
}

// CondGoto ends the block with a conditional branch to to, falling through
// into the next block otherwise.
func (self *Builder) CondGoto(br ir.Br, cond *ir.Expr, to string) {
	self.term(KindCondGoto, &ir.CondGoto{Br: br, Cond: cond}, to)
}

func (self *Builder) Switch(sel *ir.Expr, def string, cases ...SwitchCase) {
	self.term(KindSwitch, &ir.Switch{Sel: sel}, def)
	self.cur.cases = cases
}

func (self *Builder) Return(vals ...*ir.Expr) {
	self.term(KindReturn, &ir.Return{Vals: vals}, "")
}

// NoReturn ends the block without a terminator and without successors.
func (self *Builder) NoReturn() {
	self.term(KindNoReturn, nil, "")
}

func (self *Builder) label(name string) *BasicBlock {
	if p, ok := self.refs[name]; ok {
		return p.bb
	} else {
		panic("labels are not fully resolved: " + name)
	}
}

func (self *Builder) succs(i int, p *blockDef) (ret []*BasicBlock) {
	switch p.bb.Kind {
	case KindUnknown:
		if p.bb.Kind = KindFallthrough; i == len(self.defs)-1 {
			panic("block " + p.name + " falls off the end of the function")
		}
		return []*BasicBlock{self.defs[i+1].bb}
	case KindGoto:
		return []*BasicBlock{self.label(p.jump)}
	case KindCondGoto:
		if i == len(self.defs)-1 {
			panic("block " + p.name + " falls off the end of the function")
		}
		return []*BasicBlock{self.defs[i+1].bb, self.label(p.jump)}
	case KindSwitch:
		break
	default:
		return nil
	}

	/* switch successors are unique, the default comes first */
	ret = []*BasicBlock{self.label(p.jump)}
	for _, c := range p.cases {
		if bb := self.label(c.Target); !containsBlock(ret, bb) {
			ret = append(ret, bb)
		}
	}
	return
}

// Build links all the blocks, checks the result and returns the function.
// The Builder must not be used afterwards.
func (self *Builder) Build() *Func {
	fn := self.fn

	/* the first block is the entry */
	if len(self.defs) == 0 {
		panic("function without blocks")
	}

	/* every block is a branch target */
	for i, p := range self.defs {
		fn.SetLabel(p.bb, ir.Label(i+1))
	}

	/* link the edges in layout order */
	for i, p := range self.defs {
		for _, bb := range self.succs(i, p) {
			fn.AddSucc(p.bb, bb, false)
		}
	}

	/* resolve the branch targets */
	for _, p := range self.defs {
		self.link(p)
	}

	/* fill in the phi operands */
	for _, p := range self.defs {
		self.phis(p)
	}

	/* the edge frequencies */
	for _, p := range self.defs {
		if fn.TrackFreq && len(p.freq) != 0 {
			if len(p.freq) != len(p.bb.Succ) {
				panic("block " + p.name + " has mismatched edge frequencies")
			}
			copy(p.bb.SuccFreq, p.freq)
		} else if fn.TrackFreq {
			rescale(p.bb.SuccFreq, p.bb.Freq)
		}
	}

	/* the virtual edges */
	fn.AddEntry(self.defs[0].bb)
	for _, p := range self.defs {
		switch p.bb.Kind {
		case KindReturn:
			p.bb.Set(AttrExit)
			fn.AddExit(p.bb)
		case KindNoReturn:
			fn.AddExit(p.bb)
		}
	}

	/* make sure the result is consistent */
	self.fn = nil
	fn.Verify()
	return fn
}

func (self *Builder) link(p *blockDef) {
	switch s := p.bb.Last().(type) {
	case *ir.Goto:
		s.Target = self.label(p.jump).Label
	case *ir.CondGoto:
		s.Target = self.label(p.jump).Label
	case *ir.Switch:
		s.Default = self.label(p.jump).Label
		for _, c := range p.cases {
			s.Cases = append(s.Cases, ir.Case{Value: c.Value, Target: self.label(c.Target).Label})
		}
	}
}

func (self *Builder) phis(p *blockDef) {
	bb := p.bb

	/* no phis in this block */
	if len(p.phis) == 0 {
		return
	}

	/* one operand per predecessor */
	bb.Phis = make(map[ir.Var]*Phi, len(p.phis))
	for res, in := range p.phis {
		phi := &Phi{
			Block:  bb.Id,
			Var:    res.Var,
			Result: res,
			Opnds:  make([]ir.Value, len(bb.Pred)),
		}

		/* find the operand of each predecessor */
		for i, id := range bb.Pred {
			if v, ok := in[self.defs[id-CommonExit-1].name]; ok {
				phi.Opnds[i] = v
			} else {
				panic("phi " + res.String() + " in block " + p.name + " has no operand for " + self.defs[id-CommonExit-1].name)
			}
		}

		/* add to the block */
		if _, ok := bb.Phis[res.Var]; ok {
			panic("block " + p.name + " has multiple phis for the same variable")
		} else {
			bb.Phis[res.Var] = phi
		}
	}
}

func containsBlock(v []*BasicBlock, bb *BasicBlock) bool {
	for _, p := range v {
		if p == bb {
			return true
		}
	}
	return false
}
