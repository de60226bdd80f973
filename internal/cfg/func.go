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

// Func owns every basic block of one function. Blocks live in an arena
// indexed by BBId, slot 0 and 1 hold the CommonEntry and CommonExit
// sentinels. Deleted blocks leave a nil slot, ids are never reused.
type Func struct {
	Name      string
	TrackFreq bool
	Cands     map[ir.Var]map[BBId]struct{}
	blocks    []*BasicBlock
	labels    map[ir.Label]BBId
	versions  map[ir.Var]int
	nextLabel ir.Label
}

func NewFunc(name string) *Func {
	return &Func{
		Name:   name,
		Cands:  make(map[ir.Var]map[BBId]struct{}),
		labels: make(map[ir.Label]BBId),
		blocks: []*BasicBlock{
			{Id: CommonEntry},
			{Id: CommonExit},
		},
	}
}

// Block returns the live block with the given id. An id that is out of
// range or retired is a fatal invariant violation.
func (self *Func) Block(id BBId) *BasicBlock {
	if bb := self.Lookup(id); bb != nil {
		return bb
	} else {
		panic(Invariantf(id, nil, "block id out of range or deleted"))
	}
}

// Lookup returns the block with the given id, or nil if it was deleted.
func (self *Func) Lookup(id BBId) *BasicBlock {
	if id < 0 || int(id) >= len(self.blocks) {
		panic(Invariantf(id, nil, "block id out of range"))
	} else {
		return self.blocks[id]
	}
}

func (self *Func) CommonEntry() *BasicBlock {
	return self.blocks[CommonEntry]
}

func (self *Func) CommonExit() *BasicBlock {
	return self.blocks[CommonExit]
}

// MaxBlock returns the largest id ever allocated.
func (self *Func) MaxBlock() BBId {
	return BBId(len(self.blocks) - 1)
}

// Blocks returns a snapshot of all live non-sentinel blocks in id order.
func (self *Func) Blocks() []*BasicBlock {
	ret := make([]*BasicBlock, 0, len(self.blocks))
	for _, bb := range self.blocks[CommonExit+1:] {
		if bb != nil {
			ret = append(ret, bb)
		}
	}
	return ret
}

// NumBlocks returns the number of live non-sentinel blocks.
func (self *Func) NumBlocks() (n int) {
	for _, bb := range self.blocks[CommonExit+1:] {
		if bb != nil {
			n++
		}
	}
	return
}

// NewBlock allocates an empty block with a fresh id.
func (self *Func) NewBlock(kind Kind) *BasicBlock {
	bb := &BasicBlock{
		Id:   BBId(len(self.blocks)),
		Kind: kind,
	}
	self.blocks = append(self.blocks, bb)
	return bb
}

// AddEntry marks bb as a function entry, reachable from CommonEntry.
func (self *Func) AddEntry(bb *BasicBlock) {
	if bb.Set(AttrEntry); self.CommonEntry().SuccIndex(bb.Id) < 0 {
		self.CommonEntry().Succ = append(self.CommonEntry().Succ, bb.Id)
	}
}

// RemoveEntry clears the entry mark of bb.
func (self *Func) RemoveEntry(bb *BasicBlock) {
	ce := self.CommonEntry()
	bb.Clear(AttrEntry)

	/* drop the virtual edge */
	if i := ce.SuccIndex(bb.Id); i >= 0 {
		ce.Succ = removeAt(ce.Succ, i)
	}
}

// SplitEntry moves the entry mark of bb to a new block that jumps to bb,
// so bb can be the target of loops and still have a place for phis. The
// new edge carries the entry values of the phis of bb, and the weight bb
// receives from outside the function.
func (self *Func) SplitEntry(bb *BasicBlock) *BasicBlock {
	var in uint64
	seen := make(map[BBId]bool, len(bb.Pred))

	/* the weight arriving through real edges */
	for _, id := range bb.Pred {
		if p := self.Block(id); !seen[id] {
			seen[id] = true
			for i, s := range p.Succ {
				if s == bb.Id {
					in += self.EdgeFreq(p, i)
				}
			}
		}
	}

	/* the new entry jumps to bb */
	nb := self.NewBlock(KindGoto)
	nb.Attr = bb.Attr & AttrTry
	nb.Stmts = []ir.Stmt{&ir.Goto{Target: self.LabelOf(bb)}}
	self.AddSucc(nb, bb, true)

	/* everything else comes from outside */
	if in < bb.Freq {
		self.SetFreq(nb, bb.Freq-in)
	}

	/* move the entry mark */
	self.RemoveEntry(bb)
	self.AddEntry(nb)
	return nb
}

// AddExit records bb as a predecessor of CommonExit. The relation is only
// used for post-dominance, bb does not list CommonExit as a successor.
func (self *Func) AddExit(bb *BasicBlock) {
	if ce := self.CommonExit(); ce.PredIndex(bb.Id) < 0 {
		ce.Pred = append(ce.Pred, bb.Id)
	}
}

func (self *Func) RemoveExit(bb *BasicBlock) {
	if ce := self.CommonExit(); ce.PredIndex(bb.Id) >= 0 {
		ce.Pred = removeAt(ce.Pred, ce.PredIndex(bb.Id))
	}
}

// Entries returns the real entry blocks.
func (self *Func) Entries() []*BasicBlock {
	ret := make([]*BasicBlock, 0, 1)
	for _, id := range self.CommonEntry().Succ {
		ret = append(ret, self.Block(id))
	}
	return ret
}

// SetLabel binds l to bb. Each label names exactly one block.
func (self *Func) SetLabel(bb *BasicBlock, l ir.Label) {
	if id, ok := self.labels[l]; ok && id != bb.Id {
		panic(Invariantf(bb.Id, nil, "label "+l.String()+" is already bound to "+id.String()))
	}

	/* bump the label allocator */
	if l > self.nextLabel {
		self.nextLabel = l
	}

	/* unbind the old one */
	if bb.Label != 0 && bb.Label != l {
		delete(self.labels, bb.Label)
	}

	/* bind the label */
	bb.Label = l
	self.labels[l] = bb.Id
}

// LabelOf returns the label of bb, allocating one if needed.
func (self *Func) LabelOf(bb *BasicBlock) ir.Label {
	if bb.Label == 0 {
		self.SetLabel(bb, self.nextLabel+1)
	}
	return bb.Label
}

// BlockOf resolves a branch target label.
func (self *Func) BlockOf(l ir.Label) *BasicBlock {
	if id, ok := self.labels[l]; ok {
		return self.Block(id)
	} else {
		panic(Invariantf(-1, nil, "unresolved label "+l.String()))
	}
}

// DeleteBlock removes a block that no longer has any edges.
func (self *Func) DeleteBlock(bb *BasicBlock) {
	if bb.IsSentinel() {
		panic(Invariantf(bb.Id, nil, "cannot delete a sentinel block"))
	}

	/* edges must be cleared by the caller */
	if len(bb.Pred) != 0 || len(bb.Succ) != 0 {
		panic(Invariantf(bb.Id, nil, "deleting a block that still has edges"))
	}

	/* unbind the label */
	if bb.Label != 0 {
		delete(self.labels, bb.Label)
	}

	/* drop the virtual edges */
	self.RemoveExit(bb)
	self.RemoveEntry(bb)

	/* drop pending SSA candidates */
	for _, s := range self.Cands {
		delete(s, bb.Id)
	}

	/* retire the id */
	bb.Phis = nil
	self.blocks[bb.Id] = nil
}

// Renumber moves bb to the retired slot id, updating every reference.
func (self *Func) Renumber(bb *BasicBlock, id BBId) {
	old := bb.Id
	ids := make(map[BBId]struct{})

	/* the target slot must be retired */
	if self.Lookup(id) != nil {
		panic(Invariantf(id, nil, "renumbering onto a live block"))
	}

	/* collect all neighbours */
	for _, p := range bb.Pred {
		ids[p] = struct{}{}
	}
	for _, p := range bb.Succ {
		ids[p] = struct{}{}
	}
	delete(ids, old)

	/* patch the neighbours */
	for p := range ids {
		nb := self.Block(p)
		replaceAll(nb.Pred, old, id)
		replaceAll(nb.Succ, old, id)
	}

	/* patch self references, phis and sentinels */
	replaceAll(bb.Pred, old, id)
	replaceAll(bb.Succ, old, id)
	replaceAll(self.CommonEntry().Succ, old, id)
	replaceAll(self.CommonExit().Pred, old, id)

	/* patch the phi owners */
	for _, p := range bb.Phis {
		p.Block = id
	}

	/* patch the label index */
	if bb.Label != 0 {
		self.labels[bb.Label] = id
	}

	/* patch the SSA candidates */
	for _, s := range self.Cands {
		if _, ok := s[old]; ok {
			delete(s, old)
			s[id] = struct{}{}
		}
	}

	/* move the block */
	bb.Id = id
	self.blocks[id] = bb
	self.blocks[old] = nil
}

// NewVersion allocates a fresh SSA version of v.
func (self *Func) NewVersion(v ir.Var) ir.Value {
	if self.versions == nil {
		self.scanVersions()
	}
	self.versions[v]++
	return ir.V(v, self.versions[v])
}

func (self *Func) scanVersions() {
	self.versions = make(map[ir.Var]int)
	note := func(v *ir.Value) {
		if v.Ver > self.versions[v.Var] {
			self.versions[v.Var] = v.Ver
		}
	}

	/* scan every definition and use */
	for _, bb := range self.Blocks() {
		for _, p := range bb.Phis {
			note(&p.Result)
			for i := range p.Opnds {
				note(&p.Opnds[i])
			}
		}
		for _, s := range bb.Stmts {
			ir.UsesOf(s, note)
			for _, d := range ir.Defs(s) {
				note(d)
			}
		}
	}
}

// AddCand records that the SSA form of v must be rebuilt around bb.
func (self *Func) AddCand(v ir.Var, id BBId) {
	if s, ok := self.Cands[v]; ok {
		s[id] = struct{}{}
	} else {
		self.Cands[v] = map[BBId]struct{}{id: {}}
	}
}

// ReplaceUses substitutes every read of old with new in the whole function.
func (self *Func) ReplaceUses(old ir.Value, new ir.Value) {
	for _, bb := range self.Blocks() {
		for _, p := range bb.Phis {
			for i, v := range p.Opnds {
				if v == old {
					p.Opnds[i] = new
				}
			}
		}
		for _, s := range bb.Stmts {
			ir.ReplaceUses(s, old, new)
		}
	}
}

func replaceAll(v []BBId, old BBId, new BBId) {
	for i, p := range v {
		if p == old {
			v[i] = new
		}
	}
}
