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
	"sort"

	"github.com/cloudwego/meopt/internal/ir"
)

// BBId is the stable identity of a basic block within one function.
type BBId int

const (
	CommonEntry BBId = 0
	CommonExit  BBId = 1
)

func (self BBId) String() string {
	return fmt.Sprintf("bb_%d", int(self))
}

type Kind uint8

const (
	KindUnknown Kind = iota
	KindFallthrough
	KindGoto
	KindCondGoto
	KindSwitch
	KindReturn
	KindNoReturn
	_KindMax
)

var _KindNames = [...]string{
	KindUnknown:     "unknown",
	KindFallthrough: "fallthru",
	KindGoto:        "goto",
	KindCondGoto:    "condgoto",
	KindSwitch:      "switch",
	KindReturn:      "return",
	KindNoReturn:    "noreturn",
}

func (self Kind) String() string {
	if self < _KindMax {
		return _KindNames[self]
	} else {
		return fmt.Sprintf("kind(%d)", uint8(self))
	}
}

// NumKinds is the number of distinct block kinds, for kind-indexed tables.
const NumKinds = int(_KindMax)

type Attr uint8

const (
	AttrEntry Attr = 1 << iota
	AttrExit
	AttrWontExit
	AttrTry
	AttrTryEnd
)

func (self Attr) String() string {
	var ret []byte
	for i, s := range []string{"entry", "exit", "wontexit", "try", "tryend"} {
		if self&(1<<uint(i)) != 0 {
			if len(ret) != 0 {
				ret = append(ret, '|')
			}
			ret = append(ret, s...)
		}
	}
	return string(ret)
}

// Phi selects one operand per incoming edge; Opnds[i] belongs to Pred[i] of
// the owning block.
type Phi struct {
	Block  BBId
	Var    ir.Var
	Result ir.Value
	Opnds  []ir.Value
}

func (self *Phi) String() string {
	return fmt.Sprintf("%s = φ%v", self.Result, self.Opnds)
}

type BasicBlock struct {
	Id       BBId
	Label    ir.Label
	Kind     Kind
	Attr     Attr
	Stmts    []ir.Stmt
	Pred     []BBId
	Succ     []BBId
	Phis     map[ir.Var]*Phi
	Freq     uint64
	SuccFreq []uint64
}

func (self *BasicBlock) Has(attr Attr) bool {
	return self.Attr&attr != 0
}

func (self *BasicBlock) Set(attr Attr) {
	self.Attr |= attr
}

func (self *BasicBlock) Clear(attr Attr) {
	self.Attr &^= attr
}

// IsSentinel reports whether the block is CommonEntry or CommonExit.
func (self *BasicBlock) IsSentinel() bool {
	return self.Id == CommonEntry || self.Id == CommonExit
}

// Last returns the last statement of the block, or nil.
func (self *BasicBlock) Last() ir.Stmt {
	if n := len(self.Stmts); n == 0 {
		return nil
	} else {
		return self.Stmts[n-1]
	}
}

// Term returns the terminator statement, or nil when the block kind has
// none (fallthrough and no-return blocks).
func (self *BasicBlock) Term() ir.Stmt {
	switch self.Kind {
	case KindGoto, KindCondGoto, KindSwitch, KindReturn:
		return self.Last()
	default:
		return nil
	}
}

// Body returns the statements that precede the terminator.
func (self *BasicBlock) Body() []ir.Stmt {
	if self.Term() != nil {
		return self.Stmts[:len(self.Stmts)-1]
	} else {
		return self.Stmts
	}
}

// CondGoto returns the conditional branch terminator of a KindCondGoto
// block. It panics if the terminator is missing.
func (self *BasicBlock) CondGoto() *ir.CondGoto {
	if br, ok := self.Last().(*ir.CondGoto); ok && self.Kind == KindCondGoto {
		return br
	} else {
		panic(Invariantf(self.Id, self.Last(), "conditional branch without a condgoto terminator"))
	}
}

// Goto returns the jump terminator of a KindGoto block.
func (self *BasicBlock) Goto() *ir.Goto {
	if p, ok := self.Last().(*ir.Goto); ok && self.Kind == KindGoto {
		return p
	} else {
		panic(Invariantf(self.Id, self.Last(), "goto block without a goto terminator"))
	}
}

// Switch returns the switch terminator of a KindSwitch block.
func (self *BasicBlock) Switch() *ir.Switch {
	if sw, ok := self.Last().(*ir.Switch); ok && self.Kind == KindSwitch {
		return sw
	} else {
		panic(Invariantf(self.Id, self.Last(), "switch block without a switch terminator"))
	}
}

// TakenIndex returns the successor index reached when the branch condition
// evaluates to true.
func (self *BasicBlock) TakenIndex() int {
	if self.CondGoto().Br == ir.BrTrue {
		return 1
	} else {
		return 0
	}
}

// FallsInto reports whether control reaches id from this block without a
// jump, either as a plain fallthrough or as the untaken branch edge.
func (self *BasicBlock) FallsInto(id BBId) bool {
	switch self.Kind {
	case KindFallthrough, KindCondGoto:
		return len(self.Succ) != 0 && self.Succ[0] == id
	default:
		return false
	}
}

// IsEmpty reports whether the block carries nothing but an optional goto.
func (self *BasicBlock) IsEmpty() bool {
	switch len(self.Stmts) {
	case 0:
		return len(self.Phis) == 0
	case 1:
		_, ok := self.Stmts[0].(*ir.Goto)
		return ok && self.Kind == KindGoto && len(self.Phis) == 0
	default:
		return false
	}
}

// IsConnector reports whether the block only carries one edge: a single
// predecessor, a single successor and nothing but an optional goto.
func (self *BasicBlock) IsConnector() bool {
	return !self.IsSentinel() &&
		len(self.Pred) == 1 &&
		len(self.Succ) == 1 &&
		self.Succ[0] != self.Id &&
		(self.Kind == KindGoto || self.Kind == KindFallthrough) &&
		self.IsEmpty()
}

// PredIndex returns the index of the first occurrence of id in Pred, or -1.
func (self *BasicBlock) PredIndex(id BBId) int {
	return indexOf(self.Pred, id, 0)
}

// SuccIndex returns the index of the first occurrence of id in Succ, or -1.
func (self *BasicBlock) SuccIndex(id BBId) int {
	return indexOf(self.Succ, id, 0)
}

// SortedPhis returns the phi nodes ordered by variable.
func (self *BasicBlock) SortedPhis() []*Phi {
	ret := make([]*Phi, 0, len(self.Phis))
	for _, p := range self.Phis {
		ret = append(ret, p)
	}
	sort.Slice(ret, func(i int, j int) bool {
		return ret[i].Var < ret[j].Var
	})
	return ret
}

// removeStmt drops the statement at index i.
func (self *BasicBlock) removeStmt(i int) {
	copy(self.Stmts[i:], self.Stmts[i+1:])
	self.Stmts[len(self.Stmts)-1] = nil
	self.Stmts = self.Stmts[:len(self.Stmts)-1]
}

// RemoveTerm drops the terminator statement if the block has one.
func (self *BasicBlock) RemoveTerm() {
	if s := self.Term(); s != nil && ir.IsTerminator(s) {
		self.removeStmt(len(self.Stmts) - 1)
	}
}

func indexOf(v []BBId, id BBId, nth int) int {
	for i, p := range v {
		if p == id {
			if nth == 0 {
				return i
			}
			nth--
		}
	}
	return -1
}

func occurrence(v []BBId, i int) (n int) {
	for _, p := range v[:i] {
		if p == v[i] {
			n++
		}
	}
	return
}

func removeAt(v []BBId, i int) []BBId {
	copy(v[i:], v[i+1:])
	return v[:len(v)-1]
}
