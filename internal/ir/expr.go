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

package ir

import (
	"fmt"
	"strings"
)

// Var is the identity of a source variable. All SSA versions of the same
// variable share one Var.
type Var int32

// Value is one SSA version of a variable. Version 0 is the value the
// variable holds on function entry.
type Value struct {
	Var Var
	Ver int
}

func V(v Var, ver int) Value {
	return Value{Var: v, Ver: ver}
}

func (self Value) String() string {
	return fmt.Sprintf("%%v%d.%d", self.Var, self.Ver)
}

// Label names a branch target. The zero Label means "no label".
type Label int32

func (self Label) String() string {
	return fmt.Sprintf("@L%d", int32(self))
}

type Op uint8

const (
	OpInvalid Op = iota
	OpConst
	OpVal
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpRem
	OpAnd
	OpOr
	OpXor
	OpShl
	OpShr
	OpNeg
	OpBnot
	OpLnot
	OpLand
	OpLior
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpCmp
	OpCmpl
	OpCmpg
	OpDeref
	OpSelect
	OpIntrinsic
)

var _OpNames = [...]string{
	OpInvalid:   "invalid",
	OpConst:     "const",
	OpVal:       "val",
	OpAdd:       "add",
	OpSub:       "sub",
	OpMul:       "mul",
	OpDiv:       "div",
	OpRem:       "rem",
	OpAnd:       "band",
	OpOr:        "bior",
	OpXor:       "bxor",
	OpShl:       "shl",
	OpShr:       "shr",
	OpNeg:       "neg",
	OpBnot:      "bnot",
	OpLnot:      "lnot",
	OpLand:      "land",
	OpLior:      "lior",
	OpEq:        "eq",
	OpNe:        "ne",
	OpLt:        "lt",
	OpLe:        "le",
	OpGt:        "gt",
	OpGe:        "ge",
	OpCmp:       "cmp",
	OpCmpl:      "cmpl",
	OpCmpg:      "cmpg",
	OpDeref:     "iread",
	OpSelect:    "select",
	OpIntrinsic: "intrinsic",
}

func (self Op) String() string {
	if int(self) < len(_OpNames) {
		return _OpNames[self]
	} else {
		return fmt.Sprintf("op(%d)", uint8(self))
	}
}

// IsCompare reports whether the operator is a relational comparison,
// including the three-way cmp family.
func (self Op) IsCompare() bool {
	return self >= OpEq && self <= OpCmpg
}

// Mirror returns the operator that yields the same result with the two
// operands swapped.
func (self Op) Mirror() Op {
	switch self {
	case OpLt:
		return OpGt
	case OpLe:
		return OpGe
	case OpGt:
		return OpLt
	case OpGe:
		return OpLe
	default:
		return self
	}
}

// Negate returns the operator computing the logical negation of the
// comparison, or OpInvalid for the three-way cmp family.
func (self Op) Negate() Op {
	switch self {
	case OpEq:
		return OpNe
	case OpNe:
		return OpEq
	case OpLt:
		return OpGe
	case OpLe:
		return OpGt
	case OpGt:
		return OpLe
	case OpGe:
		return OpLt
	default:
		return OpInvalid
	}
}

// Callee describes a called function as seen by the optimizer.
type Callee struct {
	Name     string
	Pure     bool
	NoReturn bool
}

// Expr is an expression tree node.
type Expr struct {
	Op   Op
	Imm  int64
	Val  Value
	Fn   *Callee
	Args []*Expr
}

func Const(v int64) *Expr {
	return &Expr{Op: OpConst, Imm: v}
}

func Ref(v Value) *Expr {
	return &Expr{Op: OpVal, Val: v}
}

func Null() *Expr {
	return Const(0)
}

func Unary(op Op, x *Expr) *Expr {
	return &Expr{Op: op, Args: []*Expr{x}}
}

func Binary(op Op, x *Expr, y *Expr) *Expr {
	return &Expr{Op: op, Args: []*Expr{x, y}}
}

func Deref(p *Expr) *Expr {
	return Unary(OpDeref, p)
}

func Select(c *Expr, t *Expr, f *Expr) *Expr {
	return &Expr{Op: OpSelect, Args: []*Expr{c, t, f}}
}

func Intrinsic(fn *Callee, args ...*Expr) *Expr {
	return &Expr{Op: OpIntrinsic, Fn: fn, Args: args}
}

func (self *Expr) IsConst() bool {
	return self != nil && self.Op == OpConst
}

// IsLeaf reports whether the expression is a constant or a plain value.
func (self *Expr) IsLeaf() bool {
	return self.Op == OpConst || self.Op == OpVal
}

// X returns the first operand.
func (self *Expr) X() *Expr {
	return self.Args[0]
}

// Y returns the second operand.
func (self *Expr) Y() *Expr {
	return self.Args[1]
}

// Clone returns a deep copy of the expression tree.
func (self *Expr) Clone() *Expr {
	if self == nil {
		return nil
	}

	/* copy the node itself */
	ret := *self
	ret.Args = nil

	/* copy all the operands */
	for _, v := range self.Args {
		ret.Args = append(ret.Args, v.Clone())
	}

	/* all done */
	return &ret
}

// Equal reports whether the two expressions are syntactically identical.
func (self *Expr) Equal(other *Expr) bool {
	if self == other {
		return true
	}

	/* either one is nil, or the nodes differ */
	if self == nil || other == nil || self.Op != other.Op || len(self.Args) != len(other.Args) {
		return false
	}

	/* compare the payload */
	switch self.Op {
	case OpConst:
		return self.Imm == other.Imm
	case OpVal:
		return self.Val == other.Val
	case OpIntrinsic:
		if self.Fn != other.Fn {
			return false
		}
	}

	/* compare every operand */
	for i, v := range self.Args {
		if !v.Equal(other.Args[i]) {
			return false
		}
	}

	/* all matched */
	return true
}

// Contains reports whether sub appears anywhere within the expression tree.
func (self *Expr) Contains(sub *Expr) bool {
	found := false
	self.Walk(func(e *Expr) bool {
		found = found || e.Equal(sub)
		return !found
	})
	return found
}

// Walk visits the tree in pre-order. Returning false from fn skips the
// children of the current node.
func (self *Expr) Walk(fn func(e *Expr) bool) {
	if self != nil && fn(self) {
		for _, v := range self.Args {
			v.Walk(fn)
		}
	}
}

// Values calls fn with a pointer to every value referenced by the tree.
func (self *Expr) Values(fn func(v *Value)) {
	self.Walk(func(e *Expr) bool {
		if e.Op == OpVal {
			fn(&e.Val)
		}
		return true
	})
}

// Uses reports whether the tree references the value v.
func (self *Expr) Uses(v Value) (ret bool) {
	self.Values(func(p *Value) { ret = ret || *p == v })
	return
}

func (self *Expr) String() string {
	if self == nil {
		return "<nil>"
	}

	/* leaf nodes */
	switch self.Op {
	case OpConst:
		return fmt.Sprint(self.Imm)
	case OpVal:
		return self.Val.String()
	case OpDeref:
		return fmt.Sprintf("*(%s)", self.Args[0])
	}

	/* dump the operands */
	args := make([]string, 0, len(self.Args))
	for _, v := range self.Args {
		args = append(args, v.String())
	}

	/* intrinsic calls carry the callee name */
	if self.Op == OpIntrinsic {
		return fmt.Sprintf("%s(%s)", self.Fn.Name, strings.Join(args, ", "))
	} else {
		return fmt.Sprintf("%s(%s)", self.Op, strings.Join(args, ", "))
	}
}
