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

	"github.com/cloudwego/meopt/internal/ir"
)

// Truth is the outcome of a condition as far as it can be proven.
type Truth uint8

const (
	Unknown Truth = iota
	True
	False
)

func (self Truth) String() string {
	switch self {
	case True:
		return "true"
	case False:
		return "false"
	default:
		return "unknown"
	}
}

func (self Truth) not() Truth {
	switch self {
	case True:
		return False
	case False:
		return True
	default:
		return Unknown
	}
}

// Compare is a branch condition in the form "X Op Y".
type Compare struct {
	Op ir.Op
	X  *ir.Expr
	Y  *ir.Expr
}

func (self Compare) String() string {
	return fmt.Sprintf("%s %s %s", self.X, self.Op, self.Y)
}

// AsCompare views a branch condition as a comparison. A condition that is
// not a comparison holds when it is non-zero.
func AsCompare(cond *ir.Expr) Compare {
	switch {
	case cond.Op.IsCompare():
		return Compare{Op: cond.Op, X: cond.X(), Y: cond.Y()}
	case cond.Op == ir.OpLnot:
		return AsCompare(cond.X()).Negate()
	default:
		return Compare{Op: ir.OpNe, X: cond, Y: ir.Const(0)}
	}
}

// Negate returns the comparison that holds exactly when self does not. A
// three-way comparison is false only when both operands are equal.
func (self Compare) Negate() Compare {
	if op := self.Op.Negate(); op != ir.OpInvalid {
		return Compare{Op: op, X: self.X, Y: self.Y}
	} else {
		return Compare{Op: ir.OpEq, X: self.X, Y: self.Y}
	}
}

// Expr rebuilds the comparison as an expression.
func (self Compare) Expr() *ir.Expr {
	return ir.Binary(self.Op, self.X, self.Y)
}

// mirrored swaps the two operands, keeping the meaning.
func (self Compare) mirrored() Compare {
	return Compare{Op: self.Op.Mirror(), X: self.Y, Y: self.X}
}

type _CmpKind uint8

const (
	_C_gt _CmpKind = iota
	_C_ge
	_C_eq
	_C_ne
	_C_lt
	_C_le
	_C_cmp
	_C_max
)

func cmpKind(op ir.Op) (_CmpKind, bool) {
	switch op {
	case ir.OpGt:
		return _C_gt, true
	case ir.OpGe:
		return _C_ge, true
	case ir.OpEq:
		return _C_eq, true
	case ir.OpNe:
		return _C_ne, true
	case ir.OpLt:
		return _C_lt, true
	case ir.OpLe:
		return _C_le, true
	case ir.OpCmp, ir.OpCmpl, ir.OpCmpg:
		return _C_cmp, true
	default:
		return 0, false
	}
}

const (
	_U = Unknown
	_T = True
	_F = False
)

// _ImplyTab[p][s] is the outcome of "x s y" given that "x p y" holds. A
// three-way comparison holds when its result is non-zero.
var _ImplyTab = [_C_max][_C_max]Truth{
	/*           gt ge eq ne lt le cmp */
	_C_gt:  {_T, _T, _F, _T, _F, _F, _T},
	_C_ge:  {_U, _T, _U, _U, _F, _U, _U},
	_C_eq:  {_F, _T, _T, _F, _F, _T, _F},
	_C_ne:  {_U, _U, _F, _T, _U, _U, _T},
	_C_lt:  {_F, _F, _F, _T, _T, _T, _T},
	_C_le:  {_F, _U, _U, _U, _U, _T, _U},
	_C_cmp: {_U, _U, _F, _T, _U, _U, _T},
}

// Implies returns the outcome of succ given that pred holds. Comparisons of
// the same operands, possibly swapped, are looked up in the implication
// table; comparisons of the same left operand against two integer
// constants are decided by interval reasoning. Anything else is Unknown.
func Implies(pred Compare, succ Compare) Truth {
	p, ok1 := cmpKind(pred.Op)
	s, ok2 := cmpKind(succ.Op)

	/* only comparisons can be reasoned about */
	if !ok1 || !ok2 {
		return Unknown
	}

	/* same operands */
	if pred.X.Equal(succ.X) && pred.Y.Equal(succ.Y) {
		return _ImplyTab[p][s]
	}

	/* swapped operands */
	if pred.X.Equal(succ.Y) && pred.Y.Equal(succ.X) {
		s, _ = cmpKind(succ.Op.Mirror())
		return _ImplyTab[p][s]
	}

	/* constants go to the right */
	if pred.X.IsConst() && !pred.Y.IsConst() {
		pred = pred.mirrored()
	}
	if succ.X.IsConst() && !succ.Y.IsConst() {
		succ = succ.mirrored()
	}

	/* interval reasoning on the same left operand */
	if pred.X.Equal(succ.X) && pred.Y.IsConst() && succ.Y.IsConst() {
		return impliesRange(pred, succ)
	} else {
		return Unknown
	}
}

func impliesRange(pred Compare, succ Compare) Truth {
	rp := rangeOf(pred.Op, pred.Y.Imm)
	rs := rangeOf(succ.Op, succ.Y.Imm)

	/* an impossible predicate proves nothing useful */
	if rp == nil || rs == nil || rp.empty() {
		return Unknown
	}

	/* check for inclusion and exclusion */
	if rp.subsetOf(rs) {
		return True
	} else if rp.disjoint(rs) {
		return False
	} else {
		return Unknown
	}
}
