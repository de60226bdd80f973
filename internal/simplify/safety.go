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
	"github.com/cloudwego/meopt/internal/ir"
)

// IsSafeExpr reports whether e can be evaluated speculatively: it never
// dereferences a pointer, never divides by something that is not a non-zero
// constant, and never calls a callee that is not pure.
func IsSafeExpr(e *ir.Expr) bool {
	return len(unsafeNodes(e)) == 0
}

// isPure reports whether evaluating e has no effect other than producing a
// value, so that it can be dropped when the result is unused.
func isPure(e *ir.Expr) bool {
	ok := true
	e.Walk(func(p *ir.Expr) bool {
		if p.Op == ir.OpIntrinsic && !p.Fn.Pure {
			ok = false
		}
		return ok
	})
	return ok
}

// unsafeNodes lists the sub-expressions of e that make it unsafe.
func unsafeNodes(e *ir.Expr) (ret []*ir.Expr) {
	e.Walk(func(p *ir.Expr) bool {
		switch p.Op {
		case ir.OpDeref:
			ret = append(ret, p)
		case ir.OpDiv, ir.OpRem:
			if !p.Y().IsConst() || p.Y().Imm == 0 {
				ret = append(ret, p)
			}
		case ir.OpIntrinsic:
			if !p.Fn.Pure {
				ret = append(ret, p)
			}
		}
		return true
	})
	return
}

func isZero(e *ir.Expr) bool {
	return e.IsConst() && e.Imm == 0
}

// trapsExpr reports whether evaluating e provably never completes.
func trapsExpr(e *ir.Expr) bool {
	ok := false
	e.Walk(func(p *ir.Expr) bool {
		switch p.Op {
		case ir.OpDeref:
			ok = ok || isZero(p.X())
		case ir.OpDiv, ir.OpRem:
			ok = ok || isZero(p.Y())
		case ir.OpIntrinsic:
			ok = ok || p.Fn.NoReturn
		}
		return !ok
	})
	return ok
}

// traps reports whether executing s provably never completes: a store or
// load through a null pointer, a division by zero, or a call to a function
// that does not return.
func traps(s ir.Stmt) bool {
	switch p := s.(type) {
	case *ir.Call:
		if p.Fn.NoReturn {
			return true
		}
	case *ir.Store:
		if isZero(p.Addr) {
			return true
		}
	}

	/* check every expression evaluated by the statement */
	for _, e := range ir.Exprs(s) {
		if trapsExpr(e) {
			return true
		}
	}
	return false
}

// profitableSelect reports whether e is cheap enough to be evaluated on
// both paths of a branch on cond.
func profitableSelect(e *ir.Expr, cond *ir.Expr) bool {
	return e.IsLeaf() || cond.Contains(e)
}

// isSimpleCompare reports whether e compares two leaves.
func isSimpleCompare(e *ir.Expr) bool {
	return e.Op.IsCompare() && e.X().IsLeaf() && e.Y().IsLeaf()
}
