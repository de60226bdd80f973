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

// Exprs returns the expression roots evaluated by the statement.
func Exprs(s Stmt) []*Expr {
	if u, ok := s.(Usages); ok {
		return u.Usages()
	} else {
		return nil
	}
}

// Defs returns pointers to the values defined by the statement.
func Defs(s Stmt) []*Value {
	if d, ok := s.(Definitions); ok {
		return d.Definitions()
	} else {
		return nil
	}
}

// UsesOf calls fn with a pointer to every value the statement reads.
func UsesOf(s Stmt, fn func(v *Value)) {
	for _, e := range Exprs(s) {
		e.Values(fn)
	}
}

// ReplaceUses substitutes every read of old in the statement with new, and
// reports whether anything was replaced.
func ReplaceUses(s Stmt, old Value, new Value) (ret bool) {
	UsesOf(s, func(v *Value) {
		if *v == old {
			*v, ret = new, true
		}
	})
	return
}

// IsTerminator reports whether the statement transfers control.
func IsTerminator(s Stmt) bool {
	switch s.(type) {
	case *Goto, *CondGoto, *Switch, *Return:
		return true
	default:
		return false
	}
}

// HasSideEffects reports whether the statement writes memory or calls a
// function that is not pure.
func HasSideEffects(s Stmt) bool {
	switch p := s.(type) {
	case *Store:
		return true
	case *Call:
		return !p.Fn.Pure
	default:
		return false
	}
}

// Clone returns a deep copy of the statement.
func Clone(s Stmt) Stmt {
	switch p := s.(type) {
	default:
		panic("ir: cannot clone statement: " + s.String())

	/* value definitions */
	case *Assign:
		return &Assign{Def: p.Def, Rhs: p.Rhs.Clone()}

	/* memory writes */
	case *Store:
		return &Store{Addr: p.Addr.Clone(), Rhs: p.Rhs.Clone()}

	/* calls */
	case *Call:
		return &Call{Fn: p.Fn, Args: cloneExprs(p.Args), Defs: append([]Value(nil), p.Defs...)}

	/* terminators */
	case *Goto:
		return &Goto{Target: p.Target}
	case *CondGoto:
		return &CondGoto{Br: p.Br, Cond: p.Cond.Clone(), Target: p.Target}
	case *Return:
		return &Return{Vals: cloneExprs(p.Vals)}
	case *Switch:
		return &Switch{Sel: p.Sel.Clone(), Default: p.Default, Cases: append([]Case(nil), p.Cases...)}
	}
}

func cloneExprs(v []*Expr) []*Expr {
	ret := make([]*Expr, len(v))
	for i, e := range v {
		ret[i] = e.Clone()
	}
	return ret
}
