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

type Stmt interface {
	fmt.Stringer
	stmt()
}

// Usages is implemented by statements that evaluate expressions.
type Usages interface {
	Stmt
	Usages() []*Expr
}

// Definitions is implemented by statements that define SSA values.
type Definitions interface {
	Stmt
	Definitions() []*Value
}

func (*Assign) stmt()   {}
func (*Store) stmt()    {}
func (*Call) stmt()     {}
func (*Goto) stmt()     {}
func (*CondGoto) stmt() {}
func (*Switch) stmt()   {}
func (*Return) stmt()   {}

// Assign defines Def as the value of Rhs.
type Assign struct {
	Def Value
	Rhs *Expr
}

func (self *Assign) String() string {
	return fmt.Sprintf("%s = %s", self.Def, self.Rhs)
}

func (self *Assign) Usages() []*Expr {
	return []*Expr{self.Rhs}
}

func (self *Assign) Definitions() []*Value {
	return []*Value{&self.Def}
}

// Store writes Rhs to the memory at Addr.
type Store struct {
	Addr *Expr
	Rhs  *Expr
}

func (self *Store) String() string {
	return fmt.Sprintf("*(%s) = %s", self.Addr, self.Rhs)
}

func (self *Store) Usages() []*Expr {
	return []*Expr{self.Addr, self.Rhs}
}

type Call struct {
	Fn   *Callee
	Args []*Expr
	Defs []Value
}

func (self *Call) String() string {
	args := make([]string, 0, len(self.Args))
	defs := make([]string, 0, len(self.Defs))

	/* dump arguments and results */
	for _, v := range self.Args {
		args = append(args, v.String())
	}
	for _, v := range self.Defs {
		defs = append(defs, v.String())
	}

	/* join them together */
	return fmt.Sprintf(
		"call %s(%s) -> {%s}",
		self.Fn.Name,
		strings.Join(args, ", "),
		strings.Join(defs, ", "),
	)
}

func (self *Call) Usages() []*Expr {
	return self.Args
}

func (self *Call) Definitions() []*Value {
	ret := make([]*Value, len(self.Defs))
	for i := range self.Defs {
		ret[i] = &self.Defs[i]
	}
	return ret
}

type Goto struct {
	Target Label
}

func (self *Goto) String() string {
	return fmt.Sprintf("goto %s", self.Target)
}

type Br uint8

const (
	BrTrue Br = iota
	BrFalse
)

func (self Br) String() string {
	if self == BrTrue {
		return "brtrue"
	} else {
		return "brfalse"
	}
}

// CondGoto jumps to Target when Cond is non-zero (BrTrue) or zero (BrFalse),
// and falls through otherwise.
type CondGoto struct {
	Br     Br
	Cond   *Expr
	Target Label
}

func (self *CondGoto) String() string {
	return fmt.Sprintf("%s %s, %s", self.Br, self.Cond, self.Target)
}

func (self *CondGoto) Usages() []*Expr {
	return []*Expr{self.Cond}
}

type Case struct {
	Value  int64
	Target Label
}

type Switch struct {
	Sel     *Expr
	Default Label
	Cases   []Case
}

func (self *Switch) String() string {
	ret := make([]string, 0, len(self.Cases)+1)

	/* add each case */
	for _, c := range self.Cases {
		ret = append(ret, fmt.Sprintf("%d => %s", c.Value, c.Target))
	}

	/* default branch */
	ret = append(ret, fmt.Sprintf("_ => %s", self.Default))
	return fmt.Sprintf("switch %s {%s}", self.Sel, strings.Join(ret, ", "))
}

func (self *Switch) Usages() []*Expr {
	return []*Expr{self.Sel}
}

// Target returns the label selected by the constant selector v.
func (self *Switch) Target(v int64) Label {
	for _, c := range self.Cases {
		if c.Value == v {
			return c.Target
		}
	}
	return self.Default
}

type Return struct {
	Vals []*Expr
}

func (self *Return) String() string {
	ret := make([]string, 0, len(self.Vals))
	for _, v := range self.Vals {
		ret = append(ret, v.String())
	}
	return fmt.Sprintf("ret {%s}", strings.Join(ret, ", "))
}

func (self *Return) Usages() []*Expr {
	return self.Vals
}
