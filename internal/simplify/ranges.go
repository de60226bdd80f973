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
	"math"
	"math/bits"
	"strconv"
	"strings"

	"github.com/cloudwego/meopt/internal/ir"
)

var (
	minInt65 = int65{0, 1}
	maxInt65 = int65{math.MaxUint64, 0}
)

const (
	_MinInt65Str = "-18446744073709551616"
)

// int65 holds any int64 plus one more bit, so that c-1 and c+1 never
// overflow when a constant bound is turned into an interval.
type int65 struct {
	u uint64
	s uint64
}

func int65i(v int64) int65 {
	return int65{
		u: uint64(v),
		s: uint64(v) >> 63,
	}
}

func (self int65) String() string {
	if self.s == 0 {
		return strconv.FormatUint(self.u, 10)
	} else if self.u != 0 {
		return "-" + strconv.FormatUint(-self.u, 10)
	} else {
		return _MinInt65Str
	}
}

func (self int65) oneLess() (r int65) {
	r.u, r.s = bits.Sub64(self.u, 1, 0)
	r.s = (self.s - r.s) & 1
	return
}

func (self int65) oneMore() (r int65) {
	r.u, r.s = bits.Add64(self.u, 1, 0)
	r.s = (self.s + r.s) & 1
	return
}

func (self int65) compare(other int65) int {
	if self.s == 0 && other.s != 0 {
		return 1
	} else if self.s != 0 && other.s == 0 {
		return -1
	} else if self.u < other.u {
		return -1
	} else if self.u > other.u {
		return 1
	} else {
		return 0
	}
}

// valueRange is a sorted list of disjoint closed intervals.
type valueRange struct {
	rr []int65
}

func newRange(lower int65, upper int65) *valueRange {
	return &valueRange{
		rr: []int65{lower, upper},
	}
}

// rangeOf returns the set of x for which "x op c" holds, or nil if op is
// not an ordered comparison.
func rangeOf(op ir.Op, c int64) *valueRange {
	v := int65i(c)
	switch op {
	case ir.OpEq:
		return newRange(v, v)
	case ir.OpNe, ir.OpCmp, ir.OpCmpl, ir.OpCmpg:
		r := newRange(minInt65, maxInt65)
		r.remove(v, v)
		return r
	case ir.OpLt:
		return newRange(minInt65, v.oneLess())
	case ir.OpLe:
		return newRange(minInt65, v)
	case ir.OpGt:
		return newRange(v.oneMore(), maxInt65)
	case ir.OpGe:
		return newRange(v, maxInt65)
	default:
		return nil
	}
}

func (self *valueRange) empty() bool {
	return len(self.rr) == 0
}

func (self *valueRange) clone() *valueRange {
	return &valueRange{rr: append([]int65(nil), self.rr...)}
}

func (self *valueRange) remove(lower int65, upper int65) {
	if lower.compare(upper) > 0 {
		panic(fmt.Sprintf("simplify: removing inverted interval [%s, %s] from %s", lower, upper, self))
	}

	/* cut it out of every interval it overlaps */
	for i := 0; i < len(self.rr); i += 2 {
		l := self.rr[i]
		u := self.rr[i+1]

		/* not intersecting */
		if lower.compare(u) > 0 {
			continue
		}
		if upper.compare(l) < 0 {
			break
		}

		/* splicing */
		if lower.compare(l) > 0 && upper.compare(u) < 0 {
			next := []int65{l, lower.oneLess(), upper.oneMore(), u}
			self.rr = append(self.rr[:i], append(next, self.rr[i+2:]...)...)
			break
		}

		/* remove the upper half */
		if lower.compare(l) > 0 {
			self.rr[i+1] = lower.oneLess()
			continue
		}

		/* remove the lower half */
		if upper.compare(u) < 0 {
			self.rr[i] = upper.oneMore()
			break
		}

		/* remove the entire range */
		copy(self.rr[i:], self.rr[i+2:])
		self.rr = self.rr[:len(self.rr)-2]
		i -= 2
	}
}

func (self *valueRange) removeRange(r *valueRange) {
	for i := 0; i < len(r.rr); i += 2 {
		self.remove(r.rr[i], r.rr[i+1])
	}
}

// subsetOf reports whether every value in self is also in r.
func (self *valueRange) subsetOf(r *valueRange) bool {
	p := self.clone()
	p.removeRange(r)
	return p.empty()
}

// disjoint reports whether self and r have no value in common.
func (self *valueRange) disjoint(r *valueRange) bool {
	p := newRange(minInt65, maxInt65)
	p.removeRange(r)
	return self.subsetOf(p)
}

func (self *valueRange) String() string {
	nb := len(self.rr)
	rb := make([]string, nb/2)

	/* empty ranges */
	if nb == 0 {
		return "{ (empty) }"
	}

	/* dump every range */
	for i := 0; i < nb; i += 2 {
		l := self.rr[i]
		u := self.rr[i+1]
		s := new(strings.Builder)

		/* lower bounds */
		if s.WriteRune('['); l == minInt65 {
			s.WriteString("-∞")
		} else {
			s.WriteString(l.String())
		}

		/* upper bounds */
		if s.WriteString(", "); u == maxInt65 {
			s.WriteString("+∞")
		} else {
			s.WriteString(u.String())
		}

		/* build the range */
		s.WriteRune(']')
		rb[i/2] = s.String()
	}

	/* join them together */
	return fmt.Sprintf("{ %s }", strings.Join(rb, " ∪ "))
}
