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
	"math/bits"
)

func sumFreq(v []uint64) (ret uint64) {
	for _, f := range v {
		ret += f
	}
	return
}

// rescale distributes total over v proportionally to the current weights.
// The rounding remainder goes to the heaviest edge, an all-zero vector puts
// everything on the first edge.
func rescale(v []uint64, total uint64) {
	var max int
	var sum uint64

	/* nothing to distribute onto */
	if len(v) == 0 {
		return
	}

	/* find the total weight, and the heaviest edge */
	for i, f := range v {
		if sum += f; f > v[max] {
			max = i
		}
	}

	/* all-zero weights */
	if sum == 0 {
		v[0] = total
		return
	}

	/* no change */
	if sum == total {
		return
	}

	/* scale every edge, v[i] <= sum guarantees that the quotient fits */
	rem := total
	for i, f := range v {
		hi, lo := bits.Mul64(f, total)
		v[i], _ = bits.Div64(hi, lo, sum)
		rem -= v[i]
	}

	/* rounding remainder */
	v[max] += rem
}

// SetFreq changes the frequency of bb and rescales its outgoing edges so
// the outgoing frequencies keep summing up to the block frequency.
func (self *Func) SetFreq(bb *BasicBlock, freq uint64) {
	if self.TrackFreq {
		bb.Freq = freq
		rescale(bb.SuccFreq, freq)
	}
}

func (self *Func) addFreq(bb *BasicBlock, delta uint64) {
	self.SetFreq(bb, bb.Freq+delta)
}

func (self *Func) subFreq(bb *BasicBlock, delta uint64) {
	if delta > bb.Freq {
		self.SetFreq(bb, 0)
	} else {
		self.SetFreq(bb, bb.Freq-delta)
	}
}

// EdgeFreq returns the frequency of the i-th outgoing edge of bb, or zero
// when frequencies are not tracked.
func (self *Func) EdgeFreq(bb *BasicBlock, i int) uint64 {
	if self.TrackFreq {
		return bb.SuccFreq[i]
	} else {
		return 0
	}
}

// DropFreq discards the profile of the whole function and stops tracking
// frequencies.
func (self *Func) DropFreq() {
	self.TrackFreq = false
	for _, bb := range self.blocks {
		if bb != nil {
			bb.Freq = 0
			bb.SuccFreq = nil
		}
	}
}
