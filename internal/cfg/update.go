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

// SSAUpdater rebuilds the SSA form of every variable recorded in the
// candidate set of a function, and drains the set.
type SSAUpdater interface {
	Update(fn *Func)
}

// EdgeSlot returns the predecessor slot the i-th outgoing edge of bb
// occupies in its successor.
func (self *Func) EdgeSlot(bb *BasicBlock, i int) int {
	if j := indexOf(self.Block(bb.Succ[i]).Pred, bb.Id, occurrence(bb.Succ, i)); j < 0 {
		panic(Invariantf(bb.Id, nil, "edge to %s has no back edge", bb.Succ[i]))
	} else {
		return j
	}
}
