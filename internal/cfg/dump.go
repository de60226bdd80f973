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
	"strings"
)

func (self *BasicBlock) String() string {
	var sb strings.Builder
	self.dump(&sb, false)
	return sb.String()
}

func (self *BasicBlock) dump(sb *strings.Builder, freq bool) {
	fmt.Fprintf(sb, "%s", self.Id)

	/* block label, kind and attributes */
	if self.Label != 0 {
		fmt.Fprintf(sb, " (%s)", self.Label)
	}
	if fmt.Fprintf(sb, " %s", self.Kind); self.Attr != 0 {
		fmt.Fprintf(sb, " [%s]", self.Attr)
	}

	/* edges */
	fmt.Fprintf(sb, " preds=%v succs=%v", self.Pred, self.Succ)
	if freq {
		fmt.Fprintf(sb, " freq=%d/%v", self.Freq, self.SuccFreq)
	}

	/* phis */
	for _, p := range self.SortedPhis() {
		fmt.Fprintf(sb, "\n    %s", p)
	}

	/* statements */
	for _, s := range self.Stmts {
		fmt.Fprintf(sb, "\n    %s", s)
	}
}

// String renders the whole function, one block after another in id order.
func (self *Func) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "func %s:", self.Name)

	/* virtual edges */
	fmt.Fprintf(&sb, "\n  entries=%v exits=%v", self.CommonEntry().Succ, self.CommonExit().Pred)

	/* all the blocks */
	for _, bb := range self.Blocks() {
		sb.WriteString("\n  ")
		bb.dump(&sb, self.TrackFreq)
	}

	/* all done */
	sb.WriteByte('\n')
	return sb.String()
}
