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

package meopt

import (
	"github.com/cloudwego/meopt/internal/cfg"
)

// InternalError occurs when a function breaks one of the invariants of
// the control flow graph. It is raised with panic, since the function can
// no longer be trusted.
type InternalError = cfg.InvariantError

// AsInternalError reports whether a recovered value is an *InternalError.
func AsInternalError(v interface{}) (*InternalError, bool) {
	e, ok := v.(*InternalError)
	return e, ok
}
