/* Copyright 2018-2019 Comcast Cable Communications Management, LLC
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 * http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package core

import (
	"fmt"
)

// trigger bubbles a named event up the given chain, leaf to root.
//
// A handler that returns exactly true lets the event keep bubbling;
// any other return value stops propagation.  Either way the event
// counts as handled.  If nothing handles the event, trigger returns
// an error unless ignoreFailure is set.
func trigger(infos []*HandlerInfo, ignoreFailure bool, name string, args ...interface{}) error {
	if infos == nil {
		if ignoreFailure {
			return nil
		}
		return fmt.Errorf("could not trigger event %q: %w", name, NoActiveHandlers)
	}

	eventWasHandled := false

	for i := len(infos) - 1; 0 <= i; i-- {
		h := infos[i].Handler
		if h == nil || h.Events == nil {
			continue
		}
		f, have := h.Events[name]
		if !have {
			continue
		}
		eventWasHandled = true
		result := f(args...)
		if b, is := result.(bool); !is || !b {
			return nil
		}
	}

	if !eventWasHandled && !ignoreFailure {
		return fmt.Errorf("nothing handled the event %q", name)
	}
	return nil
}
