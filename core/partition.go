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

// partitionedHandlers is the four-way diff of the old chain against
// the new one.
//
// Exited is in reverse depth order: the deepest handler exits first.
type partitionedHandlers struct {
	unchanged      []*HandlerInfo
	updatedContext []*HandlerInfo
	entered        []*HandlerInfo
	exited         []*HandlerInfo
}

// partition diffs the old and new handler chains.
//
// The "handler changed" and "context changed" conditions are explicit
// accumulators: once a handler differs at some depth, everything
// deeper enters (and any old handler there exits); once a context
// differs, everything deeper that shares its handler is treated as
// having an updated context.  A pair whose contexts match but whose
// query params differ is an updated context too, without tripping the
// accumulator.
func partition(oldInfos, newInfos []*HandlerInfo) *partitionedHandlers {
	handlers := &partitionedHandlers{}

	var handlerChanged, contextChanged bool

	for i := 0; i < len(newInfos); i++ {
		newInfo := newInfos[i]
		var oldInfo *HandlerInfo
		if i < len(oldInfos) {
			oldInfo = oldInfos[i]
		}

		if oldInfo == nil || oldInfo.Name != newInfo.Name {
			handlerChanged = true
		}

		if handlerChanged {
			handlers.entered = append(handlers.entered, newInfo)
			if oldInfo != nil {
				handlers.exited = append([]*HandlerInfo{oldInfo}, handlers.exited...)
			}
			continue
		}

		if contextChanged || !sameContext(oldInfo.Context, newInfo.Context) {
			contextChanged = true
			handlers.updatedContext = append(handlers.updatedContext, newInfo)
			continue
		}

		if !queryParamsEqual(oldInfo.QueryParams, newInfo.QueryParams) {
			handlers.updatedContext = append(handlers.updatedContext, newInfo)
			continue
		}

		handlers.unchanged = append(handlers.unchanged, oldInfo)
	}

	// Old handlers beyond the new chain all exit, deepest first.
	for i := len(newInfos); i < len(oldInfos); i++ {
		handlers.exited = append([]*HandlerInfo{oldInfos[i]}, handlers.exited...)
	}

	return handlers
}
