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

// routerState is a snapshot of the router state the pure computations
// below need.  Taking a snapshot keeps the router's lock out of the
// handler hooks.
type routerState struct {
	currentHandlerInfos []*HandlerInfo
	currentParams       Params
	currentQueryParams  QueryParams
	activeTransition    *Transition
}

// matchPointResults is what getMatchPoint computes for a candidate
// chain.
type matchPointResults struct {
	// matchPoint is the smallest index at which something about
	// the candidate chain differs from the current chain.
	// Handlers below this index reuse their existing state
	// verbatim.  len(chain) means fully unchanged.
	matchPoint int

	// providedModels maps handler names to models the caller (or
	// a superseded transition) supplied.
	providedModels map[string]interface{}

	// params is the flat dynamic-segment param mapping.
	params Params

	// handlerParams maps each handler name to the subset of
	// params for its own segment names.
	handlerParams map[string]Params
}

// getMatchPoint walks the candidate chain leaf to root, consuming the
// caller's supplied objects right to left, and finds the earliest
// index at which anything changed: a different handler, a different
// param, different query params, or a freshly supplied object.
//
// Returns a TooManyContexts error if objects remain after the sweep.
func getMatchPoint(state *routerState, infos []*HandlerInfo, suppliedObjects []interface{}, inputParams Params) (*matchPointResults, error) {

	matchPoint := len(infos)
	providedModels := map[string]interface{}{}
	params := Params{}
	for k, v := range inputParams {
		params[k] = v
	}
	handlerParams := map[string]Params{}
	objects := append([]interface{}{}, suppliedObjects...)
	oldParams := state.currentParams

	for i := len(infos) - 1; 0 <= i; i-- {
		info := infos[i]
		name := info.Name

		var old *HandlerInfo
		if state.currentHandlerInfos != nil && i < len(state.currentHandlerInfos) {
			old = state.currentHandlerInfos[i]
		}
		changed := old == nil || old.Name != name

		if info.IsDynamic || 0 < len(info.Names) {
			if 0 < len(objects) {
				// A supplied object is consumed here and
				// forces a change.
				changed = true
				object := objects[len(objects)-1]
				objects = objects[:len(objects)-1]
				if s, ok := paramLike(object); ok && 0 < len(info.Names) {
					params[info.Names[0]] = s
				} else {
					providedModels[name] = object
				}
			} else {
				// Nothing supplied: fall back to a
				// superseded transition's models (if we're
				// re-validating), then to recognized or
				// prior params.
				if at := state.activeTransition; at != nil {
					if m, have := at.resolvedModel(name); have {
						providedModels[name] = m
					} else if m, have := at.providedModels[name]; have {
						providedModels[name] = m
					}
				}
				for _, n := range info.Names {
					if _, have := params[n]; have {
						continue
					}
					if v, have := info.Params[n]; have {
						params[n] = v
					} else if v, have := oldParams[n]; have {
						params[n] = v
					}
				}
			}

			hp := Params{}
			for _, n := range info.Names {
				if v, have := params[n]; have {
					hp[n] = v
				}
				if oldParams[n] != params[n] {
					changed = true
				}
			}
			handlerParams[name] = hp
		}

		var oldQPs QueryParams
		if old != nil {
			oldQPs = old.QueryParams
		}
		if !queryParamsEqual(oldQPs, info.QueryParams) {
			changed = true
		}

		if changed {
			matchPoint = i
		}
	}

	if 0 < len(objects) {
		leaf := ""
		if 0 < len(infos) {
			leaf = infos[len(infos)-1].Name
		}
		return nil, &TooManyContexts{TargetName: leaf}
	}

	return &matchPointResults{
		matchPoint:     matchPoint,
		providedModels: providedModels,
		params:         params,
		handlerParams:  handlerParams,
	}, nil
}
