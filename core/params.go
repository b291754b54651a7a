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
	"strings"
)

// serialize turns a model into URL params for the given dynamic
// segment names.
//
// A param-like model just becomes the first name's value.  Otherwise
// the handler's own Serialize hook wins if present.  The default
// handling only knows what to do with exactly one name: a name
// ending in "_id" takes the model's "id" entry; any other name takes
// the model itself, rendered as a string.
func serialize(h *Handler, model interface{}, names []string) Params {
	if s, ok := paramLike(model); ok {
		if len(names) == 0 {
			return nil
		}
		return Params{names[0]: s}
	}

	if h != nil && h.Serialize != nil {
		return h.Serialize(model, names)
	}

	if len(names) != 1 {
		return nil
	}
	name := names[0]

	if strings.HasSuffix(name, "_id") {
		if m, is := model.(map[string]interface{}); is {
			if id, have := m["id"]; have {
				if s, ok := paramLike(id); ok {
					return Params{name: s}
				}
				return Params{name: fmt.Sprintf("%v", id)}
			}
		}
		return Params{name: ""}
	}

	if model == nil {
		return Params{name: ""}
	}
	return Params{name: fmt.Sprintf("%v", model)}
}

// paramsForHandler builds the flat param mapping (and derived query
// params) needed to generate a URL for the named route.
//
// Objects are consumed front to back, one per dynamic handler whose
// index is at or past the match point; handlers below the match point
// serialize their existing contexts instead.
func (r *Router) paramsForHandler(state *routerState, handlerName string, objects []interface{}, queryParams QueryParams) (Params, QueryParams, error) {
	recognized, err := r.Recognizer.HandlersFor(handlerName)
	if err != nil {
		return nil, nil, err
	}
	infos := r.assembleHandlerInfos(recognized, state.currentQueryParams, queryParams)

	res, err := getMatchPoint(state, infos, objects, nil)
	if err != nil {
		return nil, nil, err
	}
	matchPoint := res.matchPoint

	params := Params{}
	mergedQueryParams := QueryParams{}
	objs := append([]interface{}{}, objects...)

	for i, rh := range recognized {
		info := infos[i]

		if info.IsDynamic || 0 < len(info.Names) {
			var object interface{}
			if matchPoint <= i && 0 < len(objs) {
				object = objs[0]
				objs = objs[1:]
			} else if info.Handler != nil {
				object = info.Handler.Context()
			}
			for k, v := range serialize(info.Handler, object, info.Names) {
				params[k] = v
			}
		}

		for _, source := range []QueryParams{state.currentQueryParams, queryParams} {
			for _, k := range rh.QueryParams {
				v, have := source[k]
				if !have {
					continue
				}
				if clearsKey(v) {
					delete(mergedQueryParams, k)
				} else {
					mergedQueryParams[k] = v
				}
			}
		}
	}

	if len(mergedQueryParams) == 0 {
		mergedQueryParams = nil
	}
	return params, mergedQueryParams, nil
}

// queryParamsForHandler returns the query params valid for the named
// route: the concatenation of the allow-lists along its ancestry
// chain, root to leaf.
func (r *Router) queryParamsForHandler(handlerName string) ([]string, error) {
	recognized, err := r.Recognizer.HandlersFor(handlerName)
	if err != nil {
		return nil, err
	}
	var acc []string
	for _, rh := range recognized {
		acc = append(acc, rh.QueryParams...)
	}
	return acc, nil
}
