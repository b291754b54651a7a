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

// HandlerInfo is the canonical record for one handler's participation
// in a transition (or in the active chain).
type HandlerInfo struct {
	// Name is the handler's symbolic name.
	Name string `json:"name"`

	// Handler is the host's handler object, obtained via the
	// router's GetHandler hook.
	Handler *Handler `json:"-" yaml:"-"`

	// IsDynamic reports whether this level has dynamic segments.
	IsDynamic bool `json:"isDynamic,omitempty" yaml:"isDynamic,omitempty"`

	// Names lists this level's dynamic segment names.
	Names []string `json:"names,omitempty" yaml:",omitempty"`

	// Params gives recognizer-supplied segment values (URL
	// transitions only).
	Params Params `json:"params,omitempty" yaml:",omitempty"`

	// QueryParams is this handler's derived query param mapping.
	// Present only if the handler's allow-list is non-empty.
	QueryParams QueryParams `json:"queryParams,omitempty" yaml:"queryParams,omitempty"`

	// Context is the handler's model for this transition.
	// Populated by the validation pipeline.
	Context interface{} `json:"-" yaml:"-"`
}

// assembleHandlerInfos materializes HandlerInfos from recognizer
// output.  Each handler's query params are derived from its
// allow-list: filled from the router's current query params, then
// overridden by the request's.  A handler with an empty allow-list
// gets no query params at all.
func (r *Router) assembleHandlerInfos(recognized []*RecognizedHandler, currentQueryParams, queryParams QueryParams) []*HandlerInfo {
	infos := make([]*HandlerInfo, 0, len(recognized))
	for _, rh := range recognized {
		info := &HandlerInfo{
			Name:      rh.Handler,
			IsDynamic: rh.IsDynamic,
			Names:     rh.Names,
			Params:    rh.Params,
		}
		if r.GetHandler != nil {
			info.Handler = r.GetHandler(rh.Handler)
		}
		if 0 < len(rh.QueryParams) {
			info.QueryParams = mergeQueryParams(rh.QueryParams, currentQueryParams, queryParams)
		}
		infos = append(infos, info)
	}
	return infos
}
