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

// finalizeTransition commits a validated transition: computes the
// flat params, updates the router's current params and query params,
// commits the URL per the transition's method, and then drives the
// exit/enter/setup hooks.
func (r *Router) finalizeTransition(t *Transition, infos []*HandlerInfo) error {

	// Collect the objects needed to regenerate the URL, leaf to
	// root.  Each dynamic handler consumes one provided model; a
	// param-like provided model is used directly (as a string),
	// anything else defers to the resolved context.
	var objects []interface{}
	provided := append([]interface{}{}, t.providedModelsArray...)
	for i := len(infos) - 1; 0 <= i; i-- {
		info := infos[i]
		if !info.IsDynamic {
			continue
		}
		var object interface{}
		if 0 < len(provided) {
			object = provided[len(provided)-1]
			provided = provided[:len(provided)-1]
		}
		if s, ok := paramLike(object); ok {
			object = s
		} else {
			object = info.Context
		}
		objects = append([]interface{}{object}, objects...)
	}

	state := r.snapshot()
	params, qps, err := r.paramsForHandler(state, t.TargetName, objects, t.queryParams)
	if err != nil {
		return err
	}

	union := QueryParams{}
	for _, info := range infos {
		for k, v := range info.QueryParams {
			union[k] = v
		}
	}

	r.mu.Lock()
	r.currentParams = params
	r.currentQueryParams = union
	r.mu.Unlock()

	switch m := t.method(); m {
	case URLMethodNone:
	case URLMethodReplace:
		url, err := r.Recognizer.Generate(t.TargetName, params, qps)
		if err != nil {
			return err
		}
		if r.ReplaceURL != nil {
			r.ReplaceURL(url)
		} else if r.UpdateURL != nil {
			r.UpdateURL(url)
		}
	default:
		url, err := r.Recognizer.Generate(t.TargetName, params, qps)
		if err != nil {
			return err
		}
		if r.UpdateURL != nil {
			r.UpdateURL(url)
		}
	}

	if err := r.setupContexts(t, infos); err != nil {
		return err
	}

	if r.DidTransition != nil {
		r.DidTransition(infos)
	}
	return nil
}

// setupContexts partitions the old chain against the new one, exits
// what's gone (deepest first), and then enters/updates the rest in
// order, appending to the router's current chain as each handler
// succeeds.
func (r *Router) setupContexts(t *Transition, newInfos []*HandlerInfo) error {
	r.mu.Lock()
	old := r.currentHandlerInfos
	r.targetHandlerInfos = newInfos
	r.mu.Unlock()

	parts := partition(old, newInfos)

	for _, info := range parts.exited {
		h := info.Handler
		if h == nil {
			continue
		}
		h.ClearContext()
		if h.Exit != nil {
			h.Exit()
		}
	}

	r.mu.Lock()
	r.currentHandlerInfos = append([]*HandlerInfo{}, parts.unchanged...)
	r.mu.Unlock()

	for _, info := range parts.updatedContext {
		if err := r.handlerEnteredOrUpdated(t, info, false); err != nil {
			return err
		}
	}
	for _, info := range parts.entered {
		if err := r.handlerEnteredOrUpdated(t, info, true); err != nil {
			return err
		}
	}
	return nil
}

// handlerEnteredOrUpdated drives one handler's enter/setup sequence
// and appends it to the current chain on success.  A failure (other
// than an abort) bubbles an "error" event through the chain built so
// far plus this handler, then propagates.
func (r *Router) handlerEnteredOrUpdated(t *Transition, info *HandlerInfo, entering bool) error {
	h := info.Handler

	err := func() error {
		if entering && h != nil && h.Enter != nil {
			if err := h.Enter(); err != nil {
				return err
			}
		}
		if err := t.abortedIfNeeded(); err != nil {
			return err
		}
		if h != nil {
			h.SetContext(info.Context)
			h.SetQueryParams(info.QueryParams)
			if h.Setup != nil {
				if err := h.Setup(info.Context, info.QueryParams); err != nil {
					return err
				}
			}
		}
		return t.abortedIfNeeded()
	}()

	if err != nil {
		if !IsAborted(err) {
			r.mu.Lock()
			chain := append(append([]*HandlerInfo{}, r.currentHandlerInfos...), info)
			r.mu.Unlock()
			trigger(chain, true, "error", err, t)
		}
		return err
	}

	r.mu.Lock()
	r.currentHandlerInfos = append(r.currentHandlerInfos, info)
	r.mu.Unlock()
	return nil
}
