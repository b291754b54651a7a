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
	"context"
)

// validateEntry resolves models for the chain from the given index
// down to the leaf: beforeModel, model, afterModel per handler, with
// an abort check between every step.  Handlers below the match point
// reuse their existing state without running any hooks.
//
// On success the transition's resolved models are returned.  On
// failure the error has already been routed through handleError.
func (r *Router) validateEntry(ctx context.Context, t *Transition, infos []*HandlerInfo, index, matchPoint int, handlerParams map[string]Params) (map[string]interface{}, error) {

	if index == len(infos) {
		return t.resolvedModels, nil
	}

	info := infos[index]
	handler := info.Handler
	name := info.Name

	if index < matchPoint {
		// Nothing changed at this depth: reuse the provided
		// model or the handler's existing context, and don't
		// run any hooks.
		var model interface{}
		if m, have := t.providedModels[name]; have {
			model = m
		} else if handler != nil {
			model = handler.Context()
		}
		t.setResolvedModel(name, model)
		info.Context = model
		return r.validateEntry(ctx, t, infos, index+1, matchPoint, handlerParams)
	}

	if err := t.abortedIfNeeded(); err != nil {
		return nil, err
	}

	if handler != nil && handler.BeforeModel != nil {
		// The hook's returned value is discarded.  (A handler
		// that redirects from beforeModel has already started
		// the replacement transition; the abort check below
		// takes care of this one.)
		if _, err := handler.BeforeModel(ctx, t, t.queryParams); err != nil {
			return nil, r.handleError(ctx, t, infos, index, err)
		}
	}

	if err := t.abortedIfNeeded(); err != nil {
		return nil, err
	}

	model, err := t.getModel(ctx, info, handlerParams[name], matchPoint <= index)
	if err != nil {
		return nil, r.handleError(ctx, t, infos, index, err)
	}
	// A hook that returns a Transition chose to redirect.  The
	// redirect is already the router's active transition; this
	// pipeline carries on with a nil model.
	if _, is := model.(*Transition); is {
		model = nil
	}

	if err := t.abortedIfNeeded(); err != nil {
		return nil, err
	}

	t.setResolvedModel(name, model)

	if handler != nil && handler.AfterModel != nil {
		// The returned value is discarded: the model captured
		// above is what the transition keeps.
		if _, err := handler.AfterModel(ctx, model, t, t.queryParams); err != nil {
			return nil, r.handleError(ctx, t, infos, index, err)
		}
	}

	if err := t.abortedIfNeeded(); err != nil {
		return nil, err
	}

	info.Context = model
	return r.validateEntry(ctx, t, infos, index+1, matchPoint, handlerParams)
}

// getModel picks the model source for one handler: the handler's own
// context when no update is forced, else a caller-provided model
// (invoked if it's a thunk), else the handler's Model hook.
func (t *Transition) getModel(ctx context.Context, info *HandlerInfo, params Params, needsUpdate bool) (interface{}, error) {
	handler := info.Handler

	if !needsUpdate && handler != nil && handler.HasContext() {
		return handler.Context(), nil
	}

	if m, have := t.providedModels[info.Name]; have {
		if f, is := m.(func() interface{}); is {
			return f(), nil
		}
		return m, nil
	}

	if handler != nil && handler.Model != nil {
		if params == nil {
			params = Params{}
		}
		return handler.Model(ctx, params, t, t.queryParams)
	}

	return nil, nil
}

// handleError routes a failed hook: a TransitionAborted passes
// through untouched; anything else aborts the transition, bubbles an
// "error" event from the failing handler up through its ancestors,
// gives the handler's own Error hook a look, and then comes back
// unchanged so the transition rejects with the original reason.
func (r *Router) handleError(ctx context.Context, t *Transition, infos []*HandlerInfo, index int, err error) error {
	if IsAborted(err) {
		return err
	}

	t.Abort()
	r.logf("error during transition %d to %s: %v", t.Sequence, t.TargetName, err)

	trigger(infos[:index+1], true, "error", err, t)

	if h := infos[index].Handler; h != nil && h.Error != nil {
		h.Error(err, t)
	}

	return err
}
