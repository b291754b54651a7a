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
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// Router drives transitions between nested route handler chains.
//
// The host supplies the Recognizer and the hooks; the Router owns the
// current chain, the current params, and the (at most one) active
// transition.
type Router struct {
	// Recognizer is the route table collaborator.  Required.
	Recognizer Recognizer

	// GetHandler resolves a handler name to the host's handler
	// object.  Required.  The host should return the same object
	// for the same name across calls.
	GetHandler func(name string) *Handler

	// UpdateURL tells the host to make the given URL current.
	UpdateURL func(url string)

	// ReplaceURL is like UpdateURL but should replace the current
	// history entry.  Defaults to UpdateURL.
	ReplaceURL func(url string)

	// Log, if given, receives a line per notable engine event.
	Log func(msg string)

	// DidTransition, if given, is called after each successful
	// commit with the new chain.
	DidTransition func(infos []*HandlerInfo)

	mu                  sync.Mutex
	currentHandlerInfos []*HandlerInfo
	targetHandlerInfos  []*HandlerInfo
	currentParams       Params
	currentQueryParams  QueryParams
	activeTransition    *Transition
	sequence            int
}

// NewRouter makes a Router with the given collaborators.
func NewRouter(recognizer Recognizer, getHandler func(name string) *Handler) *Router {
	return &Router{
		Recognizer: recognizer,
		GetHandler: getHandler,
	}
}

func (r *Router) logf(format string, args ...interface{}) {
	if r.Log == nil {
		return
	}
	r.Log(fmt.Sprintf(format, args...))
}

func (r *Router) snapshot() *routerState {
	r.mu.Lock()
	state := &routerState{
		currentHandlerInfos: r.currentHandlerInfos,
		currentParams:       r.currentParams,
		currentQueryParams:  r.currentQueryParams,
		activeTransition:    r.activeTransition,
	}
	r.mu.Unlock()
	return state
}

func (r *Router) nextSequence() int {
	r.mu.Lock()
	seq := r.sequence
	r.sequence++
	r.mu.Unlock()
	return seq
}

// CurrentHandlerInfos returns the committed chain (root to leaf), or
// nil if no transition has committed yet.
func (r *Router) CurrentHandlerInfos() []*HandlerInfo {
	r.mu.Lock()
	infos := r.currentHandlerInfos
	r.mu.Unlock()
	return infos
}

// CurrentParams returns the params of the committed chain.
func (r *Router) CurrentParams() Params {
	r.mu.Lock()
	ps := r.currentParams
	r.mu.Unlock()
	return ps
}

// CurrentQueryParams returns the query params of the committed chain.
func (r *Router) CurrentQueryParams() QueryParams {
	r.mu.Lock()
	qps := r.currentQueryParams
	r.mu.Unlock()
	return qps
}

// ActiveTransition returns the in-flight transition, if any.
func (r *Router) ActiveTransition() *Transition {
	r.mu.Lock()
	t := r.activeTransition
	r.mu.Unlock()
	return t
}

// TransitionTo starts a transition to the named route (or, if the
// name starts with "/", to the URL).  Trailing args are context
// objects for the route's dynamic segments, consumed leaf-inward; a
// final QueryParams arg carries query params.  An empty name with
// query params transitions the current leaf route to new query
// params.
func (r *Router) TransitionTo(ctx context.Context, name string, args ...interface{}) *Transition {
	return r.doTransition(ctx, name, args, URLMethodUpdate)
}

// ReplaceWith is TransitionTo, but the URL commit replaces the
// current history entry.
func (r *Router) ReplaceWith(ctx context.Context, name string, args ...interface{}) *Transition {
	return r.doTransition(ctx, name, args, URLMethodReplace)
}

// HandleURL transitions to the route the given URL recognizes to.
// The URL is taken as already current, so the commit does not touch
// the host's URL.
func (r *Router) HandleURL(ctx context.Context, url string) *Transition {
	if !strings.HasPrefix(url, "/") {
		url = "/" + url
	}
	return r.createURLTransition(ctx, url, URLMethodNone)
}

func (r *Router) doTransition(ctx context.Context, name string, args []interface{}, urlMethod string) *Transition {
	var queryParams QueryParams
	if n := len(args); 0 < n {
		if qps, is := args[n-1].(QueryParams); is {
			queryParams = qps
			args = args[:n-1]
		}
	}

	if name == "" {
		return r.createQueryParamTransition(ctx, queryParams, urlMethod)
	}

	if strings.HasPrefix(name, "/") {
		return r.createURLTransition(ctx, name, urlMethod)
	}

	return r.createNamedTransition(ctx, name, args, queryParams, urlMethod)
}

// createQueryParamTransition re-targets the current leaf route with
// new query params.
func (r *Router) createQueryParamTransition(ctx context.Context, queryParams QueryParams, urlMethod string) *Transition {
	r.mu.Lock()
	current := r.currentHandlerInfos
	r.mu.Unlock()

	if len(current) == 0 {
		return errorTransition(r, r.nextSequence(),
			fmt.Errorf("cannot transition on query params alone: %w", NoActiveHandlers))
	}
	leafName := current[len(current)-1].Name
	r.logf("attempting query param transition on %s", leafName)

	return r.createNamedTransition(ctx, leafName, nil, queryParams, urlMethod)
}

func (r *Router) createURLTransition(ctx context.Context, url string, urlMethod string) *Transition {
	recognized := r.Recognizer.Recognize(url)
	if recognized == nil || len(recognized.Handlers) == 0 {
		return errorTransition(r, r.nextSequence(), &UnrecognizedURLError{URL: url})
	}

	inputParams := Params{}
	for _, rh := range recognized.Handlers {
		for k, v := range rh.Params {
			inputParams[k] = v
		}
	}

	return r.performTransition(ctx, recognized.Handlers, nil, inputParams, recognized.QueryParams, nil, urlMethod)
}

func (r *Router) createNamedTransition(ctx context.Context, name string, objects []interface{}, queryParams QueryParams, urlMethod string) *Transition {
	if !r.Recognizer.HasRoute(name) {
		return errorTransition(r, r.nextSequence(), &UnknownRouteError{RouteName: name})
	}
	recognized, err := r.Recognizer.HandlersFor(name)
	if err != nil {
		return errorTransition(r, r.nextSequence(), err)
	}
	return r.performTransition(ctx, recognized, objects, nil, queryParams, nil, urlMethod)
}

// performTransition is the single entry for starting a transition
// once the recognizer has spoken.  It computes the match point,
// deduplicates against an identical in-flight transition, supersedes
// any different one, and kicks off the validation pipeline.
func (r *Router) performTransition(ctx context.Context, recognized []*RecognizedHandler, objects []interface{}, inputParams Params, queryParams QueryParams, data map[string]interface{}, urlMethod string) *Transition {

	if len(recognized) == 0 {
		return errorTransition(r, r.nextSequence(), &UnknownRouteError{})
	}

	state := r.snapshot()
	infos := r.assembleHandlerInfos(recognized, state.currentQueryParams, queryParams)
	targetName := infos[len(infos)-1].Name

	res, err := getMatchPoint(state, infos, objects, inputParams)
	if err != nil {
		return errorTransition(r, r.nextSequence(), err)
	}

	r.mu.Lock()

	if act := r.activeTransition; act != nil {
		// An identical in-flight transition is simply returned.
		if act.TargetName == targetName &&
			sameProvidedModels(act.providedModelsArray, objects) &&
			queryParamsEqual(act.queryParams, queryParams) {
			r.mu.Unlock()
			return act
		}
	}

	seq := r.sequence
	r.sequence++

	t := newTransition(r, seq)
	t.TargetName = targetName
	t.urlMethod = urlMethod
	t.providedModels = res.providedModels
	t.providedModelsArray = append([]interface{}{}, objects...)
	t.params = res.params
	if queryParams != nil {
		t.queryParams = queryParams
	}
	if data != nil {
		t.Data = data
	} else {
		t.Data = map[string]interface{}{}
	}

	old := r.activeTransition
	wasTransitioning := old != nil
	r.activeTransition = t
	current := r.currentHandlerInfos

	r.mu.Unlock()

	if old != nil {
		old.Abort()
	}

	// willTransition fires only if no transition was already
	// underway, which avoids a storm during redirect chains.
	if !wasTransitioning && current != nil {
		trigger(current, true, "willTransition", t)
	}

	r.logf("attempting transition %d to %s", seq, targetName)

	go r.runTransition(ctx, t, infos, res)

	return t
}

func (r *Router) runTransition(ctx context.Context, t *Transition, infos []*HandlerInfo, res *matchPointResults) {
	if _, err := r.validateEntry(ctx, t, infos, 0, res.matchPoint, res.handlerParams); err != nil {
		r.clearActive(t)
		t.d.reject(err)
		return
	}

	r.mu.Lock()
	current := r.currentHandlerInfos
	r.mu.Unlock()

	if current == nil || len(current) != res.matchPoint {
		if err := r.finalizeTransition(t, infos); err != nil {
			r.clearActive(t)
			t.d.reject(err)
			return
		}
	}

	r.clearActive(t)
	r.logf("transition %d to %s completed", t.Sequence, t.TargetName)
	t.d.resolve()
}

func (r *Router) clearActive(t *Transition) {
	r.mu.Lock()
	if r.activeTransition == t {
		r.activeTransition = nil
	}
	r.mu.Unlock()
}

// Generate builds a URL for the named route.  Trailing args are
// context objects (root to leaf); a final QueryParams arg carries
// query params, each of which must be valid for the route or one of
// its ancestors.
func (r *Router) Generate(name string, args ...interface{}) (string, error) {
	var queryParams QueryParams
	if n := len(args); 0 < n {
		if qps, is := args[n-1].(QueryParams); is {
			queryParams = qps
			args = args[:n-1]
		}
	}

	if 0 < len(queryParams) {
		allowed, err := r.queryParamsForHandler(name)
		if err != nil {
			return "", err
		}
		ok := make(map[string]bool, len(allowed))
		for _, k := range allowed {
			ok[k] = true
		}
		for k := range queryParams {
			if !ok[k] {
				return "", &InvalidQueryParam{Param: k, HandlerName: name}
			}
		}
	}

	state := r.snapshot()
	params, qps, err := r.paramsForHandler(state, name, args, queryParams)
	if err != nil {
		return "", err
	}
	return r.Recognizer.Generate(name, params, qps)
}

// IsActive reports whether the named route is part of the target
// chain, with the given contexts and query params.  Contexts are
// consumed right to left from the first occurrence of the name
// upward: a param-like context must equal the current param under
// the handler's first segment name; anything else must be identically
// the handler's current context.
func (r *Router) IsActive(name string, args ...interface{}) bool {
	var queryParams QueryParams
	contexts := append([]interface{}{}, args...)
	if n := len(contexts); 0 < n {
		if qps, is := contexts[n-1].(QueryParams); is {
			queryParams = qps
			contexts = contexts[:n-1]
		}
	}

	r.mu.Lock()
	target := r.targetHandlerInfos
	currentParams := r.currentParams
	currentQueryParams := r.currentQueryParams
	r.mu.Unlock()

	if target == nil {
		return false
	}

	found := false
	for i := len(target) - 1; 0 <= i; i-- {
		info := target[i]
		if info.Name == name {
			found = true
		}
		if !found || len(contexts) == 0 {
			continue
		}
		if !info.IsDynamic && len(info.Names) == 0 {
			continue
		}

		object := contexts[len(contexts)-1]
		contexts = contexts[:len(contexts)-1]

		if s, ok := paramLike(object); ok {
			if len(info.Names) == 0 || currentParams[info.Names[0]] != s {
				return false
			}
		} else if h := info.Handler; h == nil || !sameContext(h.Context(), object) {
			return false
		}
	}

	if !found || 0 < len(contexts) {
		return false
	}

	if 0 < len(queryParams) {
		allowed, err := r.queryParamsForHandler(name)
		if err != nil {
			return false
		}
		ok := make(map[string]bool, len(allowed))
		for _, k := range allowed {
			ok[k] = true
		}
		for k, v := range queryParams {
			if !ok[k] {
				return false
			}
			cv, have := currentQueryParams[k]
			if !have || !reflect.DeepEqual(cv, v) {
				return false
			}
		}
	}

	return true
}

// Trigger bubbles a named event up the current chain.  An error is
// returned if nothing handles the event.
func (r *Router) Trigger(name string, args ...interface{}) error {
	r.mu.Lock()
	current := r.currentHandlerInfos
	r.mu.Unlock()
	return trigger(current, false, name, args...)
}

// Reset exits every current handler, leaf first, and forgets the
// current and target chains.
func (r *Router) Reset() {
	r.mu.Lock()
	current := r.currentHandlerInfos
	r.currentHandlerInfos = nil
	r.targetHandlerInfos = nil
	r.mu.Unlock()

	for i := len(current) - 1; 0 <= i; i-- {
		if h := current[i].Handler; h != nil && h.Exit != nil {
			h.Exit()
		}
	}
}
