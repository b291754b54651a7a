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
	"sync"
)

// URL methods for Transition.Method.
const (
	// URLMethodUpdate commits the transition's URL via the
	// router's UpdateURL hook.  The default.
	URLMethodUpdate = "update"

	// URLMethodReplace commits via ReplaceURL instead.
	URLMethodReplace = "replace"

	// URLMethodNone leaves the URL alone on commit.
	URLMethodNone = ""
)

// deferred is a once-settled cell.  A Transition's external thenable
// contract forwards to one of these.
type deferred struct {
	once sync.Once
	done chan struct{}
	err  error
}

func newDeferred() *deferred {
	return &deferred{
		done: make(chan struct{}),
	}
}

func (d *deferred) resolve() {
	d.once.Do(func() {
		close(d.done)
	})
}

func (d *deferred) reject(err error) {
	d.once.Do(func() {
		d.err = err
		close(d.done)
	})
}

// Transition represents one attempt to move a Router from its
// current handler chain to a target chain.
//
// A Transition settles asynchronously.  Use Then (or Wait) to
// observe the outcome.  At most one non-aborted Transition exists per
// Router at a time; starting a new one aborts the old one.
type Transition struct {
	// Sequence is this transition's monotonically increasing id
	// within its Router.
	Sequence int `json:"sequence"`

	// TargetName is the leaf handler's symbolic name.
	TargetName string `json:"targetName"`

	// Data is a caller-owned bag that survives Retry.
	Data map[string]interface{} `json:"data,omitempty"`

	router              *Router
	providedModels      map[string]interface{}
	providedModelsArray []interface{}
	resolvedModels      map[string]interface{}
	params              Params
	queryParams         QueryParams

	mu        sync.Mutex
	urlMethod string
	aborted   bool

	d *deferred
}

func newTransition(r *Router, sequence int) *Transition {
	return &Transition{
		Sequence:       sequence,
		router:         r,
		urlMethod:      URLMethodUpdate,
		providedModels: map[string]interface{}{},
		resolvedModels: map[string]interface{}{},
		params:         Params{},
		queryParams:    QueryParams{},
		d:              newDeferred(),
	}
}

// errorTransition makes a Transition that is born rejected.
func errorTransition(r *Router, sequence int, err error) *Transition {
	t := newTransition(r, sequence)
	t.d.reject(err)
	return t
}

// Then registers callbacks for the transition's settlement.  Both
// callbacks are optional.  Returns the receiver.
func (t *Transition) Then(onResolved func(*Transition), onRejected func(error)) *Transition {
	go func() {
		<-t.d.done
		if t.d.err != nil {
			if onRejected != nil {
				onRejected(t.d.err)
			}
			return
		}
		if onResolved != nil {
			onResolved(t)
		}
	}()
	return t
}

// Wait blocks until the transition settles (or the given ctx gives
// up) and returns the transition's terminal error, if any.
func (t *Transition) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.d.done:
		return t.d.err
	}
}

// IsAborted reports whether the transition has been aborted.  The
// flag is monotone: once true, always true.
func (t *Transition) IsAborted() bool {
	t.mu.Lock()
	aborted := t.aborted
	t.mu.Unlock()
	return aborted
}

// Abort marks the transition aborted and releases the router's
// active-transition slot if this transition still holds it.
// Idempotent.  In-flight hooks are not interrupted; the pipeline's
// next abort check converts their eventual results into a
// TransitionAborted rejection.
func (t *Transition) Abort() *Transition {
	t.mu.Lock()
	was := t.aborted
	t.aborted = true
	t.mu.Unlock()
	if was {
		return t
	}

	r := t.router
	if r != nil {
		r.mu.Lock()
		if r.activeTransition == t {
			r.activeTransition = nil
		}
		r.mu.Unlock()
		r.logf("transition %d to %s aborted", t.Sequence, t.TargetName)
	}
	return t
}

// Retry aborts this transition and starts a fresh one to the same
// target with the same provided models, params, query params, and
// Data.
func (t *Transition) Retry(ctx context.Context) *Transition {
	t.Abort()

	r := t.router
	recognized, err := r.Recognizer.HandlersFor(t.TargetName)
	if err != nil {
		return errorTransition(r, r.nextSequence(), err)
	}
	return r.performTransition(ctx, recognized, t.providedModelsArray, t.params, t.queryParams, t.Data, URLMethodUpdate)
}

// Method sets how the URL is committed: URLMethodReplace uses the
// router's ReplaceURL hook, URLMethodNone suppresses the URL update,
// and anything else uses UpdateURL.  Returns the receiver.
func (t *Transition) Method(m string) *Transition {
	t.mu.Lock()
	t.urlMethod = m
	t.mu.Unlock()
	return t
}

func (t *Transition) method() string {
	t.mu.Lock()
	m := t.urlMethod
	t.mu.Unlock()
	return m
}

// Router returns the Router this transition belongs to.  A hook that
// wants to redirect uses this to start the replacement transition.
func (t *Transition) Router() *Router {
	return t.router
}

// ResolvedModels maps handler names to the models the validation
// pipeline resolved for them.  The pipeline is the only writer.
func (t *Transition) ResolvedModels() map[string]interface{} {
	t.mu.Lock()
	acc := make(map[string]interface{}, len(t.resolvedModels))
	for name, m := range t.resolvedModels {
		acc[name] = m
	}
	t.mu.Unlock()
	return acc
}

func (t *Transition) setResolvedModel(name string, x interface{}) {
	t.mu.Lock()
	t.resolvedModels[name] = x
	t.mu.Unlock()
}

func (t *Transition) resolvedModel(name string) (interface{}, bool) {
	t.mu.Lock()
	x, have := t.resolvedModels[name]
	t.mu.Unlock()
	return x, have
}

// Params is the flat dynamic-segment param mapping for this
// transition.
func (t *Transition) Params() Params {
	return t.params
}

// QueryParams is the query param mapping for this transition.
func (t *Transition) QueryParams() QueryParams {
	return t.queryParams
}

// abortedIfNeeded returns the canonical rejection if the transition
// has been aborted, else nil.  The pipeline calls this between every
// step.
func (t *Transition) abortedIfNeeded() error {
	if t.IsAborted() {
		return &TransitionAborted{}
	}
	return nil
}
