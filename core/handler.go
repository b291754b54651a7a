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
	"math"
	"strconv"
)

// Params maps dynamic segment names to their (string) values.
type Params map[string]string

// Copy makes a shallow copy of the Params.
func (ps Params) Copy() Params {
	acc := make(Params, len(ps))
	for p, v := range ps {
		acc[p] = v
	}
	return acc
}

// QueryParams maps query param keys to their values.
//
// A nil or false value is a sentinel meaning "clear this key": when
// such a value is merged into a derived mapping, the key is removed
// instead of set.
type QueryParams map[string]interface{}

// Copy makes a shallow copy of the QueryParams.
func (qps QueryParams) Copy() QueryParams {
	acc := make(QueryParams, len(qps))
	for p, v := range qps {
		acc[p] = v
	}
	return acc
}

// EventHandler handles a named event bubbling up the active chain.
//
// Returning exactly true lets the event continue bubbling toward the
// root.  Any other return value stops propagation.
type EventHandler func(args ...interface{}) interface{}

// Handler is a host-supplied object representing one level of a
// nested route.  Every hook is optional; the core never assumes any
// is present.
//
// The core writes each handler's resolved context and query params
// back onto the handler as a transition commits (see SetContext and
// so on below).  Handlers are free to carry whatever other state they
// want.
type Handler struct {
	// BeforeModel runs before the model is resolved.  Its returned
	// value is discarded; an error fails the transition.
	BeforeModel func(ctx context.Context, t *Transition, queryParams QueryParams) (interface{}, error)

	// Model resolves this handler's model from the given params.
	// It is consulted only when no model was provided by the
	// caller and no context can be reused.
	Model func(ctx context.Context, params Params, t *Transition, queryParams QueryParams) (interface{}, error)

	// AfterModel runs after the model is resolved.  Its returned
	// value is discarded: the pipeline retains the model it
	// captured before invoking AfterModel.
	AfterModel func(ctx context.Context, model interface{}, t *Transition, queryParams QueryParams) (interface{}, error)

	// Enter is called when the handler becomes part of the active
	// chain.
	Enter func() error

	// Setup is called after Enter (or after a context update) with
	// the handler's new context and query params.
	Setup func(model interface{}, queryParams QueryParams) error

	// Exit is called when the handler leaves the active chain.
	Exit func()

	// Serialize turns a model back into URL params for the given
	// dynamic segment names.  See DefaultSerialize for what
	// happens when this is nil.
	Serialize func(model interface{}, names []string) Params

	// Error is called when one of this handler's own
	// beforeModel, model, or afterModel hooks fails, after the
	// "error" event has bubbled.  Ancestors' Error hooks are not
	// called.
	Error func(reason error, t *Transition)

	// ContextDidChange is called whenever the core writes a new
	// context onto this handler.
	ContextDidChange func()

	// QueryParamsDidChange is called whenever the core writes new
	// query params onto this handler.
	QueryParamsDidChange func()

	// Events maps event names to handlers for Trigger.
	Events map[string]EventHandler

	context     interface{}
	haveContext bool
	queryParams QueryParams
}

// Context returns the handler's current context (its resolved model),
// if any.
func (h *Handler) Context() interface{} {
	return h.context
}

// HasContext reports whether the handler currently has a context.
//
// The distinction between "no context" and "a nil context" matters:
// a handler whose model resolved to nil still has a context, and the
// match-point machinery will reuse it.
func (h *Handler) HasContext() bool {
	return h.haveContext
}

// SetContext writes a context onto the handler and fires
// ContextDidChange (if any).
func (h *Handler) SetContext(x interface{}) {
	h.context = x
	h.haveContext = true
	if h.ContextDidChange != nil {
		h.ContextDidChange()
	}
}

// ClearContext removes the handler's context.
//
// Note that the handler's query params are deliberately left in
// place.  (An exited handler keeps its last query params.)
func (h *Handler) ClearContext() {
	h.context = nil
	h.haveContext = false
}

// QueryParams returns the query params last written onto the handler.
func (h *Handler) QueryParams() QueryParams {
	return h.queryParams
}

// SetQueryParams writes query params onto the handler and fires
// QueryParamsDidChange (if any).
func (h *Handler) SetQueryParams(qps QueryParams) {
	h.queryParams = qps
	if h.QueryParamsDidChange != nil {
		h.QueryParamsDidChange()
	}
}

// paramLike reports whether x is a value that can stand in for a URL
// param directly: a string, a number that isn't a NaN, or a bool.
// The string rendering is returned.
func paramLike(x interface{}) (string, bool) {
	switch v := x.(type) {
	case string:
		return v, true
	case bool:
		return strconv.FormatBool(v), true
	case int:
		return strconv.Itoa(v), true
	case int8:
		return strconv.FormatInt(int64(v), 10), true
	case int16:
		return strconv.FormatInt(int64(v), 10), true
	case int32:
		return strconv.FormatInt(int64(v), 10), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case uint:
		return strconv.FormatUint(uint64(v), 10), true
	case uint8:
		return strconv.FormatUint(uint64(v), 10), true
	case uint16:
		return strconv.FormatUint(uint64(v), 10), true
	case uint32:
		return strconv.FormatUint(uint64(v), 10), true
	case uint64:
		return strconv.FormatUint(v, 10), true
	case float32:
		if math.IsNaN(float64(v)) {
			return "", false
		}
		return strconv.FormatFloat(float64(v), 'f', -1, 32), true
	case float64:
		if math.IsNaN(v) {
			return "", false
		}
		return strconv.FormatFloat(v, 'f', -1, 64), true
	}
	return "", false
}
