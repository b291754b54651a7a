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

// These errors are user errors, not internal errors.

import (
	"errors"
)

// UnrecognizedURLError occurs when the Recognizer can't make sense of
// a URL given to HandleURL (or to TransitionTo and friends).
type UnrecognizedURLError struct {
	URL string
}

func (e *UnrecognizedURLError) Error() string {
	return `no route recognized for "` + e.URL + `"`
}

// Name returns the canonical name for this error variant.
func (e *UnrecognizedURLError) Name() string {
	return "UnrecognizedURLError"
}

// TransitionAborted is the canonical rejection for a Transition that
// was aborted (usually because a newer Transition superseded it).
//
// A hook that returns a TransitionAborted is treated as a clean
// abort: the pipeline will not bubble an "error" event for it.
type TransitionAborted struct {
	Message string
}

func (e *TransitionAborted) Error() string {
	if e.Message == "" {
		return "transition aborted"
	}
	return e.Message
}

// Name returns the canonical name for this error variant.
func (e *TransitionAborted) Name() string {
	return "TransitionAborted"
}

// IsAborted reports whether the given error is (or wraps) a
// TransitionAborted.
func IsAborted(err error) bool {
	var aborted *TransitionAborted
	return errors.As(err, &aborted)
}

// TooManyContexts occurs when a caller supplies more context objects
// than the target chain has dynamic segments to consume.
type TooManyContexts struct {
	TargetName string
}

func (e *TooManyContexts) Error() string {
	return `more context objects were passed than there are dynamic segments for the route "` + e.TargetName + `"`
}

// UnknownRouteError occurs when a symbolic route name isn't in the
// Recognizer.
type UnknownRouteError struct {
	RouteName string
}

func (e *UnknownRouteError) Error() string {
	return `no route named "` + e.RouteName + `"`
}

// InvalidQueryParam occurs when a query param isn't valid for a
// handler or any of its ancestors.  Generate returns this error
// synchronously.
type InvalidQueryParam struct {
	Param       string
	HandlerName string
}

func (e *InvalidQueryParam) Error() string {
	return `query param "` + e.Param + `" is not valid for the route "` + e.HandlerName + `" or its ancestors`
}

// NoActiveHandlers occurs when an event is triggered but no handler
// chain is active to receive it.
var NoActiveHandlers = errors.New("no active handlers")
