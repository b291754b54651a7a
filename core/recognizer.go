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

// RecognizedHandler is one level of a route as reported by a
// Recognizer: either the result of recognizing a URL (Params
// populated) or of looking up a symbolic route name (Names
// populated).
type RecognizedHandler struct {
	// Handler is the handler's symbolic name.
	Handler string `json:"handler"`

	// Names lists the handler's dynamic segment names, root to
	// leaf order within this level.
	Names []string `json:"names,omitempty" yaml:",omitempty"`

	// IsDynamic reports whether this level has any dynamic
	// segments.
	IsDynamic bool `json:"isDynamic,omitempty" yaml:"isDynamic,omitempty"`

	// Params gives the dynamic segment values parsed from a URL.
	// Only populated when recognizing a URL.
	Params Params `json:"params,omitempty" yaml:",omitempty"`

	// QueryParams is the allow-list of query param keys this
	// handler accepts.
	QueryParams []string `json:"queryParams,omitempty" yaml:"queryParams,omitempty"`
}

// RecognizedURL is the result of recognizing a URL: the handler chain
// plus the query param values parsed from the URL's query string.
type RecognizedURL struct {
	Handlers    []*RecognizedHandler `json:"handlers"`
	QueryParams QueryParams          `json:"queryParams,omitempty" yaml:"queryParams,omitempty"`
}

// Recognizer is the route table collaborator a Router needs.  The
// recognize package provides an implementation, but any host can
// supply its own.
type Recognizer interface {
	// Recognize parses a URL into a handler chain.  Returns nil
	// if no route matches.
	Recognize(url string) *RecognizedURL

	// HandlersFor returns the handler chain (root to leaf) for a
	// symbolic route name.
	HandlersFor(name string) ([]*RecognizedHandler, error)

	// Generate builds a URL for the named route from flat params
	// and query params.
	Generate(name string, params Params, queryParams QueryParams) (string, error)

	// HasRoute reports whether the named route exists.
	HasRoute(name string) bool
}
