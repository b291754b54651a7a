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


// Package recognize provides a route table that implements
// core.Recognizer: nested route definitions with dynamic (":name")
// path segments and per-route query param allow-lists.
//
// A table is defined as data (see Def), so tables are easy to read
// from YAML or JSON files.
package recognize

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/Comcast/traipse/core"
)

// Def defines one route and (optionally) its nested children.  Paths
// are relative to the parent's path.  A path segment starting with
// ":" is dynamic: it captures that segment of the URL under the given
// name.
type Def struct {
	// Name is the route's symbolic name.  Must be unique within a
	// table.
	Name string `json:"name" yaml:"name"`

	// Path is this route's path relative to its parent.  "/" (or
	// empty) adds no segments.
	Path string `json:"path" yaml:"path"`

	// QueryParams is the allow-list of query param keys for this
	// route.
	QueryParams []string `json:"queryParams,omitempty" yaml:"queryParams,omitempty"`

	// Handler optionally names a handler source (used by hosts
	// that compile handlers from data; the engine itself only
	// sees Name).
	Handler string `json:"handler,omitempty" yaml:"handler,omitempty"`

	// Doc describes the route in English and Markdown.
	Doc string `json:"doc,omitempty" yaml:"doc,omitempty"`

	// Routes gives this route's children.
	Routes []Def `json:"routes,omitempty" yaml:",omitempty"`
}

type segment struct {
	literal string
	name    string
	dynamic bool
}

type route struct {
	name        string
	segments    []segment
	queryParams []string
	parent      *route
	children    []*route
}

// chain returns the route's ancestry, root to leaf.
func (rt *route) chain() []*route {
	var acc []*route
	for at := rt; at != nil; at = at.parent {
		acc = append([]*route{at}, acc...)
	}
	return acc
}

func (rt *route) names() []string {
	var acc []string
	for _, seg := range rt.segments {
		if seg.dynamic {
			acc = append(acc, seg.name)
		}
	}
	return acc
}

// Recognizer is a compiled route table.
type Recognizer struct {
	routes map[string]*route
	roots  []*route
}

// NewRecognizer makes an empty route table.
func NewRecognizer() *Recognizer {
	return &Recognizer{
		routes: make(map[string]*route, 32),
	}
}

// DuplicateRoute occurs when a Def reuses a route name.
var DuplicateRoute = errors.New("duplicate route name")

// Define adds route definitions (and their children) to the table.
func (r *Recognizer) Define(defs ...Def) error {
	for _, def := range defs {
		if _, err := r.define(nil, def); err != nil {
			return err
		}
	}
	return nil
}

func (r *Recognizer) define(parent *route, def Def) (*route, error) {
	if def.Name == "" {
		return nil, errors.New("route with no name")
	}
	if _, have := r.routes[def.Name]; have {
		return nil, fmt.Errorf("%w: %s", DuplicateRoute, def.Name)
	}

	rt := &route{
		name:        def.Name,
		segments:    parseSegments(def.Path),
		queryParams: def.QueryParams,
		parent:      parent,
	}
	r.routes[def.Name] = rt
	if parent == nil {
		r.roots = append(r.roots, rt)
	} else {
		parent.children = append(parent.children, rt)
	}

	for _, child := range def.Routes {
		if _, err := r.define(rt, child); err != nil {
			return nil, err
		}
	}
	return rt, nil
}

func parseSegments(path string) []segment {
	var acc []segment
	for _, part := range strings.Split(path, "/") {
		if part == "" {
			continue
		}
		if strings.HasPrefix(part, ":") {
			acc = append(acc, segment{name: part[1:], dynamic: true})
		} else {
			acc = append(acc, segment{literal: part})
		}
	}
	return acc
}

// HasRoute reports whether the named route exists.
func (r *Recognizer) HasRoute(name string) bool {
	_, have := r.routes[name]
	return have
}

// HandlersFor returns the handler chain (root to leaf) for the named
// route.
func (r *Recognizer) HandlersFor(name string) ([]*core.RecognizedHandler, error) {
	rt, have := r.routes[name]
	if !have {
		return nil, &core.UnknownRouteError{RouteName: name}
	}

	chain := rt.chain()
	acc := make([]*core.RecognizedHandler, 0, len(chain))
	for _, at := range chain {
		names := at.names()
		acc = append(acc, &core.RecognizedHandler{
			Handler:     at.name,
			Names:       names,
			IsDynamic:   0 < len(names),
			QueryParams: at.queryParams,
		})
	}
	return acc, nil
}

// Recognize parses a URL into a handler chain with captured params,
// or returns nil if no route matches.  Literal segments win over
// dynamic ones.
func (r *Recognizer) Recognize(given string) *core.RecognizedURL {
	u, err := url.Parse(given)
	if err != nil {
		return nil
	}

	var segments []string
	for _, part := range strings.Split(u.Path, "/") {
		if part != "" {
			segments = append(segments, part)
		}
	}

	leaf, params := match(r.roots, nil, segments)
	if leaf == nil {
		return nil
	}

	queryParams := core.QueryParams{}
	for k, vs := range u.Query() {
		if 0 < len(vs) {
			queryParams[k] = vs[len(vs)-1]
		}
	}

	chain := leaf.chain()
	handlers := make([]*core.RecognizedHandler, 0, len(chain))
	for _, at := range chain {
		names := at.names()
		h := &core.RecognizedHandler{
			Handler:     at.name,
			Names:       names,
			IsDynamic:   0 < len(names),
			QueryParams: at.queryParams,
		}
		if 0 < len(names) {
			h.Params = core.Params{}
			for _, n := range names {
				h.Params[n] = params[n]
			}
		}
		handlers = append(handlers, h)
	}

	return &core.RecognizedURL{
		Handlers:    handlers,
		QueryParams: queryParams,
	}
}

// match tries each candidate route against the remaining segments,
// descending into children until everything is consumed.
func match(candidates []*route, params core.Params, segments []string) (*route, core.Params) {
	ordered := append([]*route{}, candidates...)
	sort.SliceStable(ordered, func(i, j int) bool {
		// A route with any dynamic segment sorts after its
		// all-literal peers.
		return !ordered[i].hasDynamic() && ordered[j].hasDynamic()
	})

	for _, rt := range ordered {
		captured, rest, ok := rt.consume(segments)
		if !ok {
			continue
		}

		merged := core.Params{}
		for k, v := range params {
			merged[k] = v
		}
		for k, v := range captured {
			merged[k] = v
		}

		if len(rest) == 0 {
			return rt, merged
		}
		if leaf, leafParams := match(rt.children, merged, rest); leaf != nil {
			return leaf, leafParams
		}
	}
	return nil, nil
}

func (rt *route) hasDynamic() bool {
	for _, seg := range rt.segments {
		if seg.dynamic {
			return true
		}
	}
	return false
}

// consume matches this route's own segments against the front of the
// given segments, capturing dynamics.
func (rt *route) consume(segments []string) (core.Params, []string, bool) {
	if len(segments) < len(rt.segments) {
		return nil, nil, false
	}
	captured := core.Params{}
	for i, seg := range rt.segments {
		if seg.dynamic {
			captured[seg.name] = segments[i]
			continue
		}
		if seg.literal != segments[i] {
			return nil, nil, false
		}
	}
	return captured, segments[len(rt.segments):], true
}

// Generate builds a URL for the named route from flat params and
// query params.  Missing dynamic params are an error.  Sentinel
// (nil or false) query param values are dropped.
func (r *Recognizer) Generate(name string, params core.Params, queryParams core.QueryParams) (string, error) {
	rt, have := r.routes[name]
	if !have {
		return "", &core.UnknownRouteError{RouteName: name}
	}

	var parts []string
	for _, at := range rt.chain() {
		for _, seg := range at.segments {
			if !seg.dynamic {
				parts = append(parts, seg.literal)
				continue
			}
			v, have := params[seg.name]
			if !have {
				return "", fmt.Errorf("no value for dynamic segment %q of route %q", seg.name, name)
			}
			parts = append(parts, v)
		}
	}

	generated := "/" + strings.Join(parts, "/")

	if 0 < len(queryParams) {
		vs := url.Values{}
		for k, v := range queryParams {
			if v == nil {
				continue
			}
			if b, is := v.(bool); is && !b {
				continue
			}
			vs.Set(k, fmt.Sprintf("%v", v))
		}
		if encoded := vs.Encode(); encoded != "" {
			generated += "?" + encoded
		}
	}

	return generated, nil
}
