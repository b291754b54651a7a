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

package crew

import (
	"context"
	"fmt"
	"sync"

	"github.com/Comcast/traipse/core"
	"github.com/Comcast/traipse/handlers"
	"github.com/Comcast/traipse/recognize"
)

// Table is a route table together with the handler sources its
// routes use.  This is the unit a TableSource points at, and what a
// navigator's router is built from.
type Table struct {
	// Name is the generic name for this table.  Something like
	// "storefront".
	Name string `json:"name,omitempty" yaml:",omitempty"`

	// Doc is general documentation about how this table works.
	Doc string `json:"doc,omitempty" yaml:",omitempty"`

	// Routes is the nested route structure.
	Routes []recognize.Def `json:"routes" yaml:"routes"`

	// Handlers gives the handler sources for the routes.  A route
	// with no source still gets a (hookless) handler.
	Handlers []handlers.Source `json:"handlers,omitempty" yaml:",omitempty"`
}

// Compile builds the table's Recognizer and its getHandler function.
//
// Handler sources are compiled with the given compilers (nil means
// handlers.DefaultCompilers).  Routes without a source get an empty
// Handler, so the engine always has an object to write contexts onto.
func (t *Table) Compile(ctx context.Context, compilers handlers.CompilersMap) (*recognize.Recognizer, func(name string) *core.Handler, error) {
	if compilers == nil {
		compilers = handlers.DefaultCompilers
	}

	r := recognize.NewRecognizer()
	if err := r.Define(t.Routes...); err != nil {
		return nil, nil, err
	}

	compiled := make(map[string]*core.Handler, len(t.Handlers))
	for i := range t.Handlers {
		src := &t.Handlers[i]
		name := src.Compiler
		if name == "" {
			name = "goja"
		}
		compiler, have := compilers[name]
		if !have {
			return nil, nil, fmt.Errorf("compiler not found: %s", name)
		}
		h, err := compiler.CompileHandler(ctx, src)
		if err != nil {
			return nil, nil, fmt.Errorf("handler %q: %w", src.Name, err)
		}
		compiled[src.Name] = h
	}

	// The engine wants the same object back for the same name, so
	// hookless handlers are made once and remembered.
	var mu sync.Mutex
	getHandler := func(name string) *core.Handler {
		mu.Lock()
		h, have := compiled[name]
		if !have {
			h = &core.Handler{}
			compiled[name] = h
		}
		mu.Unlock()
		return h
	}

	return r, getHandler, nil
}
