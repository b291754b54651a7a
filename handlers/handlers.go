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


// Package handlers defines sources for route handlers whose hooks
// are code, along with the Compiler that turns a source into a
// core.Handler.  See the goja subpackage for the ECMAScript compiler.
package handlers

import (
	"context"

	"github.com/Comcast/traipse/core"
)

// Source describes a handler whose hooks are given as code in some
// interpreted language.  Every hook is optional; an empty hook is
// simply absent from the compiled handler.
//
// Tables typically carry these in YAML next to the route defs.
type Source struct {
	// Name is the handler's symbolic name.
	Name string `json:"name" yaml:"name"`

	// Doc describes the handler in English and Markdown.
	Doc string `json:"doc,omitempty" yaml:"doc,omitempty"`

	// Compiler names the Compiler for this source.  Defaults to
	// "goja".
	Compiler string `json:"compiler,omitempty" yaml:"compiler,omitempty"`

	// Requires names libraries to prepend to every hook.
	Requires []string `json:"requires,omitempty" yaml:"requires,omitempty"`

	BeforeModel string `json:"beforeModel,omitempty" yaml:"beforeModel,omitempty"`
	Model       string `json:"model,omitempty" yaml:"model,omitempty"`
	AfterModel  string `json:"afterModel,omitempty" yaml:"afterModel,omitempty"`
	Serialize   string `json:"serialize,omitempty" yaml:"serialize,omitempty"`
	Enter       string `json:"enter,omitempty" yaml:"enter,omitempty"`
	Setup       string `json:"setup,omitempty" yaml:"setup,omitempty"`
	Exit        string `json:"exit,omitempty" yaml:"exit,omitempty"`

	// Events maps event names to hook code.
	Events map[string]string `json:"events,omitempty" yaml:"events,omitempty"`
}

// Compiler can turn a Source into a live core.Handler.
type Compiler interface {
	// CompileHandler compiles every hook in the source.
	CompileHandler(ctx context.Context, src *Source) (*core.Handler, error)
}

// CompilersMap maps Compiler names (e.g. "goja") to Compilers.
type CompilersMap map[string]Compiler

// NewCompilersMap does what you'd think.
func NewCompilersMap() CompilersMap {
	return make(CompilersMap, 2)
}

// DefaultCompilers will be used when a Source doesn't name its
// Compiler.  Subpackages register themselves here.
var DefaultCompilers = NewCompilersMap()
