/* Copyright 2018 Comcast Cable Communications Management, LLC
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

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"

	. "github.com/Comcast/traipse/util/testutil"
)

var Verbose = true

func Copy(x interface{}) interface{} { // Sorry
	js, err := json.Marshal(&x)
	if err != nil {
		panic(err)
	}
	var y interface{}
	if err = json.Unmarshal(js, &y); err != nil {
		panic(err)
	}
	return y
}

// Render writes a readable account of navigation results.
func Render(w io.Writer, tag string, rs map[string]*NavResult) {
	fmt.Fprintf(w, "NavResults %s (%d navigators)\n", tag, len(rs))
	for id, r := range rs {
		fmt.Fprintf(w, "%s\n", id)
		fmt.Fprintf(w, "  target   %s\n", r.Target)
		if r.Location != "" {
			fmt.Fprintf(w, "  location %s\n", r.Location)
		}
		if 0 < len(r.Params) {
			fmt.Fprintf(w, "  params   %s\n", JS(r.Params))
		}
		if 0 < len(r.QueryParams) {
			fmt.Fprintf(w, "  query    %s\n", JS(r.QueryParams))
		}
		if r.Aborted {
			fmt.Fprintf(w, "  aborted\n")
		}
		if r.Err != "" {
			fmt.Fprintf(w, "  error    %s\n", r.Err)
		}
	}
}

type WrappedError struct {
	Outer error `json:"outer"`
	Inner error `json:"inner"`
}

func (e *WrappedError) Error() string {
	return e.Outer.Error() + " after " + e.Inner.Error()
}

func NewWrappedError(outer, inner error) error {
	if inner == nil {
		return outer
	}
	return &WrappedError{
		Outer: outer,
		Inner: inner,
	}
}

func Logf(format string, args ...interface{}) {
	if !Verbose {
		return
	}
	log.Printf(format, args...)
}
