/* Copyright 2021 Comcast Cable Communications Management, LLC
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
	"testing"
)

func eventInfo(name string, events map[string]EventHandler) *HandlerInfo {
	return &HandlerInfo{
		Name:    name,
		Handler: &Handler{Events: events},
	}
}

func TestTriggerBubblesLeafToRoot(t *testing.T) {
	var order []string

	chain := []*HandlerInfo{
		eventInfo("root", map[string]EventHandler{
			"ping": func(args ...interface{}) interface{} {
				order = append(order, "root")
				return true
			},
		}),
		eventInfo("mid", map[string]EventHandler{
			"ping": func(args ...interface{}) interface{} {
				order = append(order, "mid")
				return true
			},
		}),
		eventInfo("leaf", map[string]EventHandler{
			"ping": func(args ...interface{}) interface{} {
				order = append(order, "leaf")
				return true
			},
		}),
	}

	if err := trigger(chain, false, "ping"); err != nil {
		t.Fatal(err)
	}
	want := []string{"leaf", "mid", "root"}
	if len(order) != len(want) {
		t.Fatalf("got %v", order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("got %v, wanted %v", order, want)
		}
	}
}

func TestTriggerStopsOnNonTrueReturn(t *testing.T) {
	var order []string

	chain := []*HandlerInfo{
		eventInfo("root", map[string]EventHandler{
			"ping": func(args ...interface{}) interface{} {
				order = append(order, "root")
				return true
			},
		}),
		eventInfo("leaf", map[string]EventHandler{
			"ping": func(args ...interface{}) interface{} {
				order = append(order, "leaf")
				return "handled" // anything but true stops
			},
		}),
	}

	if err := trigger(chain, false, "ping"); err != nil {
		t.Fatal(err)
	}
	if len(order) != 1 || order[0] != "leaf" {
		t.Fatalf("got %v", order)
	}
}

func TestTriggerArgs(t *testing.T) {
	var got []interface{}

	chain := []*HandlerInfo{
		eventInfo("leaf", map[string]EventHandler{
			"ping": func(args ...interface{}) interface{} {
				got = args
				return nil
			},
		}),
	}

	if err := trigger(chain, false, "ping", 1, "two"); err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0] != 1 || got[1] != "two" {
		t.Fatalf("got %v", got)
	}
}

func TestTriggerUnhandled(t *testing.T) {
	chain := []*HandlerInfo{
		eventInfo("leaf", nil),
	}

	if err := trigger(chain, false, "ping"); err == nil {
		t.Fatal("an unhandled event should be an error")
	}
	if err := trigger(chain, true, "ping"); err != nil {
		t.Fatalf("ignoreFailure should swallow the failure: %v", err)
	}

	if err := trigger(nil, false, "ping"); err == nil {
		t.Fatal("an empty chain should be an error")
	}
	if err := trigger(nil, true, "ping"); err != nil {
		t.Fatalf("ignoreFailure should swallow the empty chain: %v", err)
	}
}
