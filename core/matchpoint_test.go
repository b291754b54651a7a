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

func chainInfo(name string, names []string, params Params, qps QueryParams) *HandlerInfo {
	return &HandlerInfo{
		Name:        name,
		Handler:     &Handler{},
		Names:       names,
		IsDynamic:   0 < len(names),
		Params:      params,
		QueryParams: qps,
	}
}

func TestGetMatchPointFreshChain(t *testing.T) {
	// A URL transition with no current chain: everything changes.
	infos := []*HandlerInfo{
		chainInfo("index", nil, nil, nil),
		chainInfo("posts", nil, nil, nil),
		chainInfo("showPost", []string{"id"}, Params{"id": "1"}, nil),
	}

	res, err := getMatchPoint(&routerState{}, infos, nil, Params{"id": "1"})
	if err != nil {
		t.Fatal(err)
	}
	if res.matchPoint != 0 {
		t.Fatalf("matchPoint: got %d, wanted 0", res.matchPoint)
	}
	if res.params["id"] != "1" {
		t.Fatalf("params: got %v", res.params)
	}
	if hp := res.handlerParams["showPost"]; hp["id"] != "1" {
		t.Fatalf("handlerParams: got %v", res.handlerParams)
	}
}

func TestGetMatchPointUnchanged(t *testing.T) {
	current := []*HandlerInfo{
		chainInfo("index", nil, nil, nil),
		chainInfo("posts", nil, nil, nil),
		chainInfo("showPost", []string{"id"}, nil, nil),
	}
	state := &routerState{
		currentHandlerInfos: current,
		currentParams:       Params{"id": "1"},
	}

	infos := []*HandlerInfo{
		chainInfo("index", nil, nil, nil),
		chainInfo("posts", nil, nil, nil),
		chainInfo("showPost", []string{"id"}, nil, nil),
	}

	res, err := getMatchPoint(state, infos, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.matchPoint != len(infos) {
		t.Fatalf("matchPoint: got %d, wanted %d", res.matchPoint, len(infos))
	}
	// Old params are reused.
	if res.params["id"] != "1" {
		t.Fatalf("params: got %v", res.params)
	}
}

func TestGetMatchPointParamChange(t *testing.T) {
	current := []*HandlerInfo{
		chainInfo("posts", nil, nil, nil),
		chainInfo("showPost", []string{"id"}, nil, nil),
	}
	state := &routerState{
		currentHandlerInfos: current,
		currentParams:       Params{"id": "1"},
	}

	infos := []*HandlerInfo{
		chainInfo("posts", nil, nil, nil),
		chainInfo("showPost", []string{"id"}, Params{"id": "2"}, nil),
	}

	res, err := getMatchPoint(state, infos, nil, Params{"id": "2"})
	if err != nil {
		t.Fatal(err)
	}
	if res.matchPoint != 1 {
		t.Fatalf("matchPoint: got %d, wanted 1", res.matchPoint)
	}
}

func TestGetMatchPointSuppliedObjects(t *testing.T) {
	post := map[string]interface{}{"id": 7}

	infos := []*HandlerInfo{
		chainInfo("posts", nil, nil, nil),
		chainInfo("showPost", []string{"id"}, nil, nil),
	}

	// A full model lands in providedModels.
	res, err := getMatchPoint(&routerState{}, infos, []interface{}{post}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := res.providedModels["showPost"]; !sameContext(got, post) {
		t.Fatalf("providedModels: got %v", res.providedModels)
	}

	// A param-like object becomes the param under the first name.
	infos = []*HandlerInfo{
		chainInfo("posts", nil, nil, nil),
		chainInfo("showPost", []string{"id"}, nil, nil),
	}
	if res, err = getMatchPoint(&routerState{}, infos, []interface{}{3}, nil); err != nil {
		t.Fatal(err)
	}
	if res.params["id"] != "3" {
		t.Fatalf("params: got %v", res.params)
	}
	if _, have := res.providedModels["showPost"]; have {
		t.Fatal("a param-like object should not be a provided model")
	}
}

func TestGetMatchPointTooManyContexts(t *testing.T) {
	infos := []*HandlerInfo{
		chainInfo("about", nil, nil, nil),
	}

	_, err := getMatchPoint(&routerState{}, infos, []interface{}{1, 2}, nil)
	if err == nil {
		t.Fatal("expected an error")
	}
	tmc, is := err.(*TooManyContexts)
	if !is {
		t.Fatalf("got a %T: %v", err, err)
	}
	if tmc.TargetName != "about" {
		t.Fatalf("got target %q", tmc.TargetName)
	}
}

func TestGetMatchPointQueryParamChange(t *testing.T) {
	current := []*HandlerInfo{
		chainInfo("posts", nil, nil, QueryParams{"sort": "asc"}),
	}
	state := &routerState{
		currentHandlerInfos: current,
	}

	infos := []*HandlerInfo{
		chainInfo("posts", nil, nil, QueryParams{"sort": "desc"}),
	}

	res, err := getMatchPoint(state, infos, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.matchPoint != 0 {
		t.Fatalf("matchPoint: got %d, wanted 0", res.matchPoint)
	}
}

func TestGetMatchPointActiveTransitionModels(t *testing.T) {
	// Re-validation after a supersede reuses the superseded
	// transition's resolved models.
	post := map[string]interface{}{"id": 7}
	active := &Transition{
		resolvedModels: map[string]interface{}{"showPost": post},
		providedModels: map[string]interface{}{},
	}
	state := &routerState{
		activeTransition: active,
	}

	infos := []*HandlerInfo{
		chainInfo("posts", nil, nil, nil),
		chainInfo("showPost", []string{"id"}, nil, nil),
	}

	res, err := getMatchPoint(state, infos, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := res.providedModels["showPost"]; !sameContext(got, post) {
		t.Fatalf("providedModels: got %v", res.providedModels)
	}
}
