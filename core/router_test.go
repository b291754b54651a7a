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
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"
)

// testRecognizer is a hand-rolled Recognizer for a small fixed route
// tree:
//
//	index                /
//	posts                /posts
//	  showPost           /posts/:id
//	  newPost            /posts/new
//	about                /about/:id
type testRecognizer struct {
	chains map[string][]*RecognizedHandler
	urls   map[string]*RecognizedURL
	paths  map[string]string
}

func newTestRecognizer() *testRecognizer {
	rh := func(name string, names []string, qps ...string) *RecognizedHandler {
		return &RecognizedHandler{
			Handler:     name,
			Names:       names,
			IsDynamic:   0 < len(names),
			QueryParams: qps,
		}
	}

	r := &testRecognizer{
		chains: map[string][]*RecognizedHandler{
			"index":    {rh("index", nil)},
			"posts":    {rh("index", nil), rh("posts", nil, "sort")},
			"showPost": {rh("index", nil), rh("posts", nil, "sort"), rh("showPost", []string{"id"})},
			"newPost":  {rh("index", nil), rh("posts", nil, "sort"), rh("newPost", nil)},
			"about":    {rh("index", nil), rh("about", []string{"id"})},
		},
		paths: map[string]string{
			"index":    "/",
			"posts":    "/posts",
			"showPost": "/posts/:id",
			"newPost":  "/posts/new",
			"about":    "/about/:id",
		},
	}

	r.urls = map[string]*RecognizedURL{
		"/posts/1": {
			Handlers: []*RecognizedHandler{
				rh("index", nil),
				rh("posts", nil, "sort"),
				{
					Handler:   "showPost",
					Names:     []string{"id"},
					IsDynamic: true,
					Params:    Params{"id": "1"},
				},
			},
			QueryParams: QueryParams{},
		},
	}

	return r
}

func (r *testRecognizer) Recognize(url string) *RecognizedURL {
	return r.urls[url]
}

func (r *testRecognizer) HandlersFor(name string) ([]*RecognizedHandler, error) {
	chain, have := r.chains[name]
	if !have {
		return nil, &UnknownRouteError{RouteName: name}
	}
	return chain, nil
}

func (r *testRecognizer) HasRoute(name string) bool {
	_, have := r.chains[name]
	return have
}

func (r *testRecognizer) Generate(name string, params Params, queryParams QueryParams) (string, error) {
	pattern, have := r.paths[name]
	if !have {
		return "", &UnknownRouteError{RouteName: name}
	}

	parts := strings.Split(pattern, "/")
	for i, p := range parts {
		if strings.HasPrefix(p, ":") {
			v, have := params[p[1:]]
			if !have {
				return "", fmt.Errorf("no param %q for %q", p[1:], name)
			}
			parts[i] = v
		}
	}
	url := strings.Join(parts, "/")
	if url == "" {
		url = "/"
	}

	if 0 < len(queryParams) {
		keys := make([]string, 0, len(queryParams))
		for k := range queryParams {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		pairs := make([]string, 0, len(keys))
		for _, k := range keys {
			pairs = append(pairs, fmt.Sprintf("%s=%v", k, queryParams[k]))
		}
		url += "?" + strings.Join(pairs, "&")
	}

	return url, nil
}

// fixture wires a Router over the testRecognizer with hook-recording
// handlers.
type fixture struct {
	router   *Router
	handlers map[string]*Handler

	sync.Mutex
	log      []string
	updates  []string
	replaces []string
}

func (f *fixture) record(what string) {
	f.Lock()
	f.log = append(f.log, what)
	f.Unlock()
}

func (f *fixture) recorded() []string {
	f.Lock()
	defer f.Unlock()
	return append([]string{}, f.log...)
}

func (f *fixture) clear() {
	f.Lock()
	f.log = nil
	f.Unlock()
}

func newFixture() *fixture {
	f := &fixture{
		handlers: map[string]*Handler{},
	}

	for _, name := range []string{"index", "posts", "showPost", "newPost", "about"} {
		n := name
		f.handlers[n] = &Handler{
			Model: func(ctx context.Context, params Params, t *Transition, qps QueryParams) (interface{}, error) {
				f.record("model:" + n)
				model := map[string]interface{}{"handler": n}
				for k, v := range params {
					model[k] = v
				}
				return model, nil
			},
			Enter: func() error {
				f.record("enter:" + n)
				return nil
			},
			Setup: func(model interface{}, qps QueryParams) error {
				f.record("setup:" + n)
				return nil
			},
		}
		exit := func() {
			f.record("exit:" + n)
		}
		f.handlers[n].Exit = exit
	}

	f.handlers["showPost"].Serialize = func(model interface{}, names []string) Params {
		m, _ := model.(map[string]interface{})
		return Params{"id": fmt.Sprintf("%v", m["id"])}
	}
	f.handlers["about"].Serialize = func(model interface{}, names []string) Params {
		m, _ := model.(map[string]interface{})
		return Params{"id": fmt.Sprintf("%v", m["id"])}
	}

	f.router = NewRouter(newTestRecognizer(), func(name string) *Handler {
		return f.handlers[name]
	})
	f.router.UpdateURL = func(url string) {
		f.Lock()
		f.updates = append(f.updates, url)
		f.Unlock()
	}
	f.router.ReplaceURL = func(url string) {
		f.Lock()
		f.replaces = append(f.replaces, url)
		f.Unlock()
	}

	return f
}

func wait(t *testing.T, tr *Transition) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return tr.Wait(ctx)
}

func expectLog(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("hook log: got %v, wanted %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("hook log: got %v, wanted %v", got, want)
		}
	}
}

func TestHandleURLResolvesChain(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	tr := f.router.HandleURL(ctx, "/posts/1")
	if err := wait(t, tr); err != nil {
		t.Fatal(err)
	}

	expectLog(t, f.recorded(), []string{
		"model:index", "model:posts", "model:showPost",
		"enter:index", "setup:index",
		"enter:posts", "setup:posts",
		"enter:showPost", "setup:showPost",
	})

	if got := len(f.router.CurrentHandlerInfos()); got != 3 {
		t.Fatalf("chain length: got %d", got)
	}
	if got := f.router.CurrentParams()["id"]; got != "1" {
		t.Fatalf("currentParams: got %v", f.router.CurrentParams())
	}
	if 0 < len(f.updates) || 0 < len(f.replaces) {
		t.Fatalf("handleURL should not touch the URL: %v %v", f.updates, f.replaces)
	}
}

func TestTransitionToSibling(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	if err := wait(t, f.router.HandleURL(ctx, "/posts/1")); err != nil {
		t.Fatal(err)
	}
	f.clear()

	if err := wait(t, f.router.TransitionTo(ctx, "newPost")); err != nil {
		t.Fatal(err)
	}

	expectLog(t, f.recorded(), []string{
		"model:newPost",
		"exit:showPost",
		"enter:newPost", "setup:newPost",
	})

	if got := f.updates; len(got) != 1 || got[0] != "/posts/new" {
		t.Fatalf("updates: got %v", got)
	}
}

func TestTransitionToWithModel(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	if err := wait(t, f.router.HandleURL(ctx, "/posts/1")); err != nil {
		t.Fatal(err)
	}
	if err := wait(t, f.router.TransitionTo(ctx, "newPost")); err != nil {
		t.Fatal(err)
	}
	f.clear()
	f.updates = nil

	about := map[string]interface{}{"id": 7}
	if err := wait(t, f.router.TransitionTo(ctx, "about", about)); err != nil {
		t.Fatal(err)
	}

	expectLog(t, f.recorded(), []string{
		"exit:newPost", "exit:posts",
		"enter:about", "setup:about",
	})

	if got := f.updates; len(got) != 1 || got[0] != "/about/7" {
		t.Fatalf("updates: got %v", got)
	}

	if !f.router.IsActive("about", about) {
		t.Fatal("about should be active")
	}
}

func TestOverlappingIdenticalTransitions(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	release := make(chan bool)
	f.handlers["showPost"].Model = func(ctx context.Context, params Params, tr *Transition, qps QueryParams) (interface{}, error) {
		<-release
		return map[string]interface{}{"id": params["id"]}, nil
	}

	a := f.router.TransitionTo(ctx, "showPost", 3)
	b := f.router.TransitionTo(ctx, "showPost", 3)
	if a != b {
		t.Fatal("identical overlapping transitions should be the same Transition")
	}

	close(release)
	if err := wait(t, a); err != nil {
		t.Fatal(err)
	}
}

func TestAbortBeforeModelResolves(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	release := make(chan bool)
	f.handlers["showPost"].Model = func(ctx context.Context, params Params, tr *Transition, qps QueryParams) (interface{}, error) {
		<-release
		return map[string]interface{}{"id": params["id"]}, nil
	}

	tr := f.router.TransitionTo(ctx, "showPost", 3)
	tr.Abort()
	close(release)

	err := wait(t, tr)
	if !IsAborted(err) {
		t.Fatalf("expected TransitionAborted, got %v", err)
	}

	for _, hook := range f.recorded() {
		if strings.HasPrefix(hook, "enter:") || strings.HasPrefix(hook, "setup:") {
			t.Fatalf("no enter/setup should fire: %v", f.recorded())
		}
	}
	if f.router.CurrentHandlerInfos() != nil {
		t.Fatal("currentHandlerInfos should be unchanged")
	}
	if f.router.ActiveTransition() != nil {
		t.Fatal("activeTransition should be cleared")
	}
}

func TestGenerateRejectsUnknownQueryParam(t *testing.T) {
	f := newFixture()

	_, err := f.router.Generate("showPost", 5, QueryParams{"unknown": "x"})
	if err == nil {
		t.Fatal("expected an error")
	}
	iqp, is := err.(*InvalidQueryParam)
	if !is {
		t.Fatalf("got a %T: %v", err, err)
	}
	if iqp.Param != "unknown" {
		t.Fatalf("got param %q", iqp.Param)
	}
}

func TestGenerate(t *testing.T) {
	f := newFixture()

	url, err := f.router.Generate("showPost", 5)
	if err != nil {
		t.Fatal(err)
	}
	if url != "/posts/5" {
		t.Fatalf("got %q", url)
	}

	url, err = f.router.Generate("posts", QueryParams{"sort": "desc"})
	if err != nil {
		t.Fatal(err)
	}
	if url != "/posts?sort=desc" {
		t.Fatalf("got %q", url)
	}
}

func TestUnrecognizedURL(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	err := wait(t, f.router.HandleURL(ctx, "/no/such/place"))
	if err == nil {
		t.Fatal("expected an error")
	}
	if _, is := err.(*UnrecognizedURLError); !is {
		t.Fatalf("got a %T: %v", err, err)
	}
}

func TestRetry(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	release := make(chan bool)
	f.handlers["showPost"].Model = func(ctx context.Context, params Params, tr *Transition, qps QueryParams) (interface{}, error) {
		select {
		case <-release:
		default:
		}
		return map[string]interface{}{"id": params["id"]}, nil
	}

	tr := f.router.TransitionTo(ctx, "showPost", 3)
	tr.Data["why"] = "testing"

	retried := tr.Retry(ctx)

	if !tr.IsAborted() {
		t.Fatal("the retried transition should be aborted")
	}
	if retried.TargetName != tr.TargetName {
		t.Fatalf("targetName: got %q, wanted %q", retried.TargetName, tr.TargetName)
	}
	if retried.Data["why"] != "testing" {
		t.Fatalf("data: got %v", retried.Data)
	}

	close(release)
	if err := wait(t, retried); err != nil {
		t.Fatal(err)
	}
}

func TestHookFailureBubblesErrorEvent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	boom := fmt.Errorf("boom")
	f.handlers["showPost"].Model = func(ctx context.Context, params Params, tr *Transition, qps QueryParams) (interface{}, error) {
		return nil, boom
	}
	f.handlers["showPost"].Error = func(reason error, tr *Transition) {
		f.record("handlerError:" + reason.Error())
	}
	f.handlers["posts"].Events = map[string]EventHandler{
		"error": func(args ...interface{}) interface{} {
			f.record("event:posts")
			return true // keep bubbling
		},
	}
	f.handlers["index"].Events = map[string]EventHandler{
		"error": func(args ...interface{}) interface{} {
			f.record("event:index")
			return nil
		},
	}

	err := wait(t, f.router.TransitionTo(ctx, "showPost", 3))
	if err != boom {
		t.Fatalf("expected the original cause, got %v", err)
	}

	log := f.recorded()
	want := []string{"event:posts", "event:index", "handlerError:boom"}
	got := make([]string, 0, len(want))
	for _, entry := range log {
		if strings.HasPrefix(entry, "event:") || strings.HasPrefix(entry, "handlerError:") {
			got = append(got, entry)
		}
	}
	expectLog(t, got, want)

	if f.router.CurrentHandlerInfos() != nil {
		t.Fatal("an errored transition must not mutate currentHandlerInfos")
	}
}

func TestHookReturningTransitionCoercedToNil(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	var sawContext interface{} = "unset"
	f.handlers["showPost"].Model = func(ctx context.Context, params Params, tr *Transition, qps QueryParams) (interface{}, error) {
		// A hook that redirects hands back a Transition; the
		// dedup makes this the same in-flight transition, so
		// the pipeline carries on with a nil model.
		return tr, nil
	}
	f.handlers["showPost"].AfterModel = func(ctx context.Context, model interface{}, tr *Transition, qps QueryParams) (interface{}, error) {
		sawContext = model
		return nil, nil
	}

	tr := f.router.TransitionTo(ctx, "showPost", 3)
	if err := wait(t, tr); err != nil {
		t.Fatal(err)
	}

	if sawContext != nil {
		t.Fatalf("afterModel should see a nil model, got %v", sawContext)
	}
	if m, have := tr.ResolvedModels()["showPost"]; !have || m != nil {
		t.Fatalf("resolvedModels: got %v", tr.ResolvedModels())
	}
}

func TestWillTransitionFiresOnceWhileIdle(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	if err := wait(t, f.router.HandleURL(ctx, "/posts/1")); err != nil {
		t.Fatal(err)
	}

	count := 0
	f.handlers["showPost"].Events = map[string]EventHandler{
		"willTransition": func(args ...interface{}) interface{} {
			count++
			return nil
		},
	}

	release := make(chan bool)
	f.handlers["newPost"].Model = func(ctx context.Context, params Params, tr *Transition, qps QueryParams) (interface{}, error) {
		<-release
		return nil, nil
	}

	a := f.router.TransitionTo(ctx, "newPost")
	// A second, different transition while the first is in
	// flight: no second willTransition.
	b := f.router.TransitionTo(ctx, "about", map[string]interface{}{"id": 9})
	close(release)

	wait(t, a)
	if err := wait(t, b); err != nil {
		t.Fatal(err)
	}

	if count != 1 {
		t.Fatalf("willTransition count: got %d, wanted 1", count)
	}
}

func TestIsActiveAfterTransition(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	if err := wait(t, f.router.HandleURL(ctx, "/posts/1")); err != nil {
		t.Fatal(err)
	}

	if !f.router.IsActive("showPost", "1") {
		t.Fatal("showPost with param 1 should be active")
	}
	if f.router.IsActive("showPost", "2") {
		t.Fatal("showPost with param 2 should not be active")
	}
	if !f.router.IsActive("posts") {
		t.Fatal("posts should be active")
	}
	if f.router.IsActive("newPost") {
		t.Fatal("newPost should not be active")
	}
}

func TestResetExitsEverythingLeafFirst(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	if err := wait(t, f.router.HandleURL(ctx, "/posts/1")); err != nil {
		t.Fatal(err)
	}
	f.clear()

	f.router.Reset()

	expectLog(t, f.recorded(), []string{
		"exit:showPost", "exit:posts", "exit:index",
	})
	if f.router.CurrentHandlerInfos() != nil {
		t.Fatal("currentHandlerInfos should be cleared")
	}
	if f.router.IsActive("showPost") {
		t.Fatal("nothing should be active after Reset")
	}
}

func TestEnterExitBalance(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	if err := wait(t, f.router.HandleURL(ctx, "/posts/1")); err != nil {
		t.Fatal(err)
	}
	if err := wait(t, f.router.TransitionTo(ctx, "newPost")); err != nil {
		t.Fatal(err)
	}
	if err := wait(t, f.router.TransitionTo(ctx, "about", map[string]interface{}{"id": 7})); err != nil {
		t.Fatal(err)
	}
	f.router.Reset()

	enters, exits := 0, 0
	for _, entry := range f.recorded() {
		if strings.HasPrefix(entry, "enter:") {
			enters++
		}
		if strings.HasPrefix(entry, "exit:") {
			exits++
		}
	}
	if enters != exits {
		t.Fatalf("enter/exit balance: %d enters, %d exits", enters, exits)
	}
}

func TestQueryParamTransition(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	if err := wait(t, f.router.TransitionTo(ctx, "posts")); err != nil {
		t.Fatal(err)
	}
	f.clear()

	if err := wait(t, f.router.TransitionTo(ctx, "", QueryParams{"sort": "desc"})); err != nil {
		t.Fatal(err)
	}

	qps := f.router.CurrentQueryParams()
	if qps["sort"] != "desc" {
		t.Fatalf("currentQueryParams: got %v", qps)
	}
	if !f.router.IsActive("posts", QueryParams{"sort": "desc"}) {
		t.Fatal("posts with sort=desc should be active")
	}
}

func TestExitClearsContextButNotQueryParams(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	if err := wait(t, f.router.TransitionTo(ctx, "posts", QueryParams{"sort": "asc"})); err != nil {
		t.Fatal(err)
	}

	posts := f.handlers["posts"]
	if !posts.HasContext() {
		t.Fatal("posts should have a context")
	}
	if posts.QueryParams()["sort"] != "asc" {
		t.Fatalf("posts query params: got %v", posts.QueryParams())
	}

	if err := wait(t, f.router.TransitionTo(ctx, "about", map[string]interface{}{"id": 1})); err != nil {
		t.Fatal(err)
	}

	if posts.HasContext() {
		t.Fatal("an exited handler's context should be cleared")
	}
	// The old query params deliberately survive exit.
	if posts.QueryParams()["sort"] != "asc" {
		t.Fatalf("posts query params after exit: got %v", posts.QueryParams())
	}
}
