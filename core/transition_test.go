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
	"errors"
	"testing"
	"time"
)

func TestDeferredThen(t *testing.T) {
	tr := newTransition(nil, 0)

	resolved := make(chan bool, 1)
	tr.Then(func(got *Transition) {
		resolved <- got == tr
	}, nil)

	tr.d.resolve()

	select {
	case ok := <-resolved:
		if !ok {
			t.Fatal("Then should get the transition itself")
		}
	case <-time.After(time.Second):
		t.Fatal("Then never fired")
	}
}

func TestDeferredRejection(t *testing.T) {
	tr := newTransition(nil, 0)

	boom := errors.New("boom")
	rejected := make(chan error, 1)
	tr.Then(nil, func(err error) {
		rejected <- err
	})

	tr.d.reject(boom)
	// Settling is once-only.
	tr.d.resolve()

	select {
	case err := <-rejected:
		if err != boom {
			t.Fatalf("got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("rejection never fired")
	}

	if err := tr.Wait(context.Background()); err != boom {
		t.Fatalf("Wait: got %v", err)
	}
}

func TestWaitHonorsContext(t *testing.T) {
	tr := newTransition(nil, 0)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if err := tr.Wait(ctx); err != context.DeadlineExceeded {
		t.Fatalf("got %v", err)
	}
}

func TestAbortIsIdempotent(t *testing.T) {
	r := NewRouter(newTestRecognizer(), func(name string) *Handler {
		return &Handler{}
	})

	tr := newTransition(r, 1)
	r.activeTransition = tr

	if got := tr.Abort(); got != tr {
		t.Fatal("Abort should return the receiver")
	}
	if !tr.IsAborted() {
		t.Fatal("IsAborted should be true")
	}
	if r.ActiveTransition() != nil {
		t.Fatal("Abort should release the active slot")
	}

	// A later transition owns the slot; aborting the old one
	// again must not steal it.
	newer := newTransition(r, 2)
	r.activeTransition = newer
	tr.Abort()
	if r.ActiveTransition() != newer {
		t.Fatal("Abort of a superseded transition must not clear the slot")
	}
}

func TestMethod(t *testing.T) {
	tr := newTransition(nil, 0)

	if tr.method() != URLMethodUpdate {
		t.Fatalf("default method: got %q", tr.method())
	}
	tr.Method(URLMethodReplace)
	if tr.method() != URLMethodReplace {
		t.Fatalf("got %q", tr.method())
	}
	tr.Method(URLMethodNone)
	if tr.method() != URLMethodNone {
		t.Fatalf("got %q", tr.method())
	}
}

func TestErrorNames(t *testing.T) {
	var (
		unrecognized = &UnrecognizedURLError{URL: "/x"}
		aborted      = &TransitionAborted{}
	)

	if unrecognized.Name() != "UnrecognizedURLError" {
		t.Fatal(unrecognized.Name())
	}
	if aborted.Name() != "TransitionAborted" {
		t.Fatal(aborted.Name())
	}
	if !IsAborted(aborted) {
		t.Fatal("IsAborted should see a TransitionAborted")
	}
	if IsAborted(unrecognized) {
		t.Fatal("IsAborted should not see other errors")
	}
}
