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


// Package core provides the core gear for hierarchical route
// transitions.  A route is a chain of host-supplied Handlers from
// root to leaf, and a Transition is one (cancelable) attempt to move
// the Router from its current chain to a target chain.
//
// The primary type is Router, and the primary methods are
// TransitionTo(), ReplaceWith(), and HandleURL().  Each returns a
// Transition, which settles asynchronously: the Router resolves each
// Handler's model in order (beforeModel, model, afterModel), diffs
// the old and new chains, exits what's gone, enters what's new, and
// then commits the new chain (optionally updating the host's URL).
//
// A Handler is just a record of optional hooks.  The core does not
// assume any hook exists.  Handlers are owned by the host; the core
// writes each handler's resolved context and query params back onto
// the handler as the transition commits.
//
// URL parsing and generation are delegated to a Recognizer, which the
// host provides.  See the recognize package for one implementation.
//
// A Transition can be superseded at any time by a newer one.  The
// superseded transition's hooks are not interrupted; instead, the
// pipeline checks for abort between every step and finalizes the
// loser with a TransitionAborted.
package core
