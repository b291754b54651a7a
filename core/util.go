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

import (
	"encoding/json"
	"math/rand"
	"reflect"
)

// alphabet is used by Gensym.
var alphabet = []byte("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ")

// Gensym makes a random string of the given length.  Handler hook
// environments use these for correlation ids.
func Gensym(n int) string {
	bs := make([]byte, n)
	for i := 0; i < len(bs); i++ {
		bs[i] = alphabet[rand.Intn(len(alphabet))]
	}
	return string(bs)
}

// Canonicalize round-trips a value through JSON so that models and
// event args traffic in plain maps, slices, and scalars regardless of
// what a hook host handed back.
func Canonicalize(x interface{}) (interface{}, error) {
	js, err := json.Marshal(&x)
	if err != nil {
		return nil, err
	}
	var y interface{}
	if err = json.Unmarshal(js, &y); err != nil {
		return nil, err
	}
	return y, nil
}

// clearsKey reports whether a query param value is one of the
// sentinels (nil or false) that remove a key instead of setting it.
func clearsKey(v interface{}) bool {
	if v == nil {
		return true
	}
	b, is := v.(bool)
	return is && !b
}

// mergeQueryParams derives a handler's query params from its
// allow-list: keys are first filled from the router's current query
// params, then overridden from the request's.  A sentinel value
// clears the key.
func mergeQueryParams(allowed []string, current, requested QueryParams) QueryParams {
	acc := QueryParams{}
	for _, source := range []QueryParams{current, requested} {
		for _, k := range allowed {
			v, have := source[k]
			if !have {
				continue
			}
			if clearsKey(v) {
				delete(acc, k)
			} else {
				acc[k] = v
			}
		}
	}
	return acc
}

// queryParamsEqual compares two query param mappings by deep value
// equality.  Nil and empty are the same mapping.
func queryParamsEqual(a, b QueryParams) bool {
	if len(a) != len(b) {
		return false
	}
	for k, av := range a {
		bv, have := b[k]
		if !have || !reflect.DeepEqual(av, bv) {
			return false
		}
	}
	return true
}

// sameContext compares two contexts by identity, the way the
// partitioner and isActive need: pointers, maps, slices, and the like
// are the same context only if they are the same object.
func sameContext(a, b interface{}) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	av, bv := reflect.ValueOf(a), reflect.ValueOf(b)
	if av.Type() != bv.Type() {
		return false
	}
	switch av.Kind() {
	case reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Pointer, reflect.UnsafePointer:
		return av.Pointer() == bv.Pointer()
	}
	if !av.Type().Comparable() {
		return false
	}
	return a == b
}

// sameProvidedModels compares two provided-model lists by identity,
// element for element.
func sameProvidedModels(a, b []interface{}) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !sameContext(a[i], b[i]) {
			return false
		}
	}
	return true
}
