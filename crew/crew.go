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

package crew

import (
	"sync"
)

// Crew is a collection of Navigators addressed by id.
type Crew struct {
	sync.RWMutex

	Id         string                `json:"id"`
	Navigators map[string]*Navigator `json:"navigators"`
}

// Copy gets a read lock and returns a copy of the crew.
func (c *Crew) Copy() *Crew {
	c.RLock()
	ns := make(map[string]*Navigator, len(c.Navigators))
	for id, n := range c.Navigators {
		ns[id] = n.Copy()
	}
	acc := &Crew{
		Id:         c.Id,
		Navigators: ns,
	}
	c.RUnlock()
	return acc
}

// Locations gets a read lock and reports where every navigator
// currently is.
//
// A navigator that hasn't committed a transition yet reports an
// empty location.
func (c *Crew) Locations() map[string]string {
	c.RLock()
	acc := make(map[string]string, len(c.Navigators))
	for id, n := range c.Navigators {
		acc[id] = n.Location
	}
	c.RUnlock()
	return acc
}
