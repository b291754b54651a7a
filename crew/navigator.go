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

	"github.com/Comcast/traipse/core"
)

// A Navigator is one occupant of a Crew: a Router driving a route
// table, plus the URL that router last committed.
//
// The router carries all of the interesting state (the active chain,
// the params, any in-flight transition).  Location is just the
// last-committed URL, which is what a host persists and what a
// restored navigator is walked back to (via HandleURL).
type Navigator struct {
	Id     string       `json:"id,omitempty"`
	Router *core.Router `json:"-" yaml:"-"`

	// Location is the navigator's current URL as of the last
	// committed transition.  Empty until something commits.
	Location string `json:"location,omitempty"`

	// TableSource remembers where this navigator's route table
	// came from, to facilitate serialization and restore.  This
	// field is not otherwise used in this package.
	TableSource *TableSource `json:"table,omitempty"`
}

// Update overlays the given navigator data on the target navigator.
//
// Zero values in the overlay leave the target's fields alone, so an
// overlay can carry just a new Location (the common case as
// transitions commit).
//
// Not thread-safe.
func (n *Navigator) Update(overlay *Navigator) {
	if overlay.Id != "" {
		n.Id = overlay.Id
	}
	if overlay.Router != nil {
		n.Router = overlay.Router
	}
	if overlay.Location != "" {
		n.Location = overlay.Location
	}
	if overlay.TableSource != nil {
		n.TableSource = overlay.TableSource.Copy()
	}
}

// Copy returns a new Navigator record for the same router.
//
// The router itself is shared, not duplicated: a navigator's identity
// is its router, and a Router can't meaningfully be cloned mid-flight
// anyway.  The id and location are plain values, and the table source
// is copied so the caller can't reach back into the original.
func (n *Navigator) Copy() *Navigator {
	acc := &Navigator{
		Id:       n.Id,
		Router:   n.Router,
		Location: n.Location,
	}
	if n.TableSource != nil {
		acc.TableSource = n.TableSource.Copy()
	}
	return acc
}

// TableSource aspires to hold the origin of a route table.
//
// Currently a source for a table can either be a name, a URL, or
// maybe given explicitly in an unspecified syntax.
//
// Just how a TableSource is used is up to the application.
type TableSource struct {
	// Name is an optional string that could be used by a resolver
	// to obtain some route table.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// URL is an optional pointer to a table.
	URL string `json:"url,omitempty" yaml:"url,omitempty"`

	// Source is an optional string representing a table (in a
	// representation determined by the application).
	Source string `json:"source,omitempty" yaml:"source,omitempty"`
}

// NewTableSource creates a TableSource with the given name.
func NewTableSource(name string) *TableSource {
	return &TableSource{
		Name: name,
	}
}

// Copy makes a copy of the given TableSource.
func (s *TableSource) Copy() *TableSource {
	return &TableSource{
		Name:   s.Name,
		URL:    s.URL,
		Source: s.Source,
	}
}

// TableProvider can find a route table given a TableSource.
type TableProvider interface {
	FindTable(ctx context.Context, s *TableSource) (*Table, error)
}
