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
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/Comcast/traipse/crew"
	. "github.com/Comcast/traipse/util/testutil"

	bolt "go.etcd.io/bbolt"
)

// NavigatorState is what the store remembers about a navigator: its
// table and where it last was.  A navigator restored from one of
// these is walked back to its Location via handleURL.
type NavigatorState struct {
	// Nid is the id for the navigator.
	Nid string `json:"id,omitempty"`

	TableSource *crew.TableSource `json:"table,omitempty" yaml:"table,omitempty"`
	Location    string            `json:"location,omitempty"`

	// Deleted indicates that this navigator has been deleted.
	//
	// Yes, this flag is a hack.
	Deleted bool `json:"-" yaml:"-"`
}

// Storage is a type of persistence.
type Storage struct {
	Debug    bool
	filename string
	db       *bolt.DB
}

// NewStorage takes in a filename and returns a Storage object.
func NewStorage(filename string) (*Storage, error) {
	return &Storage{
		filename: filename,
	}, nil
}

// Open opens the underlying bolt database.
func (s *Storage) Open(ctx context.Context) error {
	opts := &bolt.Options{
		Timeout: time.Second,
	}

	db, err := bolt.Open(s.filename, 0644, opts)
	if err != nil {
		return err
	}
	s.db = db
	return nil
}

// Close closes the underlying bolt database.
func (s *Storage) Close(ctx context.Context) error {
	if s == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Storage) logf(format string, args ...interface{}) {
	if s == nil {
		return
	}
	if s.Debug {
		log.Printf("BoltDB "+format, args...)
	}
}

// EnsureCrew makes the bucket for a crew if it doesn't exist.
func (s *Storage) EnsureCrew(ctx context.Context, cid string) error {
	if s == nil {
		return nil
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(cid))
		return err
	})
}

// RemCrew drops a crew's bucket.
func (s *Storage) RemCrew(ctx context.Context, cid string) error {
	if s == nil {
		return nil
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.DeleteBucket([]byte(cid))
	})
}

// GetCrew reads back every stored NavigatorState for a crew.
func (s *Storage) GetCrew(ctx context.Context, cid string) ([]*NavigatorState, error) {
	if s == nil {
		return []*NavigatorState{}, nil
	}
	nss := make([]*NavigatorState, 0, 32)
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(cid))
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for id, bs := c.First(); id != nil; id, bs = c.Next() {
			var ns NavigatorState
			if err := json.Unmarshal(bs, &ns); err != nil {
				return err
			}
			ns.Nid = string(id)
			s.logf("GetCrew %s navigator %s", cid, JS(ns))
			nss = append(nss, &ns)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logf("GetCrew %s found %d navigators", cid, len(nss))

	if len(nss) == 0 {
		return nil, nil
	}

	return nss, nil
}

// WriteState writes (or removes) NavigatorStates.  As a navigator's
// location changes, the new location comes through here.
func (s *Storage) WriteState(ctx context.Context, cid string, nss []*NavigatorState) error {
	if s == nil {
		return nil
	}

	if 0 == len(nss) {
		return nil
	}

	vals := make(map[string][]byte, len(nss))

	for _, ns := range nss {
		id := ns.Nid
		if ns.Deleted {
			vals[id] = nil
		} else {
			// To save some space, remove id.
			ns = &NavigatorState{
				TableSource: ns.TableSource,
				Location:    ns.Location,
			}
			js, err := json.Marshal(&ns)
			if err != nil {
				return err
			}
			vals[id] = js
		}
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(cid))
		if err != nil {
			return err
		}
		for id, bs := range vals {
			var (
				key = []byte(id)
				err error
			)
			if bs == nil {
				err = b.Delete(key)
			} else {
				err = b.Put(key, bs)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
}
