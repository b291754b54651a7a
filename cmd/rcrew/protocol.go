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
	"fmt"
	"time"

	"github.com/Comcast/traipse/crew"
	"github.com/Comcast/traipse/tools"
	. "github.com/Comcast/traipse/util/testutil"
)

// SOp is a Service Operation.
//
// Only one of GetTable, GetCrewOp, or NOp should have value.
type SOp struct {
	// GetTable is a utility that invokes the service's
	// GetTable.
	GetTable *GetTableOp `json:"getTable,omitempty" yaml:",omitempty"`

	// GetCrewOp gets (a copy of) the Crew.
	GetCrewOp *GetCrewOp `json:"getCrew,omitempty" yaml:",omitempty"`

	// Error will hold an error (if any) that results from
	// processing this operation.
	Error error `json:"-" yaml:"-"`

	// Err will hold a string representation of an error (if any)
	// that results from processing this operation.
	Err string `json:"err,omitempty" yaml:",omitempty"`

	// NOp gives a Navigator operation.
	NOp *NOp `json:"nop,omitempty" yaml:"nop,omitempty"`
}

// erred is a utility function to return values to assign to operation
// Error and Err fields.
func erred(err error) (error, string) {
	if err == nil {
		return nil, ""
	}
	return err, err.Error()
}

func (o *SOp) Do(ctx context.Context, s *Service) error {

	s.op(ctx, map[string]interface{}{
		"do": o,
	})

	var err error
	if o.GetTable != nil {
		err = o.GetTable.Do(ctx, s)
	} else if o.GetCrewOp != nil {
		err = o.GetCrewOp.Do(ctx, s)
	} else if o.NOp != nil {
		err = o.NOp.Do(ctx, s)
	} else {
		err = fmt.Errorf("not implemented: %s", JS(o))
	}

	if err != nil && o.Error == nil {
		o.Error, o.Err = erred(err)
	}

	s.op(ctx, map[string]interface{}{
		"did": o,
	})

	return o.Error
}

type GetTableOp struct {
	Source *crew.TableSource `json:"source,omitempty" yaml:",omitempty"`
	Table  *crew.Table       `json:"table,omitempty" yaml:",omitempty"`

	// YAML, when requested via AsYAML, holds the table rendered
	// as YAML.
	AsYAML bool   `json:"asYAML,omitempty" yaml:"asYAML,omitempty"`
	YAML   string `json:"yaml,omitempty" yaml:",omitempty"`
}

func (o *GetTableOp) Do(ctx context.Context, s *Service) error {
	table, err := s.GetTable(ctx, o.Source)
	if err != nil {
		return err
	}
	o.Table = table
	if o.AsYAML {
		if o.YAML, err = tools.MarshalTable(table); err != nil {
			return err
		}
	}
	return nil
}

type GetCrewOp struct {
	Crew *crew.Crew `json:"crew,omitempty" yaml:",omitempty"`
}

func (o *GetCrewOp) Do(ctx context.Context, s *Service) error {
	o.Crew = s.crew.Copy()
	return nil
}

// NOp is a Navigator Operation.
//
// In normal use, only one field should be given.
type NOp struct {
	// Add a navigator to the Crew.
	Add *OpAdd `json:"add,omitempty" yaml:",omitempty"`

	// Rem removes a navigator from the Crew.
	Rem *OpRem `json:"rem,omitempty" yaml:",omitempty"`

	// Nav drives a transition on a navigator.
	Nav *OpNav `json:"nav,omitempty" yaml:",omitempty"`

	// Trigger bubbles an event up a navigator's active chain.
	Trigger *OpTrigger `json:"trigger,omitempty" yaml:",omitempty"`

	// Timer schedules (or cancels) a deferred operation.
	Timer *OpTimer `json:"timer,omitempty" yaml:",omitempty"`
}

func (o *NOp) Do(ctx context.Context, s *Service) error {
	if o.Add != nil {
		return o.Add.Do(ctx, s)
	}
	if o.Rem != nil {
		return o.Rem.Do(ctx, s)
	}
	if o.Nav != nil {
		return o.Nav.Do(ctx, s)
	}
	if o.Trigger != nil {
		return o.Trigger.Do(ctx, s)
	}
	if o.Timer != nil {
		return o.Timer.Do(ctx, s)
	}
	return fmt.Errorf("empty nop")
}

type OpAdd struct {
	// Oid is the optional operation id.  A "transaction" id.
	Oid string `json:"oid,omitempty" yaml:",omitempty"`

	// Navigator represents the Navigator to create and add.
	Navigator *crew.Navigator `json:"n"`

	// Error will hold an error (if any) that results from
	// processing this operation.
	Error error `json:"-" yaml:"-"`

	// Err will hold a string representation of an error (if any)
	// that results from processing this operation.
	Err string `json:"err,omitempty" yaml:",omitempty"`
}

func (o *OpAdd) Do(ctx context.Context, s *Service) error {
	if o.Navigator == nil {
		return fmt.Errorf("no navigator given")
	}
	if o.Navigator.TableSource == nil {
		return fmt.Errorf("no table source given")
	}
	o.Error, o.Err = erred(s.AddNavigator(ctx,
		o.Navigator.TableSource.Name,
		o.Navigator.Id,
		o.Navigator.Location))
	return nil
}

type OpRem struct {
	// Oid is the optional operation id.  A "transaction" id.
	Oid string `json:"oid,omitempty" yaml:",omitempty"`

	// Id is the id of the Navigator to remove.
	Id string `json:"id"`

	// Error will hold an error (if any) that results from
	// processing this operation.
	Error error `json:"-" yaml:"-"`

	// Err will hold a string representation of an error (if any)
	// that results from processing this operation.
	Err string `json:"err,omitempty" yaml:",omitempty"`
}

func (o *OpRem) Do(ctx context.Context, s *Service) error {
	o.Error, o.Err = erred(s.RemNavigator(ctx, o.Id))
	return nil
}

// NavResult reports the outcome of a settled transition.
type NavResult struct {
	Target      string                 `json:"target,omitempty" yaml:",omitempty"`
	Location    string                 `json:"location,omitempty" yaml:",omitempty"`
	Params      map[string]string      `json:"params,omitempty" yaml:",omitempty"`
	QueryParams map[string]interface{} `json:"queryParams,omitempty" yaml:"queryParams,omitempty"`
	Aborted     bool                   `json:"aborted,omitempty" yaml:",omitempty"`
	Err         string                 `json:"err,omitempty" yaml:",omitempty"`
}

type OpNav struct {
	// Oid is the optional operation id.  A "transaction" id.
	Oid string `json:"oid,omitempty" yaml:",omitempty"`

	// Id is the navigator to drive.
	Id string `json:"id"`

	// Op is one of "transitionTo", "replaceWith", "handleURL", or
	// "retry".
	Op string `json:"op"`

	// Name is the target route name (for named transitions).
	Name string `json:"name,omitempty" yaml:",omitempty"`

	// URL is the URL to handle (for "handleURL").
	URL string `json:"url,omitempty" yaml:",omitempty"`

	// Contexts gives context objects for the route's dynamic
	// segments.
	Contexts []interface{} `json:"contexts,omitempty" yaml:",omitempty"`

	// QueryParams carries query params for the transition.
	QueryParams map[string]interface{} `json:"queryParams,omitempty" yaml:"queryParams,omitempty"`

	// Timeout bounds how long to wait for the transition to
	// settle.  A Go duration string; defaults to the service's
	// NavTimeout.
	Timeout string `json:"timeout,omitempty" yaml:",omitempty"`

	// Result reports the settled transition.
	Result *NavResult `json:"result,omitempty" yaml:",omitempty"`

	// Error will hold an error (if any) that results from
	// processing this operation.
	Error error `json:"-" yaml:"-"`

	// Err will hold a string representation of an error (if any)
	// that results from processing this operation.
	Err string `json:"err,omitempty" yaml:",omitempty"`
}

func (o *OpNav) Do(ctx context.Context, s *Service) error {
	if o.Timeout != "" {
		d, err := time.ParseDuration(o.Timeout)
		if err != nil {
			return err
		}
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}
	result, err := s.Navigate(ctx, o)
	o.Result = result
	o.Error, o.Err = erred(err)
	return nil
}

type OpTrigger struct {
	// Id is the navigator whose chain gets the event.
	Id string `json:"id"`

	// Event is the event name.
	Event string `json:"event"`

	// Args are handed to the event handlers.
	Args []interface{} `json:"args,omitempty" yaml:",omitempty"`

	// Error will hold an error (if any) that results from
	// processing this operation.
	Error error `json:"-" yaml:"-"`

	// Err will hold a string representation of an error (if any)
	// that results from processing this operation.
	Err string `json:"err,omitempty" yaml:",omitempty"`
}

func (o *OpTrigger) Do(ctx context.Context, s *Service) error {
	o.Error, o.Err = erred(s.TriggerEvent(ctx, o.Id, o.Event, o.Args))
	return nil
}

type OpTimer struct {
	// Id is the timer's id.
	Id string `json:"id"`

	// In schedules the Op after a Go duration (e.g. "10s").
	In string `json:"in,omitempty" yaml:",omitempty"`

	// Cron schedules the Op on a cron expression.  The timer
	// refires until removed.
	Cron string `json:"cron,omitempty" yaml:",omitempty"`

	// Op is the operation to perform when the timer fires.
	Op *SOp `json:"op,omitempty" yaml:",omitempty"`

	// Rem cancels the timer with Id instead.
	Rem bool `json:"rem,omitempty" yaml:",omitempty"`

	// Error will hold an error (if any) that results from
	// processing this operation.
	Error error `json:"-" yaml:"-"`

	// Err will hold a string representation of an error (if any)
	// that results from processing this operation.
	Err string `json:"err,omitempty" yaml:",omitempty"`
}

func (o *OpTimer) Do(ctx context.Context, s *Service) error {
	if o.Rem {
		o.Error, o.Err = erred(s.timers.Rem(ctx, o.Id))
		return nil
	}

	if o.Op == nil {
		return fmt.Errorf("no op for timer %s", o.Id)
	}

	if o.Cron != "" {
		o.Error, o.Err = erred(s.timers.AddCron(ctx, o.Id, o.Op, o.Cron))
		return nil
	}

	d, err := time.ParseDuration(o.In)
	if err != nil {
		return err
	}
	o.Error, o.Err = erred(s.timers.Add(ctx, o.Id, o.Op, d))
	return nil
}
