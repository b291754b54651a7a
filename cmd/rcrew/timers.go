package main

// ToDo: Timers.Suspend, Timers.Resume

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	. "github.com/Comcast/traipse/util/testutil"

	"github.com/gorhill/cronexpr"
)

// Emitter hands a fired timer's op back to the service.
type Emitter func(ctx context.Context, op *SOp) error

type TimerEntry struct {
	Id string `json:"id"`
	Op *SOp   `json:"op"`
	At time.Time `json:"at"`

	// Cron, if given, makes the timer refire: each firing
	// schedules the next per the expression.
	Cron string `json:"cron,omitempty"`

	ctl chan bool
}

type Timers struct {
	Errors chan interface{} `json:"-" yaml:"-"`

	sync.Mutex

	timers map[string]*TimerEntry
	ctl    chan bool
	emit   Emitter
}

func NewTimers(emitter Emitter) *Timers {
	return &Timers{
		timers: make(map[string]*TimerEntry, 32),
		emit:   emitter,
		ctl:    make(chan bool),
	}
}

func (ts *Timers) MarshalJSON() ([]byte, error) {
	ts.Lock()
	m := map[string]interface{}{
		"map": ts.timers,
	}
	bs, err := json.Marshal(&m)
	ts.Unlock()
	return bs, err
}

// Add schedules an op once, after the given duration.
func (ts *Timers) Add(ctx context.Context, id string, op *SOp, in time.Duration) error {
	return ts.add(ctx, id, op, time.Now().UTC().Add(in), "")
}

// AddCron schedules an op on a cron expression.  The timer refires
// until removed.
func (ts *Timers) AddCron(ctx context.Context, id string, op *SOp, cron string) error {
	c, err := cronexpr.Parse(cron)
	if err != nil {
		return err
	}
	return ts.add(ctx, id, op, c.Next(time.Now()), cron)
}

func (ts *Timers) add(ctx context.Context, id string, op *SOp, at time.Time, cron string) error {
	ts.Lock()
	defer ts.Unlock()

	if _, have := ts.timers[id]; have {
		return Exists
	}

	te := &TimerEntry{
		Id:   id,
		Op:   op,
		At:   at,
		Cron: cron,
		ctl:  make(chan bool),
	}

	ts.timers[id] = te

	stop := func() {
		if err := ts.Rem(ctx, id); err != nil {
			ts.err(fmt.Errorf("Timers rem error %v id=%s", err, id))
		}
	}

	go func() {
		timer := time.NewTimer(te.At.Sub(time.Now()))
		select {
		case <-ctx.Done():
			stop()
		case <-te.ctl:
			// We only get here via a Rem() call.
		case <-ts.ctl:
			stop()

			// Not exactly what we want ...
		case <-timer.C:
			Logf("Timers firing %s", JS(ts))
			if err := ts.emit(ctx, te.Op); err != nil {
				ts.err(fmt.Errorf("Timers emit error %v id=%s", err, id))
			}

			ts.Lock()
			delete(ts.timers, id)
			ts.Unlock()

			if te.Cron != "" {
				// Refire: schedule the next occurrence.
				if err := ts.AddCron(ctx, id, te.Op, te.Cron); err != nil {
					ts.err(fmt.Errorf("Timers cron resched error %v id=%s", err, id))
				}
			}
		}
	}()

	return nil
}

func (ts *Timers) Shutdown() error {
	close(ts.ctl)
	return nil
}

func (ts *Timers) Rem(ctx context.Context, id string) error {
	ts.Lock()
	defer ts.Unlock()

	te, have := ts.timers[id]
	if !have {
		return NotFound
	}

	delete(ts.timers, id)

	close(te.ctl)

	return nil
}

func (ts *Timers) err(err error) {
	if ts.Errors != nil {
		ts.Errors <- err
	} else {
		log.Println(err)
	}
}
