package main

import (
	"context"
	"errors"
	"fmt"
	"io/ioutil"
	"log"
	"sync"
	"time"

	"github.com/Comcast/traipse/core"
	"github.com/Comcast/traipse/crew"
	"github.com/Comcast/traipse/handlers"
	gj "github.com/Comcast/traipse/handlers/goja"
	. "github.com/Comcast/traipse/util/testutil"

	"github.com/jsccast/yaml"
)

var (
	Exists   = errors.New("id exists")
	NotFound = errors.New("not found")
)

// Service hosts a crew of navigators, each driving its own router
// over a route table, and processes SOps from listeners (stdin, TCP,
// WebSockets, MQTT).
type Service struct {
	// Emitted receives settled navigation results.
	Emitted chan interface{}

	// Processing receives ops as they are processed.
	Processing chan interface{}

	// Errors receives asynchronous service errors.
	Errors chan interface{} // Should be error

	Tracing bool

	// NavTimeout bounds how long a nav op waits for its
	// transition to settle.
	NavTimeout time.Duration

	ops chan interface{}

	compilers handlers.CompilersMap
	crewName  string
	crew      crew.Crew
	tablesDir string
	store     *Storage
	timers    *Timers

	navMu           sync.Mutex
	lastTransitions map[string]*core.Transition
}

func (s *Service) trf(format string, args ...interface{}) {
	if !s.Tracing {
		return
	}
	log.Printf("trace "+format, args...)
}

func NewService(ctx context.Context, tablesDir, dbFile string) (*Service, error) {

	crewName := "home"

	var store *Storage
	if dbFile != "" {
		var err error

		if store, err = NewStorage(dbFile); err != nil {
			return nil, err
		}

		if err = store.Open(ctx); err != nil {
			return nil, err
		}

		go func() {
			<-ctx.Done()
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if err := store.Close(ctx); err != nil {
				log.Printf("Service.store.Close error %s", err)
				// Race if we try to use s.Errors.
			}
		}()
	}

	s := Service{
		crewName:   crewName,
		tablesDir:  tablesDir,
		NavTimeout: 10 * time.Second,
		crew: crew.Crew{
			Id:         crewName,
			Navigators: make(map[string]*crew.Navigator, 32),
		},
		store:           store,
		lastTransitions: make(map[string]*core.Transition, 32),
	}

	if store != nil {
		if err := store.EnsureCrew(ctx, crewName); err != nil {
			return nil, err
		}
	}

	emitter := func(ctx context.Context, op *SOp) error {
		return op.Do(ctx, &s)
	}
	s.timers = NewTimers(emitter)
	s.timers.Errors = s.Errors

	host := gj.NewHost()
	host.Fetch = s.Fetch
	s.compilers = handlers.NewCompilersMap()
	s.compilers["goja"] = host

	return &s, nil
}

func (s *Service) op(ctx context.Context, x interface{}) {
	if s.ops != nil {
		select {
		case s.ops <- Copy(x):
		default:
			log.Printf("Service ops chan blocked")
		}
	}
}

// GetTable resolves a TableSource: an inline Source wins; otherwise
// the named YAML file in the service's tables directory.
func (s *Service) GetTable(ctx context.Context, src *crew.TableSource) (*crew.Table, error) {

	if src == nil || (src.Name == "" && src.Source == "") {
		return nil, fmt.Errorf("unsupported TableSource %s: needs name or source", JS(src))
	}

	var tableSrc []byte
	if src.Source != "" {
		tableSrc = []byte(src.Source)
	} else {
		var err error
		tableSrc, err = ioutil.ReadFile(s.tablesDir + "/" + src.Name + ".yaml")
		if err != nil {
			return nil, err
		}
	}

	var table crew.Table
	if err := yaml.Unmarshal(tableSrc, &table); err != nil {
		return nil, err
	}
	if table.Name == "" {
		table.Name = src.Name
	}

	return &table, nil
}

// AddNavigator creates a navigator over the named table and, if a
// location is given, restores the navigator there.
func (s *Service) AddNavigator(ctx context.Context, tableName, id, location string) error {

	table, err := s.GetTable(ctx, crew.NewTableSource(tableName))
	if err != nil {
		return err
	}
	recognizer, getHandler, err := table.Compile(ctx, s.compilers)
	if err != nil {
		return err
	}

	router := core.NewRouter(recognizer, getHandler)
	router.Log = func(msg string) {
		Logf("navigator %s: %s", id, msg)
	}

	n := &crew.Navigator{
		Id:          id,
		Router:      router,
		TableSource: crew.NewTableSource(tableName),
	}

	router.UpdateURL = func(url string) {
		s.setLocation(ctx, n, url)
	}
	router.DidTransition = func(infos []*core.HandlerInfo) {
		names := make([]string, 0, len(infos))
		for _, info := range infos {
			names = append(names, info.Name)
		}
		s.emit(map[string]interface{}{
			"navigator": n.Id,
			"active":    names,
		})
	}

	c := &s.crew

	c.Lock()
	_, have := c.Navigators[id]
	if !have {
		c.Navigators[id] = n
	}
	c.Unlock()

	if have {
		return Exists
	}

	ns := NavigatorState{
		Nid:         n.Id,
		TableSource: n.TableSource,
		Location:    location,
	}
	if err = s.store.WriteState(ctx, s.crewName, []*NavigatorState{&ns}); err != nil {
		return err
	}

	if location != "" {
		t := router.HandleURL(ctx, location)
		if err := t.Wait(ctx); err != nil {
			return NewWrappedError(fmt.Errorf("restore of %s to %s failed", id, location), err)
		}
		s.setLocation(ctx, n, location)
	}

	return nil
}

func (s *Service) RemNavigator(ctx context.Context, nid string) error {
	c := &s.crew

	c.Lock()
	_, have := c.Navigators[nid]
	delete(c.Navigators, nid)
	c.Unlock()

	if !have {
		return NotFound
	}

	// ToDo: Remove timers that target this navigator?

	s.navMu.Lock()
	delete(s.lastTransitions, nid)
	s.navMu.Unlock()

	ns := NavigatorState{
		Nid:     nid,
		Deleted: true,
	}
	return s.store.WriteState(ctx, s.crewName, []*NavigatorState{&ns})
}

// setLocation records a navigator's new location and writes it out.
func (s *Service) setLocation(ctx context.Context, n *crew.Navigator, url string) {
	c := &s.crew
	c.Lock()
	n.Location = url
	c.Unlock()

	ns := NavigatorState{
		Nid:         n.Id,
		TableSource: n.TableSource,
		Location:    url,
	}
	if err := s.store.WriteState(ctx, s.crewName, []*NavigatorState{&ns}); err != nil {
		log.Printf("Service.setLocation warning for '%s' failed WriteState: %s", n.Id, err)
	}

	s.emit(map[string]interface{}{
		"navigator": n.Id,
		"location":  url,
	})
}

func (s *Service) emit(x interface{}) {
	if s.Emitted != nil {
		select {
		case s.Emitted <- x:
		default:
			log.Printf("Service.emit Emitted chan blocked")
		}
	}
}

func (s *Service) findNavigator(nid string) (*crew.Navigator, error) {
	c := &s.crew
	c.RLock()
	n, have := c.Navigators[nid]
	c.RUnlock()
	if !have {
		return nil, NotFound
	}
	return n, nil
}

// Navigate drives one transition on a navigator and waits for it to
// settle.
func (s *Service) Navigate(ctx context.Context, o *OpNav) (*NavResult, error) {
	s.trf("Service.Navigate %s", JS(o))

	if s.Processing != nil {
		select {
		case s.Processing <- Copy(o):
		default:
			log.Printf("Service.Navigate Processing chan blocked")
		}
	}

	n, err := s.findNavigator(o.Id)
	if err != nil {
		return nil, err
	}
	r := n.Router

	args := append([]interface{}{}, o.Contexts...)
	if o.QueryParams != nil {
		args = append(args, core.QueryParams(o.QueryParams))
	}

	var t *core.Transition
	switch o.Op {
	case "transitionTo":
		t = r.TransitionTo(ctx, o.Name, args...)
	case "replaceWith":
		t = r.ReplaceWith(ctx, o.Name, args...)
	case "handleURL":
		t = r.HandleURL(ctx, o.URL)
	case "retry":
		s.navMu.Lock()
		last := s.lastTransitions[o.Id]
		s.navMu.Unlock()
		if last == nil {
			return nil, fmt.Errorf("nothing to retry for %s", o.Id)
		}
		t = last.Retry(ctx)
	default:
		return nil, fmt.Errorf("unknown nav op %q", o.Op)
	}

	s.navMu.Lock()
	s.lastTransitions[o.Id] = t
	s.navMu.Unlock()

	wctx := ctx
	if s.NavTimeout != 0 && o.Timeout == "" {
		var cancel context.CancelFunc
		wctx, cancel = context.WithTimeout(ctx, s.NavTimeout)
		defer cancel()
	}
	werr := t.Wait(wctx)

	if werr == nil && o.Op == "handleURL" {
		// The URL was already current; record it as the
		// navigator's location.
		s.setLocation(ctx, n, o.URL)
	}

	c := &s.crew
	c.RLock()
	location := n.Location
	c.RUnlock()

	result := &NavResult{
		Target:      t.TargetName,
		Location:    location,
		Params:      r.CurrentParams(),
		QueryParams: r.CurrentQueryParams(),
		Aborted:     t.IsAborted(),
	}
	if werr != nil {
		result.Err = werr.Error()
	}

	s.emit(map[string]interface{}{
		"navigator": o.Id,
		"result":    result,
	})

	return result, werr
}

// TriggerEvent bubbles a named event up a navigator's active chain.
func (s *Service) TriggerEvent(ctx context.Context, nid, event string, args []interface{}) error {
	n, err := s.findNavigator(nid)
	if err != nil {
		return err
	}
	return n.Router.Trigger(event, args...)
}

// LoadStored recreates the navigators the store knows about.
func (s *Service) LoadStored(ctx context.Context) error {
	nss, err := s.store.GetCrew(ctx, s.crewName)
	if err != nil {
		return err
	}
	for _, ns := range nss {
		if ns.TableSource == nil {
			log.Printf("Service.LoadStored skipping %s: no table source", ns.Nid)
			continue
		}
		if err := s.AddNavigator(ctx, ns.TableSource.Name, ns.Nid, ns.Location); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) err(err error) {
	// ToDo: Possibly send errors back to the service as ops.

	if s.Errors != nil {
		s.Errors <- err
	} else {
		log.Println(err)
	}
}
