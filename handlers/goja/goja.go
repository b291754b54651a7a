// Package goja compiles handlers.Source hooks, written in
// ECMAScript, into live core.Handlers using Goja, which is a Go
// implementation of ECMAScript 5.1+.
//
// See https://github.com/dop251/goja.
package goja

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"time"

	"github.com/Comcast/traipse/core"
	"github.com/Comcast/traipse/handlers"

	"github.com/dop251/goja"
	"github.com/gorhill/cronexpr"
)

var (
	// InterruptedMessage is the string value of Interrupted.
	InterruptedMessage = "RuntimeError: timeout"

	// Interrupted is returned by a hook if its execution is
	// interrupted.
	Interrupted = errors.New(InterruptedMessage)

	// DefaultHookTimeout bounds each hook execution for a Host
	// with no Timeout of its own.
	DefaultHookTimeout = 10 * time.Second
)

// init adds a Host as one of the handlers.DefaultCompilers.
func init() {
	handlers.DefaultCompilers["goja"] = NewHost()
}

// Host implements handlers.Compiler using Goja.
//
// Each hook's source is compiled once; each invocation gets a fresh
// runtime with an environment at "_".
type Host struct {

	// Testing is used to expose or hide some runtime
	// capabilities.
	Testing bool

	// Timeout bounds each hook execution.  Zero means
	// DefaultHookTimeout.
	Timeout time.Duration

	// Fetch, if given, is exposed to hooks as _.fetch(req): the
	// host's way of letting a model hook get data from elsewhere.
	Fetch func(ctx context.Context, req map[string]interface{}) (interface{}, error)

	// LibraryProvider resolves a Source's Requires into code.
	LibraryProvider func(ctx context.Context, h *Host, libraryName string) (string, error)
}

// NewHost makes a new Host.
func NewHost() *Host {
	return &Host{}
}

func wrapSrc(src string) string {
	return fmt.Sprintf("(function() {\n%s\n}());\n", src)
}

// MakeFileLibraryProvider resolves library names to files in the
// given directory.
func MakeFileLibraryProvider(dir string) func(context.Context, *Host, string) (string, error) {
	return func(ctx context.Context, h *Host, name string) (string, error) {
		bs, err := os.ReadFile(dir + "/" + name + ".js")
		if err != nil {
			return "", err
		}
		return string(bs), nil
	}
}

// MakeMapLibraryProvider resolves library names from the given map.
func MakeMapLibraryProvider(srcs map[string]string) func(context.Context, *Host, string) (string, error) {
	return func(ctx context.Context, h *Host, name string) (string, error) {
		src, have := srcs[name]
		if !have {
			return "", fmt.Errorf("undefined library '%s'", name)
		}
		return src, nil
	}
}

// compileHook compiles one hook's code (with the source's libraries
// prepended).
func (h *Host) compileHook(ctx context.Context, src *handlers.Source, code string) (*goja.Program, error) {
	var libsSrc string
	for _, lib := range src.Requires {
		if h.LibraryProvider == nil {
			return nil, fmt.Errorf("no library provider for '%s'", lib)
		}
		libSrc, err := h.LibraryProvider(ctx, h, lib)
		if err != nil {
			return nil, err
		}
		libsSrc += libSrc + "\n"
	}

	code = libsSrc + wrapSrc(code)

	obj, err := goja.Compile(src.Name, code, true)
	if err != nil {
		return nil, errors.New(err.Error() + ": " + code)
	}
	return obj, nil
}

// CompileHandler compiles every hook in the source into a
// core.Handler.
func (h *Host) CompileHandler(ctx context.Context, src *handlers.Source) (*core.Handler, error) {
	handler := &core.Handler{}

	compile := func(code string) (*goja.Program, error) {
		if code == "" {
			return nil, nil
		}
		return h.compileHook(ctx, src, code)
	}

	var (
		beforeModel, model, afterModel *goja.Program
		enter, setup, exit, serialize  *goja.Program
		err                            error
	)

	if beforeModel, err = compile(src.BeforeModel); err != nil {
		return nil, err
	}
	if model, err = compile(src.Model); err != nil {
		return nil, err
	}
	if afterModel, err = compile(src.AfterModel); err != nil {
		return nil, err
	}
	if enter, err = compile(src.Enter); err != nil {
		return nil, err
	}
	if setup, err = compile(src.Setup); err != nil {
		return nil, err
	}
	if exit, err = compile(src.Exit); err != nil {
		return nil, err
	}
	if serialize, err = compile(src.Serialize); err != nil {
		return nil, err
	}

	if beforeModel != nil {
		p := beforeModel
		handler.BeforeModel = func(ctx context.Context, t *core.Transition, qps core.QueryParams) (interface{}, error) {
			return h.runHook(ctx, p, t, hookEnv{queryParams: qps})
		}
	}

	if model != nil {
		p := model
		handler.Model = func(ctx context.Context, params core.Params, t *core.Transition, qps core.QueryParams) (interface{}, error) {
			return h.runHook(ctx, p, t, hookEnv{params: params, queryParams: qps})
		}
	}

	if afterModel != nil {
		p := afterModel
		handler.AfterModel = func(ctx context.Context, model interface{}, t *core.Transition, qps core.QueryParams) (interface{}, error) {
			return h.runHook(ctx, p, t, hookEnv{context: model, queryParams: qps})
		}
	}

	if enter != nil {
		p := enter
		handler.Enter = func() error {
			_, err := h.run(context.Background(), p, h.newEnv(context.Background(), nil))
			return err
		}
	}

	if setup != nil {
		p := setup
		handler.Setup = func(model interface{}, qps core.QueryParams) error {
			env := h.newEnv(context.Background(), nil)
			env["context"] = model
			env["queryParams"] = map[string]interface{}(qps)
			_, err := h.run(context.Background(), p, env)
			return err
		}
	}

	if exit != nil {
		p := exit
		handler.Exit = func() {
			if _, err := h.run(context.Background(), p, h.newEnv(context.Background(), nil)); err != nil {
				log.Printf("goja exit hook error for %s: %v", src.Name, err)
			}
		}
	}

	if serialize != nil {
		p := serialize
		handler.Serialize = func(model interface{}, names []string) core.Params {
			env := h.newEnv(context.Background(), nil)
			env["context"] = model
			env["names"] = names
			v, err := h.run(context.Background(), p, env)
			if err != nil {
				log.Printf("goja serialize hook error for %s: %v", src.Name, err)
				return nil
			}
			m, is := v.(map[string]interface{})
			if !is {
				return nil
			}
			acc := core.Params{}
			for k, x := range m {
				acc[k] = fmt.Sprintf("%v", x)
			}
			return acc
		}
	}

	if 0 < len(src.Events) {
		handler.Events = make(map[string]core.EventHandler, len(src.Events))
		for name, code := range src.Events {
			if code == "" {
				continue
			}
			p, err := compile(code)
			if err != nil {
				return nil, err
			}
			prog := p
			handler.Events[name] = func(args ...interface{}) interface{} {
				env := h.newEnv(context.Background(), nil)
				env["args"] = args
				v, err := h.run(context.Background(), prog, env)
				if err != nil {
					log.Printf("goja event hook error for %s: %v", src.Name, err)
					return nil
				}
				return v
			}
		}
	}

	return handler, nil
}

// hookEnv carries the per-invocation pieces of a hook's environment.
type hookEnv struct {
	params      core.Params
	queryParams core.QueryParams
	context     interface{}
}

// runHook runs a model-pipeline hook with the transition exposed and
// redirect support: a hook that calls _.redirect(name) makes this
// invocation return the new Transition, which the pipeline treats as
// a redirect.
func (h *Host) runHook(ctx context.Context, p *goja.Program, t *core.Transition, he hookEnv) (interface{}, error) {
	env := h.newEnv(ctx, t)
	if he.params != nil {
		m := make(map[string]interface{}, len(he.params))
		for k, v := range he.params {
			m[k] = v
		}
		env["params"] = m
	}
	env["queryParams"] = map[string]interface{}(he.queryParams)
	if he.context != nil {
		env["context"] = he.context
	}

	var redirected *core.Transition
	if t != nil {
		env["redirect"] = func(name string) interface{} {
			redirected = t.Router().TransitionTo(ctx, name)
			return nil
		}
	}

	v, err := h.run(ctx, p, env)
	if err != nil {
		return nil, err
	}
	if redirected != nil {
		return redirected, nil
	}
	return v, nil
}

// newEnv builds the base environment exposed to hooks at "_".
//
// The following properties are available:
//
//	transition: sequence, targetName, data, params, queryParams.
//	redirect(name): start a transition to the named route
//	  (added by runHook, so only in model-pipeline hooks).
//	fetch(req): host-provided data fetch (if the Host has one).
//	gensym(): generate a random string.
//	esc(s): URL query-escape the given string.
//	cronNext(expr): the next firing time for a cron expression.
//	log(x): log the given thing as JSON.
func (h *Host) newEnv(ctx context.Context, t *core.Transition) map[string]interface{} {
	env := map[string]interface{}{}

	if t != nil {
		env["transition"] = map[string]interface{}{
			"sequence":    t.Sequence,
			"targetName":  t.TargetName,
			"data":        t.Data,
			"params":      map[string]string(t.Params()),
			"queryParams": map[string]interface{}(t.QueryParams()),
		}
	}

	env["gensym"] = func() interface{} {
		return core.Gensym(32)
	}

	env["esc"] = func(x interface{}) interface{} {
		switch vv := x.(type) {
		case goja.Value:
			x = vv.Export()
		}
		s, is := x.(string)
		if !is {
			panic("not a string")
		}
		return url.QueryEscape(s)
	}

	env["cronNext"] = func(x interface{}) interface{} {
		switch vv := x.(type) {
		case goja.Value:
			x = vv.Export()
		}
		cronExpr, is := x.(string)
		if !is {
			panic("not a string")
		}
		c, err := cronexpr.Parse(cronExpr)
		if err != nil {
			panic(err.Error())
		}
		return c.Next(time.Now()).UTC().Format(time.RFC3339Nano)
	}

	env["log"] = func(x interface{}) interface{} {
		switch vv := x.(type) {
		case goja.Value:
			x = vv.Export()
		}
		js, err := json.Marshal(&x)
		if err != nil {
			log.Println("goja.log (can't marshal: " + err.Error() + ")")
		} else {
			log.Println(string(js))
		}
		return x
	}

	if h.Fetch != nil {
		env["fetch"] = func(x interface{}) interface{} {
			switch vv := x.(type) {
			case goja.Value:
				x = vv.Export()
			}
			req, is := x.(map[string]interface{})
			if !is {
				panic("fetch wants a request map")
			}
			resp, err := h.Fetch(ctx, req)
			if err != nil {
				panic(err.Error())
			}
			return resp
		}
	}

	if h.Testing {
		env["sleep"] = func(ms int) {
			time.Sleep(time.Duration(ms) * time.Millisecond)
		}
	}

	return env
}

// run executes a compiled hook with the given environment, bounding
// the execution with the Host's timeout.
func (h *Host) run(ctx context.Context, p *goja.Program, env map[string]interface{}) (interface{}, error) {
	o := goja.New()
	o.Set("_", env)

	timeout := h.Timeout
	if timeout == 0 {
		timeout = DefaultHookTimeout
	}

	// We want to make sure that the following goroutine is
	// terminated as soon as possible.
	ictx, cancel := context.WithTimeout(ctx, timeout)
	go func() {
		<-ictx.Done()
		// If run calls cancel() after RunProgram returns, then
		// we'll never see this InterruptedMessage, which is
		// actually the behavior we want.  In that case, we
		// weren't actually interrupted.
		o.Interrupt(InterruptedMessage)
	}()

	v, err := o.RunProgram(p)
	cancel()

	if err != nil {
		if _, is := err.(*goja.InterruptedError); is {
			return nil, Interrupted
		}
		return nil, err
	}

	x := v.Export()

	// Canonicalize so hooks hand back plain maps and slices.
	if x != nil {
		if y, err := core.Canonicalize(x); err == nil {
			x = y
		}
	}

	return x, nil
}
