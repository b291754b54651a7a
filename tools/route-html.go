package tools

import (
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"

	"github.com/Comcast/traipse/crew"
	"github.com/Comcast/traipse/handlers"
	"github.com/Comcast/traipse/recognize"

	"github.com/jsccast/yaml"
	md "github.com/russross/blackfriday/v2"
)

// RenderTableHTML renders a route table as an HTML fragment: the
// table doc, the route tree, and each handler's hooks.
func RenderTableHTML(t *crew.Table, out io.Writer) error {
	f := func(format string, args ...interface{}) {
		fmt.Fprintf(out, format+"\n", args...)
	}

	f(`<div class="tableDoc doc">%s</div>`, md.Run([]byte(t.Doc)))

	{ // Routes
		f(`<div class="routes"><table>`)
		var fr func(depth int, def *recognize.Def)
		fr = func(depth int, def *recognize.Def) {
			f(`<tr class="route"><td><span id="%s" class="routeName" style="padding-left: %dem">%s</span></td><td>`,
				def.Name, depth, def.Name)
			f(`<code class="routePath">%s</code>`, def.Path)
			if 0 < len(def.QueryParams) {
				f(`<div class="queryParams">query params:`)
				for _, qp := range def.QueryParams {
					f(`<code>%s</code>`, qp)
				}
				f(`</div>`)
			}
			if def.Doc != "" {
				f(`<div class="routeDoc doc">%s</div>`, md.Run([]byte(def.Doc)))
			}
			f(`</td></tr>`)
			for i := range def.Routes {
				fr(depth+1, &def.Routes[i])
			}
		}
		for i := range t.Routes {
			fr(0, &t.Routes[i])
		}
		f(`</table></div>`)
	}

	{ // Handlers
		f(`<div class="handlers"><table>`)
		fh := func(src *handlers.Source) {
			f(`<tr class="handler"><td><span class="handlerName">%s</span></td><td>`, src.Name)
			if src.Doc != "" {
				f(`<div class="handlerDoc doc">%s</div>`, md.Run([]byte(src.Doc)))
			}
			f(`<table>`)
			hook := func(name, code string) {
				if code == "" {
					return
				}
				f(`<tr><td></td><td>%s</td>`, name)
				f(`<td><div class="code"><pre>%s</pre></div></td></tr>`, code)
			}
			hook("beforeModel", src.BeforeModel)
			hook("model", src.Model)
			hook("afterModel", src.AfterModel)
			hook("serialize", src.Serialize)
			hook("enter", src.Enter)
			hook("setup", src.Setup)
			hook("exit", src.Exit)
			for name, code := range src.Events {
				hook("on "+name, code)
			}
			f(`</table>`)
			f(`</td></tr>`)
		}
		for i := range t.Handlers {
			fh(&t.Handlers[i])
		}
		f(`</table></div>`)
	}

	return nil
}

// RenderTablePage renders a complete HTML page for a route table.
func RenderTablePage(t *crew.Table, out io.Writer, cssFiles []string, includeData bool) error {

	if cssFiles == nil {
		cssFiles = []string{"/static/route-html.css"}
	}

	fmt.Fprintf(out, `<!DOCTYPE html>
<meta charset="utf-8">
<html>
  <head>
  <title>%s</title>
`, t.Name)

	if includeData {
		js, err := json.Marshal(t)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, `
  <script>
  var thisTable = %s;
  </script>
`, js)
	}

	for _, cssFile := range cssFiles {
		fmt.Fprintf(out, "  <link href=\"%s\" rel=\"stylesheet\">\n", cssFile)
	}

	fmt.Fprintf(out, `
  </head>
  <body>
  <h1>%s</h1>
`, t.Name)

	if err := RenderTableHTML(t, out); err != nil {
		return err
	}

	fmt.Fprintf(out, `
  </body>
</html>
`)

	return nil
}

// ReadAndRenderTablePage reads a route table from a YAML file and
// renders it as an HTML page.
func ReadAndRenderTablePage(filename string, cssFiles []string, out io.Writer, includeData bool) error {
	bs, err := ioutil.ReadFile(filename)
	if err != nil {
		return err
	}
	var t crew.Table
	if err = yaml.Unmarshal(bs, &t); err != nil {
		return err
	}
	return RenderTablePage(&t, out, cssFiles, includeData)
}
