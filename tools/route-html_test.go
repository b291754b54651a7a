package tools

import (
	"bytes"
	"strings"
	"testing"

	"github.com/Comcast/traipse/crew"
	"github.com/Comcast/traipse/handlers"
	"github.com/Comcast/traipse/recognize"

	"github.com/jsccast/yaml"
)

func testTable() *crew.Table {
	return &crew.Table{
		Name: "blog",
		Doc:  "A *blog*.",
		Routes: []recognize.Def{
			{
				Name: "index",
				Path: "/",
				Routes: []recognize.Def{
					{
						Name:        "posts",
						Path:        "/posts",
						QueryParams: []string{"sort"},
						Doc:         "All the posts.",
					},
				},
			},
		},
		Handlers: []handlers.Source{
			{
				Name:  "posts",
				Doc:   "Lists posts.",
				Model: `return {"posts": []};`,
			},
		},
	}
}

func TestRenderTablePage(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderTablePage(testTable(), &buf, nil, true); err != nil {
		t.Fatal(err)
	}
	html := buf.String()

	for _, want := range []string{
		"<title>blog</title>",
		`id="posts"`,
		"<em>blog</em>",
		"sort",
		`return {"posts": []};`,
	} {
		if !strings.Contains(html, want) {
			t.Fatalf("missing %q in rendered page", want)
		}
	}
}

func TestMarshalTableRoundTrip(t *testing.T) {
	table := testTable()

	s, err := MarshalTable(table)
	if err != nil {
		t.Fatal(err)
	}

	var got crew.Table
	if err = yaml.Unmarshal([]byte(s), &got); err != nil {
		t.Fatal(err)
	}
	if got.Name != "blog" || len(got.Routes) != 1 || len(got.Handlers) != 1 {
		t.Fatalf("got %#v", got)
	}
	if got.Routes[0].Routes[0].QueryParams[0] != "sort" {
		t.Fatalf("got %#v", got.Routes[0])
	}
}
