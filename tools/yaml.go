package tools

import (
	"github.com/Comcast/traipse/crew"

	yamlv2 "gopkg.in/yaml.v2"
)

// MarshalTable renders a route table as YAML.
//
// Useful for round-tripping tables through ops and for writing
// edited tables back out.
func MarshalTable(t *crew.Table) (string, error) {
	bs, err := yamlv2.Marshal(t)
	if err != nil {
		return "", err
	}
	return string(bs), nil
}
