// Package script assembles canonicalized relations into one calculator script
// and runs it. A Pipeline carries the function table and widest iterator tuple
// across requests; use a fresh Pipeline per independent caller.
package script

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Request is one codegen invocation: named relations, their schedules, an
// optional processing order and optional global givens.
type Request struct {
	Relations map[string]string   `yaml:"relations" json:"relations"`
	Schedules map[string][]string `yaml:"schedules,omitempty" json:"schedules,omitempty"`
	// Order defaults to the sorted relation names.
	Order []string `yaml:"order,omitempty" json:"order,omitempty"`
	// Givens are joined with && ahead of any per-relation given.
	Givens []string `yaml:"givens,omitempty" json:"givens,omitempty"`
}

// Names returns the relation names in processing order.
func (r Request) Names() []string {
	if len(r.Order) > 0 {
		return append([]string(nil), r.Order...)
	}
	names := make([]string, 0, len(r.Relations))
	for name := range r.Relations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Relation returns the text for name, or "" when absent.
func (r Request) Relation(name string) string {
	return r.Relations[name]
}

// Schedule returns the statements for name, or nil when absent.
func (r Request) Schedule(name string) []string {
	return r.Schedules[name]
}

// ParseRequest decodes a YAML request document.
func ParseRequest(data []byte) (Request, error) {
	var req Request
	if err := yaml.Unmarshal(data, &req); err != nil {
		return Request{}, fmt.Errorf("failed to parse request: %w", err)
	}
	return req, nil
}

// LoadRequest reads a request file. Files ending in .json are decoded as
// JSON, everything else as YAML.
func LoadRequest(path string) (Request, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Request{}, fmt.Errorf("failed to read request %s: %w", path, err)
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		var req Request
		if err := json.Unmarshal(data, &req); err != nil {
			return Request{}, fmt.Errorf("failed to parse request %s: %w", path, err)
		}
		return req, nil
	}
	req, err := ParseRequest(data)
	if err != nil {
		return Request{}, fmt.Errorf("%s: %w", path, err)
	}
	return req, nil
}
