// Package parser loads declarative reaction-network definitions from
// JSON and YAML documents. The format covers the model fields the core
// consumes: species names, optional rectangular shape bounds, an initial
// state, and reactions with mass-action, Hill, or constant propensities
// plus optional time-coefficient windows.
package parser

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cme-xyz/go-cme/model"
)

// Document is the on-disk model definition.
type Document struct {
	Name      string        `json:"name" yaml:"name"`
	Species   []string      `json:"species" yaml:"species"`
	Shape     []int         `json:"shape,omitempty" yaml:"shape,omitempty"`
	Initial   []int         `json:"initial,omitempty" yaml:"initial,omitempty"`
	Reactions []ReactionDef `json:"reactions" yaml:"reactions"`
}

// ReactionDef declares one reaction channel.
type ReactionDef struct {
	Name  string    `json:"name" yaml:"name"`
	Delta []int     `json:"delta" yaml:"delta"`
	Rate  RateDef   `json:"rate" yaml:"rate"`
	Coeff *CoeffDef `json:"coeff,omitempty" yaml:"coeff,omitempty"`
}

// RateDef declares a propensity. Type selects the shape:
//
//	constant     k
//	mass-action  k, orders (reactant molecule counts per species)
//	hill         vmax, k, n, species, repress
type RateDef struct {
	Type    string  `json:"type" yaml:"type"`
	K       float64 `json:"k,omitempty" yaml:"k,omitempty"`
	Orders  []int   `json:"orders,omitempty" yaml:"orders,omitempty"`
	Vmax    float64 `json:"vmax,omitempty" yaml:"vmax,omitempty"`
	N       float64 `json:"n,omitempty" yaml:"n,omitempty"`
	Species string  `json:"species,omitempty" yaml:"species,omitempty"`
	Repress bool    `json:"repress,omitempty" yaml:"repress,omitempty"`
}

// CoeffDef declares a time coefficient. Type selects the shape:
//
//	step    1 until "until", then 0
//	window  1 on [from, to], 0 outside
//	decay   exp(-lambda*t)
type CoeffDef struct {
	Type   string  `json:"type" yaml:"type"`
	Until  float64 `json:"until,omitempty" yaml:"until,omitempty"`
	From   float64 `json:"from,omitempty" yaml:"from,omitempty"`
	To     float64 `json:"to,omitempty" yaml:"to,omitempty"`
	Lambda float64 `json:"lambda,omitempty" yaml:"lambda,omitempty"`
}

// FromJSON parses a model definition from JSON bytes.
func FromJSON(data []byte) (*model.Model, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return doc.Build()
}

// FromYAML parses a model definition from YAML bytes.
func FromYAML(data []byte) (*model.Model, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}
	return doc.Build()
}

// LoadFile reads a model definition, selecting the format by extension
// (.json, .yaml, .yml).
func LoadFile(path string) (*model.Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading model file: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FromJSON(data)
	case ".yaml", ".yml":
		return FromYAML(data)
	default:
		return nil, fmt.Errorf("%w: unsupported model file extension %q",
			model.ErrInvalidModel, filepath.Ext(path))
	}
}

// Build converts the document into a validated model.
func (d *Document) Build() (*model.Model, error) {
	m := &model.Model{
		Name:    d.Name,
		Species: d.Species,
		Shape:   d.Shape,
	}
	if d.Initial != nil {
		m.Initial = model.State(d.Initial)
	}
	for i, rd := range d.Reactions {
		rate, err := rd.Rate.build(d, i)
		if err != nil {
			return nil, err
		}
		var coeff model.TimeCoeff
		if rd.Coeff != nil {
			coeff, err = rd.Coeff.build(i)
			if err != nil {
				return nil, err
			}
		}
		m.Reactions = append(m.Reactions, model.Reaction{
			Name:  rd.Name,
			Delta: rd.Delta,
			Rate:  rate,
			Coeff: coeff,
		})
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

func (r *RateDef) build(doc *Document, rxn int) (model.Propensity, error) {
	switch r.Type {
	case "constant":
		return model.Constant{K: r.K}, nil
	case "mass-action":
		if len(r.Orders) != len(doc.Species) {
			return nil, fmt.Errorf("%w: reaction %d mass-action orders have %d entries for %d species",
				model.ErrInvalidModel, rxn, len(r.Orders), len(doc.Species))
		}
		return model.MassAction{K: r.K, Orders: r.Orders}, nil
	case "hill":
		sp := -1
		for i, name := range doc.Species {
			if name == r.Species {
				sp = i
			}
		}
		if sp < 0 {
			return nil, fmt.Errorf("%w: reaction %d hill rate references unknown species %q",
				model.ErrInvalidModel, rxn, r.Species)
		}
		return model.Hill{Species: sp, Vmax: r.Vmax, K: r.K, N: r.N, Repress: r.Repress}, nil
	default:
		return nil, fmt.Errorf("%w: reaction %d has unknown rate type %q",
			model.ErrInvalidModel, rxn, r.Type)
	}
}

func (c *CoeffDef) build(rxn int) (model.TimeCoeff, error) {
	switch c.Type {
	case "step":
		return model.StepCoeff(c.Until), nil
	case "window":
		return model.WindowCoeff(c.From, c.To), nil
	case "decay":
		return model.DecayCoeff(c.Lambda), nil
	default:
		return nil, fmt.Errorf("%w: reaction %d has unknown coeff type %q",
			model.ErrInvalidModel, rxn, c.Type)
	}
}
