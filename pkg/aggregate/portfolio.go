// Package aggregate merges per-source results into one portfolio view and
// formats the numbers for display.
package aggregate

import (
	"fmt"
)

type SourceState string

const (
	SourceOK     SourceState = "ok"
	SourceEmpty  SourceState = "empty"
	SourceFailed SourceState = "failed"
)

// Contribution is one source's value for a chain or category.
type Contribution struct {
	ID    string
	Name  string
	Value float64
}

// Partial is the outcome of asking one source (usually one chain) for its
// slice of the portfolio. A non-nil Err marks the whole partial as failed.
type Partial struct {
	SourceID   string
	Total      float64
	Chains     []Contribution
	Categories []Contribution
	Err        error
}

type Group struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Value          float64 `json:"value"`
	ValueFormatted string  `json:"valueFormatted"`
}

// SourceStatus keeps a zero-valued source apart from a failed one.
type SourceStatus struct {
	SourceID string      `json:"sourceId"`
	Status   SourceState `json:"status"`
	Total    float64     `json:"total"`
	Error    string      `json:"error,omitempty"`
}

type Summary struct {
	TotalValue          float64        `json:"totalValue"`
	TotalValueFormatted string         `json:"totalValueFormatted"`
	Chains              []Group        `json:"chains"`
	Categories          []Group        `json:"categories"`
	Sources             []SourceStatus `json:"sources"`
	Warnings            []string       `json:"warnings,omitempty"`
}

// Succeeded returns the number of sources that did not fail.
func (s Summary) Succeeded() int {
	n := 0
	for _, src := range s.Sources {
		if src.Status != SourceFailed {
			n++
		}
	}
	return n
}

// MergePortfolio sums successful partials. Chain and category groups are keyed
// by id and kept in first-seen order; the first name seen for an id wins.
func MergePortfolio(partials []Partial) Summary {
	chains := newAccumulator()
	categories := newAccumulator()

	out := Summary{
		Sources: make([]SourceStatus, 0, len(partials)),
	}

	for _, p := range partials {
		if p.Err != nil {
			out.Sources = append(out.Sources, SourceStatus{
				SourceID: p.SourceID,
				Status:   SourceFailed,
				Error:    p.Err.Error(),
			})
			out.Warnings = append(out.Warnings, fmt.Sprintf("source %s failed: %v", p.SourceID, p.Err))
			continue
		}

		out.TotalValue += p.Total
		for _, c := range p.Chains {
			chains.add(c)
		}
		for _, c := range p.Categories {
			categories.add(c)
		}

		state := SourceOK
		if p.Total == 0 {
			state = SourceEmpty
		}
		out.Sources = append(out.Sources, SourceStatus{
			SourceID: p.SourceID,
			Status:   state,
			Total:    p.Total,
		})
	}

	out.TotalValueFormatted = FormatCurrency(out.TotalValue)
	out.Chains = chains.groups()
	out.Categories = categories.groups()
	return out
}

type accumulator struct {
	order []string
	byID  map[string]*Group
}

func newAccumulator() *accumulator {
	return &accumulator{byID: make(map[string]*Group)}
}

func (a *accumulator) add(c Contribution) {
	g, ok := a.byID[c.ID]
	if !ok {
		g = &Group{ID: c.ID, Name: c.Name}
		a.byID[c.ID] = g
		a.order = append(a.order, c.ID)
	}
	g.Value += c.Value
}

func (a *accumulator) groups() []Group {
	out := make([]Group, 0, len(a.order))
	for _, id := range a.order {
		g := *a.byID[id]
		g.ValueFormatted = FormatCurrency(g.Value)
		out = append(out, g)
	}
	return out
}
