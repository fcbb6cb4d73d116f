package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// Demand column names as served by /system/demand.
const (
	ColumnProvidedShareUntil = "provided_share_until"
	ColumnTenderAmountKW     = "tender_amount_kw"
	ColumnProvidedAmountKW   = "provided_amount_kw"
)

// DemandPoint is one value of a demand column at a simulation time step.
type DemandPoint struct {
	Step  int     `json:"step"`
	Value float64 `json:"value"`
}

// DemandColumn is a named series of points. Steps with a null value are absent.
type DemandColumn struct {
	Name   string        `json:"name"`
	Points []DemandPoint `json:"points"`
}

// DemandSeries holds the three demand columns indexed by time step.
type DemandSeries struct {
	Steps              int           `json:"steps"`
	ProvidedShareUntil []DemandPoint `json:"provided_share_until"`
	TenderAmountKW     []DemandPoint `json:"tender_amount_kw"`
	ProvidedAmountKW   []DemandPoint `json:"provided_amount_kw"`
}

// Columns returns the series in display order.
func (d DemandSeries) Columns() []DemandColumn {
	return []DemandColumn{
		{Name: ColumnProvidedShareUntil, Points: d.ProvidedShareUntil},
		{Name: ColumnTenderAmountKW, Points: d.TenderAmountKW},
		{Name: ColumnProvidedAmountKW, Points: d.ProvidedAmountKW},
	}
}

// ParseDemand decodes a /system/demand body. The server encodes the demand
// frame as JSON and then returns that text as a JSON string, so the body is
// decoded twice; a plain object body is accepted as well. Each column may be
// an array or an object keyed by step index.
func ParseDemand(body []byte) (DemandSeries, error) {
	inner := bytes.TrimSpace(body)
	if len(inner) > 0 && inner[0] == '"' {
		var text string
		if err := json.Unmarshal(inner, &text); err != nil {
			return DemandSeries{}, malformed(err)
		}
		inner = bytes.TrimSpace([]byte(text))
	}

	var columns map[string]json.RawMessage
	if err := json.Unmarshal(inner, &columns); err != nil {
		return DemandSeries{}, malformed(err)
	}
	if columns == nil {
		return DemandSeries{}, fmt.Errorf("%w: demand is not an object", ErrMalformed)
	}

	var series DemandSeries
	targets := []struct {
		name string
		dst  *[]DemandPoint
	}{
		{ColumnProvidedShareUntil, &series.ProvidedShareUntil},
		{ColumnTenderAmountKW, &series.TenderAmountKW},
		{ColumnProvidedAmountKW, &series.ProvidedAmountKW},
	}
	for _, t := range targets {
		raw, ok := columns[t.name]
		if !ok || isNull(raw) {
			return DemandSeries{}, missingField(t.name)
		}
		points, steps, err := decodeColumn(raw)
		if err != nil {
			return DemandSeries{}, fmt.Errorf("%s: %w", t.name, err)
		}
		*t.dst = points
		if steps > series.Steps {
			series.Steps = steps
		}
	}
	return series, nil
}

// decodeColumn returns the non-null points of a column and the number of
// steps it spans.
func decodeColumn(raw json.RawMessage) ([]DemandPoint, int, error) {
	trimmed := bytes.TrimSpace(raw)
	points := []DemandPoint{}

	if len(trimmed) > 0 && trimmed[0] == '[' {
		var values []*float64
		if err := json.Unmarshal(trimmed, &values); err != nil {
			return nil, 0, malformed(err)
		}
		for i, v := range values {
			if v != nil {
				points = append(points, DemandPoint{Step: i, Value: *v})
			}
		}
		return points, len(values), nil
	}

	steps := 0
	position := 0
	err := decodeObject(trimmed, func(key string, member json.RawMessage) error {
		step, convErr := strconv.Atoi(key)
		if convErr != nil {
			step = position
		}
		position++
		if step+1 > steps {
			steps = step + 1
		}
		if isNull(member) {
			return nil
		}
		var v float64
		if err := json.Unmarshal(member, &v); err != nil {
			return malformed(err)
		}
		points = append(points, DemandPoint{Step: step, Value: v})
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	sort.SliceStable(points, func(i, j int) bool { return points[i].Step < points[j].Step })
	return points, steps, nil
}
