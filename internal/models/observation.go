package models

import "time"

// RawValue is one entry of an ESIOS indicator/offer_indicator "values"
// array, decoded straight off the wire.
type RawValue struct {
	Value float64 `json:"value"`
	Datetime string `json:"datetime"`
	DatetimeUC string `json:"datetime_utc"`
	GeoID *int `json:"geo_id"`
	GeoName *string `json:"geo_name"`
}

// Observation is a single (timestamp, geo, value) triple produced by
// flattening an ObservationVariant. GeoID is 0 and Geo is "" for an
// ungeo'd value; the pivot step (internal/managers) is responsible for
// turning (GeoID, Geo) into the final wide-frame column name, since that
// resolution (geo_name, falling back to registry, falling back to
// stringified id) needs metadata this package doesn't have.
type Observation struct {
	Time time.Time
	GeoID int
	Geo string
	Value float64
}

// ObservationVariant covers the three shapes an indicator's value series
// can take on the wire: plain, broken down by geography, or a single
// system-wide aggregate. Go has no sum types, so each shape gets its own
// struct implementing this interface, chosen by Classify at the pivot step
// (internal/managers/indicator.go).
type ObservationVariant interface {
	// Flatten expands the variant into one Observation per value.
	Flatten() []Observation
	// Geos returns the distinct (id, name) pairs referenced, for registry
	// enrichment (internal/store.GeoRegistry).
	Geos() map[int]string
}

// WithoutGeo is a plain single-series variant: no geographic breakdown at
// all (offer_indicators and most system-wide indicators).
type WithoutGeo struct {
	Values []RawValue
}

func (w WithoutGeo) Flatten() []Observation {
	out := make([]Observation, 0, len(w.Values))
	for _, v := range w.Values {
		t, ok := parseValueTime(v)
		if !ok {
			continue
		}
		out = append(out, Observation{Time: t, Value: v.Value})
	}
	return out
}

func (w WithoutGeo) Geos() map[int]string { return nil }

// Aggregated is a single series reported under one specific geo (typically
// the national aggregate, geo_id 3 "España" in the ESIOS catalogue) rather
// than broken down per region.
type Aggregated struct {
	GeoID int
	GeoName string
	Values []RawValue
}

func (a Aggregated) Flatten() []Observation {
	out := make([]Observation, 0, len(a.Values))
	for _, v := range a.Values {
		t, ok := parseValueTime(v)
		if !ok {
			continue
		}
		out = append(out, Observation{Time: t, GeoID: a.GeoID, Geo: a.GeoName, Value: v.Value})
	}
	return out
}

func (a Aggregated) Geos() map[int]string {
	if a.GeoName == "" {
		return nil
	}
	return map[int]string{a.GeoID: a.GeoName}
}

// WithGeo is a full per-region breakdown: every value carries its own
// geo_id, and the pivot step fans each distinct geo out into its own wide
// column named after its geo_name.
type WithGeo struct {
	Values []RawValue
}

func (wg WithGeo) Flatten() []Observation {
	out := make([]Observation, 0, len(wg.Values))
	for _, v := range wg.Values {
		if v.GeoID == nil {
			continue
		}
		t, ok := parseValueTime(v)
		if !ok {
			continue
		}
		name := ""
		if v.GeoName != nil {
			name = *v.GeoName
		}
		out = append(out, Observation{Time: t, GeoID: *v.GeoID, Geo: name, Value: v.Value})
	}
	return out
}

func (wg WithGeo) Geos() map[int]string {
	out := make(map[int]string)
	for _, v := range wg.Values {
		if v.GeoID == nil || v.GeoName == nil || *v.GeoName == "" {
			continue
		}
		out[*v.GeoID] = *v.GeoName
	}
	return out
}

func parseValueTime(v RawValue) (time.Time, bool) {
	layouts := []string{time.RFC3339, "2006-01-02T15:04:05.000-07:00", "2006-01-02T15:04:05"}
	src := v.DatetimeUC
	if src == "" {
		src = v.Datetime
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, src); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// Classify inspects a raw values slice and picks the ObservationVariant
// that matches its shape: no geo_id anywhere -> WithoutGeo; every value
// sharing one geo_id -> Aggregated; more than one distinct geo_id ->
// WithGeo.
func Classify(values []RawValue) ObservationVariant {
	distinct := make(map[int]string)
	anyGeo := false
	for _, v := range values {
		if v.GeoID == nil {
			continue
		}
		anyGeo = true
		name := ""
		if v.GeoName != nil {
			name = *v.GeoName
		}
		distinct[*v.GeoID] = name
	}
	if !anyGeo {
		return WithoutGeo{Values: values}
	}
	if len(distinct) == 1 {
		for id, name := range distinct {
			return Aggregated{GeoID: id, GeoName: name, Values: values}
		}
	}
	return WithGeo{Values: values}
}
