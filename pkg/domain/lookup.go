package domain

import (
	"encoding/json"
	"fmt"
	"maps"
)

// Status classifies the outcome of a single provider lookup.
type Status string

const (
	// StatusFound indicates the source confirmed the number.
	StatusFound Status = "found"
	// StatusNotFound indicates the source answered but did not confirm the number.
	StatusNotFound Status = "not_found"
	// StatusFailed indicates the lookup could not be completed.
	StatusFailed Status = "failed"
)

// Labels rendered in the "status" field of a report entry.
const (
	LabelFound    = "Active"
	LabelNotFound = "Not Found"
	LabelFailed   = "Failed"
)

// Reasons recorded by the aggregator for lookups it had to give up on.
const (
	ReasonTimeout       = "timeout"
	ReasonCancelled     = "cancelled"
	ReasonInvalidNumber = "invalid number"
)

// LookupResult is the tagged outcome of one provider call.
type LookupResult struct {
	Status  Status
	URL     string
	Reason  string
	Details map[string]string
}

// Found constructs a successful result. details may be nil.
func Found(url string, details map[string]string) LookupResult {
	return LookupResult{Status: StatusFound, URL: url, Details: maps.Clone(details)}
}

// NotFound constructs a negative result.
func NotFound(url string) LookupResult {
	return LookupResult{Status: StatusNotFound, URL: url}
}

// Failed constructs a failure result carrying reason.
func Failed(url, reason string) LookupResult {
	return LookupResult{Status: StatusFailed, URL: url, Reason: reason}
}

// Failedf is Failed with a formatted reason.
func Failedf(url, format string, args ...any) LookupResult {
	return Failed(url, fmt.Sprintf(format, args...))
}

// Exists reports whether the source confirmed the number.
func (r LookupResult) Exists() bool {
	return r.Status == StatusFound
}

// Label returns the human readable status written to reports.
func (r LookupResult) Label() string {
	switch r.Status {
	case StatusFound:
		return LabelFound
	case StatusFailed:
		return LabelFailed
	default:
		return LabelNotFound
	}
}

// Clone returns a deep copy of the result.
func (r LookupResult) Clone() LookupResult {
	r.Details = maps.Clone(r.Details)
	return r
}

type lookupResultJSON struct {
	Exists  bool              `json:"exists"`
	Status  string            `json:"status"`
	URL     string            `json:"url,omitempty"`
	Reason  string            `json:"reason,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// MarshalJSON renders the report entry shape {exists, status, url?, reason?, details?}.
func (r LookupResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(lookupResultJSON{
		Exists:  r.Exists(),
		Status:  r.Label(),
		URL:     r.URL,
		Reason:  r.Reason,
		Details: r.Details,
	})
}

// UnmarshalJSON restores a result from its report entry shape.
func (r *LookupResult) UnmarshalJSON(data []byte) error {
	var raw lookupResultJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	status := StatusNotFound
	switch {
	case raw.Exists:
		status = StatusFound
	case raw.Status == LabelFailed:
		status = StatusFailed
	}

	*r = LookupResult{
		Status:  status,
		URL:     raw.URL,
		Reason:  raw.Reason,
		Details: raw.Details,
	}
	return nil
}
