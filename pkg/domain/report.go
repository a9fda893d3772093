package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Report keys that are not categories.
const (
	KeyTimestamp = "timestamp"
	KeyTarget    = "target"
)

// ProviderResult pairs a provider name with its lookup outcome.
type ProviderResult struct {
	Provider string
	Result   LookupResult
}

// CategoryResults groups the results of every provider in one category, in
// registration order.
type CategoryResults struct {
	Name    string
	Results []ProviderResult
}

// Get returns the result recorded for provider.
func (c CategoryResults) Get(provider string) (LookupResult, bool) {
	for _, pr := range c.Results {
		if pr.Provider == provider {
			return pr.Result, true
		}
	}
	return LookupResult{}, false
}

// Report is the merged outcome of one analysis run. It is assembled once by the
// aggregator and must not be modified afterwards.
type Report struct {
	Timestamp  time.Time
	Target     string
	Categories []CategoryResults
}

// Category returns the named category.
func (r *Report) Category(name string) (CategoryResults, bool) {
	for _, c := range r.Categories {
		if c.Name == name {
			return c, true
		}
	}
	return CategoryResults{}, false
}

// Result returns the outcome recorded for provider within category.
func (r *Report) Result(category, provider string) (LookupResult, bool) {
	c, ok := r.Category(category)
	if !ok {
		return LookupResult{}, false
	}
	return c.Get(provider)
}

// CategoryNames lists category names in report order.
func (r *Report) CategoryNames() []string {
	names := make([]string, 0, len(r.Categories))
	for _, c := range r.Categories {
		names = append(names, c.Name)
	}
	return names
}

// ResultCount returns the number of provider slots across all categories.
func (r *Report) ResultCount() int {
	n := 0
	for _, c := range r.Categories {
		n += len(c.Results)
	}
	return n
}

// MarshalJSON writes the report as a single JSON object whose category and
// provider keys keep report order.
func (r *Report) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	if err := writeMember(&buf, KeyTimestamp, r.Timestamp.Format(time.RFC3339Nano), true); err != nil {
		return nil, err
	}
	if err := writeMember(&buf, KeyTarget, r.Target, false); err != nil {
		return nil, err
	}

	for _, c := range r.Categories {
		if c.Name == KeyTimestamp || c.Name == KeyTarget {
			return nil, fmt.Errorf("%w: category name %q is reserved", ErrMalformedReport, c.Name)
		}
		if err := writeKey(&buf, c.Name, false); err != nil {
			return nil, err
		}
		buf.WriteByte('{')
		for i, pr := range c.Results {
			if err := writeMember(&buf, pr.Provider, pr.Result, i == 0); err != nil {
				return nil, err
			}
		}
		buf.WriteByte('}')
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeKey(buf *bytes.Buffer, key string, first bool) error {
	if !first {
		buf.WriteByte(',')
	}
	encoded, err := json.Marshal(key)
	if err != nil {
		return err
	}
	buf.Write(encoded)
	buf.WriteByte(':')
	return nil
}

func writeMember(buf *bytes.Buffer, key string, value any, first bool) error {
	if err := writeKey(buf, key, first); err != nil {
		return err
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return err
	}
	buf.Write(encoded)
	return nil
}

// UnmarshalJSON parses a report written by MarshalJSON, preserving key order.
func (r *Report) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	if err := expectDelim(dec, '{'); err != nil {
		return err
	}

	out := Report{}
	for dec.More() {
		key, err := readKey(dec)
		if err != nil {
			return err
		}

		switch key {
		case KeyTimestamp:
			var raw string
			if err := dec.Decode(&raw); err != nil {
				return fmt.Errorf("%w: timestamp: %v", ErrMalformedReport, err)
			}
			ts, err := time.Parse(time.RFC3339Nano, raw)
			if err != nil {
				return fmt.Errorf("%w: timestamp: %v", ErrMalformedReport, err)
			}
			out.Timestamp = ts
		case KeyTarget:
			if err := dec.Decode(&out.Target); err != nil {
				return fmt.Errorf("%w: target: %v", ErrMalformedReport, err)
			}
		default:
			category, err := readCategory(dec, key)
			if err != nil {
				return err
			}
			out.Categories = append(out.Categories, category)
		}
	}

	if err := expectDelim(dec, '}'); err != nil {
		return err
	}

	*r = out
	return nil
}

func readCategory(dec *json.Decoder, name string) (CategoryResults, error) {
	category := CategoryResults{Name: name}
	if err := expectDelim(dec, '{'); err != nil {
		return category, fmt.Errorf("category %s: %w", name, err)
	}
	for dec.More() {
		provider, err := readKey(dec)
		if err != nil {
			return category, err
		}
		var result LookupResult
		if err := dec.Decode(&result); err != nil {
			return category, fmt.Errorf("%w: %s.%s: %v", ErrMalformedReport, name, provider, err)
		}
		category.Results = append(category.Results, ProviderResult{Provider: provider, Result: result})
	}
	if err := expectDelim(dec, '}'); err != nil {
		return category, fmt.Errorf("category %s: %w", name, err)
	}
	return category, nil
}

func readKey(dec *json.Decoder) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedReport, err)
	}
	key, ok := tok.(string)
	if !ok {
		return "", fmt.Errorf("%w: expected object key, got %v", ErrMalformedReport, tok)
	}
	return key, nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedReport, err)
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("%w: expected %q, got %v", ErrMalformedReport, want, tok)
	}
	return nil
}
