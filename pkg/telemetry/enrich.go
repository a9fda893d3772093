package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/polisai/phonescope/pkg/domain"
)

// Span attribute keys.
const (
	AttrRunID    = "phonescope.run_id"
	AttrProvider = "phonescope.provider"
	AttrCategory = "phonescope.category"
	AttrStatus   = "phonescope.lookup.status"
	AttrReason   = "phonescope.lookup.reason"
	AttrTarget   = "phone.target"
	AttrNumber   = "phone.number"
)

// SetRedacted sets attrs on span after RedactAttributes with the default policy.
func SetRedacted(span trace.Span, attrs ...attribute.KeyValue) {
	if !span.IsRecording() {
		return
	}
	span.SetAttributes(RedactAttributes(nil, attrs)...)
}

// RecordLookupResult annotates span with the outcome of one provider call.
func RecordLookupResult(span trace.Span, result domain.LookupResult) {
	if !span.IsRecording() {
		return
	}

	span.SetAttributes(attribute.String(AttrStatus, string(result.Status)))
	if result.Reason != "" {
		span.SetAttributes(attribute.String(AttrReason, result.Reason))
	}

	if result.Status == domain.StatusFailed {
		span.SetStatus(codes.Error, result.Reason)
		if result.Reason == domain.ReasonTimeout {
			span.AddEvent("lookup.timeout")
		}
	}
}
