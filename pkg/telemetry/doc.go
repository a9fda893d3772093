// Package telemetry wires OpenTelemetry exporters and meters for phonescope.
//
// It centralises trace provider setup, records per-lookup metrics, exports a
// Prometheus textfile for batch runs and masks phone numbers before they leave
// the process as span attributes.
package telemetry
