// Package domain defines the core types shared by every phonescope component:
// lookup outcomes, the assembled report and the error taxonomy.
//
// This package has no dependencies outside the Go standard library. Providers,
// the aggregator and the report writer all speak in these types, so the
// dependency direction is always:
//
//	provider / aggregator / report → domain (CORRECT)
//	domain → provider / aggregator / report (FORBIDDEN)
package domain
