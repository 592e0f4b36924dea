// Package event provides the domain model for discovered open-call events.
//
// A SourceLink is a page URL discovered by a crawl, together with whatever raw text was
// observed on it. Events are validated, structured occurrences derived from a link, and each
// Event owns its FeeTier and Prize rows. Dates cross package boundaries as YYYY-MM-DD strings
// and monetary values as decimal strings, never as floats.
package event
