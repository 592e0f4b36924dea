// Package cli implements the command-line interface for opencall.
//
// The cli package provides the Cobra command tree: fetching and reducing pages,
// recording source links, importing and querying events, adding fee tiers and
// prizes, analytics reports and store maintenance. Every command renders its
// result as text or JSON (--format). Configuration comes from the config
// package; the store is opened per command and closed when it returns.
package cli
