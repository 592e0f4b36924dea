// Package reducer shrinks raw page markup to a bounded, keyword-relevant text payload
// and extracts candidate dates and monetary amounts from it.
//
// Reduce strips non-content elements, splits what remains into segments (paragraphs,
// else sentences, else lines, else the whole text), keeps the segments that mention a
// domain keyword, and runs an ordered list of pattern rules over them. Results are
// memoized by the SHA-256 of the raw body in a bounded LRU cache owned by the Reducer.
// The package performs no I/O.
package reducer
