// Package scoring folds a student's activity records into a bounded score,
// a medal count and chart series. Every function is pure: no I/O, no shared
// mutable state, safe to call from concurrent goroutines.
package scoring
