// Package errors provides standardized error definitions shared across the
// tracking server's components. Package-local sentinels stay next to the
// code that raises them; the errors here are the ones crossing package
// boundaries.
package errors
