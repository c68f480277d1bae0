// Package model defines the shared data types of the lookup layer:
// vector identifiers, records, ANN candidates, reranked results and
// response quality flags.
package model
