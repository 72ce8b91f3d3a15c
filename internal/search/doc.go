// Package search implements hybrid retrieval over indexed study content.
//
// Three sources run concurrently for every query: embedding similarity over
// material chunks, embedding similarity over notes, and literal substring
// matching over material chunks. Their ranked lists are merged with
// reciprocal rank fusion, recently created material gets a decaying additive
// boost, and the top results are returned. Any single source may fail
// without failing the query.
package search
