// Package server hosts the Fiber HTTP service: the recover and request-id
// middleware chain, the catch-all route that hands every non-diagnostic
// request to the pull handler, and the shared origin http.Client whose dial,
// total and redirect limits bound every probe and transfer.
package server
