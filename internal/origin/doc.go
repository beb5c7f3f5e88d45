// Package origin talks to the upstream host: a header-only existence probe
// and a full-body transfer streamed straight into a cache sink. Both operations
// run on their own deadlines, detached from the requesting client, and fail
// closed: timeouts, transport errors and non-2xx statuses all mean "absent".
package origin
