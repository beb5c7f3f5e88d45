// Package request turns an inbound request URI into the immutable Request
// value threaded through the pull pipeline: the normalized request string,
// its SHA-1 cache key and the MIME type resolved from the closed extension
// table. Anything the table does not cover is rejected here, before the
// cache or the origin is touched.
package request
