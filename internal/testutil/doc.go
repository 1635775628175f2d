// Package testutil contains helper builders used across tests to reduce
// boilerplate when constructing descriptors, descriptor sets and agents,
// plus a logger that records messages for assertions. Not intended for
// production usage.
package testutil
