// Package audit records every task the router hands to an agent.
//
// Entries are append-only. FileSink writes the human readable one-line
// format, SQLiteSink keeps a queryable history, MemorySink serves tests and
// MultiSink fans out to several sinks at once.
package audit
