/*
Package tupledb implements an embedded key-tuple store persisted as a single
document (a JSON file by default, or a Bolt database).

We implement:

1. Stores, mapping string keys to fixed-schema records. Records are kept
as positional tuples and handed to callers as field-name maps (views).

2. Sets, a schema-less variant holding a persisted set of string keys.

3. Atomic read-modify-write via Perform, where the update function may block
without letting other jobs on the same key interleave.

4. Coalesced persistence: the whole document is rewritten after mutations,
and any number of mutations arriving during a write end in one follow-up
write.

# Technical Details

**Schema.**
A schema is an ordered list of field names, some with a default. Field order
defines tuple positions. Defaults are copied on every read, so mutating a
returned value never affects other entries. When a document already exists,
its persisted schema wins over the one passed to Open.

**Jobs.**
Every operation is a job. With GlobalOrder a single worker runs jobs one
at a time in submission order. With KeyOrder jobs on one key run in
submission order while different keys proceed concurrently; store-wide jobs
(Entries, Size, Members) wait for every key chain queued before them.

**Saving.**
A single saver goroutine owns the backend. Committed changes bump a version
counter; a flush captures the state together with its version, and a flush
request is a no-op when the last successful write already covers the current
version. MinFlushInterval optionally rate-limits writes.

**Lifecycle.**

	Running → Draining → Stopped
	Running → Killed

Stop keeps accepting jobs while draining, waits for all of them, then performs
a final flush. Kill abandons queued jobs (their callers receive ErrKilled) and
any pending writes.

## Document format

The JSON document written by FileBackend:

	{
	  "types": {
	    "index": {"name": 0, "score": 1},
	    "defaults": {"score": 0},
	    "list": ["name", "score"]
	  },
	  "data": {
	    "alice": ["Alice", 5]
	  }
	}

Entries appear in insertion order. A Set document is a JSON list of keys.

## Bolt layout

BoltBackend keeps a root bucket "tupledb" with two nested buckets:

1. "meta" holds the msgpack-encoded schema and its 8-byte fingerprint.

2. "entries" maps each key to a msgpack {o: ordinal, t: tuple} value. Bolt
sorts keys, so the ordinal restores insertion order on load.
*/
package tupledb
