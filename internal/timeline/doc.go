// Package timeline reads the message stream that serves as the ground truth
// for when catalog items were introduced.
//
// A Source returns messages newest first and may page through a remote feed.
// Three sources are provided: the public channel web preview, an RSS or Atom
// rendition of the channel, and a Telegram Desktop JSON export on disk. Fetch
// wraps any source with a per-attempt timeout, bounded exponential-backoff
// retry, ordering and de-duplication so callers always receive a clean
// snapshot or an error.
//
// Entries that cannot be parsed are skipped and counted rather than failing
// the whole fetch; only transport-level failures surface as errors.
//
// The media resolver turns media references (URLs or local files) into
// content signatures so photos can be compared across sources.
package timeline
