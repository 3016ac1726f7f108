// Package search shapes documents into search results and keeps a local entry index.
//
// The [Indexer] contract is what the domain layer relies on when documents are published or removed.
// [BoltIndexer] stores one msgpack encoded [Result] per document in a bbolt file and answers simple
// term queries; [Noop] satisfies the contract without storing anything.
package search
