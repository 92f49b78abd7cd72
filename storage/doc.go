// Package storage defines the contract between the handle façade and a
// storage engine: the engine, its repository, file and version reader
// handles, their options and the data they report.
//
// The engine owns persistence, encryption and deduplication. This package
// only names the operations the façade forwards to it.
package storage
