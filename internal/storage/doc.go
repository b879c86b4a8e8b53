// Package storage provides the durable backends for the watcher's tracking
// state: a JSON file with atomic replace (default) and an optional SQLite
// database behind the sqlite build tag.
package storage
