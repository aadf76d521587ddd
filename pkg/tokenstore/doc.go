// Package tokenstore provides authsdk.Storage backends for persisting the
// current session: in memory, in a JSON file, and in Redis.
package tokenstore
