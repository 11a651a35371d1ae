// Package metadata stores small named blobs in the local SQLite database.
// The session store keeps its fields here, one row per key.
package metadata
