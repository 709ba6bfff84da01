// Package history records pack, unpack, and preview operations in a SQLite
// database so past runs and their outcomes can be listed after the process
// exits.
package history
