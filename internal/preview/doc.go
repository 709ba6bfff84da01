// Package preview serves single frames of an archive without unpacking it.
//
// Frames are extracted in short runs into a cache folder named after a hash
// of the archive's leading bytes. A request looks at a window of frames around
// the one it wants and starts a background extraction when either edge of the
// window is missing, so sequential browsing rarely waits. Extractions are
// shared per folder inside the process and serialized across processes with a
// file lock.
package preview
