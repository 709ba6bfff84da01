// Package preflight provides readiness checks for the directories and tools
// reelpack depends on.
//
// The CLI runs RunAll before a pack or unpack starts so a missing ffmpeg or
// an unwritable scratch directory is reported before any work is staged, and
// "reelpack doctor" prints the same checks together with the dependency list.
package preflight
