// Package tracks groups source images into codec-homogeneous encode tracks.
//
// Images that share resolution, bit depth, colour layout, and container format
// form one Track and are encoded as one video stream. Tracks are returned
// largest first so track 0 always carries the biggest group.
package tracks
