// Package fragmenter splits an update package into bounded-size ZIP fragments
// and writes the manifest the device uses to verify and reassemble them.
//
// Fragments are produced strictly in order from one read cursor, and a single
// CRC-32 runs over the whole source across fragment boundaries, so a run is
// sequential by construction. A failed run leaves its partial output on disk.
package fragmenter
