// Package fragment contains the domain types of a fragmentation run.
//
// It defines SourceFile (the update package being split), Plan (how many
// fragments and which byte range each one covers) and Manifest (the record
// the device uses to verify and reassemble the fragments), plus the naming
// rules for fragment archives.
package fragment
