// Package manifest reads and writes the fragment manifest.
//
// The manifest is a versioned key=value text file:
//
//	# firmware-fragmenter manifest v1
//	fragments=<int>
//	name=<string>
//	checksum=<uint32>
//	size=<int64>
//	src_dir=<string>
//
// Lines end with LF, including the last one, and fields always appear in this
// order. The separator is the first '=' of a line, so '=' and ':' inside values
// are written verbatim. In values a backslash is written as \\, LF as \n, CR
// as \r, TAB as \t, and any other byte below 0x20 or 0x7F as \xHH with
// lowercase hex digits. All other bytes, UTF-8 included, are written as is.
// Encoding the same Manifest always yields the same bytes.
package manifest
