package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/oshokin/firmware-fragmenter/internal/domain/fragment"
)

const (
	// Header is the first line of every version 1 manifest.
	Header = "# firmware-fragmenter manifest v1"

	keyFragments = "fragments"
	keyName      = "name"
	keyChecksum  = "checksum"
	keySize      = "size"
	keySourceDir = "src_dir"

	hexDigits = "0123456789abcdef"
)

// fieldOrder is the order fields are written and expected in.
//
//nolint:gochecknoglobals // Read-only layout table.
var fieldOrder = []string{keyFragments, keyName, keyChecksum, keySize, keySourceDir}

var (
	// ErrMalformed is returned when data does not follow the manifest grammar.
	ErrMalformed = errors.New("malformed manifest")
	// ErrUnsupportedVersion is returned when the header names another format version.
	ErrUnsupportedVersion = errors.New("unsupported manifest version")
)

// Encode renders the manifest in the version 1 text format.
func Encode(m *fragment.Manifest) []byte {
	var buf bytes.Buffer

	buf.WriteString(Header)
	buf.WriteByte('\n')

	values := map[string]string{
		keyFragments: strconv.Itoa(m.Fragments),
		keyName:      m.Name,
		keyChecksum:  strconv.FormatUint(uint64(m.Checksum), 10),
		keySize:      strconv.FormatInt(m.Size, 10),
		keySourceDir: m.SourceDir,
	}

	for _, key := range fieldOrder {
		buf.WriteString(key)
		buf.WriteByte('=')
		buf.WriteString(escape(values[key]))
		buf.WriteByte('\n')
	}

	return buf.Bytes()
}

// Decode parses a version 1 manifest.
func Decode(data []byte) (*fragment.Manifest, error) {
	text := string(data)
	if !strings.HasSuffix(text, "\n") {
		return nil, fmt.Errorf("%w: missing final line feed", ErrMalformed)
	}

	lines := strings.Split(strings.TrimSuffix(text, "\n"), "\n")
	if lines[0] != Header {
		if strings.HasPrefix(lines[0], "# firmware-fragmenter manifest ") {
			return nil, fmt.Errorf("%w: %q", ErrUnsupportedVersion, lines[0])
		}

		return nil, fmt.Errorf("%w: missing header", ErrMalformed)
	}

	if len(lines)-1 != len(fieldOrder) {
		return nil, fmt.Errorf("%w: expected %d fields, got %d", ErrMalformed, len(fieldOrder), len(lines)-1)
	}

	values := make(map[string]string, len(fieldOrder))

	for i, key := range fieldOrder {
		line := lines[i+1]

		gotKey, raw, found := strings.Cut(line, "=")
		if !found || gotKey != key {
			return nil, fmt.Errorf("%w: line %d: expected key %q", ErrMalformed, i+2, key)
		}

		value, err := unescape(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %w", ErrMalformed, i+2, err)
		}

		values[key] = value
	}

	fragments, err := strconv.Atoi(values[keyFragments])
	if err != nil || fragments < 0 {
		return nil, fmt.Errorf("%w: bad %s %q", ErrMalformed, keyFragments, values[keyFragments])
	}

	checksum, err := strconv.ParseUint(values[keyChecksum], 10, 32)
	if err != nil {
		return nil, fmt.Errorf("%w: bad %s %q", ErrMalformed, keyChecksum, values[keyChecksum])
	}

	size, err := strconv.ParseInt(values[keySize], 10, 64)
	if err != nil || size < 0 {
		return nil, fmt.Errorf("%w: bad %s %q", ErrMalformed, keySize, values[keySize])
	}

	return &fragment.Manifest{
		Fragments: fragments,
		Name:      values[keyName],
		Checksum:  uint32(checksum),
		Size:      size,
		SourceDir: values[keySourceDir],
	}, nil
}

func escape(s string) string {
	var b strings.Builder

	b.Grow(len(s))

	for i := 0; i < len(s); i++ {
		c := s[i]

		switch {
		case c == '\\':
			b.WriteString(`\\`)
		case c == '\n':
			b.WriteString(`\n`)
		case c == '\r':
			b.WriteString(`\r`)
		case c == '\t':
			b.WriteString(`\t`)
		case c < 0x20 || c == 0x7f:
			b.WriteString(`\x`)
			b.WriteByte(hexDigits[c>>4])
			b.WriteByte(hexDigits[c&0x0f])
		default:
			b.WriteByte(c)
		}
	}

	return b.String()
}

var (
	errDanglingEscape = errors.New("dangling escape")
	errUnknownEscape  = errors.New("unknown escape")
	errRawControl     = errors.New("unescaped control character")
)

func unescape(s string) (string, error) {
	var b strings.Builder

	b.Grow(len(s))

	for i := 0; i < len(s); i++ {
		c := s[i]

		switch {
		case c < 0x20 || c == 0x7f:
			return "", fmt.Errorf("%w at offset %d", errRawControl, i)
		case c != '\\':
			b.WriteByte(c)
			continue
		}

		i++
		if i >= len(s) {
			return "", errDanglingEscape
		}

		switch s[i] {
		case '\\':
			b.WriteByte('\\')
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 't':
			b.WriteByte('\t')
		case 'x':
			if i+2 >= len(s) {
				return "", errDanglingEscape
			}

			hi, lo := strings.IndexByte(hexDigits, s[i+1]), strings.IndexByte(hexDigits, s[i+2])
			if hi < 0 || lo < 0 {
				return "", fmt.Errorf("%w \\x%s", errUnknownEscape, s[i+1:i+3])
			}

			b.WriteByte(byte(hi<<4 | lo))

			i += 2
		default:
			return "", fmt.Errorf("%w \\%c", errUnknownEscape, s[i])
		}
	}

	return b.String(), nil
}
