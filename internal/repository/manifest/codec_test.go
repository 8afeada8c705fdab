package manifest

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/firmware-fragmenter/internal/domain/fragment"
)

// TestEncode_Layout pins the exact bytes of a manifest.
func TestEncode_Layout(t *testing.T) {
	t.Parallel()

	m := &fragment.Manifest{
		Fragments: 3,
		Name:      "update",
		Checksum:  4294967295,
		Size:      100000000,
		SourceDir: "/storage/emulated/legacy",
	}

	want := "# firmware-fragmenter manifest v1\n" +
		"fragments=3\n" +
		"name=update\n" +
		"checksum=4294967295\n" +
		"size=100000000\n" +
		"src_dir=/storage/emulated/legacy\n"

	require.Equal(t, want, string(Encode(m)))
	require.Equal(t, Encode(m), Encode(m))
}

// TestEncode_Escaping covers separators, backslashes and control characters in values.
func TestEncode_Escaping(t *testing.T) {
	t.Parallel()

	m := &fragment.Manifest{
		Name:      "a=b:c\\d",
		SourceDir: "line1\nline2\r\t\x00\x1f\x7fé",
	}

	encoded := string(Encode(m))
	require.Contains(t, encoded, "name=a=b:c\\\\d\n")
	require.Contains(t, encoded, "src_dir=line1\\nline2\\r\\t\\x00\\x1f\\x7fé\n")

	decoded, err := Decode(Encode(m))
	require.NoError(t, err)
	require.Equal(t, m, decoded)
}

// TestDecode_Errors verifies that deviations from the grammar are rejected.
func TestDecode_Errors(t *testing.T) {
	t.Parallel()

	valid := "# firmware-fragmenter manifest v1\nfragments=1\nname=x\nchecksum=1\nsize=1\nsrc_dir=/d\n"

	_, err := Decode([]byte(valid))
	require.NoError(t, err)

	cases := map[string]string{
		"no final newline":  valid[:len(valid)-1],
		"no header":         "fragments=1\nname=x\nchecksum=1\nsize=1\nsrc_dir=/d\n",
		"missing field":     "# firmware-fragmenter manifest v1\nfragments=1\nname=x\nchecksum=1\nsize=1\n",
		"extra field":       valid + "extra=1\n",
		"wrong order":       "# firmware-fragmenter manifest v1\nname=x\nfragments=1\nchecksum=1\nsize=1\nsrc_dir=/d\n",
		"bad checksum":      "# firmware-fragmenter manifest v1\nfragments=1\nname=x\nchecksum=4294967296\nsize=1\nsrc_dir=/d\n",
		"negative size":     "# firmware-fragmenter manifest v1\nfragments=1\nname=x\nchecksum=1\nsize=-1\nsrc_dir=/d\n",
		"negative count":    "# firmware-fragmenter manifest v1\nfragments=-1\nname=x\nchecksum=1\nsize=1\nsrc_dir=/d\n",
		"unknown escape":    "# firmware-fragmenter manifest v1\nfragments=1\nname=\\q\nchecksum=1\nsize=1\nsrc_dir=/d\n",
		"dangling escape":   "# firmware-fragmenter manifest v1\nfragments=1\nname=x\\\nchecksum=1\nsize=1\nsrc_dir=/d\n",
		"short hex escape":  "# firmware-fragmenter manifest v1\nfragments=1\nname=x\nchecksum=1\nsize=1\nsrc_dir=\\x1\n",
		"upper hex escape":  "# firmware-fragmenter manifest v1\nfragments=1\nname=\\x1F\nchecksum=1\nsize=1\nsrc_dir=/d\n",
		"raw carriage ret":  "# firmware-fragmenter manifest v1\nfragments=1\nname=x\r\nchecksum=1\nsize=1\nsrc_dir=/d\n",
		"raw control value": "# firmware-fragmenter manifest v1\nfragments=1\nname=x\x01\nchecksum=1\nsize=1\nsrc_dir=/d\n",
	}
	for name, input := range cases {
		_, err = Decode([]byte(input))
		require.ErrorIs(t, err, ErrMalformed, name)
	}

	_, err = Decode([]byte("# firmware-fragmenter manifest v2\nfragments=1\n"))
	require.ErrorIs(t, err, ErrUnsupportedVersion)
}
