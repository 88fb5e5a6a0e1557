package process

import (
	"bytes"
	"fmt"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/encoding/unicode/utf32"
	"golang.org/x/text/transform"
)

type srcEncoding int

const (
	encUnknown srcEncoding = iota
	encUTF8
	encUTF16BigEndian
	encUTF16LittleEndian
	encUTF32BigEndian
	encUTF32LittleEndian
)

func (e srcEncoding) String() string {
	switch e {
	case encUTF8:
		return "utf8"
	case encUTF16BigEndian:
		return "utf16be"
	case encUTF16LittleEndian:
		return "utf16le"
	case encUTF32BigEndian:
		return "utf32be"
	case encUTF32LittleEndian:
		return "utf32le"
	default:
		return "unknown"
	}
}

// detectUTF looks at byte order mark only. UTF-32LE must be checked before
// UTF-16LE since they share first two bytes.
func detectUTF(buf []byte) srcEncoding {
	switch {
	case bytes.HasPrefix(buf, []byte{0xEF, 0xBB, 0xBF}):
		return encUTF8
	case bytes.HasPrefix(buf, []byte{0x00, 0x00, 0xFE, 0xFF}):
		return encUTF32BigEndian
	case bytes.HasPrefix(buf, []byte{0xFF, 0xFE, 0x00, 0x00}):
		return encUTF32LittleEndian
	case bytes.HasPrefix(buf, []byte{0xFE, 0xFF}):
		return encUTF16BigEndian
	case bytes.HasPrefix(buf, []byte{0xFF, 0xFE}):
		return encUTF16LittleEndian
	default:
		return encUnknown
	}
}

func (e srcEncoding) decoder() *encoding.Decoder {
	switch e {
	case encUTF16BigEndian:
		return unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM).NewDecoder()
	case encUTF16LittleEndian:
		return unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM).NewDecoder()
	case encUTF32BigEndian:
		return utf32.UTF32(utf32.BigEndian, utf32.ExpectBOM).NewDecoder()
	case encUTF32LittleEndian:
		return utf32.UTF32(utf32.LittleEndian, utf32.ExpectBOM).NewDecoder()
	default:
		return unicode.UTF8BOM.NewDecoder()
	}
}

// decodeSource returns stylesheet text as UTF-8 with byte order mark
// removed. Input without BOM is passed through as is, the compiler
// replaces invalid sequences.
func decodeSource(data []byte) (string, srcEncoding, error) {
	enc := detectUTF(data)
	if enc == encUnknown {
		return string(data), enc, nil
	}
	out, _, err := transform.Bytes(enc.decoder(), data)
	if err != nil {
		return "", enc, fmt.Errorf("unable to decode %s source: %w", enc, err)
	}
	return string(out), enc, nil
}
