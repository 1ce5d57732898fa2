// Package formats provides parsers for neuroimaging file formats used by atlas sources:
// FreeSurfer triangle surfaces and annotations, GIFTI, NIfTI-1 and atlas label lists.
package formats

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/Faultbox/atlasmesh/pkg/encoding"
)

// ReadFile reads a file from disk, transparently inflating it when the
// name ends in .gz or the content starts with the gzip magic.
func ReadFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(strings.ToLower(path), ".gz") && !isGzip(data) {
		return data, nil
	}
	return gunzip(data)
}

func isGzip(data []byte) bool {
	return len(data) >= 2 && data[0] == 0x1f && data[1] == 0x8b
}

func gunzip(data []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("opening gzip stream: %w", err)
	}
	defer zr.Close()
	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("inflating gzip stream: %w", err)
	}
	return out, nil
}

// decodeXML unmarshals an XML document, honouring a non-UTF-8 charset in
// its declaration.
func decodeXML(data []byte, v any) error {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.CharsetReader = encoding.CharsetReader
	return dec.Decode(v)
}
