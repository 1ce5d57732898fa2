package formats

import (
	"bufio"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/Faultbox/atlasmesh/pkg/encoding"
)

// Label list errors.
var (
	ErrInvalidLabelList = errors.New("invalid atlas label list")
	ErrEmptyLabelList   = errors.New("atlas label list is empty")
)

// LabelEntry maps one voxel value of a volumetric atlas to its name.
type LabelEntry struct {
	Value int32
	Name  string
}

type atlasXML struct {
	XMLName xml.Name        `xml:"atlas"`
	Labels  []atlasLabelXML `xml:"data>label"`
}

// atlasLabelXML accepts both the FSL layout (<label index="0">name</label>,
// where voxel value = index + 1) and the SPM/AAL layout
// (<label><index>2001</index><name>...</name></label>).
type atlasLabelXML struct {
	IndexAttr string `xml:"index,attr"`
	Index     string `xml:"index"`
	Name      string `xml:"name"`
	Text      string `xml:",chardata"`
}

// ParseLabelList parses an atlas label list. XML documents are read as FSL
// or SPM atlas descriptions; anything else as "value name" text lines, which
// also covers FreeSurfer colour lookup tables.
// The result is sorted by value.
func ParseLabelList(data []byte) ([]LabelEntry, error) {
	var entries []LabelEntry
	var err error
	if bytes.HasPrefix(bytes.TrimSpace(data), []byte("<")) {
		entries, err = parseAtlasXML(data)
	} else {
		entries, err = parseLabelText(data)
	}
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, ErrEmptyLabelList
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Value < entries[j].Value })
	return entries, nil
}

// ParseLabelListFile parses an atlas label list from disk.
func ParseLabelListFile(path string) ([]LabelEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading label list: %w", err)
	}
	return ParseLabelList(data)
}

func parseAtlasXML(data []byte) ([]LabelEntry, error) {
	var doc atlasXML
	if err := decodeXML(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidLabelList, err)
	}

	entries := make([]LabelEntry, 0, len(doc.Labels))
	for i, l := range doc.Labels {
		var value int64
		var name string
		var err error
		switch {
		case strings.TrimSpace(l.IndexAttr) != "":
			value, err = strconv.ParseInt(strings.TrimSpace(l.IndexAttr), 10, 32)
			value++ // FSL indices are 0-based; voxel value 0 is background.
			name = l.Text
		case strings.TrimSpace(l.Index) != "":
			value, err = strconv.ParseInt(strings.TrimSpace(l.Index), 10, 32)
			name = l.Name
		default:
			return nil, fmt.Errorf("%w: label %d has no index", ErrInvalidLabelList, i)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: label %d index: %v", ErrInvalidLabelList, i, err)
		}
		entries = append(entries, LabelEntry{
			Value: int32(value),
			Name:  encoding.DecodeName([]byte(strings.TrimSpace(name))),
		})
	}
	return entries, nil
}

func parseLabelText(data []byte) ([]LabelEntry, error) {
	var entries []LabelEntry
	scanner := bufio.NewScanner(bytes.NewReader(data))
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Fields(text)
		if len(fields) < 2 {
			return nil, fmt.Errorf("%w: line %d: %q", ErrInvalidLabelList, line, text)
		}
		value, err := strconv.ParseInt(fields[0], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: value %q", ErrInvalidLabelList, line, fields[0])
		}
		name := strings.Join(fields[1:], " ")
		if isLUTRow(fields) {
			name = fields[1]
		}
		entries = append(entries, LabelEntry{
			Value: int32(value),
			Name:  encoding.DecodeName([]byte(name)),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidLabelList, err)
	}
	return entries, nil
}

// isLUTRow reports whether fields look like a FreeSurfer colour LUT row:
// value, name, R, G, B, A.
func isLUTRow(fields []string) bool {
	if len(fields) != 6 {
		return false
	}
	for _, f := range fields[2:] {
		if _, err := strconv.Atoi(f); err != nil {
			return false
		}
	}
	return true
}
