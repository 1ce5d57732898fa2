package formats

import (
	"errors"
	"testing"
)

func TestParseLabelList_FSLXML(t *testing.T) {
	doc := `<?xml version="1.0" encoding="ISO-8859-1"?>
<atlas version="1.0">
  <header>
    <name>Harvard-Oxford Subcortical Structural Atlas</name>
    <type>Label</type>
  </header>
  <data>
    <label index="0" x="58" y="119" z="61">Left Cerebral White Matter</label>
    <label index="3" x="71" y="113" z="65">Left Thalamus</label>
    <label index="7" x="90" y="120" z="60">Brain-Stem</label>
  </data>
</atlas>`

	entries, err := ParseLabelList([]byte(doc))
	if err != nil {
		t.Fatalf("ParseLabelList failed: %v", err)
	}
	want := []LabelEntry{
		{1, "Left Cerebral White Matter"},
		{4, "Left Thalamus"},
		{8, "Brain-Stem"},
	}
	if len(entries) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(entries))
	}
	for i := range want {
		if entries[i] != want[i] {
			t.Errorf("entry %d = %+v, want %+v", i, entries[i], want[i])
		}
	}
}

func TestParseLabelList_SPMXML(t *testing.T) {
	doc := `<?xml version="1.0"?>
<atlas version="2.0">
  <data>
    <label><index>9001</index><name>Cerebelum_Crus1_L</name></label>
    <label><index>2001</index><name>Precentral_L</name></label>
    <label><index>9100</index><name>Vermis_1_2</name></label>
  </data>
</atlas>`

	entries, err := ParseLabelList([]byte(doc))
	if err != nil {
		t.Fatalf("ParseLabelList failed: %v", err)
	}
	if entries[0].Value != 2001 || entries[0].Name != "Precentral_L" {
		t.Errorf("entries not sorted by value: %+v", entries)
	}
	if entries[2].Name != "Vermis_1_2" {
		t.Errorf("entry 2 = %+v", entries[2])
	}
}

func TestParseLabelList_Text(t *testing.T) {
	text := `# value name
0 Unknown
10 Left-Thalamus 0 118 14 0
16 Brain Stem
`
	entries, err := ParseLabelList([]byte(text))
	if err != nil {
		t.Fatalf("ParseLabelList failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[1].Name != "Left-Thalamus" {
		t.Errorf("LUT row name = %q", entries[1].Name)
	}
	if entries[2].Name != "Brain Stem" {
		t.Errorf("multi-word name = %q", entries[2].Name)
	}
}

func TestParseLabelList_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
		want error
	}{
		{"empty", "# nothing here\n", ErrEmptyLabelList},
		{"bad value", "x Thalamus\n", ErrInvalidLabelList},
		{"single field", "12\n", ErrInvalidLabelList},
		{"xml without index", `<atlas><data><label>Thalamus</label></data></atlas>`, ErrInvalidLabelList},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseLabelList([]byte(tc.data))
			if !errors.Is(err, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, err)
			}
		})
	}
}
