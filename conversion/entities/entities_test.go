package entities

import (
	"math"
	"strings"
	"testing"
)

const sampleDXF = `0
SECTION
2
HEADER
9
$ACADVER
1
AC1032
0
ENDSEC
0
SECTION
2
ENTITIES
0
LINE
8
Walls
10
0.0
20
0.0
30
0.0
11
3.0
21
4.0
31
0.0
0
CIRCLE
8
Columns
10
5.0
20
5.0
30
0.0
40
2.5
0
TEXT
8
Labels
10
1.0
20
2.0
30
0.0
40
0.35
1
ROOM A-101
0
ARC
8
Walls
10
0.0
20
0.0
30
0.0
40
1.0
0
ENDSEC
0
EOF
`

func TestParse_ExtractsSupportedEntities(t *testing.T) {
	elements, err := Parse(strings.NewReader(sampleDXF))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if len(elements) != 3 {
		t.Fatalf("Expected 3 elements (ARC skipped), got %d", len(elements))
	}

	line := elements[0]
	if line.Kind != "LINE" || line.Layer != "Walls" {
		t.Errorf("Expected LINE on Walls, got %s on %s", line.Kind, line.Layer)
	}
	if got := line.Data["start"].(Point); got != (Point{0, 0, 0}) {
		t.Errorf("Expected start origin, got %v", got)
	}
	if got := line.Data["end"].(Point); got != (Point{3, 4, 0}) {
		t.Errorf("Expected end (3,4,0), got %v", got)
	}
	if got := line.Data["length"].(float64); math.Abs(got-5.0) > 1e-9 {
		t.Errorf("Expected length 5, got %v", got)
	}

	circle := elements[1]
	if circle.Kind != "CIRCLE" || circle.Layer != "Columns" {
		t.Errorf("Expected CIRCLE on Columns, got %s on %s", circle.Kind, circle.Layer)
	}
	if got := circle.Data["radius"].(float64); got != 2.5 {
		t.Errorf("Expected radius 2.5, got %v", got)
	}
	if got := circle.Data["center"].(Point); got != (Point{5, 5, 0}) {
		t.Errorf("Expected center (5,5,0), got %v", got)
	}

	text := elements[2]
	if text.Kind != "TEXT" || text.Layer != "Labels" {
		t.Errorf("Expected TEXT on Labels, got %s on %s", text.Kind, text.Layer)
	}
	if got := text.Data["text"].(string); got != "ROOM A-101" {
		t.Errorf("Expected text %q, got %q", "ROOM A-101", got)
	}
	if got := text.Data["height"].(float64); got != 0.35 {
		t.Errorf("Expected height 0.35, got %v", got)
	}
}

func TestParse_IgnoresOtherSections(t *testing.T) {
	dxf := `0
SECTION
2
BLOCKS
0
LINE
8
Hidden
10
1.0
20
1.0
30
0.0
11
2.0
21
2.0
31
0.0
0
ENDSEC
0
EOF
`
	elements, err := Parse(strings.NewReader(dxf))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(elements) != 0 {
		t.Errorf("Expected no elements outside ENTITIES, got %d", len(elements))
	}
}

func TestParse_EmptyEntitiesSection(t *testing.T) {
	dxf := `0
SECTION
2
ENTITIES
0
ENDSEC
0
EOF
`
	elements, err := Parse(strings.NewReader(dxf))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(elements) != 0 {
		t.Errorf("Expected no elements, got %d", len(elements))
	}
}

func TestParse_TruncatedPair(t *testing.T) {
	dxf := "0\nSECTION\n2\nENTITIES\n0\nLINE\n8\n"
	if _, err := Parse(strings.NewReader(dxf)); err == nil {
		t.Fatal("Expected error for truncated tag pair")
	}
}

func TestParse_MalformedGroupCode(t *testing.T) {
	dxf := "0\nSECTION\nnot-a-code\nENTITIES\n"
	if _, err := Parse(strings.NewReader(dxf)); err == nil {
		t.Fatal("Expected error for malformed group code")
	}
}

func TestParse_MalformedCoordinate(t *testing.T) {
	dxf := `0
SECTION
2
ENTITIES
0
CIRCLE
8
Columns
10
not-a-number
40
1.0
0
ENDSEC
0
EOF
`
	if _, err := Parse(strings.NewReader(dxf)); err == nil {
		t.Fatal("Expected error for malformed coordinate")
	}
}

func TestParse_CRLFInput(t *testing.T) {
	dxf := strings.ReplaceAll(sampleDXF, "\n", "\r\n")
	elements, err := Parse(strings.NewReader(dxf))
	if err != nil {
		t.Fatalf("Parse failed on CRLF input: %v", err)
	}
	if len(elements) != 3 {
		t.Errorf("Expected 3 elements, got %d", len(elements))
	}
}
