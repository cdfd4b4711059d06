package wire

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestDecodeSnapshotCanonical(t *testing.T) {
	data := []byte(`{"svg_primitive_arrays":[
		{"layer":"field","svg_primitives":["<circle r=\"1\"/>"]},
		{"layer":"robots/blue","svg_primitives":[{"id":2,"type":0,"params":[1,2,3],"color":"blue"}]}
	]}`)

	snap, issues, ok := DecodeSnapshot(data)
	if !ok {
		t.Fatal("DecodeSnapshot: not recognized")
	}
	if len(issues) != 0 {
		t.Errorf("unexpected issues: %v", issues)
	}
	if len(snap.Layers) != 2 {
		t.Fatalf("expected 2 layers, got %d", len(snap.Layers))
	}
	if snap.Layers[0].Layer != "field" || snap.Layers[0].Primitives[0].Kind != KindSVG {
		t.Errorf("layer 0 = %+v", snap.Layers[0])
	}
	p := snap.Layers[1].Primitives[0]
	if p.Kind != KindShape || p.Shape.Type != ShapeCircle || p.Shape.Color != "blue" {
		t.Errorf("layer 1 primitive = %+v", p)
	}
}

func TestDecodeSnapshotLegacyKey(t *testing.T) {
	data := []byte(`{"layers":[{"layer":"a","svg_primitives":["x"]}]}`)
	snap, _, ok := DecodeSnapshot(data)
	if !ok {
		t.Fatal("legacy layers key should be recognized")
	}
	if got := snap.LayerPaths(); len(got) != 1 || got[0] != "a" {
		t.Errorf("LayerPaths() = %v", got)
	}
}

func TestDecodeSnapshotUnrecognized(t *testing.T) {
	for _, in := range []string{`[]`, `"x"`, `{}`, `{"layers":5}`, `not json`, ``} {
		if _, _, ok := DecodeSnapshot([]byte(in)); ok {
			t.Errorf("DecodeSnapshot(%q) should not be recognized", in)
		}
	}
}

func TestDecodeSnapshotSkipsMalformedEntries(t *testing.T) {
	data := []byte(`{"svg_primitive_arrays":[
		{"layer":"ok","svg_primitives":["a", 7, "b"]},
		{"svg_primitives":["x"]},
		{"layer":12,"svg_primitives":["x"]},
		{"layer":"bad","svg_primitives":"x"},
		"junk",
		{"layer":"ok","svg_primitives":["dup"]}
	]}`)

	snap, issues, ok := DecodeSnapshot(data)
	if !ok {
		t.Fatal("DecodeSnapshot: not recognized")
	}
	if len(snap.Layers) != 1 {
		t.Fatalf("expected 1 surviving layer, got %d: %+v", len(snap.Layers), snap.Layers)
	}
	if n := len(snap.Layers[0].Primitives); n != 2 {
		t.Errorf("expected bad primitive dropped (2 left), got %d", n)
	}
	// bad primitive, missing layer, non-string layer, non-array prims, junk, duplicate
	if len(issues) != 6 {
		t.Errorf("expected 6 issues, got %d: %v", len(issues), issues)
	}
}

func TestDecodeUpdateBatch(t *testing.T) {
	data := []byte(`{"updates":[
		{"layer":"field","operation":"append","svg_primitives":["b"],"duration":1.5},
		{"layer":"field","operation":"clear"},
		{"layer":"field","operation":"explode","svg_primitives":[]},
		{"layer":"field","svg_primitives":[]},
		{"layer":"other","operation":"replace","svg_primitives":{}}
	]}`)

	batch, issues, ok := DecodeUpdateBatch(data)
	if !ok {
		t.Fatal("DecodeUpdateBatch: not recognized")
	}
	if len(batch.Updates) != 2 {
		t.Fatalf("expected 2 valid updates, got %d", len(batch.Updates))
	}
	u := batch.Updates[0]
	if u.Op != OpAppend || u.Duration == nil || *u.Duration != 1.5 {
		t.Errorf("update 0 = %+v", u)
	}
	if batch.Updates[1].Op != OpClear || batch.Updates[1].Primitives != nil {
		t.Errorf("update 1 = %+v", batch.Updates[1])
	}
	if len(issues) != 3 {
		t.Errorf("expected 3 issues, got %d: %v", len(issues), issues)
	}
	for _, is := range issues {
		if is.Layer == "" {
			t.Errorf("issue should name its layer: %v", is)
		}
	}
}

func TestDecodeUpdateBatchLegacySnapshotShape(t *testing.T) {
	data := []byte(`{"svg_primitive_arrays":[{"layer":"a","svg_primitives":["x"]},{"layer":"b","svg_primitives":[]}]}`)
	batch, _, ok := DecodeUpdateBatch(data)
	if !ok {
		t.Fatal("legacy update should be recognized")
	}
	if len(batch.Updates) != 2 {
		t.Fatalf("expected 2 synthetic updates, got %d", len(batch.Updates))
	}
	for _, u := range batch.Updates {
		if u.Op != OpReplace {
			t.Errorf("legacy update %q has op %v, want replace", u.Layer, u.Op)
		}
	}
}

func TestParseOperation(t *testing.T) {
	tests := []struct {
		in   string
		want Operation
		err  bool
	}{
		{"append", OpAppend, false},
		{"Replace", OpReplace, false},
		{" clear ", OpClear, false},
		{"delete", OpInvalid, true},
		{"", OpInvalid, true},
	}
	for _, tt := range tests {
		got, err := ParseOperation(tt.in)
		if (err != nil) != tt.err || got != tt.want {
			t.Errorf("ParseOperation(%q) = %v, %v", tt.in, got, err)
		}
	}
}

func TestPayloadJSON(t *testing.T) {
	in := []Payload{
		SVGPayload("rect-1"),
		ShapePayload(Shape{ID: 1, Type: ShapeText, Params: []float64{1, 2}, Color: "red", Text: "hi"}),
	}
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.HasPrefix(string(data), `["rect-1",{`) {
		t.Errorf("unexpected encoding %s", data)
	}
	var out []Payload
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	for i := range in {
		if !in[i].Equal(out[i]) {
			t.Errorf("payload %d: got %v, want %v", i, out[i], in[i])
		}
	}
	var bad Payload
	if err := json.Unmarshal([]byte(`12`), &bad); err == nil {
		t.Error("numeric payload should fail to decode")
	}
}

func TestTimeMillis(t *testing.T) {
	tm := Time{Sec: 12, Nsec: 345_678_901}
	if got := tm.Millis(); got != 12345 {
		t.Errorf("Millis() = %d, want 12345", got)
	}
	if got := TimeFromMillis(12345).Millis(); got != 12345 {
		t.Errorf("TimeFromMillis round trip = %d", got)
	}
}

func TestDecodeReferee(t *testing.T) {
	data := []byte(`{"stage":{"value":1},"command":{"value":2},"stage_time_left":-1500000,
		"yellow":{"name":"Y","score":2,"yellow_cards":1,"timeouts":4},
		"blue":{"name":"B","score":1,"red_cards":1}}`)
	msg, ok := DecodeReferee(data)
	if !ok {
		t.Fatal("DecodeReferee: not recognized")
	}
	if msg.Stage != 1 || msg.Command != 2 || msg.StageTimeLeft != -1500000 {
		t.Errorf("msg = %+v", msg)
	}
	if msg.Yellow.Name != "Y" || msg.Yellow.Score != 2 || msg.Blue.RedCards != 1 {
		t.Errorf("teams = %+v / %+v", msg.Yellow, msg.Blue)
	}
	if _, ok := DecodeReferee([]byte(`{"foo":1}`)); ok {
		t.Error("message without stage/command should not be recognized")
	}
}
