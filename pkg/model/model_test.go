package model

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/ngsi-go/ngsi/pkg/value"
)

func TestMetadataCaseInsensitive(t *testing.T) {
	var md Metadata
	md.Set("Accuracy", MetadataItem{Value: value.Of(0.1), Type: "Number"})

	item, ok := md.Get("accuracy")
	if !ok {
		t.Fatal("Get(accuracy) not found")
	}
	if item.Type != "Number" {
		t.Errorf("Type = %q, want %q", item.Type, "Number")
	}

	md.Set("ACCURACY", MetadataItem{Value: value.Of(0.2), Type: "Number"})
	if md.Len() != 1 {
		t.Errorf("Len() = %d, want 1", md.Len())
	}
	if names := md.Names(); names[0] != "Accuracy" {
		t.Errorf("Names()[0] = %q, want original spelling %q", names[0], "Accuracy")
	}
}

func TestMetadataOrderPreserved(t *testing.T) {
	data := []byte(`{"zeta":{"value":1,"type":"Number"},"alpha":{"value":"x","type":"Text"},"mid":{"value":true,"type":"Boolean"}}`)

	var md Metadata
	if err := json.Unmarshal(data, &md); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	want := []string{"zeta", "alpha", "mid"}
	got := md.Names()
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Names() = %v, want %v", got, want)
		}
	}

	out, err := json.Marshal(md)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(out) != string(data) {
		t.Errorf("Marshal = %s, want %s", out, data)
	}
}

func TestMetadataDelete(t *testing.T) {
	md := NewMetadata()
	md.Set("a", MetadataItem{Value: value.Of(1), Type: "Number"})
	md.Set("b", MetadataItem{Value: value.Of(2), Type: "Number"})
	clone := md.Clone()

	md.Delete("A")

	if md.Len() != 1 {
		t.Errorf("Len() = %d, want 1", md.Len())
	}
	if _, ok := md.Get("a"); ok {
		t.Error("a should be deleted")
	}
	if clone.Len() != 2 {
		t.Errorf("clone Len() = %d, want 2 (clone must be independent)", clone.Len())
	}
}

func TestMetadataNull(t *testing.T) {
	var md Metadata
	if err := json.Unmarshal([]byte("null"), &md); err != nil {
		t.Fatalf("Unmarshal(null) failed: %v", err)
	}
	if md.Len() != 0 {
		t.Errorf("Len() = %d, want 0", md.Len())
	}
}

func TestAttributeDataJSON(t *testing.T) {
	attr := NewTypedAttribute(21.5, "Number").WithMetadata("unit", "CEL", "Text")

	data, err := json.Marshal(attr)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	want := `{"value":21.5,"type":"Number","metadata":{"unit":{"value":"CEL","type":"Text"}}}`
	if string(data) != want {
		t.Errorf("Marshal = %s, want %s", data, want)
	}

	var back AttributeData
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	f, err := value.As[float64](back.Value)
	if err != nil || f != 21.5 {
		t.Errorf("Value = %v (%v), want 21.5", f, err)
	}
	unit, ok := back.Metadata.Get("UNIT")
	if !ok || unit.Value.Interface() != "CEL" {
		t.Errorf("metadata unit = %v, %v", unit, ok)
	}
}

func TestAttributeDataOmitsEmptyMetadata(t *testing.T) {
	data, err := json.Marshal(NewAttribute("on"))
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(data) != `{"value":"on"}` {
		t.Errorf("Marshal = %s", data)
	}
}

func TestDynamicEntity(t *testing.T) {
	e := NewDynamicEntity("urn:1", "Room")
	e.SetValue("temperature", 21)
	e.Set("name", NewTypedAttribute("kitchen", "Text"))

	if names := e.AttributeNames(); len(names) != 2 || names[0] != "name" {
		t.Errorf("AttributeNames() = %v", names)
	}
	if attr, ok := e.Get("temperature"); !ok || attr.Type != "" {
		t.Errorf("temperature = %+v, %v", attr, ok)
	}
}

func TestGeoPoint(t *testing.T) {
	p, err := ParseGeoPoint("41.37, 2.18")
	if err != nil {
		t.Fatalf("ParseGeoPoint failed: %v", err)
	}
	if p.Lat != 41.37 || p.Lon != 2.18 {
		t.Errorf("p = %+v", p)
	}

	data, _ := json.Marshal(p)
	if string(data) != `"41.37, 2.18"` {
		t.Errorf("Marshal = %s", data)
	}

	for _, bad := range []string{"1", "x, 2", "91, 0", "0, 181"} {
		if _, err := ParseGeoPoint(bad); !errors.Is(err, ErrInvalidGeo) {
			t.Errorf("ParseGeoPoint(%q) err = %v, want ErrInvalidGeo", bad, err)
		}
	}
}

func TestGeoShapes(t *testing.T) {
	var line GeoLine
	if err := json.Unmarshal([]byte(`["0, 0", "1, 1"]`), &line); err != nil {
		t.Fatalf("GeoLine unmarshal failed: %v", err)
	}
	if len(line) != 2 {
		t.Errorf("len(line) = %d, want 2", len(line))
	}

	var poly GeoPolygon
	err := json.Unmarshal([]byte(`["0, 0", "1, 0", "1, 1", "0, 1"]`), &poly)
	if !errors.Is(err, ErrInvalidGeo) {
		t.Errorf("open polygon err = %v, want ErrInvalidGeo", err)
	}

	box := GeoBox{LowerLeft: GeoPoint{0, 0}, UpperRight: GeoPoint{1, 1}}
	data, _ := json.Marshal(box)
	var back GeoBox
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("GeoBox unmarshal failed: %v", err)
	}
	if back != box {
		t.Errorf("box = %+v, want %+v", back, box)
	}
}
