package main

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/ngsi-go/ngsi/pkg/contract"
)

const roomsSource = `package rooms

import "time"

type Base struct {
	ID   string ` + "`ngsi:\"id\"`" + `
	Type string ` + "`ngsi:\"type\"`" + `
	Name string ` + "`ngsi:\"name\"`" + `
}

type Room struct {
	Base
	Name        string    ` + "`ngsi:\"name,noencode\"`" + `
	Temperature float64   ` + "`ngsi:\"temperature,wiretype=Number\"`" + `
	TempUnit    string    ` + "`ngsi:\",metadata=temperature\"`" + `
	Created     time.Time ` + "`ngsi:\"dateCreated,readonly\"`" + `
	Floor       int       ` + "`json:\"floor\"`" + `
	Hidden      string    ` + "`json:\"-\"`" + `
	Scratch     string    ` + "`ngsi:\"-\"`" + `
	internal    string
}

type Sensor struct {
	SensorID string ` + "`json:\"id\"`" + `
	Kind     string ` + "`json:\"type\"`" + `
	A, B     int
}

type helper struct {
	Count int
}
`

func TestParseSourceDiscoversEntities(t *testing.T) {
	pkg, err := ParseSource("rooms.go", []byte(roomsSource), nil)
	if err != nil {
		t.Fatalf("ParseSource failed: %v", err)
	}
	if pkg.Name != "rooms" {
		t.Errorf("package = %q, want rooms", pkg.Name)
	}
	var names []string
	for _, e := range pkg.Entities {
		names = append(names, e.Name)
	}
	if want := []string{"Base", "Room", "Sensor"}; !reflect.DeepEqual(names, want) {
		t.Errorf("entities = %v, want %v", names, want)
	}
}

func TestParseSourceRoom(t *testing.T) {
	pkg, err := ParseSource("rooms.go", []byte(roomsSource), []string{"Room"})
	if err != nil {
		t.Fatalf("ParseSource failed: %v", err)
	}
	if len(pkg.Entities) != 1 {
		t.Fatalf("got %d entities, want 1", len(pkg.Entities))
	}
	room := pkg.Entities[0]
	if room.ID != "ID" || room.Type != "Type" {
		t.Errorf("identity = %q/%q, want ID/Type", room.ID, room.Type)
	}

	want := []Attribute{
		{Field: "Name", Name: "name", SkipEncode: true},
		{Field: "Temperature", Name: "temperature", WireType: "Number"},
		{Field: "Created", Name: "dateCreated", ReadOnly: true},
		{Field: "Floor", Name: "floor"},
	}
	if !reflect.DeepEqual(room.Attributes, want) {
		t.Errorf("attributes =\n%+v\nwant\n%+v", room.Attributes, want)
	}
	wantMeta := []MetadataField{{Field: "TempUnit", Attribute: "temperature"}}
	if !reflect.DeepEqual(room.Metadata, wantMeta) {
		t.Errorf("metadata = %+v, want %+v", room.Metadata, wantMeta)
	}
}

func TestParseSourceJSONNamesAndMultiNames(t *testing.T) {
	pkg, err := ParseSource("rooms.go", []byte(roomsSource), []string{"Sensor"})
	if err != nil {
		t.Fatalf("ParseSource failed: %v", err)
	}
	sensor := pkg.Entities[0]
	if sensor.ID != "SensorID" || sensor.Type != "Kind" {
		t.Errorf("identity = %q/%q, want SensorID/Kind", sensor.ID, sensor.Type)
	}
	want := []Attribute{{Field: "A", Name: "A"}, {Field: "B", Name: "B"}}
	if !reflect.DeepEqual(sensor.Attributes, want) {
		t.Errorf("attributes = %+v, want %+v", sensor.Attributes, want)
	}
}

func TestParseSourceErrors(t *testing.T) {
	tests := []struct {
		name   string
		src    string
		only   []string
		target error
	}{
		{
			name: "unknown type",
			src:  roomsSource,
			only: []string{"Kitchen"},
		},
		{
			name:   "missing identity",
			src:    roomsSource,
			only:   []string{"helper"},
			target: contract.ErrInvalidEntityType,
		},
		{
			name:   "ambiguous id",
			src:    "package p\ntype A struct {\n\tX string `ngsi:\"id\"`\n\tY string `ngsi:\"id\"`\n\tT string `ngsi:\"type\"`\n}\n",
			target: contract.ErrAmbiguousIdentity,
		},
		{
			name: "bad tag option",
			src:  "package p\ntype A struct {\n\tX string `ngsi:\"x,bogus\"`\n}\n",
		},
		{
			name: "foreign embedded struct",
			src:  "package p\nimport \"time\"\ntype A struct {\n\ttime.Time\n}\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSource("p.go", []byte(tt.src), tt.only)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.target != nil && !errors.Is(err, tt.target) {
				t.Errorf("error = %v, want %v", err, tt.target)
			}
		})
	}
}

func TestParseDirSkipsTestsAndOutput(t *testing.T) {
	dir := t.TempDir()
	write := func(name, src string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(src), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("rooms.go", roomsSource)
	write("rooms_test.go", "package rooms_test\n")
	write("ngsi_contracts_gen.go", "package rooms\nthis does not parse\n")

	pkg, err := ParseDir(dir, "ngsi_contracts_gen.go", []string{"Room"})
	if err != nil {
		t.Fatalf("ParseDir failed: %v", err)
	}
	if len(pkg.Entities) != 1 || pkg.Entities[0].Name != "Room" {
		t.Errorf("entities = %+v", pkg.Entities)
	}
}

func TestParseDirEmpty(t *testing.T) {
	if _, err := ParseDir(t.TempDir(), "out.go", nil); err == nil {
		t.Fatal("expected error for empty directory")
	}
}
