package main

import (
	"go/format"
	"strings"
	"testing"
)

func mustContain(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Errorf("output does not contain %q\n--- output ---\n%s", substr, output)
	}
}

func mustNotContain(t *testing.T, output, substr string) {
	t.Helper()
	if strings.Contains(output, substr) {
		t.Errorf("output unexpectedly contains %q", substr)
	}
}

func TestGenerateRoom(t *testing.T) {
	pkg, err := ParseSource("rooms.go", []byte(roomsSource), []string{"Room"})
	if err != nil {
		t.Fatalf("ParseSource failed: %v", err)
	}
	output, err := Generate(pkg, "RegisterContracts")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	mustContain(t, output, "// Code generated by ngsi-contractgen. DO NOT EDIT.")
	mustContain(t, output, "package rooms")
	mustContain(t, output, "func RegisterContracts(s *contract.Store) error {")
	mustContain(t, output, "s.Register(reflect.TypeOf(Room{}), contract.Descriptor{")
	mustContain(t, output, `ID:   "ID",`)
	mustContain(t, output, `Type: "Type",`)
	mustContain(t, output, `{Field: "Name", Name: "name", SkipEncode: true},`)
	mustContain(t, output, `{Field: "Temperature", Name: "temperature", WireType: "Number"},`)
	mustContain(t, output, `{Field: "Created", Name: "dateCreated", ReadOnly: true},`)
	mustContain(t, output, `{Field: "TempUnit", Attribute: "temperature"},`)
	mustNotContain(t, output, "Hidden")
	mustNotContain(t, output, "Scratch")

	if _, err := format.Source([]byte(output)); err != nil {
		t.Errorf("generated code does not parse: %v\n%s", err, output)
	}
}

func TestGenerateAllEntities(t *testing.T) {
	pkg, err := ParseSource("rooms.go", []byte(roomsSource), nil)
	if err != nil {
		t.Fatalf("ParseSource failed: %v", err)
	}
	output, err := Generate(pkg, "registerRooms")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	mustContain(t, output, "// registerRooms installs the contracts of Base, Room, Sensor into s.")
	mustContain(t, output, "reflect.TypeOf(Base{})")
	mustContain(t, output, "reflect.TypeOf(Sensor{})")
	if got := strings.Count(output, "s.Register("); got != 3 {
		t.Errorf("Register calls = %d, want 3", got)
	}
	if _, err := format.Source([]byte(output)); err != nil {
		t.Errorf("generated code does not parse: %v", err)
	}
}

func TestGenerateNoEntities(t *testing.T) {
	if _, err := Generate(&Package{Name: "empty"}, "RegisterContracts"); err == nil {
		t.Fatal("expected error for package without entities")
	}
}
