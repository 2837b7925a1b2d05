package resolver

import (
	"errors"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
)

type Device interface{ DeviceID() string }

type Sensor struct{ ID string }

func (s *Sensor) DeviceID() string { return s.ID }

type Actuator struct{ ID string }

func (a *Actuator) DeviceID() string { return a.ID }

type selfResolving struct{ ID string }

func (selfResolving) EntityResolver() TypeResolver {
	return Func{Fn: func(string, string) (reflect.Type, error) {
		return reflect.TypeOf(Actuator{}), nil
	}}
}

var deviceType = reflect.TypeOf((*Device)(nil)).Elem()

func TestResolveFallsBackToRequested(t *testing.T) {
	reg := NewRegistry()
	got := reg.Resolve(reflect.TypeOf(Sensor{}), "s1", "Sensor")
	if got != reflect.TypeOf(Sensor{}) {
		t.Errorf("Resolve() = %v, want Sensor", got)
	}
	if reg.Resolve(nil, "", "") != nil {
		t.Error("Resolve(nil) should return nil")
	}
}

func TestResolveByTypeName(t *testing.T) {
	byName := NewByTypeName()
	if err := byName.Add("Sensor", reflect.TypeOf(&Sensor{})); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := byName.Add("Actuator", reflect.TypeOf(Actuator{})); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := byName.Add("Sensor", reflect.TypeOf(Sensor{})); !errors.Is(err, ErrDuplicateKey) {
		t.Errorf("duplicate Add err = %v, want ErrDuplicateKey", err)
	}

	reg := NewRegistry()
	if err := reg.Register(byName); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	tests := []struct {
		entityType string
		want       reflect.Type
	}{
		{"Sensor", reflect.TypeOf(Sensor{})},
		{"Actuator", reflect.TypeOf(Actuator{})},
		{"Unknown", deviceType},
	}
	for _, tt := range tests {
		if got := reg.Resolve(deviceType, "x", tt.entityType); got != tt.want {
			t.Errorf("Resolve(%q) = %v, want %v", tt.entityType, got, tt.want)
		}
	}
}

func TestByTypeNameCanResolve(t *testing.T) {
	byName := NewByTypeName()
	_ = byName.Add("Sensor", reflect.TypeOf(Sensor{}))

	if !byName.CanResolve(deviceType) {
		t.Error("CanResolve(Device) = false, want true")
	}
	if !byName.CanResolve(reflect.TypeOf(&Sensor{})) {
		t.Error("CanResolve(*Sensor) = false, want true")
	}
	if byName.CanResolve(reflect.TypeOf(Actuator{})) {
		t.Error("CanResolve(Actuator) = true, want false")
	}
}

func TestResolvePriority(t *testing.T) {
	sensor := Func{Fn: func(string, string) (reflect.Type, error) { return reflect.TypeOf(Sensor{}), nil }}
	actuator := Func{Fn: func(string, string) (reflect.Type, error) { return reflect.TypeOf(Actuator{}), nil }}
	failing := Func{Fn: func(string, string) (reflect.Type, error) { return nil, errors.New("boom") }}

	reg := NewRegistry()
	_ = reg.Register(failing)
	_ = reg.Register(sensor)
	_ = reg.Register(actuator)

	if got := reg.Resolve(deviceType, "x", "T"); got != reflect.TypeOf(Sensor{}) {
		t.Errorf("global order: Resolve() = %v, want Sensor", got)
	}

	reg = NewRegistry()
	_ = reg.Register(sensor)
	if err := reg.Attach(deviceType, actuator); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	if got := reg.Resolve(deviceType, "x", "T"); got != reflect.TypeOf(Actuator{}) {
		t.Errorf("attached first: Resolve() = %v, want Actuator", got)
	}
	if err := reg.Attach(deviceType, sensor); !errors.Is(err, ErrAttached) {
		t.Errorf("second Attach err = %v, want ErrAttached", err)
	}
}

func TestResolveDeclaredProvider(t *testing.T) {
	reg := NewRegistry()
	_ = reg.Register(Func{Fn: func(string, string) (reflect.Type, error) { return reflect.TypeOf(Sensor{}), nil }})

	if got := reg.Resolve(reflect.TypeOf(selfResolving{}), "x", "T"); got != reflect.TypeOf(Actuator{}) {
		t.Errorf("Resolve() = %v, want Actuator from Provider", got)
	}
	if got := reg.Resolve(reflect.TypeOf(&selfResolving{}), "x", "T"); got != reflect.TypeOf(Actuator{}) {
		t.Errorf("Resolve(pointer) = %v, want Actuator from Provider", got)
	}
}

func TestResolveSkipsIncapable(t *testing.T) {
	reg := NewRegistry()
	_ = reg.Register(Func{
		Can: func(reflect.Type) bool { return false },
		Fn:  func(string, string) (reflect.Type, error) { return reflect.TypeOf(Sensor{}), nil },
	})
	if got := reg.Resolve(deviceType, "x", "T"); got != deviceType {
		t.Errorf("Resolve() = %v, want requested type", got)
	}
}

func TestResolveCachesResolver(t *testing.T) {
	var canCalls atomic.Int32
	reg := NewRegistry()
	_ = reg.Register(Func{
		Can: func(reflect.Type) bool { canCalls.Add(1); return true },
		Fn:  func(string, string) (reflect.Type, error) { return reflect.TypeOf(Sensor{}), nil },
	})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if got := reg.Resolve(deviceType, "x", "T"); got != reflect.TypeOf(Sensor{}) {
				t.Errorf("Resolve() = %v, want Sensor", got)
			}
		}()
	}
	wg.Wait()

	before := canCalls.Load()
	reg.Resolve(deviceType, "y", "T")
	if canCalls.Load() != before {
		t.Error("cached resolver should be used without re-checking CanResolve")
	}
}

func TestRegisterRejectsNil(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register(nil); !errors.Is(err, ErrNilResolver) {
		t.Errorf("Register(nil) err = %v, want ErrNilResolver", err)
	}
	if err := reg.Attach(nil, NewByTypeName()); !errors.Is(err, ErrNilType) {
		t.Errorf("Attach(nil type) err = %v, want ErrNilType", err)
	}
	if reg.Len() != 0 {
		t.Errorf("Len() = %d, want 0", reg.Len())
	}
}
