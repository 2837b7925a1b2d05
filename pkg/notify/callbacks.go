package notify

import (
	"fmt"
	"log/slog"
	"reflect"

	"github.com/ngsi-go/ngsi/pkg/model"
	"github.com/ngsi-go/ngsi/pkg/subscription"
)

// Entity adapts a typed whole-object callback. T may be the entity struct,
// a pointer to it, or an interface it implements. Deltas that do not convert
// to T are skipped and logged at debug level on slog.Default().
func Entity[T any](fn func(id string, e T)) subscription.Callback {
	want := fmt.Sprint(reflect.TypeFor[T]())
	return func(id string, payload any) {
		v, ok := As[T](payload)
		if !ok {
			slog.Default().Debug("skipping delta that does not convert to callback type",
				"component", "notify", "entity_id", id,
				"payload_type", fmt.Sprint(reflect.TypeOf(payload)), "want", want)
			return
		}
		fn(id, v)
	}
}

// Changes adapts a callback that receives the changed attributes.
func Changes(fn func(id string, changed map[string]any)) subscription.Callback {
	return func(id string, payload any) {
		if m, ok := payload.(map[string]any); ok {
			fn(id, m)
		}
	}
}

// Dynamic adapts a whole-object callback for schema-less subscriptions.
func Dynamic(fn func(id string, e *model.DynamicEntity)) subscription.Callback {
	return Entity(fn)
}

// As converts a delivered object to T, dereferencing a pointer when T is a
// value type.
func As[T any](payload any) (T, bool) {
	if v, ok := payload.(T); ok {
		return v, true
	}
	var zero T
	rv := reflect.ValueOf(payload)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return zero, false
	}
	v, ok := rv.Elem().Interface().(T)
	return v, ok
}
