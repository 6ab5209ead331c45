package core

import (
	"reflect"

	"github.com/encodeous/geonet/state"
)

// Get returns the registered module of type T.
func Get[T state.Module](s *state.State) T {
	t := reflect.TypeFor[T]()
	return s.Modules[t.String()].(T)
}
