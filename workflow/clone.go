package workflow

import (
	"fmt"
	"reflect"

	"github.com/mohae/deepcopy"
)

// Clone returns a structural deep copy of w. The copy shares no maps, slices
// or pointers with w.
func Clone(w Workflow) Workflow {
	cp, ok := deepcopy.Copy(w).(Workflow)
	if !ok {
		return Workflow{}
	}
	return cp
}

// CloneSnapshot deep-copies a snapshot.
func CloneSnapshot(s Snapshot) Snapshot {
	return Snapshot{
		Timestamp:   s.Timestamp,
		Workflow:    Clone(s.Workflow),
		Description: s.Description,
	}
}

// Equal reports structural equality.
func Equal(a, b Workflow) bool {
	return reflect.DeepEqual(a, b)
}

// CheckPlainData verifies every free-form payload in w holds only JSON-shaped
// values, so that a structural copy fully isolates it.
func CheckPlainData(w Workflow) error {
	if w.Configuration != nil {
		for stateID, st := range w.Configuration.States {
			for idx, tr := range st.Transitions {
				if err := checkPlain(tr.Criterion); err != nil {
					return notPlainData(fmt.Sprintf("states.%s.transitions[%d].criterion", stateID, idx), err)
				}
				for pIdx, proc := range tr.Processors {
					if err := checkPlain(proc); err != nil {
						return notPlainData(fmt.Sprintf("states.%s.transitions[%d].processors[%d]", stateID, idx, pIdx), err)
					}
				}
			}
		}
	}
	if w.Layout != nil {
		for idx, st := range w.Layout.States {
			if err := checkPlain(st.Properties); err != nil {
				return notPlainData(fmt.Sprintf("layout.states[%d].properties", idx), err)
			}
		}
	}
	return nil
}

func checkPlain(value any) error {
	return checkPlainValue(reflect.ValueOf(value), 0)
}

const maxPlainDepth = 64

func checkPlainValue(v reflect.Value, depth int) error {
	if !v.IsValid() {
		return nil
	}
	if depth > maxPlainDepth {
		return fmt.Errorf("nesting deeper than %d levels", maxPlainDepth)
	}
	switch v.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return nil
	case reflect.Interface, reflect.Pointer:
		if v.IsNil() {
			return nil
		}
		return checkPlainValue(v.Elem(), depth+1)
	case reflect.Slice, reflect.Array:
		if v.Kind() == reflect.Slice && v.IsNil() {
			return nil
		}
		for i := 0; i < v.Len(); i++ {
			if err := checkPlainValue(v.Index(i), depth+1); err != nil {
				return err
			}
		}
		return nil
	case reflect.Map:
		if v.IsNil() {
			return nil
		}
		if v.Type().Key().Kind() != reflect.String {
			return fmt.Errorf("map key type %s is not a string", v.Type().Key())
		}
		iter := v.MapRange()
		for iter.Next() {
			if err := checkPlainValue(iter.Value(), depth+1); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("value of kind %s is not plain data", v.Kind())
	}
}
