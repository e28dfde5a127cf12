package senso4s

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Model denotes the Senso4s hardware variant, derived from the first
// advertisement byte
type Model string

const (
	ModelBasic       Model = "basic"
	ModelPlus        Model = "plus"
	ModelUnsupported Model = "unsupported"
)

// Status denotes the measurement status reported via the overloaded
// mass / status byte
type Status string

const (
	StatusOK            Status = "ok"
	StatusBatteryEmpty  Status = "battery_empty"
	StatusErrorStarting Status = "error_starting"
	StatusNotConfigured Status = "not_configured"
)

// Field denotes a sensor field key on a Snapshot
type Field string

const (
	FieldRSSI               Field = "rssi"
	FieldBattery            Field = "battery"
	FieldStatus             Field = "status"
	FieldMassPercent        Field = "mass_percent"
	FieldMassKg             Field = "mass_kg"
	FieldPrediction         Field = "prediction_minutes"
	FieldCylinderWeight     Field = "cylinder_weight_kg"
	FieldCylinderCapacity   Field = "cylinder_capacity_kg"
	FieldSetupTime          Field = "setup_time"
	FieldLastMeasurement    Field = "last_measurement"
	FieldWarningMovement    Field = "warning_movement"
	FieldWarningInclination Field = "warning_inclination"
	FieldWarningTemperature Field = "warning_temperature"
)

// Kind denotes the dynamic type of a sensor Value
type Kind int

const (

	// KindNull marks a field that was read but carries no usable value
	KindNull Kind = iota

	// KindInt marks an integer value (percentages, RSSI, minutes)
	KindInt

	// KindFloat marks a floating point value (kilograms)
	KindFloat

	// KindBool marks a boolean value (warning flags)
	KindBool

	// KindTime marks a timestamp value
	KindTime

	// KindString marks an enumerated string value (status)
	KindString
)

// Value is a tagged variant holding one sensor reading. The zero value is
// the explicit null ("read, but unset"), as opposed to the field key being
// absent from the snapshot altogether ("never read")
type Value struct {
	kind Kind
	i    int64
	f    float64
	b    bool
	t    time.Time
	s    string
}

// NullValue returns the explicit null value
func NullValue() Value { return Value{} }

// IntValue wraps an integer reading
func IntValue(v int64) Value { return Value{kind: KindInt, i: v} }

// FloatValue wraps a floating point reading
func FloatValue(v float64) Value { return Value{kind: KindFloat, f: v} }

// BoolValue wraps a boolean reading
func BoolValue(v bool) Value { return Value{kind: KindBool, b: v} }

// TimeValue wraps a timestamp reading
func TimeValue(v time.Time) Value { return Value{kind: KindTime, t: v} }

// StringValue wraps an enumerated string reading
func StringValue(v string) Value { return Value{kind: KindString, s: v} }

// Kind returns the dynamic type tag of the value
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether the value is the explicit null
func (v Value) IsNull() bool { return v.kind == KindNull }

// Int returns the integer reading, if any
func (v Value) Int() (int64, bool) { return v.i, v.kind == KindInt }

// Float returns the floating point reading, if any
func (v Value) Float() (float64, bool) { return v.f, v.kind == KindFloat }

// Bool returns the boolean reading, if any
func (v Value) Bool() (bool, bool) { return v.b, v.kind == KindBool }

// Time returns the timestamp reading, if any
func (v Value) Time() (time.Time, bool) { return v.t, v.kind == KindTime }

// Str returns the enumerated string reading, if any
func (v Value) Str() (string, bool) { return v.s, v.kind == KindString }

// String fulfils the Stringer interface
func (v Value) String() string {
	switch v.kind {
	case KindInt:
		return fmt.Sprintf("%d", v.i)
	case KindFloat:
		return fmt.Sprintf("%.2f", v.f)
	case KindBool:
		return fmt.Sprintf("%t", v.b)
	case KindTime:
		return v.t.Format(time.RFC3339)
	case KindString:
		return v.s
	default:
		return "null"
	}
}

// MarshalJSON fulfils the json.Marshaler interface
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindInt:
		return json.Marshal(v.i)
	case KindFloat:
		return json.Marshal(v.f)
	case KindBool:
		return json.Marshal(v.b)
	case KindTime:
		return json.Marshal(v.t)
	case KindString:
		return json.Marshal(v.s)
	default:
		return []byte("null"), nil
	}
}

// Snapshot accumulates the result of one acquisition cycle (advertisement
// only or full read). A fresh Snapshot is created per cycle and owned
// exclusively by the caller receiving it
type Snapshot struct {
	Address    string
	Identifier string

	Model        Model
	ModelNumber  string
	Manufacturer string
	HWVersion    string
	SWVersion    string
	Name         string

	// Error carries the acquisition-fatal cause, if any. Sensor fields
	// gathered before the fault are retained
	Error string

	mu      sync.Mutex
	sensors map[Field]Value
}

func newSnapshot(address, name string) *Snapshot {
	return &Snapshot{
		Address:      address,
		Identifier:   strings.ToLower(strings.ReplaceAll(address, ":", "")),
		Manufacturer: defaultManufacturer,
		Name:         name,
		sensors:      make(map[Field]Value),
	}
}

func (s *Snapshot) set(f Field, v Value) {
	s.mu.Lock()
	s.sensors[f] = v
	s.mu.Unlock()
}

// Value returns the reading for a field key and whether the key is present
// at all. An absent key means the field was never acquired, a present null
// means it was acquired but carries no usable value
func (s *Snapshot) Value(f Field) (Value, bool) {
	s.mu.Lock()
	v, ok := s.sensors[f]
	s.mu.Unlock()
	return v, ok
}

// Fields returns the sorted list of sensor field keys present on the snapshot
func (s *Snapshot) Fields() []Field {
	s.mu.Lock()
	fields := make([]Field, 0, len(s.sensors))
	for f := range s.sensors {
		fields = append(fields, f)
	}
	s.mu.Unlock()

	sort.Slice(fields, func(i, j int) bool { return fields[i] < fields[j] })
	return fields
}

// Failed reports whether the acquisition producing this snapshot failed.
// A failed snapshot may still carry partial sensor data
func (s *Snapshot) Failed() bool {
	return s.Error != ""
}

// FriendlyName generates a display name for the device
func (s *Snapshot) FriendlyName() string {
	return fmt.Sprintf("%s %s (%s)", s.Manufacturer, s.Model, s.Address)
}

// MarshalJSON fulfils the json.Marshaler interface
func (s *Snapshot) MarshalJSON() ([]byte, error) {
	s.mu.Lock()
	sensors := make(map[Field]Value, len(s.sensors))
	for f, v := range s.sensors {
		sensors[f] = v
	}
	s.mu.Unlock()

	return json.Marshal(struct {
		Address      string          `json:"address"`
		Identifier   string          `json:"identifier"`
		Model        Model           `json:"model,omitempty"`
		ModelNumber  string          `json:"model_number,omitempty"`
		Manufacturer string          `json:"manufacturer"`
		HWVersion    string          `json:"hw_version,omitempty"`
		SWVersion    string          `json:"sw_version,omitempty"`
		Name         string          `json:"name,omitempty"`
		Error        string          `json:"error,omitempty"`
		Sensors      map[Field]Value `json:"sensors"`
	}{
		Address:      s.Address,
		Identifier:   s.Identifier,
		Model:        s.Model,
		ModelNumber:  s.ModelNumber,
		Manufacturer: s.Manufacturer,
		HWVersion:    s.HWVersion,
		SWVersion:    s.SWVersion,
		Name:         s.Name,
		Error:        s.Error,
		Sensors:      sensors,
	})
}
