// Package gauge declares the Gauge pattern, a bounded numeric value
// such as a slider or progress meter.
package gauge

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"sync"

	"github.com/danderson/uia"
)

//go:generate go run github.com/danderson/uia/cmd/uia generate --pkg gauge --pkg-path github.com/danderson/uia/patterns/gauge --out client_gen.go Gauge

var (
	ID        = uia.MustParseGUID("{7e3c91a0-52d4-4b6f-a8e1-0f9d2c3b4a50}")
	ValueID   = uia.MustParseGUID("{7e3c91a0-52d4-4b6f-a8e1-0f9d2c3b4a51}")
	LabelID   = uia.MustParseGUID("{7e3c91a0-52d4-4b6f-a8e1-0f9d2c3b4a52}")
	EnabledID = uia.MustParseGUID("{7e3c91a0-52d4-4b6f-a8e1-0f9d2c3b4a53}")
	StepID    = uia.MustParseGUID("{7e3c91a0-52d4-4b6f-a8e1-0f9d2c3b4a54}")
	OwnerID   = uia.MustParseGUID("{7e3c91a0-52d4-4b6f-a8e1-0f9d2c3b4a55}")
	UnitID    = uia.MustParseGUID("{7e3c91a0-52d4-4b6f-a8e1-0f9d2c3b4a56}")
)

// Unit is the unit a gauge measures in, such as "%" or "dB".
type Unit string

// Provider is implemented by gauge controls.
type Provider interface {
	Value() float64
	Label() string
	Enabled() bool
	Step() int32
	// Owner is the element that displays the gauge.
	Owner() uia.Element
	Unit() (Unit, error)
	// Clamp returns value limited to the gauge's range, and whether
	// it had to be changed.
	Clamp(value float64) (float64, bool)
	SetValue(value float64) error
}

// Consumer is the client side of the pattern.
type Consumer interface {
	CurrentValue() (float64, error)
	CachedValue() (float64, error)
	CurrentLabel() (string, error)
	CachedLabel() (string, error)
	CurrentEnabled() (bool, error)
	CachedEnabled() (bool, error)
	CurrentStep() (int32, error)
	CachedStep() (int32, error)
	CurrentOwner() (uia.Element, error)
	CachedOwner() (uia.Element, error)
	CurrentUnit() (Unit, error)
	CachedUnit() (Unit, error)
	Clamp(value float64) (float64, bool, error)
	SetValue(value float64) error
}

// Pattern is the declaration of the Gauge pattern. Unit is a
// standalone property.
var Pattern = uia.Pattern{
	ID:       ID,
	Name:     "Gauge",
	Provider: reflect.TypeFor[Provider](),
	Consumer: reflect.TypeFor[Consumer](),
	Properties: []uia.PropertyDecl{
		uia.Property("Value", ValueID),
		uia.Property("Label", LabelID),
		uia.Property("Enabled", EnabledID),
		uia.Property("Step", StepID),
		uia.Property("Owner", OwnerID),
		uia.StandaloneProperty("Unit", UnitID),
	},
	Methods: []uia.MethodDecl{
		uia.Method("Clamp", uia.In("value"), uia.Out("changed"), uia.Return()),
		uia.Method("SetValue", uia.In("value")),
	},
}

var (
	_ Provider = (*Meter)(nil)
	_ Consumer = Client{}
)

// MeterConfig is the fixed configuration of a [Meter].
type MeterConfig struct {
	Min, Max float64
	Label    string
	Step     int32
	Owner    uia.Element
	Unit     Unit
}

// Meter is an in-memory Provider.
type Meter struct {
	cfg MeterConfig

	mu       sync.Mutex
	value    float64
	disabled bool
}

// NewMeter returns a Meter with the given configuration, whose value
// starts at cfg.Min.
func NewMeter(cfg MeterConfig) (*Meter, error) {
	if math.IsNaN(cfg.Min) || math.IsNaN(cfg.Max) || cfg.Min > cfg.Max {
		return nil, fmt.Errorf("invalid gauge range [%v, %v]", cfg.Min, cfg.Max)
	}
	return &Meter{cfg: cfg, value: cfg.Min}, nil
}

func (m *Meter) Value() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.value
}

func (m *Meter) Label() string      { return m.cfg.Label }
func (m *Meter) Step() int32        { return m.cfg.Step }
func (m *Meter) Owner() uia.Element { return m.cfg.Owner }

func (m *Meter) Enabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.disabled
}

// SetEnabled enables or disables the meter. A disabled meter rejects
// SetValue.
func (m *Meter) SetEnabled(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disabled = !enabled
}

// Unit returns the meter's unit, or [ErrNoUnit] if it has none.
func (m *Meter) Unit() (Unit, error) {
	if m.cfg.Unit == "" {
		return "", ErrNoUnit
	}
	return m.cfg.Unit, nil
}

func (m *Meter) Clamp(value float64) (float64, bool) {
	switch {
	case math.IsNaN(value):
		return m.cfg.Min, true
	case value < m.cfg.Min:
		return m.cfg.Min, true
	case value > m.cfg.Max:
		return m.cfg.Max, true
	}
	return value, false
}

// SetValue sets the meter's value, clamped to its range.
func (m *Meter) SetValue(value float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.disabled {
		return ErrDisabled
	}
	m.value, _ = m.Clamp(value)
	return nil
}

var (
	// ErrNoUnit is returned by [Meter.Unit] for unitless meters.
	ErrNoUnit = errors.New("gauge has no unit")
	// ErrDisabled is returned when setting a disabled meter.
	ErrDisabled = errors.New("gauge is disabled")
)
