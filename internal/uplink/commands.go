package uplink

import (
	"encoding/json"
	"fmt"
	"math"

	"example.com/pvdxlink/internal/wire"
)

const (
	BitmapSize     = 8192
	ADCSUpdateSize = 28
)

// Command is one typed spacecraft command. The set of implementations is
// closed; each one has an entry in the registry.
type Command interface {
	Kind() Kind
}

type DeviceEnable struct {
	Device uint8 `json:"device"`
}

type DeviceDisable struct {
	Device uint8 `json:"device"`
}

type DeviceBreak struct {
	Device uint8 `json:"device"`
}

type DeviceUnbreak struct {
	Device uint8 `json:"device"`
}

// DisplayUpdate replaces the full display bitmap.
type DisplayUpdate struct {
	Bitmap [BitmapSize]byte `json:"-"`
}

// Sleep suspends the spacecraft for Duration seconds.
type Sleep struct {
	Duration uint32 `json:"duration"`
}

type Reboot struct{}

type PictureCapture struct {
	Timestamp uint32 `json:"timestamp"`
}

type PictureSend struct {
	Count uint16 `json:"count"`
}

// SetTime sets the on-board clock to a UNIX timestamp.
type SetTime struct {
	Timestamp uint32 `json:"timestamp"`
}

type SetPowerMode struct {
	Mode uint8 `json:"mode"`
}

type ADCSSetOpMode struct {
	Mode uint8 `json:"mode"`
}

type ADCSSetKeplers struct {
	Update ADCSUpdate `json:"update"`
}

func (DeviceEnable) Kind() Kind   { return KindDeviceEnable }
func (DeviceDisable) Kind() Kind  { return KindDeviceDisable }
func (DeviceBreak) Kind() Kind    { return KindDeviceBreak }
func (DeviceUnbreak) Kind() Kind  { return KindDeviceUnbreak }
func (DisplayUpdate) Kind() Kind  { return KindDisplayUpdate }
func (Sleep) Kind() Kind          { return KindSleep }
func (Reboot) Kind() Kind         { return KindReboot }
func (PictureCapture) Kind() Kind { return KindPictureCapture }
func (PictureSend) Kind() Kind    { return KindPictureSend }
func (SetTime) Kind() Kind        { return KindSetTime }
func (SetPowerMode) Kind() Kind   { return KindSetPowerMode }
func (ADCSSetOpMode) Kind() Kind  { return KindADCSSetOpMode }
func (ADCSSetKeplers) Kind() Kind { return KindADCSSetKeplers }

// ADCSUpdate is an orbit epoch plus the six classical Keplerian elements
// other than semimajor axis.
type ADCSUpdate struct {
	Timestamp    uint32  `json:"timestamp"`
	Inclination  float32 `json:"inclination"`
	RAAN         float32 `json:"raan"`
	Eccentricity float32 `json:"eccentricity"`
	PerigeeArg   float32 `json:"perigeeArg"`
	MeanAnomaly  float32 `json:"meanAnomaly"`
	MeanMotion   float32 `json:"meanMotion"`
}

// elementJSON renders an orbital element as a JSON number. JSON has no NaN
// or infinity, so those are written as a string carrying the raw bits.
type elementJSON float32

func (f elementJSON) MarshalJSON() ([]byte, error) {
	v := float32(f)
	if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
		return json.Marshal(fmt.Sprintf("%v (0x%08X)", v, math.Float32bits(v)))
	}
	return json.Marshal(v)
}

func (u ADCSUpdate) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Timestamp    uint32      `json:"timestamp"`
		Inclination  elementJSON `json:"inclination"`
		RAAN         elementJSON `json:"raan"`
		Eccentricity elementJSON `json:"eccentricity"`
		PerigeeArg   elementJSON `json:"perigeeArg"`
		MeanAnomaly  elementJSON `json:"meanAnomaly"`
		MeanMotion   elementJSON `json:"meanMotion"`
	}{
		Timestamp:    u.Timestamp,
		Inclination:  elementJSON(u.Inclination),
		RAAN:         elementJSON(u.RAAN),
		Eccentricity: elementJSON(u.Eccentricity),
		PerigeeArg:   elementJSON(u.PerigeeArg),
		MeanAnomaly:  elementJSON(u.MeanAnomaly),
		MeanMotion:   elementJSON(u.MeanMotion),
	})
}

// ReadADCSUpdate decodes the 28-byte record at the reader's cursor.
func ReadADCSUpdate(r *wire.Reader) (ADCSUpdate, error) {
	var u ADCSUpdate
	var err error
	if u.Timestamp, err = r.U32(); err != nil {
		return u, fmt.Errorf("adcs timestamp: %w", err)
	}
	fields := []struct {
		name string
		dst  *float32
	}{
		{"inclination", &u.Inclination},
		{"raan", &u.RAAN},
		{"eccentricity", &u.Eccentricity},
		{"perigee argument", &u.PerigeeArg},
		{"mean anomaly", &u.MeanAnomaly},
		{"mean motion", &u.MeanMotion},
	}
	for _, f := range fields {
		if *f.dst, err = r.F32(); err != nil {
			return ADCSUpdate{}, fmt.Errorf("adcs %s: %w", f.name, err)
		}
	}
	return u, nil
}

// WriteTo appends the 28-byte record.
func (u ADCSUpdate) WriteTo(w *wire.Writer) {
	w.U32(u.Timestamp)
	w.F32(u.Inclination)
	w.F32(u.RAAN)
	w.F32(u.Eccentricity)
	w.F32(u.PerigeeArg)
	w.F32(u.MeanAnomaly)
	w.F32(u.MeanMotion)
}
