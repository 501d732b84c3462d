package uplink

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"example.com/pvdxlink/internal/wire"
)

// Kind is the numeric command-type tag carried in each command header.
type Kind uint16

const (
	KindDeviceEnable Kind = iota
	KindDeviceDisable
	KindDeviceBreak
	KindDeviceUnbreak
	KindDisplayUpdate
	KindSleep
	KindReboot
	KindPictureCapture
	KindPictureSend
	KindSetTime
	KindSetPowerMode
	KindADCSSetOpMode
	KindADCSSetKeplers

	numKinds
)

var (
	ErrUnknownCommand = errors.New("unknown command type")
)

type commandSpec struct {
	name   string
	size   uint32
	proto  Command
	decode func(r *wire.Reader) (Command, error)
	encode func(c Command, w *wire.Writer)
}

// registry is indexed by Kind and is the only place command layouts are
// defined. Build, Encode and Decode all go through it.
var registry = [numKinds]commandSpec{
	KindDeviceEnable: {
		name:  "device_enable",
		size:  1,
		proto: DeviceEnable{},
		decode: func(r *wire.Reader) (Command, error) {
			d, err := r.U8()
			return DeviceEnable{Device: d}, err
		},
		encode: func(c Command, w *wire.Writer) { w.U8(c.(DeviceEnable).Device) },
	},
	KindDeviceDisable: {
		name:  "device_disable",
		size:  1,
		proto: DeviceDisable{},
		decode: func(r *wire.Reader) (Command, error) {
			d, err := r.U8()
			return DeviceDisable{Device: d}, err
		},
		encode: func(c Command, w *wire.Writer) { w.U8(c.(DeviceDisable).Device) },
	},
	KindDeviceBreak: {
		name:  "device_break",
		size:  1,
		proto: DeviceBreak{},
		decode: func(r *wire.Reader) (Command, error) {
			d, err := r.U8()
			return DeviceBreak{Device: d}, err
		},
		encode: func(c Command, w *wire.Writer) { w.U8(c.(DeviceBreak).Device) },
	},
	KindDeviceUnbreak: {
		name:  "device_unbreak",
		size:  1,
		proto: DeviceUnbreak{},
		decode: func(r *wire.Reader) (Command, error) {
			d, err := r.U8()
			return DeviceUnbreak{Device: d}, err
		},
		encode: func(c Command, w *wire.Writer) { w.U8(c.(DeviceUnbreak).Device) },
	},
	KindDisplayUpdate: {
		name:  "display_update",
		size:  BitmapSize,
		proto: DisplayUpdate{},
		decode: func(r *wire.Reader) (Command, error) {
			var cmd DisplayUpdate
			err := r.Fill(cmd.Bitmap[:])
			return cmd, err
		},
		encode: func(c Command, w *wire.Writer) {
			bm := c.(DisplayUpdate).Bitmap
			w.Bytes(bm[:])
		},
	},
	KindSleep: {
		name:  "sleep",
		size:  4,
		proto: Sleep{},
		decode: func(r *wire.Reader) (Command, error) {
			d, err := r.U32()
			return Sleep{Duration: d}, err
		},
		encode: func(c Command, w *wire.Writer) { w.U32(c.(Sleep).Duration) },
	},
	KindReboot: {
		name:  "reboot",
		size:  0,
		proto: Reboot{},
		decode: func(*wire.Reader) (Command, error) {
			return Reboot{}, nil
		},
		encode: func(Command, *wire.Writer) {},
	},
	KindPictureCapture: {
		name:  "picture_capture",
		size:  4,
		proto: PictureCapture{},
		decode: func(r *wire.Reader) (Command, error) {
			ts, err := r.U32()
			return PictureCapture{Timestamp: ts}, err
		},
		encode: func(c Command, w *wire.Writer) { w.U32(c.(PictureCapture).Timestamp) },
	},
	KindPictureSend: {
		name:  "picture_send",
		size:  2,
		proto: PictureSend{},
		decode: func(r *wire.Reader) (Command, error) {
			n, err := r.U16()
			return PictureSend{Count: n}, err
		},
		encode: func(c Command, w *wire.Writer) { w.U16(c.(PictureSend).Count) },
	},
	KindSetTime: {
		name:  "set_time",
		size:  4,
		proto: SetTime{},
		decode: func(r *wire.Reader) (Command, error) {
			ts, err := r.U32()
			return SetTime{Timestamp: ts}, err
		},
		encode: func(c Command, w *wire.Writer) { w.U32(c.(SetTime).Timestamp) },
	},
	KindSetPowerMode: {
		name:  "set_power_mode",
		size:  1,
		proto: SetPowerMode{},
		decode: func(r *wire.Reader) (Command, error) {
			m, err := r.U8()
			return SetPowerMode{Mode: m}, err
		},
		encode: func(c Command, w *wire.Writer) { w.U8(c.(SetPowerMode).Mode) },
	},
	KindADCSSetOpMode: {
		name:  "adcs_set_op_mode",
		size:  1,
		proto: ADCSSetOpMode{},
		decode: func(r *wire.Reader) (Command, error) {
			m, err := r.U8()
			return ADCSSetOpMode{Mode: m}, err
		},
		encode: func(c Command, w *wire.Writer) { w.U8(c.(ADCSSetOpMode).Mode) },
	},
	KindADCSSetKeplers: {
		name:  "adcs_set_keplers",
		size:  ADCSUpdateSize,
		proto: ADCSSetKeplers{},
		decode: func(r *wire.Reader) (Command, error) {
			u, err := ReadADCSUpdate(r)
			return ADCSSetKeplers{Update: u}, err
		},
		encode: func(c Command, w *wire.Writer) { c.(ADCSSetKeplers).Update.WriteTo(w) },
	},
}

func lookup(k Kind) (*commandSpec, error) {
	if k >= numKinds {
		return nil, fmt.Errorf("%w: %d", ErrUnknownCommand, uint16(k))
	}
	return &registry[k], nil
}

// Valid reports whether k names a registered command.
func (k Kind) Valid() bool {
	return k < numKinds
}

func (k Kind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("Kind(%d)", uint16(k))
	}
	return registry[k].name
}

// PayloadSize is the canonical payload byte count for k.
func (k Kind) PayloadSize() (uint32, error) {
	spec, err := lookup(k)
	if err != nil {
		return 0, err
	}
	return spec.size, nil
}

// ParseKind accepts a command name such as "set_time" or a numeric tag.
func ParseKind(s string) (Kind, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i := range registry {
		if registry[i].name == name {
			return Kind(i), nil
		}
	}
	var n uint16
	if _, err := fmt.Sscanf(name, "%d", &n); err == nil && Kind(n).Valid() {
		return Kind(n), nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownCommand, s)
}

// Kinds lists every registered command in tag order.
func Kinds() []Kind {
	out := make([]Kind, numKinds)
	for i := range out {
		out[i] = Kind(i)
	}
	return out
}

// PayloadSize is the canonical payload byte count for cmd.
func PayloadSize(cmd Command) (uint32, error) {
	_, spec, err := commandValue(cmd)
	if err != nil {
		return 0, err
	}
	return spec.size, nil
}

// commandValue dereferences pointer commands and checks that the concrete
// type is the one registered for its kind.
func commandValue(cmd Command) (Command, *commandSpec, error) {
	if cmd == nil {
		return nil, nil, fmt.Errorf("%w: nil command", ErrUnknownCommand)
	}
	v := reflect.ValueOf(cmd)
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil, nil, fmt.Errorf("%w: nil %T", ErrUnknownCommand, cmd)
		}
		elem, ok := v.Elem().Interface().(Command)
		if !ok {
			return nil, nil, fmt.Errorf("%w: %T", ErrUnknownCommand, cmd)
		}
		cmd = elem
	}
	spec, err := lookup(cmd.Kind())
	if err != nil {
		return nil, nil, err
	}
	if reflect.TypeOf(cmd) != reflect.TypeOf(spec.proto) {
		return nil, nil, fmt.Errorf("%w: %T is not registered as %s", ErrUnknownCommand, cmd, spec.name)
	}
	return cmd, spec, nil
}

// EncodeCommand returns the payload bytes of cmd.
func EncodeCommand(cmd Command) ([]byte, error) {
	w := wire.NewWriter(0)
	if err := writeCommand(w, cmd); err != nil {
		return nil, err
	}
	return w.Data(), nil
}

func writeCommand(w *wire.Writer, cmd Command) error {
	cmd, spec, err := commandValue(cmd)
	if err != nil {
		return err
	}
	spec.encode(cmd, w)
	return nil
}

// DecodeCommand decodes a payload of the given kind. The payload must hold at
// least the kind's fixed layout; anything after it is ignored.
func DecodeCommand(k Kind, payload []byte) (Command, error) {
	spec, err := lookup(k)
	if err != nil {
		return nil, err
	}
	cmd, err := spec.decode(wire.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", spec.name, err)
	}
	return cmd, nil
}
