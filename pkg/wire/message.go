// Package wire decodes gateway push messages into a canonical form. It is the
// only place that knows about envelope wrapping, type aliases and the legacy
// flat status format.
package wire

import (
	"errors"
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"github.com/tidwall/gjson"

	"gateway-console/pkg/api"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// ProtocolVersion is the push protocol version this client understands.
const ProtocolVersion = 1

// ErrMalformed is returned for a payload that is not a JSON object.
var ErrMalformed = errors.New("malformed message")

// Kind is the canonical event kind after alias folding.
type Kind string

const (
	KindDevicesDelta Kind = "devices_delta"
	KindHealthState  Kind = "health_state"
	KindLQIUpdate    Kind = "lqi_update"
	KindLegacyStatus Kind = "legacy_status"
	KindUnknown      Kind = "unknown"
)

var kindAliases = map[string]Kind{
	"devices_delta": KindDevicesDelta,
	"health_state":  KindHealthState,
	"lqi_update":    KindLQIUpdate,
	"lqi_state":     KindLQIUpdate,
}

var legacyKeys = []string{"pan_id", "channel", "short_addr", "devices"}

// Message is one decoded push message. Data holds the raw payload to pass to
// the matching Decode* function.
type Message struct {
	Kind       Kind
	Type       string // type as sent, before alias folding
	Seq        uint64
	HasSeq     bool
	Version    int
	HasVersion bool
	Ts         int64
	Data       []byte
}

// Decode unwraps an optional {status,data} envelope and classifies the
// message. Sequence and version are only taken from numeric fields.
func Decode(raw []byte) (Message, error) {
	if !gjson.ValidBytes(raw) {
		return Message{}, ErrMalformed
	}
	root := gjson.ParseBytes(raw)
	if !root.IsObject() {
		return Message{}, ErrMalformed
	}
	if root.Get("status").Exists() {
		data := root.Get("data")
		if !data.IsObject() {
			return Message{}, fmt.Errorf("%w: envelope without data object", ErrMalformed)
		}
		root = data
	}

	var msg Message
	if seq := root.Get("seq"); seq.Type == gjson.Number && seq.Num >= 0 {
		msg.Seq = seq.Uint()
		msg.HasSeq = true
	}
	if v := root.Get("version"); v.Type == gjson.Number {
		msg.Version = int(v.Int())
		msg.HasVersion = true
	}
	if ts := root.Get("ts"); ts.Type == gjson.Number {
		msg.Ts = ts.Int()
	}

	typ := root.Get("type")
	switch {
	case typ.Type == gjson.String && typ.Str != "":
		msg.Type = typ.Str
		kind, ok := kindAliases[typ.Str]
		switch {
		case ok:
			msg.Kind = kind
			if data := root.Get("data"); data.Exists() {
				msg.Data = []byte(data.Raw)
			}
		case isLegacy(root):
			msg.Kind = KindLegacyStatus
			msg.Data = []byte(root.Raw)
		default:
			msg.Kind = KindUnknown
		}
	case isLegacy(root):
		msg.Kind = KindLegacyStatus
		msg.Data = []byte(root.Raw)
	default:
		msg.Kind = KindUnknown
	}
	return msg, nil
}

func isLegacy(root gjson.Result) bool {
	for _, k := range legacyKeys {
		if root.Get(k).Exists() {
			return true
		}
	}
	return false
}

// DecodeDevices reads data.devices of a devices_delta message. A payload
// without a devices array is malformed rather than an empty list.
func DecodeDevices(data []byte) ([]api.Device, error) {
	if !gjson.GetBytes(data, "devices").IsArray() {
		return nil, fmt.Errorf("%w: devices is not an array", ErrMalformed)
	}
	var body struct {
		Devices []api.Device `json:"devices"`
	}
	if err := decode(data, &body); err != nil {
		return nil, err
	}
	return body.Devices, nil
}

// DecodeHealth reads a health_state payload.
func DecodeHealth(data []byte) (api.Health, error) {
	var h api.Health
	err := decode(data, &h)
	return h, err
}

// DecodeLQI reads an lqi_update payload.
func DecodeLQI(data []byte) (api.LQISnapshot, error) {
	var s api.LQISnapshot
	err := decode(data, &s)
	return s, err
}

// DecodeLegacyStatus reads the flat status fields of an untyped message.
// Fields absent from the frame stay nil.
func DecodeLegacyStatus(data []byte) (api.StatusUpdate, error) {
	var s api.StatusUpdate
	err := decode(data, &s)
	return s, err
}

func decode(data []byte, out any) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: empty payload", ErrMalformed)
	}
	if err := jsonAPI.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}
