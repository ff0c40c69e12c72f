package control

import "fmt"

// ModeKind is the closed set of device operating modes.
type ModeKind int

const (
	// ModeZero keeps the battery at no net flow unless a permission allows it.
	ModeZero ModeKind = iota
	// ModeFullCharge charges at the maximum rate the device allows.
	ModeFullCharge
	// ModeStandby is the legacy no-flow mode kept for older firmware.
	ModeStandby
)

// String returns the stable identifier of the mode kind.
func (k ModeKind) String() string {
	switch k {
	case ModeZero:
		return "zero"
	case ModeFullCharge:
		return "full_charge"
	case ModeStandby:
		return "standby"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler for persistence.
func (k ModeKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *ModeKind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "zero":
		*k = ModeZero
	case "full_charge":
		*k = ModeFullCharge
	case "standby":
		*k = ModeStandby
	default:
		return fmt.Errorf("unknown mode kind %q", b)
	}
	return nil
}

// Permissions is the explicit flow allowance attached to a zero mode.
type Permissions struct {
	Charge    bool `json:"charge"`
	Discharge bool `json:"discharge"`
}

// DeviceMode is the externally-facing mode the abstract Action translates
// into. Values are comparable, which the idempotence guard relies on.
type DeviceMode struct {
	Kind  ModeKind    `json:"kind"`
	Perms Permissions `json:"permissions"`
}

// String returns a compact representation for logs.
func (m DeviceMode) String() string {
	return fmt.Sprintf("%s[charge=%t,discharge=%t]", m.Kind, m.Perms.Charge, m.Perms.Discharge)
}

// TranslateAction maps an Action to the device mode vocabulary. The mapping
// follows the extended five-mode table: charging uses the dedicated
// full-charge mode, everything else is the zero mode with per-direction
// permissions. With legacyStandby set, Hold uses the standby mode instead of
// a fully-permitted zero mode; both achieve no net flow.
func TranslateAction(a Action, legacyStandby bool) DeviceMode {
	switch a {
	case ActionCharge:
		return DeviceMode{Kind: ModeFullCharge}
	case ActionDischargeOnly:
		return DeviceMode{Kind: ModeZero, Perms: Permissions{Discharge: true}}
	case ActionHold:
		if legacyStandby {
			return DeviceMode{Kind: ModeStandby}
		}
		return DeviceMode{Kind: ModeZero, Perms: Permissions{Charge: true, Discharge: true}}
	default:
		// SafeFallback and anything unexpected: no flow in either direction.
		return DeviceMode{Kind: ModeZero}
	}
}
