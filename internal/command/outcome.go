package command

import (
	"fmt"

	"github.com/muurk/tigerscale/internal/device"
)

// Name identifies a device command.
type Name string

const (
	Tare                 Name = "tare"
	SetCalibrationFactor Name = "set-calibration-factor"
	SetAPIKey            Name = "set-api-key"
	DeleteAPIKey         Name = "delete-api-key"
	ResetWiFi            Name = "reset-wifi"
	FactoryReset         Name = "factory-reset"
	PushWeight           Name = "push-weight"
)

// Kind is the category of an Outcome.
type Kind int

const (
	// KindOK means the scale acknowledged the command.
	KindOK Kind = iota
	// KindValidation means the command was refused locally; nothing was sent.
	KindValidation
	// KindTransport means the request failed or the scale answered non-2xx.
	KindTransport
	// KindRejected means the round trip worked but the scale said no.
	KindRejected
)

func (k Kind) String() string {
	switch k {
	case KindOK:
		return "ok"
	case KindValidation:
		return "validation"
	case KindTransport:
		return "transport"
	case KindRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// ValidationKind tells local validation failures apart.
type ValidationKind int

const (
	ValidationNone ValidationKind = iota
	// InvalidWeight: the reference weight is not a positive number.
	InvalidWeight
	// TooLight: the reference weight is below the calibration floor.
	TooLight
	// DataUnavailable: the current weight or factor is not known yet.
	DataUnavailable
	// InvalidFactor: the factor to send is not strictly positive.
	InvalidFactor
	EmptyAPIKey
	NotConfirmed
	InvalidPushWeight
	// OutOfStep: the wizard is not at the step the action belongs to.
	OutOfStep
)

func (v ValidationKind) String() string {
	switch v {
	case InvalidWeight:
		return "invalid-weight"
	case TooLight:
		return "too-light"
	case DataUnavailable:
		return "data-unavailable"
	case InvalidFactor:
		return "invalid-factor"
	case EmptyAPIKey:
		return "empty-api-key"
	case NotConfirmed:
		return "not-confirmed"
	case InvalidPushWeight:
		return "invalid-push-weight"
	case OutOfStep:
		return "out-of-step"
	default:
		return "none"
	}
}

// Outcome is the result of one user-initiated command. Operations in this
// package and in the calibration wizard never return bare errors; they
// return an Outcome.
type Outcome struct {
	// ID correlates the outcome with log lines. Empty for outcomes that
	// never reached the dispatcher.
	ID         string
	Command    Name
	Kind       Kind
	Validation ValidationKind
	// Err is set for transport failures.
	Err error

	// DisplayName is the account name returned by a successful set-api-key.
	DisplayName string
	// Factor is the calibration factor that was sent.
	Factor float64
}

// OK reports whether the scale acknowledged the command.
func (o Outcome) OK() bool {
	return o.Kind == KindOK
}

// Message returns one distinguishable user-facing sentence per case.
func (o Outcome) Message() string {
	switch o.Kind {
	case KindOK:
		return o.okMessage()
	case KindValidation:
		return validationMessage(o.Validation)
	case KindRejected:
		switch o.Command {
		case SetAPIKey:
			return "The scale rejected the API key"
		case DeleteAPIKey:
			return "The scale did not confirm the API key deletion"
		default:
			return fmt.Sprintf("The scale rejected %s", o.Command)
		}
	case KindTransport:
		if o.Err == nil {
			return fmt.Sprintf("%s failed", o.Command)
		}
		return fmt.Sprintf("%s failed: %s", o.Command, device.GetShortErrorMessage(o.Err))
	default:
		return ""
	}
}

func (o Outcome) okMessage() string {
	switch o.Command {
	case Tare:
		return "Scale tared"
	case SetCalibrationFactor:
		return fmt.Sprintf("Calibration factor set to %.2f", o.Factor)
	case SetAPIKey:
		if o.DisplayName != "" {
			return fmt.Sprintf("API key accepted for %s", o.DisplayName)
		}
		return "API key accepted"
	case DeleteAPIKey:
		return "API key deleted"
	case ResetWiFi:
		return "WiFi reset: the scale restarts into setup mode"
	case FactoryReset:
		return "Factory reset: the scale restarts with default settings"
	case PushWeight:
		return "Weight sent to the cloud"
	default:
		return "Done"
	}
}

func validationMessage(kind ValidationKind) string {
	switch kind {
	case InvalidWeight:
		return "Enter the reference weight as a positive number of grams"
	case TooLight:
		return "The reference weight must be at least 200 g"
	case DataUnavailable:
		return "Current weight or calibration factor not received yet, wait for the scale"
	case InvalidFactor:
		return "The computed calibration factor is not positive, check the reference weight"
	case EmptyAPIKey:
		return "Enter an API key"
	case NotConfirmed:
		return "Cancelled"
	case InvalidPushWeight:
		return "The weight to send must be a positive number of grams"
	case OutOfStep:
		return "Not available at this step of the calibration"
	default:
		return "Invalid input"
	}
}

// Invalid builds a validation outcome.
func Invalid(cmd Name, kind ValidationKind) Outcome {
	return Outcome{Command: cmd, Kind: KindValidation, Validation: kind}
}
