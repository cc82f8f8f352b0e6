package device

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"syscall"
)

// ErrorType represents the category of error that occurred
type ErrorType int

const (
	// ErrTypeNetwork indicates a network-level error
	ErrTypeNetwork ErrorType = iota
	// ErrTypeHTTP indicates a non-2xx response
	ErrTypeHTTP
	// ErrTypeParse indicates a body that could not be decoded
	ErrTypeParse
	// ErrTypeProtocol indicates a push channel failure (handshake, framing)
	ErrTypeProtocol
	// ErrTypeTimeout indicates a request timeout
	ErrTypeTimeout
	// ErrTypeConnectionRefused indicates the device refused the connection
	ErrTypeConnectionRefused
	// ErrTypeDNS indicates the device hostname could not be resolved
	ErrTypeDNS
)

// NetworkErrorSubtype provides more specific network error classification
type NetworkErrorSubtype int

const (
	NetworkErrorGeneral NetworkErrorSubtype = iota
	NetworkErrorTimeout
	NetworkErrorConnectionRefused
	NetworkErrorDNS
	NetworkErrorHostUnreachable
	NetworkErrorNetworkUnreachable
)

// String returns a human-readable name for the error type
func (et ErrorType) String() string {
	switch et {
	case ErrTypeNetwork:
		return "Network Error"
	case ErrTypeHTTP:
		return "HTTP Error"
	case ErrTypeParse:
		return "Parse Error"
	case ErrTypeProtocol:
		return "Protocol Error"
	case ErrTypeTimeout:
		return "Timeout"
	case ErrTypeConnectionRefused:
		return "Connection Refused"
	case ErrTypeDNS:
		return "DNS Error"
	default:
		return fmt.Sprintf("ErrorType(%d)", et)
	}
}

// DeviceError is returned by every Client and PushSubscriber operation that
// fails to complete a round trip with the scale.
type DeviceError struct {
	Type           ErrorType
	Message        string
	StatusCode     int    // HTTP status code (if applicable)
	DeviceMessage  string // "error" field of the device's JSON body, if any
	Err            error
	NetworkSubtype NetworkErrorSubtype
	DeviceAddr     string
	Retryable      bool
}

// Error implements the error interface
func (e *DeviceError) Error() string {
	msg := e.Message
	if e.DeviceMessage != "" {
		msg = fmt.Sprintf("%s (device: %s)", msg, e.DeviceMessage)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, msg)
}

// Unwrap returns the underlying error for error chain inspection
func (e *DeviceError) Unwrap() error {
	return e.Err
}

// ClassifyNetworkError analyzes a transport error and returns a more specific
// DeviceError.
func ClassifyNetworkError(err error, deviceAddr string) *DeviceError {
	if err == nil {
		return nil
	}

	if os.IsTimeout(err) {
		return &DeviceError{
			Type:           ErrTypeTimeout,
			Message:        "Request timed out",
			Err:            err,
			NetworkSubtype: NetworkErrorTimeout,
			DeviceAddr:     deviceAddr,
			Retryable:      true,
		}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &DeviceError{
			Type:           ErrTypeDNS,
			Message:        fmt.Sprintf("DNS resolution failed for %s", dnsErr.Name),
			Err:            err,
			NetworkSubtype: NetworkErrorDNS,
			DeviceAddr:     deviceAddr,
			Retryable:      true,
		}
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		switch {
		case errors.Is(opErr.Err, syscall.ECONNREFUSED):
			return &DeviceError{
				Type:           ErrTypeConnectionRefused,
				Message:        "Device refused connection",
				Err:            err,
				NetworkSubtype: NetworkErrorConnectionRefused,
				DeviceAddr:     deviceAddr,
				Retryable:      true,
			}
		case errors.Is(opErr.Err, syscall.EHOSTUNREACH):
			return &DeviceError{
				Type:           ErrTypeNetwork,
				Message:        "Host unreachable",
				Err:            err,
				NetworkSubtype: NetworkErrorHostUnreachable,
				DeviceAddr:     deviceAddr,
				Retryable:      true,
			}
		case errors.Is(opErr.Err, syscall.ENETUNREACH):
			return &DeviceError{
				Type:           ErrTypeNetwork,
				Message:        "Network unreachable",
				Err:            err,
				NetworkSubtype: NetworkErrorNetworkUnreachable,
				DeviceAddr:     deviceAddr,
				Retryable:      true,
			}
		}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		return ClassifyNetworkError(urlErr.Err, deviceAddr)
	}

	return &DeviceError{
		Type:           ErrTypeNetwork,
		Message:        "Network error occurred",
		Err:            err,
		NetworkSubtype: NetworkErrorGeneral,
		DeviceAddr:     deviceAddr,
		Retryable:      true,
	}
}

// NewNetworkError creates a network-level error with automatic classification
func NewNetworkError(message string, err error) *DeviceError {
	classified := ClassifyNetworkError(err, "")
	if classified != nil {
		classified.Message = message
		return classified
	}
	return &DeviceError{
		Type:      ErrTypeNetwork,
		Message:   message,
		Err:       err,
		Retryable: true,
	}
}

// NewHTTPError creates an error for a non-2xx response. deviceMessage is the
// device's own explanation, when it sent one.
func NewHTTPError(statusCode int, message string, deviceMessage string) *DeviceError {
	return &DeviceError{
		Type:          ErrTypeHTTP,
		Message:       message,
		StatusCode:    statusCode,
		DeviceMessage: deviceMessage,
		Retryable:     statusCode >= 500,
	}
}

// NewParseError creates a parsing error
func NewParseError(message string, err error) *DeviceError {
	return &DeviceError{
		Type:    ErrTypeParse,
		Message: message,
		Err:     err,
	}
}

// NewProtocolError creates a push channel error
func NewProtocolError(message string, err error) *DeviceError {
	return &DeviceError{
		Type:      ErrTypeProtocol,
		Message:   message,
		Err:       err,
		Retryable: true,
	}
}

func asDeviceError(err error) (*DeviceError, bool) {
	var devErr *DeviceError
	if errors.As(err, &devErr) {
		return devErr, true
	}
	return nil, false
}

// IsNetworkError reports whether err is a network error (including timeout,
// connection refused and DNS failures).
func IsNetworkError(err error) bool {
	if devErr, ok := asDeviceError(err); ok {
		return devErr.Type == ErrTypeNetwork ||
			devErr.Type == ErrTypeTimeout ||
			devErr.Type == ErrTypeConnectionRefused ||
			devErr.Type == ErrTypeDNS
	}
	return false
}

// IsHTTPError checks if an error is an HTTP error
func IsHTTPError(err error) bool {
	if devErr, ok := asDeviceError(err); ok {
		return devErr.Type == ErrTypeHTTP
	}
	return false
}

// IsParseError checks if an error is a parse error
func IsParseError(err error) bool {
	if devErr, ok := asDeviceError(err); ok {
		return devErr.Type == ErrTypeParse
	}
	return false
}

// IsRetryable checks if the failed exchange could succeed if tried again.
// The client itself never retries; background loops use this for logging.
func IsRetryable(err error) bool {
	if devErr, ok := asDeviceError(err); ok {
		return devErr.Retryable
	}
	return false
}

// GetTroubleshootingHint returns user-friendly troubleshooting advice for an error
func GetTroubleshootingHint(err error) string {
	devErr, ok := asDeviceError(err)
	if !ok {
		return "An unexpected error occurred. Please try again."
	}

	switch devErr.Type {
	case ErrTypeTimeout:
		return strings.Join([]string{
			"The scale did not respond in time.",
			"Troubleshooting:",
			"  • Check that the scale is powered on and shows its IP on the display",
			"  • Verify you are on the same network as the scale",
			"  • Move the scale closer to the access point",
		}, "\n")

	case ErrTypeConnectionRefused:
		return strings.Join([]string{
			"The scale refused the connection.",
			"Troubleshooting:",
			"  • The web server may still be starting - wait a few seconds",
			"  • Verify the port number (default is 80)",
			"  • Power-cycle the scale",
		}, "\n")

	case ErrTypeDNS:
		return strings.Join([]string{
			"Could not resolve the scale hostname.",
			"Troubleshooting:",
			"  • Use the IP address instead of tigerscale.local",
			"  • Run 'tigerscale scan' to find the scale via mDNS",
			"  • Verify you are on the same network as the scale",
		}, "\n")

	case ErrTypeNetwork:
		hint := []string{"Network communication failed."}

		switch devErr.NetworkSubtype {
		case NetworkErrorHostUnreachable:
			hint = append(hint, "The scale is not reachable on the network.",
				"Troubleshooting:",
				"  • Verify the scale IP address is correct",
				"  • If the scale shows 'TigerScale-Setup', finish the WiFi setup first",
				"  • Try pinging the scale: ping "+devErr.DeviceAddr)

		case NetworkErrorNetworkUnreachable:
			hint = append(hint, "Your computer cannot reach the scale's network.",
				"Troubleshooting:",
				"  • Check your network adapter settings",
				"  • Verify WiFi is enabled on your computer")

		default:
			hint = append(hint, "Troubleshooting:",
				"  • Check your network connection",
				"  • Verify the scale is powered on",
				"  • Ensure you are connected to the correct network")
		}

		return strings.Join(hint, "\n")

	case ErrTypeHTTP:
		if devErr.StatusCode >= 500 {
			return strings.Join([]string{
				fmt.Sprintf("The scale returned an error (HTTP %d).", devErr.StatusCode),
				"Troubleshooting:",
				"  • For cloud pushes, check the API key and that a tag was presented",
				"  • Try rebooting the scale",
			}, "\n")
		}
		if devErr.StatusCode == http.StatusNotFound {
			return "The scale does not know this endpoint. The firmware may be too old for this command."
		}
		return fmt.Sprintf("The scale returned HTTP error %d. Check the request parameters.", devErr.StatusCode)

	case ErrTypeParse:
		return strings.Join([]string{
			"Failed to parse the scale's response.",
			"This may indicate a firmware incompatibility.",
			"Troubleshooting:",
			"  • Open http://<scale>/api/status in a browser and check the output",
			"  • Try rebooting the scale",
		}, "\n")

	case ErrTypeProtocol:
		return "The live weight channel (/ws) could not be used. Polling continues every second."

	default:
		return "An error occurred. Please check the error message for details."
	}
}

// GetShortErrorMessage returns a concise, user-friendly error message
func GetShortErrorMessage(err error) string {
	devErr, ok := asDeviceError(err)
	if !ok {
		return err.Error()
	}

	switch devErr.Type {
	case ErrTypeTimeout:
		return "Scale not responding (timeout)"
	case ErrTypeConnectionRefused:
		return "Scale refused connection"
	case ErrTypeDNS:
		return "Cannot resolve scale hostname"
	case ErrTypeNetwork:
		switch devErr.NetworkSubtype {
		case NetworkErrorHostUnreachable:
			return "Scale unreachable - check network connection"
		case NetworkErrorNetworkUnreachable:
			return "Network unreachable - check WiFi connection"
		default:
			return "Network error - check connection"
		}
	case ErrTypeHTTP:
		if devErr.DeviceMessage != "" {
			return fmt.Sprintf("Scale error (HTTP %d): %s", devErr.StatusCode, devErr.DeviceMessage)
		}
		return fmt.Sprintf("Scale error (HTTP %d)", devErr.StatusCode)
	case ErrTypeParse:
		return "Failed to parse scale response"
	case ErrTypeProtocol:
		return "Live channel unavailable"
	default:
		return devErr.Message
	}
}
