package field

import (
	"errors"
	"fmt"
)

// Location acquisition errors. Providers return these (possibly wrapped) so
// the acquirer can classify failures and attach platform hints.
var (
	ErrUnsupported         = errors.New("geolocalización no soportada en este dispositivo")
	ErrPermissionDenied    = errors.New("permiso de ubicación denegado")
	ErrPositionUnavailable = errors.New("ubicación no disponible")
	ErrLocationTimeout     = errors.New("tiempo de espera agotado")
)

// Session errors.
var (
	ErrNoSession      = errors.New("no hay sesión activa")
	ErrSessionExpired = errors.New("sesión expirada, inicie sesión nuevamente")
)

// APIErrorKind classifies a failed API call. Submission flows surface the
// kind directly; everything else just needs the message.
type APIErrorKind int

const (
	APIErrUnknown APIErrorKind = iota
	APIErrTimeout
	APIErrValidation // 400: server message passed through verbatim
	APIErrSession    // 401: session torn down by the gateway
	APIErrServer     // >= 500
	APIErrNetwork    // no response received
)

// APIError is a classified failure from the remote API.
type APIError struct {
	Kind    APIErrorKind
	Status  int
	Message string
}

func (e *APIError) Error() string { return e.Message }

// NewAPIError builds a classified API error with the user-facing message
// for its kind. Validation errors keep the server text untouched.
func NewAPIError(kind APIErrorKind, status int, message string) *APIError {
	switch kind {
	case APIErrTimeout:
		message = "Tiempo de envío superado, por favor verifique su conexión a internet."
	case APIErrSession:
		message = "No autorizado. Por favor, inicie sesión nuevamente."
	case APIErrServer:
		message = "Error del servidor. Por favor, intente más tarde."
	case APIErrNetwork:
		message = "Error de conexión. Verifique su conexión a internet."
	case APIErrValidation:
		if message == "" {
			message = "Datos del formulario incorrectos"
		}
	default:
		if message == "" {
			message = fmt.Sprintf("error %d", status)
		}
	}
	return &APIError{Kind: kind, Status: status, Message: message}
}

// APIErrorKindOf extracts the classification from err, or APIErrUnknown.
func APIErrorKindOf(err error) APIErrorKind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return APIErrUnknown
}
