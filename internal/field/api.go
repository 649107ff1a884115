package field

import (
	"context"
	"io"
)

// ListFilter narrows the sereno incident listing.
type ListFilter struct {
	FechaInicio string
	FechaFin    string
	Estado      string
}

// HistorialFilter selects a page of the reporter historial.
type HistorialFilter struct {
	Page           int
	Limit          int
	Date           string
	Turno          string
	JurisdiccionID int64
	Search         string
}

// MediaUpload pairs a validated media item with its content stream.
type MediaUpload struct {
	Item    MediaItem
	Content io.Reader
}

// ProgressFunc receives upload progress as a 0-100 percentage.
type ProgressFunc func(percent int)

// SubmitResult is the created-record payload from a successful submit.
type SubmitResult struct {
	ID     int64  `json:"id"`
	Codigo string `json:"codigo"`
}

// API is the remote platform as the client sees it. Implementations add
// the bearer token, classify failures into APIError, and never retry on
// their own.
type API interface {
	// Login authenticates with email/password and returns the token and
	// user record. It does not touch the session store.
	Login(ctx context.Context, email, password string) (token string, user *User, err error)

	// SubmitPreincidencia posts the multipart submission. progress may
	// be nil.
	SubmitPreincidencia(ctx context.Context, draft *IncidentDraft, user *User, media []MediaUpload, progress ProgressFunc) (*SubmitResult, error)

	// ListPreincidencias fetches the sereno's incident list.
	ListPreincidencias(ctx context.Context, serenoID int64, f ListFilter) (*IncidenciaList, error)

	// TiposCasos fetches the tipo/subtipo catalog.
	TiposCasos(ctx context.Context) ([]TipoCaso, error)

	// Historial fetches a page of the reporter historial.
	Historial(ctx context.Context, f HistorialFilter) (*HistorialPage, error)

	// UpdatePhone changes the sereno's contact phone.
	UpdatePhone(ctx context.Context, celular string) error
}
