package field

import "time"

// User is the authenticated sereno record returned by the auth endpoint.
// Field names follow the remote API payload.
type User struct {
	IDSereno      int64  `json:"id_sereno"`
	CargoSerenoID int64  `json:"cargo_sereno_id"`
	Nombres       string `json:"nombres"`
	Apellidos     string `json:"apellidos"`
	Rol           string `json:"rol"`
	Turno         string `json:"turno"`
	Celular       string `json:"celular"`
}

// NombreCompleto returns the concatenated reporter name used in submissions.
func (u *User) NombreCompleto() string {
	switch {
	case u.Nombres == "":
		return u.Apellidos
	case u.Apellidos == "":
		return u.Nombres
	default:
		return u.Nombres + " " + u.Apellidos
	}
}

// Session pairs the API token with the authenticated user.
// Invariant: Token and User are set and cleared together — never one
// without the other.
type Session struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}

// Valid reports whether the session holds a complete token/user pair.
func (s Session) Valid() bool {
	return s.Token != "" && s.User != nil
}

// Jurisdiction is a named geographic zone loaded from the static dataset.
// Boundary geometry is held by the index, not by this value.
type Jurisdiction struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Color       string `json:"color"`
}

// TipoCaso is an incident type with its selectable subtypes.
type TipoCaso struct {
	ID          int64     `json:"id"`
	Descripcion string    `json:"descripcion"`
	Subtipos    []Subtipo `json:"subtipos"`
}

// Subtipo is a selectable incident subtype.
type Subtipo struct {
	ID          int64  `json:"id"`
	Descripcion string `json:"descripcion"`
}

// Incidencia is a list entry returned by the sereno listing endpoint.
type Incidencia struct {
	ID              int64  `json:"id"`
	Codigo          string `json:"codigo"`
	TipoCaso        string `json:"tipo_caso"`
	SubTipoCaso     string `json:"sub_tipo_caso"`
	Direccion       string `json:"direccion"`
	Descripcion     string `json:"descripcion"`
	Estado          string `json:"estado"`
	FechaOcurrencia string `json:"fecha_ocurrencia"`
	HoraOcurrencia  string `json:"hora_ocurrencia"`
}

// IncidenciaList is the listing payload: entries plus per-state counts.
type IncidenciaList struct {
	Incidencias []Incidencia     `json:"incidencias"`
	Counts      map[string]int64 `json:"counts"`
}

// HistorialEntry is one reporter row from the historial endpoint, already
// transformed to the shape the client displays.
type HistorialEntry struct {
	SerenoID         int64
	NombresCompletos string
	Codigos          []string
	Cuenta           int
}

// HistorialPage is a page of historial entries with the server total.
type HistorialPage struct {
	Entries    []HistorialEntry
	TotalCount int64
}

// Submission is the local record kept for every successful submit.
type Submission struct {
	ID            string
	Codigo        string
	TipoCasoID    int64
	SubTipoCasoID int64
	Direccion     string
	CreatedAt     time.Time
}
