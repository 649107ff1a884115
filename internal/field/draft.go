package field

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Media limits. Values mirror what the remote platform accepts.
const (
	MaxMediaItems   = 4
	MaxImageBytes   = 10 * 1024 * 1024
	MaxVideoBytes   = 50 * 1024 * 1024
	MaxVideoSeconds = 20.0

	// MinDescriptionLen is the minimum accepted description length in
	// characters (not bytes).
	MinDescriptionLen = 10
)

// videoSubtipos lists the subtype IDs that accept video evidence.
var videoSubtipos = map[int64]bool{
	2127: true, 2130: true, 2131: true, 2134: true, 2135: true,
	2137: true, 2147: true, 2178: true, 2179: true, 2185: true,
	2193: true, 12199: true, 12200: true,
}

// SubtipoPermitsVideo reports whether the given subtype accepts videos.
func SubtipoPermitsVideo(subtipoID int64) bool { return videoSubtipos[subtipoID] }

var imageMimes = map[string]bool{
	"image/jpeg": true, "image/jpg": true, "image/png": true,
	"image/gif": true, "image/webp": true,
}

var videoMimes = map[string]bool{
	"video/mp4": true, "video/mov": true, "video/avi": true,
	"video/wmv": true, "video/quicktime": true, "video/x-msvideo": true,
	"video/3gpp": true, "video/3gpp2": true, "video/m4v": true,
	"video/x-m4v": true, "video/mp4v-es": true, "video/x-ms-wmv": true,
}

var imageExts = map[string]string{
	".jpg": "image/jpeg", ".jpeg": "image/jpeg", ".png": "image/png",
	".gif": "image/gif", ".webp": "image/webp",
}

var videoExts = map[string]string{
	".mp4": "video/mp4", ".mov": "video/quicktime", ".avi": "video/x-msvideo",
	".wmv": "video/x-ms-wmv", ".3gp": "video/3gpp", ".3g2": "video/3gpp2",
	".m4v": "video/x-m4v",
}

// MediaTypeFor resolves the effective MIME type of a file. When mimeType is
// empty (some platforms omit it) the filename extension decides.
func MediaTypeFor(name, mimeType string) (resolved string, isVideo bool, ok bool) {
	if mimeType != "" {
		switch {
		case imageMimes[mimeType]:
			return mimeType, false, true
		case videoMimes[mimeType]:
			return mimeType, true, true
		}
		return "", false, false
	}
	ext := strings.ToLower(filepath.Ext(name))
	if m, found := imageExts[ext]; found {
		return m, false, true
	}
	if m, found := videoExts[ext]; found {
		return m, true, true
	}
	return "", false, false
}

// MediaItem is one attached evidence file.
type MediaItem struct {
	Name      string
	Checksum  string
	SizeBytes int64
	MimeType  string
	IsVideo   bool
	// DurationSec is the video duration when it could be probed; zero
	// means unknown, which is accepted rather than rejected.
	DurationSec float64
}

// IncidentDraft is the composed form held in memory until submit.
type IncidentDraft struct {
	TipoCasoID    int64
	SubTipoCasoID int64
	Direccion     string
	Descripcion   string
	// OccurredAt combines the incident date and time. Zero means the
	// reporter did not set one and the fields are omitted on submit.
	OccurredAt time.Time
	Latitude   *float64
	Longitude  *float64
	// JurisdiccionID is optional; zero omits the field.
	JurisdiccionID int64
	Media          []MediaItem
}

// ValidationError is a client-side form rejection. The message is shown to
// the reporter as-is.
type ValidationError struct{ Message string }

func (e *ValidationError) Error() string { return e.Message }

func invalid(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// Validate runs the draft checks in order and stops at the first failure.
func (d *IncidentDraft) Validate(now time.Time) error {
	if d.TipoCasoID == 0 || d.SubTipoCasoID == 0 {
		return invalid("Seleccione el tipo y subtipo de incidencia")
	}
	if strings.TrimSpace(d.Descripcion) == "" {
		return invalid("La descripción es obligatoria")
	}
	if len([]rune(strings.TrimSpace(d.Descripcion))) < MinDescriptionLen {
		return invalid("La descripción debe tener al menos %d caracteres", MinDescriptionLen)
	}
	if d.Latitude == nil || d.Longitude == nil {
		return invalid("No se pudo obtener tu ubicación. Activa el GPS e intenta de nuevo")
	}
	if !d.OccurredAt.IsZero() && d.OccurredAt.After(now) {
		return invalid("La fecha y hora del incidente no pueden ser futuras")
	}
	if len(d.Media) > MaxMediaItems {
		return invalid("Solo puedes subir un máximo de %d archivos. Actualmente tienes %d archivo(s).", MaxMediaItems, len(d.Media))
	}
	for i := range d.Media {
		if err := ValidateMediaItem(&d.Media[i], d.SubTipoCasoID); err != nil {
			return err
		}
	}
	return nil
}

// ValidateMediaItem checks a single evidence file against the format, size
// and duration rules for the selected subtype.
func ValidateMediaItem(m *MediaItem, subtipoID int64) error {
	resolved, isVideo, ok := MediaTypeFor(m.Name, m.MimeType)
	if !ok {
		return invalid("El archivo %s no es un formato válido. Formatos permitidos: %s", m.Name, allowedFormatsLabel(subtipoID))
	}
	if isVideo && !SubtipoPermitsVideo(subtipoID) {
		return invalid("El archivo %s no es un formato válido. Formatos permitidos: %s", m.Name, allowedFormatsLabel(subtipoID))
	}
	m.MimeType = resolved
	m.IsVideo = isVideo

	maxBytes := int64(MaxImageBytes)
	maxLabel := "10MB"
	if isVideo {
		maxBytes = MaxVideoBytes
		maxLabel = "50MB"
	}
	if m.SizeBytes > maxBytes {
		return invalid("El archivo %s excede el tamaño máximo de %s", m.Name, maxLabel)
	}

	// Duration is best-effort: an unprobeable video is accepted.
	if isVideo && m.DurationSec > MaxVideoSeconds {
		return invalid("El video %s excede la duración máxima de %.0f segundos", m.Name, MaxVideoSeconds)
	}
	return nil
}

// CanAttach checks whether adding more files would exceed the limit,
// producing the count-specific rejection message.
func CanAttach(current, adding int) error {
	if current+adding > MaxMediaItems {
		return invalid("Solo puedes subir un máximo de %d archivos. Actualmente tienes %d archivo(s).", MaxMediaItems, current)
	}
	return nil
}

func allowedFormatsLabel(subtipoID int64) string {
	if SubtipoPermitsVideo(subtipoID) {
		return "JPG, PNG, GIF, WEBP, MP4, AVI, MOV, WMV"
	}
	return "JPG, PNG, GIF, WEBP"
}
