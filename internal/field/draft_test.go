package field

import (
	"errors"
	"strings"
	"testing"
	"time"
)

const (
	videoSubtipo   = int64(2127)
	noVideoSubtipo = int64(9999)
)

func ptr(v float64) *float64 { return &v }

func validDraft() *IncidentDraft {
	return &IncidentDraft{
		TipoCasoID:    21,
		SubTipoCasoID: noVideoSubtipo,
		Descripcion:   "Persona sospechosa merodeando el parque",
		Direccion:     "Av. Gran Chimú 123",
		Latitude:      ptr(-12.0212),
		Longitude:     ptr(-76.9877),
	}
}

func TestIncidentDraft_Validate(t *testing.T) {
	now := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

	tests := []struct {
		name    string
		mutate  func(*IncidentDraft)
		wantErr string
	}{
		{
			name:   "valid draft",
			mutate: func(d *IncidentDraft) {},
		},
		{
			name:    "missing tipo",
			mutate:  func(d *IncidentDraft) { d.TipoCasoID = 0 },
			wantErr: "Seleccione el tipo y subtipo de incidencia",
		},
		{
			name:    "missing subtipo",
			mutate:  func(d *IncidentDraft) { d.SubTipoCasoID = 0 },
			wantErr: "Seleccione el tipo y subtipo de incidencia",
		},
		{
			name:    "empty description",
			mutate:  func(d *IncidentDraft) { d.Descripcion = "   " },
			wantErr: "La descripción es obligatoria",
		},
		{
			name: "description counts runes not bytes",
			// 9 runes, 18 bytes: still too short.
			mutate:  func(d *IncidentDraft) { d.Descripcion = "áéíóúáéíó" },
			wantErr: "La descripción debe tener al menos 10 caracteres",
		},
		{
			name:   "ten rune description passes",
			mutate: func(d *IncidentDraft) { d.Descripcion = "áéíóúáéíóú" },
		},
		{
			name:    "missing latitude",
			mutate:  func(d *IncidentDraft) { d.Latitude = nil },
			wantErr: "No se pudo obtener tu ubicación. Activa el GPS e intenta de nuevo",
		},
		{
			name:    "missing longitude",
			mutate:  func(d *IncidentDraft) { d.Longitude = nil },
			wantErr: "No se pudo obtener tu ubicación. Activa el GPS e intenta de nuevo",
		},
		{
			name:    "future occurrence rejected",
			mutate:  func(d *IncidentDraft) { d.OccurredAt = now.Add(time.Minute) },
			wantErr: "La fecha y hora del incidente no pueden ser futuras",
		},
		{
			name:   "past occurrence accepted",
			mutate: func(d *IncidentDraft) { d.OccurredAt = now.Add(-time.Hour) },
		},
		{
			name:   "zero occurrence accepted",
			mutate: func(d *IncidentDraft) { d.OccurredAt = time.Time{} },
		},
		{
			name: "too many media items",
			mutate: func(d *IncidentDraft) {
				for i := 0; i < 5; i++ {
					d.Media = append(d.Media, MediaItem{Name: "foto.jpg", MimeType: "image/jpeg", SizeBytes: 100})
				}
			},
			wantErr: "Solo puedes subir un máximo de 4 archivos. Actualmente tienes 5 archivo(s).",
		},
		{
			name: "invalid media item rejected",
			mutate: func(d *IncidentDraft) {
				d.Media = []MediaItem{{Name: "notas.txt", MimeType: "text/plain", SizeBytes: 10}}
			},
			wantErr: "El archivo notas.txt no es un formato válido. Formatos permitidos: JPG, PNG, GIF, WEBP",
		},
		{
			name: "four valid media items accepted",
			mutate: func(d *IncidentDraft) {
				for i := 0; i < 4; i++ {
					d.Media = append(d.Media, MediaItem{Name: "foto.jpg", MimeType: "image/jpeg", SizeBytes: 100})
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := validDraft()
			tt.mutate(d)

			err := d.Validate(now)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() = nil, want error %q", tt.wantErr)
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Validate() error type = %T, want *ValidationError", err)
			}
			if err.Error() != tt.wantErr {
				t.Errorf("Validate() error = %q, want %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestValidateMediaItem(t *testing.T) {
	tests := []struct {
		name      string
		item      MediaItem
		subtipoID int64
		wantErr   string
		wantMime  string
		wantVideo bool
	}{
		{
			name:      "jpeg within limit",
			item:      MediaItem{Name: "foto.jpg", MimeType: "image/jpeg", SizeBytes: MaxImageBytes},
			subtipoID: noVideoSubtipo,
			wantMime:  "image/jpeg",
		},
		{
			name:      "mime resolved from extension",
			item:      MediaItem{Name: "captura.png", SizeBytes: 1024},
			subtipoID: noVideoSubtipo,
			wantMime:  "image/png",
		},
		{
			name:      "unknown format",
			item:      MediaItem{Name: "informe.pdf", SizeBytes: 1024},
			subtipoID: noVideoSubtipo,
			wantErr:   "El archivo informe.pdf no es un formato válido. Formatos permitidos: JPG, PNG, GIF, WEBP",
		},
		{
			name:      "video on non video subtype",
			item:      MediaItem{Name: "clip.mp4", MimeType: "video/mp4", SizeBytes: 1024},
			subtipoID: noVideoSubtipo,
			wantErr:   "El archivo clip.mp4 no es un formato válido. Formatos permitidos: JPG, PNG, GIF, WEBP",
		},
		{
			name:      "video format list in rejection",
			item:      MediaItem{Name: "informe.pdf", SizeBytes: 1024},
			subtipoID: videoSubtipo,
			wantErr:   "El archivo informe.pdf no es un formato válido. Formatos permitidos: JPG, PNG, GIF, WEBP, MP4, AVI, MOV, WMV",
		},
		{
			name:      "video on video subtype",
			item:      MediaItem{Name: "clip.mp4", MimeType: "video/mp4", SizeBytes: MaxVideoBytes, DurationSec: 20},
			subtipoID: videoSubtipo,
			wantMime:  "video/mp4",
			wantVideo: true,
		},
		{
			name:      "oversize image",
			item:      MediaItem{Name: "foto.jpg", MimeType: "image/jpeg", SizeBytes: MaxImageBytes + 1},
			subtipoID: noVideoSubtipo,
			wantErr:   "El archivo foto.jpg excede el tamaño máximo de 10MB",
		},
		{
			name:      "oversize video",
			item:      MediaItem{Name: "clip.mp4", MimeType: "video/mp4", SizeBytes: MaxVideoBytes + 1},
			subtipoID: videoSubtipo,
			wantErr:   "El archivo clip.mp4 excede el tamaño máximo de 50MB",
		},
		{
			name:      "video over duration",
			item:      MediaItem{Name: "clip.mp4", MimeType: "video/mp4", SizeBytes: 1024, DurationSec: 20.5},
			subtipoID: videoSubtipo,
			wantErr:   "El video clip.mp4 excede la duración máxima de 20 segundos",
		},
		{
			name:      "unknown duration accepted",
			item:      MediaItem{Name: "clip.mp4", MimeType: "video/mp4", SizeBytes: 1024, DurationSec: 0},
			subtipoID: videoSubtipo,
			wantMime:  "video/mp4",
			wantVideo: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := tt.item
			err := ValidateMediaItem(&item, tt.subtipoID)
			if tt.wantErr != "" {
				if err == nil || err.Error() != tt.wantErr {
					t.Fatalf("ValidateMediaItem() error = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ValidateMediaItem() error = %v", err)
			}
			if item.MimeType != tt.wantMime {
				t.Errorf("MimeType = %q, want %q", item.MimeType, tt.wantMime)
			}
			if item.IsVideo != tt.wantVideo {
				t.Errorf("IsVideo = %v, want %v", item.IsVideo, tt.wantVideo)
			}
		})
	}
}

func TestMediaTypeFor(t *testing.T) {
	tests := []struct {
		name     string
		fileName string
		mimeType string
		want     string
		isVideo  bool
		ok       bool
	}{
		{name: "explicit image mime", fileName: "x", mimeType: "image/png", want: "image/png", ok: true},
		{name: "explicit video mime", fileName: "x", mimeType: "video/quicktime", want: "video/quicktime", isVideo: true, ok: true},
		{name: "unknown mime rejected", fileName: "foto.jpg", mimeType: "application/pdf"},
		{name: "jpg extension", fileName: "FOTO.JPG", want: "image/jpeg", ok: true},
		{name: "mov extension", fileName: "clip.mov", want: "video/quicktime", isVideo: true, ok: true},
		{name: "m4v extension", fileName: "clip.m4v", want: "video/x-m4v", isVideo: true, ok: true},
		{name: "no extension", fileName: "archivo"},
		{name: "unknown extension", fileName: "archivo.txt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, isVideo, ok := MediaTypeFor(tt.fileName, tt.mimeType)
			if got != tt.want || isVideo != tt.isVideo || ok != tt.ok {
				t.Errorf("MediaTypeFor(%q, %q) = (%q, %v, %v), want (%q, %v, %v)",
					tt.fileName, tt.mimeType, got, isVideo, ok, tt.want, tt.isVideo, tt.ok)
			}
		})
	}
}

func TestCanAttach(t *testing.T) {
	if err := CanAttach(3, 1); err != nil {
		t.Errorf("CanAttach(3, 1) error = %v", err)
	}
	err := CanAttach(4, 1)
	if err == nil {
		t.Fatal("CanAttach(4, 1) = nil, want error")
	}
	if !strings.Contains(err.Error(), "Actualmente tienes 4 archivo(s).") {
		t.Errorf("CanAttach(4, 1) error = %q, want current count in message", err.Error())
	}
}

func TestUser_NombreCompleto(t *testing.T) {
	tests := []struct {
		nombres, apellidos, want string
	}{
		{"Juan", "Pérez", "Juan Pérez"},
		{"Juan", "", "Juan"},
		{"", "Pérez", "Pérez"},
	}
	for _, tt := range tests {
		u := &User{Nombres: tt.nombres, Apellidos: tt.apellidos}
		if got := u.NombreCompleto(); got != tt.want {
			t.Errorf("NombreCompleto() = %q, want %q", got, tt.want)
		}
	}
}
