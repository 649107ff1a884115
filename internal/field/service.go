package field

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ListCacheTTL is how long a cached incident-list response is served
// before the client refetches.
const ListCacheTTL = 7 * 24 * time.Hour

// Historial defaults applied when the caller leaves a filter empty.
const (
	DefaultTurno          = "mañana"
	DefaultJurisdiccionID = 2 // Zárate
)

var validTurnos = map[string]bool{"mañana": true, "tarde": true, "noche": true}

// Service is the orchestration layer between the CLI and the component
// packages: session, gateway, local store, staging, vault and geo.
type Service struct {
	sessions      SessionStore
	api           API
	store         LocalStore
	staging       MediaStagingArea
	vault         EvidenceVault // optional
	jurisdictions JurisdictionLocator
	acquirer      *Acquirer
	fsmgr         FilesystemManager
	logger        Logger
	clock         Clock
	idgen         IDGenerator
}

// NewService creates a Service with the provided dependencies. vault may
// be nil to disable evidence archiving.
func NewService(sessions SessionStore, api API, store LocalStore, staging MediaStagingArea,
	vault EvidenceVault, jurisdictions JurisdictionLocator, acquirer *Acquirer,
	fsmgr FilesystemManager, logger Logger, clock Clock, idgen IDGenerator) *Service {
	if logger == nil {
		logger = NewNopLogger()
	}
	return &Service{
		sessions:      sessions,
		api:           api,
		store:         store,
		staging:       staging,
		vault:         vault,
		jurisdictions: jurisdictions,
		acquirer:      acquirer,
		fsmgr:         fsmgr,
		logger:        logger,
		clock:         clock,
		idgen:         idgen,
	}
}

// Login authenticates against the platform and establishes the session.
func (s *Service) Login(ctx context.Context, email, password string) (*User, error) {
	token, user, err := s.api.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.Login(token, user); err != nil {
		return nil, fmt.Errorf("estableciendo sesión: %w", err)
	}
	s.logger.Info("sesión iniciada", "sereno_id", user.IDSereno)
	return user, nil
}

// Logout tears down the session.
func (s *Service) Logout() error {
	return s.sessions.Logout()
}

// CurrentUser returns the authenticated user, or ErrNoSession.
func (s *Service) CurrentUser() (*User, error) {
	sess := s.sessions.Session()
	if !sess.Valid() {
		return nil, ErrNoSession
	}
	return sess.User, nil
}

// AcquireLocation starts a two-phase acquisition and returns its update
// channel. Coordinates and address arrive as separate updates.
func (s *Service) AcquireLocation(ctx context.Context) <-chan LocationUpdate {
	return s.acquirer.Acquire(ctx)
}

// ResolveCurrent answers "which jurisdiction is the agent in right now".
// jurisdiction is nil (with no error) when the point matches no polygon;
// an error means location acquisition itself failed.
func (s *Service) ResolveCurrent(ctx context.Context) (*Fix, *Jurisdiction, error) {
	if err := s.jurisdictions.EnsureLoaded(ctx); err != nil {
		return nil, nil, fmt.Errorf("cargando jurisdicciones: %w", err)
	}

	var fix *Fix
	for u := range s.acquirer.Acquire(ctx) {
		if u.Err != nil {
			return nil, nil, fmt.Errorf("%w. %s", u.Err, u.Hint)
		}
		if u.Fix != nil && u.Address == "" {
			fix = u.Fix
			if u.Final {
				break
			}
		}
	}
	if fix == nil {
		return nil, nil, ErrPositionUnavailable
	}

	j, ok := s.jurisdictions.FindContaining(fix.Latitude, fix.Longitude)
	if !ok {
		s.logger.Debug("punto fuera de toda jurisdicción",
			"lat", fix.Latitude, "lng", fix.Longitude)
		return fix, nil, nil
	}
	return fix, j, nil
}

// StageMedia probes, validates and queues an evidence file for the next
// submission. Subtype-dependent video gating happens at submit time, when
// the subtype is known.
func (s *Service) StageMedia(path string) (MediaItem, error) {
	count, err := s.staging.Count()
	if err != nil {
		return MediaItem{}, fmt.Errorf("consultando cola de archivos: %w", err)
	}
	if err := CanAttach(count, 1); err != nil {
		return MediaItem{}, err
	}

	mf, err := s.fsmgr.ProbeMedia(path)
	if err != nil {
		return MediaItem{}, err
	}
	item := MediaItem{
		Name:        mf.Name,
		SizeBytes:   mf.SizeBytes,
		MimeType:    mf.MimeType,
		IsVideo:     mf.IsVideo,
		DurationSec: mf.DurationSec,
	}
	// Gate with the most permissive subtype here; the real subtype check
	// runs again during draft validation.
	if err := ValidateMediaItem(&item, anyVideoSubtipo()); err != nil {
		return MediaItem{}, err
	}

	r, err := s.fsmgr.Open(mf.AbsPath)
	if err != nil {
		return MediaItem{}, fmt.Errorf("abriendo archivo: %w", err)
	}
	defer r.Close()

	staged, err := s.staging.Stage(item, r)
	if err != nil {
		return MediaItem{}, fmt.Errorf("agregando a la cola: %w", err)
	}
	s.logger.Debug("archivo en cola", "name", staged.Name, "checksum", staged.Checksum)
	return staged, nil
}

// StagedMedia lists the queued evidence files.
func (s *Service) StagedMedia() ([]StagedMedia, error) {
	return s.staging.List()
}

// RemoveStagedMedia drops one queued file by checksum.
func (s *Service) RemoveStagedMedia(checksum string) error {
	return s.staging.Remove(checksum)
}

// ClearStagedMedia empties the media queue.
func (s *Service) ClearStagedMedia() error {
	return s.staging.Clear()
}

// Submit validates the draft, attaches the staged media, posts the
// multipart submission, and on success records it locally, invalidates
// the cached incident list, archives the evidence, and clears the queue.
// There is no automatic retry: on failure the queue is left intact so the
// reporter can resubmit.
func (s *Service) Submit(ctx context.Context, draft *IncidentDraft, progress ProgressFunc) (*SubmitResult, error) {
	sess := s.sessions.Session()
	if !sess.Valid() {
		return nil, ErrNoSession
	}

	staged, err := s.staging.List()
	if err != nil {
		return nil, fmt.Errorf("leyendo cola de archivos: %w", err)
	}
	draft.Media = draft.Media[:0]
	for _, sm := range staged {
		draft.Media = append(draft.Media, sm.Item)
	}

	if err := draft.Validate(s.clock.Now()); err != nil {
		return nil, err
	}

	uploads := make([]MediaUpload, 0, len(draft.Media))
	closers := make([]interface{ Close() error }, 0, len(draft.Media))
	defer func() {
		for _, c := range closers {
			c.Close()
		}
	}()
	for _, item := range draft.Media {
		rc, err := s.staging.OpenContent(item.Checksum)
		if err != nil {
			return nil, fmt.Errorf("leyendo archivo %s: %w", item.Name, err)
		}
		closers = append(closers, rc)
		uploads = append(uploads, MediaUpload{Item: item, Content: rc})
	}

	result, err := s.api.SubmitPreincidencia(ctx, draft, sess.User, uploads, progress)
	if err != nil {
		return nil, err
	}

	sub := &Submission{
		ID:            s.idgen.New(),
		Codigo:        result.Codigo,
		TipoCasoID:    draft.TipoCasoID,
		SubTipoCasoID: draft.SubTipoCasoID,
		Direccion:     draft.Direccion,
		CreatedAt:     s.clock.Now(),
	}
	if err := s.store.CreateSubmission(sub); err != nil {
		s.logger.Warn("no se pudo registrar el envío localmente", "error", err)
	}

	if err := s.store.InvalidateListCache("preincidencias:"); err != nil {
		s.logger.Warn("no se pudo invalidar el cache de listados", "error", err)
	}

	s.archiveEvidence(draft.Media)

	if err := s.staging.Clear(); err != nil {
		s.logger.Warn("no se pudo vaciar la cola de archivos", "error", err)
	}

	s.logger.Info("preincidencia enviada", "codigo", result.Codigo, "archivos", len(draft.Media))
	return result, nil
}

// archiveEvidence copies submitted media into the vault. Best-effort: the
// submission already succeeded, so failures only log.
func (s *Service) archiveEvidence(media []MediaItem) {
	if s.vault == nil {
		return
	}
	for _, item := range media {
		rc, err := s.staging.OpenContent(item.Checksum)
		if err != nil {
			s.logger.Warn("evidencia no archivada", "name", item.Name, "error", err)
			continue
		}
		err = s.vault.PutContent(item.Checksum, rc, item.SizeBytes)
		rc.Close()
		if err != nil {
			s.logger.Warn("evidencia no archivada", "name", item.Name, "error", err)
		}
	}
}

// ListIncidencias returns the sereno's incident list, serving a cached
// response when one is fresh enough.
func (s *Service) ListIncidencias(ctx context.Context, f ListFilter) (*IncidenciaList, error) {
	sess := s.sessions.Session()
	if !sess.Valid() {
		return nil, ErrNoSession
	}

	key := listCacheKey(sess.User.IDSereno, f)
	if payload, ok, err := s.store.GetListCache(key, s.clock.Now(), ListCacheTTL); err == nil && ok {
		var list IncidenciaList
		if err := json.Unmarshal(payload, &list); err == nil {
			s.logger.Debug("listado servido desde cache", "key", key)
			return &list, nil
		}
	}

	list, err := s.api.ListPreincidencias(ctx, sess.User.IDSereno, f)
	if err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(list); err == nil {
		if err := s.store.PutListCache(key, payload, s.clock.Now()); err != nil {
			s.logger.Warn("no se pudo cachear el listado", "error", err)
		}
	}
	return list, nil
}

// TiposCasos fetches the tipo/subtipo catalog.
func (s *Service) TiposCasos(ctx context.Context) ([]TipoCaso, error) {
	return s.api.TiposCasos(ctx)
}

// Historial fetches a page of the reporter historial, applying the
// platform defaults for missing filters.
func (s *Service) Historial(ctx context.Context, f HistorialFilter) (*HistorialPage, error) {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.Limit <= 0 {
		f.Limit = 20
	}
	f.Turno = strings.ToLower(strings.TrimSpace(f.Turno))
	if !validTurnos[f.Turno] {
		f.Turno = DefaultTurno
	}
	if f.JurisdiccionID <= 0 {
		f.JurisdiccionID = DefaultJurisdiccionID
	}
	return s.api.Historial(ctx, f)
}

// UpdatePhone changes the sereno's contact phone on the platform.
func (s *Service) UpdatePhone(ctx context.Context, celular string) error {
	if strings.TrimSpace(celular) == "" {
		return invalid("El número de celular es obligatorio")
	}
	return s.api.UpdatePhone(ctx, celular)
}

// History lists the locally recorded submissions, newest first.
func (s *Service) History(limit int) ([]*Submission, error) {
	return s.store.ListSubmissions(limit)
}

func listCacheKey(serenoID int64, f ListFilter) string {
	return fmt.Sprintf("preincidencias:%d:%s:%s:%s", serenoID, f.FechaInicio, f.FechaFin, f.Estado)
}

// anyVideoSubtipo returns a subtype ID that permits video, used for the
// permissive stage-time check.
func anyVideoSubtipo() int64 {
	for id := range videoSubtipos {
		return id
	}
	return 0
}
