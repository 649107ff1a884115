package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"sereno-go/internal/field"
)

// Fixed form values the platform expects on every submission.
const (
	unidadID        = "1"
	medioID         = "3"
	tipoReportante  = "2"
	defaultTurno    = "Mañana"
	mediaFieldName  = "fotos"
	dateLayout      = "2006-01-02"
	timeLayout      = "15:04:05"
	defaultTimeout  = 60 * time.Second
	incidentTimeout = 70 * time.Second
)

// Gateway talks to the two platform endpoints: the main API (auth) and the
// incidence API (everything else). The incidence client gets the longer
// timeout because the multipart submission is the slowest call.
//
// The gateway never stores the token. It reads it from the session store on
// every request, and on a 401 it expires the session exactly once per token
// so concurrent failures do not stack re-authentication prompts.
type Gateway struct {
	mainURL      string
	incidenceURL string
	main         *http.Client
	incidence    *http.Client
	sessions     field.SessionStore
	logger       field.Logger

	mu      sync.Mutex
	expired map[string]bool
}

var _ field.API = (*Gateway)(nil)

// Option configures a Gateway.
type Option func(*Gateway)

// WithTimeouts overrides the per-client timeouts.
func WithTimeouts(main, incidence time.Duration) Option {
	return func(g *Gateway) {
		g.main.Timeout = main
		g.incidence.Timeout = incidence
	}
}

// WithHTTPClients replaces both HTTP clients, for tests.
func WithHTTPClients(main, incidence *http.Client) Option {
	return func(g *Gateway) {
		g.main = main
		g.incidence = incidence
	}
}

// NewGateway creates a Gateway. Base URLs include the /api prefix.
func NewGateway(mainURL, incidenceURL string, sessions field.SessionStore, logger field.Logger, opts ...Option) *Gateway {
	if logger == nil {
		logger = field.NewNopLogger()
	}
	g := &Gateway{
		mainURL:      strings.TrimRight(mainURL, "/"),
		incidenceURL: strings.TrimRight(incidenceURL, "/"),
		main:         &http.Client{Timeout: defaultTimeout},
		incidence:    &http.Client{Timeout: incidentTimeout},
		sessions:     sessions,
		logger:       logger,
		expired:      make(map[string]bool),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

type loginResponse struct {
	Token string      `json:"token"`
	Data  *field.User `json:"data"`
}

// Login authenticates with email/password. It does not touch the session
// store; the caller decides what to do with the pair.
func (g *Gateway) Login(ctx context.Context, email, password string) (string, *field.User, error) {
	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return "", nil, fmt.Errorf("encoding credentials: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.mainURL+"/auth/external", bytes.NewReader(body))
	if err != nil {
		return "", nil, fmt.Errorf("building login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var resp loginResponse
	if err := g.do(g.main, req, false, &resp); err != nil {
		return "", nil, err
	}
	if resp.Token == "" || resp.Data == nil {
		return "", nil, field.NewAPIError(field.APIErrUnknown, 0, "respuesta de autenticación incompleta")
	}
	return resp.Token, resp.Data, nil
}

type submitResponse struct {
	ID     int64               `json:"id"`
	Codigo string              `json:"codigo"`
	Data   *field.SubmitResult `json:"data"`
}

// SubmitPreincidencia posts the multipart submission to the incidence API.
// The body is assembled in memory first so upload progress can be reported
// against a known total.
func (g *Gateway) SubmitPreincidencia(ctx context.Context, draft *field.IncidentDraft, user *field.User, media []field.MediaUpload, progress field.ProgressFunc) (*field.SubmitResult, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fields := [][2]string{
		{"unidad_id", unidadID},
		{"medio_id", medioID},
		{"cargo_sereno_id", strconv.FormatInt(user.CargoSerenoID, 10)},
		{"sereno_id", strconv.FormatInt(user.IDSereno, 10)},
		{"nombre_reportante", user.NombreCompleto()},
		{"turno", turnoOrDefault(user.Turno)},
		{"tipo_caso_id", strconv.FormatInt(draft.TipoCasoID, 10)},
		{"sub_tipo_caso_id", strconv.FormatInt(draft.SubTipoCasoID, 10)},
		{"direccion", draft.Direccion},
		{"descripcion", draft.Descripcion},
	}
	if draft.Latitude != nil && draft.Longitude != nil {
		fields = append(fields,
			[2]string{"latitud", strconv.FormatFloat(*draft.Latitude, 'f', -1, 64)},
			[2]string{"longitud", strconv.FormatFloat(*draft.Longitude, 'f', -1, 64)})
	}
	if draft.JurisdiccionID != 0 {
		fields = append(fields, [2]string{"jurisdiccion_id", strconv.FormatInt(draft.JurisdiccionID, 10)})
	}
	if !draft.OccurredAt.IsZero() {
		fields = append(fields,
			[2]string{"fecha_ocurrencia", draft.OccurredAt.Format(dateLayout)},
			[2]string{"hora_ocurrencia", draft.OccurredAt.Format(timeLayout)})
	}
	fields = append(fields, [2]string{"tipo_reportante_id", tipoReportante})

	for _, f := range fields {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return nil, fmt.Errorf("writing form field %s: %w", f[0], err)
		}
	}

	for _, m := range media {
		part, err := mw.CreateFormFile(mediaFieldName, m.Item.Name)
		if err != nil {
			return nil, fmt.Errorf("creating form file %s: %w", m.Item.Name, err)
		}
		if _, err := io.Copy(part, m.Content); err != nil {
			return nil, fmt.Errorf("writing form file %s: %w", m.Item.Name, err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("finalizing multipart body: %w", err)
	}

	total := int64(buf.Len())
	var body io.Reader = &buf
	if progress != nil {
		body = &progressReader{r: &buf, total: total, fn: progress}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.incidenceURL+"/preincidencias/", body)
	if err != nil {
		return nil, fmt.Errorf("building submit request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.ContentLength = total

	var resp submitResponse
	if err := g.do(g.incidence, req, true, &resp); err != nil {
		return nil, err
	}
	if resp.Data != nil {
		return resp.Data, nil
	}
	return &field.SubmitResult{ID: resp.ID, Codigo: resp.Codigo}, nil
}

// ListPreincidencias fetches the sereno's incident list.
func (g *Gateway) ListPreincidencias(ctx context.Context, serenoID int64, f field.ListFilter) (*field.IncidenciaList, error) {
	q := url.Values{}
	if f.FechaInicio != "" {
		q.Set("fecha_inicio", f.FechaInicio)
	}
	if f.FechaFin != "" {
		q.Set("fecha_fin", f.FechaFin)
	}
	if f.Estado != "" {
		q.Set("estado", f.Estado)
	}

	u := fmt.Sprintf("%s/preincidencias/sereno/%d", g.incidenceURL, serenoID)
	if enc := q.Encode(); enc != "" {
		u += "?" + enc
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("building list request: %w", err)
	}

	var list field.IncidenciaList
	if err := g.do(g.incidence, req, true, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

type tiposResponse struct {
	Data []field.TipoCaso `json:"data"`
}

// TiposCasos fetches the tipo/subtipo catalog.
func (g *Gateway) TiposCasos(ctx context.Context) ([]field.TipoCaso, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.incidenceURL+"/tipificaciones/tipo_casos", nil)
	if err != nil {
		return nil, fmt.Errorf("building tipos request: %w", err)
	}

	var resp tiposResponse
	if err := g.do(g.incidence, req, true, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

type historialResponse struct {
	Historial []struct {
		SerenoID          int64    `json:"sereno_id"`
		NombreReportante  string   `json:"nombre_reportante"`
		CodigoIncidencias []string `json:"codigo_incidencias"`
	} `json:"historial"`
	TotalCount int64 `json:"totalCount"`
}

// Historial fetches a page of the reporter historial and flattens it into
// display rows.
func (g *Gateway) Historial(ctx context.Context, f field.HistorialFilter) (*field.HistorialPage, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(f.Page))
	q.Set("limit", strconv.Itoa(f.Limit))
	q.Set("turno", f.Turno)
	q.Set("jurisdiccionId", strconv.FormatInt(f.JurisdiccionID, 10))
	if f.Date != "" {
		q.Set("date", f.Date)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		q.Set("search", s)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.incidenceURL+"/historial/titan?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("building historial request: %w", err)
	}

	var resp historialResponse
	if err := g.do(g.incidence, req, true, &resp); err != nil {
		return nil, err
	}

	page := &field.HistorialPage{TotalCount: resp.TotalCount}
	for _, row := range resp.Historial {
		page.Entries = append(page.Entries, field.HistorialEntry{
			SerenoID:         row.SerenoID,
			NombresCompletos: row.NombreReportante,
			Codigos:          row.CodigoIncidencias,
			Cuenta:           len(row.CodigoIncidencias),
		})
	}
	return page, nil
}

// UpdatePhone changes the sereno's contact phone.
func (g *Gateway) UpdatePhone(ctx context.Context, celular string) error {
	body, err := json.Marshal(map[string]string{"celular": celular})
	if err != nil {
		return fmt.Errorf("encoding phone update: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, g.incidenceURL+"/serenos/phone", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building phone request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return g.do(g.incidence, req, true, nil)
}

// do sends the request, classifies failures and decodes a 2xx body into out
// (when out is non-nil).
func (g *Gateway) do(client *http.Client, req *http.Request, auth bool, out any) error {
	token := ""
	if auth {
		token = g.sessions.Token()
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		} else {
			g.logger.Warn("request without session token", "url", req.URL.Path)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return field.NewAPIError(field.APIErrTimeout, 0, "")
		}
		return field.NewAPIError(field.APIErrNetwork, 0, "")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding response from %s: %w", req.URL.Path, err)
		}
		return nil
	}

	msg := serverMessage(resp.Body)
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		g.expireOnce(token)
		return field.NewAPIError(field.APIErrSession, resp.StatusCode, "")
	case resp.StatusCode == http.StatusBadRequest:
		return field.NewAPIError(field.APIErrValidation, resp.StatusCode, msg)
	case resp.StatusCode >= 500:
		return field.NewAPIError(field.APIErrServer, resp.StatusCode, "")
	default:
		return field.NewAPIError(field.APIErrUnknown, resp.StatusCode, msg)
	}
}

// expireOnce tears down the session on a 401, but only once per token.
// Several in-flight requests can fail with 401 at the same moment; only the
// first teardown should fire the re-authentication signal.
func (g *Gateway) expireOnce(token string) {
	if token == "" {
		return
	}
	g.mu.Lock()
	already := g.expired[token]
	if !already {
		g.expired[token] = true
	}
	g.mu.Unlock()
	if already {
		return
	}

	if err := g.sessions.Expire(); err != nil {
		g.logger.Error("expiring session after 401", "error", err)
	}
}

func serverMessage(r io.Reader) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(io.LimitReader(r, 64<<10)).Decode(&payload); err != nil {
		return ""
	}
	return payload.Message
}

func turnoOrDefault(turno string) string {
	if strings.TrimSpace(turno) == "" {
		return defaultTurno
	}
	return turno
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}

// progressReader reports cumulative read progress as a percentage of the
// known total. The final callback always reports 100.
type progressReader struct {
	r     io.Reader
	total int64
	sent  int64
	fn    field.ProgressFunc
	last  int
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	p.sent += int64(n)
	pct := 100
	if p.total > 0 {
		pct = int(p.sent * 100 / p.total)
	}
	if pct > 100 {
		pct = 100
	}
	if pct != p.last {
		p.last = pct
		p.fn(pct)
	}
	return n, err
}
