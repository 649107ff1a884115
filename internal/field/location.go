package field

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"
)

// Two-phase acquisition tuning. The quick pass trades accuracy for speed;
// the precise pass is the slower, high-accuracy fallback/upgrade.
const (
	QuickFixTimeout   = 8 * time.Second
	QuickFixMaxAge    = 60 * time.Second
	PreciseFixTimeout = 15 * time.Second

	// InterimAccuracyMeters is the accuracy above which a quick fix is
	// treated as interim and a precise upgrade is attempted in the
	// background.
	InterimAccuracyMeters = 500.0
)

// Fix is a single device location reading.
type Fix struct {
	Latitude  float64
	Longitude float64
	AccuracyM float64
	At        time.Time
}

// FixOptions controls a single provider fix request.
type FixOptions struct {
	HighAccuracy bool
	Timeout      time.Duration
	// MaximumAge allows the provider to return a cached fix no older
	// than this. Zero requires a fresh reading.
	MaximumAge time.Duration
}

// PermissionState is the provider's location permission, when it can tell.
type PermissionState int

const (
	PermissionUnknown PermissionState = iota
	PermissionGranted
	PermissionDenied
)

// LocationProvider abstracts the device location source.
type LocationProvider interface {
	// Supported reports whether this device can produce fixes at all.
	Supported() bool

	// Permission queries the permission state if the platform exposes
	// one. PermissionUnknown means "cannot tell, try anyway".
	Permission(ctx context.Context) (PermissionState, error)

	// CurrentFix blocks for a single location reading. Failures should
	// wrap ErrPermissionDenied, ErrPositionUnavailable or
	// ErrLocationTimeout so they can be classified.
	CurrentFix(ctx context.Context, opts FixOptions) (*Fix, error)
}

// AcquireState is the acquirer's position in the two-phase state machine.
type AcquireState int

const (
	StateIdle AcquireState = iota
	StateQuickPending
	StatePrecisePending
	StateResolved
	StateFailed
)

func (s AcquireState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateQuickPending:
		return "quick-pending"
	case StatePrecisePending:
		return "precise-pending"
	case StateResolved:
		return "resolved"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// LocationUpdate is one observable change during an acquisition. A single
// Acquire call may deliver several: an interim fix, its precise upgrade,
// and address updates arriving independently from reverse geocoding.
type LocationUpdate struct {
	Generation uint64
	State      AcquireState
	Fix        *Fix
	// Address is set on geocoding updates only; coordinates and address
	// arrive as separate values, never one atomic result.
	Address string
	// Final marks the last coordinate update of this acquisition.
	Final bool
	Err   error
	// Hint carries the actionable, platform-aware guidance for terminal
	// errors.
	Hint string
}

// Geocoder resolves coordinates to a human-readable address.
type Geocoder interface {
	Resolve(ctx context.Context, lat, lng float64) string
}

// Acquirer runs the quick-then-precise location strategy over a provider.
// A new Acquire supersedes the observable result of any stale in-flight
// one (generation-guarded last-write-wins); each caller still receives
// every update for its own acquisition on the returned channel.
type Acquirer struct {
	provider LocationProvider
	geocoder Geocoder // optional
	logger   Logger

	mu      sync.Mutex
	gen     uint64
	current LocationUpdate
}

// NewAcquirer creates an Acquirer. geocoder may be nil to skip address
// resolution.
func NewAcquirer(provider LocationProvider, geocoder Geocoder, logger Logger) *Acquirer {
	if logger == nil {
		logger = NewNopLogger()
	}
	return &Acquirer{provider: provider, geocoder: geocoder, logger: logger}
}

// Current returns the latest accepted update across all acquisitions.
func (a *Acquirer) Current() LocationUpdate {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}

// Acquire starts a new acquisition and returns its update channel. The
// channel is closed once the acquisition is terminal and any background
// precise upgrade and geocoding have finished.
func (a *Acquirer) Acquire(ctx context.Context) <-chan LocationUpdate {
	a.mu.Lock()
	a.gen++
	gen := a.gen
	a.mu.Unlock()

	updates := make(chan LocationUpdate, 8)
	go func() {
		defer close(updates)
		a.run(ctx, gen, updates)
	}()
	return updates
}

func (a *Acquirer) run(ctx context.Context, gen uint64, updates chan<- LocationUpdate) {
	if !a.provider.Supported() {
		a.emit(updates, LocationUpdate{
			Generation: gen,
			State:      StateFailed,
			Final:      true,
			Err:        ErrUnsupported,
			Hint:       PermissionHint("unsupported"),
		})
		return
	}

	if state, err := a.provider.Permission(ctx); err == nil && state == PermissionDenied {
		a.emit(updates, LocationUpdate{
			Generation: gen,
			State:      StateFailed,
			Final:      true,
			Err:        ErrPermissionDenied,
			Hint:       PermissionHint("denied"),
		})
		return
	}

	a.emit(updates, LocationUpdate{Generation: gen, State: StateQuickPending})

	var geocodeWG sync.WaitGroup
	defer geocodeWG.Wait()

	quick, quickErr := a.provider.CurrentFix(ctx, FixOptions{
		HighAccuracy: false,
		Timeout:      QuickFixTimeout,
		MaximumAge:   QuickFixMaxAge,
	})

	if quickErr == nil && quick.AccuracyM <= InterimAccuracyMeters {
		a.emit(updates, LocationUpdate{Generation: gen, State: StateResolved, Fix: quick, Final: true})
		a.geocode(ctx, gen, quick, updates, &geocodeWG)
		return
	}

	if quickErr == nil {
		// Interim fix: usable now, upgrade in the background.
		a.emit(updates, LocationUpdate{Generation: gen, State: StatePrecisePending, Fix: quick})
		a.geocode(ctx, gen, quick, updates, &geocodeWG)

		precise, preciseErr := a.provider.CurrentFix(ctx, FixOptions{
			HighAccuracy: true,
			Timeout:      PreciseFixTimeout,
		})
		if preciseErr != nil {
			a.logger.Warn("precise fix failed, keeping interim fix",
				"accuracy_m", quick.AccuracyM, "error", preciseErr)
			a.emit(updates, LocationUpdate{Generation: gen, State: StateResolved, Fix: quick, Final: true})
			return
		}
		a.emit(updates, LocationUpdate{Generation: gen, State: StateResolved, Fix: precise, Final: true})
		a.geocode(ctx, gen, precise, updates, &geocodeWG)
		return
	}

	// Quick pass failed outright: precise becomes the primary attempt.
	a.logger.Debug("quick fix failed, trying precise", "error", quickErr)
	a.emit(updates, LocationUpdate{Generation: gen, State: StatePrecisePending})

	precise, preciseErr := a.provider.CurrentFix(ctx, FixOptions{
		HighAccuracy: true,
		Timeout:      PreciseFixTimeout,
	})
	if preciseErr != nil {
		err, hint := classifyFixError(preciseErr)
		a.emit(updates, LocationUpdate{Generation: gen, State: StateFailed, Final: true, Err: err, Hint: hint})
		return
	}
	a.emit(updates, LocationUpdate{Generation: gen, State: StateResolved, Fix: precise, Final: true})
	a.geocode(ctx, gen, precise, updates, &geocodeWG)
}

// emit delivers an update to the caller and, when the generation is still
// the newest, records it as the shared observable result.
func (a *Acquirer) emit(updates chan<- LocationUpdate, u LocationUpdate) {
	a.mu.Lock()
	if u.Generation >= a.gen {
		a.current = u
	}
	a.mu.Unlock()
	updates <- u
}

func (a *Acquirer) geocode(ctx context.Context, gen uint64, fix *Fix, updates chan<- LocationUpdate, wg *sync.WaitGroup) {
	if a.geocoder == nil {
		return
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		addr := a.geocoder.Resolve(ctx, fix.Latitude, fix.Longitude)
		a.emit(updates, LocationUpdate{Generation: gen, State: StateResolved, Fix: fix, Address: addr})
	}()
}

func classifyFixError(err error) (error, string) {
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return ErrPermissionDenied, PermissionHint("denied")
	case errors.Is(err, ErrPositionUnavailable):
		return ErrPositionUnavailable, PermissionHint("unavailable")
	case errors.Is(err, ErrLocationTimeout), errors.Is(err, context.DeadlineExceeded):
		return ErrLocationTimeout, PermissionHint("timeout")
	default:
		return fmt.Errorf("error desconocido al obtener ubicación: %w", err), PermissionHint("unknown")
	}
}

// PermissionHint maps a failure class to actionable guidance for the
// detected platform. The detection is display-only; callers branch on the
// error, never on the hint text.
func PermissionHint(errorType string) string {
	switch errorType {
	case "denied":
		switch runtime.GOOS {
		case "android":
			return "Para usar esta función, permite el acceso a tu ubicación. Ve a: Configuración > Aplicaciones > Permisos > Ubicación."
		case "ios", "darwin":
			return "Para usar esta función, permite el acceso a tu ubicación en la configuración del sistema."
		default:
			return "Para usar esta función, permite el acceso a tu ubicación en la configuración de tu dispositivo."
		}
	case "unavailable":
		return "No se puede determinar tu ubicación. Verifica que tengas GPS activado y buena señal."
	case "timeout":
		return "La solicitud de ubicación tardó demasiado. Intenta de nuevo o verifica tu conexión."
	case "unsupported":
		return "Este dispositivo no cuenta con geolocalización."
	default:
		return "Ocurrió un error inesperado. Intenta de nuevo."
	}
}
