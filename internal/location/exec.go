package location

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"sereno-go/internal/field"
)

const defaultCommand = "termux-location"

// ExecProvider obtains fixes by running an external location command. The
// default is termux-location, which prints a JSON object with latitude,
// longitude and accuracy.
type ExecProvider struct {
	command string
	args    []string
	clock   field.Clock
	logger  field.Logger
}

var _ field.LocationProvider = (*ExecProvider)(nil)

// NewExecProvider creates an ExecProvider. command defaults to
// termux-location when empty.
func NewExecProvider(command string, args []string, clock field.Clock, logger field.Logger) *ExecProvider {
	if command == "" {
		command = defaultCommand
	}
	if logger == nil {
		logger = field.NewNopLogger()
	}
	return &ExecProvider{command: command, args: args, clock: clock, logger: logger}
}

// Supported reports whether the location command exists on PATH.
func (p *ExecProvider) Supported() bool {
	_, err := exec.LookPath(p.command)
	return err == nil
}

// Permission probes for permission state. The command itself is the only
// authority: denial only shows up when a fix is requested, so this reports
// Granted whenever the command exists.
func (p *ExecProvider) Permission(ctx context.Context) (field.PermissionState, error) {
	if !p.Supported() {
		return field.PermissionUnknown, field.ErrUnsupported
	}
	return field.PermissionGranted, nil
}

type execOutput struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  float64 `json:"accuracy"`
}

// CurrentFix runs the command and parses its JSON output. HighAccuracy
// selects the GPS provider, otherwise the network provider.
func (p *ExecProvider) CurrentFix(ctx context.Context, opts field.FixOptions) (*field.Fix, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	args := append([]string(nil), p.args...)
	if p.command == defaultCommand && len(p.args) == 0 {
		source := "network"
		if opts.HighAccuracy {
			source = "gps"
		}
		args = []string{"-p", source}
	}

	cmd := exec.CommandContext(ctx, p.command, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	p.logger.Debug("requesting fix", "command", p.command, "args", args)
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, field.ErrLocationTimeout
		}
		return nil, classifyExecError(err, stderr.String())
	}

	var out execOutput
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		return nil, fmt.Errorf("%w: parsing %s output: %v", field.ErrPositionUnavailable, p.command, err)
	}
	if out.Latitude == 0 && out.Longitude == 0 {
		return nil, field.ErrPositionUnavailable
	}

	return &field.Fix{
		Latitude:  out.Latitude,
		Longitude: out.Longitude,
		AccuracyM: out.Accuracy,
		At:        p.clock.Now(),
	}, nil
}

func classifyExecError(err error, stderr string) error {
	lower := strings.ToLower(stderr)
	switch {
	case strings.Contains(lower, "permission") || strings.Contains(lower, "denied"):
		return field.ErrPermissionDenied
	case strings.Contains(lower, "disabled") || strings.Contains(lower, "unavailable"):
		return field.ErrPositionUnavailable
	default:
		return fmt.Errorf("%w: %v", field.ErrPositionUnavailable, err)
	}
}
