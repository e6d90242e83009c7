package mirror

import (
	"context"
	"fmt"
	"os"

	"github.com/mediamirror/mediamirror/internal/classify"
)

// status tags the result of a transformation attempt. Soft outcomes route
// to the copier; they never abort the run. Keeping the routing a pure
// function of this tag (rather than branching on error values) is what
// keeps the fallback decision explicit.
type status int

const (
	statusConverted     status = iota // staged encode accepted
	statusRejected                    // encode succeeded but did not shrink enough
	statusFailed                      // every encoder tier failed
	statusNotApplicable               // no strategy for this kind
)

type outcome struct {
	status  status
	newSize int64 // staged size, set when status is statusConverted
	err     error // failure cause, or the hardware diagnostic behind a retry
	retried bool  // hardware tier failed and the software tier ran
}

// convert attempts the shrink strategy for kind, writing to staging, and
// applies the acceptance policy to the result.
func (m *mirrorer) convert(ctx context.Context, kind classify.Kind, src, staging string, origSize int64) outcome {
	var (
		encErr  error
		diag    error
		retried bool
	)

	switch kind {
	case classify.Image:
		if m.cfg.Images == nil {
			return outcome{status: statusNotApplicable}
		}
		encErr = m.cfg.Images.Encode(ctx, src, staging)

	case classify.Video:
		if m.cfg.Videos == nil {
			return outcome{status: statusNotApplicable}
		}
		encErr = m.videoEncode(ctx, src, staging, &diag, &retried)

	default:
		return outcome{status: statusNotApplicable}
	}

	if encErr != nil {
		return outcome{status: statusFailed, err: encErr, retried: retried}
	}

	info, err := os.Stat(staging)
	if err != nil {
		return outcome{status: statusFailed, err: fmt.Errorf("encoder produced no output: %w", err), retried: retried}
	}

	// Acceptance policy: a conversion is only worth its irreversible
	// quality loss if it shrank the file below the configured fraction of
	// the original.
	if float64(info.Size()) > m.cfg.AcceptRatio*float64(origSize) {
		return outcome{status: statusRejected, err: diag, retried: retried}
	}
	return outcome{status: statusConverted, newSize: info.Size(), err: diag, retried: retried}
}

// videoEncode runs the two-tier video strategy. Hardware paths fail in
// environment-dependent ways a software encode does not, so a hardware
// failure earns exactly one downgrade retry against the same source and
// staging path. There is no third tier.
func (m *mirrorer) videoEncode(ctx context.Context, src, staging string, diag *error, retried *bool) error {
	if !m.cfg.UseHWAccel {
		return m.cfg.Videos.Encode(ctx, src, staging, false)
	}

	hwErr := m.cfg.Videos.Encode(ctx, src, staging, true)
	if hwErr == nil {
		return nil
	}
	if ctx.Err() != nil {
		return hwErr
	}

	*retried = true
	if swErr := m.cfg.Videos.Encode(ctx, src, staging, false); swErr != nil {
		return fmt.Errorf("software retry after %v: %w", hwErr, swErr)
	}
	*diag = hwErr
	return nil
}
