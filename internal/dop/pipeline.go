package dop

import (
	"log"
	"math"
	"time"

	"github.com/google/uuid"
)

// HeadConfig describes one physical head for a processing run: its beams,
// the enabled carrier frequencies, the acquisition scalars, and the range
// axis shared by every beam.
type HeadConfig struct {
	Name      string
	Beams     []Beam
	Freqs     []float64
	Acq       Acquisition
	RangeAxis []float64
}

// ProcessOptions bundles the per-stage options for a head run.
type ProcessOptions struct {
	Unwrap    UnwrapOptions
	Inversion InversionOptions
	// Workers bounds the beam-level worker pool; <= 0 means one per CPU.
	Workers int
}

// DefaultProcessOptions returns the standard pipeline configuration.
func DefaultProcessOptions() ProcessOptions {
	return ProcessOptions{
		Unwrap:    DefaultUnwrapOptions(),
		Inversion: DefaultInversionOptions(),
	}
}

// RunSummary reports what a processing run did: identity, sizes, and the
// per-beam data-quality counters that stand in for per-pixel errors.
type RunSummary struct {
	RunID  string
	Head   string
	Beams  int
	Pixels int
	// InvalidPixels counts quality-rejected pixels per beam name.
	InvalidPixels map[string]int
	// MeanIterations is the average IRLS iteration count across all
	// unwrapped pixels of all beams.
	MeanIterations float64
	Elapsed        time.Duration
}

// HeadResult is the full output of ProcessHead.
type HeadResult struct {
	// Unwrap holds the per-beam unwrapping results, input order. A beam
	// whose unwrap failed outright has a nil entry and NaN-equivalent
	// absence in the downstream products.
	Unwrap []*UnwrapResult
	// Cartesian is set for multi-beam heads, Scalar for single-beam ones.
	Cartesian *InversionResult
	Scalar    *SingleBeamResult
	Summary   RunSummary
}

// ProcessHead runs the full pipeline for one head: fan the phase unwrapper
// out across beams on a worker pool, then geometrically invert (multi-beam)
// or reduce (single beam) the unwrapped phase into the final velocity
// series.
//
// Configuration problems are returned immediately as ConfigError or
// GeometryError. A failure confined to one beam does not abort the others:
// that beam's rows simply vanish from the inversion and the summary
// records the loss. logger may be nil for log.Default().
func ProcessHead(cfg HeadConfig, phase, correl []*Cube, opts ProcessOptions, logger *log.Logger) (*HeadResult, error) {
	if logger == nil {
		logger = log.Default()
	}
	if len(cfg.Beams) == 0 {
		return nil, configErrorf("head %q has no beams", cfg.Name)
	}
	if len(phase) != len(cfg.Beams) {
		return nil, configErrorf("head %q: %d beams but %d phase cubes", cfg.Name, len(cfg.Beams), len(phase))
	}
	if correl != nil && len(correl) != len(cfg.Beams) {
		return nil, configErrorf("head %q: %d beams but %d correlation cubes", cfg.Name, len(cfg.Beams), len(correl))
	}

	start := time.Now()
	res := &HeadResult{
		Unwrap: make([]*UnwrapResult, len(cfg.Beams)),
		Summary: RunSummary{
			RunID:         uuid.New().String(),
			Head:          cfg.Name,
			Beams:         len(cfg.Beams),
			InvalidPixels: make(map[string]int, len(cfg.Beams)),
		},
	}

	// Unwrap each beam on the pool; beams are independent work units.
	errs := make([]error, len(cfg.Beams))
	parallelFor(len(cfg.Beams), opts.Workers, func(i int) {
		c := (*Cube)(nil)
		if correl != nil {
			c = correl[i]
		}
		res.Unwrap[i], errs[i] = UnwrapBeam(phase[i], c, cfg.Freqs, cfg.Acq, opts.Unwrap)
	})

	// A config error on any beam is a config error for the run; the beams
	// share one frequency plan and acquisition setup.
	for i, err := range errs {
		if err != nil {
			return nil, configErrorf("head %q beam %q: %v", cfg.Name, cfg.Beams[i].Name, err)
		}
	}

	var iterSum, iterN float64
	for i, uw := range res.Unwrap {
		res.Summary.Pixels = uw.Velocity.R * uw.Velocity.T
		res.Summary.InvalidPixels[cfg.Beams[i].Name] = uw.InvalidCount
		for r := 0; r < uw.Iterations.R; r++ {
			for t := 0; t < uw.Iterations.T; t++ {
				iterSum += float64(uw.Iterations.At(r, t))
				iterN++
			}
		}
	}
	if iterN > 0 {
		res.Summary.MeanIterations = iterSum / iterN
	}

	unwrapped := make([]*Cube, len(cfg.Beams))
	for i, uw := range res.Unwrap {
		unwrapped[i] = uw.Phase
	}

	var err error
	if len(cfg.Beams) > 1 {
		inv := opts.Inversion
		if inv.Workers == 0 {
			inv.Workers = opts.Workers
		}
		res.Cartesian, err = InvertHead(cfg.Beams, unwrapped, correl, cfg.Freqs, cfg.Acq, cfg.RangeAxis, inv)
	} else {
		res.Scalar, err = ReduceSingleBeam(cfg.Beams[0], unwrapped[0], correlOrNil(correl, 0), cfg.Freqs, cfg.Acq, opts.Inversion.Nave)
	}
	if err != nil {
		return nil, err
	}

	res.Summary.Elapsed = time.Since(start)
	logSummary(logger, res.Summary)
	return res, nil
}

func correlOrNil(correl []*Cube, i int) *Cube {
	if correl == nil {
		return nil
	}
	return correl[i]
}

func logSummary(logger *log.Logger, s RunSummary) {
	invalid := 0
	for _, n := range s.InvalidPixels {
		invalid += n
	}
	logger.Printf("run %s head=%s beams=%d pixels=%d invalid=%d mean_iters=%.2f elapsed=%s",
		s.RunID, s.Head, s.Beams, s.Pixels, invalid, s.MeanIterations, s.Elapsed)
}

// NaNFraction is a convenience diagnostic: the fraction of NaN cells in a
// field, as reported in run summaries and by the CLI.
func NaNFraction(f *Field) float64 {
	if f == nil || f.R*f.T == 0 {
		return math.NaN()
	}
	return 1 - float64(f.CountFinite())/float64(f.R*f.T)
}
