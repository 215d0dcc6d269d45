// Command mfdop-process runs the MFDop velocity pipeline end to end on a
// synthetic capture and prints the recovered Cartesian velocity with its
// uncertainty. It exists to exercise and demonstrate the processing chain;
// raw-capture ingestion and persistence live outside this repository.
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/banshee-data/mfdop/internal/config"
	"github.com/banshee-data/mfdop/internal/dop"
	"github.com/banshee-data/mfdop/internal/units"
	"github.com/banshee-data/mfdop/internal/version"
)

var (
	rangeBins  = flag.Int("range-bins", 10, "Number of range bins")
	timeSteps  = flag.Int("time-steps", 100, "Number of pings")
	freqsFlag  = flag.String("freqs", "300e3,500e3,700e3", "Comma-separated carrier frequencies (Hz)")
	soundSpeed = flag.Float64("sound-speed", 1500, "Sound speed (m/s)")
	pulseLen   = flag.Float64("pulse", 5e-4, "Pulse length (s)")
	pingIntvl  = flag.Float64("ping", 5e-4, "Ping interval (s)")
	rangeStart = flag.Float64("range-start", 0.2, "Range of the first bin (m)")
	rangeStep  = flag.Float64("range-step", 0.05, "Range bin spacing (m)")
	elevation  = flag.Float64("elevation", 25, "Outboard beam elevation from vertical (deg)")
	baseline   = flag.Float64("baseline", 0.1, "Outboard receiver baseline (m)")
	trueU      = flag.Float64("u", 0.2, "True u component (m/s)")
	trueV      = flag.Float64("v", -0.1, "True v component (m/s)")
	trueW      = flag.Float64("w", 0.05, "True w component (m/s)")
	correlPct  = flag.Float64("correl", 90, "Uniform correlation percentage")
	configPath = flag.String("config", "", "Optional processing config JSON")
	outUnits   = flag.String("units", units.CMPS, "Output units: "+units.GetValidUnitsString())
	hybrid     = flag.Bool("hybrid", false, "Enable hybrid high-frequency-anchored unwrapping")
	showVer    = flag.Bool("version", false, "Print version and exit")
)

// parseCSVFloatSlice parses a comma-separated list of floats
func parseCSVFloatSlice(s string) ([]float64, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid float '%s': %w", p, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func main() {
	flag.Parse()

	if *showVer {
		fmt.Printf("mfdop-process %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}

	if !units.IsValid(*outUnits) {
		log.Fatalf("invalid units %q, expected one of: %s", *outUnits, units.GetValidUnitsString())
	}
	freqs, err := parseCSVFloatSlice(*freqsFlag)
	if err != nil {
		log.Fatalf("invalid -freqs: %v", err)
	}
	if len(freqs) < 2 {
		log.Fatalf("need at least 2 frequencies, got %d", len(freqs))
	}

	opts := dop.DefaultProcessOptions()
	if *configPath != "" {
		cfg, err := config.LoadProcessingConfig(*configPath)
		if err != nil {
			log.Fatalf("config: %v", err)
		}
		opts = cfg.Options()
	}
	if *hybrid {
		opts.Unwrap.HybridMode = true
	}

	acq := dop.Acquisition{
		SoundSpeed:   *soundSpeed,
		PulseLength:  *pulseLen,
		PingInterval: *pingIntvl,
	}
	rangeAxis := make([]float64, *rangeBins)
	for i := range rangeAxis {
		rangeAxis[i] = *rangeStart + float64(i)**rangeStep
	}

	head := dop.HeadConfig{
		Name:      "main",
		Beams:     dop.MainHeadBeams(*elevation, *baseline),
		Freqs:     freqs,
		Acq:       acq,
		RangeAxis: rangeAxis,
	}
	phase, correl, err := dop.SynthHeadCapture(head.Beams, [3]float64{*trueU, *trueV, *trueW},
		freqs, acq, rangeAxis, *timeSteps, *correlPct,
		opts.Inversion.PitchDeg, opts.Inversion.RollDeg, opts.Inversion.YawDeg)
	if err != nil {
		log.Fatalf("synth: %v", err)
	}

	res, err := dop.ProcessHead(head, phase, correl, opts, nil)
	if err != nil {
		log.Fatalf("process: %v", err)
	}

	suffix := units.Suffix(*outUnits)
	fmt.Printf("true (u,v,w) = (%.3f, %.3f, %.3f) %s\n",
		units.ConvertVelocity(*trueU, *outUnits),
		units.ConvertVelocity(*trueV, *outUnits),
		units.ConvertVelocity(*trueW, *outUnits), suffix)

	u, su := fieldMean(res.Cartesian.U), fieldMean(res.Cartesian.StdU)
	v, sv := fieldMean(res.Cartesian.V), fieldMean(res.Cartesian.StdV)
	w, sw := fieldMean(res.Cartesian.W), fieldMean(res.Cartesian.StdW)
	fmt.Printf("recovered    = (%.3f, %.3f, %.3f) %s\n",
		units.ConvertVelocity(u, *outUnits),
		units.ConvertVelocity(v, *outUnits),
		units.ConvertVelocity(w, *outUnits), suffix)
	fmt.Printf("mean std     = (%.4f, %.4f, %.4f) %s\n",
		units.ConvertVelocity(su, *outUnits),
		units.ConvertVelocity(sv, *outUnits),
		units.ConvertVelocity(sw, *outUnits), suffix)
	fmt.Printf("nan fraction u=%.3f v=%.3f w=%.3f\n",
		dop.NaNFraction(res.Cartesian.U), dop.NaNFraction(res.Cartesian.V), dop.NaNFraction(res.Cartesian.W))

	if math.Abs(u-*trueU) > 0.01 || math.Abs(v-*trueV) > 0.01 || math.Abs(w-*trueW) > 0.01 {
		fmt.Println("warning: recovered velocity deviates from truth by more than 1 cm/s")
		os.Exit(1)
	}
}

// fieldMean returns the mean of the finite cells of f, or NaN.
func fieldMean(f *dop.Field) float64 {
	var sum float64
	n := 0
	for r := 0; r < f.R; r++ {
		for t := 0; t < f.T; t++ {
			if v := f.At(r, t); !math.IsNaN(v) {
				sum += v
				n++
			}
		}
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}
