package main

import (
	"errors"
	"fmt"
	"math"
	"os"
	"text/tabwriter"
	"time"

	"github.com/guptarohit/asciigraph"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/notargets/espoisson/boundary"
	"github.com/notargets/espoisson/config"
	"github.com/notargets/espoisson/grid"
	"github.com/notargets/espoisson/multigrid"
	"github.com/notargets/espoisson/operator"
	"github.com/notargets/espoisson/solver"
)

var (
	configFile string
	preset     string
	gridSize   int
	hSize      float64
	charge     float64
	method     string
	tolerance  float64
	maxIter    int
	weight     float64
	plotWidth  int
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "espoisson",
		Short: "electrostatic Poisson solver on a uniform cubical grid",
	}

	solveCmd := &cobra.Command{
		Use:   "solve",
		Short: "solve a point-charge Neumann problem",
		RunE:  runSolve,
	}
	compareCmd := &cobra.Command{
		Use:   "compare",
		Short: "run every solver on the same problem and compare against the direct solve",
		RunE:  runCompare,
	}

	for _, cmd := range []*cobra.Command{solveCmd, compareCmd} {
		cmd.Flags().StringVar(&configFile, "config", "", "yaml config file")
		cmd.Flags().StringVar(&preset, "preset", "", "named preset (validation, benchmark)")
		cmd.Flags().IntVar(&gridSize, "grid-size", 0, "lattice resolution")
		cmd.Flags().Float64Var(&hSize, "h", 0, "cell edge length")
		cmd.Flags().Float64Var(&charge, "charge", 1, "enclosed point charge")
		cmd.Flags().Float64Var(&tolerance, "tolerance", 0, "relative residual stop threshold")
		cmd.Flags().IntVar(&maxIter, "max-iterations", 0, "iteration budget")
		cmd.Flags().Float64Var(&weight, "weight", 0, "Jacobi relaxation weight")
		cmd.Flags().IntVar(&plotWidth, "plot-width", 60, "residual plot width")
	}
	solveCmd.Flags().StringVar(&method, "method", "", "jacobi, gauss-seidel, gauss-seidel-rb, steepest-descent, cg or multigrid")

	rootCmd.AddCommand(solveCmd, compareCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var c *config.Config
	var err error
	switch {
	case configFile != "":
		c, err = config.Load(configFile)
	case preset != "":
		c, err = config.Preset(preset)
	default:
		c = config.Default()
	}
	if err != nil {
		return nil, err
	}
	if gridSize > 0 {
		c.GridSize = gridSize
	}
	if hSize > 0 {
		c.H = hSize
	}
	if cmd.Flags().Changed("charge") {
		c.Charge = charge
	}
	if method != "" {
		c.Method = method
	}
	if tolerance > 0 {
		c.Tolerance = tolerance
	}
	if maxIter > 0 {
		c.MaxIterations = maxIter
		c.Multigrid.MaxCycles = maxIter
	}
	if weight > 0 {
		c.RelaxationWeight = weight
	}
	return c, nil
}

// problem assembles the point-charge model: flux field on the domain
// boundary, and a charge density of 4*pi*Q/H^3 concentrated in the
// cell(s) containing the domain center.
func problem(c *config.Config) (grid.Grid, *boundary.FluxField, []float64, [3]float64, error) {
	g, err := grid.New(c.GridSize, c.H)
	if err != nil {
		return grid.Grid{}, nil, nil, [3]float64{}, err
	}
	half := float64(g.Size) * g.H / 2
	nucleus := [3]float64{half, half, half}

	flux, err := boundary.Build(g, nucleus, c.Charge)
	if err != nil {
		return grid.Grid{}, nil, nil, [3]float64{}, err
	}

	density := make([]float64, g.NumCells())
	total := 4 * math.Pi * c.Charge / g.CellVolume()
	if g.Size%2 == 1 {
		mid := g.Size / 2
		density[g.CellID(mid, mid, mid)] = total
	} else {
		// Even lattice: the center is a cell corner. Spread the
		// source over the eight surrounding cells.
		lo := g.Size/2 - 1
		for dz := 0; dz < 2; dz++ {
			for dy := 0; dy < 2; dy++ {
				for dx := 0; dx < 2; dx++ {
					density[g.CellID(lo+dx, lo+dy, lo+dz)] = total / 8
				}
			}
		}
	}
	return g, flux, density, nucleus, nil
}

func runSolve(cmd *cobra.Command, args []string) error {
	c, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	g, flux, density, nucleus, err := problem(c)
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"grid":    g.Size,
		"h":       g.H,
		"charge":  c.Charge,
		"nucleus": nucleus,
		"gauss":   flux.SurfaceIntegral(),
	}).Info("problem assembled")

	var (
		phi     []float64
		history []float64
		label   string
	)
	start := time.Now()
	if c.Method == string(multigrid.MethodName) {
		hier, err := multigrid.NewHierarchy(g, nucleus, c.Charge, c.Multigrid.CoarsestSize, multigrid.BoundaryPolicy(c.Multigrid.BoundaryPolicy))
		if err != nil {
			return err
		}
		var st multigrid.Stats
		phi, st, err = multigrid.Solve(hier, density, c.MultigridOptions())
		if err != nil {
			var nc *solver.ConvergenceError
			if !errors.As(err, &nc) {
				return err
			}
			log.Warn(err)
		}
		history = st.ResidualHistory
		label = fmt.Sprintf("multigrid: %d cycles, %d smoothing sweeps, residual %.3e",
			st.Iterations, st.SmoothingSweeps, st.FinalResidual)
	} else {
		m, err := solver.ParseMethod(c.Method)
		if err != nil {
			return err
		}
		st, err := operator.NewStencil(g, flux)
		if err != nil {
			return err
		}
		var stats solver.Stats
		phi, stats, err = solver.Solve(m, st, density, c.SolverOptions())
		if err != nil {
			var nc *solver.ConvergenceError
			if !errors.As(err, &nc) {
				return err
			}
			log.Warn(err)
		}
		history = stats.ResidualHistory
		label = fmt.Sprintf("%s: %d iterations, residual %.3e", m, stats.Iterations, stats.FinalResidual)
	}
	log.WithField("elapsed", time.Since(start)).Info(label)

	fmt.Println(residualPlot(history))
	printPotentialProfile(g, phi)
	return nil
}

func runCompare(cmd *cobra.Command, args []string) error {
	c, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	g, flux, density, nucleus, err := problem(c)
	if err != nil {
		return err
	}
	st, err := operator.NewStencil(g, flux)
	if err != nil {
		return err
	}

	a, err := operator.AssembleDense(g, flux)
	if err != nil {
		return err
	}
	if worst, ok := operator.Equivalent(a, st, density, 1e-10); !ok {
		log.Warnf("dense and stencil operators disagree by %.3e", worst)
	}
	ref, err := solver.Direct(g, a, density)
	if err != nil {
		return err
	}
	log.Infof("direct reference solved, %d unknowns", g.NumCells())

	w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "method\titerations\tresidual\tvs direct\t")
	for _, m := range solver.Methods {
		phi, stats, err := solver.Solve(m, st, density, c.SolverOptions())
		if err != nil {
			var nc *solver.ConvergenceError
			if !errors.As(err, &nc) {
				return err
			}
			log.Warn(err)
		}
		fmt.Fprintf(w, "%s\t%d\t%.3e\t%.3e\t\n", m, stats.Iterations, stats.FinalResidual, maxShiftedDeviation(phi, ref))
	}

	if hier, err := multigrid.NewHierarchy(g, nucleus, c.Charge, c.Multigrid.CoarsestSize, multigrid.BoundaryPolicy(c.Multigrid.BoundaryPolicy)); err != nil {
		log.WithError(err).Warn("skipping multigrid")
	} else {
		phi, stats, err := multigrid.Solve(hier, density, c.MultigridOptions())
		if err != nil {
			var nc *solver.ConvergenceError
			if !errors.As(err, &nc) {
				return err
			}
			log.Warn(err)
		}
		fmt.Fprintf(w, "%s\t%d\t%.3e\t%.3e\t\n", multigrid.MethodName, stats.Iterations, stats.FinalResidual, maxShiftedDeviation(phi, ref))
	}
	return w.Flush()
}

// residualPlot renders the residual history on a log10 axis.
func residualPlot(history []float64) string {
	if len(history) < 2 {
		return ""
	}
	logs := make([]float64, len(history))
	for i, r := range history {
		if r <= 0 {
			r = math.SmallestNonzeroFloat64
		}
		logs[i] = math.Log10(r)
	}
	return asciigraph.Plot(logs,
		asciigraph.Height(12),
		asciigraph.Width(plotWidth),
		asciigraph.Caption("log10 residual per iteration"))
}

// printPotentialProfile prints the potential along the x axis through
// the domain center row.
func printPotentialProfile(g grid.Grid, phi []float64) {
	mid := g.Size / 2
	fmt.Println("potential along center x row:")
	for ix := 0; ix < g.Size; ix++ {
		fmt.Printf("  cell (%d,%d,%d): %+.6e\n", ix, mid, mid, phi[g.CellID(ix, mid, mid)])
	}
}

// maxShiftedDeviation compares two potential fields modulo the Neumann
// gauge constant: both are shifted to zero mean first.
func maxShiftedDeviation(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return math.NaN()
	}
	var ma, mb float64
	for i := range a {
		ma += a[i]
		mb += b[i]
	}
	ma /= float64(len(a))
	mb /= float64(len(b))
	var worst float64
	for i := range a {
		d := math.Abs((a[i] - ma) - (b[i] - mb))
		if d > worst {
			worst = d
		}
	}
	return worst
}
