// Command gmmscore inspects the scoring runtime and exercises the scorer.
package main

import (
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"

	"github.com/matthias-wolff/gmmscore"
	"github.com/matthias-wolff/gmmscore/config"
	"github.com/matthias-wolff/gmmscore/covariance"
	"github.com/matthias-wolff/gmmscore/gmm"
	"github.com/matthias-wolff/gmmscore/internal/blas"
	"github.com/matthias-wolff/gmmscore/internal/simd"
	"github.com/matthias-wolff/gmmscore/table"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "gmmscore",
		Short:         "Gaussian mixture model scoring engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().String("config", getEnvStr("GMMSCORE_CONFIG", ""), "YAML configuration file")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "info",
		Short: "Print SIMD runtime information and the effective configuration",
		RunE:  runInfo,
	})

	densityCmd := &cobra.Command{
		Use:   "density",
		Short: "Score one vector against a diagonal Gaussian",
		RunE:  runDensity,
	}
	densityCmd.Flags().String("mean", "0,0", "comma separated mean vector")
	densityCmd.Flags().String("var", "1,1", "comma separated variances")
	densityCmd.Flags().String("x", "0,0", "comma separated feature vector")
	densityCmd.Flags().String("mode", "density", "mdist, logdensity, neglogdensity or density")
	rootCmd.AddCommand(densityCmd)

	benchCmd := &cobra.Command{
		Use:   "bench",
		Short: "Time batch scoring on a random tied full-covariance model",
		RunE:  runBench,
	}
	benchCmd.Flags().Int("dim", getEnvInt("GMMSCORE_BENCH_DIM", 24), "feature dimension")
	benchCmd.Flags().Int("gaussians", getEnvInt("GMMSCORE_BENCH_GAUSSIANS", 256), "number of Gaussians")
	benchCmd.Flags().Int("classes", getEnvInt("GMMSCORE_BENCH_CLASSES", 16), "number of covariance classes")
	benchCmd.Flags().Int("rows", getEnvInt("GMMSCORE_BENCH_ROWS", 1000), "feature vectors per batch")
	benchCmd.Flags().Int("iters", getEnvInt("GMMSCORE_BENCH_ITERS", 10), "batches to time")
	benchCmd.Flags().Int64("seed", 42, "random seed")
	rootCmd.AddCommand(benchCmd)
	return rootCmd
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadFromFile(path)
	if err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

func runInfo(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	info := simd.Info()
	fmt.Fprintf(out, "SIMD implementation: %s\n", info.Implementation)
	fmt.Fprintf(out, "SIMD accelerated:    %v\n", info.Accelerated)
	fmt.Fprintf(out, "BLAS Accelerate:     %v\n", blas.HasAccelerate())
	if len(info.Features) > 0 {
		fmt.Fprintf(out, "CPU features:        %s\n", strings.Join(info.Features, " "))
	}
	fmt.Fprintln(out)
	fmt.Fprint(out, cfg.String())
	return nil
}

func runDensity(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	mean, err := floatList(cmd, "mean")
	if err != nil {
		return err
	}
	variance, err := floatList(cmd, "var")
	if err != nil {
		return err
	}
	x, err := floatList(cmd, "x")
	if err != nil {
		return err
	}
	name, _ := cmd.Flags().GetString("mode")
	mode, err := gmm.ParseMode(name)
	if err != nil {
		return err
	}

	if cfg.Evaluation.Precision == "float32" {
		return density[float32](cmd, cfg, mean, variance, x, mode)
	}
	return density[float64](cmd, cfg, mean, variance, x, mode)
}

func density[F gmm.Float](cmd *cobra.Command, cfg *config.Config, mean, variance, x []float64, mode gmm.Mode) error {
	s, err := gmmscore.NewScorer[F](cfg, [][]float64{mean},
		covariance.Diagonal([][]float64{variance}), nil, false)
	if err != nil {
		return err
	}
	xf := make([]F, len(x))
	for i, v := range x {
		xf[i] = F(v)
	}
	v, err := s.Evaluate(xf, 0, mode)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s = %g\n", cfg.Evaluation.Precision, mode, float64(v))
	return nil
}

func runBench(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Evaluation.Precision == "float32" {
		return bench[float32](cmd, cfg)
	}
	return bench[float64](cmd, cfg)
}

func bench[F gmm.Float](cmd *cobra.Command, cfg *config.Config) error {
	dim, _ := cmd.Flags().GetInt("dim")
	k, _ := cmd.Flags().GetInt("gaussians")
	classes, _ := cmd.Flags().GetInt("classes")
	rows, _ := cmd.Flags().GetInt("rows")
	iters, _ := cmd.Flags().GetInt("iters")
	seed, _ := cmd.Flags().GetInt64("seed")
	if dim <= 0 || k <= 0 || classes <= 0 || classes > k || rows <= 0 || iters <= 0 {
		return errors.Errorf("bench: invalid sizes dim=%d gaussians=%d classes=%d rows=%d iters=%d",
			dim, k, classes, rows, iters)
	}

	rng := rand.New(rand.NewSource(seed))
	set := covariance.Set{Matrices: make([]*mat.SymDense, classes)}
	for c := range set.Matrices {
		set.Matrices[c] = randomSPD(rng, dim)
	}
	means := make([][]float64, k)
	cmap := make([]int, k)
	for i := range means {
		means[i] = randomVec(rng, dim)
		cmap[i] = i % classes
	}

	start := time.Now()
	s, err := gmmscore.NewScorer[F](cfg, means, set, cmap, false)
	if err != nil {
		return err
	}
	info := s.Info()
	fmt.Fprintf(cmd.ErrOrStderr(), "precalculated %d Gaussians (%d classes, dim %d) in %v, kernel %s, term cache %v\n",
		info.Gaussians, info.Classes, info.Dim, time.Since(start), info.Kernel, info.TermCache)

	data := make([]F, rows*dim)
	for i := range data {
		data[i] = F(rng.NormFloat64())
	}
	x := table.NewDense(rows, dim, data)

	var total time.Duration
	for it := 0; it < iters; it++ {
		t0 := time.Now()
		if _, err := s.EvaluateBatch(x, nil, gmm.NegLogDensity); err != nil {
			return err
		}
		el := time.Since(t0)
		total += el
		fmt.Fprintf(cmd.ErrOrStderr(), "  batch %d/%d: %v\n", it+1, iters, el)
	}
	pairs := float64(rows) * float64(k) * float64(iters)
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %.1f ns/score, %.2f Mscores/s\n", info.Kernel, cfg.Evaluation.Precision,
		float64(total.Nanoseconds())/pairs, pairs/total.Seconds()/1e6)
	return nil
}

func randomSPD(rng *rand.Rand, n int) *mat.SymDense {
	b := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			b.Set(i, j, rng.NormFloat64())
		}
	}
	s := mat.NewSymDense(n, nil)
	s.SymOuterK(1/float64(n), b)
	for i := 0; i < n; i++ {
		s.SetSym(i, i, s.At(i, i)+1)
	}
	return s
}

func randomVec(rng *rand.Rand, n int) []float64 {
	v := make([]float64, n)
	for i := range v {
		v[i] = rng.NormFloat64()
	}
	return v
}

func floatList(cmd *cobra.Command, name string) ([]float64, error) {
	s, _ := cmd.Flags().GetString(name)
	parts := strings.Split(s, ",")
	out := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, errors.Wrapf(err, "--%s", name)
		}
		out[i] = v
	}
	return out, nil
}

func getEnvStr(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}
