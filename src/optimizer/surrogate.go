package optimizer

import (
	"fmt"
	"math"
	"math/rand"

	gaussian "github.com/chobie/go-gaussian"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// surrogate is a Gaussian-process regression over the unit hypercube,
// fitted to the observed trial objectives. It guides the search by scoring
// candidate points with expected improvement.
type surrogate struct {
	points      [][]float64
	alpha       *mat.VecDense
	chol        mat.Cholesky
	yMean       float64
	yScale      float64
	lengthScale float64
}

const (
	surrogateLengthScale = 0.3
	surrogateNoise       = 1e-4
)

var stdNormal = gaussian.NewGaussian(0, 1)

// fitSurrogate factorizes the kernel matrix for the observed points.
// Objectives are standardized first so the kernel hyperparameters do not
// depend on the magnitude of the objective.
func fitSurrogate(points [][]float64, objectives []float64) (*surrogate, error) {
	n := len(points)
	if n == 0 || n != len(objectives) {
		return nil, fmt.Errorf("surrogate: %d points for %d objectives", n, len(objectives))
	}

	yMean := stat.Mean(objectives, nil)
	yScale := stat.StdDev(objectives, nil)
	if yScale <= 0 || math.IsNaN(yScale) {
		yScale = 1
	}

	s := &surrogate{
		points:      points,
		yMean:       yMean,
		yScale:      yScale,
		lengthScale: surrogateLengthScale,
	}

	k := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := s.kernel(points[i], points[j])
			if i == j {
				v += surrogateNoise
			}
			k.SetSym(i, j, v)
		}
	}

	if ok := s.chol.Factorize(k); !ok {
		return nil, fmt.Errorf("surrogate: kernel matrix is not positive definite")
	}

	centered := mat.NewVecDense(n, nil)
	for i, y := range objectives {
		centered.SetVec(i, (y-yMean)/yScale)
	}

	s.alpha = mat.NewVecDense(n, nil)
	if err := s.chol.SolveVecTo(s.alpha, centered); err != nil {
		return nil, fmt.Errorf("surrogate: solve: %w", err)
	}

	return s, nil
}

func (s *surrogate) kernel(a, b []float64) float64 {
	var sq float64
	for i := range a {
		d := a[i] - b[i]
		sq += d * d
	}
	return math.Exp(-sq / (2 * s.lengthScale * s.lengthScale))
}

// predict returns the posterior mean and standard deviation at a point, in
// the objective's original units.
func (s *surrogate) predict(point []float64) (mean, std float64) {
	n := len(s.points)
	kv := mat.NewVecDense(n, nil)
	for i, p := range s.points {
		kv.SetVec(i, s.kernel(point, p))
	}

	mean = s.yMean + s.yScale*mat.Dot(kv, s.alpha)

	solved := mat.NewVecDense(n, nil)
	if err := s.chol.SolveVecTo(solved, kv); err != nil {
		return mean, s.yScale
	}

	variance := 1 + surrogateNoise - mat.Dot(kv, solved)
	if variance < 1e-12 {
		variance = 1e-12
	}
	std = math.Sqrt(variance) * s.yScale

	return mean, std
}

// expectedImprovement scores how much a point is expected to improve on the
// best observed objective, under minimization.
func (s *surrogate) expectedImprovement(point []float64, best float64) float64 {
	mean, std := s.predict(point)
	if std <= 0 {
		return 0
	}

	improvement := best - mean
	z := improvement / std
	return improvement*stdNormal.Cdf(z) + std*stdNormal.Pdf(z)
}

// suggest picks the candidate with the highest expected improvement from a
// random pool. Falls back to a uniform random point when the pool is empty.
func (s *surrogate) suggest(rng *rand.Rand, dims, pool int, best float64) []float64 {
	var bestPoint []float64
	bestEI := math.Inf(-1)

	for c := 0; c < pool; c++ {
		candidate := randomUnitPoint(rng, dims)
		if ei := s.expectedImprovement(candidate, best); ei > bestEI {
			bestEI = ei
			bestPoint = candidate
		}
	}

	if bestPoint == nil {
		bestPoint = randomUnitPoint(rng, dims)
	}
	return bestPoint
}

func randomUnitPoint(rng *rand.Rand, dims int) []float64 {
	point := make([]float64, dims)
	for i := range point {
		point[i] = rng.Float64()
	}
	return point
}
