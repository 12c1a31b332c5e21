// Package dependence estimates the cross-asset dependence structure via an
// exponentially weighted covariance recursion.
package dependence

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/tasoulis/riskbench/internal/modules/returns"
)

// DefaultLambda is the RiskMetrics daily decay factor.
const DefaultLambda = 0.94

// ewmaSeedWindow is the number of initial observations whose sample
// covariance seeds the recursion.
const ewmaSeedWindow = 30

// volFloor guards correlation scaling against zero-variance assets.
const volFloor = 1e-12

// Matrix is the dependence estimate at the panel's final date: covariance,
// derived correlation, and per-asset daily vols, in panel column order.
type Matrix struct {
	Assets []string
	Cov    *mat.SymDense
	Corr   *mat.SymDense
	Vols   []float64
}

// EWMACovariance computes the time-decayed covariance matrix
// S_t = lambda*S_{t-1} + (1-lambda)*r_t r_t^T, seeded with the sample
// covariance of the first min(30, T) observations. Larger lambda means
// slower decay and longer effective memory.
func EWMACovariance(p *returns.Panel, lambda float64) (*Matrix, error) {
	if lambda <= 0 || lambda >= 1 {
		return nil, fmt.Errorf("decay factor lambda=%g outside (0,1)", lambda)
	}
	bigT, n := p.T(), p.N()
	if bigT < 2 {
		return nil, fmt.Errorf("need at least 2 observations for covariance, got %d", bigT)
	}

	seedWindow := ewmaSeedWindow
	if bigT < seedWindow {
		seedWindow = bigT
	}

	full := p.Matrix()
	seed := full.Slice(0, seedWindow, 0, n)

	cov := mat.NewSymDense(n, nil)
	stat.CovarianceMatrix(cov, seed, nil)

	// Recursion over the remaining observations, in plain index form: the
	// update touches every (i,j) pair anyway.
	s := make([][]float64, n)
	for i := range s {
		s[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			s[i][j] = cov.At(i, j)
		}
	}
	for t := seedWindow; t < bigT; t++ {
		r := p.Row(t)
		for i := 0; i < n; i++ {
			for j := i; j < n; j++ {
				v := lambda*s[i][j] + (1-lambda)*r[i]*r[j]
				s[i][j] = v
				s[j][i] = v
			}
		}
	}
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			cov.SetSym(i, j, s[i][j])
		}
	}

	corr, vols := covToCorr(cov)
	return &Matrix{
		Assets: p.Assets(),
		Cov:    cov,
		Corr:   corr,
		Vols:   vols,
	}, nil
}

// covToCorr scales a covariance matrix to a correlation matrix, flooring
// zero variances so degenerate assets do not divide by zero.
func covToCorr(cov *mat.SymDense) (*mat.SymDense, []float64) {
	n := cov.SymmetricDim()
	vols := make([]float64, n)
	for i := 0; i < n; i++ {
		v := math.Sqrt(cov.At(i, i))
		if v < volFloor {
			v = volFloor
		}
		vols[i] = v
	}

	corr := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			if i == j {
				corr.SetSym(i, j, 1.0)
				continue
			}
			corr.SetSym(i, j, cov.At(i, j)/(vols[i]*vols[j]))
		}
	}
	return corr, vols
}

// CholeskyCorr factorizes the correlation matrix. A factorization failure
// means the estimate is not positive definite and anything downstream
// (copula simulation in particular) must not run; callers wanting to
// continue need to regularize the correlations and rebuild.
func (m *Matrix) CholeskyCorr() (*mat.Cholesky, error) {
	var chol mat.Cholesky
	if ok := chol.Factorize(m.Corr); !ok {
		return nil, fmt.Errorf("correlation matrix is not positive definite (%d assets); regularize before simulating", len(m.Assets))
	}
	return &chol, nil
}
