package scheduler

import (
	"context"
	"time"

	"github.com/tasoulis/riskbench/internal/modules/risk"
)

// refreshTimeout bounds one full recomputation, Monte Carlo included.
const refreshTimeout = 10 * time.Minute

// RiskRefreshJob recomputes the risk snapshot.
type RiskRefreshJob struct {
	svc *risk.Service
}

// NewRiskRefreshJob wraps the risk service as a scheduled job.
func NewRiskRefreshJob(svc *risk.Service) *RiskRefreshJob {
	return &RiskRefreshJob{svc: svc}
}

// Name implements Job.
func (j *RiskRefreshJob) Name() string {
	return "risk_refresh"
}

// Run implements Job.
func (j *RiskRefreshJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()

	_, err := j.svc.Refresh(ctx)
	return err
}
