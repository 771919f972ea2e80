package risk

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/EbinDavis252/Aqua-risk/internal/events"
	"github.com/EbinDavis252/Aqua-risk/internal/features"
	"github.com/EbinDavis252/Aqua-risk/internal/metrics"
	"github.com/EbinDavis252/Aqua-risk/internal/model"
	"github.com/EbinDavis252/Aqua-risk/internal/store"
	"github.com/EbinDavis252/Aqua-risk/internal/util"
)

const publishTimeout = 5 * time.Second

// Recorder persists assessment records. *store.Database satisfies it.
type Recorder interface {
	Append(record *store.ModelOutput) error
}

// Result is what a completed assessment reports back.
type Result struct {
	ID            string    `json:"id"`
	FarmerID      string    `json:"farmer_id"`
	FinancialRisk float64   `json:"financial_risk"`
	TechnicalRisk float64   `json:"technical_risk"`
	ResultTime    string    `json:"result_time"`
	RecordedAt    time.Time `json:"-"`
}

// Record converts the result to its stored form.
func (r Result) Record() store.ModelOutput {
	return store.ModelOutput{
		FarmerID:      r.FarmerID,
		FinancialRisk: r.FinancialRisk,
		TechnicalRisk: r.TechnicalRisk,
		ResultTime:    r.ResultTime,
	}
}

// PersistError reports scores that were computed but could not be recorded.
type PersistError struct {
	Result Result
	Err    error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("record assessment for %q: %v", e.Result.FarmerID, e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}

// Options tune an Assessor.
type Options struct {
	// Sequential scores the financial model before the technical one
	// instead of running both at once.
	Sequential bool
	Publisher  events.Publisher
	Now        func() time.Time
}

// Assessor runs the encode, score, round and record pipeline.
type Assessor struct {
	models     *model.Models
	recorder   Recorder
	publisher  events.Publisher
	sequential bool
	now        func() time.Time
	inflight   sync.WaitGroup
}

// NewAssessor wires the models and recorder used for every request.
func NewAssessor(models *model.Models, recorder Recorder, opts Options) (*Assessor, error) {
	if models == nil || models.Financial == nil || models.Technical == nil {
		return nil, errors.New("both risk models are required")
	}
	if recorder == nil {
		return nil, errors.New("recorder is required")
	}
	a := &Assessor{
		models:     models,
		recorder:   recorder,
		publisher:  opts.Publisher,
		sequential: opts.Sequential,
		now:        opts.Now,
	}
	if a.publisher == nil {
		a.publisher = events.Noop{}
	}
	if a.now == nil {
		a.now = time.Now
	}
	return a, nil
}

// Assess scores one request and appends it to the log. Scoring failures
// return before anything is written. A failed write returns *PersistError
// with the computed scores.
func (a *Assessor) Assess(ctx context.Context, req features.Request) (Result, error) {
	timer := util.StartTimer()
	id := uuid.NewString()
	farmerID := strings.TrimSpace(req.FarmerID)

	fin, tech := features.Encode(req)
	finRisk, techRisk, err := a.score(fin, tech)
	if err != nil {
		metrics.AssessmentsTotal.WithLabelValues(metrics.OutcomeScoringFailed).Inc()
		logrus.WithError(err).WithFields(logrus.Fields{
			"request_id": id,
			"farmer_id":  farmerID,
		}).Warn("risk scoring failed")
		return Result{}, err
	}

	at := a.now()
	result := Result{
		ID:            id,
		FarmerID:      farmerID,
		FinancialRisk: round3(finRisk),
		TechnicalRisk: round3(techRisk),
		ResultTime:    at.Format(store.ResultTimeLayout),
		RecordedAt:    at,
	}

	record := result.Record()
	if err := a.recorder.Append(&record); err != nil {
		metrics.AssessmentsTotal.WithLabelValues(metrics.OutcomePersistFailed).Inc()
		logrus.WithError(err).WithFields(logrus.Fields{
			"request_id":     id,
			"farmer_id":      farmerID,
			"financial_risk": result.FinancialRisk,
			"technical_risk": result.TechnicalRisk,
		}).Error("assessment not recorded")
		return result, &PersistError{Result: result, Err: err}
	}

	metrics.AssessmentsTotal.WithLabelValues(metrics.OutcomeRecorded).Inc()
	metrics.LastScore.WithLabelValues("financial").Set(result.FinancialRisk)
	metrics.LastScore.WithLabelValues("technical").Set(result.TechnicalRisk)
	metrics.AssessmentDuration.Observe(timer.ElapsedSeconds())

	a.publish(ctx, result)

	logrus.WithFields(logrus.Fields{
		"request_id":     id,
		"farmer_id":      farmerID,
		"financial_risk": result.FinancialRisk,
		"technical_risk": result.TechnicalRisk,
		"duration_ms":    timer.ElapsedMs(),
	}).Info("assessment recorded")
	return result, nil
}

func (a *Assessor) score(fin features.FinancialVector, tech features.TechnicalVector) (float64, float64, error) {
	var finRisk, techRisk float64
	scoreFinancial := func() error {
		p, err := observe("financial", a.models.Financial, fin.Slice())
		if err != nil {
			return fmt.Errorf("financial model: %w", err)
		}
		finRisk = p
		return nil
	}
	scoreTechnical := func() error {
		p, err := observe("technical", a.models.Technical, tech.Slice())
		if err != nil {
			return fmt.Errorf("technical model: %w", err)
		}
		techRisk = p
		return nil
	}

	if a.sequential {
		if err := scoreFinancial(); err != nil {
			return 0, 0, err
		}
		if err := scoreTechnical(); err != nil {
			return 0, 0, err
		}
		return finRisk, techRisk, nil
	}

	var g errgroup.Group
	g.Go(scoreFinancial)
	g.Go(scoreTechnical)
	if err := g.Wait(); err != nil {
		return 0, 0, err
	}
	return finRisk, techRisk, nil
}

func observe(name string, c model.Classifier, vector []float64) (float64, error) {
	timer := util.StartTimer()
	p, err := c.Score(vector)
	metrics.ScoringDuration.WithLabelValues(name).Observe(timer.ElapsedSeconds())
	if err != nil {
		return 0, err
	}
	if p < 0 || p > 1 {
		return 0, fmt.Errorf("probability %v outside [0,1]", p)
	}
	return p, nil
}

// publish hands the recorded result to the event sink in the background.
// The record is already durable, so failures are only logged.
func (a *Assessor) publish(ctx context.Context, result Result) {
	event := events.AssessmentEvent{
		Type:          events.TypeAssessmentRecorded,
		ID:            result.ID,
		FarmerID:      result.FarmerID,
		FinancialRisk: result.FinancialRisk,
		TechnicalRisk: result.TechnicalRisk,
		ResultTime:    result.ResultTime,
		OccurredAt:    result.RecordedAt.UTC(),
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	a.inflight.Add(1)
	go func() {
		defer a.inflight.Done()
		defer cancel()
		if err := a.publisher.Publish(pubCtx, event); err != nil {
			metrics.EventsPublished.WithLabelValues("error").Inc()
			logrus.WithError(err).WithField("request_id", result.ID).Warn("publish assessment event")
			return
		}
		metrics.EventsPublished.WithLabelValues("ok").Inc()
	}()
}

// Wait blocks until background event publishes have finished.
func (a *Assessor) Wait() {
	a.inflight.Wait()
}
