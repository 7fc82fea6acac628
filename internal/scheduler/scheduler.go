package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/mamadbah2/stockbook/internal/config"
	"github.com/mamadbah2/stockbook/internal/domain/models"
	"github.com/mamadbah2/stockbook/pkg/clients/webhook"
)

// ReportSource builds the daily summary of a tenant.
type ReportSource interface {
	DailyReport(ctx context.Context, tenantID string) (models.DailyReport, error)
}

// TenantLister enumerates tenants when none are configured.
type TenantLister interface {
	ListTenants(ctx context.Context) ([]string, error)
}

// ReportSink archives a daily report (MongoDB collection, spreadsheet).
type ReportSink interface {
	SaveDailyReport(ctx context.Context, report models.DailyReport) error
}

// ReportObserver counts archived reports.
type ReportObserver interface {
	ObserveReport(err error)
}

// Scheduler manages scheduled tasks.
type Scheduler struct {
	cron     *cron.Cron
	source   ReportSource
	tenants  TenantLister
	sinks    []ReportSink
	notifier webhook.Notifier
	observer ReportObserver
	cfg      config.ReportingConfig
	logger   *zap.Logger
}

// Options carries the optional collaborators of the scheduler.
type Options struct {
	Sinks    []ReportSink
	Notifier webhook.Notifier
	Observer ReportObserver
}

// NewScheduler creates a new scheduler instance running in the configured timezone.
func NewScheduler(cfg config.ReportingConfig, source ReportSource, tenants TenantLister, opts Options, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	loc := time.UTC
	if cfg.Timezone != "" {
		var err error
		if loc, err = time.LoadLocation(cfg.Timezone); err != nil {
			return nil, fmt.Errorf("load timezone %s: %w", cfg.Timezone, err)
		}
	}

	return &Scheduler{
		cron:     cron.New(cron.WithLocation(loc)),
		source:   source,
		tenants:  tenants,
		sinks:    opts.Sinks,
		notifier: opts.Notifier,
		observer: opts.Observer,
		cfg:      cfg,
		logger:   logger,
	}, nil
}

// Start registers the daily report job and starts the scheduler.
func (s *Scheduler) Start() error {
	s.logger.Info("starting scheduler", zap.String("schedule", s.cfg.CronSchedule))

	if _, err := s.cron.AddFunc(s.cfg.CronSchedule, s.runDailyReports); err != nil {
		return fmt.Errorf("schedule daily report: %w", err)
	}

	s.cron.Start()
	return nil
}

// Stop stops the scheduler and waits for a running job.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping scheduler")
	<-s.cron.Stop().Done()
}

func (s *Scheduler) runDailyReports() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := s.RunOnce(ctx); err != nil {
		s.logger.Error("daily report run failed", zap.Error(err))
	}
}

// RunOnce archives a report for every tenant. A failing tenant does not stop the others.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	tenants := s.cfg.Tenants
	if len(tenants) == 0 {
		var err error
		if tenants, err = s.tenants.ListTenants(ctx); err != nil {
			return fmt.Errorf("list tenants: %w", err)
		}
	}

	s.logger.Info("generating daily reports", zap.Int("tenants", len(tenants)))
	failed := 0
	for _, tenantID := range tenants {
		err := s.reportTenant(ctx, tenantID)
		if s.observer != nil {
			s.observer.ObserveReport(err)
		}
		if err != nil {
			failed++
			s.logger.Error("daily report failed", zap.String("tenant", tenantID), zap.Error(err))
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d tenant reports failed", failed, len(tenants))
	}
	return nil
}

func (s *Scheduler) reportTenant(ctx context.Context, tenantID string) error {
	report, err := s.source.DailyReport(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("build report: %w", err)
	}

	for _, sink := range s.sinks {
		if err := sink.SaveDailyReport(ctx, report); err != nil {
			return fmt.Errorf("archive report: %w", err)
		}
	}

	if s.notifier != nil && len(report.LowStockProducts) > 0 {
		alert := webhook.LowStockAlert{
			TenantID:    tenantID,
			Products:    report.LowStockProducts,
			TotalStock:  report.TotalStockQuantity,
			GeneratedAt: report.CreatedAt,
		}
		if err := s.notifier.SendLowStockAlert(ctx, alert); err != nil {
			return fmt.Errorf("send low stock alert: %w", err)
		}
	}

	s.logger.Info("daily report archived",
		zap.String("tenant", tenantID),
		zap.Int("low_stock", len(report.LowStockProducts)))
	return nil
}
