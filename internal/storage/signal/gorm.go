package signal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/newthinker/signalwatch/internal/core"
)

// DBConfig holds postgres connection settings.
type DBConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	AutoMigrate     bool
}

// record is the persisted form of core.Signal.
type record struct {
	ID                   string     `gorm:"primaryKey;size:36"`
	Symbol               string     `gorm:"size:10;index:idx_signals_symbol_status"`
	Exchange             string     `gorm:"size:10"`
	EntryPriceMin        float64    `gorm:"type:numeric(12,2)"`
	EntryPriceMax        float64    `gorm:"type:numeric(12,2)"`
	StopLossPrice        float64    `gorm:"type:numeric(12,2)"`
	TP1Price             float64    `gorm:"column:tp1_price;type:numeric(12,2)"`
	TP2Price             float64    `gorm:"column:tp2_price;type:numeric(12,2)"`
	TP3Price             float64    `gorm:"column:tp3_price;type:numeric(12,2)"`
	StopLossPct          float64    `gorm:"type:numeric(10,2)"`
	TP1Pct               float64    `gorm:"column:tp1_pct;type:numeric(10,2)"`
	TP2Pct               float64    `gorm:"column:tp2_pct;type:numeric(10,2)"`
	TP3Pct               float64    `gorm:"column:tp3_pct;type:numeric(10,2)"`
	SignalDate           time.Time  `gorm:"index"`
	HoldingPeriod        *time.Time `gorm:"index"`
	CurrentPrice         float64    `gorm:"type:numeric(12,2)"`
	CurrentChangePercent float64    `gorm:"type:numeric(10,2)"`
	HighestPrice         float64    `gorm:"type:numeric(12,2)"`
	Status               string     `gorm:"size:10;index:idx_signals_symbol_status"`
	TP1HitAt             *time.Time `gorm:"column:tp1_hit_at"`
	TP2HitAt             *time.Time `gorm:"column:tp2_hit_at"`
	TP3HitAt             *time.Time `gorm:"column:tp3_hit_at"`
	SLHitAt              *time.Time `gorm:"column:sl_hit_at"`
	ClosedAt             *time.Time
	IsExpired            bool `gorm:"not null;default:false"`
	IsNotified           bool `gorm:"not null;default:false;index"`
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

func (record) TableName() string {
	return "signals"
}

func toRecord(s core.Signal) record {
	return record{
		ID:                   s.ID,
		Symbol:               s.Symbol,
		Exchange:             s.Exchange,
		EntryPriceMin:        s.EntryPriceMin,
		EntryPriceMax:        s.EntryPriceMax,
		StopLossPrice:        s.StopLossPrice,
		TP1Price:             s.TP1Price,
		TP2Price:             s.TP2Price,
		TP3Price:             s.TP3Price,
		StopLossPct:          s.StopLossPct,
		TP1Pct:               s.TP1Pct,
		TP2Pct:               s.TP2Pct,
		TP3Pct:               s.TP3Pct,
		SignalDate:           s.SignalDate,
		HoldingPeriod:        nullTime(s.HoldingPeriod),
		CurrentPrice:         s.CurrentPrice,
		CurrentChangePercent: s.CurrentChangePercent,
		HighestPrice:         s.HighestPrice,
		Status:               string(s.Status),
		TP1HitAt:             s.TP1HitAt,
		TP2HitAt:             s.TP2HitAt,
		TP3HitAt:             s.TP3HitAt,
		SLHitAt:              s.SLHitAt,
		ClosedAt:             s.ClosedAt,
		IsExpired:            s.IsExpired,
		IsNotified:           s.IsNotified,
		CreatedAt:            s.CreatedAt,
		UpdatedAt:            s.UpdatedAt,
	}
}

// nullTime stores an unset deadline as NULL so expiry queries skip it.
func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func (r record) toSignal() core.Signal {
	var holding time.Time
	if r.HoldingPeriod != nil {
		holding = *r.HoldingPeriod
	}
	return core.Signal{
		ID:                   r.ID,
		Symbol:               r.Symbol,
		Exchange:             r.Exchange,
		EntryPriceMin:        r.EntryPriceMin,
		EntryPriceMax:        r.EntryPriceMax,
		StopLossPrice:        r.StopLossPrice,
		TP1Price:             r.TP1Price,
		TP2Price:             r.TP2Price,
		TP3Price:             r.TP3Price,
		StopLossPct:          r.StopLossPct,
		TP1Pct:               r.TP1Pct,
		TP2Pct:               r.TP2Pct,
		TP3Pct:               r.TP3Pct,
		SignalDate:           r.SignalDate,
		HoldingPeriod:        holding,
		CurrentPrice:         r.CurrentPrice,
		CurrentChangePercent: r.CurrentChangePercent,
		HighestPrice:         r.HighestPrice,
		UpdatedAt:            r.UpdatedAt,
		Status:               core.Status(r.Status),
		TP1HitAt:             r.TP1HitAt,
		TP2HitAt:             r.TP2HitAt,
		TP3HitAt:             r.TP3HitAt,
		SLHitAt:              r.SLHitAt,
		ClosedAt:             r.ClosedAt,
		IsExpired:            r.IsExpired,
		IsNotified:           r.IsNotified,
		CreatedAt:            r.CreatedAt,
	}
}

// GormStore persists signals in postgres through gorm.
type GormStore struct {
	db *gorm.DB
}

// Open connects to postgres and applies pool settings.
func Open(cfg DBConfig) (*GormStore, error) {
	gdb, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, core.WrapError(core.ErrPersistence, fmt.Errorf("opening database: %w", err))
	}

	sqldb, err := gdb.DB()
	if err != nil {
		return nil, core.WrapError(core.ErrPersistence, err)
	}
	if cfg.MaxOpenConns > 0 {
		sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	sqldb.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqldb.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	store := NewGormStore(gdb)
	if cfg.AutoMigrate {
		if err := store.Migrate(); err != nil {
			return nil, err
		}
	}
	return store, nil
}

// NewGormStore wraps an existing gorm handle.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Migrate creates or updates the signals table.
func (s *GormStore) Migrate() error {
	if err := s.db.AutoMigrate(&record{}); err != nil {
		return core.WrapError(core.ErrPersistence, fmt.Errorf("migrating signals: %w", err))
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *GormStore) Close() error {
	sqldb, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqldb.Close()
}

func (s *GormStore) Save(ctx context.Context, sig *core.Signal) error {
	if sig.ID == "" {
		sig.ID = uuid.NewString()
	}
	if sig.Status == "" {
		sig.Status = core.StatusActive
	}
	rec := toRecord(*sig)
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return core.WrapError(core.ErrPersistence, err)
	}
	sig.CreatedAt = rec.CreatedAt
	sig.UpdatedAt = rec.UpdatedAt
	return nil
}

func (s *GormStore) GetByID(ctx context.Context, id string) (*core.Signal, error) {
	var rec record
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, core.ErrSignalNotFound
	}
	if err != nil {
		return nil, core.WrapError(core.ErrPersistence, err)
	}
	sig := rec.toSignal()
	return &sig, nil
}

func (s *GormStore) filtered(ctx context.Context, filter ListFilter) *gorm.DB {
	q := s.db.WithContext(ctx).Model(&record{})
	if filter.Symbol != "" {
		q = q.Where("symbol = ?", filter.Symbol)
	}
	if len(filter.Statuses) > 0 {
		q = q.Where("status IN ?", statusStrings(filter.Statuses))
	}
	if !filter.From.IsZero() {
		q = q.Where("signal_date >= ?", filter.From)
	}
	if !filter.To.IsZero() {
		q = q.Where("signal_date <= ?", filter.To)
	}
	if !filter.ClosedFrom.IsZero() {
		q = q.Where("closed_at >= ?", filter.ClosedFrom)
	}
	if !filter.ClosedTo.IsZero() {
		q = q.Where("closed_at <= ?", filter.ClosedTo)
	}
	return q
}

func (s *GormStore) List(ctx context.Context, filter ListFilter) ([]core.Signal, error) {
	q := s.filtered(ctx, filter).Order("signal_date desc").Order("created_at desc")
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}
	var recs []record
	if err := q.Find(&recs).Error; err != nil {
		return nil, core.WrapError(core.ErrPersistence, err)
	}
	return toSignals(recs), nil
}

func (s *GormStore) Count(ctx context.Context, filter ListFilter) (int, error) {
	var total int64
	if err := s.filtered(ctx, filter).Count(&total).Error; err != nil {
		return 0, core.WrapError(core.ErrPersistence, err)
	}
	return int(total), nil
}

func (s *GormStore) OpenSymbols(ctx context.Context) ([]string, error) {
	var symbols []string
	err := s.db.WithContext(ctx).
		Model(&record{}).
		Where("status IN ?", statusStrings(core.OpenStatuses)).
		Distinct("symbol").
		Order("symbol asc").
		Pluck("symbol", &symbols).Error
	if err != nil {
		return nil, core.WrapError(core.ErrPersistence, err)
	}
	return symbols, nil
}

func (s *GormStore) ListBySymbol(ctx context.Context, symbol string) ([]core.Signal, error) {
	var recs []record
	err := s.db.WithContext(ctx).
		Where("symbol = ?", symbol).
		Where("status IN ?", statusStrings(core.OpenStatuses)).
		Order("signal_date asc").
		Find(&recs).Error
	if err != nil {
		return nil, core.WrapError(core.ErrPersistence, err)
	}
	return toSignals(recs), nil
}

func (s *GormStore) ApplyUpdate(ctx context.Context, sig core.Signal) error {
	res := s.db.WithContext(ctx).
		Model(&record{}).
		Where("id = ?", sig.ID).
		Where("status IN ?", statusStrings(core.OpenStatuses)).
		Updates(map[string]any{
			"current_price":          sig.CurrentPrice,
			"current_change_percent": sig.CurrentChangePercent,
			"highest_price":          sig.HighestPrice,
			"status":                 string(sig.Status),
			"tp1_hit_at":             gorm.Expr("COALESCE(tp1_hit_at, ?)", sig.TP1HitAt),
			"tp2_hit_at":             gorm.Expr("COALESCE(tp2_hit_at, ?)", sig.TP2HitAt),
			"tp3_hit_at":             gorm.Expr("COALESCE(tp3_hit_at, ?)", sig.TP3HitAt),
			"sl_hit_at":              gorm.Expr("COALESCE(sl_hit_at, ?)", sig.SLHitAt),
			"closed_at":              gorm.Expr("COALESCE(closed_at, ?)", sig.ClosedAt),
			"is_expired":             gorm.Expr("is_expired OR ?", sig.IsExpired),
			"updated_at":             sig.UpdatedAt,
		})
	if res.Error != nil {
		return core.WrapError(core.ErrPersistence, res.Error)
	}
	if res.RowsAffected == 0 {
		return core.ErrStaleSignal
	}
	return nil
}

func (s *GormStore) ListUnannounced(ctx context.Context, limit int) ([]core.Signal, error) {
	q := s.db.WithContext(ctx).
		Where("is_notified = ?", false).
		Order("created_at asc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var recs []record
	if err := q.Find(&recs).Error; err != nil {
		return nil, core.WrapError(core.ErrPersistence, err)
	}
	return toSignals(recs), nil
}

func (s *GormStore) MarkNotified(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).
		Model(&record{}).
		Where("id = ?", id).
		Update("is_notified", true)
	if res.Error != nil {
		return core.WrapError(core.ErrPersistence, res.Error)
	}
	if res.RowsAffected == 0 {
		return core.ErrSignalNotFound
	}
	return nil
}

func (s *GormStore) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Model(&record{}).
		Where("status <> ?", string(core.StatusClosed)).
		Where("holding_period IS NOT NULL AND holding_period < ?", now).
		Updates(map[string]any{
			"status":     string(core.StatusClosed),
			"is_expired": true,
			"closed_at":  now,
			"updated_at": now,
		})
	if res.Error != nil {
		return 0, core.WrapError(core.ErrPersistence, res.Error)
	}
	return res.RowsAffected, nil
}

func toSignals(recs []record) []core.Signal {
	out := make([]core.Signal, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.toSignal())
	}
	return out
}

func statusStrings(statuses []core.Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

var _ Store = (*GormStore)(nil)
