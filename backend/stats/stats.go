// Package stats derives dashboard figures from the records and alerts of
// one owner.
package stats

import (
	"context"
	"errors"
	"sync"

	"github.com/PhilHem/log-sentinel/backend/store"
)

const (
	TopIPLimit  = 10
	HourBuckets = 24
)

type Aggregator struct {
	store *store.Store
}

func New(st *store.Store) *Aggregator {
	return &Aggregator{store: st}
}

// TopIPs returns the busiest source addresses by record count.
func (a *Aggregator) TopIPs(ctx context.Context, ownerID uint) ([]store.IPCount, error) {
	ids, err := a.store.FileIDsForOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return a.store.TopIPs(ctx, ids, TopIPLimit)
}

// Severity counts records per severity. Records without one are left out.
func (a *Aggregator) Severity(ctx context.Context, ownerID uint) ([]store.SeverityCount, error) {
	ids, err := a.store.FileIDsForOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return a.store.SeverityCounts(ctx, ids)
}

// Hourly buckets timestamped records by hour, oldest first.
func (a *Aggregator) Hourly(ctx context.Context, ownerID uint) ([]store.HourBucket, error) {
	ids, err := a.store.FileIDsForOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return a.store.HourlyCounts(ctx, ids, HourBuckets)
}

type Dashboard struct {
	TotalLogs        int64                 `json:"total_logs"`
	TotalAlerts      int64                 `json:"total_alerts"`
	UnresolvedAlerts int64                 `json:"unresolved_alerts"`
	SeverityDist     []store.SeverityCount `json:"severity_dist"`
}

// Dashboard gathers the summary counts in parallel. The counts are not read
// in one transaction and may drift slightly relative to each other.
func (a *Aggregator) Dashboard(ctx context.Context, ownerID uint) (*Dashboard, error) {
	ids, err := a.store.FileIDsForOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	var (
		d    Dashboard
		wg   sync.WaitGroup
		errs [4]error
	)
	wg.Add(4)
	go func() {
		defer wg.Done()
		d.TotalLogs, errs[0] = a.store.CountRecords(ctx, ids)
	}()
	go func() {
		defer wg.Done()
		d.TotalAlerts, errs[1] = a.store.CountAlerts(ctx, ownerID, false)
	}()
	go func() {
		defer wg.Done()
		d.UnresolvedAlerts, errs[2] = a.store.CountAlerts(ctx, ownerID, true)
	}()
	go func() {
		defer wg.Done()
		d.SeverityDist, errs[3] = a.store.SeverityCounts(ctx, ids)
	}()
	wg.Wait()

	if err := errors.Join(errs[:]...); err != nil {
		return nil, err
	}
	return &d, nil
}
