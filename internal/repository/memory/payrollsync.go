package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/payrollsync"
)

type SyncLogRepository struct {
	mu   sync.RWMutex
	logs map[string]payrollsync.SyncLog
}

func NewSyncLogRepository() *SyncLogRepository {
	return &SyncLogRepository{logs: make(map[string]payrollsync.SyncLog)}
}

var _ payrollsync.SyncLogRepository = (*SyncLogRepository)(nil)

// find returns the id of the active log of the pair, or the most recent
// success when none is active. Caller holds the lock.
func (s *SyncLogRepository) find(sourceRecordID string, target payrollsync.TargetSystem) (string, bool) {
	var (
		found  string
		latest time.Time
	)
	for id, l := range s.logs {
		if l.SourceRecordID != sourceRecordID || l.TargetSystem != target {
			continue
		}
		if l.Status.IsActive() {
			return id, true
		}
		if found == "" || l.UpdatedAt.After(latest) {
			found, latest = id, l.UpdatedAt
		}
	}
	return found, found != ""
}

func (s *SyncLogRepository) upsert(source payrollsync.SourceType, sourceRecordID string, target payrollsync.TargetSystem, at time.Time, apply func(*payrollsync.SyncLog)) *payrollsync.SyncLog {
	s.mu.Lock()
	defer s.mu.Unlock()

	var l payrollsync.SyncLog
	if id, ok := s.find(sourceRecordID, target); ok {
		l = s.logs[id]
	} else {
		l = payrollsync.SyncLog{
			ID:             newID(),
			SourceType:     source,
			SourceRecordID: sourceRecordID,
			TargetSystem:   target,
			Status:         payrollsync.SyncPending,
			CreatedAt:      at,
		}
	}
	apply(&l)
	l.LastAttemptAt = &at
	l.UpdatedAt = at
	s.logs[l.ID] = l
	return &l
}

func (s *SyncLogRepository) RecordSuccess(ctx context.Context, source payrollsync.SourceType, sourceRecordID string, target payrollsync.TargetSystem, at time.Time) (*payrollsync.SyncLog, error) {
	return s.upsert(source, sourceRecordID, target, at, func(l *payrollsync.SyncLog) {
		l.Status = payrollsync.SyncSuccess
		l.LastErrorMessage = nil
	}), nil
}

func (s *SyncLogRepository) RecordFailure(ctx context.Context, source payrollsync.SourceType, sourceRecordID string, target payrollsync.TargetSystem, message string, at time.Time) (*payrollsync.SyncLog, error) {
	return s.upsert(source, sourceRecordID, target, at, func(l *payrollsync.SyncLog) {
		if l.Status == payrollsync.SyncSuccess {
			// A later failure reopens the pair with a fresh attempt count.
			l.ID = newID()
			l.RetryCount = 0
			l.CreatedAt = at
		}
		l.Status = payrollsync.SyncFailed
		l.RetryCount++
		l.LastErrorMessage = &message
	}), nil
}

func (s *SyncLogRepository) GetActive(ctx context.Context, sourceRecordID string, target payrollsync.TargetSystem) (*payrollsync.SyncLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.find(sourceRecordID, target)
	if !ok || !s.logs[id].Status.IsActive() {
		return nil, payrollsync.ErrSyncLogNotFound
	}
	l := s.logs[id]
	return &l, nil
}

func (s *SyncLogRepository) List(ctx context.Context, filter payrollsync.LogFilter) ([]payrollsync.SyncLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]payrollsync.SyncLog, 0)
	for _, l := range s.logs {
		if !ptrEq(filter.SourceRecordID, l.SourceRecordID) {
			continue
		}
		if filter.TargetSystem != nil && l.TargetSystem != *filter.TargetSystem {
			continue
		}
		if len(filter.Statuses) > 0 && !hasSyncStatus(filter.Statuses, l.Status) {
			continue
		}
		if filter.MaxRetryCount != nil && l.RetryCount >= *filter.MaxRetryCount {
			continue
		}
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func hasSyncStatus(statuses []payrollsync.SyncStatus, v payrollsync.SyncStatus) bool {
	for _, s := range statuses {
		if s == v {
			return true
		}
	}
	return false
}
