// Package repositorytest provides an in-memory repository.TxStore for unit
// tests. Semantics mirror the SQL-backed store closely enough for service
// logic: row locks degrade to the store-wide mutex, and InTx restores a
// snapshot when the callback fails.
package repositorytest

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/estate-ops/internal/domain"
	"github.com/spec-kit/estate-ops/internal/events"
	"github.com/spec-kit/estate-ops/internal/repository"
)

// Store is an in-memory repository.TxStore.
type Store struct {
	mu sync.Mutex

	RequestsByID   map[string]*domain.MaintenanceRequest
	StaffByID      map[string]*domain.StaffProfile
	ResidentsByID  map[string]*domain.Resident
	CategoriesByID map[string]*domain.MaintenanceCategory
	AssignmentLog  []domain.AssignmentRecord
	AuditLog       []domain.AuditEntry
	TasksByID      map[string]*domain.NotificationTask
	OutboxLog      []repository.OutboxRecord
	TicketSeq      map[int]int

	// FailAuditWrites makes audit Create return an error, to exercise
	// rollback paths.
	FailAuditWrites bool

	nextID int
}

// NewStore builds an empty store.
func NewStore() *Store {
	return &Store{
		RequestsByID:   map[string]*domain.MaintenanceRequest{},
		StaffByID:      map[string]*domain.StaffProfile{},
		ResidentsByID:  map[string]*domain.Resident{},
		CategoriesByID: map[string]*domain.MaintenanceCategory{},
		TasksByID:      map[string]*domain.NotificationTask{},
		TicketSeq:      map[int]int{},
	}
}

// NextID issues a deterministic identifier.
func (s *Store) NextID(prefix string) string {
	s.nextID++
	return fmt.Sprintf("%s-%d", prefix, s.nextID)
}

func (s *Store) Requests() repository.RequestRepository           { return (*requestRepo)(s) }
func (s *Store) Staff() repository.StaffRepository                { return (*staffRepo)(s) }
func (s *Store) Residents() repository.ResidentRepository         { return (*residentRepo)(s) }
func (s *Store) Categories() repository.CategoryRepository        { return (*categoryRepo)(s) }
func (s *Store) Assignments() repository.AssignmentRepository     { return (*assignmentRepo)(s) }
func (s *Store) Audit() repository.AuditRepository                { return (*auditRepo)(s) }
func (s *Store) Notifications() repository.NotificationRepository { return (*notificationRepo)(s) }
func (s *Store) Outbox() repository.OutboxRepository              { return (*outboxRepo)(s) }

// InTx runs fn against the same store, restoring a snapshot on error.
func (s *Store) InTx(_ context.Context, fn func(repository.Store) error) error {
	snapshot := s.snapshot()
	if err := fn(s); err != nil {
		s.restore(snapshot)
		return err
	}
	return nil
}

type storeSnapshot struct {
	requests    map[string]*domain.MaintenanceRequest
	assignments []domain.AssignmentRecord
	audits      []domain.AuditEntry
	tasks       map[string]*domain.NotificationTask
	outbox      []repository.OutboxRecord
	ticketSeq   map[int]int
}

func (s *Store) snapshot() storeSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := storeSnapshot{
		requests:    make(map[string]*domain.MaintenanceRequest, len(s.RequestsByID)),
		assignments: append([]domain.AssignmentRecord{}, s.AssignmentLog...),
		audits:      append([]domain.AuditEntry{}, s.AuditLog...),
		tasks:       make(map[string]*domain.NotificationTask, len(s.TasksByID)),
		outbox:      append([]repository.OutboxRecord{}, s.OutboxLog...),
		ticketSeq:   make(map[int]int, len(s.TicketSeq)),
	}
	for id, request := range s.RequestsByID {
		copied := *request
		snap.requests[id] = &copied
	}
	for id, task := range s.TasksByID {
		copied := *task
		snap.tasks[id] = &copied
	}
	for year, seq := range s.TicketSeq {
		snap.ticketSeq[year] = seq
	}
	return snap
}

func (s *Store) restore(snap storeSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.RequestsByID = snap.requests
	s.AssignmentLog = snap.assignments
	s.AuditLog = snap.audits
	s.TasksByID = snap.tasks
	s.OutboxLog = snap.outbox
	s.TicketSeq = snap.ticketSeq
}

// ---- requests ----

type requestRepo Store

func (r *requestRepo) Create(_ context.Context, request *domain.MaintenanceRequest) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if request.ID == "" {
		request.ID = s.NextID("req")
	}
	now := time.Now().UTC()
	if request.CreatedAt.IsZero() {
		request.CreatedAt = now
	}
	request.UpdatedAt = now
	copied := *request
	s.RequestsByID[request.ID] = &copied
	return nil
}

func (r *requestRepo) Update(_ context.Context, request *domain.MaintenanceRequest) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.RequestsByID[request.ID]; !ok {
		return pgx.ErrNoRows
	}
	copied := *request
	s.RequestsByID[request.ID] = &copied
	return nil
}

func (r *requestRepo) GetByID(_ context.Context, id string) (*domain.MaintenanceRequest, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	request, ok := s.RequestsByID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *request
	return &copied, nil
}

func (r *requestRepo) GetByIDForUpdate(ctx context.Context, id string) (*domain.MaintenanceRequest, error) {
	return r.GetByID(ctx, id)
}

func (r *requestRepo) GetByTicketNumber(_ context.Context, ticketNumber string) (*domain.MaintenanceRequest, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, request := range s.RequestsByID {
		if request.TicketNumber == ticketNumber {
			copied := *request
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *requestRepo) ListWithFilter(_ context.Context, filter repository.RequestFilter) ([]domain.MaintenanceRequest, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []domain.MaintenanceRequest
	for _, request := range s.RequestsByID {
		if filter.ResidentID != nil && request.ResidentID != *filter.ResidentID {
			continue
		}
		if filter.AssigneeID != nil && (request.AssigneeID == nil || *request.AssigneeID != *filter.AssigneeID) {
			continue
		}
		if filter.CategoryID != nil && request.CategoryID != *filter.CategoryID {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, request.Status) {
			continue
		}
		if len(filter.Priorities) > 0 && !containsPriority(filter.Priorities, request.Priority) {
			continue
		}
		result = append(result, *request)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (r *requestRepo) CountOpenByAssignee(_ context.Context, staffID string) (int, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, request := range s.RequestsByID {
		if request.AssigneeID != nil && *request.AssigneeID == staffID && request.Status.Open() {
			count++
		}
	}
	return count, nil
}

func (r *requestRepo) OpenCountsByAssignees(ctx context.Context, staffIDs []string) (map[string]int, error) {
	counts := make(map[string]int, len(staffIDs))
	for _, id := range staffIDs {
		count, err := r.CountOpenByAssignee(ctx, id)
		if err != nil {
			return nil, err
		}
		counts[id] = count
	}
	return counts, nil
}

func (r *requestRepo) CountResolvedSince(_ context.Context, staffID string, since time.Time) (int, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, request := range s.RequestsByID {
		if request.AssigneeID == nil || *request.AssigneeID != staffID {
			continue
		}
		if request.ResolvedAt != nil && !request.ResolvedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (r *requestRepo) ListOverdue(_ context.Context, now time.Time, limit int) ([]domain.MaintenanceRequest, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []domain.MaintenanceRequest
	for _, request := range s.RequestsByID {
		if !request.Status.Open() {
			continue
		}
		category := s.CategoriesByID[request.CategoryID]
		if request.DeadlineAt(category).Before(now) {
			result = append(result, *request)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *requestRepo) MarkEscalated(_ context.Context, id string, at, notBefore time.Time) (bool, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	request, ok := s.RequestsByID[id]
	if !ok {
		return false, pgx.ErrNoRows
	}
	if request.LastEscalatedAt != nil && request.LastEscalatedAt.After(notBefore) {
		return false, nil
	}
	stamp := at
	request.LastEscalatedAt = &stamp
	return true, nil
}

func (r *requestRepo) NextTicketNumber(_ context.Context, year int) (int, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.TicketSeq[year]++
	return s.TicketSeq[year], nil
}

// ---- staff ----

type staffRepo Store

func (r *staffRepo) Create(_ context.Context, staff *domain.StaffProfile) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if staff.ID == "" {
		staff.ID = s.NextID("staff")
	}
	copied := *staff
	s.StaffByID[staff.ID] = &copied
	return nil
}

func (r *staffRepo) Update(_ context.Context, staff *domain.StaffProfile) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.StaffByID[staff.ID]; !ok {
		return pgx.ErrNoRows
	}
	copied := *staff
	s.StaffByID[staff.ID] = &copied
	return nil
}

func (r *staffRepo) GetByID(_ context.Context, id string) (*domain.StaffProfile, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	staff, ok := s.StaffByID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *staff
	return &copied, nil
}

func (r *staffRepo) GetByEmail(_ context.Context, email string) (*domain.StaffProfile, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, staff := range s.StaffByID {
		if strings.EqualFold(staff.Email, email) {
			copied := *staff
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *staffRepo) List(_ context.Context, filter repository.StaffFilter) ([]domain.StaffProfile, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []domain.StaffProfile
	for _, staff := range s.StaffByID {
		if len(filter.Roles) > 0 && !containsRole(filter.Roles, staff.Role) {
			continue
		}
		if filter.AccessAll != nil && staff.CanAccessAllMaintenance != *filter.AccessAll {
			continue
		}
		if filter.Active != nil && staff.Active != *filter.Active {
			continue
		}
		result = append(result, *staff)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// ---- residents ----

type residentRepo Store

func (r *residentRepo) Create(_ context.Context, resident *domain.Resident) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if resident.ID == "" {
		resident.ID = s.NextID("res")
	}
	copied := *resident
	s.ResidentsByID[resident.ID] = &copied
	return nil
}

func (r *residentRepo) Update(_ context.Context, resident *domain.Resident) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ResidentsByID[resident.ID]; !ok {
		return pgx.ErrNoRows
	}
	copied := *resident
	s.ResidentsByID[resident.ID] = &copied
	return nil
}

func (r *residentRepo) GetByID(_ context.Context, id string) (*domain.Resident, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	resident, ok := s.ResidentsByID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *resident
	return &copied, nil
}

func (r *residentRepo) GetByEmail(_ context.Context, email string) (*domain.Resident, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, resident := range s.ResidentsByID {
		if strings.EqualFold(resident.Email, email) {
			copied := *resident
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

// ---- categories ----

type categoryRepo Store

func (r *categoryRepo) Create(_ context.Context, category *domain.MaintenanceCategory) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if category.ID == "" {
		category.ID = s.NextID("cat")
	}
	copied := *category
	s.CategoriesByID[category.ID] = &copied
	return nil
}

func (r *categoryRepo) GetByID(_ context.Context, id string) (*domain.MaintenanceCategory, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	category, ok := s.CategoriesByID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *category
	return &copied, nil
}

func (r *categoryRepo) List(_ context.Context) ([]domain.MaintenanceCategory, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []domain.MaintenanceCategory
	for _, category := range s.CategoriesByID {
		result = append(result, *category)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// ---- assignments ----

type assignmentRepo Store

func (r *assignmentRepo) Create(_ context.Context, record *domain.AssignmentRecord) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if record.ID == "" {
		record.ID = s.NextID("assign")
	}
	s.AssignmentLog = append(s.AssignmentLog, *record)
	return nil
}

func (r *assignmentRepo) ListByRequest(_ context.Context, requestID string) ([]domain.AssignmentRecord, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []domain.AssignmentRecord
	for _, record := range s.AssignmentLog {
		if record.RequestID == requestID {
			result = append(result, record)
		}
	}
	return result, nil
}

// ---- audit ----

type auditRepo Store

func (r *auditRepo) Create(_ context.Context, entry *domain.AuditEntry) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailAuditWrites {
		return fmt.Errorf("audit storage unavailable")
	}
	if entry.ID == "" {
		entry.ID = s.NextID("audit")
	}
	s.AuditLog = append(s.AuditLog, *entry)
	return nil
}

func (r *auditRepo) ListByRequest(_ context.Context, requestID string, limit, offset int) ([]domain.AuditEntry, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []domain.AuditEntry
	for _, entry := range s.AuditLog {
		if entry.RequestID == requestID {
			result = append(result, entry)
		}
	}
	if offset > 0 {
		if offset >= len(result) {
			return nil, nil
		}
		result = result[offset:]
	}
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// ---- notifications ----

type notificationRepo Store

func (r *notificationRepo) Create(_ context.Context, task *domain.NotificationTask) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if task.ID == "" {
		task.ID = s.NextID("task")
	}
	now := time.Now().UTC()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	task.UpdatedAt = now
	copied := *task
	s.TasksByID[task.ID] = &copied
	return nil
}

func (r *notificationRepo) GetByID(_ context.Context, id string) (*domain.NotificationTask, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.TasksByID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *task
	return &copied, nil
}

func (r *notificationRepo) ListDue(_ context.Context, now time.Time, limit int) ([]domain.NotificationTask, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []domain.NotificationTask
	for _, task := range s.TasksByID {
		due := task.Status == domain.NotificationPending || task.Status == domain.NotificationFailed
		if due && !task.NextAttemptAt.After(now) {
			result = append(result, *task)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *notificationRepo) MarkSent(_ context.Context, id string, at time.Time) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.TasksByID[id]
	if !ok || (task.Status != domain.NotificationPending && task.Status != domain.NotificationFailed) {
		return pgx.ErrNoRows
	}
	task.Status = domain.NotificationSent
	task.AttemptCount++
	task.LastError = ""
	task.UpdatedAt = at
	return nil
}

func (r *notificationRepo) MarkAttemptFailed(_ context.Context, id string, attemptCount int, status domain.NotificationStatus, nextAttemptAt time.Time, lastError string) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.TasksByID[id]
	if !ok {
		return pgx.ErrNoRows
	}
	task.Status = status
	task.AttemptCount = attemptCount
	task.NextAttemptAt = nextAttemptAt
	task.LastError = lastError
	task.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *notificationRepo) ListByStatus(_ context.Context, status domain.NotificationStatus, limit int) ([]domain.NotificationTask, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []domain.NotificationTask
	for _, task := range s.TasksByID {
		if task.Status == status {
			result = append(result, *task)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// ---- outbox ----

type outboxRepo Store

func (r *outboxRepo) Create(_ context.Context, event events.Event) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	s.OutboxLog = append(s.OutboxLog, repository.OutboxRecord{
		ID:        event.ID,
		EventType: event.Type,
		RequestID: event.RequestID,
		Payload:   payload,
		CreatedAt: event.Timestamp,
	})
	return nil
}

func (r *outboxRepo) ListUnprocessed(_ context.Context, olderThan time.Time, limit int) ([]repository.OutboxRecord, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []repository.OutboxRecord
	for _, record := range s.OutboxLog {
		if record.ProcessedAt == nil && !record.CreatedAt.After(olderThan) {
			result = append(result, record)
		}
	}
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *outboxRepo) MarkProcessed(_ context.Context, id string, at time.Time) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.OutboxLog {
		if s.OutboxLog[i].ID == id && s.OutboxLog[i].ProcessedAt == nil {
			stamp := at
			s.OutboxLog[i].ProcessedAt = &stamp
			return nil
		}
	}
	return pgx.ErrNoRows
}

func containsStatus(haystack []domain.RequestStatus, needle domain.RequestStatus) bool {
	for _, status := range haystack {
		if status == needle {
			return true
		}
	}
	return false
}

func containsPriority(haystack []domain.Priority, needle domain.Priority) bool {
	for _, priority := range haystack {
		if priority == needle {
			return true
		}
	}
	return false
}

func containsRole(haystack []domain.StaffRole, needle domain.StaffRole) bool {
	for _, role := range haystack {
		if role == needle {
			return true
		}
	}
	return false
}
