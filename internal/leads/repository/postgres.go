package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"lead_engine_backend/internal/leads/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository is the PostgreSQL Store.
type Repository struct {
	pool *pgxpool.Pool
}

var _ Store = (*Repository)(nil)

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const leadColumns = `id, name, phone, email, neighborhoods, intent, payment_method, budget_min, budget_max,
	urgency, deadline_days, stage, score, qualification_label, created_at, last_contact_at,
	last_reactivation_at, reactivation_touch_count, is_bad_lead, updated_at, version`

func scanLead(row pgx.Row) (domain.Lead, error) {
	var (
		lead                                   domain.Lead
		intent, payment, urgency, stage, label string
	)
	err := row.Scan(
		&lead.ID, &lead.Name, &lead.Phone, &lead.Email, &lead.Neighborhoods, &intent, &payment, &lead.BudgetMin, &lead.BudgetMax,
		&urgency, &lead.DeadlineDays, &stage, &lead.Score, &label, &lead.CreatedAt, &lead.LastContactAt,
		&lead.LastReactivationAt, &lead.ReactivationTouchCount, &lead.IsBadLead, &lead.UpdatedAt, &lead.Version,
	)
	if err != nil {
		return domain.Lead{}, err
	}
	lead.Intent = domain.Intent(intent)
	lead.PaymentMethod = domain.PaymentMethod(payment)
	lead.Urgency = domain.Urgency(urgency)
	lead.Stage = domain.Stage(stage)
	lead.QualificationLabel = domain.Label(label)
	return lead, nil
}

func (r *Repository) GetLead(ctx context.Context, id uuid.UUID) (domain.Lead, error) {
	lead, err := scanLead(r.pool.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Lead{}, ErrNotFound
	}
	return lead, err
}

func (r *Repository) ListLeads(ctx context.Context, filter LeadFilter) ([]domain.Lead, error) {
	var ids []uuid.UUID
	if len(filter.IDs) > 0 {
		ids = filter.IDs
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE ($1::uuid[] IS NULL OR id = ANY($1::uuid[]))
		  AND (NOT $2 OR is_bad_lead = false)
		  AND NOT (stage = ANY($3::text[]))
		  AND ($4::timestamptz IS NULL OR created_at >= $4)
		ORDER BY created_at ASC, id ASC
	`, ids, filter.ExcludeBad, stagesToStrings(filter.ExcludeStages), filter.CreatedAfter)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.Lead, 0)
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, lead)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return items, nil
}

func (r *Repository) SaveLead(ctx context.Context, lead domain.Lead) error {
	neighborhoods := lead.Neighborhoods
	if neighborhoods == nil {
		neighborhoods = []string{}
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO leads (`+leadColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			phone = EXCLUDED.phone,
			email = EXCLUDED.email,
			neighborhoods = EXCLUDED.neighborhoods,
			intent = EXCLUDED.intent,
			payment_method = EXCLUDED.payment_method,
			budget_min = EXCLUDED.budget_min,
			budget_max = EXCLUDED.budget_max,
			urgency = EXCLUDED.urgency,
			deadline_days = EXCLUDED.deadline_days,
			stage = EXCLUDED.stage,
			score = EXCLUDED.score,
			qualification_label = EXCLUDED.qualification_label,
			last_contact_at = EXCLUDED.last_contact_at,
			last_reactivation_at = EXCLUDED.last_reactivation_at,
			reactivation_touch_count = EXCLUDED.reactivation_touch_count,
			is_bad_lead = EXCLUDED.is_bad_lead,
			updated_at = EXCLUDED.updated_at,
			version = EXCLUDED.version
	`,
		lead.ID, lead.Name, lead.Phone, lead.Email, neighborhoods, string(lead.Intent), string(lead.PaymentMethod), lead.BudgetMin, lead.BudgetMax,
		string(lead.Urgency), lead.DeadlineDays, string(lead.Stage), lead.Score, string(lead.QualificationLabel), lead.CreatedAt, lead.LastContactAt,
		lead.LastReactivationAt, lead.ReactivationTouchCount, lead.IsBadLead, lead.UpdatedAt, lead.Version,
	)
	return err
}

func (r *Repository) UpdateLead(ctx context.Context, lead domain.Lead) error {
	neighborhoods := lead.Neighborhoods
	if neighborhoods == nil {
		neighborhoods = []string{}
	}
	// Reactivation columns are owned by RecordReactivation and never written here.
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads SET
			name = $3,
			phone = $4,
			email = $5,
			neighborhoods = $6,
			intent = $7,
			payment_method = $8,
			budget_min = $9,
			budget_max = $10,
			urgency = $11,
			deadline_days = $12,
			stage = $13,
			score = $14,
			qualification_label = $15,
			last_contact_at = $16,
			is_bad_lead = $17,
			updated_at = $18,
			version = version + 1
		WHERE id = $1 AND version = $2
	`,
		lead.ID, lead.Version, lead.Name, lead.Phone, lead.Email, neighborhoods, string(lead.Intent), string(lead.PaymentMethod),
		lead.BudgetMin, lead.BudgetMax, string(lead.Urgency), lead.DeadlineDays, string(lead.Stage), lead.Score,
		string(lead.QualificationLabel), lead.LastContactAt, lead.IsBadLead, lead.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM leads WHERE id = $1)`, lead.ID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return ErrVersionConflict
}

func (r *Repository) RecordReactivation(ctx context.Context, id uuid.UUID, at time.Time) (domain.Lead, error) {
	lead, err := scanLead(r.pool.QueryRow(ctx, `
		UPDATE leads SET
			last_reactivation_at = $2,
			last_contact_at = $2,
			reactivation_touch_count = reactivation_touch_count + 1,
			updated_at = $2,
			version = version + 1
		WHERE id = $1
		RETURNING `+leadColumns, id, at.UTC()))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Lead{}, ErrNotFound
	}
	return lead, err
}

const taskColumns = `id, lead_id, sequence_name, message, scheduled_for, status, touch_index, sent_at, created_at`

func scanTask(row pgx.Row) (domain.Task, error) {
	var (
		task   domain.Task
		status string
	)
	err := row.Scan(&task.ID, &task.LeadID, &task.SequenceName, &task.Message, &task.ScheduledFor, &status, &task.TouchIndex, &task.SentAt, &task.CreatedAt)
	if err != nil {
		return domain.Task{}, err
	}
	task.Status = domain.TaskStatus(status)
	return task, nil
}

func (r *Repository) CreateTask(ctx context.Context, task domain.Task) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO tasks (`+taskColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, task.ID, task.LeadID, task.SequenceName, task.Message, task.ScheduledFor, string(task.Status), task.TouchIndex, task.SentAt, task.CreatedAt)
	return err
}

func (r *Repository) GetTask(ctx context.Context, id uuid.UUID) (domain.Task, error) {
	task, err := scanTask(r.pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Task{}, ErrNotFound
	}
	return task, err
}

func (r *Repository) ListTasks(ctx context.Context, filter TaskFilter) ([]domain.Task, error) {
	var leadIDs []uuid.UUID
	if len(filter.LeadIDs) > 0 {
		leadIDs = filter.LeadIDs
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE ($1::uuid[] IS NULL OR lead_id = ANY($1::uuid[]))
		  AND ($2 = '' OR status = $2)
		ORDER BY created_at ASC, touch_index ASC
	`, leadIDs, string(filter.Status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.Task, 0)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, task)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return items, nil
}

func (r *Repository) MarkTaskSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE tasks SET status = 'SENT', sent_at = $2
		WHERE id = $1 AND status = 'PENDING'
	`, id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var status string
	err = r.pool.QueryRow(ctx, `SELECT status FROM tasks WHERE id = $1`, id).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	switch domain.TaskStatus(status) {
	case domain.TaskSent:
		return domain.ErrTaskAlreadySent
	case domain.TaskCancelled:
		return domain.ErrTaskCancelled
	default:
		return fmt.Errorf("mark task %s sent: unexpected status %q", id, status)
	}
}

func (r *Repository) CancelPendingTasks(ctx context.Context, leadID uuid.UUID) (int, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE tasks SET status = 'CANCELLED'
		WHERE lead_id = $1 AND status = 'PENDING'
	`, leadID)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

const stateColumns = `lead_id, status, active_sequence_id, touch_index, current_task_id, next_touch_at, started_at, last_message_sent_at, updated_at`

func scanState(row pgx.Row) (domain.AutomationState, error) {
	var (
		state         domain.AutomationState
		status        string
		sequenceID    *string
		currentTaskID *uuid.UUID
	)
	err := row.Scan(&state.LeadID, &status, &sequenceID, &state.TouchIndex, &currentTaskID, &state.NextTouchAt, &state.StartedAt, &state.LastMessageSentAt, &state.UpdatedAt)
	if err != nil {
		return domain.AutomationState{}, err
	}
	state.Status = domain.AutomationStatus(status)
	if sequenceID != nil {
		state.ActiveSequenceID = *sequenceID
	}
	if currentTaskID != nil {
		state.CurrentTaskID = *currentTaskID
	}
	return state, nil
}

func (r *Repository) GetAutomationState(ctx context.Context, leadID uuid.UUID) (domain.AutomationState, error) {
	state, err := scanState(r.pool.QueryRow(ctx, `SELECT `+stateColumns+` FROM automation_states WHERE lead_id = $1`, leadID))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.IdleState(leadID), nil
	}
	return state, err
}

func (r *Repository) SaveAutomationState(ctx context.Context, state domain.AutomationState) error {
	var sequenceID *string
	if state.ActiveSequenceID != "" {
		sequenceID = &state.ActiveSequenceID
	}
	var currentTaskID *uuid.UUID
	if state.CurrentTaskID != uuid.Nil {
		currentTaskID = &state.CurrentTaskID
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO automation_states (`+stateColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (lead_id) DO UPDATE SET
			status = EXCLUDED.status,
			active_sequence_id = EXCLUDED.active_sequence_id,
			touch_index = EXCLUDED.touch_index,
			current_task_id = EXCLUDED.current_task_id,
			next_touch_at = EXCLUDED.next_touch_at,
			started_at = EXCLUDED.started_at,
			last_message_sent_at = EXCLUDED.last_message_sent_at,
			updated_at = EXCLUDED.updated_at
	`, state.LeadID, string(state.Status), sequenceID, state.TouchIndex, currentTaskID, state.NextTouchAt, state.StartedAt, state.LastMessageSentAt, state.UpdatedAt)
	return err
}

func (r *Repository) ListDueStates(ctx context.Context, now time.Time, limit int) ([]domain.AutomationState, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+stateColumns+`
		FROM automation_states
		WHERE status = 'RUNNING' AND next_touch_at <= $1
		ORDER BY next_touch_at ASC, lead_id ASC
		LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.AutomationState, 0)
	for rows.Next() {
		state, err := scanState(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, state)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return items, nil
}

func (r *Repository) CreateBatch(ctx context.Context, batch domain.ReactivationBatch) error {
	steps, err := json.Marshal(batch.Steps)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO reactivation_batches (id, template_id, lead_ids, cursor, status, steps, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, batch.ID, batch.TemplateID, batch.LeadIDs, batch.Cursor, string(batch.Status), steps, batch.CreatedAt, batch.UpdatedAt)
	return err
}

func (r *Repository) GetBatch(ctx context.Context, id uuid.UUID) (domain.ReactivationBatch, error) {
	var (
		batch  domain.ReactivationBatch
		status string
		steps  []byte
	)
	err := r.pool.QueryRow(ctx, `
		SELECT id, template_id, lead_ids, cursor, status, steps, created_at, updated_at
		FROM reactivation_batches WHERE id = $1
	`, id).Scan(&batch.ID, &batch.TemplateID, &batch.LeadIDs, &batch.Cursor, &status, &steps, &batch.CreatedAt, &batch.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ReactivationBatch{}, ErrNotFound
	}
	if err != nil {
		return domain.ReactivationBatch{}, err
	}
	batch.Status = domain.BatchStatus(status)
	if len(steps) > 0 {
		if err := json.Unmarshal(steps, &batch.Steps); err != nil {
			return domain.ReactivationBatch{}, fmt.Errorf("decode batch steps: %w", err)
		}
	}
	return batch, nil
}

func (r *Repository) SaveBatch(ctx context.Context, batch domain.ReactivationBatch) error {
	steps, err := json.Marshal(batch.Steps)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE reactivation_batches
		SET cursor = $2, status = $3, steps = $4, updated_at = $5
		WHERE id = $1
	`, batch.ID, batch.Cursor, string(batch.Status), steps, batch.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
