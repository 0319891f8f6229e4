package reactivation

import (
	"context"

	"lead_engine_backend/internal/leads/domain"
	"lead_engine_backend/internal/leads/repository"
	"lead_engine_backend/internal/lock"
	"lead_engine_backend/platform/apperr"

	"github.com/google/uuid"
)

// BatchView is a batch plus the rendered message under its cursor, if still open.
type BatchView struct {
	Batch   domain.ReactivationBatch
	Current *RenderedMessage
}

// StartBatch persists a cursor over leadIDs. Duplicates are dropped, order is kept.
// Nothing is sent until the operator confirms.
func (s *Service) StartBatch(ctx context.Context, leadIDs []uuid.UUID, templateID string) (BatchView, error) {
	ids := dedupe(leadIDs)
	if len(ids) == 0 {
		return BatchView{}, ErrEmptyBatch
	}
	if _, err := s.catalog.GetMessageTemplate(templateID); err != nil {
		return BatchView{}, err
	}

	now := s.clock.Now()
	batch := domain.ReactivationBatch{
		ID:         uuid.New(),
		TemplateID: templateID,
		LeadIDs:    ids,
		Status:     domain.BatchOpen,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	sctx, cancel := context.WithTimeout(ctx, s.opts.StoreTimeout)
	err := s.repo.CreateBatch(sctx, batch)
	cancel()
	if err != nil {
		return BatchView{}, repository.AppError(err, "batch")
	}
	return s.view(ctx, batch), nil
}

// GetBatch returns the batch and the message awaiting confirmation.
func (s *Service) GetBatch(ctx context.Context, batchID uuid.UUID) (BatchView, error) {
	batch, err := s.getBatch(ctx, batchID)
	if err != nil {
		return BatchView{}, err
	}
	return s.view(ctx, batch), nil
}

// NextInBatch renders the message for the lead at index.
func (s *Service) NextInBatch(ctx context.Context, batchID uuid.UUID, index int) (RenderedMessage, error) {
	batch, err := s.getBatch(ctx, batchID)
	if err != nil {
		return RenderedMessage{}, err
	}
	if index < 0 || index >= len(batch.LeadIDs) {
		return RenderedMessage{}, ErrIndexRange
	}
	return s.Preview(ctx, batch.LeadIDs[index], batch.TemplateID)
}

// Confirm applies one operator decision to the lead under the cursor and moves
// the cursor by exactly one step. A send rejected by the cool-down, a closed,
// lost or bad lead, or a missing lead is recorded as a skip. A channel failure leaves the batch untouched.
func (s *Service) Confirm(ctx context.Context, batchID uuid.UUID, action domain.BatchAction) (BatchView, error) {
	switch action {
	case domain.BatchSend, domain.BatchSkip, domain.BatchAbort:
	default:
		return BatchView{}, ErrInvalidAction
	}

	unlock, err := s.locker.Lock(ctx, lock.BatchKey(batchID.String()))
	if err != nil {
		return BatchView{}, err
	}
	defer unlock()

	batch, err := s.getBatch(ctx, batchID)
	if err != nil {
		return BatchView{}, err
	}
	leadID, ok := batch.Current()
	if !ok {
		return BatchView{}, ErrBatchClosed
	}

	switch action {
	case domain.BatchSend:
		_, err := s.reactivate(ctx, leadID, batch.TemplateID, &batch.ID)
		switch {
		case err == nil:
			batch.Record(domain.BatchSend, "", s.clock.Now())
		case isConflict(err) || apperr.Is(err, apperr.KindNotFound):
			batch.Record(domain.BatchSkip, apperr.GetReason(err), s.clock.Now())
		default:
			return BatchView{}, err
		}
	case domain.BatchSkip:
		batch.Record(domain.BatchSkip, "operator", s.clock.Now())
	case domain.BatchAbort:
		batch.Record(domain.BatchAbort, "operator", s.clock.Now())
	}

	sctx, cancel := context.WithTimeout(ctx, s.opts.StoreTimeout)
	err = s.repo.SaveBatch(sctx, batch)
	cancel()
	if err != nil {
		s.log.Error("batch cursor save failed", "batch_id", batch.ID.String(), "error", err.Error())
		return BatchView{}, repository.AppError(err, "batch")
	}
	return s.view(ctx, batch), nil
}

func (s *Service) view(ctx context.Context, batch domain.ReactivationBatch) BatchView {
	v := BatchView{Batch: batch}
	if leadID, ok := batch.Current(); ok {
		if msg, err := s.Preview(ctx, leadID, batch.TemplateID); err == nil {
			v.Current = &msg
		}
	}
	return v
}

func (s *Service) getBatch(ctx context.Context, id uuid.UUID) (domain.ReactivationBatch, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.StoreTimeout)
	defer cancel()
	batch, err := s.repo.GetBatch(ctx, id)
	return batch, repository.AppError(err, "batch")
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
