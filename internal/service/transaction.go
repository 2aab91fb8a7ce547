package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"clinic/backend/internal/model"

	"github.com/rs/zerolog"
)

const transactionListLimit = 100

// BillingService keeps charges (transactions) and the payments settling them.
type BillingService struct {
	db   *DB
	log  zerolog.Logger
	now  func() time.Time
	intN func(n int) int
}

func NewBillingService(db *DB, log zerolog.Logger) *BillingService {
	return &BillingService{
		db:   db,
		log:  log.With().Str("component", "billing").Logger(),
		now:  func() time.Time { return time.Now().UTC() },
		intN: rand.IntN,
	}
}

const transactionSelect = `
	SELECT id, patient_name, service_name, total_amount, paid_amount, remaining_amount, status, notes, created_at
	FROM transactions`

func scanTransaction(row interface{ Scan(...any) error }) (*model.Transaction, error) {
	t := &model.Transaction{}
	var notes sql.NullString
	if err := row.Scan(&t.ID, &t.PatientName, &t.ServiceName, &t.TotalAmount, &t.PaidAmount,
		&t.RemainingAmount, &t.Status, &notes, &t.CreatedAt); err != nil {
		return nil, err
	}
	t.Notes = nullableString(notes)
	return t, nil
}

func (s *BillingService) CreateTransaction(ctx context.Context, req model.TransactionRequest) (*model.Transaction, error) {
	req.PatientName = strings.TrimSpace(req.PatientName)
	req.ServiceName = strings.TrimSpace(req.ServiceName)
	if req.PatientName == "" || req.ServiceName == "" {
		return nil, fmt.Errorf("%w: patient_name and service_name are required", ErrInvalidInput)
	}
	if req.TotalAmount <= 0 {
		return nil, fmt.Errorf("%w: total_amount must be positive", ErrInvalidInput)
	}

	now := s.now()
	var id int64
	err := s.db.QueryRowContext(ctx, s.db.Rebind(`
		INSERT INTO transactions (patient_name, service_name, total_amount, paid_amount, remaining_amount, status, notes, created_at, updated_at)
		VALUES (?, ?, ?, 0, ?, ?, ?, ?, ?) RETURNING id`),
		req.PatientName, req.ServiceName, req.TotalAmount, req.TotalAmount, model.TxPending, nullString(req.Notes), now, now,
	).Scan(&id)
	if err != nil {
		return nil, engineErr("create transaction", err)
	}
	s.log.Info().Int64("transaction_id", id).Float64("amount", req.TotalAmount).Msg("transaction created")
	return s.GetTransaction(ctx, id)
}

func (s *BillingService) GetTransaction(ctx context.Context, id int64) (*model.Transaction, error) {
	t, err := scanTransaction(s.db.QueryRowContext(ctx, s.db.Rebind(transactionSelect+` WHERE id = ?`), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, engineErr("get transaction", err)
	}
	return t, nil
}

func (s *BillingService) ListTransactions(ctx context.Context) ([]model.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, s.db.Rebind(transactionSelect+` ORDER BY created_at DESC, id DESC LIMIT ?`), transactionListLimit)
	if err != nil {
		return nil, engineErr("list transactions", err)
	}
	defer rows.Close()

	out := []model.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, engineErr("list transactions", err)
		}
		out = append(out, *t)
	}
	return out, engineErr("list transactions", rows.Err())
}

func (s *BillingService) TransactionStats(ctx context.Context) (*model.TransactionStats, error) {
	now := s.now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	st := &model.TransactionStats{}
	err := s.db.QueryRowContext(ctx, s.db.Rebind(`
		SELECT
			COALESCE(SUM(paid_amount), 0),
			COALESCE(SUM(CASE WHEN created_at >= ? THEN paid_amount ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status <> ? THEN remaining_amount ELSE 0 END), 0)
		FROM transactions`), monthStart, model.TxPaid, model.TxPaid,
	).Scan(&st.TotalRevenue, &st.MonthlyRevenue, &st.CompletedPayments, &st.PendingAmount)
	if err != nil {
		return nil, engineErr("transaction stats", err)
	}
	return st, nil
}

// applyPayment moves amount (negative to revert) onto the transaction's
// paid total and recomputes its status. The balance check is part of the
// UPDATE so that it holds under concurrent payments.
func (s *BillingService) applyPayment(ctx context.Context, tx *sql.Tx, id int64, amount float64, strict bool) error {
	query := `
		UPDATE transactions SET
			paid_amount = CASE WHEN paid_amount + ? < 0 THEN 0 ELSE paid_amount + ? END,
			remaining_amount = CASE
				WHEN paid_amount + ? <= 0 THEN total_amount
				WHEN paid_amount + ? >= total_amount THEN 0
				ELSE total_amount - (paid_amount + ?) END,
			status = CASE
				WHEN paid_amount + ? <= 0 THEN ?
				WHEN paid_amount + ? >= total_amount THEN ?
				ELSE ? END,
			updated_at = ?
		WHERE id = ?`
	args := []any{
		amount, amount,
		amount, amount, amount,
		amount, model.TxPending, amount, model.TxPaid, model.TxPartial,
		s.now(), id,
	}
	if strict {
		query += ` AND remaining_amount + 0.000000001 >= ?`
		args = append(args, amount)
	}

	res, err := tx.ExecContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return engineErr("update transaction", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return engineErr("update transaction", err)
	}
	if n > 0 || !strict {
		return nil
	}

	var remaining float64
	err = tx.QueryRowContext(ctx, s.db.Rebind(`SELECT remaining_amount FROM transactions WHERE id = ?`), id).Scan(&remaining)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: transaction %d", ErrNotFound, id)
	}
	if err != nil {
		return engineErr("read transaction", err)
	}
	return fmt.Errorf("%w: amount %.2f exceeds remaining balance %.2f", ErrInvalidInput, amount, remaining)
}
