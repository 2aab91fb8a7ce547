package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"clinic/backend/helper"
	"clinic/backend/internal/model"
)

const paymentSelect = `
	SELECT id, payment_number, transaction_id, patient_name, amount, payment_method, service_name, notes, payment_date
	FROM payments`

func scanPayment(row interface{ Scan(...any) error }) (*model.Payment, error) {
	p := &model.Payment{}
	var (
		txID          sql.NullInt64
		service, note sql.NullString
	)
	if err := row.Scan(&p.ID, &p.PaymentNumber, &txID, &p.PatientName, &p.Amount, &p.PaymentMethod,
		&service, &note, &p.PaymentDate); err != nil {
		return nil, err
	}
	if txID.Valid {
		p.TransactionID = &txID.Int64
	}
	p.ServiceName = nullableString(service)
	p.Notes = nullableString(note)
	return p, nil
}

func (s *BillingService) paymentNumber() string {
	return fmt.Sprintf("PAY-%s-%06d", s.now().Format("20060102"), s.intN(1_000_000))
}

// CreatePayment records a payment and, when it is linked to a transaction,
// settles that transaction in the same database transaction.
func (s *BillingService) CreatePayment(ctx context.Context, req model.PaymentRequest) (*model.Payment, error) {
	req.PatientName = strings.TrimSpace(req.PatientName)
	req.PaymentMethod = strings.TrimSpace(req.PaymentMethod)
	if req.PatientName == "" || req.PaymentMethod == "" {
		return nil, fmt.Errorf("%w: patient_name and payment_method are required", ErrInvalidInput)
	}
	if req.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}

	var id int64
	err := s.db.withTx(ctx, func(tx *sql.Tx) error {
		if req.TransactionID != nil {
			if err := s.applyPayment(ctx, tx, *req.TransactionID, req.Amount, true); err != nil {
				return err
			}
		}
		now := s.now()
		var txID any
		if req.TransactionID != nil {
			txID = *req.TransactionID
		}
		err := tx.QueryRowContext(ctx, s.db.Rebind(`
			INSERT INTO payments (payment_number, transaction_id, patient_name, amount, payment_method, service_name, notes, payment_date, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`),
			s.paymentNumber(), txID, req.PatientName, req.Amount, req.PaymentMethod,
			nullString(req.ServiceName), nullString(req.Notes), now, now, now,
		).Scan(&id)
		return engineErr("create payment", err)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Int64("payment_id", id).Float64("amount", req.Amount).Msg("payment recorded")
	return s.GetPayment(ctx, id)
}

// UpdatePayment changes amount, method or notes. A changed amount on a linked
// payment moves the difference onto the transaction, with the same balance
// check as a new payment.
func (s *BillingService) UpdatePayment(ctx context.Context, id int64, req model.PaymentUpdate) (*model.Payment, error) {
	if req.Amount != nil && *req.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}
	var method, amount, notes any
	if req.PaymentMethod != nil {
		m := strings.TrimSpace(*req.PaymentMethod)
		if m == "" {
			return nil, fmt.Errorf("%w: payment_method cannot be empty", ErrInvalidInput)
		}
		method = m
	}
	if req.Amount != nil {
		amount = *req.Amount
	}
	if req.Notes != nil {
		notes = *req.Notes
	}

	err := s.db.withTx(ctx, func(tx *sql.Tx) error {
		var (
			txID sql.NullInt64
			old  float64
		)
		err := tx.QueryRowContext(ctx, s.db.Rebind(`SELECT transaction_id, amount FROM payments WHERE id = ?`), id).Scan(&txID, &old)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return engineErr("get payment", err)
		}

		if txID.Valid && req.Amount != nil {
			if delta := *req.Amount - old; delta > 0 {
				err = s.applyPayment(ctx, tx, txID.Int64, delta, true)
			} else if delta < 0 {
				err = s.applyPayment(ctx, tx, txID.Int64, delta, false)
			}
			if err != nil {
				return err
			}
		}

		_, err = tx.ExecContext(ctx, s.db.Rebind(`
			UPDATE payments SET
				amount = COALESCE(?, amount),
				payment_method = COALESCE(?, payment_method),
				notes = COALESCE(?, notes),
				updated_at = ?
			WHERE id = ?`),
			amount, method, notes, s.now(), id)
		return engineErr("update payment", err)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Int64("payment_id", id).Msg("payment updated")
	return s.GetPayment(ctx, id)
}

func (s *BillingService) GetPayment(ctx context.Context, id int64) (*model.Payment, error) {
	p, err := scanPayment(s.db.QueryRowContext(ctx, s.db.Rebind(paymentSelect+` WHERE id = ?`), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, engineErr("get payment", err)
	}
	return p, nil
}

func (s *BillingService) ListPayments(ctx context.Context, f model.PaymentFilter) (*model.PaymentPage, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = model.DefaultPageLimit
	}
	if f.Limit > model.MaxPageLimit {
		f.Limit = model.MaxPageLimit
	}

	var (
		conds []string
		args  []any
	)
	if f.PatientName != "" {
		conds = append(conds, "patient_name "+s.db.Dialect.LikeOperator()+" ?")
		args = append(args, "%"+f.PatientName+"%")
	}
	if f.Method != "" {
		conds = append(conds, "payment_method = ?")
		args = append(args, f.Method)
	}
	if f.TransactionID != nil {
		conds = append(conds, "transaction_id = ?")
		args = append(args, *f.TransactionID)
	}
	if f.DateFrom != "" {
		from, err := time.Parse(time.DateOnly, f.DateFrom)
		if err != nil {
			return nil, fmt.Errorf("%w: date_from must be YYYY-MM-DD", ErrInvalidInput)
		}
		conds = append(conds, "payment_date >= ?")
		args = append(args, from)
	}
	if f.DateTo != "" {
		to, err := time.Parse(time.DateOnly, f.DateTo)
		if err != nil {
			return nil, fmt.Errorf("%w: date_to must be YYYY-MM-DD", ErrInvalidInput)
		}
		conds = append(conds, "payment_date < ?")
		args = append(args, to.AddDate(0, 0, 1))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	page := &model.PaymentPage{Page: f.Page, Limit: f.Limit, Payments: []model.Payment{}}
	if err := s.db.QueryRowContext(ctx, s.db.Rebind(`SELECT COUNT(*) FROM payments`+where), args...).Scan(&page.Total); err != nil {
		return nil, engineErr("count payments", err)
	}
	page.Pages = helper.TotalPages(page.Total, int64(f.Limit))

	rows, err := s.db.QueryContext(ctx, s.db.Rebind(paymentSelect+where+` ORDER BY payment_date DESC, id DESC LIMIT ? OFFSET ?`),
		append(args, f.Limit, (f.Page-1)*f.Limit)...)
	if err != nil {
		return nil, engineErr("list payments", err)
	}
	defer rows.Close()
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, engineErr("list payments", err)
		}
		page.Payments = append(page.Payments, *p)
	}
	return page, engineErr("list payments", rows.Err())
}

// DeletePayment removes a payment and reverts its effect on the linked
// transaction.
func (s *BillingService) DeletePayment(ctx context.Context, id int64) error {
	return s.db.withTx(ctx, func(tx *sql.Tx) error {
		var (
			txID   sql.NullInt64
			amount float64
		)
		err := tx.QueryRowContext(ctx, s.db.Rebind(`SELECT transaction_id, amount FROM payments WHERE id = ?`), id).Scan(&txID, &amount)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return engineErr("get payment", err)
		}
		if _, err := tx.ExecContext(ctx, s.db.Rebind(`DELETE FROM payments WHERE id = ?`), id); err != nil {
			return engineErr("delete payment", err)
		}
		if txID.Valid {
			return s.applyPayment(ctx, tx, txID.Int64, -amount, false)
		}
		return nil
	})
}

func (s *BillingService) PaymentSummary(ctx context.Context) (*model.PaymentSummary, error) {
	sum := &model.PaymentSummary{ByMethod: []model.MethodTotal{}}
	err := s.db.QueryRowContext(ctx, s.db.Rebind(`
		SELECT COUNT(*), COALESCE(SUM(amount), 0),
			COALESCE(SUM(CASE WHEN payment_date >= ? THEN amount ELSE 0 END), 0)
		FROM payments`), startOfDay(s.now()),
	).Scan(&sum.TotalPayments, &sum.TotalAmount, &sum.TodayAmount)
	if err != nil {
		return nil, engineErr("payment summary", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT payment_method, COUNT(*), COALESCE(SUM(amount), 0)
		FROM payments GROUP BY payment_method ORDER BY payment_method`)
	if err != nil {
		return nil, engineErr("payment summary", err)
	}
	defer rows.Close()
	for rows.Next() {
		var m model.MethodTotal
		if err := rows.Scan(&m.Method, &m.Count, &m.Total); err != nil {
			return nil, engineErr("payment summary", err)
		}
		sum.ByMethod = append(sum.ByMethod, m)
	}
	return sum, engineErr("payment summary", rows.Err())
}
