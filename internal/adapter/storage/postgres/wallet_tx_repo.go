package postgres

import (
	"context"
	"errors"
	"fmt"

	"unlock-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// WalletTxRepo implements ports.WalletTransactionRepository. The table is
// append-only: no update or delete statements exist on purpose.
type WalletTxRepo struct {
	pool Pool
}

// NewWalletTxRepo creates a new WalletTxRepo.
func NewWalletTxRepo(pool Pool) *WalletTxRepo {
	return &WalletTxRepo{pool: pool}
}

// Create appends a ledger entry within a database transaction.
func (r *WalletTxRepo) Create(ctx context.Context, tx pgx.Tx, wtx *domain.WalletTransaction) error {
	query := `INSERT INTO wallet_transactions
		(id, wallet_id, tx_type, amount, balance_after, reference_type, reference_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := tx.Exec(ctx, query,
		wtx.ID, wtx.WalletID, wtx.TxType, wtx.Amount, wtx.BalanceAfter,
		wtx.ReferenceType, wtx.ReferenceID, wtx.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert wallet transaction: %w", err)
	}
	return nil
}

// ListByWallet returns a page of ledger entries, newest first, plus the total count.
func (r *WalletTxRepo) ListByWallet(ctx context.Context, walletID uuid.UUID, page, pageSize int) ([]domain.WalletTransaction, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	var total int64
	countQuery := `SELECT COUNT(*) FROM wallet_transactions WHERE wallet_id = $1`
	if err := r.pool.QueryRow(ctx, countQuery, walletID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count wallet transactions: %w", err)
	}

	query := `SELECT id, wallet_id, tx_type, amount, balance_after, reference_type, reference_id, created_at
		FROM wallet_transactions WHERE wallet_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, walletID, pageSize, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list wallet transactions: %w", err)
	}
	defer rows.Close()

	var txs []domain.WalletTransaction
	for rows.Next() {
		var t domain.WalletTransaction
		if err := rows.Scan(
			&t.ID, &t.WalletID, &t.TxType, &t.Amount, &t.BalanceAfter,
			&t.ReferenceType, &t.ReferenceID, &t.CreatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("scan wallet transaction: %w", err)
		}
		txs = append(txs, t)
	}
	return txs, total, rows.Err()
}

// SumByWallet returns the signed sum of all entries for a wallet. Used by
// reconciliation checks: the sum must equal the wallet balance.
func (r *WalletTxRepo) SumByWallet(ctx context.Context, walletID uuid.UUID) (decimal.Decimal, error) {
	query := `SELECT COALESCE(SUM(amount), 0) FROM wallet_transactions WHERE wallet_id = $1`

	var sum decimal.Decimal
	err := r.pool.QueryRow(ctx, query, walletID).Scan(&sum)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, nil
		}
		return decimal.Zero, fmt.Errorf("sum wallet transactions: %w", err)
	}
	return sum, nil
}
