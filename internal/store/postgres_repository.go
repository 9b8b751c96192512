/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository` interface.
 * It contains all the SQL needed for the wallet ledger: the atomic balance
 * primitives, the purchase saga's reserve/settle/refund steps, the idempotent
 * funding credit, and the catalog and history queries.
 *
 * The concurrency-critical rule: a balance is only ever changed by a single
 * conditional UPDATE (`balance = balance + delta ... AND balance + delta >= 0`),
 * executed in the same database transaction as the ledger record it belongs to.
 * There is no read-then-write anywhere in this file.
 *
 * @dependencies
 * - context, errors, fmt, strings, time: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dataflare/wallet-service/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrUserNotFound          = errors.New("user not found")
	ErrInsufficientFunds     = errors.New("insufficient funds")
	ErrBundleNotFound        = errors.New("bundle not found")
	ErrTransactionNotFound   = errors.New("transaction not found")
	ErrTransactionSettled    = errors.New("transaction already settled")
	ErrDuplicateUser         = errors.New("email or phone already registered")
	ErrDuplicateReferralCode = errors.New("referral code already taken")
)

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const userColumns = `id, phone, email, password_hash, balance, referral_code, referred_by,
	referral_bonus_total, referral_count, is_admin, is_active, created_at, updated_at`

func scanUser(row pgx.Row) (*domain.User, error) {
	var user domain.User
	err := row.Scan(
		&user.ID,
		&user.Phone,
		&user.Email,
		&user.PasswordHash,
		&user.Balance,
		&user.ReferralCode,
		&user.ReferredBy,
		&user.ReferralBonusTotal,
		&user.ReferralCount,
		&user.IsAdmin,
		&user.IsActive,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// CreateUser inserts a new user row. Email, phone and referral code carry
// unique constraints; violations surface as typed errors so the caller can
// retry code generation or reject the registration.
func (r *PostgresRepository) CreateUser(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (id, phone, email, password_hash, referral_code, referred_by, is_admin, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING balance, referral_bonus_total, referral_count, created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		user.ID, user.Phone, user.Email, user.PasswordHash,
		user.ReferralCode, user.ReferredBy, user.IsAdmin, user.IsActive,
	).Scan(&user.Balance, &user.ReferralBonusTotal, &user.ReferralCount, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			if strings.Contains(pgErr.ConstraintName, "referral_code") {
				return ErrDuplicateReferralCode
			}
			return ErrDuplicateUser
		}
		return err
	}
	return nil
}

// FindUserByID retrieves a user by their ID.
func (r *PostgresRepository) FindUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE id = $1`, userColumns)
	return scanUser(r.db.QueryRow(ctx, query, userID))
}

// FindUserByEmailOrPhone resolves a login identifier, which may be either an
// email address or a phone number.
func (r *PostgresRepository) FindUserByEmailOrPhone(ctx context.Context, identifier string) (*domain.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE lower(email) = lower(btrim($1)) OR phone = btrim($1)`, userColumns)
	return scanUser(r.db.QueryRow(ctx, query, identifier))
}

// FindUserByReferralCode resolves a referral code to its owner.
func (r *PostgresRepository) FindUserByReferralCode(ctx context.Context, code string) (*domain.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE referral_code = upper(btrim($1))`, userColumns)
	return scanUser(r.db.QueryRow(ctx, query, code))
}

// SetUserActive toggles the suspension flag.
func (r *PostgresRepository) SetUserActive(ctx context.Context, userID uuid.UUID, active bool) error {
	result, err := r.db.Exec(ctx, `UPDATE users SET is_active = $1, updated_at = NOW() WHERE id = $2`, active, userID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// ListUsers returns a page of users for the admin screen, optionally filtered
// by an email/phone search term.
func (r *PostgresRepository) ListUsers(ctx context.Context, opts domain.UserListOptions) ([]domain.User, int64, error) {
	where := ""
	args := []interface{}{}
	if search := strings.TrimSpace(opts.Search); search != "" {
		where = `WHERE email ILIKE $1 OR phone ILIKE $1`
		args = append(args, "%"+search+"%")
	}

	var total int64
	if err := r.db.QueryRow(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM users %s`, where), args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit, offset := normalizePage(opts.Limit, opts.Offset)
	query := fmt.Sprintf(`SELECT %s FROM users %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		userColumns, where, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, *user)
	}
	return users, total, rows.Err()
}

// adjustBalance runs the conditional balance update against any pgx querier
// (pool or open transaction). The sufficiency check and the write are one
// statement, so concurrent debits serialize on the row and can never jointly
// overdraw the account.
func adjustBalance(ctx context.Context, q interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}, userID uuid.UUID, delta int64) (int64, error) {
	var balance int64
	err := q.QueryRow(ctx,
		`UPDATE users SET balance = balance + $1, updated_at = NOW()
		 WHERE id = $2 AND balance + $1 >= 0
		 RETURNING balance`,
		delta, userID,
	).Scan(&balance)
	if err == nil {
		return balance, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, err
	}
	// Disambiguate: the guard rejected the debit, or the user does not exist.
	var exists bool
	if scanErr := q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists); scanErr != nil {
		return 0, scanErr
	}
	if !exists {
		return 0, ErrUserNotFound
	}
	return 0, ErrInsufficientFunds
}

// AdjustBalance applies a signed delta atomically, failing with
// ErrInsufficientFunds when a debit would drive the balance below zero.
func (r *PostgresRepository) AdjustBalance(ctx context.Context, userID uuid.UUID, delta int64) (int64, error) {
	return adjustBalance(ctx, r.db, userID, delta)
}

const insertTransaction = `
	INSERT INTO transactions
		(id, user_id, kind, direction, amount, status, network, bundle_label, phone_number,
		 payment_reference, provider_reference, description)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	RETURNING created_at, updated_at
`

func insertTransactionRow(ctx context.Context, q interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}, t *domain.Transaction) error {
	return q.QueryRow(ctx, insertTransaction,
		t.ID, t.UserID, t.Kind, t.Direction, t.Amount, t.Status,
		nullIfEmpty(t.Network), nullIfEmpty(t.BundleLabel), nullIfEmpty(t.PhoneNumber),
		t.PaymentReference, t.ProviderReference, t.Description,
	).Scan(&t.CreatedAt, &t.UpdatedAt)
}

// ReservePurchase is the saga's commit point: it debits the bundle price and
// appends the pending purchase record in one database transaction. Once this
// returns, the money has left the spendable balance.
func (r *PostgresRepository) ReservePurchase(ctx context.Context, t *domain.Transaction) (int64, error) {
	dbTx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer dbTx.Rollback(ctx)

	balance, err := adjustBalance(ctx, dbTx, t.UserID, -t.Amount)
	if err != nil {
		return 0, err
	}

	t.Kind = domain.KindPurchase
	t.Direction = domain.DirectionDebit
	t.Status = domain.StatusPending
	if err := insertTransactionRow(ctx, dbTx, t); err != nil {
		return 0, err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return 0, err
	}
	return balance, nil
}

// SettlePurchaseDelivered flips a pending purchase to success and attaches the
// provider's confirmation reference. The status predicate makes the flip a
// compare-and-swap: a purchase that already reached a terminal state is left
// untouched, except that a success record missing its provider reference may
// still have one attached.
func (r *PostgresRepository) SettlePurchaseDelivered(ctx context.Context, txID uuid.UUID, providerRef string) error {
	result, err := r.db.Exec(ctx,
		`UPDATE transactions SET status = $1, provider_reference = $2, updated_at = NOW()
		 WHERE id = $3 AND kind = $4 AND status = $5`,
		domain.StatusSuccess, providerRef, txID, domain.KindPurchase, domain.StatusPending,
	)
	if err != nil {
		return err
	}
	if result.RowsAffected() > 0 {
		return nil
	}

	existing, err := r.FindTransactionByID(ctx, txID)
	if err != nil {
		return err
	}
	if existing.Status == domain.StatusSuccess {
		if existing.ProviderReference == nil && providerRef != "" {
			_, err = r.db.Exec(ctx,
				`UPDATE transactions SET provider_reference = $1, updated_at = NOW() WHERE id = $2 AND provider_reference IS NULL`,
				providerRef, txID)
			return err
		}
		return nil
	}
	return ErrTransactionSettled
}

// RefundPurchase reverses a pending purchase: the status flip to failed and
// the compensating credit commit together. The pending->failed transition is
// the idempotency guard, so retrying a refund that already landed is a no-op
// and reports applied=false with the current balance.
func (r *PostgresRepository) RefundPurchase(ctx context.Context, txID uuid.UUID) (bool, int64, error) {
	dbTx, err := r.db.Begin(ctx)
	if err != nil {
		return false, 0, err
	}
	defer dbTx.Rollback(ctx)

	var userID uuid.UUID
	var amount int64
	err = dbTx.QueryRow(ctx,
		`UPDATE transactions SET status = $1, updated_at = NOW()
		 WHERE id = $2 AND kind = $3 AND status = $4
		 RETURNING user_id, amount`,
		domain.StatusFailed, txID, domain.KindPurchase, domain.StatusPending,
	).Scan(&userID, &amount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			existing, findErr := r.FindTransactionByID(ctx, txID)
			if findErr != nil {
				return false, 0, findErr
			}
			var balance int64
			if scanErr := r.db.QueryRow(ctx, `SELECT balance FROM users WHERE id = $1`, existing.UserID).Scan(&balance); scanErr != nil {
				return false, 0, scanErr
			}
			return false, balance, nil
		}
		return false, 0, err
	}

	balance, err := adjustBalance(ctx, dbTx, userID, amount)
	if err != nil {
		return false, 0, err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return false, 0, err
	}
	return true, balance, nil
}

// CreatePendingFunding appends the pending funding record created alongside a
// Paystack initialization. The payment reference is unique, so a duplicate
// initialization attempt for the same reference fails loudly.
func (r *PostgresRepository) CreatePendingFunding(ctx context.Context, t *domain.Transaction) error {
	t.Kind = domain.KindFunding
	t.Direction = domain.DirectionCredit
	t.Status = domain.StatusPending
	return insertTransactionRow(ctx, r.db, t)
}

// ApplyFundingSuccess credits a funding transaction at most once. The
// pending->success CAS is the shared idempotency gate for the verify path and
// the webhook path: whichever lands first wins the row, the loser observes
// zero rows and reports credited=false with the current balance.
//
// The credited amount is the provider-confirmed amount, which supersedes the
// amount captured at initialization.
func (r *PostgresRepository) ApplyFundingSuccess(ctx context.Context, paymentRef string, amount int64) (bool, int64, error) {
	dbTx, err := r.db.Begin(ctx)
	if err != nil {
		return false, 0, err
	}
	defer dbTx.Rollback(ctx)

	var userID uuid.UUID
	err = dbTx.QueryRow(ctx,
		`UPDATE transactions SET status = $1, amount = $2, updated_at = NOW()
		 WHERE payment_reference = $3 AND kind = $4 AND status = $5
		 RETURNING user_id`,
		domain.StatusSuccess, amount, paymentRef, domain.KindFunding, domain.StatusPending,
	).Scan(&userID)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return false, 0, err
		}
		// Already settled (or unknown). Roll back and report without mutating.
		existing, findErr := r.FindTransactionByPaymentRef(ctx, paymentRef)
		if findErr != nil {
			return false, 0, findErr
		}
		var balance int64
		if scanErr := r.db.QueryRow(ctx, `SELECT balance FROM users WHERE id = $1`, existing.UserID).Scan(&balance); scanErr != nil {
			return false, 0, scanErr
		}
		return false, balance, nil
	}

	balance, err := adjustBalance(ctx, dbTx, userID, amount)
	if err != nil {
		return false, 0, err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return false, 0, err
	}
	return true, balance, nil
}

// MarkFundingFailed flips a pending funding record to failed with no credit.
// Terminal records are left untouched.
func (r *PostgresRepository) MarkFundingFailed(ctx context.Context, paymentRef string) error {
	result, err := r.db.Exec(ctx,
		`UPDATE transactions SET status = $1, updated_at = NOW()
		 WHERE payment_reference = $2 AND kind = $3 AND status = $4`,
		domain.StatusFailed, paymentRef, domain.KindFunding, domain.StatusPending,
	)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		if _, findErr := r.FindTransactionByPaymentRef(ctx, paymentRef); findErr != nil {
			return findErr
		}
	}
	return nil
}

// ApplyReferralBonus credits the inviter, bumps their lifetime referral
// counters, and appends the bonus record, all in one database transaction.
func (r *PostgresRepository) ApplyReferralBonus(ctx context.Context, inviterID uuid.UUID, amount int64, description string) error {
	dbTx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer dbTx.Rollback(ctx)

	result, err := dbTx.Exec(ctx,
		`UPDATE users SET balance = balance + $1, referral_bonus_total = referral_bonus_total + $1,
			referral_count = referral_count + 1, updated_at = NOW()
		 WHERE id = $2`,
		amount, inviterID,
	)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}

	record := &domain.Transaction{
		ID:          uuid.New(),
		UserID:      inviterID,
		Kind:        domain.KindReferralBonus,
		Direction:   domain.DirectionCredit,
		Amount:      amount,
		Status:      domain.StatusSuccess,
		Description: description,
	}
	if err := insertTransactionRow(ctx, dbTx, record); err != nil {
		return err
	}

	return dbTx.Commit(ctx)
}

// AdminAdjust applies a signed manual adjustment under the same non-negative
// guard as ordinary debits, and appends the operator's reason to the ledger.
func (r *PostgresRepository) AdminAdjust(ctx context.Context, userID uuid.UUID, delta int64, description string) (int64, error) {
	dbTx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer dbTx.Rollback(ctx)

	balance, err := adjustBalance(ctx, dbTx, userID, delta)
	if err != nil {
		return 0, err
	}

	direction := domain.DirectionCredit
	amount := delta
	if delta < 0 {
		direction = domain.DirectionDebit
		amount = -delta
	}
	record := &domain.Transaction{
		ID:          uuid.New(),
		UserID:      userID,
		Kind:        domain.KindAdminAdjustment,
		Direction:   direction,
		Amount:      amount,
		Status:      domain.StatusSuccess,
		Description: description,
	}
	if err := insertTransactionRow(ctx, dbTx, record); err != nil {
		return 0, err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return 0, err
	}
	return balance, nil
}

const bundleColumns = `id, network, name, size, validity, price, plan_code, is_active, created_at, updated_at`

func scanBundle(row pgx.Row) (*domain.DataBundle, error) {
	var b domain.DataBundle
	err := row.Scan(&b.ID, &b.Network, &b.Name, &b.Size, &b.Validity, &b.Price, &b.PlanCode, &b.IsActive, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBundleNotFound
		}
		return nil, err
	}
	return &b, nil
}

// ListBundles returns the catalog, optionally restricted to one network and to
// active bundles only, sorted the way the storefront displays them.
func (r *PostgresRepository) ListBundles(ctx context.Context, network string, activeOnly bool) ([]domain.DataBundle, error) {
	var clauses []string
	var args []interface{}
	if activeOnly {
		clauses = append(clauses, "is_active = TRUE")
	}
	if network != "" {
		args = append(args, network)
		clauses = append(clauses, fmt.Sprintf("network = $%d", len(args)))
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}

	query := fmt.Sprintf(`SELECT %s FROM data_bundles %s ORDER BY network, price`, bundleColumns, where)
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bundles []domain.DataBundle
	for rows.Next() {
		b, err := scanBundle(rows)
		if err != nil {
			return nil, err
		}
		bundles = append(bundles, *b)
	}
	return bundles, rows.Err()
}

// FindBundleByID retrieves a single bundle.
func (r *PostgresRepository) FindBundleByID(ctx context.Context, bundleID uuid.UUID) (*domain.DataBundle, error) {
	query := fmt.Sprintf(`SELECT %s FROM data_bundles WHERE id = $1`, bundleColumns)
	return scanBundle(r.db.QueryRow(ctx, query, bundleID))
}

// CreateBundle inserts a new catalog entry.
func (r *PostgresRepository) CreateBundle(ctx context.Context, b *domain.DataBundle) error {
	return r.db.QueryRow(ctx,
		`INSERT INTO data_bundles (id, network, name, size, validity, price, plan_code, is_active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING created_at, updated_at`,
		b.ID, b.Network, b.Name, b.Size, b.Validity, b.Price, b.PlanCode, b.IsActive,
	).Scan(&b.CreatedAt, &b.UpdatedAt)
}

// UpdateBundle rewrites a catalog entry in full.
func (r *PostgresRepository) UpdateBundle(ctx context.Context, b *domain.DataBundle) error {
	result, err := r.db.Exec(ctx,
		`UPDATE data_bundles SET network = $1, name = $2, size = $3, validity = $4,
			price = $5, plan_code = $6, is_active = $7, updated_at = NOW()
		 WHERE id = $8`,
		b.Network, b.Name, b.Size, b.Validity, b.Price, b.PlanCode, b.IsActive, b.ID,
	)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrBundleNotFound
	}
	return nil
}

// DeleteBundle removes a catalog entry. Purchase records keep their own copy
// of the bundle descriptor, so history is unaffected.
func (r *PostgresRepository) DeleteBundle(ctx context.Context, bundleID uuid.UUID) error {
	result, err := r.db.Exec(ctx, `DELETE FROM data_bundles WHERE id = $1`, bundleID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrBundleNotFound
	}
	return nil
}

const transactionColumns = `id, user_id, kind, direction, amount, status,
	COALESCE(network, ''), COALESCE(bundle_label, ''), COALESCE(phone_number, ''),
	payment_reference, provider_reference, COALESCE(description, ''), created_at, updated_at`

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var t domain.Transaction
	err := row.Scan(
		&t.ID, &t.UserID, &t.Kind, &t.Direction, &t.Amount, &t.Status,
		&t.Network, &t.BundleLabel, &t.PhoneNumber,
		&t.PaymentReference, &t.ProviderReference, &t.Description,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return &t, nil
}

// FindTransactionByID retrieves a single ledger record.
func (r *PostgresRepository) FindTransactionByID(ctx context.Context, txID uuid.UUID) (*domain.Transaction, error) {
	query := fmt.Sprintf(`SELECT %s FROM transactions WHERE id = $1`, transactionColumns)
	return scanTransaction(r.db.QueryRow(ctx, query, txID))
}

// FindTransactionByPaymentRef retrieves the funding record for a Paystack reference.
func (r *PostgresRepository) FindTransactionByPaymentRef(ctx context.Context, paymentRef string) (*domain.Transaction, error) {
	query := fmt.Sprintf(`SELECT %s FROM transactions WHERE payment_reference = $1`, transactionColumns)
	return scanTransaction(r.db.QueryRow(ctx, query, paymentRef))
}

func listTransactionsFilter(opts domain.TransactionListOptions, args []interface{}) ([]string, []interface{}) {
	var clauses []string
	if opts.Kind != "" {
		args = append(args, opts.Kind)
		clauses = append(clauses, fmt.Sprintf("kind = $%d", len(args)))
	}
	if opts.Status != "" {
		args = append(args, opts.Status)
		clauses = append(clauses, fmt.Sprintf("status = $%d", len(args)))
	}
	return clauses, args
}

func (r *PostgresRepository) listTransactions(ctx context.Context, clauses []string, args []interface{}, limit, offset int) ([]domain.Transaction, int64, error) {
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}

	var total int64
	if err := r.db.QueryRow(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM transactions %s`, where), args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM transactions %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		transactionColumns, where, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var list []domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, *t)
	}
	return list, total, rows.Err()
}

// ListTransactionsByUser returns a page of one user's history, newest first.
func (r *PostgresRepository) ListTransactionsByUser(ctx context.Context, userID uuid.UUID, opts domain.TransactionListOptions) ([]domain.Transaction, int64, error) {
	args := []interface{}{userID}
	clauses := []string{"user_id = $1"}
	extra, args := listTransactionsFilter(opts, args)
	clauses = append(clauses, extra...)
	limit, offset := normalizePage(opts.Limit, opts.Offset)
	return r.listTransactions(ctx, clauses, args, limit, offset)
}

// ListAllTransactions returns a page of the platform-wide ledger for admins.
func (r *PostgresRepository) ListAllTransactions(ctx context.Context, opts domain.TransactionListOptions) ([]domain.Transaction, int64, error) {
	clauses, args := listTransactionsFilter(opts, nil)
	limit, offset := normalizePage(opts.Limit, opts.Offset)
	return r.listTransactions(ctx, clauses, args, limit, offset)
}

// FindStalePendingPurchases lists purchase records stuck in pending beyond
// the cutoff, oldest first, for the reconcile sweep.
func (r *PostgresRepository) FindStalePendingPurchases(ctx context.Context, olderThan time.Time, limit int) ([]domain.Transaction, error) {
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(
		`SELECT %s FROM transactions WHERE kind = $1 AND status = $2 AND created_at < $3 ORDER BY created_at LIMIT $4`,
		transactionColumns)
	rows, err := r.db.Query(ctx, query, domain.KindPurchase, domain.StatusPending, olderThan, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *t)
	}
	return list, rows.Err()
}

// GetPlatformStats aggregates the admin dashboard counters.
func (r *PostgresRepository) GetPlatformStats(ctx context.Context) (*domain.PlatformStats, error) {
	var stats domain.PlatformStats
	err := r.db.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM users),
			(SELECT COUNT(*) FROM transactions),
			(SELECT COUNT(*) FROM transactions WHERE kind = $1 AND status = $2),
			(SELECT COALESCE(SUM(amount), 0) FROM transactions WHERE kind = $3 AND status = $2)
	`, domain.KindPurchase, domain.StatusSuccess, domain.KindFunding).Scan(
		&stats.TotalUsers,
		&stats.TotalTransactions,
		&stats.SuccessfulPurchases,
		&stats.TotalRevenue,
	)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
