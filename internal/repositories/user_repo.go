package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"go-userapi/internal/config"
	"go-userapi/internal/database"
	"go-userapi/internal/models"

	"github.com/godror/godror"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

var (
	// ErrDuplicateUser is returned when a write violates the username/email unique constraints.
	ErrDuplicateUser = errors.New("duplicate username or email")
	// ErrNotFound is returned by writes that target a missing row.
	ErrNotFound = errors.New("user record not found")
)

// UserRepository defines the interface for user data operations.
// Finders return (nil, nil) when no row matches.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	FindByID(ctx context.Context, id int64) (*models.User, error)
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	FindByUsernameOrEmail(ctx context.Context, username, email string) (*models.User, error)
	FindByUsernameOrEmailExcluding(ctx context.Context, username, email string, excludeID int64) (*models.User, error)
	List(ctx context.Context, filter string, page, pageSize int) ([]models.User, int64, error)
	Update(ctx context.Context, user *models.User) (*models.User, error)
	Delete(ctx context.Context, user *models.User) error
}

// dialect captures the SQL differences between the supported user stores.
type dialect struct {
	name     string
	bind     func(n int) string
	firstRow string
	paginate func(q *queryArgs, limit, offset int) string
}

var (
	sqliteDialect = dialect{
		name:     config.DriverSQLite,
		bind:     func(int) string { return "?" },
		firstRow: " LIMIT 1",
		paginate: limitOffset,
	}
	postgresDialect = dialect{
		name:     config.DriverPostgres,
		bind:     func(n int) string { return "$" + strconv.Itoa(n) },
		firstRow: " LIMIT 1",
		paginate: limitOffset,
	}
	oracleDialect = dialect{
		name:     config.DriverOracle,
		bind:     func(n int) string { return ":" + strconv.Itoa(n) },
		firstRow: " FETCH FIRST 1 ROWS ONLY",
		paginate: func(q *queryArgs, limit, offset int) string {
			return fmt.Sprintf(" OFFSET %s ROWS FETCH NEXT %s ROWS ONLY", q.add(offset), q.add(limit))
		},
	}
)

func limitOffset(q *queryArgs, limit, offset int) string {
	return fmt.Sprintf(" LIMIT %s OFFSET %s", q.add(limit), q.add(offset))
}

// queryArgs collects positional arguments and renders their placeholders.
type queryArgs struct {
	d    dialect
	args []any
}

func (q *queryArgs) add(v any) string {
	q.args = append(q.args, v)
	return q.d.bind(len(q.args))
}

const userColumns = `id, username, password, email, nama, created_at`

// sqlUserRepository implements UserRepository on database/sql for every dialect.
type sqlUserRepository struct {
	db     *sql.DB
	d      dialect
	logger *zap.Logger
}

// NewUserRepository creates the UserRepository for the configured driver.
func NewUserRepository(db *sql.DB, driver string, logger *zap.Logger) (UserRepository, error) {
	var d dialect
	switch driver {
	case config.DriverSQLite:
		d = sqliteDialect
	case config.DriverPostgres:
		d = postgresDialect
	case config.DriverOracle:
		d = oracleDialect
	default:
		return nil, fmt.Errorf("unsupported user store driver %q", driver)
	}
	return &sqlUserRepository{db: db, d: d, logger: logger}, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	u := &models.User{}
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Email, &u.Nama, &u.CreatedAt); err != nil {
		return nil, err
	}
	u.CreatedAt = u.CreatedAt.UTC()
	return u, nil
}

// findOne runs a single-row SELECT over users with the given WHERE clause.
func (r *sqlUserRepository) findOne(ctx context.Context, db database.DBTX, where string, q *queryArgs) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + where + r.d.firstRow
	r.logger.Debug("Executing user lookup", zap.String("query", query))

	user, err := scanUser(db.QueryRowContext(ctx, query, q.args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

// Create inserts a new user and sets its storage-assigned ID.
func (r *sqlUserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	q := &queryArgs{d: r.d}
	values := strings.Join([]string{
		q.add(user.Username), q.add(user.PasswordHash), q.add(user.Email), q.add(user.Nama), q.add(user.CreatedAt),
	}, ", ")
	query := `INSERT INTO users (username, password, email, nama, created_at) VALUES (` + values + `)`

	r.logger.Debug("Executing Create user query", zap.String("username", user.Username))

	var newID int64
	var err error
	if r.d.name == config.DriverOracle {
		query += ` RETURNING id INTO ` + q.add(sql.Out{Dest: &newID})
		_, err = r.db.ExecContext(ctx, query, q.args...)
	} else {
		err = r.db.QueryRowContext(ctx, query+` RETURNING id`, q.args...).Scan(&newID)
	}
	if err != nil {
		if isUniqueViolation(err) {
			r.logger.Warn("Create user hit unique constraint", zap.String("username", user.Username), zap.Error(err))
			return nil, ErrDuplicateUser
		}
		r.logger.Error("Error creating user", zap.String("username", user.Username), zap.Error(err))
		return nil, fmt.Errorf("error creating user %s: %w", user.Username, err)
	}

	user.ID = newID
	r.logger.Info("User created", zap.String("username", user.Username), zap.Int64("newID", newID))
	return user, nil
}

// FindByID retrieves a user by primary key.
func (r *sqlUserRepository) FindByID(ctx context.Context, id int64) (*models.User, error) {
	q := &queryArgs{d: r.d}
	user, err := r.findOne(ctx, r.db, `id = `+q.add(id), q)
	if err != nil {
		r.logger.Error("Error querying user by ID", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("error finding user by ID %d: %w", id, err)
	}
	return user, nil
}

// FindByUsername retrieves a user by exact username.
func (r *sqlUserRepository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	q := &queryArgs{d: r.d}
	user, err := r.findOne(ctx, r.db, `username = `+q.add(username), q)
	if err != nil {
		r.logger.Error("Error querying user by username", zap.String("username", username), zap.Error(err))
		return nil, fmt.Errorf("error finding user by username %s: %w", username, err)
	}
	return user, nil
}

// FindByUsernameOrEmail returns any user holding either the username or the email.
func (r *sqlUserRepository) FindByUsernameOrEmail(ctx context.Context, username, email string) (*models.User, error) {
	return r.findTaken(ctx, username, email, 0)
}

// FindByUsernameOrEmailExcluding is FindByUsernameOrEmail ignoring the row with excludeID.
// Empty arguments are not matched against.
func (r *sqlUserRepository) FindByUsernameOrEmailExcluding(ctx context.Context, username, email string, excludeID int64) (*models.User, error) {
	return r.findTaken(ctx, username, email, excludeID)
}

func (r *sqlUserRepository) findTaken(ctx context.Context, username, email string, excludeID int64) (*models.User, error) {
	q := &queryArgs{d: r.d}
	var ors []string
	if username != "" {
		ors = append(ors, `username = `+q.add(username))
	}
	if email != "" {
		ors = append(ors, `email = `+q.add(email))
	}
	if len(ors) == 0 {
		return nil, nil
	}
	where := `(` + strings.Join(ors, ` OR `) + `)`
	if excludeID != 0 {
		where += ` AND id <> ` + q.add(excludeID)
	}

	user, err := r.findOne(ctx, r.db, where, q)
	if err != nil {
		r.logger.Error("Error checking username/email availability", zap.String("username", username), zap.String("email", email), zap.Error(err))
		return nil, fmt.Errorf("error finding user by username or email: %w", err)
	}
	return user, nil
}

// escapeLike escapes LIKE wildcards so the filter matches literally.
func escapeLike(s string) string {
	return strings.NewReplacer("!", "!!", "%", "!%", "_", "!_").Replace(s)
}

// pageOffset returns the row offset of page. ok is false when the offset
// does not fit in an int, which is always past the last row.
func pageOffset(page, pageSize int) (offset int, ok bool) {
	if page < 1 {
		page = 1
	}
	if page-1 > math.MaxInt/pageSize {
		return 0, false
	}
	return (page - 1) * pageSize, true
}

// List returns users ordered by ID whose nama, username or email contains filter,
// plus the number of matching rows before pagination. pageSize <= 0 returns all rows.
func (r *sqlUserRepository) List(ctx context.Context, filter string, page, pageSize int) ([]models.User, int64, error) {
	q := &queryArgs{d: r.d}
	where := ""
	if filter != "" {
		pattern := "%" + escapeLike(filter) + "%"
		where = fmt.Sprintf(` WHERE nama LIKE %s ESCAPE '!' OR username LIKE %s ESCAPE '!' OR email LIKE %s ESCAPE '!'`,
			q.add(pattern), q.add(pattern), q.add(pattern))
	}

	var total int64
	if pageSize > 0 {
		if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`+where, q.args...).Scan(&total); err != nil {
			r.logger.Error("Error counting users", zap.String("filter", filter), zap.Error(err))
			return nil, 0, fmt.Errorf("error counting users: %w", err)
		}
	}

	query := `SELECT ` + userColumns + ` FROM users` + where + ` ORDER BY id`
	if pageSize > 0 {
		offset, ok := pageOffset(page, pageSize)
		if !ok || int64(offset) >= total {
			return []models.User{}, total, nil
		}
		query += r.d.paginate(q, pageSize, offset)
	}
	r.logger.Debug("Executing List users query", zap.String("query", query))

	rows, err := r.db.QueryContext(ctx, query, q.args...)
	if err != nil {
		r.logger.Error("Error listing users", zap.String("filter", filter), zap.Error(err))
		return nil, 0, fmt.Errorf("error listing users: %w", err)
	}
	defer rows.Close()

	users := make([]models.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("error scanning user row: %w", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("user row iteration error: %w", err)
	}

	if pageSize <= 0 {
		total = int64(len(users))
	}
	return users, total, nil
}

// Update persists username, email and nama of user and returns the stored row.
// The write and the read-back share one transaction.
func (r *sqlUserRepository) Update(ctx context.Context, user *models.User) (*models.User, error) {
	var updated *models.User
	err := database.WithTx(ctx, r.db, func(ctx context.Context, tx database.DBTX) error {
		q := &queryArgs{d: r.d}
		query := fmt.Sprintf(`UPDATE users SET username = %s, email = %s, nama = %s WHERE id = %s`,
			q.add(user.Username), q.add(user.Email), q.add(user.Nama), q.add(user.ID))
		res, err := tx.ExecContext(ctx, query, q.args...)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return ErrNotFound
		}

		rq := &queryArgs{d: r.d}
		updated, err = r.findOne(ctx, tx, `id = `+rq.add(user.ID), rq)
		if err != nil {
			return err
		}
		if updated == nil {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return nil, ErrNotFound
		case isUniqueViolation(err):
			r.logger.Warn("Update user hit unique constraint", zap.Int64("id", user.ID), zap.Error(err))
			return nil, ErrDuplicateUser
		}
		r.logger.Error("Error updating user", zap.Int64("id", user.ID), zap.Error(err))
		return nil, fmt.Errorf("error updating user %d: %w", user.ID, err)
	}
	return updated, nil
}

// Delete removes the user row.
func (r *sqlUserRepository) Delete(ctx context.Context, user *models.User) error {
	err := database.WithTx(ctx, r.db, func(ctx context.Context, tx database.DBTX) error {
		q := &queryArgs{d: r.d}
		res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = `+q.add(user.ID), q.args...)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		r.logger.Error("Error deleting user", zap.Int64("id", user.ID), zap.Error(err))
		return fmt.Errorf("error deleting user %d: %w", user.ID, err)
	}
	r.logger.Info("User deleted", zap.Int64("id", user.ID), zap.String("username", user.Username))
	return nil
}

// isUniqueViolation recognises unique-constraint errors from every supported driver.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	if oraErr, ok := godror.AsOraErr(err); ok {
		return oraErr.Code() == 1 // ORA-00001: unique constraint violated
	}
	return false
}
