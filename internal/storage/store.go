package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgtype"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"go.uber.org/zap"

	"polling-chat/internal/storage/zapadapter"
)

// Store defines fields used in db interaction processes
type Store struct {
	logger *zap.SugaredLogger
	db     *pgxpool.Pool
}

// New sets provided zap.Logger via zapadapter to pgxpool.Pool and returns instance of Store struct
func New(ctx context.Context, logger *zap.SugaredLogger, cfg Config, opts ...Option) (*Store, error) {
	config, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("pgxpool.ParseConfig: %w", err)
	}
	config.ConnConfig.Logger = zapadapter.NewLogger(logger.Desugar())
	config.ConnConfig.LogLevel = pgx.LogLevelWarn

	for _, opt := range opts {
		opt.apply(config)
	}

	pool, err := pgxpool.ConnectConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.ConnectConfig: %w", err)
	}

	return &Store{
		logger: logger,
		db:     pool,
	}, nil
}

// Initialize creates users and messages tables if they do not exist yet. Safe to call repeatedly.
func (s *Store) Initialize(ctx context.Context) error {
	s.logger.Debug("Initializing schema")

	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}

	return nil
}

// Close closes all pooled connections
func (s *Store) Close() {
	s.db.Close()
}

// CreateUser hashes password and inserts a new user.
// It returns false without error when username is already taken.
func (s *Store) CreateUser(ctx context.Context, username, password string) (bool, error) {
	s.logger.Debugf("Creating user (%s)", username)

	hash, err := hashPassword(password)
	if err != nil {
		return false, fmt.Errorf("hashing password: %w", err)
	}

	var id int64
	sql := "insert into users (username, password_hash) values ($1, $2) returning id"
	err = s.db.QueryRow(ctx, sql, username, hash).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			s.logger.Debugf("User (%s) already exists", username)
			return false, nil
		}
		return false, fmt.Errorf("inserting user: %w", err)
	}

	s.logger.Debugf("Created user (%s) with id %d", username, id)

	return true, nil
}

// VerifyUser checks password against the stored hash of username.
// Unknown username and wrong password both yield false.
func (s *Store) VerifyUser(ctx context.Context, username, password string) (bool, error) {
	s.logger.Debugf("Verifying user (%s)", username)

	var hash string
	sql := "select password_hash from users where username = $1"
	err := s.db.QueryRow(ctx, sql, username).Scan(&hash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("selecting user: %w", err)
	}

	ok, err := comparePassword(hash, password)
	if err != nil {
		return false, fmt.Errorf("comparing password of user (%s): %w", username, err)
	}

	return ok, nil
}

// AddMessage stores a message and returns it with the id and timestamp assigned by the database.
// Inserts are serialized by a transaction-scoped advisory lock, so ids become visible in ascending order.
func (s *Store) AddMessage(ctx context.Context, sender, content string) (Message, error) {
	s.logger.Debugf("Creating message from user (%s)", sender)

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return Message{}, fmt.Errorf("beginning transaction: %w", err)
	}
	// error handling can be omitted for rollback according docs
	defer tx.Rollback(context.Background())

	if _, err = tx.Exec(ctx, "select pg_advisory_xact_lock($1)", messagesLockKey); err != nil {
		return Message{}, fmt.Errorf("acquiring messages lock: %w", err)
	}

	var (
		m         Message
		createdAt pgtype.Timestamptz
	)
	sql := `insert into messages (sender_username, content)
			values ($1, $2)
			returning id, sender_username, content, created_at`
	err = tx.QueryRow(ctx, sql, sender, content).Scan(&m.ID, &m.Sender, &m.Content, &createdAt)
	if err != nil {
		return Message{}, fmt.Errorf("inserting message: %w", err)
	}
	m.CreatedAt = createdAt.Time

	if err = tx.Commit(ctx); err != nil {
		return Message{}, fmt.Errorf("committing message: %w", err)
	}

	s.logger.Debugf("Created message with id %d", m.ID)

	return m, nil
}

// MessagesAfter returns all messages with id greater than cursor, sorted by id ascending.
// The result is empty, not nil, when there is nothing newer.
func (s *Store) MessagesAfter(ctx context.Context, cursor int64) ([]Message, error) {
	s.logger.Debugf("Retrieving messages after id %d", cursor)

	sql := `select id, 
				   sender_username, 
				   content, 
				   created_at
			  from messages 
			 where id > $1 
			 order by id asc`

	rows, err := s.db.Query(ctx, sql, cursor)
	if err != nil {
		return nil, fmt.Errorf("selecting messages: %w", err)
	}

	defer rows.Close()

	messages := make([]Message, 0)
	for rows.Next() {
		var (
			m         Message
			createdAt pgtype.Timestamptz
		)
		err = rows.Scan(&m.ID, &m.Sender, &m.Content, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		m.CreatedAt = createdAt.Time
		messages = append(messages, m)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("iterating messages: %w", rows.Err())
	}

	s.logger.Debugf("Retrieved %d messages", len(messages))

	return messages, nil
}
