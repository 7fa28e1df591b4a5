package graph

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
)

// Config holds the connection settings for the social-graph database.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// Postgres resolves friendships from the relational social graph. Queries are
// read-only; the presence core never writes here.
type Postgres struct {
	db  *sql.DB
	log zerolog.Logger
}

func NewPostgres(cfg Config, log zerolog.Logger) (*Postgres, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening social graph database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("social graph database unreachable: %w", err)
	}
	return &Postgres{db: db, log: log}, nil
}

// Friendship rows are symmetric: the caller may appear on either side.
const friendsQuery = `
	SELECT user_id1, user_id2 FROM friendship_table
	WHERE (user_id1 = $1 OR user_id2 = $1) AND
		accepted_at IS NOT NULL
`

// FriendsOf returns the user ids with an accepted friendship with userID.
func (g *Postgres) FriendsOf(ctx context.Context, userID string) ([]string, error) {
	rows, err := g.db.QueryContext(ctx, friendsQuery, userID)
	if err != nil {
		return nil, fmt.Errorf("friendship query: %w", err)
	}
	defer rows.Close()

	var friends []string
	for rows.Next() {
		var a, b string
		if err := rows.Scan(&a, &b); err != nil {
			return nil, fmt.Errorf("friendship scan: %w", err)
		}
		if a == userID {
			friends = append(friends, b)
		} else {
			friends = append(friends, a)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("friendship rows: %w", err)
	}
	return friends, nil
}

func (g *Postgres) Close() error {
	return g.db.Close()
}
