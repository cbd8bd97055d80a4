package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	nchess "github.com/corentings/chess/v2"
	_ "github.com/lib/pq"

	"github.com/park285/chesslink/internal/board"
	"github.com/park285/chesslink/internal/session"
)

// Schema creates the results table.
const Schema = `CREATE TABLE IF NOT EXISTS link_games (
    session_id  TEXT PRIMARY KEY,
    white_name  TEXT NOT NULL,
    black_name  TEXT NOT NULL,
    result      TEXT NOT NULL,
    end_state   TEXT NOT NULL,
    reason      TEXT NOT NULL,
    start_fen   TEXT NOT NULL,
    final_fen   TEXT NOT NULL,
    moves_san   JSONB NOT NULL,
    pgn         TEXT NOT NULL,
    ended_at    TIMESTAMPTZ NOT NULL
)`

type Repository struct {
	db *sql.DB
}

func NewRepository(ctx context.Context, databaseURL string) (*Repository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("database url is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// SaveResult upserts a finished game.
func (r *Repository) SaveResult(ctx context.Context, res session.Result) error {
	if r == nil || r.db == nil {
		return nil
	}
	movesSAN, err := json.Marshal(res.SAN)
	if err != nil {
		return err
	}

	q := `INSERT INTO link_games (
        session_id, white_name, black_name, result, end_state, reason,
        start_fen, final_fen, moves_san, pgn, ended_at
      ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
      ON CONFLICT (session_id) DO UPDATE SET
        result=EXCLUDED.result,
        end_state=EXCLUDED.end_state,
        reason=EXCLUDED.reason,
        final_fen=EXCLUDED.final_fen,
        moves_san=EXCLUDED.moves_san,
        pgn=EXCLUDED.pgn,
        ended_at=EXCLUDED.ended_at`

	_, err = r.db.ExecContext(ctx, q,
		res.SessionID, res.White, res.Black,
		PGNResult(res), res.EndState.String(), res.Reason,
		res.StartFEN, res.FEN, string(movesSAN), BuildPGN(res),
		res.At,
	)
	return err
}

// PGNResult is the result token for res.
func PGNResult(res session.Result) string {
	switch {
	case res.EndState.IsDraw():
		return "1/2-1/2"
	case res.Winner == nchess.White:
		return "1-0"
	case res.Winner == nchess.Black:
		return "0-1"
	default:
		return "*"
	}
}

func BuildPGN(res session.Result) string {
	var b strings.Builder
	date := res.At
	if date.IsZero() {
		date = time.Now()
	}
	result := PGNResult(res)

	b.WriteString("[Event \"chesslink\"]\n")
	b.WriteString("[Site \"tcp\"]\n")
	b.WriteString(fmt.Sprintf("[Date \"%04d.%02d.%02d\"]\n", date.Year(), int(date.Month()), date.Day()))
	b.WriteString(fmt.Sprintf("[White \"%s\"]\n", sanitizePGN(res.White)))
	b.WriteString(fmt.Sprintf("[Black \"%s\"]\n", sanitizePGN(res.Black)))
	if res.StartFEN != "" && res.StartFEN != board.StartFEN {
		b.WriteString("[SetUp \"1\"]\n")
		b.WriteString(fmt.Sprintf("[FEN \"%s\"]\n", sanitizePGN(res.StartFEN)))
	}
	if res.Reason != "" {
		b.WriteString(fmt.Sprintf("[Termination \"%s\"]\n", sanitizePGN(res.Reason)))
	}
	b.WriteString(fmt.Sprintf("[Result \"%s\"]\n\n", result))

	move, blackFirst := fenMoveNumber(res.StartFEN)
	for i, san := range res.SAN {
		white := (i%2 == 0) != blackFirst
		switch {
		case white:
			b.WriteString(fmt.Sprintf("%d. ", move))
		case i == 0:
			b.WriteString(fmt.Sprintf("%d... ", move))
		}
		b.WriteString(strings.TrimSpace(san))
		b.WriteString(" ")
		if !white {
			move++
		}
	}
	b.WriteString(result)
	return b.String()
}

// fenMoveNumber reads the fullmove number and side to move from a FEN. An
// empty or short FEN means the standard start.
func fenMoveNumber(fen string) (int, bool) {
	fields := strings.Fields(fen)
	blackFirst := len(fields) > 1 && fields[1] == "b"
	move := 1
	if len(fields) > 5 {
		if n, err := strconv.Atoi(fields[5]); err == nil && n > 0 {
			move = n
		}
	}
	return move, blackFirst
}

func sanitizePGN(s string) string {
	s = strings.ReplaceAll(s, "\\", " ")
	s = strings.ReplaceAll(s, "\"", "'")
	return strings.TrimSpace(s)
}
