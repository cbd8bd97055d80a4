package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const ttlSession = 24 * time.Hour

const (
	StatusActive   = "active"
	StatusFinished = "finished"
)

// Meta describes one session as seen from this side.
type Meta struct {
	SessionID string    `json:"session_id"`
	Host      bool      `json:"host"`
	LocalName string    `json:"local_name"`
	PeerName  string    `json:"peer_name"`
	Color     string    `json:"color"`
	StartFEN  string    `json:"start_fen"`
	Status    string    `json:"status"`
	EndState  string    `json:"end_state,omitempty"`
	Winner    string    `json:"winner,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Entry is one committed move.
type Entry struct {
	Ply    int       `json:"ply"`
	UCI    string    `json:"uci"`
	SAN    string    `json:"san"`
	Local  bool      `json:"local"`
	FEN    string    `json:"fen"`
	Status string    `json:"status"`
	At     time.Time `json:"at"`
}

// Store keeps session metadata and the move journal in redis.
type Store struct{ rdb *redis.Client }

func NewStore(rdb *redis.Client) *Store { return &Store{rdb: rdb} }

// Open connects to redisURL (redis:// or rediss://) and pings it.
func Open(ctx context.Context, redisURL string) (*Store, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, fmt.Errorf("redis url required for journal")
	}
	opts, err := parseRedisURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Store{rdb: rdb}, nil
}

func (s *Store) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}

func (s *Store) keyMeta(id string) string  { return "link:session:" + strings.TrimSpace(id) }
func (s *Store) keyMoves(id string) string { return s.keyMeta(id) + ":moves" }
func (s *Store) keyIndex() string          { return "link:sessions" }

func (s *Store) SaveMeta(ctx context.Context, meta *Meta) error {
	raw, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, s.keyMeta(meta.SessionID), raw, ttlSession).Err(); err != nil {
		return err
	}
	_ = s.rdb.Expire(ctx, s.keyMoves(meta.SessionID), ttlSession).Err()
	score := float64(meta.StartedAt.UnixMilli())
	return s.rdb.ZAdd(ctx, s.keyIndex(), redis.Z{Score: score, Member: meta.SessionID}).Err()
}

// Meta returns nil, nil for an unknown session.
func (s *Store) Meta(ctx context.Context, id string) (*Meta, error) {
	raw, err := s.rdb.Get(ctx, s.keyMeta(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var m Meta
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *Store) Append(ctx context.Context, id string, e Entry) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return err
	}
	if err := s.rdb.RPush(ctx, s.keyMoves(id), raw).Err(); err != nil {
		return err
	}
	return s.rdb.Expire(ctx, s.keyMoves(id), ttlSession).Err()
}

func (s *Store) Entries(ctx context.Context, id string) ([]Entry, error) {
	rows, err := s.rdb.LRange(ctx, s.keyMoves(id), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(rows))
	for _, row := range rows {
		var e Entry
		if err := json.Unmarshal([]byte(row), &e); err != nil {
			return nil, fmt.Errorf("decode entry: %w", err)
		}
		out = append(out, e)
	}
	return out, nil
}

// Recent lists up to limit session ids, newest first.
func (s *Store) Recent(ctx context.Context, limit int64) ([]string, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.rdb.ZRevRange(ctx, s.keyIndex(), 0, limit-1).Result()
}

func parseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			db = n
		}
	}
	pass, _ := u.User.Password()
	return &redis.Options{Addr: u.Host, Password: pass, DB: db}, nil
}
