package session

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Redis Key 设计
const (
	// session:conn:{connID} -> Hash(Info)
	keyConnPrefix = "session:conn:"
	// session:all -> ZSet[connID] score=opened_at(ms)
	keyAll = "session:all"
	// session:server:{serverID}:conns -> Set[connID]
	keyServerConnsPrefix = "session:server:"
)

// RedisManager Redis 版本的会话管理器，多实例共享会话视图
type RedisManager struct {
	client   redis.UniversalClient
	serverID string
	timeout  time.Duration
}

// NewRedisManager serverID 为空时随机生成
func NewRedisManager(client redis.UniversalClient, serverID string, timeout time.Duration) *RedisManager {
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	if serverID == "" {
		serverID = uuid.New().String()
	}
	return &RedisManager{client: client, serverID: serverID, timeout: timeout}
}

var _ Manager = (*RedisManager)(nil)

// ServerID 当前实例标识
func (m *RedisManager) ServerID() string { return m.serverID }

func connKey(connID string) string { return keyConnPrefix + connID }

func (m *RedisManager) serverConnsKey() string {
	return keyServerConnsPrefix + m.serverID + ":conns"
}

func fmtTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func (m *RedisManager) Open(ctx context.Context, info Info) error {
	if info.ServerID == "" {
		info.ServerID = m.serverID
	}
	if info.LastSeen.IsZero() {
		info.LastSeen = info.OpenedAt
	}
	key := connKey(info.ConnID)
	pipe := m.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, map[string]any{
		"conn_id":      info.ConnID,
		"remote_addr":  info.RemoteAddr,
		"server_id":    info.ServerID,
		"transport":    info.Transport,
		"opened_at":    fmtTime(info.OpenedAt),
		"last_seen":    fmtTime(info.LastSeen),
		"bytes":        info.Bytes,
		"units":        info.Units,
		"handshakes":   info.Handshakes,
		"declines":     info.Declines,
		"last_control": info.LastControl,
		"last_dir":     info.LastDirection,
	})
	pipe.Expire(ctx, key, m.timeout)
	pipe.ZAdd(ctx, keyAll, redis.Z{Score: float64(info.OpenedAt.UnixMilli()), Member: info.ConnID})
	pipe.SAdd(ctx, m.serverConnsKey(), info.ConnID)
	_, err := pipe.Exec(ctx)
	return err
}

func (m *RedisManager) Touch(ctx context.Context, connID string, a Activity) error {
	key := connKey(connID)
	n, err := m.client.Exists(ctx, key).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}

	pipe := m.client.TxPipeline()
	if a.Bytes != 0 {
		pipe.HIncrBy(ctx, key, "bytes", a.Bytes)
	}
	if a.Units != 0 {
		pipe.HIncrBy(ctx, key, "units", a.Units)
	}
	if a.Handshakes != 0 {
		pipe.HIncrBy(ctx, key, "handshakes", a.Handshakes)
	}
	if a.Declines != 0 {
		pipe.HIncrBy(ctx, key, "declines", a.Declines)
	}
	fields := map[string]any{}
	if !a.At.IsZero() {
		fields["last_seen"] = fmtTime(a.At)
	}
	if a.Transport != "" {
		fields["transport"] = a.Transport
	}
	if a.LastControl != "" {
		fields["last_control"] = a.LastControl
	}
	if a.LastDirection != "" {
		fields["last_dir"] = a.LastDirection
	}
	if len(fields) > 0 {
		pipe.HSet(ctx, key, fields)
	}
	pipe.Expire(ctx, key, m.timeout)
	_, err = pipe.Exec(ctx)
	return err
}

func (m *RedisManager) Close(ctx context.Context, connID string, at time.Time) error {
	key := connKey(connID)
	n, err := m.client.Exists(ctx, key).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	pipe := m.client.TxPipeline()
	pipe.HSet(ctx, key, "closed_at", fmtTime(at))
	pipe.Expire(ctx, key, m.timeout)
	pipe.SRem(ctx, m.serverConnsKey(), connID)
	_, err = pipe.Exec(ctx)
	return err
}

func (m *RedisManager) Get(ctx context.Context, connID string) (*Info, error) {
	vals, err := m.client.HGetAll(ctx, connKey(connID)).Result()
	if err != nil {
		return nil, err
	}
	if len(vals) == 0 {
		return nil, ErrNotFound
	}
	return parseInfo(vals)
}

// List 过期的成员顺带从索引中移除
func (m *RedisManager) List(ctx context.Context) ([]Info, error) {
	ids, err := m.client.ZRevRange(ctx, keyAll, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	pipe := m.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, connKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}

	out := make([]Info, 0, len(ids))
	var stale []any
	for i, cmd := range cmds {
		vals := cmd.Val()
		if len(vals) == 0 {
			stale = append(stale, ids[i])
			continue
		}
		info, err := parseInfo(vals)
		if err != nil {
			return nil, err
		}
		out = append(out, *info)
	}
	if len(stale) > 0 {
		m.client.ZRem(ctx, keyAll, stale...)
	}
	return out, nil
}

func (m *RedisManager) OnlineCount(ctx context.Context, now time.Time) (int, error) {
	list, err := m.List(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for i := range list {
		if list[i].Online(now, m.timeout) {
			n++
		}
	}
	return n, nil
}

// LocalConns 当前实例持有的连接
func (m *RedisManager) LocalConns(ctx context.Context) ([]string, error) {
	return m.client.SMembers(ctx, m.serverConnsKey()).Result()
}

// CleanupServer 实例退出时移除其连接集合
func (m *RedisManager) CleanupServer(ctx context.Context) error {
	return m.client.Del(ctx, m.serverConnsKey()).Err()
}

func parseInfo(vals map[string]string) (*Info, error) {
	info := &Info{
		ConnID:      vals["conn_id"],
		RemoteAddr:  vals["remote_addr"],
		ServerID:    vals["server_id"],
		Transport:   vals["transport"],
		LastControl: vals["last_control"],
	}
	info.LastDirection = vals["last_dir"]
	var err error
	for field, dst := range map[string]*time.Time{
		"opened_at": &info.OpenedAt,
		"last_seen": &info.LastSeen,
		"closed_at": &info.ClosedAt,
	} {
		if s := vals[field]; s != "" {
			if *dst, err = time.Parse(time.RFC3339Nano, s); err != nil {
				return nil, fmt.Errorf("session field %s: %w", field, err)
			}
		}
	}
	for field, dst := range map[string]*int64{
		"bytes":      &info.Bytes,
		"units":      &info.Units,
		"handshakes": &info.Handshakes,
		"declines":   &info.Declines,
	} {
		if s := vals[field]; s != "" {
			if *dst, err = strconv.ParseInt(s, 10, 64); err != nil {
				return nil, fmt.Errorf("session field %s: %w", field, err)
			}
		}
	}
	return info, nil
}
