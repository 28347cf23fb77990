// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package record

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/AccelByte/extend-hyperstreak-guard/pkg/progression"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

const (
	// KeyPrefix is the prefix for all progression record keys
	KeyPrefix = "hyperstreak:record:"

	fieldFlagged        = "flagged"
	fieldFlagDetectedAt = "flag_detected_at"
	fieldFlagDetail     = "flag_detail"
	fieldCreatedAt      = "created_at"

	opSetNX = "setnx"
)

// ErrEmptyUserID is returned when a record is addressed without a user identifier.
var ErrEmptyUserID = errors.New("empty user id")

// writeScript snapshots the progression fields, applies the field ops and snapshots again,
// so every write produces an atomic before/after pair.
// ARGV is a flat list of (op, field, value) triples.
var writeScript = redis.NewScript(`
local key = KEYS[1]
local fields = {'bar', 'active', 'questions_elapsed', 'activation_count'}

local function snapshot(out)
  local values = redis.call('HMGET', key, unpack(fields))
  for i = 1, #fields do
    local v = values[i]
    if v then
      table.insert(out, tonumber(v) or 0)
    else
      table.insert(out, 0)
    end
  end
end

local result = {}
snapshot(result)

for i = 1, #ARGV, 3 do
  local op, field, value = ARGV[i], ARGV[i + 1], ARGV[i + 2]
  if op == 'incr' then
    redis.call('HINCRBY', key, field, value)
  elseif op == 'setnx' then
    redis.call('HSETNX', key, field, value)
  else
    redis.call('HSET', key, field, value)
  end
end

snapshot(result)
return result
`)

var _ Store = (*RedisStore)(nil)

// RedisStore implements Store on a Redis hash per user.
type RedisStore struct {
	client redis.UniversalClient
	cfg    RedisStoreConfig

	mu    sync.RWMutex
	hooks []Hook
}

type RedisStoreConfig struct {
	// Now overrides the clock used for change timestamps.
	Now func() time.Time
}

// NewRedisStore creates a new Redis-backed record store.
func NewRedisStore(client redis.UniversalClient, cfg RedisStoreConfig) *RedisStore {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &RedisStore{
		client: client,
		cfg:    cfg,
	}
}

// Use registers a hook that runs after every write.
func (r *RedisStore) Use(hooks ...Hook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks = append(r.hooks, hooks...)
}

// makeKey creates a Redis key for a player
func makeKey(userID string) string {
	return fmt.Sprintf("%s%s", KeyPrefix, userID)
}

// Create writes all-zero progression for a new user. Existing fields are left untouched.
func (r *RedisStore) Create(ctx context.Context, userID string) error {
	args := []interface{}{opSetNX, fieldCreatedAt, r.cfg.Now().UTC().Format(time.RFC3339Nano)}
	for _, field := range progression.Fields {
		args = append(args, opSetNX, string(field), 0)
	}

	if _, err := r.write(ctx, userID, OriginClient, args); err != nil {
		return fmt.Errorf("failed to create record: %w", err)
	}

	logrus.Infof("created progression record for user %s", userID)
	return nil
}

// ApplyDelta applies a client field-delta write to the record.
func (r *RedisStore) ApplyDelta(ctx context.Context, userID string, delta progression.Delta) error {
	if err := delta.Validate(); err != nil {
		return err
	}

	args := make([]interface{}, 0, len(delta)*3)
	for _, op := range delta {
		args = append(args, string(op.Op), string(op.Field), op.Value)
	}

	change, err := r.write(ctx, userID, OriginClient, args)
	if err != nil {
		return fmt.Errorf("failed to apply delta: %w", err)
	}

	logrus.Debugf("applied delta for user %s: %s -> %s", userID, change.Before, change.After)
	return nil
}

// Restore overwrites the progression fields with state and records the flag in one atomic write.
func (r *RedisStore) Restore(ctx context.Context, userID string, state progression.State, flag CheatFlag) error {
	detail, err := json.Marshal(flag.Detail)
	if err != nil {
		return fmt.Errorf("failed to marshal flag detail: %w", err)
	}

	active := 0
	if state.Active {
		active = 1
	}
	flagged := 0
	if flag.Flagged {
		flagged = 1
	}

	args := []interface{}{
		string(progression.OpSet), string(progression.FieldBar), state.Bar,
		string(progression.OpSet), string(progression.FieldActive), active,
		string(progression.OpSet), string(progression.FieldQuestionsElapsed), state.QuestionsElapsed,
		string(progression.OpSet), string(progression.FieldActivationCount), state.ActivationCount,
		string(progression.OpSet), fieldFlagged, flagged,
		string(progression.OpSet), fieldFlagDetectedAt, flag.DetectedAt.UTC().Format(time.RFC3339Nano),
		string(progression.OpSet), fieldFlagDetail, string(detail),
	}

	if _, err := r.write(ctx, userID, OriginValidator, args); err != nil {
		return fmt.Errorf("failed to restore record: %w", err)
	}

	logrus.Infof("restored progression record for user %s to %s", userID, state)
	return nil
}

// Get retrieves the full record for a player.
// A player without a record gets zero progression and no flag.
func (r *RedisStore) Get(ctx context.Context, userID string) (*Record, error) {
	if userID == "" {
		return nil, ErrEmptyUserID
	}

	values, err := r.client.HGetAll(ctx, makeKey(userID)).Result()
	if err != nil {
		logrus.Errorf("failed to get record for user %s: %v", userID, err)
		return nil, fmt.Errorf("failed to get record: %w", err)
	}

	rec := &Record{
		UserID: userID,
		Progression: progression.State{
			Bar:              atoi(values[string(progression.FieldBar)]),
			Active:           atoi(values[string(progression.FieldActive)]) != 0,
			QuestionsElapsed: atoi(values[string(progression.FieldQuestionsElapsed)]),
			ActivationCount:  atoi(values[string(progression.FieldActivationCount)]),
		},
	}

	if raw, ok := values[fieldFlagDetail]; ok {
		flag := &CheatFlag{Flagged: atoi(values[fieldFlagged]) != 0}
		if err := json.Unmarshal([]byte(raw), &flag.Detail); err != nil {
			logrus.Errorf("failed to unmarshal flag for user %s: %v", userID, err)
			return nil, fmt.Errorf("failed to unmarshal flag detail: %w", err)
		}
		if ts, err := time.Parse(time.RFC3339Nano, values[fieldFlagDetectedAt]); err == nil {
			flag.DetectedAt = ts
		}
		rec.Flag = flag
	}

	return rec, nil
}

// Load retrieves only the progression fields for a player.
func (r *RedisStore) Load(ctx context.Context, userID string) (progression.State, error) {
	rec, err := r.Get(ctx, userID)
	if err != nil {
		return progression.State{}, err
	}
	return rec.Progression, nil
}

// Delete removes the record together with the owning account.
func (r *RedisStore) Delete(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrEmptyUserID
	}

	if err := r.client.Del(ctx, makeKey(userID)).Err(); err != nil {
		logrus.Errorf("failed to delete record for user %s: %v", userID, err)
		return fmt.Errorf("failed to delete record: %w", err)
	}

	logrus.Infof("deleted progression record for user %s", userID)
	return nil
}

// write runs the write script and then every registered hook with the resulting change.
func (r *RedisStore) write(ctx context.Context, userID string, origin Origin, args []interface{}) (Change, error) {
	if userID == "" {
		return Change{}, ErrEmptyUserID
	}

	res, err := writeScript.Run(ctx, r.client, []string{makeKey(userID)}, args...).Result()
	if err != nil {
		logrus.Errorf("write script failed for user %s: %v", userID, err)
		return Change{}, err
	}

	before, after, err := parseSnapshots(res)
	if err != nil {
		return Change{}, err
	}

	change := Change{
		UserID: userID,
		Before: before,
		After:  after,
		Origin: origin,
		At:     r.cfg.Now(),
	}

	r.runHooks(ctx, change)
	return change, nil
}

func (r *RedisStore) runHooks(ctx context.Context, change Change) {
	r.mu.RLock()
	hooks := make([]Hook, len(r.hooks))
	copy(hooks, r.hooks)
	r.mu.RUnlock()

	for _, hook := range hooks {
		if err := hook.AfterWrite(ctx, change); err != nil {
			logrus.Errorf("post-write hook failed for user %s (origin %s): %v", change.UserID, change.Origin, err)
		}
	}
}

func parseSnapshots(res interface{}) (progression.State, progression.State, error) {
	values, ok := res.([]interface{})
	if !ok || len(values) != 2*len(progression.Fields) {
		return progression.State{}, progression.State{}, fmt.Errorf("unexpected write script result: %v", res)
	}

	ints := make([]int, len(values))
	for i, v := range values {
		n, ok := v.(int64)
		if !ok {
			return progression.State{}, progression.State{}, fmt.Errorf("unexpected write script value %v at %d", v, i)
		}
		ints[i] = int(n)
	}

	toState := func(v []int) progression.State {
		return progression.State{
			Bar:              v[0],
			Active:           v[1] != 0,
			QuestionsElapsed: v[2],
			ActivationCount:  v[3],
		}
	}

	n := len(progression.Fields)
	return toState(ints[:n]), toState(ints[n:]), nil
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
