// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package store

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"durableflow"
)

// claimScript is the Redis substitute for the row-level locking the Pg
// backend gets from FOR UPDATE SKIP LOCKED: it runs atomically on the
// server, so the scan-check-write a claim requires can never
// interleave with another client's claim.
//
// KEYS[1] = queue index (a ZSET of workflow ids scored by insertion
// order; queueKey("") is the global index scanned when no queue filter
// applies). ARGV[1] = now (unix millis), ARGV[2] = new timeoutAt (unix
// millis).
var claimScript = redis.NewScript(`
local index = KEYS[1]
local now = tonumber(ARGV[1])
local timeoutAt = ARGV[2]
local ids = redis.call('ZRANGE', index, 0, -1)
for _, id in ipairs(ids) do
  local key = 'durableflow:wf:' .. id
  local status = redis.call('HGET', key, 'status')
  local wfTimeoutAt = tonumber(redis.call('HGET', key, 'timeout_at') or '0')
  if status == 'idle' or ((status == 'running' or status == 'failed') and wfTimeoutAt < now) then
    redis.call('HSET', key, 'status', 'running', 'timeout_at', timeoutAt)
    return id
  end
end
return false
`)

// Redis is a Redis-backed durableflow.Store. Each workflow is a hash at
// durableflow:wf:<id>; per-queue membership is tracked in a sorted set
// (durableflow:queue:<queue>) scored by insertion order, scanned by
// claimScript under Lua's single-threaded execution guarantee.
type Redis struct {
	client *redis.Client
}

// NewRedis wraps an already-constructed *redis.Client.
func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

// NewRedisFromURL parses addr (a redis:// URL) and pings the resulting
// client before returning.
func NewRedisFromURL(ctx context.Context, addr string) (*Redis, error) {
	opts, err := redis.ParseURL(addr)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return &Redis{client: client}, nil
}

// Close releases the underlying client.
func (s *Redis) Close() error { return s.client.Close() }

func wfKey(id string) string      { return "durableflow:wf:" + id }
func queueKey(q string) string    { return "durableflow:queue:" + q }
func outputsKey(id string) string { return "durableflow:wf:" + id + ":steps" }
func napsKey(id string) string    { return "durableflow:wf:" + id + ":naps" }

func (s *Redis) Insert(ctx context.Context, id, handler, queue string, input []byte) (bool, error) {
	if queue == "" {
		queue = durableflow.DefaultQueue
	}
	ok, err := s.client.HSetNX(ctx, wfKey(id), "handler", handler).Result()
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	now := float64(time.Now().UnixNano())
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, wfKey(id), map[string]interface{}{
		"queue":      queue,
		"input":      input,
		"status":     string(durableflow.StatusIdle),
		"timeout_at": 0,
		"failures":   0,
		"lastError":  "",
	})
	pipe.ZAdd(ctx, queueKey(queue), redis.Z{Score: now, Member: id})
	pipe.ZAdd(ctx, queueKey(""), redis.Z{Score: now, Member: id})
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Redis) Claim(ctx context.Context, queue string, now, timeoutAt time.Time) (string, bool, error) {
	res, err := claimScript.Run(ctx, s.client, []string{queueKey(queue)},
		now.UnixMilli(), timeoutAt.UnixMilli()).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, err
	}
	id, ok := res.(string)
	if !ok || id == "" {
		return "", false, nil
	}
	return id, true, nil
}

func (s *Redis) FindOutput(ctx context.Context, workflowID, stepID string) ([]byte, bool, error) {
	out, err := s.client.HGet(ctx, outputsKey(workflowID), stepID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return out, true, nil
}

func (s *Redis) FindWakeUpAt(ctx context.Context, workflowID, napID string) (time.Time, bool, error) {
	millis, err := s.client.HGet(ctx, napsKey(workflowID), napID).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, err
	}
	return time.UnixMilli(millis), true, nil
}

func (s *Redis) FindRunData(ctx context.Context, workflowID string) (*durableflow.RunData, bool, error) {
	vals, err := s.client.HMGet(ctx, wfKey(workflowID), "handler", "input", "failures").Result()
	if err != nil {
		return nil, false, err
	}
	if vals[0] == nil {
		return nil, false, nil
	}
	handler, _ := vals[0].(string)
	var input []byte
	if str, ok := vals[1].(string); ok {
		input = []byte(str)
	}
	failures := 0
	if str, ok := vals[2].(string); ok && str != "" {
		failures, _ = strconv.Atoi(str)
	}
	return &durableflow.RunData{Handler: handler, Input: input, Failures: failures}, true, nil
}

func (s *Redis) SetAsFinished(ctx context.Context, workflowID string) error {
	return s.client.HSet(ctx, wfKey(workflowID), "status", string(durableflow.StatusFinished)).Err()
}

func (s *Redis) FindStatus(ctx context.Context, workflowID string) (durableflow.Status, bool, error) {
	status, err := s.client.HGet(ctx, wfKey(workflowID), "status").Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, err
	}
	return durableflow.Status(status), true, nil
}

func (s *Redis) UpdateStatus(ctx context.Context, workflowID string, status durableflow.Status, timeoutAt time.Time, failures int, lastError string) error {
	return s.client.HSet(ctx, wfKey(workflowID), map[string]interface{}{
		"status":     string(status),
		"timeout_at": timeoutAt.UnixMilli(),
		"failures":   failures,
		"lastError":  lastError,
	}).Err()
}

func (s *Redis) UpdateOutput(ctx context.Context, workflowID, stepID string, output []byte, timeoutAt time.Time) error {
	pipe := s.client.TxPipeline()
	pipe.HSetNX(ctx, outputsKey(workflowID), stepID, output)
	pipe.HSet(ctx, wfKey(workflowID), "timeout_at", timeoutAt.UnixMilli())
	_, err := pipe.Exec(ctx)
	return err
}

func (s *Redis) UpdateWakeUpAt(ctx context.Context, workflowID, napID string, wakeUpAt, timeoutAt time.Time) error {
	pipe := s.client.TxPipeline()
	pipe.HSetNX(ctx, napsKey(workflowID), napID, wakeUpAt.UnixMilli())
	pipe.HSet(ctx, wfKey(workflowID), "timeout_at", timeoutAt.UnixMilli())
	_, err := pipe.Exec(ctx)
	return err
}

var _ durableflow.Store = (*Redis)(nil)
