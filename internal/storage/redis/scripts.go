package redis

import "github.com/redis/go-redis/v9"

// addPlayerScript adds a roster member unless already present, the roster is full or the session has started.
// KEYS[1] players hash, KEYS[2] started marker; ARGV: player id, player json, max players, ttl seconds.
// Returns 1 when added, 0 when already a member, -1 when full, -2 when started.
var addPlayerScript = redis.NewScript(`
if redis.call('HEXISTS', KEYS[1], ARGV[1]) == 1 then
	return 0
end
local max = tonumber(ARGV[3])
if max > 0 and redis.call('HLEN', KEYS[1]) >= max then
	return -1
end
if redis.call('EXISTS', KEYS[2]) == 1 then
	return -2
end
redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
if tonumber(ARGV[4]) > 0 then
	redis.call('EXPIRE', KEYS[1], ARGV[4])
end
return 1
`)

// updatePlayerScript overwrites an existing roster member.
// KEYS[1] players hash; ARGV: player id, player json.
// Returns 1 when updated, 0 when not a member.
var updatePlayerScript = redis.NewScript(`
if redis.call('HEXISTS', KEYS[1], ARGV[1]) == 0 then
	return 0
end
redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
return 1
`)

// recordAnswerScript writes an answer over a placeholder or into an empty slot.
// KEYS[1] answers hash, KEYS[2] flushed hash; ARGV: player id, answer json, question index, ttl seconds.
// Returns -1 when the question was already flushed, 0 when an answer exists,
// 1 when written, 2 when written and it replaced the last placeholder.
var recordAnswerScript = redis.NewScript(`
if redis.call('HEXISTS', KEYS[2], ARGV[3]) == 1 then
	return -1
end
local current = redis.call('HGET', KEYS[1], ARGV[1])
if current and current ~= 'null' then
	return 0
end
redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
if tonumber(ARGV[4]) > 0 then
	redis.call('EXPIRE', KEYS[1], ARGV[4])
end
if current ~= 'null' then
	return 1
end
for _, v in ipairs(redis.call('HVALS', KEYS[1])) do
	if v == 'null' then
		return 1
	end
end
return 2
`)

// removePlaceholderScript deletes a player's seeded placeholder if they have not answered.
// KEYS[1] answers hash; ARGV[1] player id.
// Returns 0 when nothing was removed, 1 when removed, 2 when removed and no placeholder is left.
var removePlaceholderScript = redis.NewScript(`
if redis.call('HGET', KEYS[1], ARGV[1]) ~= 'null' then
	return 0
end
redis.call('HDEL', KEYS[1], ARGV[1])
for _, v in ipairs(redis.call('HVALS', KEYS[1])) do
	if v == 'null' then
		return 1
	end
end
return 2
`)

// refreshLockScript extends a lock's expiry only while it holds the expected value.
// KEYS[1] lock key; ARGV: expected value, ttl milliseconds.
var refreshLockScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return 0
`)

// releaseLockScript deletes a lock only while it holds the expected value.
// KEYS[1] lock key; ARGV[1] expected value.
var releaseLockScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)
