package matchmaking

import "github.com/redis/go-redis/v9"

// addPlayerScript enqueues an account atomically with its status claim.
// Any existing status means the account is busy; its value is returned so
// the caller can report what it collided with.
// KEYS: queue zset, queue times zset, account status hash.
// ARGV: account id, mmr, enqueue timestamp ms, game type, ranked flag.
var addPlayerScript = redis.NewScript(`
local status = redis.call('HGET', KEYS[3], 'status')
if status then
  return status
end
redis.call('ZADD', KEYS[1], ARGV[2], ARGV[1])
redis.call('ZADD', KEYS[2], ARGV[3], ARGV[1])
redis.call('HSET', KEYS[3], 'status', 'searching', 'gameType', ARGV[4], 'ranked', ARGV[5])
return false
`)

// removePlayerScript dequeues an account iff it is still searching.
// KEYS: queue zset, queue times zset, account status hash.
// ARGV: account id.
var removePlayerScript = redis.NewScript(`
local status = redis.call('HGET', KEYS[3], 'status')
if status ~= 'searching' then
  return 0
end
redis.call('ZREM', KEYS[1], ARGV[1])
redis.call('ZREM', KEYS[2], ARGV[1])
redis.call('DEL', KEYS[3])
return 1
`)

// matchPlayersScript scans a queue partition longest-waiting first and
// greedily pairs each unmatched player with the closest-rated candidate
// inside its tolerance window. The window widens with wait time so starved
// players eventually match someone. Returns a flat list of paired ids.
// KEYS: queue zset (score mmr), queue times zset (score enqueue ms).
// ARGV: now ms, base range, growth per second, max delta.
var matchPlayersScript = redis.NewScript(`
local entries = redis.call('ZRANGE', KEYS[2], 0, -1, 'WITHSCORES')
local taken = {}
local matched = {}
for i = 1, #entries, 2 do
  local id = entries[i]
  if not taken[id] then
    local waited = (tonumber(ARGV[1]) - tonumber(entries[i + 1])) / 1000
    if waited < 0 then
      waited = 0
    end
    local tolerance = math.min(tonumber(ARGV[2]) + tonumber(ARGV[3]) * waited, tonumber(ARGV[4]))
    local mmr = tonumber(redis.call('ZSCORE', KEYS[1], id))
    if mmr then
      local best = nil
      local bestDiff = nil
      for j = i + 2, #entries, 2 do
        local other = entries[j]
        if not taken[other] then
          local otherMmr = tonumber(redis.call('ZSCORE', KEYS[1], other))
          if otherMmr then
            local diff = math.abs(mmr - otherMmr)
            if diff < tolerance and (bestDiff == nil or diff < bestDiff) then
              best = other
              bestDiff = diff
            end
          end
        end
      end
      if best then
        taken[id] = true
        taken[best] = true
        matched[#matched + 1] = id
        matched[#matched + 1] = best
      end
    end
  end
end
return matched
`)

// removeMatchedScript removes a matched pair from its queue, but only when
// both accounts are still searching. A stale entry whose owner moved on is
// evicted alone; a live searcher survives a failed match untouched.
// KEYS: queue zset, queue times zset, status hash per account.
// ARGV: account ids matching KEYS[3..].
var removeMatchedScript = redis.NewScript(`
local searching = 0
for i = 1, #ARGV do
  if redis.call('HGET', KEYS[2 + i], 'status') == 'searching' then
    searching = searching + 1
  end
end
for i = 1, #ARGV do
  if searching == #ARGV or redis.call('HGET', KEYS[2 + i], 'status') ~= 'searching' then
    redis.call('ZREM', KEYS[1], ARGV[i])
    redis.call('ZREM', KEYS[2], ARGV[i])
  end
end
return searching
`)

// acceptPendingGameScript records one participant's accept and returns the
// updated accept count together with the pending game payload. The TTL is
// preserved so accepting never extends the rendezvous deadline.
// KEYS: pending game key.
// ARGV: account id.
var acceptPendingGameScript = redis.NewScript(`
local raw = redis.call('GET', KEYS[1])
if raw == false then
  return false
end
local pending = cjson.decode(raw)
if pending['accepts'][ARGV[1]] == nil then
  return 'not-participant'
end
pending['accepts'][ARGV[1]] = 1
local total = 0
for _, v in pairs(pending['accepts']) do
  total = total + v
end
local encoded = cjson.encode(pending)
local ttl = redis.call('PTTL', KEYS[1])
if ttl > 0 then
  redis.call('SET', KEYS[1], encoded, 'PX', ttl)
else
  redis.call('SET', KEYS[1], encoded)
end
return {total, encoded}
`)

// cancelPendingGameScript drops a pending game and resets both participant
// statuses, but only statuses still bound to this pending game. A player
// who already moved on keeps their new status.
// KEYS: pending game key, status hash per account.
// ARGV: pending game id.
var cancelPendingGameScript = redis.NewScript(`
local deleted = redis.call('DEL', KEYS[1])
for i = 2, #KEYS do
  if redis.call('HGET', KEYS[i], 'status') == 'pending' and redis.call('HGET', KEYS[i], 'gameId') == ARGV[1] then
    redis.call('DEL', KEYS[i])
  end
end
return deleted
`)

// deletePlayingScript clears playing statuses bound to a finished game.
// KEYS: status hash per account.
// ARGV: game id.
var deletePlayingScript = redis.NewScript(`
local deleted = 0
for i = 1, #KEYS do
  if redis.call('HGET', KEYS[i], 'status') == 'playing' and redis.call('HGET', KEYS[i], 'gameId') == ARGV[1] then
    redis.call('DEL', KEYS[i])
    deleted = deleted + 1
  end
end
return deleted
`)
