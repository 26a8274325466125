package redis

import (
	goredis "github.com/redis/go-redis/v9"
)

// claimSlotScript claims a country slot in one atomic step: the existence
// check, the slot fields, and the index entry all land together, so a slot
// can never be consumed without being visible through the index.
//
// KEYS[1]: slot hash
// KEYS[2]: claimed-slot index set
// ARGV[1]: country code
// ARGV[2..]: alternating field/value pairs for the slot hash
//
// Returns 1 when the claim won, 0 when the slot already had an owner.
var claimSlotScript = goredis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return 0
end
redis.call('HSET', KEYS[1], unpack(ARGV, 2))
redis.call('SADD', KEYS[2], ARGV[1])
return 1
`)
