// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
package simledger

import (
	"math/big"
	"time"

	"github.com/specialistvlad/ledgerboot/internal/ledger"
)

// TemplateRewardContract is the template name of the epoch reward distributor.
// Constructor arguments: token address, vault address, initial per-epoch reward.
const TemplateRewardContract = "RewardContract"

var rewardTemplate = template{
	args: []argKind{argAddress, argAddress, argAmount},
	create: func(e *env, args []any) (service, error) {
		tok, vlt := args[0].(ledger.Address), args[1].(ledger.Address)
		if _, ok := e.ledger.services[tok].(*token); !ok {
			return nil, reverted("RewardContract: %s is not a token", tok)
		}
		v, ok := e.ledger.services[vlt].(*vault)
		if !ok {
			return nil, reverted("RewardContract: %s is not a vault", vlt)
		}
		if v.asset != tok {
			return nil, reverted("RewardContract: vault asset %s does not match token %s", v.asset, tok)
		}
		return &rewardContract{
			owner:      e.sender,
			token:      tok,
			vault:      vlt,
			nextReward: args[2].(*big.Int),
		}, nil
	},
}

// rewardContract pays a fixed reward into the vault once per epoch. The reward
// is funded by plain token transfers to the contract's address.
type rewardContract struct {
	owner ledger.Address
	token ledger.Address
	vault ledger.Address

	epochDuration   time.Duration
	nextReward      *big.Int
	epoch           uint64
	lastDistributed time.Time
}

func (r *rewardContract) methods() map[string]method {
	return map[string]method{
		"setEpochDuration":   {args: []argKind{argAmount}, fn: r.setEpochDuration},
		"setNextEpochReward": {args: []argKind{argAmount}, fn: r.setNextEpochReward},
		"distributeRewards":  {fn: r.distributeRewards},

		"epochDuration": {readOnly: true, fn: func(*env, []any) ([]any, error) {
			return []any{big.NewInt(int64(r.epochDuration / time.Second))}, nil
		}},
		"nextEpochReward": {readOnly: true, fn: func(*env, []any) ([]any, error) {
			return []any{new(big.Int).Set(r.nextReward)}, nil
		}},
		"currentEpoch": {readOnly: true, fn: func(*env, []any) ([]any, error) {
			return []any{new(big.Int).SetUint64(r.epoch)}, nil
		}},
	}
}

func (r *rewardContract) setEpochDuration(e *env, args []any) ([]any, error) {
	seconds := args[0].(*big.Int)
	if e.sender != r.owner {
		return nil, reverted("setEpochDuration: caller is not the owner")
	}
	if seconds.Sign() == 0 || !seconds.IsInt64() || seconds.Int64() > int64(time.Duration(1<<62)/time.Second) {
		return nil, reverted("setEpochDuration: invalid duration %s", seconds)
	}
	r.epochDuration = time.Duration(seconds.Int64()) * time.Second
	return nil, nil
}

func (r *rewardContract) setNextEpochReward(e *env, args []any) ([]any, error) {
	if e.sender != r.owner {
		return nil, reverted("setNextEpochReward: caller is not the owner")
	}
	r.nextReward = args[0].(*big.Int)
	return nil, nil
}

func (r *rewardContract) distributeRewards(e *env, _ []any) ([]any, error) {
	if r.epochDuration == 0 {
		return nil, reverted("distributeRewards: epoch duration not set")
	}
	if r.epoch > 0 && e.now.Before(r.lastDistributed.Add(r.epochDuration)) {
		return nil, reverted("distributeRewards: epoch %d has not elapsed", r.epoch)
	}
	if r.nextReward.Sign() == 0 {
		return nil, reverted("distributeRewards: no reward set for the next epoch")
	}
	balance, err := e.queryAmount(r.token, "balanceOf", e.self)
	if err != nil {
		return nil, err
	}
	if balance.Cmp(r.nextReward) < 0 {
		return nil, reverted("distributeRewards: insufficient reward balance (%s < %s)", balance, r.nextReward)
	}
	if _, err := e.call(r.token, "transfer", r.vault, r.nextReward); err != nil {
		return nil, err
	}
	r.epoch++
	r.lastDistributed = e.now
	return nil, nil
}
