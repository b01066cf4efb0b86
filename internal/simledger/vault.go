// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
package simledger

import (
	"math/big"

	"github.com/specialistvlad/ledgerboot/internal/ledger"
)

// TemplateStakingVault is the template name of the share-issuing vault.
// Constructor arguments: underlying token address, fee recipient address.
const TemplateStakingVault = "StakingVault"

var vaultTemplate = template{
	args: []argKind{argAddress, argAddress},
	create: func(e *env, args []any) (service, error) {
		asset := args[0].(ledger.Address)
		if _, ok := e.ledger.services[asset].(*token); !ok {
			return nil, reverted("StakingVault: %s is not a token", asset)
		}
		return &vault{
			asset:        asset,
			feeRecipient: args[1].(ledger.Address),
			supply:       new(big.Int),
			shares:       make(map[ledger.Address]*big.Int),
		}, nil
	},
}

// vault issues shares against deposits of its underlying token. The conversion
// rate is the ratio of issued shares to the token balance held by the vault, so
// rewards transferred into the vault raise the value of every share.
type vault struct {
	asset        ledger.Address
	feeRecipient ledger.Address

	supply *big.Int
	shares map[ledger.Address]*big.Int
}

func (v *vault) methods() map[string]method {
	return map[string]method{
		"deposit":  {args: []argKind{argAmount, argAddress}, fn: v.deposit},
		"withdraw": {args: []argKind{argAmount, argAddress, argAddress}, fn: v.withdraw},

		"convertToShares": {args: []argKind{argAmount}, readOnly: true, fn: v.convertToSharesMethod},
		"convertToAssets": {args: []argKind{argAmount}, readOnly: true, fn: v.convertToAssetsMethod},
		"totalAssets":     {readOnly: true, fn: v.totalAssetsMethod},
		"totalSupply": {readOnly: true, fn: func(*env, []any) ([]any, error) {
			return []any{new(big.Int).Set(v.supply)}, nil
		}},
		"balanceOf": {args: []argKind{argAddress}, readOnly: true, fn: func(_ *env, args []any) ([]any, error) {
			return []any{balanceIn(v.shares, args[0].(ledger.Address))}, nil
		}},
		"asset":        {readOnly: true, fn: func(*env, []any) ([]any, error) { return []any{v.asset}, nil }},
		"feeRecipient": {readOnly: true, fn: func(*env, []any) ([]any, error) { return []any{v.feeRecipient}, nil }},
	}
}

func (v *vault) totalAssets(e *env) (*big.Int, error) {
	return e.queryAmount(v.asset, "balanceOf", e.self)
}

// toShares converts assets to shares at the current rate.
func (v *vault) toShares(e *env, assets *big.Int, ceil bool) (*big.Int, error) {
	if v.supply.Sign() == 0 {
		return new(big.Int).Set(assets), nil
	}
	total, err := v.totalAssets(e)
	if err != nil {
		return nil, err
	}
	if total.Sign() == 0 {
		return new(big.Int).Set(assets), nil
	}
	return mulDiv(assets, v.supply, total, ceil), nil
}

func (v *vault) deposit(e *env, args []any) ([]any, error) {
	assets, receiver := args[0].(*big.Int), args[1].(ledger.Address)
	if assets.Sign() == 0 {
		return nil, reverted("deposit: zero amount")
	}
	minted, err := v.toShares(e, assets, false)
	if err != nil {
		return nil, err
	}
	if minted.Sign() == 0 {
		return nil, reverted("deposit: amount too small for one share")
	}
	// Pulling the tokens is the first mutation: it either fully succeeds or
	// reverts without touching the vault.
	if _, err := e.call(v.asset, "transferFrom", e.sender, e.self, assets); err != nil {
		return nil, err
	}
	v.supply.Add(v.supply, minted)
	v.shares[receiver] = new(big.Int).Add(balanceIn(v.shares, receiver), minted)
	return []any{minted}, nil
}

func (v *vault) withdraw(e *env, args []any) ([]any, error) {
	assets, receiver, owner := args[0].(*big.Int), args[1].(ledger.Address), args[2].(ledger.Address)
	if e.sender != owner {
		return nil, reverted("withdraw: caller is not the share owner")
	}
	total, err := v.totalAssets(e)
	if err != nil {
		return nil, err
	}
	if total.Cmp(assets) < 0 {
		return nil, reverted("withdraw: vault holds %s, requested %s", total, assets)
	}
	burned, err := v.toShares(e, assets, true)
	if err != nil {
		return nil, err
	}
	held := balanceIn(v.shares, owner)
	if held.Cmp(burned) < 0 {
		return nil, reverted("withdraw: insufficient shares (%s < %s)", held, burned)
	}
	if _, err := e.call(v.asset, "transfer", receiver, assets); err != nil {
		return nil, err
	}
	v.shares[owner] = held.Sub(held, burned)
	v.supply.Sub(v.supply, burned)
	return []any{burned}, nil
}

func (v *vault) convertToSharesMethod(e *env, args []any) ([]any, error) {
	shares, err := v.toShares(e, args[0].(*big.Int), false)
	if err != nil {
		return nil, err
	}
	return []any{shares}, nil
}

func (v *vault) convertToAssetsMethod(e *env, args []any) ([]any, error) {
	shares := args[0].(*big.Int)
	if v.supply.Sign() == 0 {
		return []any{new(big.Int).Set(shares)}, nil
	}
	total, err := v.totalAssets(e)
	if err != nil {
		return nil, err
	}
	return []any{mulDiv(shares, total, v.supply, false)}, nil
}

func (v *vault) totalAssetsMethod(e *env, _ []any) ([]any, error) {
	total, err := v.totalAssets(e)
	if err != nil {
		return nil, err
	}
	return []any{total}, nil
}
