// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
package simledger

import (
	"math/big"

	"github.com/specialistvlad/ledgerboot/internal/ledger"
)

// TemplateToken is the template name of the fungible token service.
const TemplateToken = "Token"

// TokenDecimals is the number of decimals reported by every token.
const TokenDecimals = 18

var tokenTemplate = template{
	create: func(e *env, _ []any) (service, error) {
		return &token{
			owner:      e.sender,
			supply:     new(big.Int),
			balances:   make(map[ledger.Address]*big.Int),
			allowances: make(map[ledger.Address]map[ledger.Address]*big.Int),
		}, nil
	},
}

// token is a minimal fungible token. It must be initialized by its owner before
// supply can be minted.
type token struct {
	owner       ledger.Address
	initialized bool
	name        string
	symbol      string

	supply     *big.Int
	balances   map[ledger.Address]*big.Int
	allowances map[ledger.Address]map[ledger.Address]*big.Int
}

func (t *token) methods() map[string]method {
	return map[string]method{
		"initialize":   {args: []argKind{argString, argString}, fn: t.initialize},
		"mint":         {args: []argKind{argAddress, argAmount}, fn: t.mint},
		"approve":      {args: []argKind{argAddress, argAmount}, fn: t.approve},
		"transfer":     {args: []argKind{argAddress, argAmount}, fn: t.transfer},
		"transferFrom": {args: []argKind{argAddress, argAddress, argAmount}, fn: t.transferFrom},

		"balanceOf":   {args: []argKind{argAddress}, readOnly: true, fn: t.balanceOf},
		"allowance":   {args: []argKind{argAddress, argAddress}, readOnly: true, fn: t.allowance},
		"totalSupply": {readOnly: true, fn: t.totalSupply},
		"name":        {readOnly: true, fn: func(*env, []any) ([]any, error) { return []any{t.name}, nil }},
		"symbol":      {readOnly: true, fn: func(*env, []any) ([]any, error) { return []any{t.symbol}, nil }},
		"decimals": {readOnly: true, fn: func(*env, []any) ([]any, error) {
			return []any{big.NewInt(TokenDecimals)}, nil
		}},
	}
}

func (t *token) initialize(e *env, args []any) ([]any, error) {
	if e.sender != t.owner {
		return nil, reverted("initialize: caller is not the owner")
	}
	if t.initialized {
		return nil, reverted("initialize: already initialized")
	}
	t.name, t.symbol = args[0].(string), args[1].(string)
	t.initialized = true
	return nil, nil
}

func (t *token) mint(e *env, args []any) ([]any, error) {
	to, amount := args[0].(ledger.Address), args[1].(*big.Int)
	if e.sender != t.owner {
		return nil, reverted("mint: caller is not the owner")
	}
	if !t.initialized {
		return nil, reverted("mint: token not initialized")
	}
	t.supply.Add(t.supply, amount)
	t.balances[to] = new(big.Int).Add(balanceIn(t.balances, to), amount)
	return nil, nil
}

func (t *token) approve(e *env, args []any) ([]any, error) {
	spender, amount := args[0].(ledger.Address), args[1].(*big.Int)
	if t.allowances[e.sender] == nil {
		t.allowances[e.sender] = make(map[ledger.Address]*big.Int)
	}
	t.allowances[e.sender][spender] = amount
	return nil, nil
}

func (t *token) transfer(e *env, args []any) ([]any, error) {
	to, amount := args[0].(ledger.Address), args[1].(*big.Int)
	if err := t.move(e.sender, to, amount); err != nil {
		return nil, err
	}
	return nil, nil
}

func (t *token) transferFrom(e *env, args []any) ([]any, error) {
	from, to, amount := args[0].(ledger.Address), args[1].(ledger.Address), args[2].(*big.Int)
	allowed := balanceIn(t.allowances[from], e.sender)
	if allowed.Cmp(amount) < 0 {
		return nil, reverted("transferFrom: insufficient allowance (%s < %s)", allowed, amount)
	}
	if err := t.move(from, to, amount); err != nil {
		return nil, err
	}
	if t.allowances[from] == nil {
		t.allowances[from] = make(map[ledger.Address]*big.Int)
	}
	t.allowances[from][e.sender] = allowed.Sub(allowed, amount)
	return nil, nil
}

// move transfers amount between balances, reverting before any change when
// the sender cannot cover it.
func (t *token) move(from, to ledger.Address, amount *big.Int) error {
	balance := balanceIn(t.balances, from)
	if balance.Cmp(amount) < 0 {
		return reverted("transfer: insufficient balance (%s < %s)", balance, amount)
	}
	t.balances[from] = balance.Sub(balance, amount)
	t.balances[to] = new(big.Int).Add(balanceIn(t.balances, to), amount)
	return nil
}

func (t *token) balanceOf(_ *env, args []any) ([]any, error) {
	return []any{balanceIn(t.balances, args[0].(ledger.Address))}, nil
}

func (t *token) allowance(_ *env, args []any) ([]any, error) {
	return []any{balanceIn(t.allowances[args[0].(ledger.Address)], args[1].(ledger.Address))}, nil
}

func (t *token) totalSupply(*env, []any) ([]any, error) {
	return []any{new(big.Int).Set(t.supply)}, nil
}
