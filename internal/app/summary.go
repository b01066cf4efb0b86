// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
package app

import (
	"context"
	"math/big"
	"sort"

	"github.com/specialistvlad/ledgerboot/internal/ledger"
	"github.com/specialistvlad/ledgerboot/internal/orchestrator"
	"github.com/specialistvlad/ledgerboot/internal/workflow"
)

// summarize reads the final balances of the services created by the run: the
// operator's balance in every service that tracks balances, and the holdings
// of every other service in each token. Services that do not answer a query
// are skipped.
func (a *App) summarize(ctx context.Context, report *orchestrator.Report) map[string]string {
	operator := a.ledger.Operator()
	balances := make(map[string]string)

	type token struct {
		name     string
		address  ledger.Address
		decimals uint8
	}
	var tokens []token

	for _, svc := range report.Services {
		addr := ledger.Address(svc.Address)
		if out, err := a.ledger.Query(ctx, addr, "decimals"); err == nil {
			if d, ok := out[0].(*big.Int); ok && d.IsUint64() && d.Uint64() <= 255 {
				tokens = append(tokens, token{name: svc.Name, address: addr, decimals: uint8(d.Uint64())})
			}
		}
		if amount, ok := a.queryAmount(ctx, addr, "balanceOf", operator); ok {
			balances[svc.Name+".balanceOf(operator)"] = amount.String()
		}
	}

	for _, tok := range tokens {
		if amount, ok := a.queryAmount(ctx, tok.address, "balanceOf", operator); ok {
			balances[tok.name+".balanceOf(operator)"] = workflow.FormatUnits(amount, tok.decimals)
		}
		for _, svc := range report.Services {
			if svc.Name == tok.name {
				continue
			}
			if amount, ok := a.queryAmount(ctx, tok.address, "balanceOf", ledger.Address(svc.Address)); ok {
				balances[tok.name+".balanceOf("+svc.Name+")"] = workflow.FormatUnits(amount, tok.decimals)
			}
		}
	}

	if len(balances) > 0 {
		keys := make([]string, 0, len(balances))
		for k := range balances {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		args := make([]any, 0, 2*len(keys))
		for _, k := range keys {
			args = append(args, k, balances[k])
		}
		a.logger.Info("💰 Final balances", args...)
	}
	return balances
}

func (a *App) queryAmount(ctx context.Context, target ledger.Address, method string, args ...any) (*big.Int, bool) {
	out, err := a.ledger.Query(ctx, target, method, args...)
	if err != nil {
		a.logger.Debug("Balance query skipped.", "target", target.String(), "method", method, "error", err)
		return nil, false
	}
	if len(out) != 1 {
		return nil, false
	}
	amount, ok := out[0].(*big.Int)
	return amount, ok
}
