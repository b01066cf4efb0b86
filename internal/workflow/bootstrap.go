// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
package workflow

import (
	"math/big"
	"time"
)

// Step ids of the bootstrap workflow.
const (
	StepToken             = "token"
	StepInitializeToken   = "initialize_token"
	StepVault             = "vault"
	StepReward            = "reward"
	StepEpochDuration     = "epoch_duration"
	StepMint              = "mint"
	StepFundRewards       = "fund_rewards"
	StepNextEpochReward   = "next_epoch_reward"
	StepDeposit           = "deposit"
	StepDistributeRewards = "distribute_rewards"
	StepShareQuote        = "share_quote"
	StepWithdraw          = "withdraw"
)

// Service templates known to the ledger.
const (
	TemplateToken          = "Token"
	TemplateStakingVault   = "StakingVault"
	TemplateRewardContract = "RewardContract"
)

// Outputs recorded by the bootstrap workflow besides deploy addresses.
const (
	OutputSharesMinted = "shares"
	OutputShareQuote   = "shares"
	OutputSharesBurned = "shares_burned"
)

// Params are the tunable inputs of the bootstrap workflow. Amounts are in the
// token's smallest unit.
type Params struct {
	TokenName     string
	TokenSymbol   string
	InitialReward *big.Int
	EpochDuration time.Duration

	MintAmount      *big.Int
	RewardFunding   *big.Int
	NextEpochReward *big.Int
	DepositAmount   *big.Int
	WithdrawAmount  *big.Int
}

// TokenDecimals is the scale of every bootstrap amount.
const TokenDecimals = 18

// DefaultParams returns the production bootstrap values.
func DefaultParams() Params {
	return Params{
		TokenName:       "1sDAI",
		TokenSymbol:     "1sDAI",
		InitialReward:   MustParseUnits("100", TokenDecimals),
		EpochDuration:   time.Hour,
		MintAmount:      MustParseUnits("1000000000", TokenDecimals),
		RewardFunding:   MustParseUnits("500", TokenDecimals),
		NextEpochReward: MustParseUnits("100", TokenDecimals),
		DepositAmount:   MustParseUnits("100", TokenDecimals),
		WithdrawAmount:  MustParseUnits("50", TokenDecimals),
	}
}

// Bootstrap returns the twelve-step workflow that provisions the token, the
// staking vault and the reward contract and exercises each of them once.
func Bootstrap(p Params) Workflow {
	token, vault, reward := AddressOf(StepToken), AddressOf(StepVault), AddressOf(StepReward)

	return Workflow{
		Name: "bootstrap",
		Steps: []Step{
			deploy(StepToken, TemplateToken),
			call(StepInitializeToken, Operation{
				Target: token, Method: "initialize",
				Args: []Binding{String(p.TokenName), String(p.TokenSymbol)},
			}),
			deploy(StepVault, TemplateStakingVault, token, Operator()),
			deploy(StepReward, TemplateRewardContract, token, vault, Amount(p.InitialReward)),
			call(StepEpochDuration, Operation{
				Target: reward, Method: "setEpochDuration",
				Args: []Binding{Seconds(int64(p.EpochDuration / time.Second))},
			}),
			call(StepMint, Operation{
				Target: token, Method: "mint",
				Args: []Binding{Operator(), Amount(p.MintAmount)},
			}),
			call(StepFundRewards,
				Operation{Target: token, Method: "approve", Args: []Binding{reward, Amount(p.RewardFunding)}},
				Operation{Target: token, Method: "transfer", Args: []Binding{reward, Amount(p.RewardFunding)}},
			),
			call(StepNextEpochReward, Operation{
				Target: reward, Method: "setNextEpochReward",
				Args: []Binding{Amount(p.NextEpochReward)},
			}),
			call(StepDeposit,
				Operation{Target: token, Method: "approve", Args: []Binding{vault, Amount(p.DepositAmount)}},
				Operation{
					Target: vault, Method: "deposit",
					Args:    []Binding{Amount(p.DepositAmount), Operator()},
					Outputs: []string{OutputSharesMinted},
				},
			),
			call(StepDistributeRewards, Operation{Target: reward, Method: "distributeRewards"}),
			{
				ID:   StepShareQuote,
				Kind: KindQuery,
				Operations: []Operation{{
					Target: vault, Method: "convertToShares",
					Args:    []Binding{Amount(p.DepositAmount)},
					Outputs: []string{OutputShareQuote},
				}},
			},
			call(StepWithdraw, Operation{
				Target: vault, Method: "withdraw",
				Args:    []Binding{Amount(p.WithdrawAmount), Operator(), Operator()},
				Outputs: []string{OutputSharesBurned},
			}),
		},
	}
}

func deploy(id, template string, args ...Binding) Step {
	return Step{ID: id, Kind: KindDeploy, Operations: []Operation{{Template: template, Args: args}}}
}

func call(id string, ops ...Operation) Step {
	return Step{ID: id, Kind: KindCall, Operations: ops}
}
