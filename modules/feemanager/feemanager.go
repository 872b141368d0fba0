// Package feemanager holds the governance-controlled fee
// configuration and charges transaction fees.
//
// The fee of a signed call is
//
//	(BaseFee * weight + ByteFee * encodedLen) * acceleration
//
// and is burned from the signer's free balance.
package feemanager

import (
	"fmt"
	"math/bits"

	"github.com/blockberries/stf"
	"github.com/blockberries/stf/modules/balances"
	"github.com/blockberries/stf/system"
	"github.com/blockberries/stf/types"
)

// ModuleName is the routing key of the fee manager module.
const ModuleName = "feemanager"

// EventFeePaid is deposited when a fee is charged.
const EventFeePaid = "feemanager.FeePaid"

var (
	keySwitch  = []byte("feemanager:switch")
	keyWeights = []byte("feemanager:weights")
	keyBaseFee = []byte("feemanager:base_fee")
	keyByteFee = []byte("feemanager:byte_fee")
)

// weightTable is the stored form of the method weight table.
type weightTable struct {
	Weights []types.MethodWeight `cramberry:"1"`
}

// Module is the fee manager. It implements both the fee
// configuration and the payment strategy.
type Module struct{}

var (
	_ stf.Module    = Module{}
	_ stf.FeeConfig = Module{}
	_ stf.Payment   = Module{}
)

// Name implements stf.Module.
func (Module) Name() string { return ModuleName }

// Switch implements stf.FeeConfig.
func (Module) Switch(st stf.StateReader) (types.Switch, error) {
	var sw types.Switch
	_, err := system.GetValue(st, keySwitch, &sw)
	return sw, err
}

// MethodCallWeight implements stf.FeeConfig.
func (Module) MethodCallWeight(st stf.StateReader) (map[string]uint64, error) {
	var tbl weightTable
	if _, err := system.GetValue(st, keyWeights, &tbl); err != nil {
		return nil, err
	}
	out := make(map[string]uint64, len(tbl.Weights))
	for _, w := range tbl.Weights {
		out[w.Method] = w.Weight
	}
	return out, nil
}

// CheckPayment implements stf.Payment.
func (m Module) CheckPayment(st stf.StateReader, who types.AccountID,
	encodedLen int, weight uint64, acceleration uint32) error {

	fee, err := m.Fee(st, encodedLen, weight, acceleration)
	if err != nil {
		return err
	}
	free, err := balances.FreeBalance(st, who)
	if err != nil {
		return err
	}
	if free < fee {
		return fmt.Errorf("%w: fee %d exceeds balance %d",
			stf.ErrInsufficientBalance, fee, free)
	}
	return nil
}

// MakePayment implements stf.Payment.
func (m Module) MakePayment(st stf.State, who types.AccountID,
	encodedLen int, weight uint64, acceleration uint32) error {

	fee, err := m.Fee(st, encodedLen, weight, acceleration)
	if err != nil {
		return err
	}
	if err := balances.Withdraw(st, who, fee); err != nil {
		return err
	}
	return system.DepositEvent(st, EventFeePaid,
		system.Attr("who", who), system.Attr("fee", fee))
}

// Fee computes the fee for a call.
func (Module) Fee(st stf.StateReader, encodedLen int, weight uint64,
	acceleration uint32) (uint64, error) {

	base, err := system.GetUint64(st, keyBaseFee)
	if err != nil {
		return 0, err
	}
	perByte, err := system.GetUint64(st, keyByteFee)
	if err != nil {
		return 0, err
	}

	weighted, ok := mul(base, weight)
	if !ok {
		return 0, errOverflow
	}
	sized, ok := mul(perByte, uint64(encodedLen))
	if !ok {
		return 0, errOverflow
	}
	sum, carry := bits.Add64(weighted, sized, 0)
	if carry != 0 {
		return 0, errOverflow
	}
	fee, ok := mul(sum, uint64(acceleration))
	if !ok {
		return 0, errOverflow
	}
	return fee, nil
}

var errOverflow = fmt.Errorf("%w: fee overflows", stf.ErrInsufficientBalance)

func mul(a, b uint64) (uint64, bool) {
	hi, lo := bits.Mul64(a, b)
	return lo, hi == 0
}

// Configure stores the fee parameters.
func Configure(st stf.State, p types.FeeParams) error {
	if err := system.PutUint64(st, keyBaseFee, p.BaseFee); err != nil {
		return err
	}
	if err := system.PutUint64(st, keyByteFee, p.ByteFee); err != nil {
		return err
	}
	if err := SetSwitch(st, p.Switch); err != nil {
		return err
	}
	return system.PutValue(st, keyWeights, weightTable{Weights: p.Weights})
}

// SetSwitch replaces the fee switch.
func SetSwitch(st stf.State, sw types.Switch) error {
	return system.PutValue(st, keySwitch, sw)
}
