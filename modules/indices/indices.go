// Package indices assigns compact account indices and resolves
// addresses that use them.
package indices

import (
	"encoding/binary"
	"fmt"

	"github.com/blockberries/stf"
	"github.com/blockberries/stf/system"
	"github.com/blockberries/stf/types"
)

// ModuleName is the routing key of the indices module.
const ModuleName = "indices"

// EventNewAccountIndex is deposited when an index is assigned.
const EventNewAccountIndex = "indices.NewAccountIndex"

var (
	keyNextIndex  = []byte("indices:next")
	prefixAccount = []byte("indices:account/")
	prefixIndexOf = []byte("indices:index_of/")
)

func accountKey(index uint32) []byte {
	return binary.BigEndian.AppendUint32(append([]byte{}, prefixAccount...), index)
}

func indexOfKey(who types.AccountID) []byte {
	return append(append([]byte{}, prefixIndexOf...), who[:]...)
}

// Module is the indices module. It has no calls.
type Module struct{}

var (
	_ stf.Module = Module{}
	_ stf.Lookup = Module{}
)

// Name implements stf.Module.
func (Module) Name() string { return ModuleName }

// Lookup implements stf.Lookup.
func (Module) Lookup(st stf.StateReader, addr types.Address) (types.AccountID, error) {
	switch addr.Kind {
	case types.AddressID:
		return addr.ID, nil
	case types.AddressIndex:
		return Account(st, addr.Index)
	default:
		return types.AccountID{}, fmt.Errorf("%w: empty address", stf.ErrInvalidAccountIndex)
	}
}

// Account returns the account registered at index.
func Account(st stf.StateReader, index uint32) (types.AccountID, error) {
	v, err := st.Get(accountKey(index))
	if err != nil {
		return types.AccountID{}, err
	}
	if len(v) != len(types.AccountID{}) {
		return types.AccountID{}, fmt.Errorf("%w: %d", stf.ErrInvalidAccountIndex, index)
	}
	return types.AccountID(v), nil
}

// IndexOf returns the index assigned to who, if any.
func IndexOf(st stf.StateReader, who types.AccountID) (uint32, bool, error) {
	v, err := st.Get(indexOfKey(who))
	if err != nil || v == nil {
		return 0, false, err
	}
	return binary.BigEndian.Uint32(v), true, nil
}

// Register assigns the next free index to who. It is a no-op for an
// account that already has one.
func Register(st stf.State, who types.AccountID) (uint32, error) {
	if index, ok, err := IndexOf(st, who); err != nil || ok {
		return index, err
	}

	next, err := system.GetUint64(st, keyNextIndex)
	if err != nil {
		return 0, err
	}
	index := uint32(next)
	if err := st.Set(accountKey(index), who[:]); err != nil {
		return 0, err
	}
	if err := st.Set(indexOfKey(who), binary.BigEndian.AppendUint32(nil, index)); err != nil {
		return 0, err
	}
	if err := system.PutUint64(st, keyNextIndex, next+1); err != nil {
		return 0, err
	}
	return index, system.DepositEvent(st, EventNewAccountIndex,
		system.Attr("who", who), system.Attr("index", uint64(index)))
}

// QueryKey returns the state key of index, for queries.
func QueryKey(index uint32) []byte { return accountKey(index) }
