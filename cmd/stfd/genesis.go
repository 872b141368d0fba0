package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/blockberries/stf/types"
)

// genesisFile is the on-disk JSON form of types.GenesisConfig, with
// account ids as hex strings and the genesis time in RFC 3339.
type genesisFile struct {
	ChainID     string    `json:"chain_id"`
	GenesisTime time.Time `json:"genesis_time"`
	Accounts    []struct {
		ID      string `json:"id"`
		Balance uint64 `json:"balance"`
	} `json:"accounts"`
	Fees types.FeeParams `json:"fees"`
}

// loadGenesis reads a JSON genesis document.
func loadGenesis(path string) (types.GenesisConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.GenesisConfig{}, fmt.Errorf("read genesis: %w", err)
	}
	var f genesisFile
	if err := json.Unmarshal(data, &f); err != nil {
		return types.GenesisConfig{}, fmt.Errorf("parse genesis %s: %w", path, err)
	}

	g := types.GenesisConfig{
		ChainID:     f.ChainID,
		GenesisTime: types.TimeToTimestamp(f.GenesisTime),
		Fees:        f.Fees,
	}
	for i, a := range f.Accounts {
		raw, err := hex.DecodeString(a.ID)
		if err != nil || len(raw) != len(types.AccountID{}) {
			return types.GenesisConfig{}, fmt.Errorf("genesis account %d: want %d-byte hex id, got %q",
				i, len(types.AccountID{}), a.ID)
		}
		g.Accounts = append(g.Accounts, types.GenesisAccount{
			ID:      types.AccountID(raw),
			Balance: a.Balance,
		})
	}
	return g, nil
}
