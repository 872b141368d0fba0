package types

// GenesisAccount is an account endowed at genesis.
type GenesisAccount struct {
	ID      AccountID `cramberry:"1" json:"id"`
	Balance uint64    `cramberry:"2" json:"balance"`
}

// GenesisConfig is the chain initialization document.
type GenesisConfig struct {
	ChainID     string           `cramberry:"1" json:"chain_id"`
	GenesisTime Timestamp        `cramberry:"2" json:"genesis_time"`
	Accounts    []GenesisAccount `cramberry:"3" json:"accounts"`
	Fees        FeeParams        `cramberry:"4" json:"fees"`
}
