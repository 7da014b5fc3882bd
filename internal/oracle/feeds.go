package oracle

// FeedTables maps trading pairs to on-chain feed accounts, one table per
// source. Configuration, not runtime state: a pair missing from both
// tables simply cannot be priced.
type FeedTables struct {
	Switchboard map[string]string
	Pyth        map[string]string
}

// DefaultFeedTables returns the well-known devnet feed addresses. Swap for
// mainnet equivalents when graduating.
func DefaultFeedTables() FeedTables {
	return FeedTables{
		Switchboard: map[string]string{
			"SOL/USD": "GvDMxPzN1sCj7L26YDK2HnMRXEQmQ2aemov8YBtPS7vR",
			"BTC/USD": "8SXvChNYFhRq4EZuZvnhjrB3jJRQCv4k3P4W6hesH3Bh",
			"ETH/USD": "HNStfhaLnqwF2ZtJUizaA9uHDAVB976r2AgTUx9LrdEo",
		},
		Pyth: map[string]string{
			"SOL/USD": "J83w4HKfqxwcq3BEMMkPFSppX3gqekLyLJBexebFVkix",
			"BTC/USD": "HovQMDrbAgAYPCmHVSrezcSmkMtXSSUsLDFANExrZh2J",
			"ETH/USD": "EdVCmQ9FSPcVe5YySXDPCRmc8aDQLKJ9GvYRhgBEPGPR",
		},
	}
}
