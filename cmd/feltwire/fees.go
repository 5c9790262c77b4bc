package main

import (
	"fmt"

	"github.com/feltwire/feltwire/internal/ledger"
	"github.com/feltwire/feltwire/internal/server"
)

// FeesCmd prints the current per-hand fee and, when stakes are given,
// whether a table at those stakes is economically viable.
type FeesCmd struct {
	Config     string `kong:"default='feltwire.hcl',help='Path to HCL configuration file'"`
	SmallBlind int64  `kong:"help='Small blind to check for viability'"`
	BigBlind   int64  `kong:"help='Big blind to check for viability'"`
}

func (c *FeesCmd) Run() error {
	cfg, err := server.LoadServerConfig(c.Config)
	if err != nil {
		return err
	}

	fees := ledger.DefaultFeeCalculator()
	if f := cfg.Fees; f != nil {
		fees = &ledger.FeeCalculator{
			CostUnits:        f.CostUnits,
			UnitPrice:        f.UnitPrice,
			MarkupBps:        f.MarkupBps,
			FloorFee:         f.FloorFee,
			SafetyMultiplier: f.SafetyMultiplier,
		}
	}

	fmt.Printf("current fee: %d\n", fees.CurrentFee())

	if c.SmallBlind > 0 || c.BigBlind > 0 {
		viable, reason := fees.IsViableStakes(c.SmallBlind, c.BigBlind)
		fmt.Printf("stakes %d/%d viable: %v (%s)\n", c.SmallBlind, c.BigBlind, viable, reason)
	}

	return nil
}
