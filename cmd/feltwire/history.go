package main

import (
	"fmt"

	"github.com/feltwire/feltwire/internal/history"
)

// HistoryCmd lists the recorded hands for a table from the audit store.
type HistoryCmd struct {
	Path  string `kong:"required,help='Path to the history database'"`
	Table string `kong:"required,help='Table id to list hands for'"`
}

func (c *HistoryCmd) Run() error {
	store, err := history.Open(c.Path)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	records, err := store.ForTable(c.Table)
	if err != nil {
		return err
	}

	for _, rec := range records {
		fmt.Printf("%s hand=%d winner=%s pot=%d fee=%d actions=%d ended=%s\n",
			rec.HandID, rec.HandNumber, rec.Winner, rec.Pot, rec.Fee,
			len(rec.Actions), rec.EndedAt.Format("2006-01-02T15:04:05Z07:00"))
	}
	if len(records) == 0 {
		fmt.Println("no hands recorded")
	}

	return nil
}
