package main

import (
	"context"
	"fmt"
)

// repairSystem re-derives progress records against the live catalog; all
// records by default, a single user's with -user.
func (cli *commandLine) repairSystem(userID string) error {
	ctx := context.Background()

	var userIDs []string
	if userID != "" {
		userIDs = append(userIDs, userID)
	}
	report, err := cli.progressSvc.RepairAll(ctx, userIDs...)
	if err != nil {
		return err
	}
	fmt.Printf("scanned %d progress record(s), repaired %d\n", report.Scanned, report.Repaired)
	return nil
}
