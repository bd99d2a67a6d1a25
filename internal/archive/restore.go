package archive

import (
	"context"
	"sort"

	"github.com/permafrost-io/groupctl/internal/capability"
	"github.com/permafrost-io/groupctl/internal/logging"
)

// ApplyFunc pushes a group's reconstructed capability set to the platform.
type ApplyFunc func(ctx context.Context, customer string, groupID int64, grants []capability.Grant) error

// Outcome status values.
const (
	StatusPlanned  = "planned"  // dry run, would be applied
	StatusRestored = "restored" // applied successfully
	StatusSkipped  = "skipped"  // grant data failed to load
	StatusFailed   = "failed"   // apply call failed
)

// Outcome records what happened to one group during a restore.
type Outcome struct {
	Customer     string
	GroupID      int64
	GroupName    string
	Capabilities int
	Status       string
	Err          error
}

// Restore walks a backup record and reconstructs each group's capability
// set. It is best-effort: a group whose grants fail to load is skipped, a
// failed apply is recorded, and the batch continues either way. In dry-run
// mode nothing is applied; outcomes report what would be.
func Restore(ctx context.Context, rec Record, apply ApplyFunc, dryRun bool) []Outcome {
	log := logging.Op()

	customers := make([]string, 0, len(rec))
	for c := range rec {
		customers = append(customers, c)
	}
	sort.Strings(customers)

	var outcomes []Outcome
	for _, customer := range customers {
		for _, gr := range rec[customer] {
			grants := make([]capability.Grant, 0, len(gr.Capabilities))
			var loadErr error
			for _, raw := range gr.Capabilities {
				g, err := capability.Load(raw)
				if err != nil {
					loadErr = err
					break
				}
				grants = append(grants, g)
			}
			if loadErr != nil {
				log.Warn("skipping group, failed to load capabilities",
					"customer", customer, "group", gr.Name, "id", gr.ID, "err", loadErr)
				outcomes = append(outcomes, Outcome{
					Customer: customer, GroupID: gr.ID, GroupName: gr.Name,
					Status: StatusSkipped, Err: loadErr,
				})
				continue
			}

			out := Outcome{
				Customer: customer, GroupID: gr.ID, GroupName: gr.Name,
				Capabilities: len(grants),
			}
			if dryRun {
				out.Status = StatusPlanned
				outcomes = append(outcomes, out)
				continue
			}
			if err := apply(ctx, customer, gr.ID, grants); err != nil {
				log.Error("restore failed for group",
					"customer", customer, "group", gr.Name, "id", gr.ID, "err", err)
				out.Status = StatusFailed
				out.Err = err
			} else {
				out.Status = StatusRestored
			}
			outcomes = append(outcomes, out)
		}
	}
	return outcomes
}
