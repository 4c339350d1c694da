package progress

import (
	"context"
	"fmt"

	pkgerrors "github.com/pkg/errors"

	"github.com/trezcool/elimu/core/catalog"
)

// RepairReport summarizes a batch repair run.
type RepairReport struct {
	Scanned  int `json:"scanned"`
	Repaired int `json:"repaired"`
}

// RepairAfterModuleDeletion walks every Progress record and heals references
// to a module that was just removed from the catalog. The catalog must
// already be re-sequenced (catalog.Service.DeleteModule does both, in order).
// Per-record failures are logged and skipped, never propagated.
func (svc *Service) RepairAfterModuleDeletion(ctx context.Context, deleted catalog.Module) (RepairReport, error) {
	recs, err := svc.repo.QueryAllProgress(ctx)
	if err != nil {
		return RepairReport{}, pkgerrors.Wrap(err, "querying progress records")
	}

	// the module now occupying the deleted slot, or the previous slot when the
	// deleted module was last; empty when no modules remain
	var replacement string
	if mod, err := svc.catalog.FindModuleByOrder(ctx, deleted.Order); err == nil {
		replacement = mod.ID
	} else if err != catalog.ErrModuleNotFound {
		return RepairReport{}, pkgerrors.Wrap(err, "finding replacement module")
	} else if deleted.Order > 1 {
		if mod, err := svc.catalog.FindModuleByOrder(ctx, deleted.Order-1); err == nil {
			replacement = mod.ID
		} else if err != catalog.ErrModuleNotFound {
			return RepairReport{}, pkgerrors.Wrap(err, "finding replacement module")
		}
	}

	var firstModule string
	if m1, err := svc.catalog.FindModuleByOrder(ctx, 1); err == nil {
		firstModule = m1.ID
	} else if err != catalog.ErrModuleNotFound {
		return RepairReport{}, pkgerrors.Wrap(err, "finding first module")
	}

	report := RepairReport{Scanned: len(recs)}
	for i := range recs {
		prog := &recs[i]
		var changed bool

		if prog.Global.CurrentModule == deleted.ID {
			prog.Global.CurrentModule = replacement
			changed = true
		}
		if prog.removeUnlockedModule(deleted.ID) {
			changed = true
		}
		// module 1 must always remain accessible
		if firstModule != "" && prog.unlockModule(firstModule) {
			changed = true
		}
		if prog.removeCompletedModule(deleted.ID) {
			changed = true
		}
		if prog.removeModuleEntry(deleted.ID) {
			changed = true
		}

		if changed {
			if _, err := svc.save(ctx, *prog); err != nil {
				svc.log.Error(fmt.Sprintf("repairing progress %s after module deletion: %v", prog.ID, err), err)
				continue
			}
			report.Repaired++
		}
	}
	return report, nil
}

// RepairAfterQuizDeletion prunes dangling references to a removed quiz from
// every Progress record and recomputes the owning module's completion state.
// The quiz's siblings must already be re-sequenced.
func (svc *Service) RepairAfterQuizDeletion(ctx context.Context, deleted catalog.Quiz) (RepairReport, error) {
	recs, err := svc.repo.QueryAllProgress(ctx)
	if err != nil {
		return RepairReport{}, pkgerrors.Wrap(err, "querying progress records")
	}
	quizzes, err := svc.catalog.FindQuizzesByModule(ctx, deleted.ModuleID)
	if err != nil {
		return RepairReport{}, pkgerrors.Wrap(err, "listing module quizzes")
	}

	report := RepairReport{Scanned: len(recs)}
	for i := range recs {
		prog := &recs[i]
		mp := prog.ModuleEntry(deleted.ModuleID)
		if mp == nil {
			continue
		}
		if changed, _ := refreshModuleEntry(mp, quizzes); !changed {
			continue
		}
		if _, err := svc.save(ctx, *prog); err != nil {
			svc.log.Error(fmt.Sprintf("repairing progress %s after quiz deletion: %v", prog.ID, err), err)
			continue
		}
		report.Repaired++
	}
	return report, nil
}

// RepairAll re-derives unlock and completion state for all users (or the given
// ones) against the current catalog. Idempotent: a second run right after a
// first reports zero repaired records. Per-record failures are logged and
// skipped.
func (svc *Service) RepairAll(ctx context.Context, userIDs ...string) (RepairReport, error) {
	var (
		recs []Progress
		err  error
	)
	if len(userIDs) > 0 {
		recs, err = svc.repo.QueryProgressByUsers(ctx, userIDs)
	} else {
		recs, err = svc.repo.QueryAllProgress(ctx)
	}
	if err != nil {
		return RepairReport{}, pkgerrors.Wrap(err, "querying progress records")
	}

	modules, err := svc.catalog.FindModulesOrdered(ctx, true /* ascending */)
	if err != nil {
		return RepairReport{}, pkgerrors.Wrap(err, "listing modules")
	}
	quizzesByModule := make(map[string][]catalog.Quiz, len(modules))
	firstQuizByModule := make(map[string]string, len(modules))
	for _, mod := range modules {
		quizzes, err := svc.catalog.FindQuizzesByModule(ctx, mod.ID)
		if err != nil {
			return RepairReport{}, pkgerrors.Wrap(err, "listing module quizzes")
		}
		quizzesByModule[mod.ID] = quizzes
		if q := quizAtOrder(quizzes, 1); q != nil {
			firstQuizByModule[mod.ID] = q.ID
		}
	}

	report := RepairReport{Scanned: len(recs)}
	for i := range recs {
		prog := &recs[i]
		if !repairRecord(prog, modules, quizzesByModule, firstQuizByModule) {
			continue
		}
		if _, err := svc.save(ctx, *prog); err != nil {
			svc.log.Error(fmt.Sprintf("repairing progress %s: %v", prog.ID, err), err)
			continue
		}
		report.Repaired++
	}
	return report, nil
}

// repairRecord normalizes one Progress record against the catalog. It heals
// rather than rejects: dangling references are pruned, missing entries
// synthesized, and a stale current module re-pointed.
func repairRecord(prog *Progress, modules []catalog.Module, quizzesByModule map[string][]catalog.Quiz, firstQuizByModule map[string]string) bool {
	known := make(map[string]bool, len(modules))
	for _, mod := range modules {
		known[mod.ID] = true
	}

	var changed bool

	// prune dangling module references
	unlocked := prog.Global.UnlockedModules[:0]
	for _, id := range prog.Global.UnlockedModules {
		if known[id] {
			unlocked = append(unlocked, id)
		} else {
			changed = true
		}
	}
	prog.Global.UnlockedModules = unlocked

	completed := prog.Global.CompletedModules[:0]
	for _, mc := range prog.Global.CompletedModules {
		if known[mc.ModuleID] {
			completed = append(completed, mc)
		} else {
			changed = true
		}
	}
	prog.Global.CompletedModules = completed

	entries := prog.Modules[:0]
	for _, mp := range prog.Modules {
		if known[mp.ModuleID] {
			entries = append(entries, mp)
		} else {
			changed = true
		}
	}
	prog.Modules = entries

	if len(modules) == 0 {
		if prog.Global.CurrentModule != "" {
			prog.Global.CurrentModule = ""
			changed = true
		}
		return changed
	}

	// module 1 must always be unlocked
	first := modules[0]
	if prog.unlockModule(first.ID) {
		changed = true
	}

	// current module must be an unlocked, existing module; fall back to the
	// most advanced still-unlocked one
	if !containsString(prog.Global.UnlockedModules, prog.Global.CurrentModule) {
		current := first.ID
		for i := len(modules) - 1; i >= 0; i-- {
			if containsString(prog.Global.UnlockedModules, modules[i].ID) {
				current = modules[i].ID
				break
			}
		}
		if prog.Global.CurrentModule != current {
			prog.Global.CurrentModule = current
			changed = true
		}
	}

	// synthesize entries for catalog modules the record has never touched
	for _, mod := range modules {
		if prog.ModuleEntry(mod.ID) != nil {
			continue
		}
		mp := ModuleProgress{ModuleID: mod.ID, Status: StatusLocked}
		if mod.Order == 1 || containsString(prog.Global.UnlockedModules, mod.ID) {
			mp.Status = StatusUnlocked
			if q1 := firstQuizByModule[mod.ID]; q1 != "" {
				mp.UnlockedQuizzes = []string{q1}
				mp.CurrentQuiz = q1
			}
		}
		prog.Modules = append(prog.Modules, mp)
		changed = true
	}

	// re-derive every entry against the live quiz lists
	for i := range prog.Modules {
		if c, _ := refreshModuleEntry(&prog.Modules[i], quizzesByModule[prog.Modules[i].ModuleID]); c {
			changed = true
		}
	}
	return changed
}
