package progress_test

import (
	"context"
	"testing"

	"github.com/trezcool/elimu/core/progress"
)

func TestRepairAfterModuleDeletion(t *testing.T) {
	ctx := context.Background()
	env := setup(t)
	mods, quizzes := env.seedCatalog(t, 3, 1)
	m1, m2, m3 := mods[0], mods[1], mods[2]

	// advance the user into module 2
	if _, err := env.progSvc.CompleteQuiz(ctx, "u1", quizzes[m1.ID][0].ID, progress.QuizAttempt{Score: 80}); err != nil {
		t.Fatalf("CompleteQuiz() failed: %v", err)
	}

	// delete module 2; the catalog is re-sequenced first, then progress healed
	deleted, err := env.catSvc.DeleteModule(ctx, m2.ID)
	if err != nil {
		t.Fatalf("DeleteModule() failed: %v", err)
	}
	report, err := env.progSvc.RepairAfterModuleDeletion(ctx, deleted)
	if err != nil {
		t.Fatalf("RepairAfterModuleDeletion() failed: %v", err)
	}
	if report.Scanned != 1 || report.Repaired != 1 {
		t.Errorf("report = %+v, want {Scanned:1 Repaired:1}", report)
	}

	// module 3 now has order 2
	if mod, err := env.catSvc.FindModuleByOrder(ctx, 2); err != nil || mod.ID != m3.ID {
		t.Fatalf("FindModuleByOrder(2) = (%+v, %v), want module %s", mod, err, m3.ID)
	}

	prog, err := env.progSvc.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if prog.IsModuleUnlocked(m2.ID) {
		t.Error("deleted module must leave the unlocked set")
	}
	if prog.ModuleEntry(m2.ID) != nil {
		t.Error("deleted module's entry must be removed")
	}
	// the module now occupying the deleted slot takes over as current
	if prog.Global.CurrentModule != m3.ID {
		t.Errorf("CurrentModule = %q, want %q", prog.Global.CurrentModule, m3.ID)
	}
	if !prog.IsModuleUnlocked(m1.ID) {
		t.Error("first module must remain unlocked")
	}
	if len(prog.Global.CompletedModules) != 1 || prog.Global.CompletedModules[0].ModuleID != m1.ID {
		t.Errorf("CompletedModules = %+v, want only %s", prog.Global.CompletedModules, m1.ID)
	}
}

func TestRepairAfterModuleDeletion_lastModule(t *testing.T) {
	ctx := context.Background()
	env := setup(t)
	mods, quizzes := env.seedCatalog(t, 2, 1)
	m1, m2 := mods[0], mods[1]

	if _, err := env.progSvc.CompleteQuiz(ctx, "u1", quizzes[m1.ID][0].ID, progress.QuizAttempt{Score: 80}); err != nil {
		t.Fatalf("CompleteQuiz() failed: %v", err)
	}

	deleted, err := env.catSvc.DeleteModule(ctx, m2.ID)
	if err != nil {
		t.Fatalf("DeleteModule() failed: %v", err)
	}
	if _, err = env.progSvc.RepairAfterModuleDeletion(ctx, deleted); err != nil {
		t.Fatalf("RepairAfterModuleDeletion() failed: %v", err)
	}

	prog, err := env.progSvc.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	// no module at the deleted slot; fall back to the previous one
	if prog.Global.CurrentModule != m1.ID {
		t.Errorf("CurrentModule = %q, want %q", prog.Global.CurrentModule, m1.ID)
	}
}

func TestRepairAfterQuizDeletion(t *testing.T) {
	ctx := context.Background()
	env := setup(t)
	mods, quizzes := env.seedCatalog(t, 1, 3)
	m1 := mods[0]
	q1, q2 := quizzes[m1.ID][0], quizzes[m1.ID][1]

	if _, err := env.progSvc.CompleteQuiz(ctx, "u1", q1.ID, progress.QuizAttempt{Score: 80}); err != nil {
		t.Fatalf("CompleteQuiz() failed: %v", err)
	}
	if _, err := env.progSvc.CompleteQuiz(ctx, "u1", q2.ID, progress.QuizAttempt{Score: 90}); err != nil {
		t.Fatalf("CompleteQuiz() failed: %v", err)
	}

	// drop the in-flight current quiz (q3) from the catalog
	q3 := quizzes[m1.ID][2]
	deleted, err := env.catSvc.DeleteQuiz(ctx, q3.ID)
	if err != nil {
		t.Fatalf("DeleteQuiz() failed: %v", err)
	}
	report, err := env.progSvc.RepairAfterQuizDeletion(ctx, deleted)
	if err != nil {
		t.Fatalf("RepairAfterQuizDeletion() failed: %v", err)
	}
	if report.Repaired != 1 {
		t.Errorf("report = %+v, want Repaired 1", report)
	}

	prog, err := env.progSvc.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	mp := prog.ModuleEntry(m1.ID)
	if prog.IsQuizUnlocked(q3.ID) {
		t.Error("deleted quiz must leave the unlocked set")
	}
	// current re-points to the last existing quiz
	if mp.CurrentQuiz != q2.ID {
		t.Errorf("CurrentQuiz = %q, want %q", mp.CurrentQuiz, q2.ID)
	}
	// 2 of 2 remaining quizzes passed
	if mp.CompletionPercentage != 100 {
		t.Errorf("CompletionPercentage = %d, want 100", mp.CompletionPercentage)
	}
}

func TestRepairAll(t *testing.T) {
	ctx := context.Background()

	t.Run("prunes dangling references and synthesizes entries", func(t *testing.T) {
		env := setup(t)
		mods, quizzes := env.seedCatalog(t, 2, 1)
		m1, m2 := mods[0], mods[1]

		// a fresh record, then corrupt it behind the service's back
		if _, err := env.progSvc.EnsureDefaultAccess(ctx, "u1"); err != nil {
			t.Fatalf("EnsureDefaultAccess() failed: %v", err)
		}
		prog, err := env.progSvc.Get(ctx, "u1")
		if err != nil {
			t.Fatalf("Get() failed: %v", err)
		}
		prog.Global.CurrentModule = "ghost"
		prog.Global.UnlockedModules = append(prog.Global.UnlockedModules, "ghost", m2.ID)
		if err = saveRaw(ctx, env, prog); err != nil {
			t.Fatalf("saving corrupted record failed: %v", err)
		}

		report, err := env.progSvc.RepairAll(ctx)
		if err != nil {
			t.Fatalf("RepairAll() failed: %v", err)
		}
		if report.Scanned != 1 || report.Repaired != 1 {
			t.Errorf("report = %+v, want {Scanned:1 Repaired:1}", report)
		}

		prog, err = env.progSvc.Get(ctx, "u1")
		if err != nil {
			t.Fatalf("Get() failed: %v", err)
		}
		if prog.IsModuleUnlocked("ghost") {
			t.Error("dangling unlocked module must be pruned")
		}
		if !prog.IsModuleUnlocked(m1.ID) {
			t.Error("first module must be unlocked")
		}
		// current falls back to the most advanced unlocked module
		if prog.Global.CurrentModule != m2.ID {
			t.Errorf("CurrentModule = %q, want %q", prog.Global.CurrentModule, m2.ID)
		}
		// entries exist for every catalog module; m2's seeded with its first quiz
		mp2 := prog.ModuleEntry(m2.ID)
		if mp2 == nil {
			t.Fatal("expected a synthesized entry for module 2")
		}
		if mp2.Status != progress.StatusUnlocked {
			t.Errorf("module 2 Status = %q, want %q", mp2.Status, progress.StatusUnlocked)
		}
		if q1 := quizzes[m2.ID][0]; mp2.CurrentQuiz != q1.ID {
			t.Errorf("module 2 CurrentQuiz = %q, want %q", mp2.CurrentQuiz, q1.ID)
		}
	})

	t.Run("idempotent", func(t *testing.T) {
		env := setup(t)
		env.seedCatalog(t, 2, 2)
		if _, err := env.progSvc.EnsureDefaultAccess(ctx, "u1"); err != nil {
			t.Fatalf("EnsureDefaultAccess() failed: %v", err)
		}

		if _, err := env.progSvc.RepairAll(ctx); err != nil {
			t.Fatalf("RepairAll() failed: %v", err)
		}
		report, err := env.progSvc.RepairAll(ctx)
		if err != nil {
			t.Fatalf("RepairAll() failed: %v", err)
		}
		if report.Repaired != 0 {
			t.Errorf("second run repaired %d record(s), want 0", report.Repaired)
		}
	})

	t.Run("module without quizzes stays at zero percent", func(t *testing.T) {
		env := setup(t)
		mods, _ := env.seedCatalog(t, 1, 0)
		if _, err := env.progSvc.EnsureDefaultAccess(ctx, "u1"); err != nil {
			t.Fatalf("EnsureDefaultAccess() failed: %v", err)
		}

		if _, err := env.progSvc.RepairAll(ctx); err != nil {
			t.Fatalf("RepairAll() failed: %v", err)
		}
		prog, err := env.progSvc.Get(ctx, "u1")
		if err != nil {
			t.Fatalf("Get() failed: %v", err)
		}
		mp := prog.ModuleEntry(mods[0].ID)
		if mp == nil {
			t.Fatal("expected an entry for the quizless module")
		}
		if mp.CompletionPercentage != 0 {
			t.Errorf("CompletionPercentage = %d, want 0", mp.CompletionPercentage)
		}
		if mp.CurrentQuiz != "" {
			t.Errorf("CurrentQuiz = %q, want empty", mp.CurrentQuiz)
		}

		// a quizless module is a steady state, not something to re-repair
		report, err := env.progSvc.RepairAll(ctx)
		if err != nil {
			t.Fatalf("RepairAll() failed: %v", err)
		}
		if report.Repaired != 0 {
			t.Errorf("second run repaired %d record(s), want 0", report.Repaired)
		}
	})

	t.Run("scoped to given users", func(t *testing.T) {
		env := setup(t)
		env.seedCatalog(t, 1, 1)
		for _, uid := range []string{"u1", "u2"} {
			if _, err := env.progSvc.EnsureDefaultAccess(ctx, uid); err != nil {
				t.Fatalf("EnsureDefaultAccess() failed: %v", err)
			}
		}

		report, err := env.progSvc.RepairAll(ctx, "u2")
		if err != nil {
			t.Fatalf("RepairAll() failed: %v", err)
		}
		if report.Scanned != 1 {
			t.Errorf("Scanned = %d, want 1", report.Scanned)
		}
	})

	t.Run("empty catalog clears the current module", func(t *testing.T) {
		env := setup(t)
		mods, _ := env.seedCatalog(t, 1, 1)
		if _, err := env.progSvc.EnsureDefaultAccess(ctx, "u1"); err != nil {
			t.Fatalf("EnsureDefaultAccess() failed: %v", err)
		}

		if _, err := env.catSvc.DeleteModule(ctx, mods[0].ID); err != nil {
			t.Fatalf("DeleteModule() failed: %v", err)
		}
		if _, err := env.progSvc.RepairAll(ctx); err != nil {
			t.Fatalf("RepairAll() failed: %v", err)
		}

		prog, err := env.progSvc.Get(ctx, "u1")
		if err != nil {
			t.Fatalf("Get() failed: %v", err)
		}
		if prog.Global.CurrentModule != "" {
			t.Errorf("CurrentModule = %q, want empty", prog.Global.CurrentModule)
		}
		if len(prog.Global.UnlockedModules) != 0 {
			t.Errorf("UnlockedModules = %v, want none", prog.Global.UnlockedModules)
		}
	})
}

// saveRaw persists a record through the repository, bypassing service rules.
func saveRaw(ctx context.Context, env *testEnv, prog progress.Progress) error {
	_, err := env.progRepo.UpdateProgress(ctx, prog)
	return err
}
