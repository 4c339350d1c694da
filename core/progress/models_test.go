package progress_test

import (
	"testing"

	"github.com/trezcool/elimu/core/progress"
)

func TestIsQuizUnlockedByOrder(t *testing.T) {
	// nothing stored yet: order 1 passes, everything else is gated
	var prog progress.Progress
	if !prog.IsQuizUnlockedByOrder("q1", 1) {
		t.Error("an order-1 quiz must be unlocked on an empty record")
	}
	if prog.IsQuizUnlockedByOrder("q2", 2) {
		t.Error("an order-2 quiz must stay locked without stored state")
	}

	prog.Modules = append(prog.Modules, progress.ModuleProgress{
		ModuleID:        "m1",
		Status:          progress.StatusUnlocked,
		UnlockedQuizzes: []string{"q2"},
	})
	if !prog.IsQuizUnlockedByOrder("q2", 2) {
		t.Error("a stored unlock must grant access")
	}
	if prog.IsQuizUnlockedByOrder("q3", 3) {
		t.Error("only stored quizzes are unlocked past order 1")
	}
}
