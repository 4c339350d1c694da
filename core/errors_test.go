package core_test

import (
	"testing"

	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core"
)

func TestIsShutdown(t *testing.T) {
	err := core.NewShutdownError("corrupt stored state")
	if !core.IsShutdown(err) {
		t.Error("IsShutdown() = false, want true")
	}
	if !core.IsShutdown(errors.Wrap(err, "loading record")) {
		t.Error("wrapping must not hide a shutdown error")
	}
	if core.IsShutdown(errors.New("nope")) {
		t.Error("IsShutdown() = true for a plain error")
	}
}
