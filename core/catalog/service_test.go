package catalog_test

import (
	"context"
	"testing"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/catalog"
	dummydb "github.com/trezcool/elimu/storage/database/dummy"
	testutil "github.com/trezcool/elimu/tests"
)

func setup(t *testing.T) (*catalog.Service, catalog.Repository) {
	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open() failed: %v", err)
	}
	repo := dummydb.NewCatalogRepository(db)
	return catalog.NewService(repo, testutil.NewLogger(t)), repo
}

func moduleOrders(t *testing.T, svc *catalog.Service) map[string]int {
	t.Helper()
	mods, err := svc.FindModulesOrdered(context.Background(), true)
	if err != nil {
		t.Fatalf("FindModulesOrdered() failed: %v", err)
	}
	orders := make(map[string]int, len(mods))
	for i, mod := range mods {
		if mod.Order != i+1 {
			t.Errorf("orders not dense: position %d has order %d", i+1, mod.Order)
		}
		orders[mod.ID] = mod.Order
	}
	return orders
}

func TestCreateModule_appendsAtEnd(t *testing.T) {
	ctx := context.Background()
	svc, _ := setup(t)

	for i := 0; i < 3; i++ {
		mod, err := svc.CreateModule(ctx, catalog.NewModule{Name: "Mod", Section: "general"})
		if err != nil {
			t.Fatalf("CreateModule() failed: %v", err)
		}
		if mod.Order != i+1 {
			t.Errorf("Order = %d, want %d", mod.Order, i+1)
		}
	}
	moduleOrders(t, svc)
}

func TestDeleteModule_closesGap(t *testing.T) {
	ctx := context.Background()
	svc, repo := setup(t)

	m1 := testutil.CreateModule(t, repo, "M1", "general", 1)
	m2 := testutil.CreateModule(t, repo, "M2", "general", 2)
	m3 := testutil.CreateModule(t, repo, "M3", "general", 3)

	deleted, err := svc.DeleteModule(ctx, m2.ID)
	if err != nil {
		t.Fatalf("DeleteModule() failed: %v", err)
	}
	if deleted.ID != m2.ID || deleted.Order != 2 {
		t.Errorf("deleted = %+v, want module %s at order 2", deleted, m2.ID)
	}

	orders := moduleOrders(t, svc)
	if orders[m1.ID] != 1 || orders[m3.ID] != 2 {
		t.Errorf("orders = %v, want {%s:1 %s:2}", orders, m1.ID, m3.ID)
	}
}

func TestDeleteModule_cascadesQuizzes(t *testing.T) {
	ctx := context.Background()
	svc, repo := setup(t)

	mod := testutil.CreateModule(t, repo, "M1", "general", 1)
	qz := testutil.CreateQuiz(t, repo, mod.ID, "Q1", 1, 70)

	if _, err := svc.DeleteModule(ctx, mod.ID); err != nil {
		t.Fatalf("DeleteModule() failed: %v", err)
	}
	if _, err := svc.GetQuiz(ctx, qz.ID); err != catalog.ErrQuizNotFound {
		t.Errorf("GetQuiz() error = %v, want %v", err, catalog.ErrQuizNotFound)
	}
}

func TestMoveModule(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		move      int // index of the module to move (0-based)
		to        int
		wantOrder []int // resulting order of m1,m2,m3
	}{
		{name: "forward", move: 0, to: 3, wantOrder: []int{3, 1, 2}},
		{name: "backward", move: 2, to: 1, wantOrder: []int{2, 3, 1}},
		{name: "same position", move: 1, to: 2, wantOrder: []int{1, 2, 3}},
		{name: "clamped high", move: 0, to: 99, wantOrder: []int{3, 1, 2}},
		{name: "clamped low", move: 2, to: -5, wantOrder: []int{2, 3, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo := setup(t)
			mods := []catalog.Module{
				testutil.CreateModule(t, repo, "M1", "general", 1),
				testutil.CreateModule(t, repo, "M2", "general", 2),
				testutil.CreateModule(t, repo, "M3", "general", 3),
			}

			if _, err := svc.MoveModule(ctx, mods[tt.move].ID, tt.to); err != nil {
				t.Fatalf("MoveModule() failed: %v", err)
			}

			orders := moduleOrders(t, svc)
			for i, mod := range mods {
				if orders[mod.ID] != tt.wantOrder[i] {
					t.Errorf("module %d order = %d, want %d", i+1, orders[mod.ID], tt.wantOrder[i])
				}
			}
		})
	}
}

func TestNewModule_sectionValidation(t *testing.T) {
	ctx := context.Background()
	svc, _ := setup(t)
	validate, _ := testutil.NewValidator()

	nm := catalog.NewModule{Name: "Mod", Section: "astrology"}
	err := nm.Validate(ctx, validate, svc)
	if err == nil {
		t.Fatal("Validate() must reject an unknown section")
	}
	vErr, ok := err.(*core.ValidationError)
	if !ok {
		t.Fatalf("Validate() error = %T, want *core.ValidationError", err)
	}
	if len(vErr.Fields) != 1 || vErr.Fields[0].Field != "section" {
		t.Errorf("Fields = %+v, want a single section error", vErr.Fields)
	}

	nm.Section = "Sciences" // cleaned to lower case
	if err = nm.Validate(ctx, validate, svc); err != nil {
		t.Errorf("Validate() failed: %v", err)
	}
}

func TestQuizOrdering(t *testing.T) {
	ctx := context.Background()
	svc, repo := setup(t)

	mod := testutil.CreateModule(t, repo, "M1", "general", 1)
	other := testutil.CreateModule(t, repo, "M2", "general", 2)
	testutil.CreateQuiz(t, repo, other.ID, "Other", 1, 70)

	// orders are assigned per module
	var quizzes []catalog.Quiz
	for i := 0; i < 3; i++ {
		qz, err := svc.CreateQuiz(ctx, catalog.NewQuiz{ModuleID: mod.ID, Title: "Q"})
		if err != nil {
			t.Fatalf("CreateQuiz() failed: %v", err)
		}
		if qz.Order != i+1 {
			t.Errorf("Order = %d, want %d", qz.Order, i+1)
		}
		if qz.PassingScore != catalog.DefaultPassingScore {
			t.Errorf("PassingScore = %d, want %d", qz.PassingScore, catalog.DefaultPassingScore)
		}
		quizzes = append(quizzes, qz)
	}

	// deleting the middle quiz closes the gap
	if _, err := svc.DeleteQuiz(ctx, quizzes[1].ID); err != nil {
		t.Fatalf("DeleteQuiz() failed: %v", err)
	}
	remaining, err := svc.FindQuizzesByModule(ctx, mod.ID)
	if err != nil {
		t.Fatalf("FindQuizzesByModule() failed: %v", err)
	}
	if len(remaining) != 2 {
		t.Fatalf("got %d quizzes, want 2", len(remaining))
	}
	for i, qz := range remaining {
		if qz.Order != i+1 {
			t.Errorf("quiz %s order = %d, want %d", qz.ID, qz.Order, i+1)
		}
	}

	// the sibling module is untouched
	otherQzs, err := svc.FindQuizzesByModule(ctx, other.ID)
	if err != nil {
		t.Fatalf("FindQuizzesByModule() failed: %v", err)
	}
	if len(otherQzs) != 1 || otherQzs[0].Order != 1 {
		t.Errorf("sibling module quizzes = %+v, want a single order-1 quiz", otherQzs)
	}
}

func TestModuleQuizAggregation(t *testing.T) {
	ctx := context.Background()
	svc, repo := setup(t)

	mod := testutil.CreateModule(t, repo, "M1", "general", 1)
	q1 := testutil.CreateQuiz(t, repo, mod.ID, "Q1", 1, 70)
	q2 := testutil.CreateQuiz(t, repo, mod.ID, "Q2", 2, 70)

	got, err := svc.GetModule(ctx, mod.ID)
	if err != nil {
		t.Fatalf("GetModule() failed: %v", err)
	}
	if got.TotalQuizzes() != 2 {
		t.Fatalf("TotalQuizzes() = %d, want 2", got.TotalQuizzes())
	}
	if got.Quizzes[0] != q1.ID || got.Quizzes[1] != q2.ID {
		t.Errorf("Quizzes = %v, want [%s %s]", got.Quizzes, q1.ID, q2.ID)
	}
}
