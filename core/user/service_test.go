package user_test

import (
	"context"
	"testing"

	"github.com/trezcool/elimu/core/user"
	dummydb "github.com/trezcool/elimu/storage/database/dummy"
	testutil "github.com/trezcool/elimu/tests"
)

type testEnv struct {
	repo       user.Repository
	svc        *user.Service
	mailerMock *testutil.EmailServiceMock
	seededIDs  []string
}

func setup(t *testing.T) *testEnv {
	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open() failed: %v", err)
	}
	env := &testEnv{
		repo:       dummydb.NewUserRepository(db),
		mailerMock: testutil.NewEmailServiceMock(),
	}
	seeder := func(ctx context.Context, userID string) error {
		env.seededIDs = append(env.seededIDs, userID)
		return nil
	}
	env.svc = user.NewService(env.repo, env.mailerMock, seeder, testutil.NewLogger(t))
	return env
}

func TestCreate(t *testing.T) {
	ctx := context.Background()
	env := setup(t)

	usr, err := env.svc.Create(ctx, user.NewUser{
		Name:     "John Smith",
		Username: "johnsmith",
		Email:    "john@test.com",
		Password: "LocalMemo#42",
		Roles:    []string{user.RoleStudent},
	})
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	if usr.ID == "" {
		t.Error("Create() must assign an ID")
	}
	if usr.IsActive == nil || !*usr.IsActive {
		t.Error("new users must be active")
	}
	if err = usr.CheckPassword("LocalMemo#42"); err != nil {
		t.Errorf("CheckPassword() failed: %v", err)
	}

	// default progress is seeded for the new account
	if len(env.seededIDs) != 1 || env.seededIDs[0] != usr.ID {
		t.Errorf("seeded IDs = %v, want [%s]", env.seededIDs, usr.ID)
	}

	// welcome email
	if len(env.mailerMock.SentMessages) != 1 {
		t.Fatalf("got %d emails, want 1", len(env.mailerMock.SentMessages))
	}
	msg := env.mailerMock.SentMessages[0]
	if len(msg.To) != 1 || msg.To[0].Address != usr.Email {
		t.Errorf("email To = %v, want %s", msg.To, usr.Email)
	}
	if msg.TemplateName != "welcome" {
		t.Errorf("TemplateName = %q, want %q", msg.TemplateName, "welcome")
	}
}

func TestCreate_noEmailNoWelcome(t *testing.T) {
	ctx := context.Background()
	env := setup(t)

	if _, err := env.svc.Create(ctx, user.NewUser{
		Name:     "John Smith",
		Username: "johnsmith",
		Password: "LocalMemo#42",
	}); err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	if n := len(env.mailerMock.SentMessages); n != 0 {
		t.Errorf("got %d emails, want 0", n)
	}
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	env := setup(t)

	usr := testutil.CreateUser(t, env.repo, "John Smith", "johnsmith", "john@test.com", "LocalMemo#42", nil, true)

	inactive := false
	updated, err := env.svc.Update(ctx, usr.ID, user.UpdateUser{
		Name:     "Johnny Smith",
		Username: "johnnysmith",
		Email:    usr.Email,
		Roles:    []string{user.RoleTeacher},
		IsActive: &inactive,
		Password: "Rewired#Memo9",
	})
	if err != nil {
		t.Fatalf("Update() failed: %v", err)
	}
	if updated.Name != "Johnny Smith" || updated.Username != "johnnysmith" {
		t.Errorf("updated = %+v", updated)
	}
	if updated.IsActive == nil || *updated.IsActive {
		t.Error("user must be deactivated")
	}
	if !updated.IsTeacher() {
		t.Errorf("Roles = %v, want teacher", updated.Roles)
	}
	if err = updated.CheckPassword("Rewired#Memo9"); err != nil {
		t.Errorf("CheckPassword() failed: %v", err)
	}
	if err = updated.CheckPassword("LocalMemo#42"); err == nil {
		t.Error("old password must no longer match")
	}
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	env := setup(t)

	u1 := testutil.CreateUser(t, env.repo, "U1", "username1", "", "LocalMemo#42", nil, true)
	u2 := testutil.CreateUser(t, env.repo, "U2", "username2", "", "LocalMemo#42", nil, true)

	n, err := env.svc.Delete(ctx, u1.ID, u2.ID, "missing")
	if err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	if n != 2 {
		t.Errorf("Delete() = %d, want 2", n)
	}
	if _, err = env.svc.GetByID(ctx, u1.ID); err != user.ErrNotFound {
		t.Errorf("GetByID() error = %v, want %v", err, user.ErrNotFound)
	}
}

func TestQuery(t *testing.T) {
	ctx := context.Background()
	env := setup(t)

	testutil.CreateUser(t, env.repo, "Jane Doe", "janedoe", "jane@test.com", "", []string{user.RoleTeacher}, true)
	testutil.CreateUser(t, env.repo, "John Smith", "johnsmith", "john@test.com", "", []string{user.RoleStudent}, true)
	testutil.CreateUser(t, env.repo, "Mark Down", "markdown", "mark@test.com", "", []string{user.RoleStudent}, false)

	tests := []struct {
		name      string
		filter    *user.QueryFilter
		wantNames []string
	}{
		{name: "all", filter: nil, wantNames: []string{"Jane Doe", "John Smith", "Mark Down"}},
		{name: "search", filter: &user.QueryFilter{Search: "jane"}, wantNames: []string{"Jane Doe"}},
		{name: "role", filter: &user.QueryFilter{Role: user.RoleStudent}, wantNames: []string{"John Smith", "Mark Down"}},
		{name: "active", filter: &user.QueryFilter{IsActive: boolPtr(true)}, wantNames: []string{"Jane Doe", "John Smith"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users, err := env.svc.Query(ctx, tt.filter)
			if err != nil {
				t.Fatalf("Query() failed: %v", err)
			}
			if len(users) != len(tt.wantNames) {
				t.Fatalf("got %d users, want %d", len(users), len(tt.wantNames))
			}
			for i, name := range tt.wantNames {
				if users[i].Name != name {
					t.Errorf("users[%d].Name = %q, want %q", i, users[i].Name, name)
				}
			}
		})
	}
}

func boolPtr(b bool) *bool { return &b }
