package user_test

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/user"
	testutil "github.com/trezcool/elimu/tests"
)

func TestNewUserValidation(t *testing.T) {
	ctx := context.Background()
	env := setup(t)
	validate, translator := testutil.NewValidator()
	user.InitValidators(validate, translator)

	testutil.CreateUser(t, env.repo, "Taken", "takenuser", "taken@test.com", "", nil, true)

	tests := []struct {
		name     string
		nu       user.NewUser
		wantTags map[string]string // field -> failing tag
	}{
		{
			name: "ok",
			nu: user.NewUser{
				Name: "John Smith", Username: "johnsmith", Email: "john@test.com",
				Password: "LocalMemo#42", PasswordConfirm: "LocalMemo#42",
			},
		},
		{
			name:     "name is required",
			nu:       user.NewUser{Username: "johnsmith", Password: "LocalMemo#42", PasswordConfirm: "LocalMemo#42"},
			wantTags: map[string]string{"name": "required"},
		},
		{
			name:     "one of username or email is required",
			nu:       user.NewUser{Name: "John Smith", Password: "LocalMemo#42", PasswordConfirm: "LocalMemo#42"},
			wantTags: map[string]string{"username": "username_or_email", "email": "username_or_email"},
		},
		{
			name: "invalid email",
			nu: user.NewUser{
				Name: "John Smith", Email: "not-an-email",
				Password: "LocalMemo#42", PasswordConfirm: "LocalMemo#42",
			},
			wantTags: map[string]string{"email": "email"},
		},
		{
			name: "username too short",
			nu: user.NewUser{
				Name: "John Smith", Username: "john",
				Password: "LocalMemo#42", PasswordConfirm: "LocalMemo#42",
			},
			wantTags: map[string]string{"username": "min"},
		},
		{
			name: "unknown role",
			nu: user.NewUser{
				Name: "John Smith", Username: "johnsmith", Roles: []string{"pilot:"},
				Password: "LocalMemo#42", PasswordConfirm: "LocalMemo#42",
			},
			wantTags: map[string]string{"roles": "allroles"},
		},
		{
			name: "password confirmation mismatch",
			nu: user.NewUser{
				Name: "John Smith", Username: "johnsmith",
				Password: "LocalMemo#42", PasswordConfirm: "Other#Memo42",
			},
			wantTags: map[string]string{"password_confirm": "eqfield"},
		},
		{
			name: "password too short",
			nu: user.NewUser{
				Name: "John Smith", Username: "johnsmith",
				Password: "Lm#42", PasswordConfirm: "Lm#42",
			},
			wantTags: map[string]string{"password": "pwdminlen"},
		},
		{
			name: "password cannot contain whitespace",
			nu: user.NewUser{
				Name: "John Smith", Username: "johnsmith",
				Password: "Local Memo#42", PasswordConfirm: "Local Memo#42",
			},
			wantTags: map[string]string{"password": "pwdnospace"},
		},
		{
			name: "password cannot be all numeric",
			nu: user.NewUser{
				Name: "John Smith", Username: "johnsmith",
				Password: "4217395086", PasswordConfirm: "4217395086",
			},
			wantTags: map[string]string{"password": "pwdnotallnum"},
		},
		{
			name: "password too similar to username",
			nu: user.NewUser{
				Name: "John Smith", Username: "johnsmith",
				Password: "johnsmith1", PasswordConfirm: "johnsmith1",
			},
			wantTags: map[string]string{"password": "pwdtoosim"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.nu.Validate(ctx, validate, env.svc)
			if len(tt.wantTags) == 0 {
				if err != nil {
					t.Fatalf("Validate() failed: %v", err)
				}
				return
			}
			vErrs, ok := err.(validator.ValidationErrors)
			if !ok {
				t.Fatalf("Validate() error = %v (%T), want validator.ValidationErrors", err, err)
			}
			got := make(map[string]string, len(vErrs))
			for _, fe := range vErrs {
				got[fe.Field()] = fe.Tag()
			}
			for field, tag := range tt.wantTags {
				if got[field] != tag {
					t.Errorf("field %q failed tag = %q, want %q (all: %v)", field, got[field], tag, got)
				}
			}
		})
	}
}

func TestNewUserValidation_uniqueness(t *testing.T) {
	ctx := context.Background()
	env := setup(t)
	validate, translator := testutil.NewValidator()
	user.InitValidators(validate, translator)

	testutil.CreateUser(t, env.repo, "Taken", "takenuser", "taken@test.com", "", nil, true)

	nu := user.NewUser{
		Name: "John Smith", Username: "takenuser",
		Password: "LocalMemo#42", PasswordConfirm: "LocalMemo#42",
	}
	err := nu.Validate(ctx, validate, env.svc)
	vErr, ok := err.(*core.ValidationError)
	if !ok {
		t.Fatalf("Validate() error = %v (%T), want *core.ValidationError", err, err)
	}
	if len(vErr.Fields) != 2 {
		t.Errorf("Fields = %+v, want username and email errors", vErr.Fields)
	}
}

func TestUpdateUserValidation_excludesSelf(t *testing.T) {
	ctx := context.Background()
	env := setup(t)
	validate, translator := testutil.NewValidator()
	user.InitValidators(validate, translator)

	usr := testutil.CreateUser(t, env.repo, "John Smith", "johnsmith", "john@test.com", "", nil, true)

	// keeping one's own username must not trip the uniqueness check
	uu := user.UpdateUser{Name: "Johnny Smith", Username: usr.Username, Email: usr.Email}
	if err := uu.Validate(ctx, validate, env.svc, usr); err != nil {
		t.Fatalf("Validate() failed: %v", err)
	}
}
