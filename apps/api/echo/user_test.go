package echoapi_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/nyxmentor/portal/core"
	"github.com/nyxmentor/portal/core/user"
	testutil "github.com/nyxmentor/portal/tests"
)

func TestRegister(t *testing.T) {
	f := setup(t)
	testutil.CreateUser(t, f.usrRepo, "Ada", "ada.cap@adviser.com", core.RoleAdvisor)

	newUser := func(name, email, pwd string) []byte {
		return marchallObj(t, map[string]string{
			"name": name, "email": email, "password": pwd, "securityCode": "Code#2024",
		})
	}
	f.run(t, []httpTest{
		{
			name:     "email already registered",
			method:   http.MethodPost,
			path:     "/api/users/register",
			body:     newUser("Ada Again", "ada@adviser.com", testutil.Password),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"email": user.ErrUserExists.Error()}),
		},
		{
			name:     "unknown domain",
			method:   http.MethodPost,
			path:     "/api/users/register",
			body:     newUser("Eve", "eve@gmail.com", testutil.Password),
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "weak password",
			method:   http.MethodPost,
			path:     "/api/users/register",
			body:     newUser("Eve", "eve@adviser.com", "password"),
			wantCode: http.StatusBadRequest,
		},
	})

	rec := f.serve(http.MethodPost, "/api/users/register", "", newUser("Grace Hopper", "Grace@ManagerBR.com", testutil.Password))
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: code = %d; body %s", rec.Code, rec.Body.String())
	}
	var resp struct{ Token string }
	decode(t, rec, &resp)
	if resp.Token == "" {
		t.Fatal("register: empty token")
	}

	rec = f.serve(http.MethodGet, "/api/users/profile", resp.Token)
	var usr user.User
	decode(t, rec, &usr)
	if usr.Email != "grace.cap@managerbr.com" || usr.Role != core.RoleBranchManager {
		t.Errorf("registered user = %s (%s); want grace.cap@managerbr.com (%s)", usr.Email, usr.Role, core.RoleBranchManager)
	}
}

func TestLogin(t *testing.T) {
	f := setup(t)
	ada := testutil.CreateUser(t, f.usrRepo, "Ada", "ada.cap@adviser.com", core.RoleAdvisor)

	f.run(t, []httpTest{
		{
			name:     "wrong password",
			method:   http.MethodPost,
			path:     "/api/users/login",
			body:     marchallObj(t, map[string]string{"email": "ada@adviser.com", "password": "Wrong#123"}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "invalid credentials"}),
		},
		{
			name:     "unknown user",
			method:   http.MethodPost,
			path:     "/api/users/login",
			body:     marchallObj(t, map[string]string{"email": "bob@adviser.com", "password": testutil.Password}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "invalid credentials"}),
		},
		{
			name:     "missing password",
			method:   http.MethodPost,
			path:     "/api/users/login",
			body:     marchallObj(t, map[string]string{"email": "ada@adviser.com"}),
			wantCode: http.StatusBadRequest,
		},
	})

	// plain and institutional emails both log in
	for _, email := range []string{"ada@adviser.com", "ADA.cap@adviser.com"} {
		rec := f.serve(http.MethodPost, "/api/users/login", "", marchallObj(t, map[string]string{"email": email, "password": testutil.Password}))
		if rec.Code != http.StatusOK {
			t.Fatalf("login %s: code = %d; body %s", email, rec.Code, rec.Body.String())
		}
		var resp struct {
			Token  string
			Role   string
			UserID string
		}
		decode(t, rec, &resp)
		if resp.Token == "" || resp.Role != core.RoleAdvisor || resp.UserID != ada.ID {
			t.Errorf("login %s = %+v", email, resp)
		}
	}

	usr, err := f.usrRepo.GetUser(context.Background(), user.GetFilter{ID: ada.ID})
	if err != nil {
		t.Fatalf("GetUser(): %v", err)
	}
	if usr.LastLogin.IsZero() {
		t.Error("lastLogin not set")
	}
}

func TestTokenRefresh(t *testing.T) {
	f := setup(t)
	ada := testutil.CreateUser(t, f.usrRepo, "Ada", "ada.cap@adviser.com", core.RoleAdvisor)

	f.run(t, []httpTest{
		{
			name:     "missing token",
			method:   http.MethodPost,
			path:     "/api/users/token-refresh",
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errMissingToken),
		},
		{
			name:     "malformed token",
			method:   http.MethodPost,
			path:     "/api/users/token-refresh",
			token:    "not-a-jwt",
			wantCode: http.StatusUnauthorized,
		},
	})

	rec := f.serve(http.MethodPost, "/api/users/token-refresh", getToken(t, f.conf, ada))
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh: code = %d; body %s", rec.Code, rec.Body.String())
	}
	var resp struct{ Token string }
	decode(t, rec, &resp)
	if rec = f.serve(http.MethodGet, "/api/users/profile", resp.Token); rec.Code != http.StatusOK {
		t.Errorf("refreshed token rejected: %d", rec.Code)
	}
}

func TestPasswordReset(t *testing.T) {
	f := setup(t)
	testutil.CreateUser(t, f.usrRepo, "Ada", "ada.cap@adviser.com", core.RoleAdvisor)

	f.run(t, []httpTest{
		{
			name:     "wrong security code",
			method:   http.MethodPost,
			path:     "/api/users/forgot-password",
			body:     marchallObj(t, map[string]string{"email": "ada@adviser.com", "securityCode": "Nope#2024"}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: user.ErrInvalidSecurityCode.Error()}),
		},
		{
			name:     "unknown user",
			method:   http.MethodPost,
			path:     "/api/users/forgot-password",
			body:     marchallObj(t, map[string]string{"email": "bob@adviser.com", "securityCode": "Code#2024"}),
			wantCode: http.StatusNotFound,
		},
		{
			name:     "bad reset token",
			method:   http.MethodPost,
			path:     "/api/users/reset-password",
			body:     marchallObj(t, map[string]string{"uid": "abc", "token": "abc-def", "newPassword": "Nw9$Lp2@Qr"}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: user.ErrInvalidResetToken.Error()}),
		},
	})

	rec := f.serve(http.MethodPost, "/api/users/forgot-password", "",
		marchallObj(t, map[string]string{"email": "ada@adviser.com", "securityCode": "Code#2024"}))
	if rec.Code != http.StatusOK {
		t.Fatalf("forgot-password: code = %d; body %s", rec.Code, rec.Body.String())
	}
	var reset struct {
		UID        string
		ResetToken string
	}
	decode(t, rec, &reset)

	newPwd := "Nw9$Lp2@Qr"
	body := marchallObj(t, map[string]string{"uid": reset.UID, "token": reset.ResetToken, "newPassword": newPwd})
	rec = f.serve(http.MethodPost, "/api/users/reset-password", "", body)
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusOK,
		wantData: marchallObj(t, map[string]string{"message": "Password has been reset with the new password."}),
	}, rec)

	// the token is bound to the old password hash
	rec = f.serve(http.MethodPost, "/api/users/reset-password", "", body)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("reused reset token: code = %d, want 400", rec.Code)
	}

	rec = f.serve(http.MethodPost, "/api/users/login", "", marchallObj(t, map[string]string{"email": "ada@adviser.com", "password": newPwd}))
	if rec.Code != http.StatusOK {
		t.Errorf("login with new password: code = %d", rec.Code)
	}
}

func TestProfile(t *testing.T) {
	f := setup(t)
	ada := testutil.CreateUser(t, f.usrRepo, "Ada", "ada.cap@adviser.com", core.RoleAdvisor)
	testutil.CreateUser(t, f.usrRepo, "Bob", "bob.cap@adviser.com", core.RoleAdvisor)
	token := getToken(t, f.conf, ada)

	f.run(t, []httpTest{
		{
			name:     "missing token",
			path:     "/api/users/profile",
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errMissingToken),
		},
		{
			name:     "email of another role",
			method:   http.MethodPut,
			path:     "/api/users/profile",
			token:    token,
			body:     marchallObj(t, map[string]string{"email": "ada@managerzn.com"}),
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "email taken",
			method:   http.MethodPut,
			path:     "/api/users/profile",
			token:    token,
			body:     marchallObj(t, map[string]string{"email": "bob@adviser.com"}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"email": user.ErrUserExists.Error()}),
		},
		{
			name:     "same password",
			method:   http.MethodPut,
			path:     "/api/users/profile",
			token:    token,
			body:     marchallObj(t, map[string]string{"newPassword": testutil.Password}),
			wantCode: http.StatusBadRequest,
		},
	})

	rec := f.serve(http.MethodGet, "/api/users/profile", token)
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallObj(t, ada)}, rec)

	rec = f.serve(http.MethodPut, "/api/users/profile", token, marchallObj(t, map[string]string{"name": "Ada Lovelace", "email": "ada.l@adviser.com"}))
	var usr user.User
	decode(t, rec, &usr)
	if rec.Code != http.StatusOK || usr.Name != "Ada Lovelace" || usr.Email != "ada.l.cap@adviser.com" {
		t.Errorf("update profile: code = %d; user %+v", rec.Code, usr)
	}

	rec = f.serve(http.MethodDelete, "/api/users/profile", token)
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusOK,
		wantData: marchallObj(t, map[string]string{"message": "Your account has been deleted."}),
	}, rec)

	// the token outlives the account
	if rec = f.serve(http.MethodGet, "/api/users/profile", token); rec.Code != http.StatusUnauthorized {
		t.Errorf("deleted account: code = %d, want 401", rec.Code)
	}
}

func TestAdminUserEndpoints(t *testing.T) {
	f := setup(t)
	admin := testutil.CreateUser(t, f.usrRepo, "Hana", "hana.cap@adminrh.com", core.RoleAdmin)
	ada := testutil.CreateUser(t, f.usrRepo, "Ada", "ada.cap@adviser.com", core.RoleAdvisor)
	zoe := testutil.CreateUser(t, f.usrRepo, "Zoe", "zoe.cap@managerzn.com", core.RoleZoneManager)
	adminToken := getToken(t, f.conf, admin)
	adaToken := getToken(t, f.conf, ada)

	f.run(t, []httpTest{
		{
			name:     "list as staff",
			path:     "/api/users/list",
			token:    adaToken,
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name:     "retrieve as staff",
			path:     "/api/users/list/" + zoe.ID,
			token:    adaToken,
			wantCode: http.StatusForbidden,
		},
		{
			name:     "retrieve unknown",
			path:     "/api/users/list/unknown",
			token:    adminToken,
			wantCode: http.StatusNotFound,
		},
		{
			name:     "retrieve",
			path:     "/api/users/list/" + zoe.ID,
			token:    adminToken,
			wantCode: http.StatusOK,
			wantData: marchallObj(t, zoe),
		},
		{
			name:     "update self",
			method:   http.MethodPut,
			path:     "/api/users/update/" + admin.ID,
			token:    adminToken,
			body:     marchallObj(t, map[string]string{"email": "hana@adminrh.com", "role": core.RoleAdmin}),
			wantCode: http.StatusForbidden,
		},
		{
			name:     "update with mismatching role",
			method:   http.MethodPut,
			path:     "/api/users/update/" + ada.ID,
			token:    adminToken,
			body:     marchallObj(t, map[string]string{"email": "ada@adviser.com", "role": core.RoleZoneManager}),
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "delete self",
			method:   http.MethodDelete,
			path:     "/api/users/delete/" + admin.ID,
			token:    adminToken,
			wantCode: http.StatusForbidden,
		},
		{
			name:     "delete as staff",
			method:   http.MethodDelete,
			path:     "/api/users/delete/" + zoe.ID,
			token:    adaToken,
			wantCode: http.StatusForbidden,
		},
	})

	listIDs := func(path string) []string {
		rec := f.serve(http.MethodGet, path, adminToken)
		if rec.Code != http.StatusOK {
			t.Fatalf("GET %s: code = %d", path, rec.Code)
		}
		var users []user.User
		decode(t, rec, &users)
		ids := make([]string, len(users))
		for i, u := range users {
			ids[i] = u.ID
		}
		return ids
	}
	if got := listIDs("/api/users/list"); len(got) != 2 || got[0] != ada.ID || got[1] != zoe.ID {
		t.Errorf("list = %v; want [%s %s]", got, ada.ID, zoe.ID)
	}
	if got := listIDs("/api/users/list?role=" + core.RoleZoneManager); len(got) != 1 || got[0] != zoe.ID {
		t.Errorf("list by role = %v; want [%s]", got, zoe.ID)
	}
	if got := listIDs("/api/users/list?search=ada"); len(got) != 1 || got[0] != ada.ID {
		t.Errorf("search = %v; want [%s]", got, ada.ID)
	}

	rec := f.serve(http.MethodPut, "/api/users/update/"+ada.ID, adminToken,
		marchallObj(t, map[string]string{"name": "Ada B", "email": "ada@managerbr.com", "role": core.RoleBranchManager}))
	var usr user.User
	decode(t, rec, &usr)
	if rec.Code != http.StatusOK || usr.Role != core.RoleBranchManager || usr.Email != "ada.cap@managerbr.com" {
		t.Errorf("update: code = %d; user %+v", rec.Code, usr)
	}

	rec = f.serve(http.MethodDelete, "/api/users/delete/"+zoe.ID, adminToken)
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusOK,
		wantData: marchallObj(t, map[string]string{"message": "User deleted successfully."}),
	}, rec)
	if rec = f.serve(http.MethodGet, "/api/users/list/"+zoe.ID, adminToken); rec.Code != http.StatusNotFound {
		t.Errorf("deleted user: code = %d, want 404", rec.Code)
	}
}
