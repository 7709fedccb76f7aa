package user

import (
	"testing"
	"time"
)

func TestMakeVerifyToken(t *testing.T) {
	gen := newTokenGenerator("secret", 15*time.Minute)

	now := time.Now()
	usr := User{
		ID:        "7b0d6e1c-6f0c-4a53-9c57-0c3f7d0b9a11",
		Name:      "T",
		Email:     "t.cap@adviser.com",
		Role:      "advisor",
		CreatedAt: now,
		UpdatedAt: now,
		LastLogin: now,
	}
	_ = usr.SetPassword("pwd")

	validToken, err := gen.makeToken(usr)
	if err != nil {
		t.Fatalf("makeToken(): %v", err)
	}

	// generate an expired token
	late := gen.timeout + time.Minute
	gen.now = func() time.Time { return time.Now().Add(-late) }
	expiredToken, err := gen.makeToken(usr)
	if err != nil {
		t.Fatalf("makeToken(): %v", err)
	}
	gen.now = time.Now // reset

	// a token made before a password change is no longer valid
	changedUsr := usr
	_ = changedUsr.SetPassword("another")

	tests := []struct {
		name    string
		usr     User
		token   string
		wantErr error
	}{
		{name: "no token", usr: usr, wantErr: errInvalidToken},
		{name: "invalid parts len", usr: usr, token: "lmaooolol", wantErr: errInvalidToken},
		{name: "invalid base32", usr: usr, token: "hahaha-sigsig-sig", wantErr: errInvalidToken},
		{name: "invalid timestamp", usr: usr, token: "NRXWY-sigsig-sig", wantErr: errInvalidToken},
		{name: "invalid token", usr: usr, token: "HE4TS-sigsig-sig", wantErr: errInvalidToken},
		{name: "expired token", usr: usr, token: expiredToken, wantErr: errTokenExpired},
		{name: "password changed", usr: changedUsr, token: validToken, wantErr: errInvalidToken},
		{name: "valid token", usr: usr, token: validToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := gen.verifyToken(tt.usr, tt.token); err != tt.wantErr {
				t.Errorf("verifyToken() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEncodeDecodeUID(t *testing.T) {
	usr := User{ID: "7b0d6e1c-6f0c-4a53-9c57-0c3f7d0b9a11"}
	id, err := DecodeUID(EncodeUID(usr))
	if err != nil {
		t.Fatalf("DecodeUID(): %v", err)
	}
	if id != usr.ID {
		t.Errorf("DecodeUID() = %s, want %s", id, usr.ID)
	}
	if _, err := DecodeUID("%%%"); err == nil {
		t.Error("DecodeUID() expected error on invalid input")
	}
}
