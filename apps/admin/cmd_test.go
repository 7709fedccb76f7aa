package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun/migrate"

	"github.com/nyxmentor/portal/core"
	"github.com/nyxmentor/portal/core/evaluation"
	"github.com/nyxmentor/portal/core/question"
	"github.com/nyxmentor/portal/core/user"
	"github.com/nyxmentor/portal/storage/cache"
	inmemdb "github.com/nyxmentor/portal/storage/database/inmem"
	testutil "github.com/nyxmentor/portal/tests"
)

type fakeMigrations struct {
	calls []string
	err   error
}

func (m *fakeMigrations) Up(context.Context) (*migrate.MigrationGroup, error) {
	m.calls = append(m.calls, "up")
	return &migrate.MigrationGroup{ID: 1, Migrations: migrate.MigrationSlice{{Name: "20240101000000"}}}, m.err
}

func (m *fakeMigrations) Down(context.Context) (*migrate.MigrationGroup, error) {
	m.calls = append(m.calls, "down")
	return &migrate.MigrationGroup{}, m.err
}

func (m *fakeMigrations) Status(context.Context) (migrate.MigrationSlice, error) {
	m.calls = append(m.calls, "status")
	return migrate.MigrationSlice{{ID: 1, Name: "20240101000000", GroupID: 1}, {Name: "20240301000000"}}, m.err
}

type fixture struct {
	cli        *commandLine
	out        *bytes.Buffer
	migrations *fakeMigrations
	usrRepo    user.Repository
	qRepo      question.Repository
	evalRepo   evaluation.Repository
}

func setup(t *testing.T) *fixture {
	db := inmemdb.NewDB()
	f := &fixture{
		out:        new(bytes.Buffer),
		migrations: new(fakeMigrations),
		usrRepo:    inmemdb.NewUserRepository(db),
		qRepo:      inmemdb.NewQuestionRepository(db),
		evalRepo:   inmemdb.NewEvaluationRepository(db),
	}
	f.cli = newCommandLine(f.migrations, f.usrRepo, question.NewService(f.qRepo), f.evalRepo)
	f.cli.out = f.out
	return f
}

// typing feeds the prompts with the given secrets, in order.
func typing(t *testing.T, secrets ...string) {
	orig := readPasswordFunc
	t.Cleanup(func() { readPasswordFunc = orig })
	readPasswordFunc = func(int) ([]byte, error) {
		if len(secrets) == 0 {
			return nil, nil
		}
		s := secrets[0]
		secrets = secrets[1:]
		return []byte(s), nil
	}
}

type cliTest struct {
	name       string
	args       []string // without program name
	secrets    []string
	wantErr    error
	wantErrStr string
	wantOut    string
}

func (f *fixture) runAll(t *testing.T, tests []cliTest) {
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			typing(t, tt.secrets...)
			f.out.Reset()

			err := f.cli.run(tt.args)
			switch {
			case tt.wantErr != nil:
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
				}
			case tt.wantErrStr != "":
				if err == nil || !strings.Contains(err.Error(), tt.wantErrStr) {
					t.Errorf("cli.run() error = %v, wantErrStr %s", err, tt.wantErrStr)
				}
			case err != nil:
				t.Errorf("cli.run() unexpected error = %v", err)
			}
			if tt.wantOut != "" && !strings.Contains(f.out.String(), tt.wantOut) {
				t.Errorf("output = %q, want it to contain %q", f.out.String(), tt.wantOut)
			}
		})
	}
}

func Test_commandLine_migrate(t *testing.T) {
	f := setup(t)
	f.runAll(t, []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErrStr: "\"admin migrate\" requires a subcommand"},
		{name: "unknown subcommand", args: []string{"migrate", "sideways", "now"}, wantErrStr: "unknown command \"sideways\" for \"admin migrate\""},
		{name: "extra args", args: []string{"migrate", "up", "2"}, wantErrStr: "unknown command \"2\""},
		{name: "up", args: []string{"migrate", "up"}, wantOut: "migrated to group #1"},
		{name: "down with nothing applied", args: []string{"migrate", "down"}, wantOut: "there are no groups to roll back"},
		{name: "status", args: []string{"migrate", "status"}, wantOut: "20240101000000 applied\n20240301000000 pending"},
	})
	if got := strings.Join(f.migrations.calls, ","); got != "up,down,status" {
		t.Errorf("migrations calls = %s", got)
	}

	f.migrations.err = errors.New("connection refused")
	f.runAll(t, []cliTest{{name: "failure", args: []string{"migrate", "up"}, wantErrStr: "connection refused"}})
}

func Test_commandLine_addUser(t *testing.T) {
	f := setup(t)
	existing := testutil.CreateUser(t, f.usrRepo, "Ada", "ada.cap@adviser.com", core.RoleAdvisor)

	f.runAll(t, []cliTest{
		{name: "missing flags", args: []string{"adduser"}, wantErrStr: "required flag(s)"},
		{name: "no password", args: []string{"adduser", "--email", "hana@adminrh.com", "--name", "Hana"}, wantErr: errEmptySecret},
		{
			name:       "unknown domain",
			args:       []string{"adduser", "--email", "hana@gmail.com", "--name", "Hana"},
			secrets:    []string{testutil.Password, "Code#2024"},
			wantErrStr: "no role uses the domain",
		},
		{
			name:       "role mismatch",
			args:       []string{"adduser", "--email", "hana@adviser.com", "--name", "Hana", "--role", core.RoleAdmin},
			secrets:    []string{testutil.Password, "Code#2024"},
			wantErrStr: "is not an email of the admin role",
		},
		{
			name:       "weak password",
			args:       []string{"adduser", "--email", "hana@adminrh.com", "--name", "Hana"},
			secrets:    []string{"12345678", "Code#2024"},
			wantErrStr: "cannot be entirely numeric",
		},
		{
			name:    "create admin",
			args:    []string{"adduser", "--email", "Hana@AdminRH.com", "--name", "Hana"},
			secrets: []string{testutil.Password, "Code#2024"},
			wantOut: "created Hana <hana.cap@adminrh.com> (admin)",
		},
		{
			name:    "update existing",
			args:    []string{"adduser", "--email", "ada@adviser.com", "--name", "Ada Lovelace"},
			secrets: []string{"Nw9$Lp2@Qr", "Code#2025"},
			wantOut: "updated Ada Lovelace <ada.cap@adviser.com> (advisor)",
		},
	})

	ctx := context.Background()
	hana, err := f.usrRepo.GetUser(ctx, user.GetFilter{Email: "hana.cap@adminrh.com"})
	if err != nil {
		t.Fatalf("GetUser(): %v", err)
	}
	if !hana.IsAdmin() || hana.CheckPassword(testutil.Password) != nil || hana.CheckSecurityCode("Code#2024") != nil {
		t.Errorf("created user = %+v", hana)
	}

	ada, err := f.usrRepo.GetUser(ctx, user.GetFilter{ID: existing.ID})
	if err != nil {
		t.Fatalf("GetUser(): %v", err)
	}
	if ada.Name != "Ada Lovelace" || ada.CheckPassword("Nw9$Lp2@Qr") != nil || ada.CheckSecurityCode("Code#2025") != nil {
		t.Errorf("updated user = %+v", ada)
	}
	if !ada.CreatedAt.Equal(existing.CreatedAt) {
		t.Errorf("createdAt changed from %v to %v", existing.CreatedAt, ada.CreatedAt)
	}
}

func Test_commandLine_resetPassword(t *testing.T) {
	f := setup(t)
	usr := testutil.CreateUser(t, f.usrRepo, "Ada", "ada.cap@adviser.com", core.RoleAdvisor)

	f.runAll(t, []cliTest{
		{name: "no email", args: []string{"resetpassword"}, wantErrStr: "required flag(s) \"email\" not set"},
		{name: "no password", args: []string{"resetpassword", "--email", "ada@adviser.com"}, wantErr: errEmptySecret},
		{name: "user not found", args: []string{"resetpassword", "--email", "bob@adviser.com"}, secrets: []string{"Nw9$Lp2@Qr"}, wantErr: user.ErrNotFound},
		{name: "weak password", args: []string{"resetpassword", "--email", "ada@adviser.com"}, secrets: []string{"short"}, wantErrStr: "at least 8 characters"},
		{name: "reset with plain email", args: []string{"resetpassword", "--email", "ada@adviser.com"}, secrets: []string{"Nw9$Lp2@Qr"}, wantOut: "password updated"},
		{name: "reset with institutional email", args: []string{"resetpassword", "--email", "ada.cap@adviser.com"}, secrets: []string{"Mx4%Tb8&Yu"}, wantOut: "password updated"},
	})

	refreshed, err := f.usrRepo.GetUser(context.Background(), user.GetFilter{ID: usr.ID})
	if err != nil {
		t.Fatalf("GetUser(): %v", err)
	}
	if refreshed.CheckPassword("Mx4%Tb8&Yu") != nil {
		t.Error("failed to update the password")
	}
}

func Test_commandLine_seed(t *testing.T) {
	f := setup(t)

	dir := t.TempDir()
	valid := filepath.Join(dir, "bank.yaml")
	invalid := filepath.Join(dir, "invalid.yaml")
	writeFile(t, valid, bankYAML)
	writeFile(t, invalid, `
questions:
  - text: Is the sky blue?
    type: true_false
    roles: [advisor]
`)

	f.runAll(t, []cliTest{
		{name: "missing file", args: []string{"seed", "--file", filepath.Join(dir, "nope.yaml")}, wantErr: os.ErrNotExist},
		{name: "invalid question", args: []string{"seed", "--file", invalid}, wantErrStr: "questions[0]: true_false questions need a correctAnswer"},
		{name: "from file", args: []string{"seed", "--file", valid}, wantOut: "seeded 2 questions"},
	})

	qs, err := f.qRepo.QueryQuestions(context.Background(), core.RoleJuniorAdvisor)
	if err != nil {
		t.Fatalf("QueryQuestions(): %v", err)
	}
	if len(qs) != 1 || qs[0].Text != "Pick the capital of Yucatan" {
		t.Errorf("junior-advisor questions = %+v", qs)
	}

	f.runAll(t, []cliTest{{name: "default bank", args: []string{"seed"}, wantOut: "seeded"}})
	bank, err := question.DefaultBank()
	if err != nil {
		t.Fatalf("DefaultBank(): %v", err)
	}
	if !strings.Contains(f.out.String(), "seeded "+strconv.Itoa(len(bank))+" questions") {
		t.Errorf("output = %q; want %d questions seeded", f.out.String(), len(bank))
	}
}

const bankYAML = `
questions:
  - text: Is the sky blue?
    type: true_false
    correctAnswer: true
    roles: [advisor]
  - text: Pick the capital of Yucatan
    type: multiple_choice
    roles: [advisor, junior-advisor]
    options:
      - text: Merida
        correct: true
      - text: Cancun
`

func Test_commandLine_seedWithOutstandingEvaluations(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	bank := filepath.Join(t.TempDir(), "bank.yaml")
	writeFile(t, bank, bankYAML)
	old := testutil.SeedQuestions(t, f.qRepo, 3, core.RoleAdvisor)

	now := time.Now()
	for _, ev := range []evaluation.Evaluation{
		{UserID: "approved", QuestionIDs: []string{old[0].ID}, Status: evaluation.StatusApproved, Score: 100, CreatedAt: now, UpdatedAt: now},
		{UserID: "pending", QuestionIDs: []string{old[1].ID}, Status: evaluation.StatusPending, CreatedAt: now, UpdatedAt: now},
	} {
		if _, err := f.evalRepo.CreateEvaluation(ctx, ev); err != nil {
			t.Fatalf("CreateEvaluation(): %v", err)
		}
	}

	f.runAll(t, []cliTest{{name: "refused", args: []string{"seed", "--file", bank}, wantErr: errOutstandingEvaluations}})
	if qs, _ := f.qRepo.GetQuestionsByID(ctx, old[1].ID); len(qs) != 1 {
		t.Fatalf("questions of the pending evaluation were replaced")
	}

	f.runAll(t, []cliTest{{name: "forced", args: []string{"seed", "--file", bank, "--force"}, wantOut: "seeded 2 questions"}})
	if qs, _ := f.qRepo.GetQuestionsByID(ctx, old[1].ID); len(qs) != 0 {
		t.Errorf("GetQuestionsByID(replaced) = %v", qs)
	}
}

func Test_questionRepository(t *testing.T) {
	ctx := context.Background()
	logger := new(testutil.Logger)
	backing := inmemdb.NewQuestionRepository(inmemdb.NewDB())

	conf := testutil.NewConfig()
	conf.Redis.Addr = ""
	repo, closeFn, err := questionRepository(ctx, conf, backing, logger)
	if err != nil || repo != backing {
		t.Fatalf("questionRepository(no redis) = %v, %v; want the database repository", repo, err)
	}
	closeFn()

	down, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run(): %v", err)
	}
	conf.Redis.Addr = down.Addr()
	down.Close()
	if _, _, err = questionRepository(ctx, conf, backing, logger); err == nil {
		t.Error("questionRepository(redis down) succeeded")
	}

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run(): %v", err)
	}
	t.Cleanup(mr.Close)
	conf.Redis.Addr = mr.Addr()
	conf.Redis.QuestionTTL = time.Minute

	// the API reads through its own cache over the same Redis
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	api := cache.NewQuestionRepository(client, backing, conf.Redis.QuestionTTL, logger)
	testutil.SeedQuestions(t, api, 3, core.RoleAdvisor)
	if qs, err := api.QueryQuestions(ctx, core.RoleAdvisor); err != nil || len(qs) != 3 {
		t.Fatalf("QueryQuestions() = %v, %v", qs, err)
	}

	repo, closeFn, err = questionRepository(ctx, conf, backing, logger)
	if err != nil {
		t.Fatalf("questionRepository(): %v", err)
	}
	t.Cleanup(closeFn)
	cli := newCommandLine(new(fakeMigrations), inmemdb.NewUserRepository(inmemdb.NewDB()), question.NewService(repo), inmemdb.NewEvaluationRepository(inmemdb.NewDB()))
	cli.out = new(bytes.Buffer)

	bank := filepath.Join(t.TempDir(), "bank.yaml")
	writeFile(t, bank, bankYAML)
	if err = cli.run([]string{"seed", "--file", bank}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	qs, err := api.QueryQuestions(ctx, core.RoleAdvisor)
	if err != nil {
		t.Fatalf("QueryQuestions(): %v", err)
	}
	if len(qs) != 2 || qs[0].Text != "Is the sky blue?" {
		t.Errorf("API serves %d questions after seeding, want the 2 new ones: %+v", len(qs), qs)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile(): %v", err)
	}
}
