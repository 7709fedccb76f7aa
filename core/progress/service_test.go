package progress_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/nyxmentor/portal/core"
	"github.com/nyxmentor/portal/core/progress"
	"github.com/nyxmentor/portal/core/training"
	inmemdb "github.com/nyxmentor/portal/storage/database/inmem"
	testutil "github.com/nyxmentor/portal/tests"
)

type assignerMock struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (a *assignerMock) Assign(_ context.Context, userID, _ string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, userID)
	return a.err
}

func pct(n int) *int { return &n }

func setup(t *testing.T) (progress.Service, training.Repository, *assignerMock, *testutil.Logger) {
	db := inmemdb.NewDB()
	trRepo := inmemdb.NewTrainingRepository(db)
	assigner := new(assignerMock)
	logger := new(testutil.Logger)
	svc := progress.NewService(
		inmemdb.NewProgressRepository(db),
		training.NewService(trRepo),
		assigner,
		logger,
	)
	return svc, trRepo, assigner, logger
}

func TestStart(t *testing.T) {
	ctx := context.Background()
	svc, trRepo, _, _ := setup(t)
	doc := testutil.CreateTraining(t, trRepo, "Onboarding", core.RoleAdvisor)
	mgr := testutil.CreateTraining(t, trRepo, "Leadership", core.RoleBranchManager)

	tests := []struct {
		name    string
		role    string
		sp      progress.StartProgress
		wantErr interface{}
	}{
		{name: "admin", role: core.RoleAdmin, sp: progress.StartProgress{TrainingID: doc.ID, Type: "document"}, wantErr: &core.PermissionError{}},
		{name: "unknown training", role: core.RoleAdvisor, sp: progress.StartProgress{TrainingID: "nope", Type: "document"}, wantErr: &core.NotFoundError{}},
		{name: "other role", role: core.RoleAdvisor, sp: progress.StartProgress{TrainingID: mgr.ID, Type: "document"}, wantErr: &core.PermissionError{}},
		{name: "missing material", role: core.RoleAdvisor, sp: progress.StartProgress{TrainingID: doc.ID, Type: "video"}, wantErr: &core.ValidationError{}},
		{name: "started", role: core.RoleAdvisor, sp: progress.StartProgress{TrainingID: doc.ID, Type: "document"}},
		{name: "already started", role: core.RoleAdvisor, sp: progress.StartProgress{TrainingID: doc.ID, Type: "document"}, wantErr: &core.ValidationError{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := svc.Start(ctx, "usr-1", tt.role, tt.sp)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Start(): %v", err)
				}
				if p.Status != progress.StatusInProgress || p.Progress != 0 || p.Completed {
					t.Errorf("Start() = %+v, want a fresh in-progress record", p)
				}
				return
			}
			if err == nil {
				t.Fatal("Start() succeeded")
			}
			switch tt.wantErr.(type) {
			case *core.PermissionError:
				if _, ok := err.(*core.PermissionError); !ok {
					t.Errorf("Start() error = %T, want *core.PermissionError", err)
				}
			case *core.NotFoundError:
				if _, ok := err.(*core.NotFoundError); !ok {
					t.Errorf("Start() error = %T, want *core.NotFoundError", err)
				}
			case *core.ValidationError:
				if _, ok := err.(*core.ValidationError); !ok {
					t.Errorf("Start() error = %T, want *core.ValidationError", err)
				}
			}
		})
	}
}

func TestRecord(t *testing.T) {
	ctx := context.Background()
	svc, trRepo, assigner, _ := setup(t)
	first := testutil.CreateTraining(t, trRepo, "Onboarding", core.RoleAdvisor)
	second := testutil.CreateTraining(t, trRepo, "Products", core.RoleAdvisor, core.RoleJuniorAdvisor)
	testutil.CreateTraining(t, trRepo, "Leadership", core.RoleBranchManager)

	record := func(trainingID string, n int) (progress.Progress, error) {
		return svc.Record(ctx, "usr-1", core.RoleAdvisor, progress.RecordProgress{TrainingID: trainingID, Type: "document", Progress: pct(n)})
	}

	p, err := record(first.ID, 40)
	if err != nil {
		t.Fatalf("Record(): %v", err)
	}
	if p.Progress != 40 || p.Status != progress.StatusInProgress || p.Completed {
		t.Errorf("Record(40) = %+v", p)
	}

	for _, n := range []int{39, -1, 101} {
		if _, err = record(first.ID, n); err == nil {
			t.Errorf("Record(%d) succeeded", n)
		} else if _, ok := err.(*core.ValidationError); !ok {
			t.Errorf("Record(%d) error = %T, want *core.ValidationError", n, err)
		}
	}

	if p, err = record(first.ID, 100); err != nil {
		t.Fatalf("Record(): %v", err)
	}
	if !p.IsDone() {
		t.Errorf("Record(100) = %+v, want completed", p)
	}
	if len(assigner.calls) != 0 {
		t.Fatalf("Assign() called with a training left: %v", assigner.calls)
	}

	done, err := svc.AllCompleted(ctx, "usr-1", core.RoleAdvisor)
	if err != nil || done {
		t.Errorf("AllCompleted() = %v, %v; want false", done, err)
	}

	if _, err = record(second.ID, 100); err != nil {
		t.Fatalf("Record(): %v", err)
	}
	if len(assigner.calls) != 1 || assigner.calls[0] != "usr-1" {
		t.Errorf("Assign() calls = %v, want [usr-1]", assigner.calls)
	}
	done, err = svc.AllCompleted(ctx, "usr-1", core.RoleAdvisor)
	if err != nil || !done {
		t.Errorf("AllCompleted() = %v, %v; want true", done, err)
	}

	// recording 100 again re-runs the check, assignment is idempotent downstream
	if _, err = record(second.ID, 100); err != nil {
		t.Fatalf("Record(): %v", err)
	}
	if len(assigner.calls) != 2 {
		t.Errorf("Assign() calls = %d, want 2", len(assigner.calls))
	}

	records, err := svc.ListForUser(ctx, "usr-1")
	if err != nil {
		t.Fatalf("ListForUser(): %v", err)
	}
	if len(records) != 2 {
		t.Errorf("len(ListForUser()) = %d, want 2", len(records))
	}
}

func TestRecordAssignFailureIsLogged(t *testing.T) {
	ctx := context.Background()
	svc, trRepo, assigner, logger := setup(t)
	assigner.err = errors.New("question bank offline")
	tr := testutil.CreateTraining(t, trRepo, "Onboarding", core.RoleAdvisor)

	p, err := svc.Record(ctx, "usr-1", core.RoleAdvisor, progress.RecordProgress{TrainingID: tr.ID, Type: "document", Progress: pct(100)})
	if err != nil {
		t.Fatalf("Record(): %v", err)
	}
	if !p.IsDone() {
		t.Errorf("Record() = %+v, want completed", p)
	}
	if n := logger.Count("error"); n != 1 {
		t.Errorf("errors logged = %d, want 1", n)
	}
}

func TestAllCompletedWithoutTrainings(t *testing.T) {
	svc, _, _, _ := setup(t)
	done, err := svc.AllCompleted(context.Background(), "usr-1", core.RoleZoneManager)
	if err != nil || !done {
		t.Errorf("AllCompleted() = %v, %v; want true", done, err)
	}
}
