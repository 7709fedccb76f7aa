package question

import (
	"context"
	"testing"

	"github.com/nyxmentor/portal/core"
)

func boolPtr(b bool) *bool { return &b }

func TestIsCorrect(t *testing.T) {
	mc := Question{
		Kind: MultipleChoice,
		Options: []Option{
			{ID: "o1", Text: "red"},
			{ID: "o2", Text: "blue", Correct: true},
			{ID: "o3", Text: "green"},
		},
	}
	mcTwoCorrect := Question{
		Kind: MultipleChoice,
		Options: []Option{
			{ID: "o1", Text: "first", Correct: true},
			{ID: "o2", Text: "second", Correct: true},
		},
	}
	tf := Question{Kind: TrueFalse, CorrectAnswer: boolPtr(false)}

	tests := []struct {
		name   string
		q      Question
		answer interface{}
		want   bool
	}{
		{name: "mc correct text", q: mc, answer: "blue", want: true},
		{name: "mc wrong text", q: mc, answer: "red"},
		{name: "mc option id is not the text", q: mc, answer: "o2"},
		{name: "mc case sensitive", q: mc, answer: "Blue"},
		{name: "mc non string", q: mc, answer: true},
		{name: "mc nil", q: mc, answer: nil},
		{name: "mc first correct wins", q: mcTwoCorrect, answer: "first", want: true},
		{name: "mc second correct loses", q: mcTwoCorrect, answer: "second"},
		{name: "mc no correct option", q: Question{Kind: MultipleChoice, Options: []Option{{Text: "a"}}}, answer: "a"},
		{name: "tf correct", q: tf, answer: false, want: true},
		{name: "tf wrong", q: tf, answer: true},
		{name: "tf string is not a bool", q: tf, answer: "false"},
		{name: "tf missing answer key", q: Question{Kind: TrueFalse}, answer: true},
		{name: "unknown kind", q: Question{Kind: "essay"}, answer: "anything"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.q.IsCorrect(tt.answer); got != tt.want {
				t.Errorf("IsCorrect(%v) = %v, want %v", tt.answer, got, tt.want)
			}
		})
	}
}

func TestDefaultBank(t *testing.T) {
	qs, err := DefaultBank()
	if err != nil {
		t.Fatalf("DefaultBank(): %v", err)
	}
	if len(qs) == 0 {
		t.Fatal("DefaultBank() returned no questions")
	}
	for i, q := range qs {
		if err := Validate(q); err != nil {
			t.Errorf("questions[%d] %q: %v", i, q.Text, err)
		}
	}
}

func TestParseBank(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    int
		wantErr bool
	}{
		{name: "empty", data: "questions: []", wantErr: true},
		{name: "unknown field", data: "questions:\n  - text: a\n    kind: true_false\n", wantErr: true},
		{name: "not yaml", data: "{{{", wantErr: true},
		{
			name: "valid",
			data: "questions:\n  - text: a\n    type: true_false\n    correctAnswer: true\n    roles: [advisor]\n",
			want: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			qs, err := ParseBank([]byte(tt.data))
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseBank() error = %v, wantErr %v", err, tt.wantErr)
			}
			if len(qs) != tt.want {
				t.Errorf("len(ParseBank()) = %d, want %d", len(qs), tt.want)
			}
		})
	}
}

type repoMock struct {
	stored []Question
}

func (r *repoMock) QueryQuestions(context.Context, string) ([]Question, error)    { return nil, nil }
func (r *repoMock) GetQuestionsByID(context.Context, ...string) ([]Question, error) { return nil, nil }
func (r *repoMock) ReplaceQuestions(_ context.Context, qs []Question) ([]Question, error) {
	r.stored = qs
	return qs, nil
}

func TestSeed(t *testing.T) {
	valid := Question{Text: "a", Kind: TrueFalse, CorrectAnswer: boolPtr(true), Roles: []string{core.RoleAdvisor}}

	tests := []struct {
		name       string
		qs         []Question
		wantFields int
	}{
		{name: "valid", qs: []Question{valid}},
		{name: "blank text", qs: []Question{valid, {Text: " ", Kind: TrueFalse, CorrectAnswer: boolPtr(true), Roles: []string{core.RoleAdvisor}}}, wantFields: 1},
		{name: "no roles", qs: []Question{{Text: "a", Kind: TrueFalse, CorrectAnswer: boolPtr(true)}}, wantFields: 1},
		{name: "admin role", qs: []Question{{Text: "a", Kind: TrueFalse, CorrectAnswer: boolPtr(true), Roles: []string{core.RoleAdmin}}}, wantFields: 1},
		{name: "two correct options", qs: []Question{{
			Text: "a", Kind: MultipleChoice, Roles: []string{core.RoleAdvisor},
			Options: []Option{{Text: "x", Correct: true}, {Text: "y", Correct: true}},
		}}, wantFields: 1},
		{name: "bad kind", qs: []Question{{Text: "a", Kind: "essay", Roles: []string{core.RoleAdvisor}}}, wantFields: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &repoMock{}
			svc := NewService(repo)
			_, err := svc.Seed(context.Background(), tt.qs)
			if tt.wantFields == 0 {
				if err != nil {
					t.Fatalf("Seed(): %v", err)
				}
				if len(repo.stored) != len(tt.qs) {
					t.Errorf("stored %d questions, want %d", len(repo.stored), len(tt.qs))
				}
				return
			}
			vErr, ok := err.(*core.ValidationError)
			if !ok {
				t.Fatalf("Seed() error = %v, want *core.ValidationError", err)
			}
			if len(vErr.Fields) != tt.wantFields {
				t.Errorf("len(Fields) = %d, want %d", len(vErr.Fields), tt.wantFields)
			}
			if repo.stored != nil {
				t.Error("invalid bank must not be stored")
			}
		})
	}
}
