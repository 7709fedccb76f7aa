package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/nyxmentor/portal/core"
	"github.com/nyxmentor/portal/core/question"
	"github.com/nyxmentor/portal/core/training"
	"github.com/nyxmentor/portal/core/user"
)

// Password satisfies the password policy for the users created by CreateUser.
const Password = "Zq8!Xw3#Vk"

// NewConfig returns the default config in test mode.
func NewConfig() *core.Config {
	conf := core.NewConfig()
	conf.Debug = false
	conf.TestMode = true
	return conf
}

// BusinessHour is a Wednesday, 10:00 in America/Merida.
func BusinessHour(t *testing.T) time.Time {
	loc, err := time.LoadLocation("America/Merida")
	if err != nil {
		t.Fatalf("LoadLocation(): %v", err)
	}
	return time.Date(2024, time.March, 13, 10, 0, 0, 0, loc)
}

// Clock is a settable clock for services that accept a `func() time.Time`.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(now time.Time) *Clock {
	return &Clock{now: now}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Set(now time.Time) {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// LogEntry is one call recorded by Logger.
type LogEntry struct {
	Level string
	Msg   string
	Args  []interface{}
}

// Logger is a core.Logger that records entries instead of printing them.
type Logger struct {
	mu      sync.Mutex
	Entries []LogEntry
}

var _ core.Logger = (*Logger)(nil)

func (l *Logger) log(level, msg string, args []interface{}) {
	l.mu.Lock()
	l.Entries = append(l.Entries, LogEntry{Level: level, Msg: msg, Args: args})
	l.mu.Unlock()
}

func (l *Logger) Debug(msg string, args ...interface{}) { l.log("debug", msg, args) }
func (l *Logger) Info(msg string, args ...interface{})  { l.log("info", msg, args) }
func (l *Logger) Warn(msg string, args ...interface{})  { l.log("warn", msg, args) }
func (l *Logger) Error(msg string, args ...interface{}) { l.log("error", msg, args) }
func (l *Logger) Fatal(msg string, args ...interface{}) { l.log("fatal", msg, args) }

// Count returns the number of entries logged at level.
func (l *Logger) Count(level string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	var n int
	for _, e := range l.Entries {
		if e.Level == level {
			n++
		}
	}
	return n
}

func CreateUser(t *testing.T, repo user.Repository, name, email, role string, createdAt ...time.Time) user.User {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Email:     email,
		Role:      role,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if err := usr.SetPassword(Password); err != nil {
		t.Fatalf("CreateUser(): %v", err)
	}
	if err := usr.SetSecurityCode("Code#2024"); err != nil {
		t.Fatalf("CreateUser(): %v", err)
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser(): %v", err)
	}
	return usr
}

// CreateTraining stores a training with a document for the given roles.
func CreateTraining(t *testing.T, repo training.Repository, title string, roles ...string) training.Training {
	now := time.Now().UTC()
	tr, err := repo.CreateTraining(context.Background(), training.Training{
		Title:     title,
		Roles:     roles,
		Section:   "General",
		Module:    "Basics",
		Document:  training.Material{FileURL: "https://files.local/" + title + ".pdf", OriginalFileName: title + ".pdf"},
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateTraining(): %v", err)
	}
	return tr
}

// SeedQuestions stores n true/false questions (correct answer: true) for the given roles.
func SeedQuestions(t *testing.T, repo question.Repository, n int, roles ...string) []question.Question {
	yes := true
	qs := make([]question.Question, n)
	for i := range qs {
		qs[i] = question.Question{
			Text:          fmt.Sprintf("question %d", i+1),
			Kind:          question.TrueFalse,
			CorrectAnswer: &yes,
			Roles:         roles,
			CreatedAt:     time.Now().UTC(),
		}
	}
	qs, err := repo.ReplaceQuestions(context.Background(), qs)
	if err != nil {
		t.Fatalf("SeedQuestions(): %v", err)
	}
	return qs
}
