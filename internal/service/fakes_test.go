package service

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/oauth2"

	"github.com/spec-kit/facezhuk/internal/auth/social"
	"github.com/spec-kit/facezhuk/internal/mail"
)

type recordingMailer struct {
	mu   sync.Mutex
	sent []mail.Message
	err  error
}

func (r *recordingMailer) Send(_ context.Context, msg mail.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, msg)
	return r.err
}

func (r *recordingMailer) last() mail.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sent) == 0 {
		return mail.Message{}
	}
	return r.sent[len(r.sent)-1]
}

type loginCounter struct {
	mu     sync.Mutex
	counts map[string]int
}

func (l *loginCounter) RecordLogin(method string, success bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.counts == nil {
		l.counts = make(map[string]int)
	}
	key := method + ":failure"
	if success {
		key = method + ":success"
	}
	l.counts[key]++
}

func (l *loginCounter) get(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.counts[key]
}

// stubAdapter answers one code with one profile.
type stubAdapter struct {
	code    string
	profile social.Profile
	err     error
}

func (s *stubAdapter) Exchange(_ context.Context, code string) (*oauth2.Token, error) {
	if code != s.code {
		return nil, errors.New("invalid_grant")
	}
	return &oauth2.Token{AccessToken: "provider-at"}, nil
}

func (s *stubAdapter) Profile(context.Context, *oauth2.Token) (social.Profile, error) {
	if s.err != nil {
		return social.Profile{}, s.err
	}
	return s.profile, nil
}

type recordingBroadcaster struct {
	mu   sync.Mutex
	sent map[string][]string
}

func (r *recordingBroadcaster) Broadcast(_ context.Context, username, message string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sent == nil {
		r.sent = make(map[string][]string)
	}
	r.sent[username] = append(r.sent[username], message)
	return 1
}

func (r *recordingBroadcaster) messages(username string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.sent[username]...)
}
