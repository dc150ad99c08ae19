package notification

import (
	"HealthConnect/models"
	"HealthConnect/role"
	"context"
	"sync"
)

// Sent is one call captured by Recorder.
type Sent struct {
	Template Template
	To       string
	Code     string
	Purpose  models.CodePurpose
	URL      string
}

// Recorder captures notifications in memory. Fail makes the next sends of a template
// return the given error.
type Recorder struct {
	mu   sync.Mutex
	sent []Sent
	fail map[Template]error
}

func NewRecorder() *Recorder {
	return &Recorder{fail: make(map[Template]error)}
}

func (r *Recorder) Fail(t Template, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err == nil {
		delete(r.fail, t)
		return
	}
	r.fail[t] = err
}

func (r *Recorder) record(s Sent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail[s.Template]; err != nil {
		return err
	}
	r.sent = append(r.sent, s)
	return nil
}

func (r *Recorder) Sent() []Sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Sent(nil), r.sent...)
}

// LastCode returns the most recent code sent to email for purpose.
func (r *Recorder) LastCode(email string, purpose models.CodePurpose) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.sent) - 1; i >= 0; i-- {
		s := r.sent[i]
		if s.Template == TemplateOTP && s.To == email && s.Purpose == purpose {
			return s.Code, true
		}
	}
	return "", false
}

// Count returns how many messages of template t were delivered to email.
func (r *Recorder) Count(t Template, email string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.sent {
		if s.Template == t && s.To == email {
			n++
		}
	}
	return n
}

func (r *Recorder) SendOTP(_ context.Context, to, _ string, code string, purpose models.CodePurpose) error {
	return r.record(Sent{Template: TemplateOTP, To: to, Code: code, Purpose: purpose})
}

func (r *Recorder) SendWelcome(_ context.Context, to, _ string, _ role.Role) error {
	return r.record(Sent{Template: TemplateWelcome, To: to})
}

func (r *Recorder) SendPasswordReset(_ context.Context, to, _ string, resetURL string) error {
	return r.record(Sent{Template: TemplatePasswordReset, To: to, URL: resetURL})
}

func (r *Recorder) SendPasswordChanged(_ context.Context, to, _ string) error {
	return r.record(Sent{Template: TemplatePasswordChanged, To: to})
}
