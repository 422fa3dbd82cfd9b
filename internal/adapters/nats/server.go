package natsadapter

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	nats "github.com/nats-io/nats.go"

	"github.com/mhawash/polar/internal/tokenverify"
	pkglog "github.com/mhawash/polar/pkg/log"
)

// ReviewTasks is what the job consumer needs from the workflow layer.
type ReviewTasks interface {
	AccountUnderReview(ctx context.Context, accountID string) error
	AccountReviewed(ctx context.Context, accountID string) error
	OnAfterSignup(ctx context.Context, userID string) error
}

// JobSubjects maps job names to their bus subjects.
type JobSubjects struct {
	AccountUnderReview string
	AccountReviewed    string
	AfterSignup        string
}

// JobServer consumes account-review and post-signup jobs from a queue
// group. A failed job is logged and dropped; there is no internal
// retry.
type JobServer struct {
	logger  pkglog.Logger
	tasks   ReviewTasks
	timeout time.Duration
}

func NewJobServer(logger pkglog.Logger, tasks ReviewTasks) *JobServer {
	return &JobServer{logger: logger, tasks: tasks, timeout: 30 * time.Second}
}

func (s *JobServer) Subscribe(conn *nats.Conn, subjects JobSubjects, queue string) error {
	if conn == nil {
		return errors.New("nats connection is nil")
	}
	if _, err := conn.QueueSubscribe(subjects.AccountUnderReview, queue, s.accountHandler(s.tasks.AccountUnderReview)); err != nil {
		return err
	}
	if _, err := conn.QueueSubscribe(subjects.AccountReviewed, queue, s.accountHandler(s.tasks.AccountReviewed)); err != nil {
		return err
	}
	_, err := conn.QueueSubscribe(subjects.AfterSignup, queue, s.handleAfterSignup)
	return err
}

type accountJob struct {
	AccountID string `json:"account_id"`
	JobID     string `json:"job_id"`
}

type signupJob struct {
	UserID string `json:"user_id"`
	JobID  string `json:"job_id"`
}

func (s *JobServer) accountHandler(fn func(ctx context.Context, accountID string) error) nats.MsgHandler {
	return func(msg *nats.Msg) {
		var job accountJob
		if err := json.Unmarshal(msg.Data, &job); err != nil || job.AccountID == "" {
			s.logger.Error().Str("subject", msg.Subject).Msg("malformed account job payload")
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		if err := fn(ctx, job.AccountID); err != nil {
			s.logger.Error().Err(err).
				Str("subject", msg.Subject).
				Str("job_id", job.JobID).
				Str("account_id", job.AccountID).
				Msg("account review job failed")
			return
		}
		s.logger.Info().
			Str("subject", msg.Subject).
			Str("account_id", job.AccountID).
			Msg("account review job done")
	}
}

func (s *JobServer) handleAfterSignup(msg *nats.Msg) {
	var job signupJob
	if err := json.Unmarshal(msg.Data, &job); err != nil || job.UserID == "" {
		s.logger.Error().Str("subject", msg.Subject).Msg("malformed signup job payload")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.tasks.OnAfterSignup(ctx, job.UserID); err != nil {
		s.logger.Error().Err(err).
			Str("job_id", job.JobID).
			Str("user_id", job.UserID).
			Msg("post-signup job failed")
	}
}

// VerifyHandler answers session-token verification requests from other
// platform services over request/reply.
type VerifyHandler struct {
	parser    tokenverify.Parser
	respondFn func(msg *nats.Msg, resp verifyResponse)
}

type verifyRequest struct {
	Token string `json:"token"`
}

type verifyResponse struct {
	OK     bool           `json:"ok"`
	UserID string         `json:"user_id,omitempty"`
	Email  string         `json:"email,omitempty"`
	Error  string         `json:"error,omitempty"`
	Claims map[string]any `json:"claims,omitempty"`
}

func NewVerifyHandler(parser tokenverify.Parser) *VerifyHandler {
	return &VerifyHandler{parser: parser, respondFn: respond}
}

func (h *VerifyHandler) Subscribe(conn *nats.Conn, subject, queue string) error {
	if conn == nil {
		return errors.New("nats connection is nil")
	}
	_, err := conn.QueueSubscribe(subject, queue, h.handle)
	return err
}

func (h *VerifyHandler) handle(msg *nats.Msg) {
	var req verifyRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		h.respondFn(msg, verifyResponse{OK: false, Error: "invalid_payload"})
		return
	}
	result, err := tokenverify.Verify(h.parser, req.Token, time.Now)
	if err != nil {
		switch {
		case errors.Is(err, tokenverify.ErrTokenExpired):
			h.respondFn(msg, verifyResponse{OK: false, Error: "expired"})
		case errors.Is(err, tokenverify.ErrSubjectMissing):
			h.respondFn(msg, verifyResponse{OK: false, Error: "subject_missing"})
		default:
			h.respondFn(msg, verifyResponse{OK: false, Error: "invalid_token"})
		}
		return
	}
	h.respondFn(msg, verifyResponse{OK: true, UserID: result.UserID, Email: result.Email, Claims: result.Claims})
}

func respond(msg *nats.Msg, resp verifyResponse) {
	data, _ := json.Marshal(resp)
	_ = msg.Respond(data)
}
