package sync

import (
	"strconv"
	"time"

	"netbill.id/panel/internal/models"
	"netbill.id/panel/pkg/logger"
)

// Session is a live connection snapshot from the router. Never a source
// of truth; reconciled into usage logs by Reconcile.
type Session struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Address  string `json:"address"`
	CallerID string `json:"caller_id"`
	Uptime   string `json:"uptime"`
	BytesIn  int64  `json:"bytes_in"`
	BytesOut int64  `json:"bytes_out"`
}

// Disconnect outcomes. Soft means the remove command went out but its
// confirmation read timed out; retrying a soft outcome risks a second
// disconnect against a session that already closed, so callers must not
// treat it as a failure.
type DisconnectOutcome string

const (
	OutcomeConfirmed DisconnectOutcome = "confirmed"
	OutcomeSoft      DisconnectOutcome = "soft"
	OutcomeFailed    DisconnectOutcome = "failed"
)

type DisconnectResult struct {
	Outcome DisconnectOutcome `json:"outcome"`
	Reason  string            `json:"reason,omitempty"`
}

// SessionMonitor enumerates live sessions, disconnects them on demand
// and keeps the usage history aligned with what the router reports.
type SessionMonitor struct {
	usage    UsageStore
	accounts AccountStore
	logger   *logger.Logger
	now      func() time.Time
}

func NewSessionMonitor(usage UsageStore, accounts AccountStore, log *logger.Logger) *SessionMonitor {
	return &SessionMonitor{usage: usage, accounts: accounts, logger: log, now: time.Now}
}

// List returns current sessions. Optional fields are absent-safe:
// missing byte counters parse to zero, not an error.
func (m *SessionMonitor) List(r Runner) ([]Session, error) {
	reply, err := r.Run("/ppp/active/print")
	if err != nil {
		return nil, Classify("/ppp/active/print", err)
	}

	sessions := make([]Session, 0, len(reply.Re))
	for _, sen := range reply.Re {
		sessions = append(sessions, Session{
			ID:       sen.Map[".id"],
			Name:     sen.Map["name"],
			Address:  sen.Map["address"],
			CallerID: sen.Map["caller-id"],
			Uptime:   sen.Map["uptime"],
			BytesIn:  parseInt64(sen.Map["bytes-in"]),
			BytesOut: parseInt64(sen.Map["bytes-out"]),
		})
	}
	return sessions, nil
}

// Disconnect terminates the named session. The result is tri-state: a
// lookup or remove rejection is a hard failure, a confirmation-read
// timeout after the remove went out is soft, everything else confirms.
func (m *SessionMonitor) Disconnect(r Runner, username string) DisconnectResult {
	reply, err := r.Run("/ppp/active/print", "?name="+username)
	if err != nil {
		return DisconnectResult{Outcome: OutcomeFailed, Reason: Classify("session lookup", err).Error()}
	}
	if len(reply.Re) == 0 {
		return DisconnectResult{Outcome: OutcomeConfirmed, Reason: "no active session"}
	}

	_, err = r.Run("/ppp/active/remove", "=.id="+reply.Re[0].Map[".id"])
	if err == nil {
		return DisconnectResult{Outcome: OutcomeConfirmed}
	}
	if IsTimeout(err) {
		return DisconnectResult{
			Outcome: OutcomeSoft,
			Reason:  "disconnect command sent, confirmation timed out",
		}
	}
	return DisconnectResult{Outcome: OutcomeFailed, Reason: Classify("session remove", err).Error()}
}

// Reconcile aligns usage logs with the live session list: open or update
// a log for every live session with a matching subscriber, close every
// open log whose session is gone or whose subscriber no longer exists.
func (m *SessionMonitor) Reconcile(r Runner) (*Result, error) {
	sessions, err := m.List(r)
	if err != nil {
		return nil, err
	}

	open, err := m.usage.OpenLogs()
	if err != nil {
		return nil, err
	}
	openByName := make(map[string]*models.UsageLog, len(open))
	for i := range open {
		openByName[open[i].Username] = &open[i]
	}

	res := &Result{}
	live := make(map[string]bool, len(sessions))
	for _, sess := range sessions {
		live[sess.Name] = true

		acc, err := m.accounts.GetByUsername(sess.Name)
		if err != nil {
			res.Fail(sess.Name, err)
			continue
		}
		if acc == nil {
			res.Skip("%s: no matching subscriber", sess.Name)
			continue
		}

		if log, ok := openByName[sess.Name]; ok {
			if err := m.usage.UpdateCounters(log.ID, sess.BytesIn, sess.BytesOut, sess.Address, sess.CallerID); err != nil {
				res.Fail(sess.Name, err)
				continue
			}
			res.Updated++
		} else {
			entry := &models.UsageLog{
				AccountID: acc.ID,
				Username:  sess.Name,
				Address:   nullString(sess.Address),
				CallerID:  nullString(sess.CallerID),
				StartedAt: m.now(),
				BytesIn:   sess.BytesIn,
				BytesOut:  sess.BytesOut,
			}
			if err := m.usage.Open(entry); err != nil {
				res.Fail(sess.Name, err)
				continue
			}
			res.Created++
		}
	}

	for i := range open {
		log := &open[i]
		acc, err := m.accounts.GetByUsername(log.Username)
		if err != nil {
			res.Fail(log.Username, err)
			continue
		}
		if live[log.Username] && acc != nil {
			continue
		}
		if err := m.usage.CloseLog(log.ID, m.now()); err != nil {
			res.Fail(log.Username, err)
			continue
		}
		res.Updated++
	}
	return res, nil
}

func parseInt64(s string) int64 {
	if s == "" {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
