package domain

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"
)

// Status represents the lifecycle state of a visit request.
type Status string

const (
	StatusSubmitted      Status = "submitted"
	StatusStage1Pending  Status = "stage1-pending"
	StatusStage1Approved Status = "stage1-approved"
	StatusStage1Rejected Status = "stage1-rejected"
	StatusStage2Pending  Status = "stage2-pending"
	StatusStage2Approved Status = "stage2-approved"
	StatusStage2Rejected Status = "stage2-rejected"
)

func (s Status) String() string { return string(s) }

func (s Status) IsValid() bool {
	switch s {
	case StatusSubmitted, StatusStage1Pending, StatusStage1Approved, StatusStage1Rejected,
		StatusStage2Pending, StatusStage2Approved, StatusStage2Rejected:
		return true
	}
	return false
}

// IsTerminal reports whether no further stage action may change the request.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusStage1Rejected, StatusStage2Approved, StatusStage2Rejected:
		return true
	}
	return false
}

func ParseStatusFromString(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid status %q", ErrValidation, s)
	}
	return st, nil
}

// Stage is a sequential approval phase.
type Stage int

const (
	Stage1 Stage = 1
	Stage2 Stage = 2
)

func (s Stage) IsValid() bool { return s == Stage1 || s == Stage2 }

// PendingStatus is the request status while the stage is being worked.
func (s Stage) PendingStatus() Status {
	if s == Stage2 {
		return StatusStage2Pending
	}
	return StatusStage1Pending
}

// Decision is a per-guest, per-stage approval outcome. The zero value means
// the guest has not been processed for the stage yet.
type Decision string

const (
	DecisionUnset       Decision = ""
	DecisionApproved    Decision = "approved"
	DecisionRejected    Decision = "rejected"
	DecisionBlacklisted Decision = "blacklisted"
)

func (d Decision) String() string { return string(d) }

func (d Decision) IsValid() bool {
	switch d {
	case DecisionUnset, DecisionApproved, DecisionRejected, DecisionBlacklisted:
		return true
	}
	return false
}

// IsTerminal reports whether the decision may no longer be overwritten by a
// later evaluation of the same stage.
func (d Decision) IsTerminal() bool { return d != DecisionUnset && d.IsValid() }

func ParseDecisionFromString(s string) (Decision, error) {
	d := Decision(strings.ToLower(strings.TrimSpace(s)))
	if !d.IsValid() {
		return "", fmt.Errorf("%w: invalid decision %q", ErrValidation, s)
	}
	return d, nil
}

// StageAction is what an approver does to a selection of guests.
type StageAction string

const (
	ActionApprove   StageAction = "approve"
	ActionReject    StageAction = "reject"
	ActionBlacklist StageAction = "blacklist"
)

func (a StageAction) IsValid() bool {
	switch a {
	case ActionApprove, ActionReject, ActionBlacklist:
		return true
	}
	return false
}

// Decision maps the action to the guest decision it stamps.
func (a StageAction) Decision() Decision {
	switch a {
	case ActionApprove:
		return DecisionApproved
	case ActionReject:
		return DecisionRejected
	case ActionBlacklist:
		return DecisionBlacklisted
	}
	return DecisionUnset
}

// RequiresComment reports whether the action needs a non-empty comment.
func (a StageAction) RequiresComment() bool {
	return a == ActionReject || a == ActionBlacklist
}

func ParseStageActionFromString(s string) (StageAction, error) {
	a := StageAction(strings.ToLower(strings.TrimSpace(s)))
	if !a.IsValid() {
		return "", fmt.Errorf("%w: invalid action %q", ErrValidation, s)
	}
	return a, nil
}

// Guest is one outside visitor named on a request.
type Guest struct {
	ID                     string
	RequestID              string
	Name                   string
	Organization           string
	Email                  string
	Phone                  string
	Laptop                 bool
	Mobile                 bool
	FlashDrive             bool
	OtherDevice            bool
	OtherDeviceDescription string
	IDPhotoURL             string
	CheckInAt              *time.Time
	CheckOutAt             *time.Time
	Stage1Decision         Decision
	Stage1Comment          string
	Stage2Decision         Decision
	Stage2Comment          string
}

// DecisionFor returns the guest's decision for the given stage.
func (g *Guest) DecisionFor(stage Stage) Decision {
	if stage == Stage2 {
		return g.Stage2Decision
	}
	return g.Stage1Decision
}

// SetDecision stamps the stage decision and comment.
func (g *Guest) SetDecision(stage Stage, d Decision, comment string) {
	if stage == Stage2 {
		g.Stage2Decision = d
		g.Stage2Comment = comment
		return
	}
	g.Stage1Decision = d
	g.Stage1Comment = comment
}

// StageDecisionMeta holds the per-stage decision metadata stamped on the
// request once a stage is fully processed.
type StageDecisionMeta struct {
	Comment   string
	DecidedAt *time.Time
	DecidedBy string
}

// Request is a visit request naming a destination, a gate, and guests.
type Request struct {
	ID             string
	ApprovalNumber *string
	RequesterID    string
	RequesterName  string
	RequesterEmail string
	Destination    string
	Gate           string
	FromDate       time.Time
	ToDate         time.Time
	Purpose        string
	Guests         []Guest
	Status         Status
	Stage1         StageDecisionMeta
	Stage2         StageDecisionMeta
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (r *Request) Validate() error {
	if strings.TrimSpace(r.RequesterEmail) == "" {
		return fmt.Errorf("%w: requester email is required", ErrValidation)
	}
	if strings.TrimSpace(r.Destination) == "" {
		return fmt.Errorf("%w: destination is required", ErrValidation)
	}
	if strings.TrimSpace(r.Gate) == "" {
		return fmt.Errorf("%w: gate is required", ErrValidation)
	}
	if len(r.Guests) == 0 {
		return fmt.Errorf("%w: at least one guest is required", ErrValidation)
	}
	if r.ToDate.Before(r.FromDate) {
		return fmt.Errorf("%w: toDate precedes fromDate", ErrValidation)
	}
	for i := range r.Guests {
		if strings.TrimSpace(r.Guests[i].Name) == "" {
			return fmt.Errorf("%w: guest name is required", ErrValidation)
		}
	}
	return nil
}

// GuestByID returns a pointer into Guests, or nil.
func (r *Request) GuestByID(id string) *Guest {
	for i := range r.Guests {
		if r.Guests[i].ID == id {
			return &r.Guests[i]
		}
	}
	return nil
}

// AllProcessed reports whether every counted guest is terminal for the stage.
// At stage 2 only guests that are stage-1-terminal are counted: a guest stage
// 1 never processed does not hold the stage-2 aggregation open.
func (r *Request) AllProcessed(stage Stage) bool {
	for i := range r.Guests {
		g := &r.Guests[i]
		if stage == Stage2 && !g.Stage1Decision.IsTerminal() {
			continue
		}
		if !g.DecisionFor(stage).IsTerminal() {
			return false
		}
	}
	return true
}

// AnyApproved reports whether at least one guest is approved at the stage.
func (r *Request) AnyApproved(stage Stage) bool {
	for i := range r.Guests {
		if r.Guests[i].DecisionFor(stage) == DecisionApproved {
			return true
		}
	}
	return false
}

const approvalNumberSuffixLen = 4

const base36Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// NewApprovalNumber builds an externally presentable approval identifier,
// e.g. APV-MK3J2A1B-X7Q2.
func NewApprovalNumber(now time.Time) string {
	ts := strings.ToUpper(strconv.FormatInt(now.UnixMilli(), 36))

	suffix := make([]byte, approvalNumberSuffixLen)
	for i := range suffix {
		suffix[i] = base36Alphabet[rand.Intn(len(base36Alphabet))]
	}

	return fmt.Sprintf("APV-%s-%s", ts, suffix)
}
