// Package panel drives the per-user permission panel: one toggle per
// sub-account, each toggle a store write, an audit entry, a notification and
// a reload.
package panel

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/juju/errors"
	"github.com/juju/loggo"

	"agency-hub/internal/activity"
	"agency-hub/internal/model"
	"agency-hub/internal/notify"
	"agency-hub/internal/permission"
)

var logger = loggo.GetLogger("agencyhub.panel")

const (
	// ErrNoUserContext is returned when a change is requested without an
	// authenticated actor.
	ErrNoUserContext = errors.ConstError("no authenticated user")
	// ErrBusy is returned while another change on the same panel is in flight.
	ErrBusy = errors.ConstError("a permission change is already in progress")
)

// RefreshScope is the refresh scope pushed after every change.
const RefreshScope = "permissions"

// Scope tells whether the panel is opened from the agency or a sub-account.
type Scope string

const (
	ScopeAgency     Scope = "agency"
	ScopeSubAccount Scope = "subaccount"
)

func ParseScope(s string) (Scope, error) {
	switch sc := Scope(s); sc {
	case ScopeAgency, ScopeSubAccount:
		return sc, nil
	case "":
		return ScopeAgency, nil
	}
	return "", errors.NotValidf("panel scope %q", s)
}

// PermissionService is the part of permission.Service the panel uses.
type PermissionService interface {
	ForUser(ctx context.Context, email string) ([]model.Permission, error)
	Change(ctx context.Context, req permission.ChangeRequest) (*model.Permission, error)
}

// ActivityRecorder writes audit entries.
type ActivityRecorder interface {
	Record(ctx context.Context, e activity.Entry) activity.Receipt
}

// State is what the panel renders.
type State struct {
	Permissions []model.Permission `json:"permissions"`
	Loading     bool               `json:"loading"`
}

// Access reports the access flag for subAccountID. A missing record means
// no access.
func (s State) Access(subAccountID string) bool {
	if p := model.FindPermission(s.Permissions, subAccountID); p != nil {
		return p.Access
	}
	return false
}

// Result describes a completed ChangePermission call.
type Result struct {
	Permission   *model.Permission
	Notification notify.Notification
	// Activity is set when the change was agency scoped.
	Activity *activity.Receipt
}

// Target is the user whose permissions the panel edits.
type Target struct {
	Email string
	Name  string
}

type Panel struct {
	scope    Scope
	perms    PermissionService
	recorder ActivityRecorder
	notifier notify.Notifier

	busy atomic.Bool

	mu     sync.RWMutex
	target Target
	state  State
}

func New(target Target, scope Scope, perms PermissionService, recorder ActivityRecorder, notifier notify.Notifier) *Panel {
	return &Panel{
		target:   target,
		scope:    scope,
		perms:    perms,
		recorder: recorder,
		notifier: notifier,
	}
}

// State returns a copy of the current panel state.
func (p *Panel) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	perms := make([]model.Permission, len(p.state.Permissions))
	copy(perms, p.state.Permissions)
	return State{Permissions: perms, Loading: p.state.Loading}
}

func (p *Panel) Target() Target {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.target
}

func (p *Panel) setTarget(t Target) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.target = t
}

// Busy reports whether a change is in flight.
func (p *Panel) Busy() bool {
	return p.busy.Load()
}

// Load replaces the state with the stored permissions of the target user.
// On error the previous permissions are kept.
func (p *Panel) Load(ctx context.Context) error {
	p.mu.Lock()
	p.state.Loading = true
	email := p.target.Email
	p.mu.Unlock()

	perms, err := p.perms.ForUser(ctx, email)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.Loading = false
	if err != nil {
		return errors.Annotatef(err, "loading permissions of %s", email)
	}
	p.state.Permissions = perms
	return nil
}

// ChangePermission sets the target user's access to subAccountID. When
// existingID is blank the id is taken from the loaded state, or minted if
// the user has no record for the sub-account yet.
//
// The store write and the audit entry are separate steps: an audit write
// failure is queued by the recorder and does not undo or fail the change.
// Every call that gets past the preconditions ends with a reload of the
// stored state and a refresh pushed to the actor.
func (p *Panel) ChangePermission(ctx context.Context, actor *model.Actor, subAccountID string, access bool, existingID string) (Result, error) {
	if actor == nil || actor.Email == "" {
		return Result{}, ErrNoUserContext
	}
	if !p.busy.CompareAndSwap(false, true) {
		return Result{}, ErrBusy
	}
	defer p.busy.Store(false)

	target := p.Target()
	before := p.State()
	if existingID == "" {
		if prev := model.FindPermission(before.Permissions, subAccountID); prev != nil {
			existingID = prev.ID
		} else {
			existingID = uuid.NewString()
		}
	}

	var result Result
	perm, err := p.perms.Change(ctx, permission.ChangeRequest{
		PermissionID: existingID,
		UserEmail:    target.Email,
		SubAccountID: subAccountID,
		Access:       access,
	})
	if err == nil {
		result.Permission = perm
		if p.scope == ScopeAgency {
			receipt := p.recorder.Record(ctx, activity.Entry{
				Description:  describeChange(target, subAccountName(perm, before, subAccountID), access),
				SubAccountID: subAccountID,
				AgencyID:     actor.AgencyID,
			})
			result.Activity = &receipt
		}
		result.Notification = notify.Success("The request completed successfully")
		p.patch(*perm)
	} else {
		logger.Warningf("changing access of %s to %s: %v", target.Email, subAccountID, err)
		result.Notification = notify.Failure("Could not update permissions")
	}
	p.notifier.Notify(actor.UserID, result.Notification)

	if loadErr := p.Load(ctx); loadErr != nil {
		logger.Errorf("%v", loadErr)
	}
	p.notifier.Refresh(actor.UserID, RefreshScope)

	if err != nil {
		return result, errors.Trace(err)
	}
	return result, nil
}

// patch commits perm into the loaded state ahead of the reload.
func (p *Panel) patch(perm model.Permission) {
	p.mu.Lock()
	defer p.mu.Unlock()
	perms := make([]model.Permission, len(p.state.Permissions))
	copy(perms, p.state.Permissions)
	if prev := model.FindPermission(perms, perm.SubAccountID); prev != nil {
		*prev = perm
	} else {
		perms = append(perms, perm)
	}
	p.state.Permissions = perms
}

func subAccountName(perm *model.Permission, st State, subAccountID string) string {
	if perm != nil && perm.SubAccount.Name != "" {
		return perm.SubAccount.Name
	}
	if prev := model.FindPermission(st.Permissions, subAccountID); prev != nil && prev.SubAccount.Name != "" {
		return prev.SubAccount.Name
	}
	return subAccountID
}

func describeChange(target Target, subAccount string, access bool) string {
	name := target.Name
	if name == "" {
		name = target.Email
	}
	if access {
		return fmt.Sprintf("Access granted to %s for | %s", name, subAccount)
	}
	return fmt.Sprintf("Access revoked from %s for | %s", name, subAccount)
}
