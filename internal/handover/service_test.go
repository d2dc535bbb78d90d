package handover

import (
	"database/sql"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evcraddock/propdesk/internal/db"
	"github.com/evcraddock/propdesk/internal/message"
	"github.com/evcraddock/propdesk/internal/unit"
	"github.com/evcraddock/propdesk/internal/validate"
	"github.com/evcraddock/propdesk/internal/workflow"
)

var (
	admin = workflow.Actor{ID: "admin-1", Role: workflow.RoleAdmin}
	owner = workflow.Actor{ID: "owner-1", Role: workflow.RoleOwner}
	other = workflow.Actor{ID: "owner-2", Role: workflow.RoleOwner}
)

type fakeRenderer struct{ calls int }

func (f *fakeRenderer) RenderHandover(h *Handover) (string, error) {
	f.calls++
	return "/files/handovers/" + h.ID + ".pdf", nil
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []string
}

func (f *fakeNotifier) NotifyOwner(ownerID, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, ownerID)
	return nil
}

type fixture struct {
	svc      *Service
	repo     *Repository
	units    *unit.Repository
	renderer *fakeRenderer
	notifier *fakeNotifier
	unitID   string
}

func setup(t *testing.T) *fixture {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	seedUsers(t, database)

	units := unit.NewRepository(database)
	p, err := units.CreateProject(unit.ProjectInput{Name: "Marina"})
	require.NoError(t, err)
	ownerID := owner.ID
	u, err := units.Create(unit.CreateInput{ProjectID: p.ID, Name: "A-101", OwnerID: &ownerID})
	require.NoError(t, err)

	repo := NewRepository(database)
	f := &fixture{
		repo:     repo,
		units:    units,
		renderer: &fakeRenderer{},
		notifier: &fakeNotifier{},
		unitID:   u.ID,
	}
	msgs := message.NewService(message.NewRepository(database), message.ThreadHandover)
	f.svc = NewService(repo, units, msgs, f.renderer, f.notifier)
	return f
}

func seedUsers(t *testing.T, database *sql.DB) {
	t.Helper()
	for _, a := range []workflow.Actor{admin, owner, other} {
		_, err := database.Exec(
			"INSERT INTO users (id, email, role, created_at) VALUES (?, ?, ?, ?)",
			a.ID, a.ID+"@example.com", string(a.Role), time.Now().UTC(),
		)
		require.NoError(t, err)
	}
}

func (f *fixture) create(t *testing.T) *Handover {
	t.Helper()
	h, err := f.svc.Create(admin, CreateInput{
		UnitID:  f.unitID,
		OwnerID: owner.ID,
		Items:   []ItemInput{{Category: "keys", Label: "Front door", ExpectedValue: "2"}},
	})
	require.NoError(t, err)
	return h
}

func TestCreate(t *testing.T) {
	f := setup(t)
	h := f.create(t)

	assert.Equal(t, workflow.HandoverDraft, h.Status)
	assert.Equal(t, owner.ID, h.OwnerID)
	require.Len(t, h.Items, 1)
	assert.Equal(t, "Front door", h.Items[0].Label)
	assert.Nil(t, h.PDFURL)
}

func TestCreateRejectsOwner(t *testing.T) {
	f := setup(t)
	_, err := f.svc.Create(owner, CreateInput{UnitID: f.unitID, OwnerID: owner.ID})
	assert.ErrorIs(t, err, workflow.ErrForbidden)
}

func TestCreateRequiresUnitOwner(t *testing.T) {
	f := setup(t)
	empty := ""
	_, err := f.units.Update(f.unitID, unit.UpdateInput{OwnerID: &empty})
	require.NoError(t, err)

	_, err = f.svc.Create(admin, CreateInput{UnitID: f.unitID, OwnerID: owner.ID})
	assert.ErrorIs(t, err, ErrNoOwnerAssigned)
}

func TestCreateOwnerMismatch(t *testing.T) {
	f := setup(t)
	_, err := f.svc.Create(admin, CreateInput{UnitID: f.unitID, OwnerID: other.ID})
	ve, ok := validate.As(err)
	require.True(t, ok, "err = %v", err)
	assert.Contains(t, ve.Fields, "ownerId")
}

func TestCreateSecondActiveConflicts(t *testing.T) {
	f := setup(t)
	first := f.create(t)

	_, err := f.svc.Create(admin, CreateInput{UnitID: f.unitID, OwnerID: owner.ID})
	assert.ErrorIs(t, err, ErrActiveHandoverExists)

	_, err = f.svc.Apply(admin, first.ID, workflow.ActionCancel, ActionInput{})
	require.NoError(t, err)

	again, err := f.svc.Create(admin, CreateInput{UnitID: f.unitID, OwnerID: owner.ID})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, again.ID)
}

func TestRepositoryInsertEnforcesUniqueness(t *testing.T) {
	f := setup(t)
	f.create(t)

	// Bypass the service check: the index alone must refuse it.
	_, err := f.repo.Insert(CreateInput{UnitID: f.unitID, OwnerID: owner.ID})
	assert.ErrorIs(t, err, ErrActiveHandoverExists)
}

func TestFullLifecycle(t *testing.T) {
	f := setup(t)
	h := f.create(t)

	h, err := f.svc.Apply(admin, h.ID, workflow.ActionSend, ActionInput{})
	require.NoError(t, err)
	assert.Equal(t, workflow.HandoverSentToOwner, h.Status)
	assert.Equal(t, []string{owner.ID}, f.notifier.sent)

	h, err = f.svc.Apply(owner, h.ID, workflow.ActionRequestChanges, ActionInput{Reason: "Kitchen tap leaks"})
	require.NoError(t, err)
	assert.Equal(t, workflow.HandoverDraft, h.Status)

	msgs, err := f.svc.Messages(owner, h.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "Kitchen tap leaks", msgs[0].Body)

	_, err = f.svc.Apply(admin, h.ID, workflow.ActionSend, ActionInput{})
	require.NoError(t, err)

	sig := "data:image/png;base64,AAAA"
	h, err = f.svc.Apply(owner, h.ID, workflow.ActionAccept, ActionInput{Signature: &sig})
	require.NoError(t, err)
	assert.Equal(t, workflow.HandoverAccepted, h.Status)
	require.NotNil(t, h.PDFURL)
	assert.Equal(t, "/files/handovers/"+h.ID+".pdf", *h.PDFURL)
	assert.NotNil(t, h.OwnerAcceptedAt)
	require.NotNil(t, h.OwnerSignature)
	assert.Equal(t, sig, *h.OwnerSignature)
	assert.Equal(t, 1, f.renderer.calls)
}

func TestAcceptLosingRaceRendersNothing(t *testing.T) {
	f := setup(t)
	h := f.create(t)
	_, err := f.svc.Apply(admin, h.ID, workflow.ActionSend, ActionInput{})
	require.NoError(t, err)

	// An admin cancels between the owner's read and the accept being stored.
	f.svc.now = func() time.Time {
		require.NoError(t, f.repo.Transition(h.ID, workflow.HandoverSentToOwner, workflow.HandoverCancelled, Changes{}))
		return time.Now().UTC()
	}
	_, err = f.svc.Apply(owner, h.ID, workflow.ActionAccept, ActionInput{})
	assert.ErrorIs(t, err, ErrConflict)
	assert.Zero(t, f.renderer.calls)

	h, err = f.svc.Get(admin, h.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.HandoverCancelled, h.Status)
	assert.Nil(t, h.PDFURL)
}

type failingRenderer struct{}

func (failingRenderer) RenderHandover(*Handover) (string, error) {
	return "", errors.New("disk full")
}

func TestAcceptSurvivesRenderFailure(t *testing.T) {
	f := setup(t)
	f.svc.renderer = failingRenderer{}
	h := f.create(t)
	_, err := f.svc.Apply(admin, h.ID, workflow.ActionSend, ActionInput{})
	require.NoError(t, err)

	h, err = f.svc.Apply(owner, h.ID, workflow.ActionAccept, ActionInput{})
	require.NoError(t, err)
	assert.Equal(t, workflow.HandoverAccepted, h.Status)
	assert.Nil(t, h.PDFURL)
}

func TestOwnerConfirmActsAsAccept(t *testing.T) {
	f := setup(t)
	h := f.create(t)
	_, err := f.svc.Apply(admin, h.ID, workflow.ActionSend, ActionInput{})
	require.NoError(t, err)

	h, err = f.svc.Apply(owner, h.ID, workflow.ActionOwnerConfirm, ActionInput{})
	require.NoError(t, err)
	assert.Equal(t, workflow.HandoverAccepted, h.Status)
}

func TestDeprecatedAdminActionsRefused(t *testing.T) {
	f := setup(t)
	h := f.create(t)
	_, err := f.svc.Apply(admin, h.ID, workflow.ActionSend, ActionInput{})
	require.NoError(t, err)

	for _, a := range []workflow.Action{workflow.ActionAdminConfirm, workflow.ActionComplete} {
		_, err := f.svc.Apply(admin, h.ID, a, ActionInput{})
		assert.ErrorIs(t, err, workflow.ErrTransitionNotAllowed, "action %s", a)
	}
}

func TestApplyGatedByTable(t *testing.T) {
	f := setup(t)
	h := f.create(t)

	tests := []struct {
		name   string
		actor  workflow.Actor
		action workflow.Action
	}{
		{"owner cannot send", owner, workflow.ActionSend},
		{"owner cannot accept a draft", owner, workflow.ActionAccept},
		{"admin cannot accept", admin, workflow.ActionAccept},
		{"edit is not a transition", admin, workflow.ActionEdit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Apply(tt.actor, h.ID, tt.action, ActionInput{})
			assert.ErrorIs(t, err, workflow.ErrTransitionNotAllowed)
		})
	}
}

func TestOtherOwnerForbidden(t *testing.T) {
	f := setup(t)
	h := f.create(t)

	_, err := f.svc.Get(other, h.ID)
	assert.ErrorIs(t, err, workflow.ErrForbidden)

	page, total, err := f.svc.List(other, ListOptions{})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, page)
}

func TestUpdateOnlyInDraft(t *testing.T) {
	f := setup(t)
	h := f.create(t)

	notes := "Bring meter reader"
	items := []ItemInput{{Category: "meters", Label: "Water"}, {Category: "meters", Label: "Power"}}
	h, err := f.svc.Update(admin, h.ID, UpdateInput{Notes: &notes, Items: &items})
	require.NoError(t, err)
	require.NotNil(t, h.Notes)
	assert.Equal(t, notes, *h.Notes)
	assert.Len(t, h.Items, 2)

	_, err = f.svc.Apply(admin, h.ID, workflow.ActionSend, ActionInput{})
	require.NoError(t, err)

	_, err = f.svc.Update(admin, h.ID, UpdateInput{Notes: &notes})
	assert.ErrorIs(t, err, workflow.ErrTransitionNotAllowed)
}

func TestTransitionLosesAgainstConcurrentChange(t *testing.T) {
	f := setup(t)
	h := f.create(t)

	require.NoError(t, f.repo.Transition(h.ID, workflow.HandoverDraft, workflow.HandoverSentToOwner, Changes{}))
	err := f.repo.Transition(h.ID, workflow.HandoverDraft, workflow.HandoverCancelled, Changes{})
	assert.True(t, errors.Is(err, ErrConflict))
	assert.True(t, IsConflict(err))
}

func TestListFilters(t *testing.T) {
	f := setup(t)
	h := f.create(t)
	_, err := f.svc.Apply(admin, h.ID, workflow.ActionCancel, ActionInput{})
	require.NoError(t, err)
	f.create(t)

	all, total, err := f.svc.List(admin, ListOptions{UnitID: f.unitID})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, all, 2)

	active, total, err := f.svc.List(owner, ListOptions{UnitID: f.unitID, ActiveOnly: true})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, active, 1)
	assert.Equal(t, workflow.HandoverDraft, active[0].Status)
}

func TestLegacyStatusIsReadOnly(t *testing.T) {
	f := setup(t)
	h := f.create(t)

	// A record left in CHANGES_REQUESTED reads as DRAFT but can only be cancelled.
	_, err := f.repo.db.Exec("UPDATE handovers SET status = ? WHERE id = ?", string(workflow.HandoverChangesRequested), h.ID)
	require.NoError(t, err)

	_, err = f.svc.Apply(admin, h.ID, workflow.ActionSend, ActionInput{})
	assert.ErrorIs(t, err, workflow.ErrTransitionNotAllowed)

	h, err = f.svc.Apply(admin, h.ID, workflow.ActionCancel, ActionInput{})
	require.NoError(t, err)
	assert.Equal(t, workflow.HandoverCancelled, h.Status)
}
