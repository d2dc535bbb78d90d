package snagging

import (
	"fmt"
	"path/filepath"
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

type countingRenderer struct{ n int }

func (r *countingRenderer) RenderSnagging(s *Snagging) (string, error) {
	r.n++
	return fmt.Sprintf("/files/snaggings/%s-%d.pdf", s.ID, r.n), nil
}

type fixture struct {
	svc      *Service
	units    *unit.Repository
	renderer *countingRenderer
	unitID   string
}

func setup(t *testing.T) *fixture {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	for _, a := range []workflow.Actor{admin, owner, other} {
		_, err := database.Exec(
			"INSERT INTO users (id, email, name, role, created_at) VALUES (?, ?, ?, ?, ?)",
			a.ID, a.ID+"@example.com", "User "+a.ID, string(a.Role), time.Now().UTC(),
		)
		require.NoError(t, err)
	}

	units := unit.NewRepository(database)
	p, err := units.CreateProject(unit.ProjectInput{Name: "Marina"})
	require.NoError(t, err)
	ownerID := owner.ID
	u, err := units.Create(unit.CreateInput{ProjectID: p.ID, Name: "A-101", OwnerID: &ownerID})
	require.NoError(t, err)

	r := &countingRenderer{}
	msgs := message.NewService(message.NewRepository(database), message.ThreadSnagging)
	return &fixture{
		svc:      NewService(NewRepository(database), units, msgs, r, nil),
		units:    units,
		renderer: r,
		unitID:   u.ID,
	}
}

func TestCreatePriorityRules(t *testing.T) {
	f := setup(t)

	tests := []struct {
		name      string
		actor     workflow.Actor
		requested workflow.Priority
		want      workflow.Priority
	}{
		{"owner asking urgent gets medium", owner, workflow.PriorityUrgent, workflow.PriorityMedium},
		{"owner with no priority gets medium", owner, "", workflow.PriorityMedium},
		{"admin with no priority gets medium", admin, "", workflow.PriorityMedium},
		{"admin keeps requested priority", admin, workflow.PriorityHigh, workflow.PriorityHigh},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sn, err := f.svc.Create(tt.actor, CreateInput{UnitID: f.unitID, Title: "Cracked tile", Priority: tt.requested})
			require.NoError(t, err)
			assert.Equal(t, tt.want, sn.Priority)
			assert.Equal(t, workflow.SnaggingDraft, sn.Status)
			assert.Equal(t, owner.ID, sn.OwnerID)
			assert.Equal(t, tt.actor.Role, sn.CreatedBy.Role)
			assert.Equal(t, "User "+tt.actor.ID, sn.CreatedBy.Name)
		})
	}
}

func TestPriorityFixedAfterCreate(t *testing.T) {
	f := setup(t)
	sn, err := f.svc.Create(admin, CreateInput{UnitID: f.unitID, Title: "Cracked tile", Priority: workflow.PriorityUrgent})
	require.NoError(t, err)

	title := "Cracked tile, kitchen"
	items := []ItemInput{{Category: "floor", Label: "tile"}}
	sn, err = f.svc.Update(admin, sn.ID, UpdateInput{Title: &title, Items: &items})
	require.NoError(t, err)
	assert.Equal(t, title, sn.Title)
	assert.Len(t, sn.Items, 1)
	assert.Equal(t, workflow.PriorityUrgent, sn.Priority)

	owned, err := f.svc.Create(owner, CreateInput{UnitID: f.unitID, Title: "Leak"})
	require.NoError(t, err)
	owned, err = f.svc.Update(admin, owned.ID, UpdateInput{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, workflow.PriorityMedium, owned.Priority)
}

func TestCreateLimits(t *testing.T) {
	f := setup(t)

	tooManyItems := make([]ItemInput, MaxItems+1)
	for i := range tooManyItems {
		tooManyItems[i] = ItemInput{Category: "wall", Label: fmt.Sprintf("crack %d", i)}
	}
	_, err := f.svc.Create(admin, CreateInput{UnitID: f.unitID, Title: "Many", Items: tooManyItems})
	ve, ok := validate.As(err)
	require.True(t, ok, "err = %v", err)
	assert.Contains(t, ve.Fields, "items")

	tooManyImages := []ItemInput{{Category: "wall", Label: "crack", Images: []string{"1", "2", "3", "4", "5", "6"}}}
	_, err = f.svc.Create(admin, CreateInput{UnitID: f.unitID, Title: "Photos", Items: tooManyImages})
	ve, ok = validate.As(err)
	require.True(t, ok, "err = %v", err)
	assert.Contains(t, ve.Fields, "items[0].images")

	exact := make([]ItemInput, MaxItems)
	for i := range exact {
		exact[i] = ItemInput{Category: "wall", Label: "x", Images: []string{"a", "b", "c", "d", "e"}}
	}
	sn, err := f.svc.Create(admin, CreateInput{UnitID: f.unitID, Title: "Full", Items: exact})
	require.NoError(t, err)
	assert.Len(t, sn.Items, MaxItems)
	assert.Len(t, sn.Items[0].Images, MaxImagesPerItem)
}

func TestCreateOtherOwnersUnitForbidden(t *testing.T) {
	f := setup(t)
	_, err := f.svc.Create(other, CreateInput{UnitID: f.unitID, Title: "Not mine"})
	assert.ErrorIs(t, err, workflow.ErrForbidden)
}

func TestLifecycle(t *testing.T) {
	f := setup(t)
	sn, err := f.svc.Create(admin, CreateInput{UnitID: f.unitID, Title: "Paint"})
	require.NoError(t, err)

	_, err = f.svc.Accept(owner, sn.ID)
	assert.ErrorIs(t, err, workflow.ErrTransitionNotAllowed, "accept from DRAFT")

	at := time.Now().Add(48 * time.Hour).UTC().Truncate(time.Second)
	sn, err = f.svc.Schedule(admin, sn.ID, ScheduleInput{ScheduledAt: &at})
	require.NoError(t, err)
	require.NotNil(t, sn.ScheduledAt)
	assert.True(t, at.Equal(*sn.ScheduledAt))

	sn, err = f.svc.Send(admin, sn.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.SnaggingSentToOwner, sn.Status)

	_, err = f.svc.Accept(admin, sn.ID)
	assert.ErrorIs(t, err, workflow.ErrTransitionNotAllowed, "admin accept")

	sn, err = f.svc.Sign(owner, sn.ID, SignatureInput{Signature: "sig"})
	require.NoError(t, err)
	assert.Equal(t, workflow.SnaggingSentToOwner, sn.Status)

	sn, err = f.svc.Accept(owner, sn.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.SnaggingAccepted, sn.Status)
	require.NotNil(t, sn.PDFURL)
	assert.NotNil(t, sn.AcceptedAt)

	first := *sn.PDFURL
	sn, err = f.svc.RegeneratePDF(admin, sn.ID)
	require.NoError(t, err)
	assert.NotEqual(t, first, *sn.PDFURL)

	_, err = f.svc.Cancel(admin, sn.ID)
	assert.ErrorIs(t, err, workflow.ErrTransitionNotAllowed, "cancel after accept")
}

func TestAcceptLosingRaceRendersNothing(t *testing.T) {
	f := setup(t)
	sn, err := f.svc.Create(admin, CreateInput{UnitID: f.unitID, Title: "Paint"})
	require.NoError(t, err)
	_, err = f.svc.Send(admin, sn.ID)
	require.NoError(t, err)

	// An admin cancels between the owner's read and the accept being stored.
	f.svc.now = func() time.Time {
		require.NoError(t, f.svc.repo.Transition(sn.ID, workflow.SnaggingSentToOwner, workflow.SnaggingCancelled, Changes{}))
		return time.Now().UTC()
	}
	_, err = f.svc.Accept(owner, sn.ID)
	assert.ErrorIs(t, err, ErrConflict)
	assert.Zero(t, f.renderer.n)

	sn, err = f.svc.Get(admin, sn.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.SnaggingCancelled, sn.Status)
	assert.Nil(t, sn.PDFURL)
}

func TestSendWithoutOwner(t *testing.T) {
	f := setup(t)
	empty := ""
	_, err := f.units.Update(f.unitID, unit.UpdateInput{OwnerID: &empty})
	require.NoError(t, err)

	sn, err := f.svc.Create(admin, CreateInput{UnitID: f.unitID, Title: "Orphan"})
	require.NoError(t, err)
	_, err = f.svc.Send(admin, sn.ID)
	assert.ErrorIs(t, err, ErrNoOwner)
}

func TestVisibility(t *testing.T) {
	f := setup(t)
	sn, err := f.svc.Create(admin, CreateInput{UnitID: f.unitID, Title: "Window"})
	require.NoError(t, err)

	_, err = f.svc.Get(other, sn.ID)
	assert.ErrorIs(t, err, workflow.ErrForbidden)

	mine, total, err := f.svc.Mine(owner, ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, mine, 1)

	theirs, total, err := f.svc.List(other, ListOptions{UnitID: f.unitID})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, theirs)
}

func TestMessagesIndependentOfStatus(t *testing.T) {
	f := setup(t)
	sn, err := f.svc.Create(admin, CreateInput{UnitID: f.unitID, Title: "Door"})
	require.NoError(t, err)
	_, err = f.svc.Cancel(admin, sn.ID)
	require.NoError(t, err)

	m, err := f.svc.PostMessage(owner, sn.ID, message.Input{Body: "Why cancelled?"})
	require.NoError(t, err)

	_, err = f.svc.EditMessage(admin, sn.ID, m.ID, message.Input{Body: "edited"})
	assert.ErrorIs(t, err, workflow.ErrForbidden)

	require.NoError(t, f.svc.DeleteMessage(admin, sn.ID, m.ID))
	msgs, err := f.svc.Messages(owner, sn.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}
