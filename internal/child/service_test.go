package child

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kidshive/internal/apierr"
	"kidshive/internal/attendance"
	"kidshive/internal/store"
)

func newService(t *testing.T) (*Service, *store.DB) {
	t.Helper()
	db, err := store.NewDB(context.Background(), store.DriverSQLite, filepath.Join(t.TempDir(), "children.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	gdb, err := db.Gorm(0)
	require.NoError(t, err)
	return NewService(NewStore(gdb)), db
}

func strPtr(s string) *string { return &s }

func TestCreateAndGet(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	created, err := svc.CreateChild(ctx, Input{
		Name:      "  Ada  ",
		DOB:       "2021-05-04",
		Allergies: strPtr("peanuts"),
		ParentIDs: []string{"p1", "p2"},
		Parents:   []ParentInput{{ParentID: "p1", Relationship: RelationshipMother}},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "Ada", created.Name)
	require.NotNil(t, created.DOB)
	assert.Equal(t, "2021-05-04", created.DOB.Format("2006-01-02"))
	require.NotNil(t, created.Allergies)
	assert.Equal(t, "peanuts", *created.Allergies)
	assert.Nil(t, created.Medications)
	require.Len(t, created.Parents, 2)

	rel := map[string]string{}
	for _, p := range created.Parents {
		rel[p.ParentID] = p.Relationship
	}
	assert.Equal(t, map[string]string{"p1": RelationshipMother, "p2": RelationshipGuardian}, rel)

	got, err := svc.GetChild(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
}

func TestCreateValidation(t *testing.T) {
	svc, _ := newService(t)
	cases := []struct {
		name string
		in   Input
	}{
		{"no name", Input{ParentIDs: []string{"p1"}}},
		{"blank name", Input{Name: "   ", ParentIDs: []string{"p1"}}},
		{"no parents", Input{Name: "Ada"}},
		{"bad dob", Input{Name: "Ada", DOB: "04/05/2021", ParentIDs: []string{"p1"}}},
		{"bad relationship", Input{Name: "Ada", Parents: []ParentInput{{ParentID: "p1", Relationship: "AUNT"}}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateChild(context.Background(), tc.in)
			require.Error(t, err)
			assert.Equal(t, apierr.CodeInvalidArgument, apierr.CodeOf(err))
		})
	}
}

func TestGetMissing(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.GetChild(context.Background(), "nope")
	assert.Equal(t, apierr.CodeNotFound, apierr.CodeOf(err))
}

func TestUpdateReplacesFields(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	created, err := svc.CreateChild(ctx, Input{Name: "Ada", Allergies: strPtr("peanuts"), ParentIDs: []string{"p1"}})
	require.NoError(t, err)

	updated, err := svc.UpdateChild(ctx, created.ID, Input{Name: "Ada L", Medications: strPtr("inhaler")})
	require.NoError(t, err)
	assert.Equal(t, "Ada L", updated.Name)
	assert.Nil(t, updated.Allergies)
	require.NotNil(t, updated.Medications)
	assert.Equal(t, "inhaler", *updated.Medications)
	assert.Len(t, updated.Parents, 1, "links survive updates")

	_, err = svc.UpdateChild(ctx, "nope", Input{Name: "x"})
	assert.Equal(t, apierr.CodeNotFound, apierr.CodeOf(err))
}

func TestListAndChildrenOfParent(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	_, err := svc.CreateChild(ctx, Input{Name: "Zoe", ParentIDs: []string{"p1"}})
	require.NoError(t, err)
	ada, err := svc.CreateChild(ctx, Input{Name: "Ada", ParentIDs: []string{"p1", "p2"}})
	require.NoError(t, err)

	all, err := svc.ListChildren(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Ada", all[0].Name)

	mine, err := svc.ChildrenOfParent(ctx, "p2")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, ada.ID, mine[0].ID)

	none, err := svc.ChildrenOfParent(ctx, "p9")
	require.NoError(t, err)
	assert.Empty(t, none)

	ok, err := svc.IsGuardian(ctx, ada.ID, "p2")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = svc.IsGuardian(ctx, ada.ID, "p9")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDeleteCascadesAttendance(t *testing.T) {
	ctx := context.Background()
	svc, db := newService(t)
	created, err := svc.CreateChild(ctx, Input{Name: "Ada", ParentIDs: []string{"p1"}})
	require.NoError(t, err)

	repo := attendance.NewRepository(db.Client)
	_, _, err = repo.Upsert(ctx, attendance.Upsert{
		ChildID: created.ID,
		Day:     "2024-03-01",
		Status:  attendance.StatusPresent,
		Meals:   []attendance.Meal{{Type: attendance.MealLunch, Food: "pasta"}},
	})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteChild(ctx, created.ID))

	for _, table := range []string{"children", "child_parents", "attendance_records", "meals"} {
		var n int
		require.NoError(t, db.Client.QueryRow(`SELECT COUNT(*) FROM `+table).Scan(&n))
		assert.Zero(t, n, table)
	}

	err = svc.DeleteChild(ctx, created.ID)
	assert.Equal(t, apierr.CodeNotFound, apierr.CodeOf(err))
}
