package roster

import (
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvl-at/openkeg/internal/domain"
)

func TestCacheStartsEmpty(t *testing.T) {
	t.Parallel()

	c := NewCache()
	snap := c.Snapshot()
	assert.Empty(t, snap.Members)
	assert.Empty(t, snap.Sutlers)
	assert.Empty(t, snap.Honorary)
	assert.Empty(t, snap.Registers)
	assert.Empty(t, snap.Executives)
	assert.Empty(t, snap.ByRegister)

	_, ok := c.Find("anyone")
	assert.False(t, ok)
}

func TestReplaceAllSortsAndJoins(t *testing.T) {
	t.Parallel()

	members := []domain.Member{
		{Username: "zed", FullUsername: "uid=zed,ou=people", FirstName: "Zed", LastName: "Berger", Joining: 2010},
		{Username: "bob", FullUsername: "uid=bob,ou=people", FirstName: "Bob", LastName: "Abel", Joining: 2005},
		{Username: "ann", FullUsername: "uid=ann,ou=people", FirstName: "Ann", LastName: "Abel", Joining: 2005},
	}
	registers := []domain.Group{
		{Name: "Trumpet", NamePlural: "Trumpets", Members: []string{
			"uid=zed,ou=people",
			"uid=ann,ou=people",
			"uid=ghost,ou=people",
		}},
		{Name: "Horn", NamePlural: "Horns", Members: []string{"uid=bob,ou=people"}},
	}

	c := NewCache()
	c.ReplaceAll(members, nil, nil, registers, nil)
	snap := c.Snapshot()

	require.Len(t, snap.Members, 3)
	assert.Equal(t, "ann", snap.Members[0].Username)
	assert.Equal(t, "bob", snap.Members[1].Username)
	assert.Equal(t, "zed", snap.Members[2].Username)

	require.Len(t, snap.Registers, 2)
	assert.Equal(t, "Horn", snap.Registers[0].Name)
	assert.Equal(t, "Trumpet", snap.Registers[1].Name)

	require.Len(t, snap.ByRegister, 2)
	horn := snap.ByRegister[0]
	assert.Equal(t, "Horn", horn.Register.Name)
	require.Len(t, horn.Members, 1)
	assert.Equal(t, "bob", horn.Members[0].Username)

	// Unknown DNs are skipped, member order follows the global sort.
	trumpet := snap.ByRegister[1]
	require.Len(t, trumpet.Members, 2)
	assert.Equal(t, "ann", trumpet.Members[0].Username)
	assert.Equal(t, "zed", trumpet.Members[1].Username)
}

func TestReplaceAllDoesNotMutateInput(t *testing.T) {
	t.Parallel()

	members := []domain.Member{
		{Username: "b", LastName: "B", Joining: 2},
		{Username: "a", LastName: "A", Joining: 1},
	}

	c := NewCache()
	c.ReplaceAll(members, nil, nil, nil, nil)

	assert.Equal(t, "b", members[0].Username)
	assert.Equal(t, "a", members[1].Username)
}

func TestFindByUsernameOrMail(t *testing.T) {
	t.Parallel()

	c := NewCache()
	c.ReplaceAll([]domain.Member{
		{Username: "karli", FullUsername: "uid=karli,ou=people", Mail: []string{"karli@example.org", "karl@mvl.at"}},
		{Username: "mitzi", FullUsername: "uid=mitzi,ou=people"},
	}, nil, nil, nil, nil)

	tests := []struct {
		id   string
		want string
		ok   bool
	}{
		{"karli", "karli", true},
		{"KARLI", "karli", true},
		{"Karl@MVL.at", "karli", true},
		{"mitzi", "mitzi", true},
		{"nobody", "", false},
	}
	for _, tc := range tests {
		m, ok := c.Find(tc.id)
		assert.Equal(t, tc.ok, ok, "Find(%q)", tc.id)
		if tc.ok {
			assert.Equal(t, tc.want, m.Username, "Find(%q)", tc.id)
		}
	}
}

// TestSnapshotConsistency hammers the cache with alternating generations
// while readers assert that every snapshot is internally homogeneous.
// Each generation tags all collections with the same marker, so a torn
// read would surface as a marker mismatch.
func TestSnapshotConsistency(t *testing.T) {
	t.Parallel()

	generation := func(marker string) ([]domain.Member, []domain.Group) {
		return []domain.Member{
				{Username: "m-" + marker, FullUsername: "uid=m,ou=people", FirstName: marker},
			}, []domain.Group{
				{Name: "g", Description: marker, Members: []string{"uid=m,ou=people"}},
			}
	}

	c := NewCache()
	members, groups := generation("0")
	c.ReplaceAll(members, members, members, groups, groups)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 1; i <= 500; i++ {
			m, g := generation(strconv.Itoa(i))
			c.ReplaceAll(m, m, m, g, g)
		}
	}()

	var wg sync.WaitGroup
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				snap := c.Snapshot()
				marker := snap.Members[0].FirstName
				assert.Equal(t, marker, snap.Sutlers[0].FirstName)
				assert.Equal(t, marker, snap.Honorary[0].FirstName)
				assert.Equal(t, marker, snap.Registers[0].Description)
				assert.Equal(t, marker, snap.Executives[0].Description)
				assert.Equal(t, marker, snap.ByRegister[0].Members[0].FirstName)
			}
		}()
	}
	wg.Wait()
}
