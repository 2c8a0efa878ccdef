package user

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilter(t *testing.T) {
	users := seedUsers()

	assert.Len(t, Filter(users, ""), 3)

	matched := Filter(users, "ERVIN")
	assert.Len(t, matched, 1)
	assert.Equal(t, 2, matched[0].ID)

	// Only names are searched.
	assert.Empty(t, Filter(users, "Bret"))
}

func TestNextID(t *testing.T) {
	users := seedUsers()

	assert.Equal(t, 11, nextID(users, 11))
	assert.Equal(t, 4, nextID(users, 2), "taken IDs fall back to max+1")
	assert.Equal(t, 4, nextID(users, 0))
	assert.Equal(t, 1, nextID(nil, 0))
}
