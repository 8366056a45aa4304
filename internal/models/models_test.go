package models

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeTags(t *testing.T) {
	tags, err := NormalizeTags([]string{"  Water ", "PRESSURE", "water", "", "pipes"})
	require.NoError(t, err)
	assert.Equal(t, []string{"water", "pressure", "pipes"}, tags)
}

func TestNormalizeTags_Limits(t *testing.T) {
	_, err := NormalizeTags([]string{strings.Repeat("x", MaxTagLength+1)})
	require.Error(t, err)

	_, err = NormalizeTags([]string{"a", "b", "c", "d", "e", "f"})
	require.Error(t, err)

	// Duplicates collapse before the cap applies.
	tags, err := NormalizeTags([]string{"a", "A", "b", "B", "c", "d", "e"})
	require.NoError(t, err)
	assert.Len(t, tags, 5)
}

func TestValidPhone(t *testing.T) {
	assert.True(t, ValidPhone("+998901234567"))
	assert.False(t, ValidPhone("998901234567"))
	assert.False(t, ValidPhone("+99890123456"))   // too short
	assert.False(t, ValidPhone("+9989012345678")) // too long
	assert.False(t, ValidPhone("+7 900 1234567"))
}

func TestValidPassword(t *testing.T) {
	assert.True(t, ValidPassword("abcde1"))
	assert.False(t, ValidPassword("abc1"))      // too short
	assert.False(t, ValidPassword("abcdefgh"))  // no digit
}

func TestPaginationNormalize(t *testing.T) {
	p := PaginationParams{Page: 0, Limit: 0}
	p.Normalize()
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 10, p.Limit)

	p = PaginationParams{Page: 3, Limit: 500}
	p.Normalize()
	assert.Equal(t, 100, p.Limit)
	assert.Equal(t, 200, p.Offset())
}

func TestNewPaginationMeta(t *testing.T) {
	meta := NewPaginationMeta(PaginationParams{Page: 2, Limit: 10}, 25)
	assert.Equal(t, 3, meta.TotalPages)
	assert.True(t, meta.HasNext)
	assert.True(t, meta.HasPrev)

	meta = NewPaginationMeta(PaginationParams{Page: 3, Limit: 10}, 25)
	assert.False(t, meta.HasNext)
}

func TestAnonymousUserCarriesNoIdentity(t *testing.T) {
	anon := AnonymousUser()
	assert.Zero(t, anon.ID)
	assert.Equal(t, "Anonymous", anon.FirstName)
	assert.Nil(t, anon.AvatarURL)
}

func TestUserPublicStripsPrivateFields(t *testing.T) {
	u := &User{ID: 7, FirstName: "Aziz", LastName: "Karimov", Email: "a@b.c", PasswordHash: "hash"}
	pub := u.Public()
	assert.Equal(t, int64(7), pub.ID)
	assert.Equal(t, "Aziz", pub.FirstName)
}
