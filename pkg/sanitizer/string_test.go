package sanitizer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/campushub/identity/pkg/sanitizer"
)

func TestToLower_TurkishCasing(t *testing.T) {
	t.Parallel()

	// Turkish casing: dotted and dotless i are distinct letters.
	assert.Equal(t, "kulüp", sanitizer.ToLower("KULÜP"))
	assert.Equal(t, "ıstanbul", sanitizer.ToLower("ISTANBUL"))
	assert.Equal(t, "izmir", sanitizer.ToLower("İZMİR"))
}

func TestTrimLower(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "satranç kulübü", sanitizer.TrimLower("  SATRANÇ KULÜBÜ  "))
	assert.Equal(t, "", sanitizer.TrimLower("   "))
}

func TestNormalizeEmail(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "ada@uni.edu", sanitizer.NormalizeEmail("  Ada@Uni.EDU "))
	// Malformed addresses come back trimmed and lowered unchanged.
	assert.Equal(t, "not-an-email", sanitizer.NormalizeEmail(" Not-An-Email "))
}

func TestEmailLocalPart(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "ada.lovelace", sanitizer.EmailLocalPart("Ada.Lovelace@uni.edu"))
	assert.Equal(t, "", sanitizer.EmailLocalPart("no-at-sign"))
}

func TestNormalizeUsername(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "chess_club", sanitizer.NormalizeUsername(" CHESS_CLUB "))
}
