package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssembleQuestion(t *testing.T) {
	t.Parallel()

	got, err := AssembleQuestion("be vaporized", "be crushed by a boulder")
	require.NoError(t, err)

	assert.Equal(t,
		"A runaway trolley is barreling down the tracks. "+
			"If you do nothing, five people will be vaporized. "+
			"If you pull the lever, one person will be crushed by a boulder. "+
			"What should you do?",
		got)
}

func TestValidateFragment(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		fragment string
		wantErr  bool
	}{
		"below minimum": {fragment: "ab", wantErr: true},
		"at minimum":    {fragment: "die"},
		"at maximum":    {fragment: strings.Repeat("a", 500)},
		"above maximum": {fragment: strings.Repeat("a", 501), wantErr: true},
		"multibyte runes count as one": {
			fragment: strings.Repeat("å", 500),
		},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			err := ValidateFragment(tt.fragment)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}
