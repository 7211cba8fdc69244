package outreach

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLocationLabel(t *testing.T) {
	assert.Equal(t, "N/A", Location{}.Label())
	assert.Equal(t, "N/A", Location{Village: "  "}.Label())
	assert.Equal(t, "Mutomo, Kitui South", Location{Village: "Mutomo", SubCounty: "Kitui South"}.Label())
	assert.Equal(t, "Kasaala, Ikutha, Kitui South", Location{SubCounty: "Kitui South", Ward: "Ikutha", Village: "Kasaala"}.Label())
}
