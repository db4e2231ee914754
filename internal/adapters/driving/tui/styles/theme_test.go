package styles

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/boltindex/internal/core/domain"
)

func TestDefaultTheme_ColoursAreDistinct(t *testing.T) {
	theme := DefaultTheme()

	seen := make(map[string]bool)
	for _, c := range []string{
		string(theme.Primary), string(theme.Secondary), string(theme.Muted),
		string(theme.Success), string(theme.Warning), string(theme.Error),
	} {
		assert.NotEmpty(t, c)
		assert.False(t, seen[c], "duplicate colour: %s", c)
		seen[c] = true
	}
}

func TestNewStyles_NilTheme(t *testing.T) {
	styles := NewStyles(nil)

	require.NotNil(t, styles)
	assert.Equal(t, DefaultTheme(), styles.Theme())
}

func TestStyles_TitleIsBold(t *testing.T) {
	assert.True(t, DefaultStyles().Title.GetBold())
}

func TestStyles_ProgressBar(t *testing.T) {
	bar := DefaultStyles().ProgressBar(30)

	assert.Equal(t, 30, bar.Width)
	assert.Contains(t, bar.ViewAs(0.5), "50%")
}

func TestStyles_StepStatus(t *testing.T) {
	styles := DefaultStyles()

	assert.Contains(t, styles.StepStatus(domain.StepCompleted), "done")
	assert.Contains(t, styles.StepStatus(domain.StepFailed), "failed")
	assert.Contains(t, styles.StepStatus(domain.StepRunning), "running")
	assert.Contains(t, styles.StepStatus(domain.StepPending), "pending")
}

func TestStyles_Outcome(t *testing.T) {
	styles := DefaultStyles()

	for _, o := range []domain.Outcome{domain.OutcomeClean, domain.OutcomeDegraded, domain.OutcomePaused, domain.OutcomeFailed} {
		assert.Contains(t, styles.Outcome(o), string(o))
	}
}
