package render

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardfetch/pkg/api"
)

func TestCardList_PlaceholderForQueued(t *testing.T) {
	r := New()

	tests := []struct {
		name   string
		status string
	}{
		{name: "queued", status: api.StatusQueued},
		{name: "queue_full", status: api.StatusQueueFull},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := r.CardList([]api.CardRecord{{
				Name:       "Ancestral Recall",
				OracleText: "Target player draws three cards.",
				Status:     tt.status,
			}})
			require.NoError(t, err)

			assert.Contains(t, out, "Ancestral Recall")
			assert.Contains(t, out, tt.status)
			assert.Contains(t, out, `class="card pending"`)
			// Placeholder cards carry name and status only.
			assert.NotContains(t, out, "Target player draws three cards.")
		})
	}
}

func TestCardList_FullCard(t *testing.T) {
	r := New()

	out, err := r.CardList([]api.CardRecord{{
		Name:       "Lightning Bolt",
		OracleText: "Lightning Bolt deals 3 damage to any target.",
		ManaCost:   "{R}",
		TypeLine:   "Instant",
		SetName:    "Limited Edition Alpha",
		Status:     api.StatusFound,
	}})
	require.NoError(t, err)

	assert.Contains(t, out, "Lightning Bolt deals 3 damage to any target.")
	assert.Contains(t, out, "{R}")
	assert.Contains(t, out, "Instant")
	assert.Contains(t, out, "Limited Edition Alpha")
	assert.Contains(t, out, api.StatusFound)
}

func TestCardList_UnknownStatusRendersFullCard(t *testing.T) {
	r := New()

	// Status labels are open-ended; anything not recognized as a queue
	// state must still render.
	out, err := r.CardList([]api.CardRecord{{
		Name:   "Opt",
		Status: "rate limited upstream",
	}})
	require.NoError(t, err)

	assert.Contains(t, out, "Opt")
	assert.Contains(t, out, "rate limited upstream")
	assert.NotContains(t, out, `class="card pending"`)
}

func TestCardList_EscapesEveryField(t *testing.T) {
	r := New()

	out, err := r.CardList([]api.CardRecord{{
		Name:       `<script>alert("name")</script>`,
		OracleText: `a & b < c`,
		ManaCost:   `"{U}"`,
		TypeLine:   `<b>Instant</b>`,
		SetName:    `Bob's "Set"`,
		Status:     `<img src=x onerror=alert(1)>`,
	}})
	require.NoError(t, err)

	assert.NotContains(t, out, "<script>")
	assert.NotContains(t, out, "<b>Instant</b>")
	assert.NotContains(t, out, "<img src=x")
	assert.Contains(t, out, "&lt;script&gt;")
	assert.Contains(t, out, "a &amp; b &lt; c")
}

func TestCardList_EscapesPlaceholderFields(t *testing.T) {
	r := New()

	out, err := r.CardList([]api.CardRecord{{
		Name:   `<i>sneaky</i>`,
		Status: api.StatusQueued,
	}})
	require.NoError(t, err)

	assert.NotContains(t, out, "<i>sneaky</i>")
	assert.Contains(t, out, "&lt;i&gt;sneaky&lt;/i&gt;")
}

func TestCardList_PreservesOrder(t *testing.T) {
	r := New()

	out, err := r.CardList([]api.CardRecord{
		{Name: "Alpha", Status: api.StatusQueued},
		{Name: "Beta", Status: api.StatusFound},
		{Name: "Gamma", Status: api.StatusQueued},
	})
	require.NoError(t, err)

	iAlpha := strings.Index(out, "Alpha")
	iBeta := strings.Index(out, "Beta")
	iGamma := strings.Index(out, "Gamma")
	if !(iAlpha < iBeta && iBeta < iGamma) {
		t.Errorf("Cards rendered out of order: %d, %d, %d", iAlpha, iBeta, iGamma)
	}
}

func TestCardList_Empty(t *testing.T) {
	r := New()

	out, err := r.CardList(nil)
	require.NoError(t, err)
	assert.Equal(t, "", out)
}

func TestPage_WrapsFragment(t *testing.T) {
	r := New()

	list, err := r.CardList([]api.CardRecord{{Name: "Opt", Status: api.StatusFound}})
	require.NoError(t, err)

	page, err := r.Page("Card Results", list)
	require.NoError(t, err)

	assert.Contains(t, page, "<title>Card Results</title>")
	// The fragment must land unescaped inside the page.
	assert.Contains(t, page, `<h3 class="card-name">Opt</h3>`)
}
