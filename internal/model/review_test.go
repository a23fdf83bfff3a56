package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeverityOrder(t *testing.T) {
	assert.True(t, SeverityLow.Rank() < SeverityMedium.Rank())
	assert.True(t, SeverityMedium.Rank() < SeverityHigh.Rank())
	assert.True(t, SeverityHigh.Rank() < SeverityCritical.Rank())

	assert.Equal(t, -1, SeverityLow.Compare(SeverityCritical))
	assert.Equal(t, 1, SeverityCritical.Compare(SeverityLow))
	assert.Equal(t, 0, SeverityHigh.Compare(SeverityHigh))
}

func TestParseSeverityClampsUnknown(t *testing.T) {
	assert.Equal(t, SeverityHigh, ParseSeverity("high"))
	assert.Equal(t, SeverityMedium, ParseSeverity("urgent"))
	assert.Equal(t, SeverityMedium, ParseSeverity(""))
}

func TestReviewConfigDefaults(t *testing.T) {
	var cfg ReviewConfig
	require.NoError(t, cfg.PrepareAndValidate())

	assert.Equal(t, SeverityMedium, cfg.SeverityThreshold)
	assert.Equal(t, AllCategories(), cfg.EnabledCategories)
	assert.True(t, cfg.IsEnabled(CategorySecurity))
}

func TestReviewConfigRejectsUnknown(t *testing.T) {
	cfg := ReviewConfig{SeverityThreshold: "severe"}
	err := cfg.PrepareAndValidate()
	require.Error(t, err)
	assert.True(t, IsValidationError(err))

	cfg = ReviewConfig{EnabledCategories: []Category{"style"}}
	err = cfg.PrepareAndValidate()
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
}

func TestFindingWireCarriesMessageAlias(t *testing.T) {
	f := Finding{
		FilePath:    "main.go",
		LineNumber:  7,
		Severity:    SeverityHigh,
		Category:    CategoryLogic,
		Description: "nil dereference",
		AgentSource: "logic_analyzer",
	}

	data, err := json.Marshal(f)
	require.NoError(t, err)

	var wire map[string]any
	require.NoError(t, json.Unmarshal(data, &wire))
	assert.Equal(t, "nil dereference", wire["description"])
	assert.Equal(t, "nil dereference", wire["message"])
}

func TestFindingUnmarshalFallsBackToMessage(t *testing.T) {
	raw := `{"file_path":"a.go","line_number":3,"severity":"low","category":"logic","message":"legacy clients"}`

	var f Finding
	require.NoError(t, json.Unmarshal([]byte(raw), &f))
	assert.Equal(t, "legacy clients", f.Description)
}

func TestChangeSourceValidate(t *testing.T) {
	assert.NoError(t, ChangeSource{DiffContent: "diff"}.Validate())
	assert.NoError(t, ChangeSource{PRURL: "https://github.com/o/r/pull/1"}.Validate())
	assert.NoError(t, ChangeSource{Repository: "o/r", PRNumber: 5}.Validate())

	assert.Error(t, ChangeSource{}.Validate())
	assert.Error(t, ChangeSource{PRURL: "u", DiffContent: "d"}.Validate())
	assert.Error(t, ChangeSource{PRURL: "u", Repository: "o/r", PRNumber: 1}.Validate())
	assert.Error(t, ChangeSource{Repository: "o/r"}.Validate())

	assert.True(t, ChangeSource{PRURL: "u"}.IsRemote())
	assert.False(t, ChangeSource{DiffContent: "d"}.IsRemote())
}
