package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestValidationResultCreation tests creating a new result
func TestValidationResultCreation(t *testing.T) {
	result := NewResult()

	assert.NotNil(t, result)
	assert.Empty(t, result.Messages)
	assert.True(t, result.IsValid())
	assert.True(t, result.CanImport())
	assert.True(t, result.CanPromote())
}

// TestAddError tests adding error messages
func TestAddError(t *testing.T) {
	result := NewResult()

	result.AddError(CodeNoEligibleTechnicianEquipment, "no technician van carries model adas-alpha")

	assert.Len(t, result.Messages, 1)
	assert.False(t, result.IsValid())
	assert.False(t, result.CanImport())
	assert.False(t, result.CanPromote())
	assert.Equal(t, 1, result.ErrorCount())
}

// TestAddWarning tests adding warning messages
func TestAddWarning(t *testing.T) {
	result := NewResult()

	result.AddWarning(CodeOptimizerOther, "optimizer left job_103 unassigned on pass 1")

	assert.Len(t, result.Messages, 1)
	assert.True(t, result.IsValid()) // Warnings don't make it invalid
	assert.True(t, result.CanImport())
	assert.False(t, result.CanPromote())
	assert.Equal(t, 1, result.WarningCount())
}

// TestAddInfo tests adding info messages
func TestAddInfo(t *testing.T) {
	result := NewResult()

	result.AddInfo("INFO_CODE", "This is informational")

	assert.Len(t, result.Messages, 1)
	assert.True(t, result.IsValid())
	assert.True(t, result.CanImport())
	assert.True(t, result.CanPromote())
	assert.Equal(t, 1, result.InfoCount())
}

// TestMultipleMessages tests collecting multiple messages
func TestMultipleMessages(t *testing.T) {
	result := NewResult()

	result.
		AddError(CodeNoTechnicianAvailability, "no technician has a window on 2026-08-01").
		AddWarning(CodeOptimizerOther, "job_104 unassigned on pass 1").
		AddInfo("INFO_CODE", "pass completed with warnings")

	assert.Len(t, result.Messages, 3)
	assert.Equal(t, 1, result.ErrorCount())
	assert.Equal(t, 1, result.WarningCount())
	assert.Equal(t, 1, result.InfoCount())
	assert.False(t, result.IsValid())
	assert.False(t, result.CanImport())
	assert.False(t, result.CanPromote())
}

// TestMessagesByCode tests filtering messages by code
func TestMessagesByCode(t *testing.T) {
	result := NewResult()

	result.
		AddError(CodeNoEligibleTechnicianEquipment, "job X has no eligible technician").
		AddError(CodeNoEligibleTechnicianEquipment, "job Y has no eligible technician")

	messages := result.MessagesByCode(CodeNoEligibleTechnicianEquipment)

	assert.Len(t, messages, 2)
	for _, msg := range messages {
		assert.Equal(t, CodeNoEligibleTechnicianEquipment, msg.Code)
	}
}

// TestMessagesBySeverity tests filtering messages by severity
func TestMessagesBySeverity(t *testing.T) {
	result := NewResult()

	result.
		AddError(CodeOptimizerError, "optimizer returned status 503").
		AddError(CodeWriteFailed, "batch write failed").
		AddWarning(CodeOptimizerOther, "job unassigned").
		AddInfo("CODE", "Info 1")

	errors := result.MessagesBySeverity(SeverityError)
	warnings := result.MessagesBySeverity(SeverityWarning)
	infos := result.MessagesBySeverity(SeverityInfo)

	assert.Len(t, errors, 2)
	assert.Len(t, warnings, 1)
	assert.Len(t, infos, 1)
}

// TestHasErrorsAndWarnings tests flag methods
func TestHasErrorsAndWarnings(t *testing.T) {
	resultClean := NewResult()
	assert.False(t, resultClean.HasErrors())
	assert.False(t, resultClean.HasWarnings())

	resultWithError := NewResult().AddError("CODE", "Error")
	assert.True(t, resultWithError.HasErrors())
	assert.False(t, resultWithError.HasWarnings())

	resultWithWarning := NewResult().AddWarning("CODE", "Warning")
	assert.False(t, resultWithWarning.HasErrors())
	assert.True(t, resultWithWarning.HasWarnings())

	resultWithBoth := NewResult().
		AddError("ERR", "Error").
		AddWarning("WARN", "Warning")
	assert.True(t, resultWithBoth.HasErrors())
	assert.True(t, resultWithBoth.HasWarnings())
}

// TestWithContext tests messages with additional context
func TestWithContext(t *testing.T) {
	result := NewResult()

	context := map[string]interface{}{
		"job_id":   "job-101",
		"required": "adas-alpha",
	}

	result.AddErrorWithContext(CodeNoEligibleTechnicianEquipment, "no eligible technician", context)

	assert.Len(t, result.Messages, 1)
	msg := result.Messages[0]
	assert.Equal(t, context, msg.Context)
	assert.Equal(t, "adas-alpha", msg.Context["required"])
}

// TestToJSON tests JSON serialization
func TestToJSON(t *testing.T) {
	result := NewResult()

	result.
		AddError(CodeNoEligibleTechnicianEquipment, "no eligible technician").
		AddWarning(CodeOptimizerOther, "job unassigned")

	json, err := result.ToJSON()

	assert.NoError(t, err)
	assert.NotEmpty(t, json)
	assert.Contains(t, json, "NO_ELIGIBLE_TECHNICIAN_EQUIPMENT")
	assert.Contains(t, json, "OPTIMIZER_OTHER")
	assert.Contains(t, json, "ERROR")
	assert.Contains(t, json, "WARNING")
}

// TestFromJSON tests JSON deserialization
func TestFromJSON(t *testing.T) {
	original := NewResult()
	original.
		AddError(CodeNoEligibleTechnicianEquipment, "no eligible technician").
		AddWarning(CodeOptimizerOther, "job unassigned")

	jsonStr, err := original.ToJSON()
	require.NoError(t, err)

	restored, err := FromJSON(jsonStr)
	require.NoError(t, err)

	assert.Len(t, restored.Messages, 2)
	assert.Equal(t, original.ErrorCount(), restored.ErrorCount())
	assert.Equal(t, original.WarningCount(), restored.WarningCount())
}

// TestSummary tests human-readable summary
func TestSummary(t *testing.T) {
	result := NewResult()
	result.
		AddError(CodeNoEligibleTechnicianEquipment, "no eligible technician").
		AddWarning(CodeOptimizerOther, "job unassigned").
		AddInfo("INFO", "Done")

	summary := result.Summary()

	assert.Contains(t, summary, "1 errors")
	assert.Contains(t, summary, "1 warnings")
	assert.Contains(t, summary, "1 info")
	assert.Contains(t, summary, "NO_ELIGIBLE_TECHNICIAN_EQUIPMENT")
	assert.Contains(t, summary, "OPTIMIZER_OTHER")
}

// TestChaining tests method chaining
func TestChaining(t *testing.T) {
	result := NewResult().
		AddError("CODE1", "Error 1").
		AddWarning("CODE2", "Warning 1").
		AddInfo("CODE3", "Info 1")

	assert.Len(t, result.Messages, 3)
	assert.Equal(t, 1, result.ErrorCount())
	assert.Equal(t, 1, result.WarningCount())
	assert.Equal(t, 1, result.InfoCount())
}

// TestReplanPassExample mirrors a real overflow pass accumulating
// several distinct failure kinds in one Result.
func TestReplanPassExample(t *testing.T) {
	result := NewResult()

	result.AddErrorWithContext(
		CodeNoEligibleTechnicianEquipment,
		"no technician van carries required equipment",
		map[string]interface{}{
			"item_id":  "job_101",
			"required": []string{"adas-alpha", "adas-beta"},
		},
	)

	result.AddWarningWithContext(
		CodeOptimizerOther,
		"optimizer left item unassigned",
		map[string]interface{}{
			"item_id": "bundle_1001",
		},
	)

	result.AddInfo(
		"JOBS_SCHEDULED",
		"scheduled 12 jobs in this pass",
	)

	assert.False(t, result.CanImport())
	assert.False(t, result.CanPromote())
	assert.True(t, result.HasErrors())
	assert.True(t, result.HasWarnings())
}
