package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildDecisionErrorForcesRewrite(t *testing.T) {
	d := BuildDecision([]Finding{
		{Severity: SeverityInfo, Code: "short_notice"},
		{Severity: SeverityError, Code: "missing_signature"},
	})
	assert.Equal(t, "error", d.Status)
	assert.True(t, d.NeedsRewrite)
}

func TestBuildDecisionWarnWithoutRewrite(t *testing.T) {
	d := BuildDecision([]Finding{{Severity: SeverityWarn, Code: "missing_manager_name"}})
	assert.Equal(t, "warn", d.Status)
	assert.False(t, d.NeedsRewrite)
}

func TestBuildDecisionInfoOnlyIsOK(t *testing.T) {
	d := BuildDecision([]Finding{{Severity: SeverityInfo, Code: "short_notice"}})
	assert.Equal(t, "ok", d.Status)
	assert.False(t, d.NeedsRewrite)
	assert.NotEmpty(t, d.Summary)
}

func TestBuildDecisionNoFindings(t *testing.T) {
	d := BuildDecision(nil)
	assert.Equal(t, "ok", d.Status)
	assert.Equal(t, "Ошибок не найдено.", d.Summary)
}

func TestLeaveTypeValid(t *testing.T) {
	for _, lt := range LeaveTypes {
		assert.True(t, lt.Valid())
	}
	assert.False(t, LeaveType("sabbatical").Valid())
}
