package controller

import (
	"net/http"
	"testing"
	"time"

	"dealdialer/models"
	"dealdialer/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestCallController(db *gorm.DB) *CallController {
	return &CallController{
		DB:       db,
		Logger:   testLogger(),
		Vapi:     &utils.VapiClient{HTTPClient: http.DefaultClient},
		LLM:      &utils.OpenRouterClient{HTTPClient: http.DefaultClient},
		Calendar: &utils.MetorialClient{HTTPClient: http.DefaultClient},
	}
}

func TestCreateCallRequiresExistingCompany(t *testing.T) {
	db := newTestDB(t)
	banker, _, _ := seedProspect(t, db)
	cc := newTestCallController(db)

	_, err := cc.CreateCall(9999, banker.ID)
	require.Error(t, err)
	assert.True(t, utils.IsNotFound(err))
}

func TestCreateCallAnchorsSession(t *testing.T) {
	db := newTestDB(t)
	banker, _, company := seedProspect(t, db)
	cc := newTestCallController(db)

	call, err := cc.CreateCall(company.ID, banker.ID)
	require.NoError(t, err)

	assert.NotZero(t, call.ID)
	assert.Nil(t, call.ExternalID)
	assert.Equal(t, 0, call.Duration)
	assert.Equal(t, models.AnalysisPending, call.AnalysisStatus)
	assert.False(t, call.IsFinalized())
}

func TestMessagesKeepArrivalOrderOnEqualTimestamps(t *testing.T) {
	db := newTestDB(t)
	banker, _, company := seedProspect(t, db)
	cc := newTestCallController(db)

	call, err := cc.CreateCall(company.ID, banker.ID)
	require.NoError(t, err)

	// The platform can deliver several fragments with the same
	// timestamp; sequence must preserve arrival order.
	ts := time.Now().Truncate(time.Second)
	cc.CreateMessage(call.ID, models.RoleAssistant, "Hi, this is Alex calling for Jordan Reed.", ts)
	cc.CreateMessage(call.ID, models.RoleUser, "Who is this?", ts)
	cc.CreateMessage(call.ID, models.RoleAssistant, "I work with Reed Capital.", ts)

	var messages []models.CallMessage
	require.NoError(t, db.Where("call_id = ?", call.ID).
		Order("timestamp ASC, sequence ASC").
		Find(&messages).Error)

	require.Len(t, messages, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{messages[0].Sequence, messages[1].Sequence, messages[2].Sequence})
	assert.Equal(t, "Who is this?", messages[1].Transcript)
}

func TestCreateMessageDropsUnknownCall(t *testing.T) {
	db := newTestDB(t)
	cc := newTestCallController(db)

	cc.CreateMessage(12345, models.RoleUser, "hello?", time.Now())

	var count int64
	db.Model(&models.CallMessage{}).Count(&count)
	assert.Zero(t, count)
}

func TestFinalizeRecordsDurationEvenWhenAnalysisFails(t *testing.T) {
	db := newTestDB(t)
	banker, _, company := seedProspect(t, db)
	cc := newTestCallController(db)

	call, err := cc.CreateCall(company.ID, banker.ID)
	require.NoError(t, err)
	cc.CreateMessage(call.ID, models.RoleUser, "Not a good time.", time.Now())

	// The LLM client has no endpoint configured, so analysis fails;
	// the duration write must land regardless.
	result, err := cc.FinalizeCall(call.ID, 2.4)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, 2, result.Duration)
	assert.NotEmpty(t, result.AnalysisError)
	assert.Nil(t, result.Analysis)

	var stored models.Call
	require.NoError(t, db.First(&stored, call.ID).Error)
	assert.Equal(t, 2, stored.Duration)
	assert.True(t, stored.IsFinalized())
	assert.Equal(t, models.AnalysisFailed, stored.AnalysisStatus)
	assert.Equal(t, 1, stored.AnalysisAttempts)
}

func TestFinalizeRoundsHalfUp(t *testing.T) {
	db := newTestDB(t)
	banker, _, company := seedProspect(t, db)
	cc := newTestCallController(db)

	call, err := cc.CreateCall(company.ID, banker.ID)
	require.NoError(t, err)

	result, err := cc.FinalizeCall(call.ID, 2.5)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Duration)
}

func TestDoubleFinalizeIsANoOp(t *testing.T) {
	db := newTestDB(t)
	banker, _, company := seedProspect(t, db)
	cc := newTestCallController(db)

	call, err := cc.CreateCall(company.ID, banker.ID)
	require.NoError(t, err)

	first, err := cc.FinalizeCall(call.ID, 4.0)
	require.NoError(t, err)
	require.True(t, first.Success)
	require.False(t, first.AlreadyFinalized)

	// Browser call-end racing the platform's end-of-call-report.
	second, err := cc.FinalizeCall(call.ID, 99.0)
	require.NoError(t, err)
	assert.True(t, second.Success)
	assert.True(t, second.AlreadyFinalized)
	assert.Equal(t, 4, second.Duration)

	var stored models.Call
	require.NoError(t, db.First(&stored, call.ID).Error)
	assert.Equal(t, 4, stored.Duration)
}

func TestFinalizeUnknownCall(t *testing.T) {
	db := newTestDB(t)
	cc := newTestCallController(db)

	_, err := cc.FinalizeCall(4242, 1.0)
	require.Error(t, err)
	assert.True(t, utils.IsNotFound(err))
}
