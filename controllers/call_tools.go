package controller

import (
	"context"
	"encoding/json"
	"time"

	"dealdialer/models"
	"dealdialer/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ToolCallDescriptor is one model-requested function invocation from a
// live call.
type ToolCallDescriptor struct {
	ID        string
	Name      string
	Arguments json.RawMessage
}

// ToolCallContext carries the entities a tool implementation needs.
type ToolCallContext struct {
	Call    *models.Call
	Company *models.SellerCompany
	Banker  *models.Banker
}

func (cc *CallController) loadToolCallContext(call *models.Call) (*ToolCallContext, error) {
	var company models.SellerCompany
	if err := cc.DB.First(&company, call.SellerCompanyID).Error; err != nil {
		return nil, utils.NewNotFoundError("seller company", call.SellerCompanyID)
	}
	var banker models.Banker
	if err := cc.DB.First(&banker, call.BankerID).Error; err != nil {
		return nil, utils.NewNotFoundError("banker", call.BankerID)
	}
	return &ToolCallContext{Call: call, Company: &company, Banker: &banker}, nil
}

// HandleToolCall dispatches a tool call against the fixed registry. An
// unknown tool name is non-fatal: it logs a warning and returns nil so
// the conversation continues.
func (cc *CallController) HandleToolCall(tc ToolCallDescriptor, tctx *ToolCallContext) (interface{}, error) {
	switch tc.Name {
	case "find_meeting_slots":
		return cc.findMeetingSlots(tc, tctx)
	case "book_meeting_slot":
		return cc.bookMeetingSlot(tc, tctx)
	default:
		cc.Logger.Printf("Unknown tool %q requested during call %d", tc.Name, tctx.Call.ID)
		return nil, nil
	}
}

// decodeToolArgs unmarshals tool arguments, which the platform sends
// either as a JSON object or as a string containing JSON, then runs
// schema validation.
func decodeToolArgs(raw json.RawMessage, dst interface{}) error {
	if len(raw) == 0 {
		return utils.ValidateStruct(dst)
	}
	payload := []byte(raw)
	if payload[0] == '"' {
		var inner string
		if err := json.Unmarshal(payload, &inner); err != nil {
			return utils.NewValidationError("malformed tool arguments: %v", err)
		}
		payload = []byte(inner)
	}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, dst); err != nil {
			return utils.NewValidationError("malformed tool arguments: %v", err)
		}
	}
	return utils.ValidateStruct(dst)
}

type findSlotsArgs struct {
	DurationMinutes int `json:"duration_minutes" validate:"omitempty,min=15,max=120"`
	DaysAhead       int `json:"days_ahead" validate:"omitempty,min=1,max=14"`
}

type bookSlotArgs struct {
	StartTime string `json:"start_time" validate:"required"`
	Title     string `json:"title"`
}

// findMeetingSlots offers up to three open slots on the banker's
// calendar. Without a connected calendar session it falls back to
// deterministic morning/afternoon candidates.
func (cc *CallController) findMeetingSlots(tc ToolCallDescriptor, tctx *ToolCallContext) (interface{}, error) {
	var args findSlotsArgs
	if err := decodeToolArgs(tc.Arguments, &args); err != nil {
		return nil, err
	}
	if args.DurationMinutes == 0 {
		args.DurationMinutes = 30
	}
	if args.DaysAhead == 0 {
		args.DaysAhead = 5
	}

	from := time.Now().Add(24 * time.Hour)
	to := from.AddDate(0, 0, args.DaysAhead)

	var busy []utils.BusyInterval
	if cc.Calendar.HasSession() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		intervals, err := cc.Calendar.GetFreeBusy(ctx, from, to)
		if err != nil {
			cc.Logger.Printf("Free/busy lookup failed, falling back to stub slots: %v", err)
		} else {
			busy = intervals
		}
	}

	duration := time.Duration(args.DurationMinutes) * time.Minute
	slots := candidateSlots(from, args.DaysAhead, duration, busy)

	formatted := make([]string, 0, len(slots))
	for _, s := range slots {
		formatted = append(formatted, s.Format(time.RFC3339))
	}
	return map[string]interface{}{
		"slots":            formatted,
		"duration_minutes": args.DurationMinutes,
	}, nil
}

// candidateSlots proposes 10:00 and 14:00 on each business day, skipping
// anything overlapping a busy block, up to three slots.
func candidateSlots(from time.Time, daysAhead int, duration time.Duration, busy []utils.BusyInterval) []time.Time {
	var slots []time.Time
	for d := 0; d < daysAhead && len(slots) < 3; d++ {
		day := from.AddDate(0, 0, d)
		if day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
			continue
		}
		for _, hour := range []int{10, 14} {
			start := time.Date(day.Year(), day.Month(), day.Day(), hour, 0, 0, 0, day.Location())
			if start.Before(from) || overlapsBusy(start, start.Add(duration), busy) {
				continue
			}
			slots = append(slots, start)
			if len(slots) == 3 {
				break
			}
		}
	}
	return slots
}

func overlapsBusy(start, end time.Time, busy []utils.BusyInterval) bool {
	for _, b := range busy {
		if start.Before(b.End) && b.Start.Before(end) {
			return true
		}
	}
	return false
}

// bookMeetingSlot books the chosen slot, records the Meeting row, and
// reports a confirmation id back into the conversation.
func (cc *CallController) bookMeetingSlot(tc ToolCallDescriptor, tctx *ToolCallContext) (interface{}, error) {
	var args bookSlotArgs
	if err := decodeToolArgs(tc.Arguments, &args); err != nil {
		return nil, err
	}

	start, err := time.Parse(time.RFC3339, args.StartTime)
	if err != nil {
		return nil, utils.NewValidationError("start_time must be RFC3339: %v", err)
	}
	end := start.Add(30 * time.Minute)

	title := args.Title
	if title == "" {
		title = "Intro call: " + tctx.Company.Name + " / " + tctx.Banker.Name
	}

	var calendarRef string
	if cc.Calendar.HasSession() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		ref, err := cc.Calendar.CreateEvent(ctx, title, start, end, tctx.Company.ContactEmail)
		if err != nil {
			cc.Logger.Printf("Calendar booking failed, recording stub confirmation: %v", err)
		} else {
			calendarRef = ref
		}
	}

	confirmation := uuid.NewString()[:8]
	meeting := models.Meeting{
		SellerCompanyID: tctx.Company.ID,
		BankerID:        tctx.Banker.ID,
		Title:           title,
		StartTime:       start,
		EndTime:         end,
		ConfirmationID:  confirmation,
		CalendarRef:     calendarRef,
	}
	if err := cc.DB.Create(&meeting).Error; err != nil {
		return nil, &utils.PersistenceError{Op: "create meeting", Err: err}
	}

	cc.DB.Model(tctx.Company).Update("status", "meeting_scheduled")
	cc.DB.Model(&models.Campaign{}).
		Where("id = ?", tctx.Company.CampaignID).
		Update("meeting_count", gorm.Expr("meeting_count + 1"))

	return map[string]interface{}{
		"confirmed":       true,
		"confirmation_id": confirmation,
		"start_time":      start.Format(time.RFC3339),
		"title":           title,
	}, nil
}
