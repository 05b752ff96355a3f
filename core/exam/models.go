package exam

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/quizforge/core"
)

// Statuses
const (
	StatusDraft     = "draft"
	StatusScheduled = "scheduled"
	StatusOngoing   = "ongoing"
	StatusEnded     = "ended"
)

// Question kinds
const (
	KindMultipleChoice = "multiple_choice"
	KindTrueFalse      = "true_false"
	KindShortAnswer    = "short_answer"
)

type Exam struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	ClassID         string     `json:"class_id"`
	DurationMinutes int        `json:"duration_minutes"`
	StartTime       time.Time  `json:"start_time"` // UTC
	EndTime         *time.Time `json:"end_time"`   // UTC
	IsPublished     bool       `json:"is_published"`
	CreatorID       string     `json:"creator_id"`
	Status          string     `json:"status"`
	CreatedAt       time.Time  `json:"created_at"` // UTC
	UpdatedAt       time.Time  `json:"updated_at"` // UTC
}

// Ends returns EndTime, or StartTime + DurationMinutes when no end time is set.
func (e Exam) Ends() time.Time {
	if e.EndTime != nil {
		return *e.EndTime
	}
	return e.StartTime.Add(time.Duration(e.DurationMinutes) * time.Minute)
}

func (e Exam) StatusAt(now time.Time) string {
	switch {
	case !e.IsPublished:
		return StatusDraft
	case now.Before(e.StartTime):
		return StatusScheduled
	case now.Before(e.Ends()):
		return StatusOngoing
	default:
		return StatusEnded
	}
}

type NewExam struct {
	Title           string     `json:"title" validate:"required,max=200"`
	Description     string     `json:"description" validate:"max=5000"`
	ClassID         string     `json:"class_id" validate:"required,uuid"`
	DurationMinutes int        `json:"duration_minutes" validate:"required,min=1,max=480"`
	StartTime       time.Time  `json:"start_time" validate:"required"`
	EndTime         *time.Time `json:"end_time"`
}

func (ne *NewExam) Validate(validate *validator.Validate) error {
	ne.Title = core.CleanString(ne.Title)
	ne.Description = core.CleanString(ne.Description)
	ne.StartTime = ne.StartTime.UTC()
	if ne.EndTime != nil {
		end := ne.EndTime.UTC()
		ne.EndTime = &end
	}
	return validate.Struct(ne)
}

// UpdateExam holds the editable fields of an exam; zero values keep the current ones.
type UpdateExam struct {
	Title           string     `json:"title" validate:"required,max=200"`
	Description     *string    `json:"description" validate:"omitempty,max=5000"`
	DurationMinutes int        `json:"duration_minutes" validate:"required,min=1,max=480"`
	StartTime       time.Time  `json:"start_time" validate:"required"`
	EndTime         *time.Time `json:"end_time"`
	ClearEndTime    bool       `json:"clear_end_time"`
}

func (ue *UpdateExam) Validate(orig Exam, validate *validator.Validate) error {
	if title := core.CleanString(ue.Title); title != "" {
		ue.Title = title
	} else {
		ue.Title = orig.Title
	}
	if ue.Description != nil {
		desc := core.CleanString(*ue.Description)
		ue.Description = &desc
	}
	if ue.DurationMinutes == 0 {
		ue.DurationMinutes = orig.DurationMinutes
	}
	if ue.StartTime.IsZero() {
		ue.StartTime = orig.StartTime
	}
	ue.StartTime = ue.StartTime.UTC()
	switch {
	case ue.ClearEndTime:
		ue.EndTime = nil
	case ue.EndTime == nil:
		ue.EndTime = orig.EndTime
	default:
		end := ue.EndTime.UTC()
		ue.EndTime = &end
	}
	return validate.Struct(ue)
}

type QueryFilter struct {
	Search    string    `query:"search"`
	ClassID   string    `query:"class_id"`
	CreatorID string    `query:"creator_id"`
	From      time.Time `query:"from"` // start_time >= From
	To        time.Time `query:"to"`   // start_time < To
	Published *bool     `query:"is_published"`
	TutorID   string    `query:"-"` // exams of the classes owned by the tutor
	StudentID string    `query:"-"` // exams of the classes the student is enrolled in
}

type Question struct {
	ID        string    `json:"id"`
	ExamID    string    `json:"exam_id"`
	Kind      string    `json:"kind"`
	Text      string    `json:"text"`
	Options   []string  `json:"options"`
	Answer    string    `json:"answer,omitempty"`
	Points    int       `json:"points"`
	Position  int       `json:"position"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

// NewQuestion is used both to add and to replace a question.
type NewQuestion struct {
	Kind    string   `json:"kind" validate:"required,oneof=multiple_choice true_false short_answer"`
	Text    string   `json:"text" validate:"required,max=2000"`
	Options []string `json:"options" validate:"max=10,dive,max=500"`
	Answer  string   `json:"answer" validate:"max=500"`
	Points  int      `json:"points" validate:"min=0,max=100"`
}

func (nq *NewQuestion) Validate(validate *validator.Validate) error {
	nq.Text = core.CleanString(nq.Text)
	nq.Answer = core.CleanString(nq.Answer)
	opts := make([]string, 0, len(nq.Options))
	for _, opt := range nq.Options {
		if opt = core.CleanString(opt); opt != "" {
			opts = append(opts, opt)
		}
	}
	nq.Options = opts
	if nq.Points == 0 {
		nq.Points = 1
	}
	switch nq.Kind {
	case KindTrueFalse:
		nq.Answer = strings.ToLower(nq.Answer)
		nq.Options = []string{"true", "false"}
	case KindShortAnswer:
		nq.Options = []string{}
	}
	return validate.Struct(nq)
}

type QuestionOrder struct {
	IDs []string `json:"ids" validate:"required,min=1,dive,uuid"`
}
